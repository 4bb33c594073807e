package api

import (
	"context"
	"crypto/subtle"
	"strings"

	"reservo/internal/auth"
	"reservo/internal/config"
	"reservo/internal/domain"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

const (
	apiKeyHeaderDefault   = "x-api-key"
	apiExtraHeaderDefault = "x-api-extra"
	permReadAvailability  = "read:availability"
	permReadBookings      = "read:bookings"
	permWriteBookings     = "write:bookings"
	clientKeyUnknown      = "unknown"
	authorizationHeader   = "authorization"
)

// AdminIdentifier resolves an "authorization" metadata value to an admin email.
type AdminIdentifier interface {
	IdentifyBearer(header string) (string, bool)
}

// AuthInterceptor checks API keys, per-method permissions and per-key rate limits of gRPC calls.
// Admin methods additionally need an admin bearer token, even with API keys disabled.
type AuthInterceptor struct {
	cfg    config.APIConfig
	admins AdminIdentifier

	clientsByAPIKey map[string]config.APIClientKey
	limiter         *rateLimiter
}

// NewAuthInterceptor builds the interceptor. A nil admins rejects every admin method.
func NewAuthInterceptor(cfg config.APIConfig, admins AdminIdentifier) *AuthInterceptor {
	m := make(map[string]config.APIClientKey, len(cfg.Auth.APIKeys))
	for _, k := range cfg.Auth.APIKeys {
		m[k.Key] = k
	}

	return &AuthInterceptor{
		cfg:             cfg,
		admins:          admins,
		clientsByAPIKey: m,
		limiter:         newRateLimiter(cfg.RateLimit),
	}
}

func (a *AuthInterceptor) Unary() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if _, err := a.check(ctx, info.FullMethod); err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

func (a *AuthInterceptor) Stream() grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx, err := a.check(ss.Context(), info.FullMethod)
		if err != nil {
			return err
		}
		return handler(srv, &adminStream{ServerStream: ss, ctx: ctx})
	}
}

func (a *AuthInterceptor) check(ctx context.Context, fullMethod string) (context.Context, error) {
	if a.cfg.Auth.Enabled {
		if err := a.checkAuth(ctx, fullMethod); err != nil {
			return ctx, err
		}
	}
	if adminOnly(fullMethod) {
		email, err := a.checkAdmin(ctx)
		if err != nil {
			return ctx, err
		}
		ctx = auth.WithAdmin(ctx, email)
	}
	return ctx, a.checkRateLimit(ctx)
}

func adminOnly(fullMethod string) bool {
	return fullMethod == methodWatchBookings
}

func (a *AuthInterceptor) checkAdmin(ctx context.Context) (string, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	header := first(md.Get(authorizationHeader))
	if a.admins == nil || header == "" {
		return "", status.Error(codes.Unauthenticated, domain.ErrUnauthorized.Message)
	}
	email, ok := a.admins.IdentifyBearer(header)
	if !ok {
		return "", status.Error(codes.Unauthenticated, domain.ErrUnauthorized.Message)
	}
	return email, nil
}

// adminStream carries the admin identity down to the stream handler.
type adminStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *adminStream) Context() context.Context {
	return s.ctx
}

func (a *AuthInterceptor) checkAuth(ctx context.Context, fullMethod string) error {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return status.Error(codes.Unauthenticated, "missing metadata")
	}

	apiKey := first(md.Get(a.apiKeyHeader()))
	extra := first(md.Get(a.extraHeader()))
	if apiKey == "" || extra == "" {
		return status.Error(codes.Unauthenticated, "missing api key headers")
	}

	client, ok := a.clientsByAPIKey[apiKey]
	if !ok {
		return status.Error(codes.Unauthenticated, "invalid api key")
	}

	if subtle.ConstantTimeCompare([]byte(client.Extra), []byte(extra)) != 1 {
		return status.Error(codes.Unauthenticated, "invalid extra header")
	}

	return a.checkPermissions(client, fullMethod)
}

func (a *AuthInterceptor) checkPermissions(client config.APIClientKey, fullMethod string) error {
	required := requiredPermission(fullMethod)
	if required == "" {
		return nil
	}

	// If permissions list is empty, treat as allow-all.
	if len(client.Permissions) == 0 {
		return nil
	}

	for _, p := range client.Permissions {
		if strings.TrimSpace(p) == required {
			return nil
		}
	}
	return status.Error(codes.PermissionDenied, "permission denied")
}

func requiredPermission(fullMethod string) string {
	switch fullMethod {
	case methodReserve:
		return permWriteBookings
	case methodGetAvailability, methodWatchAvailability:
		return permReadAvailability
	case methodWatchBookings:
		return permReadBookings
	default:
		return ""
	}
}

func (a *AuthInterceptor) checkRateLimit(ctx context.Context) error {
	if !a.limiter.Allow(a.clientKey(ctx)) {
		return status.Error(codes.ResourceExhausted, "rate limit exceeded")
	}
	return nil
}

func (a *AuthInterceptor) clientKey(ctx context.Context) string {
	md, _ := metadata.FromIncomingContext(ctx)
	if apiKey := first(md.Get(a.apiKeyHeader())); apiKey != "" {
		return apiKey
	}

	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		return p.Addr.String()
	}
	return clientKeyUnknown
}

func (a *AuthInterceptor) apiKeyHeader() string {
	if h := strings.ToLower(strings.TrimSpace(a.cfg.Auth.HeaderAPIKey)); h != "" {
		return h
	}
	return apiKeyHeaderDefault
}

func (a *AuthInterceptor) extraHeader() string {
	if h := strings.ToLower(strings.TrimSpace(a.cfg.Auth.HeaderExtra)); h != "" {
		return h
	}
	return apiExtraHeaderDefault
}

func first(vals []string) string {
	if len(vals) == 0 {
		return ""
	}
	return strings.TrimSpace(vals[0])
}
