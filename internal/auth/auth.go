package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"reservo/internal/config"
	"reservo/internal/domain"
	"reservo/internal/models"

	"github.com/gorilla/securecookie"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

const cookieName = "reservo_admin"

type ctxKey string

const adminKey ctxKey = "admin"

// IdentityProvider checks operator credentials.
type IdentityProvider interface {
	Authenticate(ctx context.Context, email, password string) (*models.AdminAccount, error)
}

func HashPassword(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	return string(b), err
}

func CheckPassword(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

// ConfigIdentityProvider authenticates against the accounts listed in the config file.
type ConfigIdentityProvider struct {
	accounts map[string]models.AdminAccount
}

func NewConfigIdentityProvider(accounts []models.AdminAccount) *ConfigIdentityProvider {
	m := make(map[string]models.AdminAccount, len(accounts))
	for _, a := range accounts {
		m[normalizeEmail(a.Email)] = a
	}
	return &ConfigIdentityProvider{accounts: m}
}

func (p *ConfigIdentityProvider) Authenticate(_ context.Context, email, password string) (*models.AdminAccount, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, domain.ErrMissingFields
	}
	acc, ok := p.accounts[normalizeEmail(email)]
	if !ok || acc.PasswordHash == "" || !CheckPassword(acc.PasswordHash, password) {
		return nil, domain.ErrInvalidCredentials
	}
	return &acc, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Authenticator issues admin sessions: an encrypted cookie for the dashboard
// and a bearer token for API clients. Either one passes RequireAdmin.
type Authenticator struct {
	provider  IdentityProvider
	sc        *securecookie.SecureCookie
	tokens    *TokenIssuer
	ttl       time.Duration
	loginPath string
	logger    *zerolog.Logger
}

func NewAuthenticator(cfg config.AdminConfig, provider IdentityProvider, logger *zerolog.Logger) (*Authenticator, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	hashKey := []byte(cfg.SessionHashKey)
	blockKey := []byte(cfg.SessionBlockKey)
	if len(hashKey) == 0 {
		logger.Warn().Msg("admin.session_hash_key is empty, sessions will not survive a restart")
		hashKey = securecookie.GenerateRandomKey(64)
	}
	if len(blockKey) == 0 {
		blockKey = securecookie.GenerateRandomKey(32)
	}
	switch len(blockKey) {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("admin.session_block_key must be 16, 24 or 32 bytes, got %d", len(blockKey))
	}

	secret := []byte(cfg.JWTSecret)
	if len(secret) == 0 {
		logger.Warn().Msg("admin.jwt_secret is empty, tokens will not survive a restart")
		secret = securecookie.GenerateRandomKey(32)
	}

	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	loginPath := cfg.LoginPath
	if loginPath == "" {
		loginPath = "/admin-login"
	}

	sc := securecookie.New(hashKey, blockKey)
	sc.MaxAge(int(ttl.Seconds()))

	return &Authenticator{
		provider:  provider,
		sc:        sc,
		tokens:    NewTokenIssuer(secret, ttl),
		ttl:       ttl,
		loginPath: loginPath,
		logger:    logger,
	}, nil
}

// LoginPath is where signed-out operators are sent.
func (a *Authenticator) LoginPath() string {
	return a.loginPath
}

// Login verifies credentials, sets the session cookie and returns a bearer token.
func (a *Authenticator) Login(ctx context.Context, w http.ResponseWriter, r *http.Request, email, password string) (*models.AdminAccount, string, error) {
	acc, err := a.provider.Authenticate(ctx, email, password)
	if err != nil {
		a.logger.Warn().Str("email", email).Msg("admin sign-in rejected")
		return nil, "", err
	}

	encoded, err := a.sc.Encode(cookieName, map[string]string{"email": acc.Email})
	if err != nil {
		return nil, "", fmt.Errorf("encode session: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    encoded,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
		MaxAge:   int(a.ttl.Seconds()),
	})

	token, err := a.tokens.Issue(acc.Email, acc.Name)
	if err != nil {
		return nil, "", fmt.Errorf("issue token: %w", err)
	}

	a.logger.Info().Str("email", acc.Email).Msg("admin signed in")
	return acc, token, nil
}

func (a *Authenticator) Logout(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

// Identify returns the admin email carried by the request cookie or bearer token.
func (a *Authenticator) Identify(r *http.Request) (string, bool) {
	if c, err := r.Cookie(cookieName); err == nil {
		val := map[string]string{}
		if err := a.sc.Decode(cookieName, c.Value, &val); err == nil && val["email"] != "" {
			return val["email"], true
		}
	}

	return a.IdentifyBearer(r.Header.Get("Authorization"))
}

// IdentifyBearer returns the admin email of an "Authorization: Bearer <jwt>" value.
func (a *Authenticator) IdentifyBearer(header string) (string, bool) {
	token, ok := strings.CutPrefix(strings.TrimSpace(header), "Bearer ")
	if !ok {
		return "", false
	}
	claims, err := a.tokens.Parse(strings.TrimSpace(token))
	if err != nil {
		return "", false
	}
	return claims.Email, true
}

// RequireAdmin rejects requests without an admin session with 401.
func (a *Authenticator) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		email, ok := a.Identify(r)
		if !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"` + domain.ErrUnauthorized.Message + `"}` + "\n"))
			return
		}
		next.ServeHTTP(w, r.WithContext(WithAdmin(r.Context(), email)))
	})
}

func WithAdmin(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, adminKey, email)
}

func AdminFromContext(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(adminKey).(string)
	return email, ok && email != ""
}

// IsAuthError reports whether err should be answered with 401.
func IsAuthError(err error) bool {
	return errors.Is(err, domain.ErrInvalidCredentials) || errors.Is(err, domain.ErrUnauthorized)
}
