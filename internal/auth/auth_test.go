package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"reservo/internal/config"
	"reservo/internal/domain"
	"reservo/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestAuthenticator(t *testing.T) *Authenticator {
	t.Helper()
	// MinCost keeps the suite fast
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)

	provider := NewConfigIdentityProvider([]models.AdminAccount{
		{Email: "Admin@Studio.test", Name: "Admin", PasswordHash: string(hash)},
	})
	a, err := NewAuthenticator(config.AdminConfig{
		SessionHashKey:  "0123456789abcdef0123456789abcdef",
		SessionBlockKey: "abcdef0123456789",
		JWTSecret:       "jwt-secret",
		TokenTTL:        time.Hour,
		LoginPath:       "/admin-login",
	}, provider, nil)
	require.NoError(t, err)
	return a
}

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("pw")
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "pw"))
	assert.False(t, CheckPassword(hash, "other"))
}

func TestConfigIdentityProvider(t *testing.T) {
	a := newTestAuthenticator(t)
	ctx := context.Background()

	acc, err := a.provider.Authenticate(ctx, " admin@studio.test ", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "Admin", acc.Name)

	_, err = a.provider.Authenticate(ctx, "admin@studio.test", "wrong")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = a.provider.Authenticate(ctx, "nobody@studio.test", "s3cret")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = a.provider.Authenticate(ctx, "", "")
	assert.ErrorIs(t, err, domain.ErrMissingFields)
}

func TestLoginSetsCookieAndToken(t *testing.T) {
	a := newTestAuthenticator(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/login", nil)
	acc, token, err := a.Login(context.Background(), rec, req, "admin@studio.test", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "Admin@Studio.test", acc.Email)
	assert.NotEmpty(t, token)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, cookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	withCookie := httptest.NewRequest(http.MethodGet, "/", nil)
	withCookie.AddCookie(cookies[0])
	email, ok := a.Identify(withCookie)
	assert.True(t, ok)
	assert.Equal(t, "Admin@Studio.test", email)

	withToken := httptest.NewRequest(http.MethodGet, "/", nil)
	withToken.Header.Set("Authorization", "Bearer "+token)
	email, ok = a.Identify(withToken)
	assert.True(t, ok)
	assert.Equal(t, "Admin@Studio.test", email)
}

func TestLoginRejected(t *testing.T) {
	a := newTestAuthenticator(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", nil)

	_, _, err := a.Login(context.Background(), rec, req, "admin@studio.test", "nope")
	assert.True(t, IsAuthError(err))
	assert.Empty(t, rec.Result().Cookies())
}

func TestIdentifyRejectsForgedCredentials(t *testing.T) {
	a := newTestAuthenticator(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: cookieName, Value: "forged"})
	req.Header.Set("Authorization", "Bearer not-a-token")
	_, ok := a.Identify(req)
	assert.False(t, ok)

	other := NewTokenIssuer([]byte("other-secret"), time.Hour)
	token, err := other.Issue("admin@studio.test", "")
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	_, ok = a.Identify(req)
	assert.False(t, ok)
}

func TestTokenExpiry(t *testing.T) {
	issuer := NewTokenIssuer([]byte("secret"), time.Minute)
	now := time.Date(2025, 5, 20, 9, 0, 0, 0, time.UTC)
	issuer.now = func() time.Time { return now }

	token, err := issuer.Issue("admin@studio.test", "Admin")
	require.NoError(t, err)

	claims, err := issuer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "admin@studio.test", claims.Email)

	now = now.Add(2 * time.Minute)
	_, err = issuer.Parse(token)
	assert.Error(t, err)
}

func TestRequireAdmin(t *testing.T) {
	a := newTestAuthenticator(t)
	var seen string
	h := a.RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = AdminFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/admin/bookings", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"Authentication required"}`, rec.Body.String())

	token, err := a.tokens.Issue("admin@studio.test", "Admin")
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/bookings", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "admin@studio.test", seen)
}

func TestLogoutClearsCookie(t *testing.T) {
	a := newTestAuthenticator(t)
	rec := httptest.NewRecorder()
	a.Logout(rec)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)
	assert.Equal(t, "/admin-login", a.LoginPath())
}

func TestNewAuthenticatorRejectsBadBlockKey(t *testing.T) {
	_, err := NewAuthenticator(config.AdminConfig{SessionBlockKey: "short"}, NewConfigIdentityProvider(nil), nil)
	assert.Error(t, err)
}

func TestIdentifyBearer(t *testing.T) {
	a := newTestAuthenticator(t)
	token, err := a.tokens.Issue("admin@studio.test", "Admin")
	require.NoError(t, err)

	email, ok := a.IdentifyBearer("Bearer " + token)
	assert.True(t, ok)
	assert.Equal(t, "admin@studio.test", email)

	for _, header := range []string{"", token, "Basic " + token, "Bearer ", "Bearer garbage"} {
		_, ok := a.IdentifyBearer(header)
		assert.False(t, ok, header)
	}
}
