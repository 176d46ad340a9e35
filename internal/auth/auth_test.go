package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bibliotech/internal/config"
	"bibliotech/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func testManager() *TokenManager {
	return NewTokenManager(config.AuthConfig{
		JWTSecret: "0123456789abcdef0123",
		Issuer:    "bibliotech",
		TokenTTL:  time.Hour,
	})
}

func TestTokenManager_RoundTrip(t *testing.T) {
	m := testManager()
	user := &models.User{ID: 42, Role: models.RoleAdmin}

	token, expires, err := m.Issue(user, "session-1")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expires, 5*time.Second)

	claims, err := m.Parse(token)
	require.NoError(t, err)
	id, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.Equal(t, "session-1", claims.ID)
	assert.True(t, claims.IsAdmin())
}

func TestTokenManager_Rejects(t *testing.T) {
	m := testManager()
	user := &models.User{ID: 7, Role: models.RoleReader}

	t.Run("expired", func(t *testing.T) {
		m.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
		token, _, err := m.Issue(user, "s")
		require.NoError(t, err)
		m.now = time.Now

		_, err = m.Parse(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewTokenManager(config.AuthConfig{JWTSecret: "another-secret-value", Issuer: "bibliotech"})
		token, _, err := other.Issue(user, "s")
		require.NoError(t, err)

		_, err = m.Parse(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other := NewTokenManager(config.AuthConfig{JWTSecret: "0123456789abcdef0123", Issuer: "elsewhere"})
		token, _, err := other.Issue(user, "s")
		require.NoError(t, err)

		_, err = m.Parse(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("none algorithm", func(t *testing.T) {
		claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "7",
			ID:        "s",
			Issuer:    "bibliotech",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}}
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = m.Parse(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("missing session", func(t *testing.T) {
		token, _, err := m.Issue(user, "")
		require.NoError(t, err)

		_, err = m.Parse(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := m.Parse("not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", hash)

	assert.NoError(t, CheckPassword(hash, "correct horse"))
	assert.ErrorIs(t, CheckPassword(hash, "wrong"), ErrWrongPassword)
	assert.Error(t, CheckPassword("not-a-hash", "x"))
}

func TestGoogleProvider(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "the-code", r.Form.Get("code"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer at", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"g-1","email":"ana@example.com","verified_email":true,"name":"Ana"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := NewGoogleProvider(config.GoogleOAuthConfig{
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURL:  "http://localhost/callback",
	})
	p.oauth.Endpoint = oauth2.Endpoint{
		AuthURL:   srv.URL + "/auth",
		TokenURL:  srv.URL + "/token",
		AuthStyle: oauth2.AuthStyleInParams,
	}
	p.userInfoURL = srv.URL + "/userinfo"

	assert.Contains(t, p.AuthCodeURL("xyz"), "state=xyz")

	profile, err := p.Exchange(context.Background(), "the-code")
	require.NoError(t, err)
	assert.Equal(t, "g-1", profile.ID)
	assert.Equal(t, "ana@example.com", profile.Email)
	assert.True(t, profile.VerifiedEmail)
}
