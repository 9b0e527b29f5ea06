package supabase

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "super-secret-jwt-token-with-at-least-32-characters"

func TestIdentity_Verified(t *testing.T) {
	token, err := SignToken(testSecret, "user-123", time.Hour)
	require.NoError(t, err)

	identity := NewIdentity(testSecret)
	require.True(t, identity.Verifies())

	r := httptest.NewRequest("GET", "/sessions", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	userID, err := identity.UserFromRequest(r)
	require.NoError(t, err)
	assert.Equal(t, "user-123", userID)

	_, err = NewIdentity("another-secret").UserFromToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestIdentity_RejectsExpiredToken(t *testing.T) {
	token, err := SignToken(testSecret, "user-123", -time.Minute)
	require.NoError(t, err)

	_, err = NewIdentity(testSecret).UserFromToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = NewUnverifiedIdentity().UserFromToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestIdentity_RejectsForeignSignature(t *testing.T) {
	forged, err := SignToken("attacker-chosen-key", "victim", time.Hour)
	require.NoError(t, err)

	_, err = NewIdentity(testSecret).UserFromToken(forged)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestIdentity_WithoutVerifierRejectsEverything(t *testing.T) {
	token, err := SignToken("whatever-secret", "user-456", time.Hour)
	require.NoError(t, err)

	identity := NewIdentity("")
	assert.False(t, identity.Verifies())
	_, err = identity.UserFromToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestIdentity_Unverified(t *testing.T) {
	token, err := SignToken("whatever-secret", "user-456", time.Hour)
	require.NoError(t, err)

	identity := NewUnverifiedIdentity()
	assert.False(t, identity.Verifies())
	userID, err := identity.UserFromToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-456", userID)
}

func TestIdentity_Remote(t *testing.T) {
	const userID = "5b0e8d4e-8c55-4f0b-9a38-0f4a6b0c2f11"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/v1/user" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer good-token" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"msg":"invalid JWT"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"` + userID + `","aud":"authenticated","role":"authenticated"}`))
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, "anon-key")
	require.NoError(t, err)
	identity := NewRemoteIdentity(client)
	assert.True(t, identity.Verifies())

	got, err := identity.UserFromToken("good-token")
	require.NoError(t, err)
	assert.Equal(t, userID, got)

	_, err = identity.UserFromToken("forged-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestIdentity_BadInput(t *testing.T) {
	identity := NewIdentity(testSecret)

	r := httptest.NewRequest("GET", "/sessions", nil)
	_, err := identity.UserFromRequest(r)
	assert.ErrorIs(t, err, ErrMissingToken)

	r.Header.Set("Authorization", "Basic abc")
	_, err = identity.UserFromRequest(r)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = identity.UserFromToken("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)

	noSub := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := noSub.SignedString([]byte(testSecret))
	require.NoError(t, err)
	_, err = identity.UserFromToken(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "user-1"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = identity.UserFromToken(unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSignToken_RequiresSecret(t *testing.T) {
	_, err := SignToken("", "user-1", time.Hour)
	assert.Error(t, err)
}
