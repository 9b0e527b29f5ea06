package supabase

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/supabase-community/supabase-go"
)

var (
	ErrMissingToken = errors.New("missing Authorization header")
	ErrInvalidToken = errors.New("invalid token")
)

// Identity extracts the Supabase user id (the sub claim) from bearer tokens.
// Tokens are checked one of three ways: locally against the project JWT
// secret, remotely by asking the project's Auth server for the token's user,
// or not at all for local development. An Identity with none of these
// rejects every token.
type Identity struct {
	secret   []byte
	remote   func(token string) (string, error)
	insecure bool
}

// NewIdentity verifies HS256 signatures and expiry with the project JWT secret.
func NewIdentity(jwtSecret string) *Identity {
	return &Identity{secret: []byte(jwtSecret)}
}

// NewRemoteIdentity verifies tokens with the Supabase Auth server behind
// client. Each check is one GET /auth/v1/user round trip.
func NewRemoteIdentity(client *supabase.Client) *Identity {
	return &Identity{remote: func(token string) (string, error) {
		user, err := client.Auth.WithToken(token).GetUser()
		if err != nil {
			return "", err
		}
		return user.ID.String(), nil
	}}
}

// NewUnverifiedIdentity only decodes tokens. Anyone can mint a token for
// any user, so it must never face real traffic.
func NewUnverifiedIdentity() *Identity {
	return &Identity{insecure: true}
}

// Verifies reports whether token signatures are checked.
func (i *Identity) Verifies() bool {
	return len(i.secret) > 0 || i.remote != nil
}

func (i *Identity) UserFromRequest(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", ErrMissingToken
	}

	jwtString := strings.TrimPrefix(authHeader, "Bearer ")
	if jwtString == "" || jwtString == authHeader {
		return "", fmt.Errorf("%w: malformed Authorization header", ErrInvalidToken)
	}
	return i.UserFromToken(jwtString)
}

func (i *Identity) UserFromToken(jwtString string) (string, error) {
	var claims jwt.MapClaims

	switch {
	case len(i.secret) > 0:
		token, err := jwt.Parse(jwtString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
			}
			return i.secret, nil
		})
		if err != nil || !token.Valid {
			return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
		claims, _ = token.Claims.(jwt.MapClaims)

	case i.remote != nil:
		userID, err := i.remote(jwtString)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
		if userID == "" {
			return "", fmt.Errorf("%w: auth server returned no user", ErrInvalidToken)
		}
		return userID, nil

	case i.insecure:
		token, _, err := new(jwt.Parser).ParseUnverified(jwtString, jwt.MapClaims{})
		if err != nil {
			return "", fmt.Errorf("%w: invalid JWT format", ErrInvalidToken)
		}
		claims, _ = token.Claims.(jwt.MapClaims)
		if claims != nil {
			if err := claims.Valid(); err != nil {
				return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
			}
		}

	default:
		return "", fmt.Errorf("%w: token verification is not configured", ErrInvalidToken)
	}

	if claims == nil {
		return "", fmt.Errorf("%w: invalid JWT claims", ErrInvalidToken)
	}
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", fmt.Errorf("%w: missing sub in token", ErrInvalidToken)
	}
	return sub, nil
}

// SignToken issues a Supabase-shaped access token for userID.
func SignToken(secret, userID string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("SUPABASE_JWT_SECRET is missing")
	}

	claims := jwt.MapClaims{
		"sub":  userID,
		"aud":  "authenticated",
		"role": "authenticated",
		"exp":  time.Now().Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
