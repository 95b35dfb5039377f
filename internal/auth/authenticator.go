// Package auth resolves the credential presented when a meeting connection is opened
// into the identity that connection carries for its whole lifetime.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"meetsync/backend/internal/models"

	jwt "github.com/golang-jwt/jwt/v5"
)

// ErrUnauthenticated is returned for a missing, malformed, expired or foreign token,
// and for a token whose user no longer exists.
var ErrUnauthenticated = errors.New("unauthenticated")

const issuer = "meetsync"

// Claims is the payload of tokens issued by the account service.
type Claims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

// UserLookup is the part of persistence the authenticator needs.
type UserLookup interface {
	GetUserByID(ctx context.Context, userID string) (*models.User, error)
}

type Authenticator struct {
	secret []byte
	users  UserLookup
}

func NewAuthenticator(secret string, users UserLookup) *Authenticator {
	return &Authenticator{secret: []byte(secret), users: users}
}

// Authenticate verifies the token signature and expiry, then confirms the user still exists.
func (a *Authenticator) Authenticate(ctx context.Context, tokenString string) (models.Identity, error) {
	if tokenString == "" {
		return models.Identity{}, ErrUnauthenticated
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return models.Identity{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return models.Identity{}, ErrUnauthenticated
	}

	user, err := a.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		return models.Identity{}, fmt.Errorf("%w: user %s: %v", ErrUnauthenticated, claims.UserID, err)
	}
	return models.IdentityOf(user), nil
}

// GenerateToken signs a token for userID. The account service issues tokens in production;
// this is the same format.
func GenerateToken(secret, userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// TokenFromRequest reads the bearer token from the Authorization header, falling back to
// the "token" query parameter because browsers cannot set headers on WebSocket upgrades.
func TokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(header[len("Bearer "):])
	}
	return r.URL.Query().Get("token")
}
