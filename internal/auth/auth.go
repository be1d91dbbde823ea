// Package auth issues and verifies the bearer tokens guarding the streaming
// API. Tokens are HS256 JWTs signed with the configured shared secret.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrTokenInvalid = errors.New("invalid token")

const defaultTokenTTL = time.Hour

type Identity struct {
	User   string
	Claims jwt.MapClaims
}

type Service struct {
	secret   []byte
	tokenTTL time.Duration
}

func NewService(secret string) *Service {
	return &Service{secret: []byte(secret), tokenTTL: defaultTokenTTL}
}

// Issue signs a token for the given user, expiring after the service's TTL.
func (s *Service) Issue(user string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user": user,
		"iat":  now.Unix(),
		"exp":  now.Add(s.tokenTTL).Unix(),
	})
	return token.SignedString(s.secret)
}

// Verify checks signature and expiry and returns the decoded identity.
func (s *Service) Verify(raw string) (Identity, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithExpirationRequired(),
	)
	parsed, err := parser.Parse(raw, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, ErrTokenInvalid
	}
	user, _ := claims["user"].(string)
	return Identity{User: user, Claims: claims}, nil
}
