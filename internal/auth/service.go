package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"roomchat/internal/config"
	"roomchat/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims is the token body issued by the identity provider. The subject is
// the identity id; Username becomes the display name.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

type Service struct {
	secret    []byte
	expiresIn time.Duration
}

func NewService(cfg *config.Config) *Service {
	return &Service{
		secret:    cfg.JWT.Secret,
		expiresIn: cfg.JWT.ExpiresIn,
	}
}

// Verify resolves a bearer token to the identity it was issued for.
func (s *Service) Verify(ctx context.Context, tokenString string) (models.Identity, error) {
	if err := ctx.Err(); err != nil {
		return models.Identity{}, err
	}

	tokenString = strings.TrimSpace(strings.TrimPrefix(tokenString, "Bearer "))
	if tokenString == "" {
		return models.Identity{}, fmt.Errorf("%w: empty token", ErrInvalidToken)
	}

	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return models.Identity{}, err
	}

	if claims.Subject == "" {
		return models.Identity{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	name := strings.TrimSpace(claims.Username)
	if name == "" {
		name = claims.Subject
	}

	return models.Identity{ID: claims.Subject, DisplayName: name}, nil
}

func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, ErrInvalidToken
}

// IssueToken mints a token for identity. Production tokens come from the
// identity provider; this exists for cmd/devtoken and tests.
func (s *Service) IssueToken(identity models.Identity, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = s.expiresIn
	}

	now := time.Now()
	claims := Claims{
		Username: identity.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}
