package auth

import (
	"context"
	"testing"
	"time"

	"roomchat/internal/config"
	"roomchat/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(secret string) *Service {
	return NewService(&config.Config{JWT: config.JWTConfig{Secret: []byte(secret), ExpiresIn: time.Hour}})
}

func TestVerifyRoundTrip(t *testing.T) {
	svc := newTestService("s3cret")
	alice := models.Identity{ID: "u-1", DisplayName: "Alice"}

	token, err := svc.IssueToken(alice, 0)
	require.NoError(t, err)

	got, err := svc.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, alice, got)

	got, err = svc.Verify(context.Background(), "Bearer "+token)
	require.NoError(t, err)
	assert.Equal(t, alice, got)
}

func TestVerifyFallsBackToSubjectForName(t *testing.T) {
	svc := newTestService("s3cret")

	token, err := svc.IssueToken(models.Identity{ID: "u-2"}, time.Minute)
	require.NoError(t, err)

	got, err := svc.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "u-2", got.DisplayName)
}

func TestVerifyRejects(t *testing.T) {
	svc := newTestService("s3cret")
	other := newTestService("other")

	foreign, err := other.IssueToken(models.Identity{ID: "u-1"}, time.Minute)
	require.NoError(t, err)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	expiredToken, err := expired.SignedString([]byte("s3cret"))
	require.NoError(t, err)

	anonymous := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{Username: "ghost"})
	anonymousToken, err := anonymous.SignedString([]byte("s3cret"))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not-a-jwt"},
		{"wrong secret", foreign},
		{"expired", expiredToken},
		{"missing subject", anonymousToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Verify(context.Background(), tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestVerifyHonoursCancelledContext(t *testing.T) {
	svc := newTestService("s3cret")
	token, err := svc.IssueToken(models.Identity{ID: "u-1"}, time.Minute)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = svc.Verify(ctx, token)
	assert.ErrorIs(t, err, context.Canceled)
}
