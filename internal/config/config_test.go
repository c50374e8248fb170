package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookup(vars map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		value, ok := vars[key]
		return value, ok
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := load(lookup(map[string]string{"JWT_SECRET": "s3cret"}))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Port)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, []byte("s3cret"), cfg.JWT.Secret)
	assert.Equal(t, 24*time.Hour, cfg.JWT.ExpiresIn)
	assert.Equal(t, 100, cfg.Chat.HistoryCap)
	assert.Equal(t, 3*time.Second, cfg.Chat.TypingTimeout)
	assert.Equal(t, 2000, cfg.Chat.MaxMessageLength)
	assert.Empty(t, cfg.Database.URL)

	require.Len(t, cfg.Chat.SeedRooms, 3)
	assert.Equal(t, SeedRoom{Name: "Tech Talk", Description: "Discuss the latest technology trends"}, cfg.Chat.SeedRooms[1])
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := load(lookup(map[string]string{
		"JWT_SECRET":     "s3cret",
		"PORT":           "9000",
		"ENV":            "production",
		"HISTORY_CAP":    "10",
		"TYPING_TIMEOUT": "500ms",
		"SEED_ROOMS":     "Lobby|Say hi; Ops",
		"DATABASE_URL":   "postgres://localhost/chat",
	}))
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Port)
	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, 10, cfg.Chat.HistoryCap)
	assert.Equal(t, 500*time.Millisecond, cfg.Chat.TypingTimeout)
	assert.Equal(t, "postgres://localhost/chat", cfg.Database.URL)
	assert.Equal(t, []SeedRoom{{Name: "Lobby", Description: "Say hi"}, {Name: "Ops"}}, cfg.Chat.SeedRooms)
}

func TestLoadSeedRooms_EmptyDisablesSeeding(t *testing.T) {
	cfg, err := load(lookup(map[string]string{"JWT_SECRET": "s3cret", "SEED_ROOMS": ""}))
	require.NoError(t, err)
	assert.Empty(t, cfg.Chat.SeedRooms)

	cfg, err = load(lookup(map[string]string{"JWT_SECRET": "s3cret", "SEED_ROOMS": " ; "}))
	require.NoError(t, err)
	assert.Empty(t, cfg.Chat.SeedRooms)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		vars map[string]string
	}{
		{"missing secret", map[string]string{}},
		{"bad duration", map[string]string{"JWT_SECRET": "x", "TYPING_TIMEOUT": "soon"}},
		{"bad integer", map[string]string{"JWT_SECRET": "x", "HISTORY_CAP": "many"}},
		{"zero cap", map[string]string{"JWT_SECRET": "x", "HISTORY_CAP": "0"}},
		{"bad seed", map[string]string{"JWT_SECRET": "x", "SEED_ROOMS": "|nameless"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := load(lookup(tt.vars))
			assert.Error(t, err)
		})
	}
}
