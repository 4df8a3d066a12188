package main

import (
	"context"
	"testing"
	"time"

	"github.com/kovalyov-valentin/newsletter-board/internal/auth"
	"github.com/kovalyov-valentin/newsletter-board/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryConfig() config.Config {
	return config.Config{
		Backend:             config.BackendMemory,
		SessionTTL:          time.Hour,
		SessionReapInterval: time.Minute,
	}
}

func TestOpenBackend(t *testing.T) {
	ctx := context.Background()

	b, err := openBackend(ctx, memoryConfig())
	require.NoError(t, err)
	defer b.close()

	assert.Nil(t, b.watch)
	assert.False(t, b.durableAdmins)

	_, err = openBackend(ctx, config.Config{Backend: "mongo"})
	assert.ErrorContains(t, err, `unknown backend "mongo"`)
}

func TestBootstrapAdmin(t *testing.T) {
	ctx := context.Background()
	cfg := memoryConfig()

	b, err := openBackend(ctx, cfg)
	require.NoError(t, err)

	authService := auth.New(b.admins, cfg.SessionTTL, cfg.SessionReapInterval)

	require.NoError(t, bootstrapAdmin(ctx, authService, cfg, false))

	cfg.AdminName, cfg.AdminEmail, cfg.AdminPassword = "Ana", "ana@example.com", "segredo1"
	require.NoError(t, bootstrapAdmin(ctx, authService, cfg, false))
	// Повторный старт не падает на существующем администраторе
	require.NoError(t, bootstrapAdmin(ctx, authService, cfg, false))

	token, err := authService.SignIn(ctx, "ana@example.com", "segredo1")
	require.NoError(t, err)
	assert.True(t, authService.Active(ctx, token))

	cfg.AdminEmail, cfg.AdminPassword = "bia@example.com", "123"
	assert.ErrorIs(t, bootstrapAdmin(ctx, authService, cfg, false), auth.ErrWeakPassword)
}
