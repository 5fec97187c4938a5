package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chemvis/internal/storage"
	"chemvis/internal/shared/testutil"
)

type staticCounter int

func (c staticCounter) ClientCount() int { return int(c) }

// pingingStore wraps a store with a failing Ping
type pingingStore struct {
	storage.Store
	err error
}

func (p pingingStore) Ping(context.Context) error { return p.err }

func TestHealthService_Readiness(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	ctx := context.Background()

	t.Run("ready", func(t *testing.T) {
		hs := NewHealthService("1.2.0", "", storage.NewMemoryStore(5), staticCounter(2), logger)
		status := hs.ReadinessCheck(ctx)

		assert.True(t, status.Ready())
		assert.Equal(t, "0 of 5 datasets retained", status.Services["storage"].Message)
		assert.Equal(t, "2 subscribers", status.Services["websocket"].Message)
	})

	t.Run("websocket disabled", func(t *testing.T) {
		hs := NewHealthService("1.2.0", "", storage.NewMemoryStore(5), nil, logger)
		status := hs.ReadinessCheck(ctx)

		assert.True(t, status.Ready())
		assert.Equal(t, "disabled", status.Services["websocket"].Message)
	})

	t.Run("store ping fails", func(t *testing.T) {
		store := pingingStore{Store: storage.NewMemoryStore(5), err: errors.New("connection refused")}
		hs := NewHealthService("1.2.0", "", store, nil, logger)
		status := hs.ReadinessCheck(ctx)

		assert.False(t, status.Ready())
		assert.Equal(t, "not_ready", status.Status)
		assert.Contains(t, status.Services["storage"].Message, "connection refused")
	})

	t.Run("no store", func(t *testing.T) {
		hs := NewHealthService("1.2.0", "", nil, nil, logger)
		assert.False(t, hs.ReadinessCheck(ctx).Ready())
	})
}

func TestHealthService_Liveness(t *testing.T) {
	hs := NewHealthService("1.2.0", "2024-03-01", storage.NewMemoryStore(5), nil, nil)

	health := hs.HealthCheck(context.Background())
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "1.2.0", health.Version)

	live := hs.LivenessCheck(context.Background())
	assert.Equal(t, "alive", live.Status)
	require.Contains(t, live.Runtime, "goroutines")

	version := hs.Version()
	assert.Equal(t, "1.2.0", version["version"])
	assert.Equal(t, "2024-03-01", version["build_time"])
}
