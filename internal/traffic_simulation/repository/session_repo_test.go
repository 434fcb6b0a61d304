package repository

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/GoSim-25-26J-441/v2i-traffic/internal/traffic_simulation/domain"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func TestSessionRepository_CreateAndGet(t *testing.T) {
	client, mr := setupRedis(t)
	repo := NewSessionRepository(client)
	ctx := context.Background()

	s := &domain.Session{Network: "grid", Status: domain.StatusPending}
	require.NoError(t, repo.Create(ctx, s))
	assert.NotEmpty(t, s.SessionID)
	assert.False(t, s.CreatedAt.IsZero())

	assert.True(t, mr.Exists("v2i:session:"+s.SessionID))
	assert.Greater(t, mr.TTL("v2i:session:"+s.SessionID), time.Duration(0))

	got, err := repo.GetByID(ctx, s.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "grid", got.Network)
	assert.Equal(t, domain.StatusPending, got.Status)

	ids, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{s.SessionID}, ids)
}

func TestSessionRepository_CreateDuplicate(t *testing.T) {
	client, _ := setupRedis(t)
	repo := NewSessionRepository(client)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &domain.Session{SessionID: "s1", Status: domain.StatusPending}))
	err := repo.Create(ctx, &domain.Session{SessionID: "s1", Status: domain.StatusPending})
	assert.ErrorIs(t, err, domain.ErrSessionAlreadyExists)
}

func TestSessionRepository_GetMissing(t *testing.T) {
	client, _ := setupRedis(t)
	repo := NewSessionRepository(client)

	_, err := repo.GetByID(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	err = repo.Update(context.Background(), &domain.Session{SessionID: "nope"})
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestSessionRepository_UpdateAndDelete(t *testing.T) {
	client, _ := setupRedis(t)
	repo := NewSessionRepository(client)
	ctx := context.Background()

	s := &domain.Session{SessionID: "s1", Status: domain.StatusPending}
	require.NoError(t, repo.Create(ctx, s))

	s.Status = domain.StatusRunning
	s.Ticks = 12
	require.NoError(t, repo.Update(ctx, s))

	got, err := repo.GetByID(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRunning, got.Status)
	assert.Equal(t, int64(12), got.Ticks)

	require.NoError(t, repo.Delete(ctx, "s1"))
	_, err = repo.GetByID(ctx, "s1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	ids, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestSessionRepository_PublishTick(t *testing.T) {
	client, _ := setupRedis(t)
	repo := NewSessionRepository(client)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sub := repo.Subscribe(ctx, "s1")
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, repo.PublishTick(ctx, domain.TickSummary{
		SessionID:        "s1",
		Tick:             3,
		CongestedEdges:   2,
		ReroutedVehicles: 1,
	}))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	assert.Equal(t, "v2i:events:s1", msg.Channel)

	var got domain.TickSummary
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
	assert.Equal(t, int64(3), got.Tick)
	assert.Equal(t, 2, got.CongestedEdges)
}
