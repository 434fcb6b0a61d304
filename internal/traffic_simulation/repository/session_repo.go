package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/GoSim-25-26J-441/v2i-traffic/internal/traffic_simulation/domain"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	sessionKeyPrefix          = "v2i:session:" // v2i:session:{session_id}
	sessionIndexKey           = "v2i:sessions" // set of all session ids
	sessionEventChannelPrefix = "v2i:events:"  // pub/sub channel: v2i:events:{session_id}
	sessionTTL                = 7 * 24 * time.Hour
)

// SessionRepository handles Redis operations for simulation sessions
type SessionRepository struct {
	client *redis.Client
}

// NewSessionRepository creates a new SessionRepository
func NewSessionRepository(client *redis.Client) *SessionRepository {
	return &SessionRepository{client: client}
}

// Create stores a new session
func (r *SessionRepository) Create(ctx context.Context, s *domain.Session) error {
	if s.SessionID == "" {
		s.SessionID = uuid.New().String()
	}
	now := time.Now()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = now
	}

	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	ok, err := r.client.SetNX(ctx, sessionKey(s.SessionID), data, sessionTTL).Result()
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	if !ok {
		return domain.ErrSessionAlreadyExists
	}

	pipe := r.client.Pipeline()
	pipe.SAdd(ctx, sessionIndexKey, s.SessionID)
	pipe.Expire(ctx, sessionIndexKey, sessionTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to index session: %w", err)
	}
	return nil
}

// GetByID retrieves a session by its ID
func (r *SessionRepository) GetByID(ctx context.Context, sessionID string) (*domain.Session, error) {
	data, err := r.client.Get(ctx, sessionKey(sessionID)).Result()
	if err == redis.Nil {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var s domain.Session
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &s, nil
}

// Update overwrites an existing session and publishes it on the event channel
func (r *SessionRepository) Update(ctx context.Context, s *domain.Session) error {
	if _, err := r.GetByID(ctx, s.SessionID); err != nil {
		return err
	}
	s.UpdatedAt = time.Now()

	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := r.client.Set(ctx, sessionKey(s.SessionID), data, sessionTTL).Err(); err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}

	// Subscribers tolerate a missed status event.
	r.client.Publish(ctx, EventChannel(s.SessionID), data)
	return nil
}

// List returns all known session ids
func (r *SessionRepository) List(ctx context.Context) ([]string, error) {
	ids, err := r.client.SMembers(ctx, sessionIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return ids, nil
}

// Delete removes a session
func (r *SessionRepository) Delete(ctx context.Context, sessionID string) error {
	if _, err := r.GetByID(ctx, sessionID); err != nil {
		return err
	}
	pipe := r.client.Pipeline()
	pipe.Del(ctx, sessionKey(sessionID))
	pipe.SRem(ctx, sessionIndexKey, sessionID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// PublishTick publishes a tick summary to the session's event channel
func (r *SessionRepository) PublishTick(ctx context.Context, summary domain.TickSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal tick summary: %w", err)
	}
	if err := r.client.Publish(ctx, EventChannel(summary.SessionID), data).Err(); err != nil {
		return fmt.Errorf("failed to publish tick summary: %w", err)
	}
	return nil
}

// Subscribe opens a subscription on the session's event channel. The caller closes it.
func (r *SessionRepository) Subscribe(ctx context.Context, sessionID string) *redis.PubSub {
	return r.client.Subscribe(ctx, EventChannel(sessionID))
}

// EventChannel returns the pub/sub channel name of a session
func EventChannel(sessionID string) string {
	return sessionEventChannelPrefix + sessionID
}

func sessionKey(sessionID string) string {
	return sessionKeyPrefix + sessionID
}
