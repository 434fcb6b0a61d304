package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/GoSim-25-26J-441/v2i-traffic/internal/traffic_simulation/domain"
)

// SessionStore persists sessions. Implemented by repository.SessionRepository.
type SessionStore interface {
	Create(ctx context.Context, s *domain.Session) error
	GetByID(ctx context.Context, sessionID string) (*domain.Session, error)
	Update(ctx context.Context, s *domain.Session) error
	List(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, sessionID string) error
}

// SessionService handles business logic for simulation sessions
type SessionService struct {
	store    SessionStore
	networks *NetworkCatalog
}

// NewSessionService creates a new SessionService
func NewSessionService(store SessionStore, networks *NetworkCatalog) *SessionService {
	return &SessionService{store: store, networks: networks}
}

// CreateSession validates the network and destination and stores a pending session
func (s *SessionService) CreateSession(ctx context.Context, req *domain.CreateSessionRequest) (*domain.Session, error) {
	g, ok := s.networks.Get(req.Network)
	if !ok {
		return nil, fmt.Errorf("%w: unknown network %q", domain.ErrLoad, req.Network)
	}
	if req.DestinationEdge != "" {
		if _, ok := g.Edge(req.DestinationEdge); !ok {
			return nil, fmt.Errorf("%w: destination edge %q not in network %q", domain.ErrLoad, req.DestinationEdge, req.Network)
		}
	}

	now := time.Now()
	session := &domain.Session{
		Network:          req.Network,
		Status:           domain.StatusPending,
		DestinationEdge:  req.DestinationEdge,
		DetectionEnabled: req.DetectionEnabled,
		CreatedAt:        now,
		UpdatedAt:        now,
		Metadata:         req.Metadata,
	}
	if session.Metadata == nil {
		session.Metadata = make(map[string]interface{})
	}

	if err := s.store.Create(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// GetSession retrieves a session by its ID
func (s *SessionService) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	return s.store.GetByID(ctx, sessionID)
}

// UpdateSession applies the non-nil fields of req
func (s *SessionService) UpdateSession(ctx context.Context, sessionID string, req *domain.UpdateSessionRequest) (*domain.Session, error) {
	session, err := s.store.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if req.Status != nil {
		if !isValidStatus(*req.Status) {
			return nil, domain.ErrInvalidStatus
		}
		session.Status = *req.Status

		if *req.Status == domain.StatusStopped || *req.Status == domain.StatusFailed {
			now := time.Now()
			session.StoppedAt = &now
		}
	}
	if req.Ticks != nil {
		session.Ticks = *req.Ticks
	}
	if req.Error != nil {
		session.Error = *req.Error
	}

	if len(req.Metadata) > 0 {
		if session.Metadata == nil {
			session.Metadata = make(map[string]interface{})
		}
		for k, v := range req.Metadata {
			session.Metadata[k] = v
		}
	}

	if err := s.store.Update(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// ListSessions returns all session ids, sorted
func (s *SessionService) ListSessions(ctx context.Context) ([]string, error) {
	ids, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}

// DeleteSession deletes a session that is not running. Persisted reroute
// records and telemetry are kept.
func (s *SessionService) DeleteSession(ctx context.Context, sessionID string) error {
	session, err := s.store.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.Status == domain.StatusRunning {
		return fmt.Errorf("%w: session %s is running", domain.ErrInvalidStatus, sessionID)
	}
	return s.store.Delete(ctx, sessionID)
}

func isValidStatus(status string) bool {
	return status == domain.StatusPending ||
		status == domain.StatusRunning ||
		status == domain.StatusStopped ||
		status == domain.StatusFailed
}
