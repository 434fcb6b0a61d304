package http

import (
	"context"
	"errors"
	"net/http"
	"sort"

	"github.com/GoSim-25-26J-441/v2i-traffic/internal/traffic_simulation/domain"
	"github.com/GoSim-25-26J-441/v2i-traffic/internal/traffic_simulation/placement"
	"github.com/GoSim-25-26J-441/v2i-traffic/internal/traffic_simulation/service"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RerouteReader reads persisted reroute records of finished sessions.
type RerouteReader interface {
	GetBySessionID(ctx context.Context, sessionID string) ([]domain.RerouteRecord, error)
	CountBySessionID(ctx context.Context, sessionID string) (int64, error)
}

// TelemetryReader reads the persisted telemetry series of finished sessions.
type TelemetryReader interface {
	GetBySessionID(ctx context.Context, sessionID string) ([]domain.TelemetryPoint, error)
	CountBySessionID(ctx context.Context, sessionID string) (int64, error)
}

// EventSubscriber opens the pub/sub channel of a session.
type EventSubscriber interface {
	Subscribe(ctx context.Context, sessionID string) *redis.PubSub
}

// Handler serves the session, reporting and sensor placement API
type Handler struct {
	sessions   *service.SessionService
	manager    *service.Manager
	placements *service.PlacementService
	networks   *service.NetworkCatalog
	reroutes   RerouteReader
	telemetry  TelemetryReader
	events     EventSubscriber
	placement  placement.Config
	log        zerolog.Logger
}

type HandlerDeps struct {
	Sessions   *service.SessionService
	Manager    *service.Manager
	Placements *service.PlacementService
	Networks   *service.NetworkCatalog
	Reroutes   RerouteReader
	Telemetry  TelemetryReader
	Events     EventSubscriber
	Logger     zerolog.Logger

	// Placement holds the optimizer defaults; request fields override them.
	Placement placement.Config
}

// New creates a new Handler
func New(dep HandlerDeps) *Handler {
	defaults := placement.DefaultConfig()
	if dep.Placement.MinDistance <= 0 {
		dep.Placement.MinDistance = defaults.MinDistance
	}
	if dep.Placement.MinLaneLength <= 0 {
		dep.Placement.MinLaneLength = defaults.MinLaneLength
	}
	if dep.Placement.Policy == nil {
		dep.Placement.Policy = defaults.Policy
	}
	return &Handler{
		placement:  dep.Placement,
		sessions:   dep.Sessions,
		manager:    dep.Manager,
		placements: dep.Placements,
		networks:   dep.Networks,
		reroutes:   dep.Reroutes,
		telemetry:  dep.Telemetry,
		events:     dep.Events,
		log:        dep.Logger,
	}
}

type networkRow struct {
	Name     string `json:"name"`
	Nodes    int    `json:"nodes"`
	Edges    int    `json:"edges"`
	LastEdge string `json:"last_edge"`
}

// ListNetworks returns the loaded networks with their sizes
func (h *Handler) ListNetworks(c *gin.Context) {
	names := h.networks.Names()
	rows := make([]networkRow, 0, len(names))
	for _, name := range names {
		g, ok := h.networks.Get(name)
		if !ok {
			continue
		}
		rows = append(rows, networkRow{Name: name, Nodes: g.NumNodes(), Edges: g.NumEdges(), LastEdge: g.LastEdge()})
	}
	c.JSON(http.StatusOK, gin.H{"networks": names, "details": rows})
}

// CreateSession creates a session and optionally starts it
func (h *Handler) CreateSession(c *gin.Context) {
	var body struct {
		Network          string                 `json:"network" binding:"required"`
		DestinationEdge  string                 `json:"destination_edge,omitempty"`
		DetectionEnabled bool                   `json:"detection_enabled,omitempty"`
		Start            bool                   `json:"start,omitempty"`
		Metadata         map[string]interface{} `json:"metadata,omitempty"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	session, err := h.sessions.CreateSession(c.Request.Context(), &domain.CreateSessionRequest{
		Network:          body.Network,
		DestinationEdge:  body.DestinationEdge,
		DetectionEnabled: body.DetectionEnabled,
		Metadata:         body.Metadata,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	if body.Start {
		if err := h.manager.Start(c.Request.Context(), session.SessionID); err != nil {
			c.JSON(http.StatusCreated, gin.H{
				"session": session,
				"warning": "session created but failed to start: " + err.Error(),
			})
			return
		}
		if s, err := h.sessions.GetSession(c.Request.Context(), session.SessionID); err == nil {
			session = s
		}
	}

	c.JSON(http.StatusCreated, gin.H{"session": session})
}

// ListSessions returns the ids of all stored sessions
func (h *Handler) ListSessions(c *gin.Context) {
	ids, err := h.sessions.ListSessions(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": ids})
}

// DeleteSession deletes a session that is not running
func (h *Handler) DeleteSession(c *gin.Context) {
	id := c.Param("id")
	if _, err := h.manager.Runner(id); err == nil {
		h.writeError(c, domain.ErrInvalidStatus)
		return
	}
	if err := h.sessions.DeleteSession(c.Request.Context(), id); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "session deleted"})
}

// GetSession retrieves a session by ID
func (h *Handler) GetSession(c *gin.Context) {
	session, err := h.sessions.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": session})
}

// UpdateSession starts or stops a session
func (h *Handler) UpdateSession(c *gin.Context) {
	id := c.Param("id")
	var body struct {
		Status   string                 `json:"status"`
		Metadata map[string]interface{} `json:"metadata,omitempty"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	ctx := c.Request.Context()
	var err error
	switch body.Status {
	case "":
	case domain.StatusRunning:
		err = h.manager.Start(ctx, id)
	case domain.StatusStopped:
		if _, err = h.sessions.GetSession(ctx, id); err == nil {
			err = h.manager.Stop(ctx, id)
		}
	default:
		err = domain.ErrInvalidStatus
	}
	if err != nil {
		h.writeError(c, err)
		return
	}

	if len(body.Metadata) > 0 {
		if _, err := h.sessions.UpdateSession(ctx, id, &domain.UpdateSessionRequest{Metadata: body.Metadata}); err != nil {
			h.writeError(c, err)
			return
		}
	}

	session, err := h.sessions.GetSession(ctx, id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": session})
}

// GetCongestion returns the congested edges and per-edge status of the last tick
func (h *Handler) GetCongestion(c *gin.Context) {
	runner, ok := h.liveRunner(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"tick":            runner.Ticks(),
		"congested_edges": runner.Engine().CongestedEdges(),
		"edge_statuses":   runner.EdgeStatuses(),
	})
}

type vehicleRow struct {
	ID       string  `json:"id"`
	Edge     string  `json:"edge"`
	Speed    float64 `json:"speed"`
	Rerouted bool    `json:"rerouted"`
}

// GetVehicles returns the vehicle table and the rerouting distribution
func (h *Handler) GetVehicles(c *gin.Context) {
	runner, ok := h.liveRunner(c)
	if !ok {
		return
	}
	engine := runner.Engine()

	snapshot := engine.Vehicles()
	rows := make([]vehicleRow, 0, len(snapshot))
	for id, v := range snapshot {
		_, rerouted := engine.Record(id)
		rows = append(rows, vehicleRow{ID: id, Edge: v.Edge, Speed: v.Speed, Rerouted: rerouted})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })

	rerouted, notRerouted := engine.Distribution()
	c.JSON(http.StatusOK, gin.H{
		"tick":     runner.Ticks(),
		"vehicles": rows,
		"distribution": gin.H{
			"rerouted":     rerouted,
			"not_rerouted": notRerouted,
		},
	})
}

// GetReroutes returns the reroute table, live while running and from storage afterwards
func (h *Handler) GetReroutes(c *gin.Context) {
	id := c.Param("id")
	if runner, err := h.manager.Runner(id); err == nil {
		resp := gin.H{"reroutes": runner.Engine().Records()}
		if latest, ok := runner.Engine().Latest(); ok {
			resp["latest"] = latest
		}
		c.JSON(http.StatusOK, resp)
		return
	}

	if _, err := h.sessions.GetSession(c.Request.Context(), id); err != nil {
		h.writeError(c, err)
		return
	}
	records, err := h.reroutes.GetBySessionID(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if records == nil {
		records = []domain.RerouteRecord{}
	}
	total, err := h.reroutes.CountBySessionID(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reroutes": records, "rerouted_vehicles": total})
}

// GetTelemetry returns the congestion and rerouting series
func (h *Handler) GetTelemetry(c *gin.Context) {
	id := c.Param("id")
	if runner, err := h.manager.Runner(id); err == nil {
		c.JSON(http.StatusOK, gin.H{"telemetry": runner.Aggregator().Points()})
		return
	}

	if _, err := h.sessions.GetSession(c.Request.Context(), id); err != nil {
		h.writeError(c, err)
		return
	}
	points, err := h.telemetry.GetBySessionID(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if points == nil {
		points = []domain.TelemetryPoint{}
	}
	ticks, err := h.telemetry.CountBySessionID(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"telemetry": points, "recorded_ticks": ticks})
}

// PlaceSensors runs the sensor placement optimizer on a loaded network
func (h *Handler) PlaceSensors(c *gin.Context) {
	var body struct {
		Network       string  `json:"network" binding:"required"`
		MinDistance   float64 `json:"min_distance,omitempty"`
		MinLaneLength float64 `json:"min_lane_length,omitempty"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	cfg := h.placement
	if body.MinDistance > 0 {
		cfg.MinDistance = body.MinDistance
	}
	if body.MinLaneLength > 0 {
		cfg.MinLaneLength = body.MinLaneLength
	}

	res, err := h.placements.Place(c.Request.Context(), body.Network, cfg)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"placement": res})
}

func (h *Handler) liveRunner(c *gin.Context) (*service.Runner, bool) {
	id := c.Param("id")
	runner, err := h.manager.Runner(id)
	if err == nil {
		return runner, true
	}
	if _, serr := h.sessions.GetSession(c.Request.Context(), id); serr != nil {
		h.writeError(c, serr)
		return nil, false
	}
	h.writeError(c, err)
	return nil, false
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
	case errors.Is(err, domain.ErrInvalidStatus):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
	case errors.Is(err, domain.ErrLoad):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrSessionNotRunning):
		c.JSON(http.StatusConflict, gin.H{"error": "session not running"})
	case errors.Is(err, domain.ErrSimulatorUnavailable):
		c.JSON(http.StatusBadGateway, gin.H{"error": "simulator unavailable"})
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
