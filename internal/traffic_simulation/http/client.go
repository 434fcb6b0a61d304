package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/GoSim-25-26J-441/v2i-traffic/internal/traffic_simulation/domain"
	"github.com/GoSim-25-26J-441/v2i-traffic/internal/traffic_simulation/simulator"
)

// ErrNotFound is returned for an unknown vehicle or edge.
var ErrNotFound = errors.New("simulator entity not found")

// SimulatorClient talks to the simulator bridge, a small REST service that
// fronts one simulator process per session. It implements simulator.Simulator.
type SimulatorClient struct {
	baseURL    string
	sessionID  string
	network    string
	httpClient *http.Client
}

// NewSimulatorClient creates a client bound to one session
func NewSimulatorClient(baseURL, sessionID, network string, timeout time.Duration) *SimulatorClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &SimulatorClient{
		baseURL:   baseURL,
		sessionID: sessionID,
		network:   network,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type startRequest struct {
	Network string `json:"network"`
}

type vehicleIDsResponse struct {
	VehicleIDs []string `json:"vehicle_ids"`
}

type routeResponse struct {
	Route []string `json:"route"`
}

type waitingTimeResponse struct {
	WaitingTime float64 `json:"waiting_time"`
}

type targetRequest struct {
	EdgeID string `json:"edge_id"`
}

type speedRequest struct {
	Speed float64 `json:"speed"`
}

func (c *SimulatorClient) Start(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, c.sessionPath(":start"), startRequest{Network: c.network}, nil)
}

func (c *SimulatorClient) Step(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, c.sessionPath(":step"), nil, nil)
}

func (c *SimulatorClient) Close(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, c.sessionPath(":close"), nil, nil)
}

func (c *SimulatorClient) VehicleIDs(ctx context.Context) ([]string, error) {
	var resp vehicleIDsResponse
	if err := c.do(ctx, http.MethodGet, c.sessionPath("/vehicles"), nil, &resp); err != nil {
		return nil, err
	}
	return resp.VehicleIDs, nil
}

func (c *SimulatorClient) Vehicle(ctx context.Context, id string) (simulator.Vehicle, error) {
	var v simulator.Vehicle
	if err := c.do(ctx, http.MethodGet, c.sessionPath("/vehicles/"+url.PathEscape(id)), nil, &v); err != nil {
		return simulator.Vehicle{}, err
	}
	if v.ID == "" {
		v.ID = id
	}
	return v, nil
}

func (c *SimulatorClient) Route(ctx context.Context, id string) ([]string, error) {
	var resp routeResponse
	if err := c.do(ctx, http.MethodGet, c.sessionPath("/vehicles/"+url.PathEscape(id)+"/route"), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Route, nil
}

func (c *SimulatorClient) WaitingTime(ctx context.Context, id string) (float64, error) {
	var resp waitingTimeResponse
	if err := c.do(ctx, http.MethodGet, c.sessionPath("/vehicles/"+url.PathEscape(id)+"/waiting-time"), nil, &resp); err != nil {
		return 0, err
	}
	return resp.WaitingTime, nil
}

func (c *SimulatorClient) EdgeStats(ctx context.Context, edgeID string) (simulator.EdgeStats, error) {
	var st simulator.EdgeStats
	if err := c.do(ctx, http.MethodGet, c.sessionPath("/edges/"+url.PathEscape(edgeID)+"/stats"), nil, &st); err != nil {
		return simulator.EdgeStats{}, err
	}
	return st, nil
}

func (c *SimulatorClient) ChangeTarget(ctx context.Context, vehicleID, edgeID string) error {
	return c.do(ctx, http.MethodPut, c.sessionPath("/vehicles/"+url.PathEscape(vehicleID)+"/target"), targetRequest{EdgeID: edgeID}, nil)
}

func (c *SimulatorClient) SetSpeed(ctx context.Context, vehicleID string, speed float64) error {
	return c.do(ctx, http.MethodPut, c.sessionPath("/vehicles/"+url.PathEscape(vehicleID)+"/speed"), speedRequest{Speed: speed}, nil)
}

func (c *SimulatorClient) sessionPath(suffix string) string {
	return fmt.Sprintf("%s/v1/simulations/%s%s", c.baseURL, url.PathEscape(c.sessionID), suffix)
}

// do sends one request. Transport failures and gateway errors mean the
// simulator process is gone and are reported as domain.ErrSimulatorUnavailable.
func (c *SimulatorClient) do(ctx context.Context, method, endpoint string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		jsonData, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", domain.ErrSimulatorUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read response: %v", domain.ErrSimulatorUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s %s", ErrNotFound, method, endpoint)
	case resp.StatusCode == http.StatusBadGateway,
		resp.StatusCode == http.StatusServiceUnavailable,
		resp.StatusCode == http.StatusGatewayTimeout:
		return fmt.Errorf("%w: simulator bridge returned status %d: %s", domain.ErrSimulatorUnavailable, resp.StatusCode, string(respBody))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("simulator bridge returned status %d: %s", resp.StatusCode, string(respBody))
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

var _ simulator.Simulator = (*SimulatorClient)(nil)
