package command

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"droneops-mission/internal/mission"
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	URL    string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.URL, e.Status, strings.TrimSpace(e.Body))
}

// Client sends commands to vehicle command servers.
type Client struct {
	addrs map[string]string
	http  *http.Client
	now   func() time.Time
}

// NewClient creates a client. addrs maps vehicle ID to base URL, e.g.
// "http://10.0.0.2:5000". A nil hc uses a client with a 10s timeout.
func NewClient(addrs map[string]string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	m := make(map[string]string, len(addrs))
	for id, a := range addrs {
		m[id] = strings.TrimRight(a, "/")
	}
	return &Client{addrs: m, http: hc, now: time.Now}
}

func (c *Client) url(vehicleID, path string) (string, error) {
	base, ok := c.addrs[vehicleID]
	if !ok {
		return "", backoff.Permanent(fmt.Errorf("%w: %s", ErrUnknownVehicle, vehicleID))
	}
	return base + path, nil
}

// do issues a request. 4xx responses are wrapped as permanent so retries
// stop immediately.
func (c *Client) do(ctx context.Context, method, vehicleID, path string, body []byte) error {
	u, err := c.url(vehicleID, path)
	if err != nil {
		return err
	}
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return backoff.Permanent(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	serr := &StatusError{URL: u, Status: resp.StatusCode, Body: string(msg)}
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return backoff.Permanent(serr)
	}
	return serr
}

// Launch implements Sender.
func (c *Client) Launch(ctx context.Context, vehicleID string) error {
	now := c.now()
	body, _ := json.Marshal(LaunchRequest{StartTime: float64(now.UnixNano()) / 1e9})
	return c.do(ctx, http.MethodPost, vehicleID, "/launch", body)
}

// SendMission implements Sender.
func (c *Client) SendMission(ctx context.Context, vehicleID string, plan *mission.Plan) error {
	body, err := json.Marshal(plan)
	if err != nil {
		return backoff.Permanent(err)
	}
	return c.do(ctx, http.MethodPost, vehicleID, "/mission", body)
}

// Land asks the vehicle to land in place.
func (c *Client) Land(ctx context.Context, vehicleID string) error {
	return c.do(ctx, http.MethodGet, vehicleID, "/land", nil)
}

// ReturnToLaunch asks the vehicle to return home and land.
func (c *Client) ReturnToLaunch(ctx context.Context, vehicleID string) error {
	return c.do(ctx, http.MethodGet, vehicleID, "/RTL_and_land", nil)
}

// Ack checks that the vehicle's command server is reachable.
func (c *Client) Ack(ctx context.Context, vehicleID string) error {
	return c.do(ctx, http.MethodGet, vehicleID, "/ack", nil)
}
