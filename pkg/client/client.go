package client

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cuemby/flowpulse/pkg/types"
)

const (
	defaultTimeout = 10 * time.Second

	// a snapshot arrives as a single data line
	maxLineSize = 16 << 20
)

// ErrStreamClosed is returned by Tail when the server ends the stream
var ErrStreamClosed = errors.New("stream closed by server")

// APIError is a non-2xx response from the server
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// Client talks to a flowpulse server over HTTP
type Client struct {
	baseURL string
	http    *http.Client
	stream  *http.Client
}

// NewClient creates a client for addr, which may be host:port or a full URL
func NewClient(addr string) (*Client, error) {
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	u, err := url.Parse(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid server address: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid server address %q: missing host", addr)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	return &Client{
		baseURL: strings.TrimRight(u.String(), "/"),
		http:    &http.Client{Transport: transport, Timeout: defaultTimeout},
		// streams are bounded by their context instead of a timeout
		stream: &http.Client{Transport: transport},
	}, nil
}

// Close releases idle connections
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

// Snapshot fetches overview, timeline and volume in one request
func (c *Client) Snapshot(ctx context.Context) (*types.Snapshot, error) {
	var snap types.Snapshot
	if err := c.getJSON(ctx, "/snapshot", nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Overview fetches the overview stats
func (c *Client) Overview(ctx context.Context) (types.OverviewStats, error) {
	var stats types.OverviewStats
	err := c.getJSON(ctx, "/stats/overview", nil, &stats)
	return stats, err
}

// Timeline fetches events from the last hours hours; zero uses the server default
func (c *Client) Timeline(ctx context.Context, hours int) ([]types.Event, error) {
	var list []types.Event
	err := c.getJSON(ctx, "/stats/timeline", intQuery("hours", hours), &list)
	return list, err
}

// Anomalies fetches the newest limit anomalies; zero uses the server default
func (c *Client) Anomalies(ctx context.Context, limit int) ([]types.Event, error) {
	var list []types.Event
	err := c.getJSON(ctx, "/stats/anomalies", intQuery("limit", limit), &list)
	return list, err
}

// Volume fetches hourly volume buckets
func (c *Client) Volume(ctx context.Context, hours int) ([]types.VolumeBucket, error) {
	var buckets []types.VolumeBucket
	err := c.getJSON(ctx, "/stats/volume", intQuery("hours", hours), &buckets)
	return buckets, err
}

// Heatmap fetches the anomaly heatmap cells
func (c *Client) Heatmap(ctx context.Context) ([]types.HeatmapCell, error) {
	var cells []types.HeatmapCell
	err := c.getJSON(ctx, "/stats/heatmap", nil, &cells)
	return cells, err
}

func intQuery(name string, v int) url.Values {
	if v <= 0 {
		return nil
	}
	return url.Values{name: []string{strconv.Itoa(v)}}
}

func (c *Client) newRequest(ctx context.Context, path string, q url.Values) (*http.Request, error) {
	target := c.baseURL + path
	if len(q) > 0 {
		target += "?" + q.Encode()
	}
	return http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, out interface{}) error {
	req, err := c.newRequest(ctx, path, q)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
		apiErr.Message = payload.Error
	} else {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	return apiErr
}

// Tail follows the server's SSE stream. onSnapshot receives the backfill,
// onEvent each live event; either may be nil. Tail returns nil when ctx is
// cancelled, ErrStreamClosed when the server hangs up, or the first error
// returned by a callback.
func (c *Client) Tail(ctx context.Context, onSnapshot func(types.Snapshot) error, onEvent func(types.Event) error) error {
	req, err := c.newRequest(ctx, "/stream", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.stream.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to open stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}

	err = readSSE(resp.Body, func(name string, data []byte) error {
		switch name {
		case "snapshot":
			if onSnapshot == nil {
				return nil
			}
			var snap types.Snapshot
			if err := json.Unmarshal(data, &snap); err != nil {
				return fmt.Errorf("failed to decode snapshot: %w", err)
			}
			return onSnapshot(snap)
		case "", "message":
			if onEvent == nil {
				return nil
			}
			var evt types.Event
			if err := json.Unmarshal(data, &evt); err != nil {
				return fmt.Errorf("failed to decode event: %w", err)
			}
			return onEvent(evt)
		default:
			return nil
		}
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// readSSE dispatches each SSE block to fn until the stream ends
func readSSE(r io.Reader, fn func(name string, data []byte) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var name string
	var data []string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if len(data) > 0 {
				if err := fn(name, []byte(strings.Join(data, "\n"))); err != nil {
					return err
				}
			}
			name, data = "", nil
		case strings.HasPrefix(line, ":"):
			// comment or heartbeat
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read stream: %w", err)
	}
	return ErrStreamClosed
}
