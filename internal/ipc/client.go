package ipc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	hostErrors "github.com/awake/host/internal/errors"
	"github.com/awake/host/internal/keepawake"
)

// DefaultClientTimeout bounds one request. Activation waits on the OS
// grant, so it is longer than a plain status read needs.
const DefaultClientTimeout = 10 * time.Second

// Client talks to a daemon over its control socket.
type Client struct {
	path string
	http *http.Client
}

// NewClient creates a client for the socket at path.
func NewClient(path string) *Client {
	return &Client{
		path: path,
		http: &http.Client{
			Timeout: DefaultClientTimeout,
			Transport: &http.Transport{
				DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
					var dialer net.Dialer
					return dialer.DialContext(ctx, "unix", path)
				},
			},
		},
	}
}

// Status fetches the daemon status.
func (c *Client) Status(ctx context.Context) (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.do(ctx, http.MethodGet, PathStatus, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Activate starts a manual session.
func (c *Client) Activate(ctx context.Context, req ActivateRequest) (*ChangeResponse, error) {
	var resp ChangeResponse
	if err := c.do(ctx, http.MethodPost, PathActivate, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Deactivate ends the current session whatever its source.
func (c *Client) Deactivate(ctx context.Context) (*ChangeResponse, error) {
	var resp ChangeResponse
	if err := c.do(ctx, http.MethodPost, PathDeactivate, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Toggle presses the keyboard shortcut.
func (c *Client) Toggle(ctx context.Context) (*ChangeResponse, error) {
	var resp ChangeResponse
	if err := c.do(ctx, http.MethodPost, PathToggle, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Watch streams state changes to fn until ctx is done, the daemon closes
// the stream, or fn returns an error. The first value is the current
// state.
func (c *Client) Watch(ctx context.Context, fn func(keepawake.State) error) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: DefaultClientTimeout,
		NetDialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", c.path)
		},
	}
	conn, resp, err := dialer.DialContext(ctx, "ws://unix"+PathEvents, nil)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			return decodeError(resp)
		}
		return c.unavailable(err)
	}
	defer conn.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			_ = conn.Close()
		case <-stop:
		}
	}()

	for {
		var st keepawake.State
		if err := conn.ReadJSON(&st); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("event stream: %w", err)
		}
		if err := fn(st); err != nil {
			return err
		}
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return hostErrors.Internal("failed to encode request", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, "http://unix"+path, reader)
	if err != nil {
		return hostErrors.Internal("failed to build request", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return c.unavailable(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return hostErrors.Internal("failed to decode daemon response", err)
	}
	return nil
}

func (c *Client) unavailable(err error) error {
	return hostErrors.Wrap(hostErrors.CodeIPCUnavailable, fmt.Sprintf("daemon not reachable at %s", c.path), err)
}

func decodeError(resp *http.Response) error {
	var body ErrorResponse
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err := json.Unmarshal(data, &body); err != nil || body.Code == "" {
		return hostErrors.New(hostErrors.CodeUnknown, fmt.Sprintf("daemon returned %s", resp.Status))
	}
	return hostErrors.New(body.Code, body.Message)
}
