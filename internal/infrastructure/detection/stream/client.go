// Package stream provides a detection backend that talks to a detector server over a WebSocket.
// Images go out as binary messages; each is answered by one JSON text message.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/fooder/fooder/internal/infrastructure/detection/yolo"
	"github.com/fooder/fooder/internal/ports/outbound"
)

// Config configures the WebSocket detector client
type Config struct {
	// Endpoint is a ws:// URL or a bare host:port, in which case /ws is used
	Endpoint string
	Timeout  time.Duration
	// Names overrides the COCO class table
	Names map[int]string
}

// Client implements outbound.DetectionBackend over one persistent connection.
// Inference calls are serialised; a broken connection is redialled on the next call.
type Client struct {
	url     string
	timeout time.Duration
	dialer  *websocket.Dialer
	names   map[int]string
	logger  *zap.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

var _ outbound.DetectionBackend = (*Client)(nil)

type result struct {
	ClassID    *int      `json:"class_id"`
	Label      string    `json:"label"`
	Confidence float64   `json:"confidence"`
	Box        []float64 `json:"box"`
}

// NewClient dials the detector server
func NewClient(ctx context.Context, cfg Config, logger *zap.Logger) (*Client, error) {
	endpoint, err := normalizeEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, err
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	names := cfg.Names
	if len(names) == 0 {
		names = yolo.CopyClasses(yolo.COCOClasses)
	}

	c := &Client{
		url:     endpoint,
		timeout: cfg.Timeout,
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.Timeout,
		},
		names:  names,
		logger: logger.Named("stream-detector"),
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.connect(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func normalizeEndpoint(endpoint string) (string, error) {
	if endpoint == "" {
		return "", fmt.Errorf("stream: endpoint is required")
	}
	if !strings.Contains(endpoint, "://") {
		u := url.URL{Scheme: "ws", Host: endpoint, Path: "/ws"}
		return u.String(), nil
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("stream: invalid endpoint: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("stream: unsupported scheme %q", u.Scheme)
	}
	return u.String(), nil
}

// connect requires c.mu
func (c *Client) connect(ctx context.Context) error {
	if c.conn != nil {
		return nil
	}
	c.logger.Info("Connecting to detector server", zap.String("url", c.url))
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("stream: dial %s: %w", c.url, err)
	}
	c.conn = conn
	return nil
}

// drop requires c.mu
func (c *Client) drop(cause error) {
	if c.conn == nil {
		return
	}
	c.logger.Warn("Detector connection lost", zap.Error(cause))
	c.conn.Close()
	c.conn = nil
}

func (c *Client) deadline(ctx context.Context) time.Time {
	d := time.Now().Add(c.timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(d) {
		return ctxDeadline
	}
	return d
}

// ClassNames returns the class table results are mapped through
func (c *Client) ClassNames() map[int]string {
	return c.names
}

// Predict sends the image and waits for the server's detections
func (c *Client) Predict(ctx context.Context, imagePath string, conf float64) ([]outbound.Box, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("stream: read image: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := c.connect(ctx); err != nil {
		return nil, err
	}

	deadline := c.deadline(ctx)
	_ = c.conn.SetWriteDeadline(deadline)
	if err := c.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		c.drop(err)
		return nil, fmt.Errorf("stream: send image: %w", err)
	}

	_ = c.conn.SetReadDeadline(deadline)
	_, message, err := c.conn.ReadMessage()
	if err != nil {
		c.drop(err)
		return nil, fmt.Errorf("stream: read result: %w", err)
	}

	var results []result
	if err := json.Unmarshal(message, &results); err != nil {
		return nil, fmt.Errorf("stream: decode result: %w", err)
	}

	boxes := make([]outbound.Box, 0, len(results))
	for _, r := range results {
		if r.Confidence < conf {
			continue
		}
		id, ok := c.classID(r)
		if !ok {
			continue
		}
		box := outbound.Box{ClassID: id, Confidence: r.Confidence}
		copy(box.XYXY[:], r.Box)
		boxes = append(boxes, box)
	}
	return boxes, nil
}

func (c *Client) classID(r result) (int, bool) {
	if r.ClassID != nil {
		return *r.ClassID, true
	}
	if r.Label != "" {
		return yolo.ClassID(c.names, r.Label)
	}
	return 0, false
}

// Ping sends a WebSocket ping on the current connection, dialling if needed
func (c *Client) Ping(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.connect(ctx); err != nil {
		return err
	}
	if err := c.conn.WriteControl(websocket.PingMessage, nil, c.deadline(ctx)); err != nil {
		c.drop(err)
		return fmt.Errorf("stream: ping: %w", err)
	}
	return nil
}

// Close closes the connection
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	err := c.conn.Close()
	c.conn = nil
	return err
}
