// Package yolo provides a detection backend backed by a YOLO inference server over HTTP
package yolo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/fooder/fooder/internal/ports/outbound"
)

// Config configures the inference server client
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client implements outbound.DetectionBackend against a YOLO inference server
type Client struct {
	baseURL string
	client  *http.Client
	model   string
	names   map[int]string
	logger  *zap.Logger
}

var _ outbound.DetectionBackend = (*Client)(nil)

type modelResponse struct {
	Name  string         `json:"name"`
	Names map[int]string `json:"names"`
}

type predictResponse struct {
	Boxes []struct {
		Cls  int        `json:"cls"`
		Conf float64    `json:"conf"`
		XYXY [4]float64 `json:"xyxy"`
	} `json:"boxes"`
}

// NewClient connects to the inference server and loads its class table
func NewClient(ctx context.Context, cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("yolo: base URL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}

	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger.Named("yolo"),
	}

	model, err := c.loadModel(ctx)
	if err != nil {
		return nil, err
	}
	c.model = model.Name
	c.names = model.Names
	if len(c.names) == 0 {
		c.names = CopyClasses(COCOClasses)
	}

	c.logger.Info("Detection model loaded",
		zap.String("model", c.model),
		zap.Int("classes", len(c.names)),
		zap.String("endpoint", c.baseURL))

	return c, nil
}

// Model returns the name the server reported for its model
func (c *Client) Model() string {
	return c.model
}

// ClassNames returns the model's class table
func (c *Client) ClassNames() map[int]string {
	return c.names
}

// Predict uploads the image and returns boxes at or above conf
func (c *Client) Predict(ctx context.Context, imagePath string, conf float64) ([]outbound.Box, error) {
	body, contentType, err := multipartImage(imagePath)
	if err != nil {
		return nil, err
	}

	endpoint := c.baseURL + "/predict?" + url.Values{
		"conf": []string{strconv.FormatFloat(conf, 'f', -1, 64)},
	}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("yolo: build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	var out predictResponse
	if err := c.do(req, &out); err != nil {
		return nil, err
	}

	boxes := make([]outbound.Box, 0, len(out.Boxes))
	for _, b := range out.Boxes {
		if b.Conf < conf {
			continue
		}
		boxes = append(boxes, outbound.Box{ClassID: b.Cls, Confidence: b.Conf, XYXY: b.XYXY})
	}
	return boxes, nil
}

// Ping checks the inference server answers the model endpoint
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.loadModel(ctx)
	return err
}

// Close releases idle connections
func (c *Client) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

func (c *Client) loadModel(ctx context.Context) (*modelResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/model", nil)
	if err != nil {
		return nil, fmt.Errorf("yolo: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	var out modelResponse
	if err := c.do(req, &out); err != nil {
		return nil, fmt.Errorf("yolo: load model: %w", err)
	}
	return &out, nil
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("yolo: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("yolo: %s %s: status %d: %s",
			req.Method, req.URL.Path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("yolo: decode %s response: %w", req.URL.Path, err)
	}
	return nil
}

func multipartImage(imagePath string) (io.Reader, string, error) {
	f, err := os.Open(imagePath)
	if err != nil {
		return nil, "", fmt.Errorf("yolo: open image: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("image", filepath.Base(imagePath))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("yolo: read image: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
