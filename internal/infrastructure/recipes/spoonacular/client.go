// Package spoonacular provides the Spoonacular recipe API client
package spoonacular

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fooder/fooder/internal/domain/recipe"
	"github.com/fooder/fooder/internal/ports/outbound"
	"github.com/fooder/fooder/pkg/errors"
)

const (
	// DefaultBaseURL is the public Spoonacular recipes API
	DefaultBaseURL = "https://api.spoonacular.com/recipes"
	serviceName    = "spoonacular"
)

var tracer = otel.Tracer("github.com/fooder/fooder/internal/infrastructure/recipes/spoonacular")

// RequestObserver receives one call per backend request
type RequestObserver interface {
	BackendRequest(backend, operation, status string, duration time.Duration)
}

// Config configures the client
type Config struct {
	APIKey            string
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
}

// Client implements outbound.RecipeProvider
type Client struct {
	apiKey   string
	baseURL  string
	client   *http.Client
	limiter  *rate.Limiter
	observer RequestObserver
	logger   *zap.Logger
}

var _ outbound.RecipeProvider = (*Client)(nil)

// NewClient creates a new Spoonacular client. observer may be nil.
func NewClient(cfg Config, observer RequestObserver, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}

	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		limiter:  rate.NewLimiter(limit, cfg.Burst),
		observer: observer,
		logger:   logger.Named("spoonacular"),
	}
}

// Ping checks the API host answers. The request carries no API key and costs no quota;
// any status below 500 counts as reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.baseURL, nil)
	if err != nil {
		return errors.NewExternalServiceError(serviceName, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return errors.NewExternalServiceError(serviceName, fmt.Errorf("ping failed: %w", unwrapURLError(err)))
	}
	resp.Body.Close()

	if resp.StatusCode >= 500 {
		return errors.NewExternalServiceError(serviceName, fmt.Errorf("ping returned status %d", resp.StatusCode))
	}
	return nil
}

// PhraseQuery OR-combines phrases as quoted search terms: "pizza" OR "hot dog"
func PhraseQuery(phrases []string) string {
	quoted := make([]string, 0, len(phrases))
	for _, p := range phrases {
		quoted = append(quoted, strconv.Quote(p))
	}
	return strings.Join(quoted, " OR ")
}

// SearchPrepared searches complexSearch with full recipe information attached
func (c *Client) SearchPrepared(ctx context.Context, q outbound.PreparedQuery) ([]recipe.Record, error) {
	params := url.Values{}
	params.Set("query", PhraseQuery(q.Phrases))
	params.Set("number", strconv.Itoa(q.Number))
	params.Set("addRecipeInformation", "true")
	params.Set("fillIngredients", "true")
	params.Set("instructionsRequired", "true")

	body, err := c.get(ctx, "complexSearch", "/complexSearch", params)
	if err != nil {
		return nil, err
	}
	return decodeRecords(body)
}

// FindByIngredients searches recipes maximising use of the given ingredients
func (c *Client) FindByIngredients(ctx context.Context, q outbound.IngredientQuery) ([]recipe.Record, error) {
	params := url.Values{}
	params.Set("ingredients", strings.Join(q.Ingredients, ","))
	params.Set("number", strconv.Itoa(q.Number))
	params.Set("ranking", "2")
	params.Set("ignorePantry", strconv.FormatBool(q.IgnorePantry))

	body, err := c.get(ctx, "findByIngredients", "/findByIngredients", params)
	if err != nil {
		return nil, err
	}
	return decodeRecords(body)
}

// GetInformation fetches the full record for one recipe
func (c *Client) GetInformation(ctx context.Context, id int64) (*recipe.Record, error) {
	body, err := c.get(ctx, "information", fmt.Sprintf("/%d/information", id), url.Values{})
	if err != nil {
		return nil, err
	}

	var rec recipe.Record
	if err := json.Unmarshal(body, &rec); err != nil {
		return nil, errors.NewExternalServiceError(serviceName, fmt.Errorf("decode recipe %d: %w", id, err))
	}
	return &rec, nil
}

func (c *Client) get(ctx context.Context, operation, path string, params url.Values) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "spoonacular."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("recipes.operation", operation)),
	)
	defer span.End()

	start := time.Now()
	status := "error"
	defer func() {
		if c.observer != nil {
			c.observer.BackendRequest(serviceName, operation, status, time.Since(start))
		}
	}()

	fail := func(err error) ([]byte, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, errors.NewExternalServiceError(serviceName, err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		status = "rate_limited"
		return fail(fmt.Errorf("rate limiter: %w", err))
	}

	params.Set("apiKey", c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fail(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		// The URL carries the API key; report the operation only
		return fail(fmt.Errorf("%s request failed: %w", operation, unwrapURLError(err)))
	}
	defer resp.Body.Close()

	status = strconv.Itoa(resp.StatusCode)
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fail(fmt.Errorf("%s read body: %w", operation, err))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fail(fmt.Errorf("%s returned status %d: %s", operation, resp.StatusCode, snippet(body)))
	}

	c.logger.Debug("Recipe backend request",
		zap.String("operation", operation),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	return body, nil
}

// decodeRecords accepts a bare array or an object with a results array
func decodeRecords(body []byte) ([]recipe.Record, error) {
	trimmed := bytes.TrimSpace(body)
	var records []recipe.Record

	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, errors.NewExternalServiceError(serviceName, fmt.Errorf("decode results: %w", err))
		}
		return records, nil
	}

	var envelope struct {
		Results []recipe.Record `json:"results"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, errors.NewExternalServiceError(serviceName, fmt.Errorf("decode results: %w", err))
	}
	return envelope.Results, nil
}

func unwrapURLError(err error) error {
	var urlErr *url.Error
	if stderrors.As(err, &urlErr) {
		return urlErr.Err
	}
	return err
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
