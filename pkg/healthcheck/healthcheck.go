// Package healthcheck aggregates dependency checks (detector, recipe host, cache)
// behind the /health, /ready and /live endpoints.
package healthcheck

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Status is the state of one dependency or of the whole service
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

func (s Status) severity() int {
	switch s {
	case StatusHealthy:
		return 0
	case StatusDegraded:
		return 1
	default:
		return 2
	}
}

func worse(a, b Status) Status {
	if b.severity() > a.severity() {
		return b
	}
	return a
}

// Check is the outcome of one dependency check
type Check struct {
	Name        string        `json:"name"`
	Status      Status        `json:"status"`
	Message     string        `json:"message,omitempty"`
	LastChecked time.Time     `json:"last_checked"`
	Duration    time.Duration `json:"duration_ms"`
	Metadata    interface{}   `json:"metadata,omitempty"`
}

// Response is the /health body
type Response struct {
	Status        Status        `json:"status"`
	Version       string        `json:"version"`
	Timestamp     time.Time     `json:"timestamp"`
	Checks        []Check       `json:"checks"`
	TotalDuration time.Duration `json:"total_duration_ms"`
}

// Checker reports on one dependency
type Checker interface {
	Check(ctx context.Context) Check
}

// HealthCheck holds the registered checkers and the last aggregate result, reused for cacheTTL
type HealthCheck struct {
	version  string
	checkers map[string]Checker
	logger   *zap.Logger
	mu       sync.RWMutex
	last     *Response
	cacheTTL time.Duration
	timeout  time.Duration
}

func New(version string, logger *zap.Logger) *HealthCheck {
	return &HealthCheck{
		version:  version,
		checkers: make(map[string]Checker),
		logger:   logger.Named("health"),
		cacheTTL: 5 * time.Second,
		timeout:  10 * time.Second,
	}
}

// Register adds or replaces the checker for name and drops any cached result
func (h *HealthCheck) Register(name string, checker Checker) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checkers[name] = checker
	h.last = nil
}

func (h *HealthCheck) SetCacheTTL(ttl time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cacheTTL = ttl
}

// Handler serves the full report; 503 only when a critical dependency is down
func (h *HealthCheck) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		response := h.Check(c.Request.Context())
		c.JSON(httpStatus(response.Status), response)
	}
}

func (h *HealthCheck) LivenessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "alive",
			"timestamp": time.Now(),
		})
	}
}

// ReadinessHandler keeps the instance in rotation while only optional dependencies are degraded
func (h *HealthCheck) ReadinessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		response := h.Check(c.Request.Context())
		if response.Status != StatusUnhealthy {
			c.JSON(http.StatusOK, gin.H{
				"status":    "ready",
				"timestamp": time.Now(),
			})
			return
		}

		failing := make([]string, 0, len(response.Checks))
		for _, check := range response.Checks {
			if check.Status == StatusUnhealthy {
				failing = append(failing, check.Name)
			}
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "not_ready",
			"reason":  "critical dependency unavailable",
			"failing": failing,
			"checks":  response.Checks,
		})
	}
}

func httpStatus(s Status) int {
	if s == StatusUnhealthy {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}

// Check runs every checker in parallel under the shared timeout.
// Checks come back sorted by name and the overall status is the worst of them.
func (h *HealthCheck) Check(ctx context.Context) Response {
	h.mu.RLock()
	if h.last != nil && time.Since(h.last.Timestamp) < h.cacheTTL {
		cached := *h.last
		h.mu.RUnlock()
		return cached
	}
	names := make([]string, 0, len(h.checkers))
	for name := range h.checkers {
		names = append(names, name)
	}
	checkers := make([]Checker, len(names))
	sort.Strings(names)
	for i, name := range names {
		checkers[i] = h.checkers[name]
	}
	h.mu.RUnlock()

	start := time.Now()
	checkCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	results := make([]Check, len(names))
	var g errgroup.Group
	for i := range checkers {
		i := i
		g.Go(func() error {
			results[i] = checkers[i].Check(checkCtx)
			results[i].Name = names[i]
			return nil
		})
	}
	_ = g.Wait()

	response := Response{
		Status:    StatusHealthy,
		Version:   h.version,
		Timestamp: start,
		Checks:    results,
	}
	for _, check := range results {
		response.Status = worse(response.Status, check.Status)
		if check.Status == StatusUnhealthy {
			h.logger.Warn("Dependency unhealthy", zap.String("dependency", check.Name), zap.String("message", check.Message))
		}
	}
	response.TotalDuration = time.Since(start)

	h.mu.Lock()
	h.last = &response
	h.mu.Unlock()

	return response
}

// PingChecker wraps a dependency's Ping. A failing critical dependency is unhealthy, an optional one degraded.
type PingChecker struct {
	ping     func(ctx context.Context) error
	critical bool
}

func NewPingChecker(ping func(ctx context.Context) error, critical bool) *PingChecker {
	return &PingChecker{ping: ping, critical: critical}
}

func (p *PingChecker) Check(ctx context.Context) Check {
	start := time.Now()
	err := p.ping(ctx)

	check := Check{
		Status:      StatusHealthy,
		LastChecked: start,
		Duration:    time.Since(start),
		Metadata:    map[string]interface{}{"critical": p.critical},
	}
	if err == nil {
		return check
	}

	check.Message = err.Error()
	check.Status = StatusDegraded
	if p.critical {
		check.Status = StatusUnhealthy
	}
	return check
}

// ServerChecker asks a running fooder server for its /health report.
// The server's own verdict is carried over when it answers 2xx.
type ServerChecker struct {
	name   string
	url    string
	client *http.Client
}

func NewServerChecker(name, url string, timeout time.Duration) *ServerChecker {
	return &ServerChecker{
		name:   name,
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

func (s *ServerChecker) Check(ctx context.Context) Check {
	start := time.Now()
	check := Check{Name: s.name, LastChecked: start, Status: StatusUnhealthy}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		check.Message = err.Error()
		check.Duration = time.Since(start)
		return check
	}

	resp, err := s.client.Do(req)
	check.Duration = time.Since(start)
	if err != nil {
		check.Message = err.Error()
		return check
	}
	defer resp.Body.Close()

	var report Response
	decoded := json.NewDecoder(resp.Body).Decode(&report) == nil && report.Status != ""

	metadata := map[string]interface{}{"status_code": resp.StatusCode, "url": s.url}
	if decoded {
		metadata["reported_status"] = report.Status
		metadata["version"] = report.Version
	}
	check.Metadata = metadata
	check.Status, check.Message = classifyReply(resp.StatusCode, report.Status)
	return check
}

// classifyReply maps the server's HTTP status and self-reported status to a check result
func classifyReply(code int, reported Status) (Status, string) {
	switch {
	case code >= 500:
		return StatusUnhealthy, fmt.Sprintf("server answered HTTP %d", code)
	case code < 200 || code >= 300:
		return StatusDegraded, fmt.Sprintf("unexpected HTTP %d from health endpoint", code)
	case reported == StatusDegraded:
		return StatusDegraded, "server reports degraded dependencies"
	default:
		return StatusHealthy, ""
	}
}

func millis(d time.Duration) float64 {
	return float64(d.Milliseconds())
}

// MarshalJSON writes Duration as whole milliseconds
func (c Check) MarshalJSON() ([]byte, error) {
	type plain Check
	return json.Marshal(&struct {
		Duration float64 `json:"duration_ms"`
		*plain
	}{millis(c.Duration), (*plain)(&c)})
}

// MarshalJSON writes TotalDuration as whole milliseconds
func (r Response) MarshalJSON() ([]byte, error) {
	type plain Response
	return json.Marshal(&struct {
		TotalDuration float64 `json:"total_duration_ms"`
		*plain
	}{millis(r.TotalDuration), (*plain)(&r)})
}
