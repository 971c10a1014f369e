package container

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/zap/zaptest"

	"github.com/fooder/fooder/internal/infrastructure/config"
	"github.com/fooder/fooder/internal/infrastructure/http/server"
	"github.com/fooder/fooder/internal/ports/inbound"
	"github.com/fooder/fooder/pkg/errors"
	"github.com/fooder/fooder/pkg/healthcheck"
	"github.com/fooder/fooder/test/testutils"
)

func startupConfig(attempts int) config.StartupConfig {
	return config.StartupConfig{MaxAttempts: attempts, RetryDelay: time.Millisecond}
}

func TestRetry_SucceedsAfterTransientFailure(t *testing.T) {
	calls := 0
	value, err := Retry(context.Background(), startupConfig(3), zaptest.NewLogger(t), "test",
		func(context.Context) (string, error) {
			calls++
			if calls == 1 {
				return "", fmt.Errorf("connection refused")
			}
			return "ready", nil
		})

	require.NoError(t, err)
	assert.Equal(t, "ready", value)
	assert.Equal(t, 2, calls)
}

func TestRetry_ExhaustsBudget(t *testing.T) {
	calls := 0
	_, err := Retry(context.Background(), startupConfig(3), zaptest.NewLogger(t), "test",
		func(context.Context) (int, error) {
			calls++
			return 0, fmt.Errorf("connection refused")
		})

	assert.EqualError(t, err, "connection refused")
	assert.Equal(t, 3, calls)
}

func TestRetry_ConfigurationErrorIsPermanent(t *testing.T) {
	calls := 0
	_, err := Retry(context.Background(), startupConfig(5), zaptest.NewLogger(t), "test",
		func(context.Context) (int, error) {
			calls++
			return 0, errors.NewConfigurationError("api key missing")
		})

	assert.True(t, errors.Is(err, errors.CodeConfiguration))
	assert.Equal(t, 1, calls)
}

func TestRetry_ZeroAttemptsTriesOnce(t *testing.T) {
	calls := 0
	_, err := Retry(context.Background(), startupConfig(0), zaptest.NewLogger(t), "test",
		func(context.Context) (int, error) {
			calls++
			return 0, fmt.Errorf("down")
		})

	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func fakeDetector(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/model", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"name":"yolov8n.pt","names":{"0":"person","53":"pizza"}}`)
	})
	mux.HandleFunc("/predict", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"boxes":[{"cls":53,"conf":0.91,"xyxy":[1,2,3,4]},{"cls":0,"conf":0.99,"xyxy":[0,0,9,9]}]}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func fakeRecipes(t *testing.T) *httptest.Server {
	t.Helper()
	doc := testutils.NewRecordFactory(7).Document("Margherita Pizza")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusOK)
			return
		}
		assert.Equal(t, "/complexSearch", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"results": []interface{}{doc}})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeConfig(t *testing.T, detector, recipes, cacheProvider string) ConfigPath {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := fmt.Sprintf(`app:
  environment: test
  log_format: console
server:
  host: 127.0.0.1
  port: 18080
detection:
  backend: yolo
  endpoint: %s
recipes:
  api_key: test-key
  base_url: %s
cache:
  provider: %s
rate_limit:
  enable: false
startup:
  max_attempts: 1
  retry_delay: 1ms
`, detector, recipes, cacheProvider)
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	return ConfigPath(path)
}

func TestModule_ScanEndToEnd(t *testing.T) {
	path := writeConfig(t, fakeDetector(t).URL, fakeRecipes(t).URL, CacheMemory)

	var srv *server.Server
	app := fx.New(
		fx.NopLogger,
		fx.Supply(path),
		Module,
		fx.Populate(&srv),
	)
	require.NoError(t, app.Err())

	body := `{"image":"` + testutils.DataURI(testutils.ImageBytes(64)) + `"}`
	req := httptest.NewRequest(http.MethodPost, server.ScanPath, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var result inbound.ScanResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, []string{"pizza (0.91)"}, result.DetectedItems)
	require.Len(t, result.Recipes, 1)
	assert.Equal(t, "Margherita Pizza", result.Recipes[0].Title)

	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"cache"`)
	assert.Contains(t, w.Body.String(), `"detector"`)
}

func TestCoreModule_ScanFile(t *testing.T) {
	path := writeConfig(t, fakeDetector(t).URL, fakeRecipes(t).URL, CacheNone)

	var scans inbound.ScanService
	app := fx.New(
		fx.NopLogger,
		fx.Supply(path),
		CoreModule,
		fx.Populate(&scans),
	)
	require.NoError(t, app.Err())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, app.Start(ctx))
	defer func() { assert.NoError(t, app.Stop(ctx)) }()

	result, err := scans.ScanFile(ctx, testutils.WriteImage(t), 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"pizza (0.91)"}, result.DetectedItems)
	assert.Len(t, result.Recipes, 1)
}

func TestCoreModule_HealthReportsUnreachableRecipeHost(t *testing.T) {
	path := writeConfig(t, fakeDetector(t).URL, "http://127.0.0.1:1", CacheNone)

	var health *healthcheck.HealthCheck
	app := fx.New(fx.NopLogger, fx.Supply(path), CoreModule, fx.Populate(&health))
	require.NoError(t, app.Err())

	response := health.Check(context.Background())

	assert.Equal(t, healthcheck.StatusDegraded, response.Status)
	checks := make(map[string]healthcheck.Status, len(response.Checks))
	for _, c := range response.Checks {
		checks[c.Name] = c.Status
	}
	assert.Equal(t, healthcheck.StatusHealthy, checks["detector"])
	assert.Equal(t, healthcheck.StatusDegraded, checks["recipes"])
}

func TestCoreModule_DetectorDown(t *testing.T) {
	path := writeConfig(t, "http://127.0.0.1:1", fakeRecipes(t).URL, CacheNone)

	app := fx.New(fx.NopLogger, fx.Supply(path), CoreModule, fx.Invoke(func(inbound.ScanService) {}))

	err := app.Err()
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.CodeDetectionFailed))
}

func TestCoreModule_InvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cache:\n  provider: memcached\n"), 0o644))

	app := fx.New(fx.NopLogger, fx.Supply(ConfigPath(path)), CoreModule, fx.Invoke(func(inbound.ScanService) {}))

	assert.True(t, errors.Is(app.Err(), errors.CodeConfiguration))
}
