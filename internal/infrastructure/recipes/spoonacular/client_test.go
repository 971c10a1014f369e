package spoonacular

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/fooder/fooder/internal/ports/outbound"
	"github.com/fooder/fooder/pkg/errors"
	"github.com/fooder/fooder/test/testutils"
)

type observedRequest struct {
	operation string
	status    string
}

type recordingObserver struct {
	mu       sync.Mutex
	requests []observedRequest
}

func (o *recordingObserver) BackendRequest(_, operation, status string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.requests = append(o.requests, observedRequest{operation, status})
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *recordingObserver) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	observer := &recordingObserver{}
	return NewClient(Config{APIKey: "secret", BaseURL: srv.URL}, observer, zaptest.NewLogger(t)), observer
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestPhraseQuery(t *testing.T) {
	assert.Equal(t, `"pizza"`, PhraseQuery([]string{"pizza"}))
	assert.Equal(t, `"pizza" OR "hot dog"`, PhraseQuery([]string{"pizza", "hot dog"}))
	assert.Equal(t, "", PhraseQuery(nil))
}

func TestClient_SearchPrepared(t *testing.T) {
	factory := testutils.NewRecordFactory(3)
	doc := factory.Document("Neapolitan Pizza")

	client, observer := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/complexSearch", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, `"pizza" OR "sandwich"`, q.Get("query"))
		assert.Equal(t, "5", q.Get("number"))
		assert.Equal(t, "true", q.Get("addRecipeInformation"))
		assert.Equal(t, "true", q.Get("fillIngredients"))
		assert.Equal(t, "true", q.Get("instructionsRequired"))
		assert.Equal(t, "secret", q.Get("apiKey"))
		writeJSON(w, map[string]interface{}{"results": []interface{}{doc}, "totalResults": 1})
	})

	records, err := client.SearchPrepared(context.Background(), outbound.PreparedQuery{
		Phrases: []string{"pizza", "sandwich"},
		Number:  5,
	})

	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Neapolitan Pizza", records[0].Title)
	assert.True(t, records[0].HasInstructions())

	out, err := json.Marshal(records[0])
	require.NoError(t, err)
	assert.Contains(t, string(out), `"servings"`)

	assert.Equal(t, []observedRequest{{"complexSearch", "200"}}, observer.requests)
}

func TestClient_SearchPreparedBareArray(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"id":1,"title":"Club Sandwich"}]`)
	})

	records, err := client.SearchPrepared(context.Background(), outbound.PreparedQuery{Phrases: []string{"sandwich"}, Number: 1})

	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(1), records[0].ID)
}

func TestClient_FindByIngredients(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/findByIngredients", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "carrot,banana", q.Get("ingredients"))
		assert.Equal(t, "3", q.Get("number"))
		assert.Equal(t, "2", q.Get("ranking"))
		assert.Equal(t, "true", q.Get("ignorePantry"))
		_, _ = io.WriteString(w, `[{"id":11,"title":"Carrot Cake","usedIngredientCount":1},{"id":12,"title":"Banana Bread"}]`)
	})

	records, err := client.FindByIngredients(context.Background(), outbound.IngredientQuery{
		Ingredients:  []string{"carrot", "banana"},
		Number:       3,
		IgnorePantry: true,
	})

	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, int64(11), records[0].ID)
	assert.Equal(t, int64(12), records[1].ID)
}

func TestClient_GetInformation(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/716429/information", r.URL.Path)
		_, _ = io.WriteString(w, `{"id":716429,"title":"Pasta","instructions":"Boil","winePairing":{}}`)
	})

	rec, err := client.GetInformation(context.Background(), 716429)

	require.NoError(t, err)
	assert.Equal(t, "Pasta", rec.Title)
	assert.JSONEq(t, `{"id":716429,"title":"Pasta","instructions":"Boil","winePairing":{}}`, string(rec.Raw()))
}

func TestClient_TransportErrors(t *testing.T) {
	client, observer := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = io.WriteString(w, `{"status":"failure","message":"daily quota used up"}`)
	})

	_, err := client.FindByIngredients(context.Background(), outbound.IngredientQuery{Ingredients: []string{"egg"}, Number: 1})

	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.CodeExternalServiceError))
	assert.Contains(t, err.Error(), "402")
	assert.NotContains(t, err.Error(), "secret")
	assert.Equal(t, []observedRequest{{"findByIngredients", "402"}}, observer.requests)
}

func TestClient_MalformedBody(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `<html>gateway</html>`)
	})

	_, err := client.GetInformation(context.Background(), 1)
	assert.True(t, errors.Is(err, errors.CodeExternalServiceError))

	_, err = client.SearchPrepared(context.Background(), outbound.PreparedQuery{Phrases: []string{"cake"}, Number: 1})
	assert.True(t, errors.Is(err, errors.CodeExternalServiceError))
}

func TestClient_NetworkErrorHidesAPIKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client := NewClient(Config{APIKey: "secret", BaseURL: srv.URL}, nil, zaptest.NewLogger(t))
	_, err := client.GetInformation(context.Background(), 1)

	require.Error(t, err)
	appErr, ok := errors.As(err)
	require.True(t, ok)
	assert.NotContains(t, appErr.Cause.Error(), "secret")
}

func TestClient_RateLimitHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	client := NewClient(Config{APIKey: "k", BaseURL: srv.URL, RequestsPerSecond: 0.001, Burst: 1}, nil, zaptest.NewLogger(t))

	_, err := client.FindByIngredients(context.Background(), outbound.IngredientQuery{Ingredients: []string{"egg"}, Number: 1})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = client.FindByIngredients(ctx, outbound.IngredientQuery{Ingredients: []string{"egg"}, Number: 1})
	assert.True(t, errors.Is(err, errors.CodeExternalServiceError))
}

func TestClient_Ping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{"ok", http.StatusOK, false},
		{"unauthorised still reachable", http.StatusUnauthorized, false},
		{"not found still reachable", http.StatusNotFound, false},
		{"server error", http.StatusBadGateway, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, observer := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodHead, r.Method)
				assert.Empty(t, r.URL.Query().Get("apiKey"))
				w.WriteHeader(tt.status)
			})

			err := client.Ping(context.Background())

			if tt.wantErr {
				assert.True(t, errors.Is(err, errors.CodeExternalServiceError))
			} else {
				assert.NoError(t, err)
			}
			assert.Empty(t, observer.requests)
		})
	}
}

func TestClient_PingUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	client := NewClient(Config{APIKey: "secret", BaseURL: srv.URL}, nil, zaptest.NewLogger(t))

	err := client.Ping(context.Background())

	require.Error(t, err)
	assert.NotContains(t, err.Error(), "secret")
}
