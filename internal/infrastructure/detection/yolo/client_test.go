package yolo

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/fooder/fooder/test/testutils"
)

func newServer(t *testing.T, names string, predict http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/model", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"name":"yolov8n.pt","names":`+names+`}`)
	})
	if predict != nil {
		mux.HandleFunc("/predict", predict)
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestNewClient_LoadsClassTable(t *testing.T) {
	srv := newServer(t, `{"0":"person","53":"pizza"}`, nil)

	client, err := NewClient(context.Background(), Config{BaseURL: srv.URL + "/"}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.Equal(t, "yolov8n.pt", client.Model())
	assert.Equal(t, map[int]string{0: "person", 53: "pizza"}, client.ClassNames())
	assert.NoError(t, client.Ping(context.Background()))
	assert.NoError(t, client.Close())
}

func TestNewClient_FallsBackToCOCO(t *testing.T) {
	srv := newServer(t, `{}`, nil)

	client, err := NewClient(context.Background(), Config{BaseURL: srv.URL}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.Len(t, client.ClassNames(), 80)
	assert.Equal(t, "hot dog", client.ClassNames()[52])
}

func TestNewClient_ServerDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model loading", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewClient(context.Background(), Config{BaseURL: srv.URL}, zaptest.NewLogger(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 503")
}

func TestClient_Predict(t *testing.T) {
	image := testutils.WriteImage(t)
	srv := newServer(t, `{}`, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "0.3", r.URL.Query().Get("conf"))

		file, header, err := r.FormFile("image")
		if !assert.NoError(t, err) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		assert.Equal(t, "photo.jpg", header.Filename)
		assert.Equal(t, testutils.ImageBytes(256), data)

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"boxes":[
			{"cls":53,"conf":0.91,"xyxy":[1,2,3,4]},
			{"cls":0,"conf":0.1,"xyxy":[0,0,1,1]},
			{"cls":51,"conf":0.44,"xyxy":[5,6,7,8]}
		]}`)
	})

	client, err := NewClient(context.Background(), Config{BaseURL: srv.URL}, zaptest.NewLogger(t))
	require.NoError(t, err)

	boxes, err := client.Predict(context.Background(), image, 0.3)
	require.NoError(t, err)
	require.Len(t, boxes, 2)
	assert.Equal(t, 53, boxes[0].ClassID)
	assert.InDelta(t, 0.91, boxes[0].Confidence, 1e-9)
	assert.Equal(t, [4]float64{1, 2, 3, 4}, boxes[0].XYXY)
	assert.Equal(t, 51, boxes[1].ClassID)
}

func TestClient_PredictErrors(t *testing.T) {
	srv := newServer(t, `{}`, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "CUDA out of memory", http.StatusInternalServerError)
	})

	client, err := NewClient(context.Background(), Config{BaseURL: srv.URL}, zaptest.NewLogger(t))
	require.NoError(t, err)

	_, err = client.Predict(context.Background(), testutils.WriteImage(t), 0.3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CUDA out of memory")

	_, err = client.Predict(context.Background(), "/does/not/exist.jpg", 0.3)
	assert.Error(t, err)
}

func TestClassID(t *testing.T) {
	id, ok := ClassID(COCOClasses, "pizza")
	assert.True(t, ok)
	assert.Equal(t, 53, id)

	_, ok = ClassID(COCOClasses, "sushi")
	assert.False(t, ok)
}
