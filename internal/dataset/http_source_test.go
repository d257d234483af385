package dataset

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/foreval/pkg/httputil"
	"github.com/wonny/foreval/pkg/logger"
)

func newServiceStub(t *testing.T, failures *atomic.Int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/items", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"items": []string{"BLACK VELVET", "FIREBALL", "GONE"}})
	})
	mux.HandleFunc("/predict/", func(w http.ResponseWriter, r *http.Request) {
		item := strings.TrimPrefix(r.URL.Path, "/predict/")
		switch item {
		case "GONE":
			http.Error(w, `{"detail":"not found"}`, http.StatusNotFound)
			return
		case "FIREBALL":
			// 첫 요청은 503 → 재시도
			if failures != nil && failures.Add(1) == 1 {
				http.Error(w, "warming up", http.StatusServiceUnavailable)
				return
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"item": item,
			"predictions": []map[string]any{
				{"timestamp": "2024-03-08 00:00:00", "date": "2024-03-08", "mean": 10.5},
				{"timestamp": "2024-03-09 00:00:00", "date": "2024-03-09", "mean": 11.0},
			},
			"forecast_horizon": 2,
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newServiceClient() *httputil.Client {
	return httputil.NewWithTimeout(logger.Nop(), 5*time.Second).WithRetry(2, time.Millisecond)
}

func TestForecastService_FetchAll(t *testing.T) {
	var failures atomic.Int32
	srv := newServiceStub(t, &failures)
	svc := NewForecastService(newServiceClient(), srv.URL+"/", zerolog.Nop())

	points, err := svc.FetchForecasts(context.Background(), nil)
	require.NoError(t, err)

	// GONE 은 404 → 제외
	require.Len(t, points, 4)
	assert.Equal(t, "BLACK VELVET", points[0].EntityID)
	assert.Equal(t, "FIREBALL", points[2].EntityID)
	assert.Equal(t, 10.5, points[2].Mean)
	assert.Equal(t, int32(2), failures.Load())
}

func TestForecastService_PredictEscapesName(t *testing.T) {
	srv := newServiceStub(t, nil)
	svc := NewForecastService(newServiceClient(), srv.URL, zerolog.Nop())

	points, found, err := svc.Predict(context.Background(), "BLACK VELVET")
	require.NoError(t, err)
	assert.True(t, found)
	require.Len(t, points, 2)
	assert.Equal(t, "BLACK VELVET", points[0].EntityID)

	_, found, err = svc.Predict(context.Background(), "GONE")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestForecastService_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	svc := NewForecastService(newServiceClient(), srv.URL, zerolog.Nop())
	_, err := svc.FetchForecasts(context.Background(), []string{"A"})
	require.Error(t, err)

	var statusErr *httputil.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
}
