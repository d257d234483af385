package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/wonny/foreval/internal/contracts"
	"github.com/wonny/foreval/internal/evaluation"
	"github.com/wonny/foreval/internal/pipeline"
	"github.com/wonny/foreval/internal/report"
	"github.com/wonny/foreval/pkg/logger"
)

type stubRunner struct {
	rep *contracts.EvaluationReport
	err error
}

func (s stubRunner) Run(context.Context) (*contracts.EvaluationReport, error) { return s.rep, s.err }
func (s stubRunner) ConfigHash() string                                       { return "abc123" }

type stubReader struct {
	rep *contracts.EvaluationReport
	err error
}

func (s stubReader) Latest(context.Context) (*contracts.EvaluationReport, error) { return s.rep, s.err }

func testReport() *contracts.EvaluationReport {
	mae := 1.25
	per := map[string]contracts.MetricResult{
		"A": {contracts.MetricMAE: &mae, contracts.MetricMAPE: nil},
	}
	metricSet := contracts.MetricSet{contracts.MetricMAE, contracts.MetricMAPE}
	at := time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC)
	return evaluation.BuildReport(at, 7, metricSet, per, evaluation.Aggregate(per, metricSet), nil)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestGetReport(t *testing.T) {
	tests := []struct {
		name   string
		reader stubReader
		status int
	}{
		{"stored", stubReader{rep: testReport()}, http.StatusOK},
		{"none yet", stubReader{err: report.ErrNotFound}, http.StatusNotFound},
		{"store down", stubReader{err: errors.New("connection refused")}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewEvaluationHandler(stubRunner{}, tt.reader, nil, logger.Nop())
			rec := httptest.NewRecorder()
			h.GetReport(rec, httptest.NewRequest(http.MethodGet, "/api/evaluation/report", nil))

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		})
	}
}

func TestGetReport_KeepsNulls(t *testing.T) {
	h := NewEvaluationHandler(stubRunner{}, stubReader{rep: testReport()}, nil, logger.Nop())
	rec := httptest.NewRecorder()
	h.GetReport(rec, httptest.NewRequest(http.MethodGet, "/api/evaluation/report", nil))

	body := decodeBody(t, rec)
	per := body["per_product_metrics"].(map[string]interface{})["A"].(map[string]interface{})
	value, present := per["MAPE"]
	assert.True(t, present)
	assert.Nil(t, value)
	assert.Equal(t, 1.25, per["MAE"])
}

func TestRun(t *testing.T) {
	tests := []struct {
		name   string
		runner stubRunner
		status int
	}{
		{"success", stubRunner{rep: testReport()}, http.StatusOK},
		{"in progress", stubRunner{err: pipeline.ErrRunInProgress}, http.StatusConflict},
		{"bad config", stubRunner{err: &evaluation.ConfigurationError{Field: "evaluation.metrics", Message: "unknown metric"}}, http.StatusUnprocessableEntity},
		{"no forecasts", stubRunner{err: &evaluation.MissingInputError{Input: "forecasts"}}, http.StatusUnprocessableEntity},
		{"bad input", stubRunner{err: fmt.Errorf("wrap: %w", &evaluation.InputError{Input: "actuals", Message: "negative"})}, http.StatusUnprocessableEntity},
		{"canceled", stubRunner{err: fmt.Errorf("score entities: %w", context.Canceled)}, http.StatusServiceUnavailable},
		{"unexpected", stubRunner{err: errors.New("boom")}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewEvaluationHandler(tt.runner, stubReader{}, nil, logger.Nop())
			rec := httptest.NewRecorder()
			h.Run(rec, httptest.NewRequest(http.MethodPost, "/api/evaluation/run", nil))

			assert.Equal(t, tt.status, rec.Code)
			body := decodeBody(t, rec)
			if tt.status == http.StatusOK {
				assert.EqualValues(t, 1, body["entity_count"])
			} else {
				assert.NotEmpty(t, body["error"])
			}
		})
	}
}

func TestRun_PersistFailureStillReturnsReport(t *testing.T) {
	runner := stubRunner{rep: testReport(), err: errors.New("persist report: file sink: disk full")}
	h := NewEvaluationHandler(runner, stubReader{}, nil, logger.Nop())

	rec := httptest.NewRecorder()
	h.Run(rec, httptest.NewRequest(http.MethodPost, "/api/evaluation/run", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "false", rec.Header().Get("X-Report-Persisted"))
	assert.EqualValues(t, 1, decodeBody(t, rec)["entity_count"])
}

func TestRun_RateLimited(t *testing.T) {
	limiter := rate.NewLimiter(rate.Every(time.Hour), 1)
	h := NewEvaluationHandler(stubRunner{rep: testReport()}, stubReader{}, limiter, logger.Nop())

	first := httptest.NewRecorder()
	h.Run(first, httptest.NewRequest(http.MethodPost, "/api/evaluation/run", nil))
	assert.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	h.Run(second, httptest.NewRequest(http.MethodPost, "/api/evaluation/run", nil))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}

func TestGetStatus(t *testing.T) {
	h := NewEvaluationHandler(stubRunner{}, stubReader{}, nil, logger.Nop())
	rec := httptest.NewRecorder()
	h.GetStatus(rec, httptest.NewRequest(http.MethodGet, "/api/evaluation/status", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "abc123", decodeBody(t, rec)["config_hash"])
}
