package handlers

import (
	"context"
	"errors"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/wonny/foreval/internal/contracts"
	"github.com/wonny/foreval/internal/evaluation"
	"github.com/wonny/foreval/internal/pipeline"
	"github.com/wonny/foreval/internal/report"
	"github.com/wonny/foreval/pkg/logger"
)

// Runner 평가 1회 실행 (pipeline.Runner)
type Runner interface {
	Run(ctx context.Context) (*contracts.EvaluationReport, error)
	ConfigHash() string
}

// EvaluationHandler handles evaluation API endpoints
// ⭐ SSOT: 평가 API 핸들러는 이 구조체에서만
type EvaluationHandler struct {
	runner  Runner
	reports report.Reader
	limiter *rate.Limiter
	logger  *logger.Logger
}

// NewEvaluationHandler creates a new evaluation handler
// limiter 가 nil 이면 POST /run 에 제한 없음
func NewEvaluationHandler(runner Runner, reports report.Reader, limiter *rate.Limiter, log *logger.Logger) *EvaluationHandler {
	return &EvaluationHandler{
		runner:  runner,
		reports: reports,
		limiter: limiter,
		logger:  log,
	}
}

// GetReport returns the latest stored evaluation report
// GET /api/evaluation/report
func (h *EvaluationHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	rep, err := h.reports.Latest(r.Context())
	if errors.Is(err, report.ErrNotFound) {
		respondError(w, http.StatusNotFound, "No evaluation report yet")
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to read evaluation report")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve evaluation report")
		return
	}

	h.writeReport(w, http.StatusOK, rep)
}

// Run executes an evaluation and returns the new report
// POST /api/evaluation/run
func (h *EvaluationHandler) Run(w http.ResponseWriter, r *http.Request) {
	if h.limiter != nil && !h.limiter.Allow() {
		respondError(w, http.StatusTooManyRequests, "Evaluation runs are rate limited")
		return
	}

	rep, err := h.runner.Run(r.Context())
	if err != nil {
		status, message := statusFor(err)
		h.logger.WithError(err).WithField("status", status).Warn("Evaluation run failed")

		// sink 기록 실패: 리포트는 생성됨
		if rep != nil {
			w.Header().Set("X-Report-Persisted", "false")
			h.writeReport(w, status, rep)
			return
		}
		respondError(w, status, message)
		return
	}

	h.writeReport(w, http.StatusOK, rep)
}

// GetStatus returns the active config hash
// GET /api/evaluation/status
func (h *EvaluationHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"config_hash": h.runner.ConfigHash(),
	})
}

// writeReport null 값을 보존하는 report 직렬화 사용
func (h *EvaluationHandler) writeReport(w http.ResponseWriter, status int, rep *contracts.EvaluationReport) {
	body, err := evaluation.MarshalReport(rep)
	if err != nil {
		h.logger.WithError(err).Error("Failed to encode evaluation report")
		respondError(w, http.StatusInternalServerError, "Failed to encode evaluation report")
		return
	}
	respondRaw(w, status, body)
}

func statusFor(err error) (int, string) {
	var (
		cfgErr     *evaluation.ConfigurationError
		missingErr *evaluation.MissingInputError
		inputErr   *evaluation.InputError
	)
	switch {
	case errors.Is(err, pipeline.ErrRunInProgress):
		return http.StatusConflict, err.Error()
	case errors.As(err, &cfgErr), errors.As(err, &missingErr), errors.As(err, &inputErr):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "Evaluation canceled"
	default:
		return http.StatusInternalServerError, "Evaluation failed"
	}
}
