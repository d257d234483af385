package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/wonny/foreval/internal/contracts"
	"github.com/wonny/foreval/internal/dataset"
	"github.com/wonny/foreval/internal/evalconfig"
	"github.com/wonny/foreval/internal/evaluation"
	"github.com/wonny/foreval/internal/metrics"
	"github.com/wonny/foreval/internal/report"
	"github.com/wonny/foreval/pkg/fsutil"
)

// ErrRunInProgress 다른 평가 실행이 진행 중
var ErrRunInProgress = errors.New("evaluation run already in progress")

// ForecastSource 예측값 공급자 (파일 또는 예측 서비스)
type ForecastSource interface {
	Forecasts(ctx context.Context) ([]contracts.ForecastPoint, error)
}

// FileForecasts data.forecast_file
type FileForecasts struct {
	Path   string
	Format string
}

func (f FileForecasts) Forecasts(_ context.Context) ([]contracts.ForecastPoint, error) {
	return dataset.LoadForecasts(f.Path, f.Format)
}

// ServiceForecasts forecast_service.base_url (서비스가 나열하는 모든 항목)
type ServiceForecasts struct {
	Service *dataset.ForecastService
}

func (s ServiceForecasts) Forecasts(ctx context.Context) ([]contracts.ForecastPoint, error) {
	return s.Service.FetchForecasts(ctx, nil)
}

// Runner 설정 → 입력 로드 → holdout 분할 → 평가 → sink 기록
// ⭐ SSOT: CLI evaluate, API run, 스케줄러 job 모두 이 경로로 실행
type Runner struct {
	cfg        *evalconfig.Config
	configHash string
	evaluator  *evaluation.Evaluator
	forecasts  ForecastSource
	sink       report.Sink
	log        zerolog.Logger
	now        func() time.Time

	mu sync.Mutex
}

// Options Runner 구성 요소
type Options struct {
	Config    *evalconfig.Config
	Forecasts ForecastSource
	Sink      report.Sink
	Recorder  *metrics.Recorder
	Now       func() time.Time
}

// NewRunner validates the evaluation settings and builds the evaluator
func NewRunner(opts Options, log zerolog.Logger) (*Runner, error) {
	if opts.Config == nil {
		return nil, &evaluation.ConfigurationError{Field: "config", Message: "required"}
	}
	if opts.Forecasts == nil {
		return nil, &evaluation.ConfigurationError{Field: "forecasts", Message: "no forecast source configured"}
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	evaluator, err := evaluation.NewEvaluator(evaluation.Options{
		Metrics:     opts.Config.Evaluation.Metrics,
		HorizonDays: opts.Config.Training.TestSizeDays,
		Workers:     opts.Config.Evaluation.Workers,
		Now:         now,
		Recorder:    opts.Recorder,
	}, log)
	if err != nil {
		return nil, err
	}

	hash, err := evalconfig.Hash(opts.Config)
	if err != nil {
		return nil, fmt.Errorf("hash config: %w", err)
	}

	return &Runner{
		cfg:        opts.Config,
		configHash: hash,
		evaluator:  evaluator,
		forecasts:  opts.Forecasts,
		sink:       opts.Sink,
		log:        log.With().Str("component", "pipeline.runner").Logger(),
		now:        now,
	}, nil
}

// ConfigHash returns the SHA-256 of the evaluation config
func (r *Runner) ConfigHash() string { return r.configHash }

// Run executes one evaluation. 동시에 한 번만 실행 (두 번째 호출은 ErrRunInProgress)
// sink 기록이 실패해도 생성된 리포트는 함께 반환
func (r *Runner) Run(ctx context.Context) (*contracts.EvaluationReport, error) {
	if !r.mu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer r.mu.Unlock()

	log := r.log.With().Str("config_hash", r.configHash[:12]).Logger()

	cols := dataset.Columns{
		ID:     r.cfg.Data.IDColumn,
		Date:   r.cfg.Data.DateColumn,
		Target: r.cfg.Data.TargetColumn,
	}
	af, err := dataset.LoadActualsCSV(r.cfg.Data.InputFile, cols)
	if err != nil {
		return nil, fmt.Errorf("load actuals: %w", err)
	}
	log.Info().
		Str("file", r.cfg.Data.InputFile).
		Int("rows", af.Rows).
		Int("observations", len(af.Observations)).
		Msg("actuals loaded")

	if r.cfg.Data.QualityReport != "" {
		if err := r.writeQualityReport(af, log); err != nil {
			return nil, err
		}
	}

	train, test := dataset.HoldoutSplit(af.Observations, r.cfg.Training.TestSizeDays)
	log.Info().
		Int("test_size_days", r.cfg.Training.TestSizeDays).
		Int("training_samples", len(train)).
		Int("test_samples", len(test)).
		Msg("holdout split")

	forecasts, err := r.forecasts.Forecasts(ctx)
	if err != nil {
		return nil, fmt.Errorf("load forecasts: %w", err)
	}

	rep, err := r.evaluator.Evaluate(ctx, test, forecasts)
	if err != nil {
		return nil, err
	}

	if r.cfg.Evaluation.PlotsEnabled() {
		log.Info().Msg("plot generation is delegated to the external plotting tool")
	}
	logInsights(log, rep)

	if r.sink != nil {
		if err := r.sink.Write(ctx, rep); err != nil {
			return rep, fmt.Errorf("persist report: %w", err)
		}
	}

	return rep, nil
}

func (r *Runner) writeQualityReport(af *dataset.ActualsFile, log zerolog.Logger) error {
	q := dataset.BuildQualityReport(af, r.cfg.Data.InputFile, r.now())
	data, err := json.MarshalIndent(q, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal quality report: %w", err)
	}
	if err := fsutil.WriteFileAtomic(r.cfg.Data.QualityReport, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write quality report: %w", err)
	}

	event := log.Info()
	if !q.Clean() {
		event = log.Warn()
	}
	event.
		Str("file", r.cfg.Data.QualityReport).
		Int("products", q.BasicStats.NumProducts).
		Int("duplicates", q.DataQuality.Duplicates).
		Int("negative_values", q.DataQuality.NegativeValues).
		Bool("clean", q.Clean()).
		Msg("data quality report saved")
	return nil
}

// logInsights MASE < 1 이면 naive baseline 보다 우수
func logInsights(log zerolog.Logger, rep *contracts.EvaluationReport) {
	s, ok := rep.OverallMetrics[contracts.MetricMASE]
	if !ok {
		return
	}
	if s.Mean < 1.0 {
		log.Info().Float64("mase", s.Mean).Msg("model beats the naive baseline")
		return
	}
	log.Warn().Float64("mase", s.Mean).Msg("model does not beat the naive baseline")
}
