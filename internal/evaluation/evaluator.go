package evaluation

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/wonny/foreval/internal/contracts"
	"github.com/wonny/foreval/internal/metrics"
)

// =============================================================================
// Forecast Evaluator
// =============================================================================

// Options 평가 실행 설정 (불변 값으로 전달, 전역 상태 없음)
type Options struct {
	Metrics     []string // RMSE, MAE, MAPE, MASE
	HorizonDays int      // test_size_days
	Workers     int      // 병렬 채점 워커 수 (0 = GOMAXPROCS)

	Now      func() time.Time  // 리포트 생성 시각 (nil = time.Now)
	Recorder *metrics.Recorder // nil 허용
}

// Evaluator 엔티티별 예측 정확도 평가기
// ⭐ SSOT: actual vs forecast 정렬, 지표 계산, 집계, 리포트 조립
type Evaluator struct {
	metrics     contracts.MetricSet
	horizonDays int
	workers     int
	now         func() time.Time
	rec         *metrics.Recorder
	log         zerolog.Logger
}

// NewEvaluator validates the options and returns a ready evaluator.
// 알 수 없는 지표 이름은 여기서 즉시 실패 (엔티티별 실패 아님)
func NewEvaluator(opts Options, log zerolog.Logger) (*Evaluator, error) {
	set, err := ResolveMetrics(opts.Metrics)
	if err != nil {
		return nil, err
	}

	if opts.HorizonDays < 1 {
		return nil, &ConfigurationError{Field: "training.test_size_days", Message: "must be >= 1"}
	}

	workers := opts.Workers
	if workers < 0 {
		return nil, &ConfigurationError{Field: "evaluation.workers", Message: "must be >= 0"}
	}
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Evaluator{
		metrics:     set,
		horizonDays: opts.HorizonDays,
		workers:     workers,
		now:         now,
		rec:         opts.Recorder,
		log:         log.With().Str("component", "evaluation.evaluator").Logger(),
	}, nil
}

// ResolveMetrics parses configured names into a de-duplicated MetricSet
func ResolveMetrics(names []string) (contracts.MetricSet, error) {
	if len(names) == 0 {
		return nil, &ConfigurationError{Field: "evaluation.metrics", Message: "at least one metric is required"}
	}

	set := make(contracts.MetricSet, 0, len(names))
	for _, name := range names {
		m, err := contracts.ParseMetric(name)
		if err != nil {
			return nil, &ConfigurationError{Field: "evaluation.metrics", Message: err.Error()}
		}
		if !set.Contains(m) {
			set = append(set, m)
		}
	}
	return set, nil
}

// Metrics returns the resolved metric set
func (e *Evaluator) Metrics() contracts.MetricSet {
	return append(contracts.MetricSet(nil), e.metrics...)
}

// entityInput 엔티티 하나의 입력 슬라이스
type entityInput struct {
	ID          string
	Actuals     []contracts.TimedValue
	Forecast    []contracts.TimedValue
	HasForecast bool
}

// entityScore 워커가 자기 슬롯에만 기록하는 결과
type entityScore struct {
	Result      contracts.MetricResult
	Diagnostics []contracts.Diagnostic
}

// Evaluate scores every entity, aggregates and assembles a fresh report.
// MissingInputError / InputError 는 치명적, 엔티티/지표 단위 문제는 null + Diagnostic
func (e *Evaluator) Evaluate(ctx context.Context, actuals []contracts.Observation, forecasts []contracts.ForecastPoint) (*contracts.EvaluationReport, error) {
	start := time.Now()

	inputs, err := groupInputs(actuals, forecasts)
	if err != nil {
		e.rec.ObserveFailure("input_error")
		return nil, err
	}

	e.log.Info().
		Int("actual_rows", len(actuals)).
		Int("forecast_rows", len(forecasts)).
		Int("entities", len(inputs)).
		Strs("metrics", metricNames(e.metrics)).
		Msg("evaluation started")

	scores := make([]entityScore, len(inputs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, in := range inputs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			scores[i] = e.scoreInput(in)
			return nil
		})
	}
	// 집계는 모든 엔티티 채점이 끝난 뒤에만 (barrier)
	if err := g.Wait(); err != nil {
		e.rec.ObserveFailure("canceled")
		return nil, fmt.Errorf("score entities: %w", err)
	}

	perEntity := make(map[string]contracts.MetricResult, len(inputs))
	var diags []contracts.Diagnostic
	for i, in := range inputs {
		perEntity[in.ID] = scores[i].Result
		diags = append(diags, scores[i].Diagnostics...)
	}

	for _, d := range diags {
		e.log.Warn().
			Str("entity", d.EntityID).
			Str("metric", string(d.Metric)).
			Str("kind", string(d.Kind)).
			Msg(d.Message)
	}

	overall := Aggregate(perEntity, e.metrics)
	report := BuildReport(e.now(), e.horizonDays, e.metrics, perEntity, overall, diags)

	for _, m := range e.metrics {
		s, ok := report.OverallMetrics[m]
		if !ok {
			e.log.Info().Str("metric", string(m)).Msg("overall metric not computable for any entity")
			continue
		}
		e.log.Info().
			Str("metric", string(m)).
			Float64("mean", s.Mean).
			Float64("std", s.Std).
			Float64("min", s.Min).
			Float64("max", s.Max).
			Int("n", s.N).
			Msg("overall metric")
	}

	elapsed := time.Since(start)
	e.rec.ObserveReport(report, elapsed)

	e.log.Info().
		Int("entities", report.EntityCount).
		Int("diagnostics", len(report.Diagnostics)).
		Dur("elapsed", elapsed).
		Msg("evaluation completed")

	return report, nil
}

func (e *Evaluator) scoreInput(in entityInput) entityScore {
	if !in.HasForecast {
		result := make(contracts.MetricResult, len(e.metrics))
		for _, m := range e.metrics {
			result[m] = nil
		}
		return entityScore{
			Result: result,
			Diagnostics: []contracts.Diagnostic{{
				EntityID: in.ID,
				Kind:     contracts.DiagMissingForecast,
				Message:  "no forecast rows for entity",
			}},
		}
	}

	result, diags := ScoreEntity(in.ID, in.Actuals, in.Forecast, e.metrics)
	return entityScore{Result: result, Diagnostics: diags}
}

// =============================================================================
// Input validation & grouping
// =============================================================================

// groupInputs validates both series and splits them per entity.
// 엔티티 목록 = actual ∪ forecast, ID 순 정렬
func groupInputs(actuals []contracts.Observation, forecasts []contracts.ForecastPoint) ([]entityInput, error) {
	if len(actuals) == 0 {
		return nil, &MissingInputError{Input: "actuals"}
	}
	if len(forecasts) == 0 {
		return nil, &MissingInputError{Input: "forecasts"}
	}

	actualBy := make(map[string][]contracts.TimedValue)
	seen := make(map[string]map[int64]struct{})
	for _, o := range actuals {
		if o.EntityID == "" {
			return nil, &InputError{Input: "actuals", Message: "empty entity id"}
		}
		if o.Value < 0 {
			return nil, &InputError{Input: "actuals", Message: fmt.Sprintf("negative value %v for %s at %s", o.Value, o.EntityID, o.Timestamp.Format(time.RFC3339))}
		}
		if !markSeen(seen, o.EntityID, o.Timestamp) {
			return nil, &InputError{Input: "actuals", Message: fmt.Sprintf("duplicate row for %s at %s", o.EntityID, o.Timestamp.Format(time.RFC3339))}
		}
		actualBy[o.EntityID] = append(actualBy[o.EntityID], contracts.TimedValue{Timestamp: o.Timestamp, Value: o.Value})
	}

	forecastBy := make(map[string][]contracts.TimedValue)
	seen = make(map[string]map[int64]struct{})
	for _, f := range forecasts {
		if f.EntityID == "" {
			return nil, &InputError{Input: "forecasts", Message: "empty entity id"}
		}
		for level := range f.Quantiles {
			if !(level > 0 && level < 1) || math.IsNaN(level) {
				return nil, &InputError{Input: "forecasts", Message: fmt.Sprintf("quantile level %v for %s outside (0,1)", level, f.EntityID)}
			}
		}
		if !markSeen(seen, f.EntityID, f.Timestamp) {
			return nil, &InputError{Input: "forecasts", Message: fmt.Sprintf("duplicate row for %s at %s", f.EntityID, f.Timestamp.Format(time.RFC3339))}
		}
		forecastBy[f.EntityID] = append(forecastBy[f.EntityID], contracts.TimedValue{Timestamp: f.Timestamp, Value: f.Mean})
	}

	ids := make([]string, 0, len(actualBy)+len(forecastBy))
	for id := range actualBy {
		ids = append(ids, id)
	}
	for id := range forecastBy {
		if _, ok := actualBy[id]; !ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	inputs := make([]entityInput, 0, len(ids))
	for _, id := range ids {
		fc, ok := forecastBy[id]
		inputs = append(inputs, entityInput{
			ID:          id,
			Actuals:     actualBy[id],
			Forecast:    fc,
			HasForecast: ok,
		})
	}
	return inputs, nil
}

func markSeen(seen map[string]map[int64]struct{}, id string, ts time.Time) bool {
	byTime, ok := seen[id]
	if !ok {
		byTime = make(map[int64]struct{})
		seen[id] = byTime
	}
	key := ts.UnixNano()
	if _, dup := byTime[key]; dup {
		return false
	}
	byTime[key] = struct{}{}
	return true
}

func metricNames(set contracts.MetricSet) []string {
	out := make([]string, len(set))
	for i, m := range set {
		out[i] = string(m)
	}
	return out
}
