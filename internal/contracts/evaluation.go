package contracts

import (
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// Metric
// =============================================================================

// Metric 정확도 지표 이름
type Metric string

const (
	MetricRMSE Metric = "RMSE" // Root Mean Squared Error
	MetricMAE  Metric = "MAE"  // Mean Absolute Error
	MetricMAPE Metric = "MAPE" // Mean Absolute Percentage Error (%)
	MetricMASE Metric = "MASE" // Mean Absolute Scaled Error
)

// AllMetrics 지원하는 지표 (고정 집합)
var AllMetrics = []Metric{MetricRMSE, MetricMAE, MetricMAPE, MetricMASE}

// DefaultMetrics metrics 미지정 시 기본값
var DefaultMetrics = []Metric{MetricMASE, MetricRMSE, MetricMAE}

// ParseMetric converts a configured name into a Metric.
// 대소문자 무시, 앞뒤 공백 제거
func ParseMetric(name string) (Metric, error) {
	m := Metric(strings.ToUpper(strings.TrimSpace(name)))
	for _, known := range AllMetrics {
		if m == known {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown metric %q (supported: RMSE, MAE, MAPE, MASE)", name)
}

// MetricSet 요청된 지표 목록 (설정 순서 유지, 중복 없음)
type MetricSet []Metric

// Contains reports whether m was requested
func (s MetricSet) Contains(m Metric) bool {
	for _, x := range s {
		if x == m {
			return true
		}
	}
	return false
}

// =============================================================================
// Input series
// =============================================================================

// Observation 실제값 한 건 (entity, timestamp) 쌍은 유일
type Observation struct {
	EntityID  string    `json:"entity_id"`
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"` // >= 0
}

// ForecastPoint 예측값 한 건
type ForecastPoint struct {
	EntityID  string              `json:"entity_id"`
	Timestamp time.Time           `json:"timestamp"`
	Mean      float64             `json:"mean"`                // point forecast
	Quantiles map[float64]float64 `json:"quantiles,omitempty"` // level in (0,1) → value
}

// TimedValue 엔티티별 시계열 원소
// 예측은 항상 []TimedValue (길이 >= 1) 로 다룸
type TimedValue struct {
	Timestamp time.Time
	Value     float64
}

// =============================================================================
// Results
// =============================================================================

// MetricResult 엔티티별 지표 값. nil = 계산 불가 (JSON null)
type MetricResult map[Metric]*float64

// Value returns the metric value and whether it is non-null
func (r MetricResult) Value(m Metric) (float64, bool) {
	v, ok := r[m]
	if !ok || v == nil {
		return 0, false
	}
	return *v, true
}

// Clone returns a deep copy
func (r MetricResult) Clone() MetricResult {
	out := make(MetricResult, len(r))
	for k, v := range r {
		if v == nil {
			out[k] = nil
			continue
		}
		val := *v
		out[k] = &val
	}
	return out
}

// MetricSummary 엔티티 간 집계 통계 (모표준편차)
type MetricSummary struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	N    int     `json:"n"` // 기여 엔티티 수
}

// OverallMetrics 지표별 집계. 기여 엔티티가 없는 지표는 키 자체가 없음
type OverallMetrics map[Metric]MetricSummary

// DiagnosticKind 비치명적 경고 종류
type DiagnosticKind string

const (
	DiagEmptyAlignment  DiagnosticKind = "EMPTY_ALIGNMENT"  // actual/forecast 공통 timestamp 없음
	DiagUndefinedMetric DiagnosticKind = "UNDEFINED_METRIC" // 특정 지표 계산 불가
	DiagMissingForecast DiagnosticKind = "MISSING_FORECAST" // 엔티티 예측 자체가 없음
	DiagDroppedPoint    DiagnosticKind = "DROPPED_POINT"    // 비유한값 쌍 제외
)

// Diagnostic 평가 중 기록된 비치명적 상황
type Diagnostic struct {
	EntityID string         `json:"entity_id"`
	Metric   Metric         `json:"metric,omitempty"`
	Kind     DiagnosticKind `json:"kind"`
	Message  string         `json:"message"`
}

// EvaluationReport 평가 리포트 (한 번의 실행 결과, 생성 후 불변)
type EvaluationReport struct {
	EvaluatedAt       time.Time               `json:"evaluated_at"`
	TestSizeDays      int                     `json:"test_size_days"`
	MetricsCalculated []Metric                `json:"metrics_calculated"`
	EntityCount       int                     `json:"entity_count"`
	PerProductMetrics map[string]MetricResult `json:"per_product_metrics"`
	OverallMetrics    OverallMetrics          `json:"overall_metrics"`
	Diagnostics       []Diagnostic            `json:"diagnostics"`
}
