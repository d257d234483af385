package evaluation

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/wonny/foreval/internal/contracts"
)

// =============================================================================
// Alignment
// =============================================================================

// alignedPair actual/forecast 가 같은 timestamp 를 공유하는 한 쌍
type alignedPair struct {
	Timestamp time.Time
	Actual    float64
	Forecast  float64
}

// align inner-joins actuals and forecast on timestamp and returns the pairs in
// timestamp order. Pairs with a non-finite side are dropped and counted.
// 엔티티 내 timestamp 는 유일하다고 가정 (Evaluator 가 사전 검증)
func align(actuals, forecast []contracts.TimedValue) ([]alignedPair, int) {
	byTime := make(map[int64]float64, len(actuals))
	for _, a := range actuals {
		byTime[a.Timestamp.UnixNano()] = a.Value
	}

	pairs := make([]alignedPair, 0, len(forecast))
	dropped := 0
	for _, f := range forecast {
		actual, ok := byTime[f.Timestamp.UnixNano()]
		if !ok {
			continue
		}
		if !isFinite(actual) || !isFinite(f.Value) {
			dropped++
			continue
		}
		pairs = append(pairs, alignedPair{Timestamp: f.Timestamp, Actual: actual, Forecast: f.Value})
	}

	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].Timestamp.Before(pairs[j].Timestamp)
	})

	return pairs, dropped
}

// =============================================================================
// Per-entity scoring
// =============================================================================

// ScoreEntity computes the requested metrics for one entity.
// 계산 불가한 지표는 nil 로 남기고 Diagnostic 을 기록. 다른 지표 계산은 계속 진행
func ScoreEntity(entityID string, actuals, forecast []contracts.TimedValue, metrics contracts.MetricSet) (contracts.MetricResult, []contracts.Diagnostic) {
	result := make(contracts.MetricResult, len(metrics))
	for _, m := range metrics {
		result[m] = nil
	}

	var diags []contracts.Diagnostic

	pairs, dropped := align(actuals, forecast)
	if dropped > 0 {
		diags = append(diags, contracts.Diagnostic{
			EntityID: entityID,
			Kind:     contracts.DiagDroppedPoint,
			Message:  fmt.Sprintf("%d aligned point(s) with non-finite values excluded", dropped),
		})
	}

	if len(pairs) == 0 {
		diags = append(diags, contracts.Diagnostic{
			EntityID: entityID,
			Kind:     contracts.DiagEmptyAlignment,
			Message:  fmt.Sprintf("no overlapping timestamps (%d actuals, %d forecasts)", len(actuals), len(forecast)),
		})
		return result, diags
	}

	// MASE 는 MAE 를 필요로 하므로 요청 여부와 무관하게 MAE 계산
	mae := meanAbsoluteError(pairs)

	for _, m := range metrics {
		var (
			value  float64
			ok     bool
			reason string
		)

		switch m {
		case contracts.MetricRMSE:
			value, ok = rootMeanSquaredError(pairs), true
		case contracts.MetricMAE:
			value, ok = mae, true
		case contracts.MetricMAPE:
			value, ok = meanAbsolutePercentageError(pairs)
			reason = "all aligned actuals are zero"
		case contracts.MetricMASE:
			value, ok, reason = meanAbsoluteScaledError(mae, pairs)
		}

		if ok && (!isFinite(value) || value < 0) {
			ok = false
			reason = "result is not a finite non-negative number"
		}

		if !ok {
			diags = append(diags, contracts.Diagnostic{
				EntityID: entityID,
				Metric:   m,
				Kind:     contracts.DiagUndefinedMetric,
				Message:  reason,
			})
			continue
		}

		v := value
		result[m] = &v
	}

	return result, diags
}

// =============================================================================
// Metric formulas
// =============================================================================

// rootMeanSquaredError sqrt(mean(e^2)), e = actual - forecast
func rootMeanSquaredError(pairs []alignedPair) float64 {
	var sumSq float64
	for _, p := range pairs {
		e := p.Actual - p.Forecast
		sumSq += e * e
	}
	return math.Sqrt(sumSq / float64(len(pairs)))
}

// meanAbsoluteError mean(|e|)
func meanAbsoluteError(pairs []alignedPair) float64 {
	var sumAbs float64
	for _, p := range pairs {
		sumAbs += math.Abs(p.Actual - p.Forecast)
	}
	return sumAbs / float64(len(pairs))
}

// meanAbsolutePercentageError 100 * mean(|e / actual|), actual == 0 인 쌍은 제외
func meanAbsolutePercentageError(pairs []alignedPair) (float64, bool) {
	var sum float64
	n := 0
	for _, p := range pairs {
		if p.Actual == 0 {
			continue
		}
		sum += math.Abs((p.Actual - p.Forecast) / p.Actual)
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n) * 100, true
}

// meanAbsoluteScaledError MAE / naive error.
// naive error = 평가 구간 actual 의 1차 차분 절대값 평균 (in-sample 계절 naive 아님)
func meanAbsoluteScaledError(mae float64, pairs []alignedPair) (float64, bool, string) {
	if len(pairs) < 2 {
		return 0, false, "fewer than 2 aligned points for naive baseline"
	}

	var sumDiff float64
	for i := 1; i < len(pairs); i++ {
		sumDiff += math.Abs(pairs[i].Actual - pairs[i-1].Actual)
	}
	naive := sumDiff / float64(len(pairs)-1)

	if naive == 0 {
		return 0, false, "naive baseline error is zero"
	}
	return mae / naive, true, ""
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
