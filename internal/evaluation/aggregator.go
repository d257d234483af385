package evaluation

import (
	"math"
	"sort"

	"github.com/wonny/foreval/internal/contracts"
)

// Aggregate summarizes per-entity values for each requested metric.
// null 값은 제외, 기여 엔티티가 0 이면 해당 지표는 결과에서 생략
func Aggregate(perEntity map[string]contracts.MetricResult, metrics contracts.MetricSet) contracts.OverallMetrics {
	// 합산 순서 고정 (부동소수 결과 재현성)
	ids := make([]string, 0, len(perEntity))
	for id := range perEntity {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	overall := make(contracts.OverallMetrics, len(metrics))
	for _, m := range metrics {
		values := make([]float64, 0, len(ids))
		for _, id := range ids {
			if v, ok := perEntity[id].Value(m); ok {
				values = append(values, v)
			}
		}

		if summary, ok := summarize(values); ok {
			overall[m] = summary
		}
	}

	return overall
}

// summarize mean, population std (÷N), min, max
func summarize(values []float64) (contracts.MetricSummary, bool) {
	n := len(values)
	if n == 0 {
		return contracts.MetricSummary{}, false
	}

	minV, maxV := values[0], values[0]
	var sum float64
	for _, v := range values {
		sum += v
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
	}
	mean := sum / float64(n)

	var sumSq float64
	for _, v := range values {
		d := v - mean
		sumSq += d * d
	}

	return contracts.MetricSummary{
		Mean: mean,
		Std:  math.Sqrt(sumSq / float64(n)),
		Min:  minV,
		Max:  maxV,
		N:    n,
	}, true
}
