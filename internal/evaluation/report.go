package evaluation

import (
	"bytes"
	"encoding/json"
	"sort"
	"time"

	"github.com/wonny/foreval/internal/contracts"
)

// BuildReport assembles an immutable report from already computed parts.
// 입력 map/slice 는 깊은 복사 후 사용 (호출자 변경이 리포트에 반영되지 않음)
func BuildReport(
	generatedAt time.Time,
	horizonDays int,
	metrics contracts.MetricSet,
	perEntity map[string]contracts.MetricResult,
	overall contracts.OverallMetrics,
	diagnostics []contracts.Diagnostic,
) *contracts.EvaluationReport {
	perCopy := make(map[string]contracts.MetricResult, len(perEntity))
	for id, r := range perEntity {
		perCopy[id] = r.Clone()
	}

	overallCopy := make(contracts.OverallMetrics, len(overall))
	for m, s := range overall {
		overallCopy[m] = s
	}

	diagCopy := make([]contracts.Diagnostic, len(diagnostics))
	copy(diagCopy, diagnostics)
	sortDiagnostics(diagCopy)

	return &contracts.EvaluationReport{
		EvaluatedAt:       generatedAt,
		TestSizeDays:      horizonDays,
		MetricsCalculated: append([]contracts.Metric(nil), metrics...),
		EntityCount:       len(perCopy),
		PerProductMetrics: perCopy,
		OverallMetrics:    overallCopy,
		Diagnostics:       diagCopy,
	}
}

// MarshalReport renders the report as indented JSON with a trailing newline.
// map 키는 encoding/json 이 정렬하므로 동일 입력 → 동일 바이트 (evaluated_at 제외)
func MarshalReport(r *contracts.EvaluationReport) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalReport parses a document produced by MarshalReport
func UnmarshalReport(data []byte) (*contracts.EvaluationReport, error) {
	var r contracts.EvaluationReport
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func sortDiagnostics(diags []contracts.Diagnostic) {
	sort.SliceStable(diags, func(i, j int) bool {
		a, b := diags[i], diags[j]
		if a.EntityID != b.EntityID {
			return a.EntityID < b.EntityID
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.Metric < b.Metric
	})
}
