package evaluation

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/foreval/internal/contracts"
)

func sampleParts() (map[string]contracts.MetricResult, contracts.OverallMetrics, []contracts.Diagnostic) {
	per := map[string]contracts.MetricResult{
		"zeta":  {contracts.MetricMAE: ptr(0.1 + 0.2), contracts.MetricMAPE: nil},
		"alpha": {contracts.MetricMAE: ptr(1.0 / 3), contracts.MetricMAPE: ptr(12.5)},
	}
	overall := contracts.OverallMetrics{
		contracts.MetricMAE:  {Mean: 0.31666666666666665, Std: 0.016666666666666663, Min: 0.30000000000000004, Max: 0.3333333333333333, N: 2},
		contracts.MetricMAPE: {Mean: 12.5, Min: 12.5, Max: 12.5, N: 1},
	}
	diags := []contracts.Diagnostic{
		{EntityID: "zeta", Metric: contracts.MetricMAPE, Kind: contracts.DiagUndefinedMetric, Message: "all aligned actuals are zero"},
		{EntityID: "alpha", Kind: contracts.DiagDroppedPoint, Message: "1 aligned point(s) with non-finite values excluded"},
	}
	return per, overall, diags
}

func TestBuildReport_DeepCopy(t *testing.T) {
	per, overall, diags := sampleParts()
	metrics := contracts.MetricSet{contracts.MetricMAE, contracts.MetricMAPE}

	r := BuildReport(day0, 7, metrics, per, overall, diags)

	// 원본 변경이 리포트에 반영되지 않아야 함
	*per["alpha"][contracts.MetricMAE] = 99
	per["new"] = contracts.MetricResult{}
	delete(overall, contracts.MetricMAE)
	diags[0].Message = "changed"
	metrics[0] = contracts.MetricRMSE

	v, _ := r.PerProductMetrics["alpha"].Value(contracts.MetricMAE)
	assert.InDelta(t, 1.0/3, v, 1e-15)
	assert.Equal(t, 2, r.EntityCount)
	assert.Contains(t, r.OverallMetrics, contracts.MetricMAE)
	assert.Equal(t, []contracts.Metric{contracts.MetricMAE, contracts.MetricMAPE}, r.MetricsCalculated)

	// diagnostics 정렬: entity → kind → metric
	require.Len(t, r.Diagnostics, 2)
	assert.Equal(t, "alpha", r.Diagnostics[0].EntityID)
	assert.Equal(t, "all aligned actuals are zero", r.Diagnostics[1].Message)
}

func TestMarshalReport_Idempotent(t *testing.T) {
	per, overall, diags := sampleParts()
	metrics := contracts.MetricSet{contracts.MetricMAE, contracts.MetricMAPE}

	first, err := MarshalReport(BuildReport(day0, 7, metrics, per, overall, diags))
	require.NoError(t, err)
	second, err := MarshalReport(BuildReport(day0.Add(time.Hour), 7, metrics, per, overall, diags))
	require.NoError(t, err)

	// evaluated_at 만 달라야 함
	assert.NotEqual(t, first, second)
	assert.Equal(t, stripEvaluatedAt(t, first), stripEvaluatedAt(t, second))

	again, err := MarshalReport(BuildReport(day0, 7, metrics, per, overall, diags))
	require.NoError(t, err)
	assert.True(t, bytes.Equal(first, again))
}

func TestMarshalReport_ExplicitNullAndPrecision(t *testing.T) {
	per, overall, diags := sampleParts()
	data, err := MarshalReport(BuildReport(day0, 7, contracts.MetricSet{contracts.MetricMAE, contracts.MetricMAPE}, per, overall, diags))
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))

	zeta := doc["per_product_metrics"].(map[string]any)["zeta"].(map[string]any)
	mape, present := zeta["MAPE"]
	assert.True(t, present, "null must be explicit")
	assert.Nil(t, mape)

	parsed, err := UnmarshalReport(data)
	require.NoError(t, err)
	v, ok := parsed.PerProductMetrics["zeta"].Value(contracts.MetricMAE)
	require.True(t, ok)
	assert.Equal(t, 0.1+0.2, v, "round trip must be lossless")
	assert.True(t, parsed.EvaluatedAt.Equal(day0))
	assert.Equal(t, byte('\n'), data[len(data)-1])
}

func stripEvaluatedAt(t *testing.T, data []byte) []byte {
	t.Helper()
	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &doc))
	delete(doc, "evaluated_at")
	out, err := json.Marshal(doc)
	require.NoError(t, err)
	return out
}
