package dataset

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/foreval/internal/contracts"
)

var salesColumns = Columns{ID: "item_name", Date: "date", Target: "total_amount_sold"}

const salesCSV = `date,item_name,total_amount_sold
2024-03-01,BLACK VELVET,120
2024-03-01,TITOS HANDMADE VODKA,80
2024-03-02,BLACK VELVET,95
2024-03-02,TITOS HANDMADE VODKA,
2024-03-03,BLACK VELVET,101.5
2024-03-03,TITOS HANDMADE VODKA,77
`

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2024-03-01", date("2024-03-01")},
		{"2024-03-01 00:00:00", date("2024-03-01")},
		{"2024-03-01T00:00:00", date("2024-03-01")},
		{"2024-03-01T09:00:00+09:00", date("2024-03-01")},
		{" 2024-03-01 ", date("2024-03-01")},
	}
	for _, tt := range tests {
		got, err := ParseTimestamp(tt.in)
		require.NoError(t, err, tt.in)
		assert.True(t, tt.want.Equal(got), "%s → %s", tt.in, got)
	}

	_, err := ParseTimestamp("03/01/2024")
	assert.Error(t, err)
}

func TestReadActualsCSV(t *testing.T) {
	af, err := ReadActualsCSV(strings.NewReader(salesCSV), salesColumns)
	require.NoError(t, err)

	assert.Equal(t, 6, af.Rows)
	assert.Len(t, af.Observations, 5)
	assert.Equal(t, 1, af.Missing["total_amount_sold"])
	assert.Equal(t, 0, af.Missing["date"])

	last := af.Observations[4]
	assert.Equal(t, "TITOS HANDMADE VODKA", last.EntityID)
	assert.Equal(t, 77.0, last.Value)
	assert.True(t, date("2024-03-03").Equal(last.Timestamp))
}

func TestReadActualsCSV_Errors(t *testing.T) {
	tests := []struct {
		name string
		csv  string
		want string
	}{
		{"missing column", "date,item_name\n2024-03-01,A\n", `column "total_amount_sold" not found`},
		{"bad number", "date,item_name,total_amount_sold\n2024-03-01,A,abc\n", "line 2"},
		{"bad date", "date,item_name,total_amount_sold\n01.03.2024,A,1\n", "unrecognized timestamp"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadActualsCSV(strings.NewReader(tt.csv), salesColumns)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestReadActualsCSV_EmptyFile(t *testing.T) {
	af, err := ReadActualsCSV(strings.NewReader(""), salesColumns)
	require.NoError(t, err)
	assert.Empty(t, af.Observations)
}

func TestHoldoutSplit(t *testing.T) {
	af, err := ReadActualsCSV(strings.NewReader(salesCSV), salesColumns)
	require.NoError(t, err)

	train, test := HoldoutSplit(af.Observations, 2)

	// 마지막 2 개 날짜 (03-02, 03-03) 가 test
	assert.Len(t, train, 2)
	assert.Len(t, test, 3)
	for _, o := range train {
		assert.True(t, date("2024-03-01").Equal(o.Timestamp))
	}

	_, all := HoldoutSplit(af.Observations, 30)
	assert.Len(t, all, 5)

	noTrain, none := HoldoutSplit(af.Observations, 0)
	assert.Len(t, noTrain, 5)
	assert.Empty(t, none)
}

const predictionsJSON = `{
  "generated_at": "2024-03-04T10:00:00",
  "num_products": 2,
  "results": [
    {
      "item_name": "BLACK VELVET",
      "predictions": [
        {"timestamp": "2024-03-02 00:00:00", "mean": 100.0, "quantile_0.1": 80.5, "quantile_0.9": 120.25},
        {"timestamp": "2024-03-03 00:00:00", "mean": 98.0}
      ],
      "num_predictions": 2
    },
    {
      "item_name": "TITOS HANDMADE VODKA",
      "predictions": [{"timestamp": "2024-03-03 00:00:00", "mean": 75.0}],
      "num_predictions": 1
    }
  ]
}`

func TestReadPredictionsJSON(t *testing.T) {
	points, err := ReadPredictionsJSON(strings.NewReader(predictionsJSON))
	require.NoError(t, err)
	require.Len(t, points, 3)

	first := points[0]
	assert.Equal(t, "BLACK VELVET", first.EntityID)
	assert.Equal(t, 100.0, first.Mean)
	assert.Equal(t, map[float64]float64{0.1: 80.5, 0.9: 120.25}, first.Quantiles)
	assert.True(t, date("2024-03-02").Equal(first.Timestamp))

	// 단일 예측도 동일한 배열 형태
	assert.Equal(t, "TITOS HANDMADE VODKA", points[2].EntityID)
	assert.Nil(t, points[2].Quantiles)
}

func TestReadPredictionsJSON_MissingMean(t *testing.T) {
	doc := `{"results":[{"item_name":"A","predictions":[{"timestamp":"2024-03-01"}]}]}`
	_, err := ReadPredictionsJSON(strings.NewReader(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "without mean")
}

func TestReadForecastCSV(t *testing.T) {
	doc := "item_id,timestamp,mean,0.1,0.5,0.9\n" +
		"BLACK VELVET,2024-03-02,100,80,100,120\n" +
		"BLACK VELVET,2024-03-03,98,,97,119\n"

	points, err := ReadForecastCSV(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, points, 2)

	assert.Equal(t, map[float64]float64{0.1: 80, 0.5: 100, 0.9: 120}, points[0].Quantiles)
	assert.Equal(t, map[float64]float64{0.5: 97, 0.9: 119}, points[1].Quantiles)

	_, err = ReadForecastCSV(strings.NewReader("item_id,mean\nA,1\n"))
	assert.Error(t, err)
}

func TestLoadForecasts_AutoFormat(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "predictions.json")
	csvPath := filepath.Join(dir, "predictions.csv")
	require.NoError(t, os.WriteFile(jsonPath, []byte(predictionsJSON), 0o644))
	require.NoError(t, os.WriteFile(csvPath, []byte("item_id,timestamp,mean\nA,2024-03-01,1\n"), 0o644))

	fromJSON, err := LoadForecasts(jsonPath, "auto")
	require.NoError(t, err)
	assert.Len(t, fromJSON, 3)

	fromCSV, err := LoadForecasts(csvPath, "")
	require.NoError(t, err)
	assert.Len(t, fromCSV, 1)

	_, err = LoadForecasts(csvPath, "parquet")
	assert.Error(t, err)
}

func TestBuildQualityReport(t *testing.T) {
	af, err := ReadActualsCSV(strings.NewReader(salesCSV+"2024-03-03,BLACK VELVET,-1\n"), salesColumns)
	require.NoError(t, err)

	generated := date("2024-03-04")
	q := BuildQualityReport(af, "data/sales.csv", generated)

	assert.Equal(t, 7, q.BasicStats.NumRows)
	assert.Equal(t, 2, q.BasicStats.NumProducts)
	assert.Equal(t, []string{"BLACK VELVET", "TITOS HANDMADE VODKA"}, q.BasicStats.Products)
	assert.Equal(t, 2, q.BasicStats.DateRange.Days)
	assert.Equal(t, 1, q.DataQuality.MissingValues["total_amount_sold"])
	assert.Equal(t, 1, q.DataQuality.Duplicates)
	assert.Equal(t, 1, q.DataQuality.NegativeValues)
	assert.False(t, q.Clean())

	bv := q.PerProductStats["BLACK VELVET"]
	assert.Equal(t, 4, bv.NumRecords)
	assert.Equal(t, 120.0, bv.Max)
	assert.Equal(t, -1.0, bv.Min)
	assert.InDelta(t, (95+101.5)/2, bv.Median, 1e-12)

	assert.InDelta(t, 472.5, q.ValueStatistics.Total, 1e-9)
}

func TestBuildQualityReport_Clean(t *testing.T) {
	af := &ActualsFile{
		Observations: []contracts.Observation{
			{EntityID: "A", Timestamp: date("2024-03-01"), Value: 2},
			{EntityID: "A", Timestamp: date("2024-03-02"), Value: 4},
		},
		Rows:    2,
		Missing: map[string]int{"value": 0},
	}
	q := BuildQualityReport(af, "x", date("2024-03-03"))
	assert.True(t, q.Clean())
	assert.InDelta(t, 1.4142135623730951, q.ValueStatistics.StdDev, 1e-12)
}
