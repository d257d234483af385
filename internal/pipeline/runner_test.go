package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/foreval/internal/contracts"
	"github.com/wonny/foreval/internal/evalconfig"
	"github.com/wonny/foreval/internal/evaluation"
	"github.com/wonny/foreval/internal/report"
	"github.com/wonny/foreval/pkg/config"
	"github.com/wonny/foreval/pkg/logger"
)

// 03-01..03-05, test_size_days=3 → 03-03..03-05 평가
const actualsCSV = `date,item_name,total_amount_sold
2024-03-01,A,10
2024-03-02,A,11
2024-03-03,A,10
2024-03-04,A,12
2024-03-05,A,9
2024-03-01,B,0
2024-03-02,B,0
2024-03-03,B,0
2024-03-04,B,0
2024-03-05,B,0
`

const predictionsJSON = `{
  "results": [
    {"item_name": "A", "predictions": [
      {"timestamp": "2024-03-03 00:00:00", "mean": 11},
      {"timestamp": "2024-03-04 00:00:00", "mean": 11},
      {"timestamp": "2024-03-05 00:00:00", "mean": 10},
      {"timestamp": "2024-03-06 00:00:00", "mean": 10}
    ]},
    {"item_name": "B", "predictions": [
      {"timestamp": "2024-03-04 00:00:00", "mean": 5},
      {"timestamp": "2024-03-05 00:00:00", "mean": 3}
    ]}
  ]
}`

var runAt = time.Date(2024, 3, 6, 6, 30, 0, 0, time.UTC)

func writeFixtures(t *testing.T) *evalconfig.Config {
	t.Helper()
	dir := t.TempDir()

	input := filepath.Join(dir, "data", "sales.csv")
	forecast := filepath.Join(dir, "output", "predictions.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(input), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Dir(forecast), 0o755))
	require.NoError(t, os.WriteFile(input, []byte(actualsCSV), 0o644))
	require.NoError(t, os.WriteFile(forecast, []byte(predictionsJSON), 0o644))

	plots := false
	cfg := &evalconfig.Config{
		Data: evalconfig.Data{
			InputFile:     input,
			ForecastFile:  forecast,
			IDColumn:      "item_name",
			DateColumn:    "date",
			TargetColumn:  "total_amount_sold",
			QualityReport: filepath.Join(dir, "output", "data_quality_report.json"),
		},
		Training:   evalconfig.Training{TestSizeDays: 3},
		Evaluation: evalconfig.Evaluation{Metrics: []string{"MAE", "RMSE", "MAPE", "MASE"}, GeneratePlots: &plots},
		Output: evalconfig.Output{
			EvaluationReport: filepath.Join(dir, "output", "evaluation_report.json"),
			Sinks:            []string{evalconfig.SinkFile, evalconfig.SinkSQLite},
		},
	}
	evalconfig.ApplyDefaults(cfg)
	require.NoError(t, evalconfig.Validate(cfg))
	return cfg
}

func TestRunner_Run(t *testing.T) {
	cfg := writeFixtures(t)
	envCfg := &config.Config{SQLitePath: filepath.Join(t.TempDir(), "evaluations.db")}

	res, err := OpenSinks(context.Background(), cfg, envCfg, nil, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(res.Close)

	runner, err := NewRunner(Options{
		Config:    cfg,
		Forecasts: NewForecastSource(cfg, logger.Nop()),
		Sink:      res.Sink,
		Now:       func() time.Time { return runAt },
	}, zerolog.Nop())
	require.NoError(t, err)
	assert.Len(t, runner.ConfigHash(), 64)

	rep, err := runner.Run(context.Background())
	require.NoError(t, err)

	// A: errors [-1, 1, -1] on 03-03..03-05, 03-06 은 actual 없음
	mae, ok := rep.PerProductMetrics["A"].Value(contracts.MetricMAE)
	require.True(t, ok)
	assert.InDelta(t, 1.0, mae, 1e-12)

	// B: 전부 0 → MAPE null, MASE null (naive = 0)
	assert.Nil(t, rep.PerProductMetrics["B"][contracts.MetricMAPE])
	assert.Nil(t, rep.PerProductMetrics["B"][contracts.MetricMASE])

	overallMAPE := rep.OverallMetrics[contracts.MetricMAPE]
	assert.Equal(t, 1, overallMAPE.N)
	assert.Equal(t, 2, rep.EntityCount)
	assert.Equal(t, 3, rep.TestSizeDays)

	// 두 sink 모두 같은 리포트
	for _, s := range res.Sink.Sinks() {
		stored, err := s.(report.Reader).Latest(context.Background())
		require.NoError(t, err, s.Name())
		assert.Equal(t, rep.EntityCount, stored.EntityCount)
		assert.True(t, runAt.Equal(stored.EvaluatedAt))
	}

	_, err = os.Stat(cfg.Data.QualityReport)
	assert.NoError(t, err)
}

func TestRunner_MissingForecasts(t *testing.T) {
	cfg := writeFixtures(t)
	require.NoError(t, os.WriteFile(cfg.Data.ForecastFile, []byte(`{"results": []}`), 0o644))

	runner, err := NewRunner(Options{Config: cfg, Forecasts: NewForecastSource(cfg, logger.Nop())}, zerolog.Nop())
	require.NoError(t, err)

	_, err = runner.Run(context.Background())
	var missing *evaluation.MissingInputError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "forecasts", missing.Input)
}

func TestRunner_UnknownMetric(t *testing.T) {
	cfg := writeFixtures(t)
	cfg.Evaluation.Metrics = []string{"MAE", "WAPE"}

	_, err := NewRunner(Options{Config: cfg, Forecasts: FileForecasts{}}, zerolog.Nop())
	var cfgErr *evaluation.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
}

type blockingSource struct {
	entered chan struct{}
	release chan struct{}
}

func (b blockingSource) Forecasts(ctx context.Context) ([]contracts.ForecastPoint, error) {
	close(b.entered)
	select {
	case <-b.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return []contracts.ForecastPoint{{EntityID: "A", Timestamp: time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), Mean: 9}}, nil
}

func TestRunner_SingleRunAtATime(t *testing.T) {
	cfg := writeFixtures(t)
	cfg.Data.QualityReport = ""

	src := blockingSource{entered: make(chan struct{}), release: make(chan struct{})}
	runner, err := NewRunner(Options{Config: cfg, Forecasts: src}, zerolog.Nop())
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := runner.Run(context.Background())
		done <- err
	}()

	<-src.entered
	_, err = runner.Run(context.Background())
	assert.True(t, errors.Is(err, ErrRunInProgress))

	close(src.release)
	require.NoError(t, <-done)
}

type failingSink struct{}

func (failingSink) Name() string { return "broken" }
func (failingSink) Write(context.Context, *contracts.EvaluationReport) error {
	return errors.New("unavailable")
}

func TestRunner_SinkFailureReturnsReport(t *testing.T) {
	cfg := writeFixtures(t)

	runner, err := NewRunner(Options{
		Config:    cfg,
		Forecasts: NewForecastSource(cfg, logger.Nop()),
		Sink:      failingSink{},
	}, zerolog.Nop())
	require.NoError(t, err)

	rep, err := runner.Run(context.Background())
	require.Error(t, err)
	require.NotNil(t, rep)
	assert.Equal(t, 2, rep.EntityCount)
}
