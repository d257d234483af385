package evalconfig

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // 컨테이너에 zoneinfo 없을 때 대비

	"github.com/robfig/cron/v3"

	"github.com/wonny/foreval/internal/contracts"
)

// ValidationError 검증 실패 (프로그램 중단)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// CronParser 초 단위 필드 포함 6-field (scheduler 와 동일 형식)
var CronParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ApplyDefaults fills optional fields left empty in the document
func ApplyDefaults(cfg *Config) {
	if len(cfg.Evaluation.Metrics) == 0 {
		for _, m := range contracts.DefaultMetrics {
			cfg.Evaluation.Metrics = append(cfg.Evaluation.Metrics, string(m))
		}
	}
	if cfg.Data.ForecastFormat == "" {
		cfg.Data.ForecastFormat = FormatAuto
	}
	if len(cfg.Output.Sinks) == 0 {
		cfg.Output.Sinks = []string{SinkFile}
	}
	if cfg.Output.ReportKey == "" {
		cfg.Output.ReportKey = "latest"
	}
	if cfg.Schedule.Timezone == "" {
		cfg.Schedule.Timezone = "UTC"
	}
	if cfg.ForecastService.Enabled() {
		if cfg.ForecastService.RequestsPerSecond == 0 {
			cfg.ForecastService.RequestsPerSecond = 5
		}
		if cfg.ForecastService.TimeoutSeconds == 0 {
			cfg.ForecastService.TimeoutSeconds = 30
		}
	}
}

// Validate checks all required constraints
// 실패 시 error 반환 (프로그램 중단, 채점 시작 전)
func Validate(cfg *Config) error {
	// === Data ===
	if cfg.Data.InputFile == "" {
		return ValidationError{"data.input_file", "required"}
	}
	if cfg.Data.IDColumn == "" {
		return ValidationError{"data.id_column", "required"}
	}
	if cfg.Data.DateColumn == "" {
		return ValidationError{"data.date_column", "required"}
	}
	if cfg.Data.TargetColumn == "" {
		return ValidationError{"data.target_column", "required"}
	}
	if cfg.Data.ForecastFile == "" && !cfg.ForecastService.Enabled() {
		return ValidationError{"data.forecast_file", "required unless forecast_service.base_url is set"}
	}
	switch cfg.Data.ForecastFormat {
	case FormatAuto, FormatJSON, FormatCSV:
	default:
		return ValidationError{"data.forecast_format", "must be one of: auto, json, csv"}
	}

	// === Training ===
	if cfg.Training.TestSizeDays < 1 {
		return ValidationError{"training.test_size_days", "must be >= 1"}
	}

	// === Evaluation ===
	for _, name := range cfg.Evaluation.Metrics {
		if _, err := contracts.ParseMetric(name); err != nil {
			return ValidationError{"evaluation.metrics", err.Error()}
		}
	}
	if cfg.Evaluation.Workers < 0 {
		return ValidationError{"evaluation.workers", "must be >= 0"}
	}

	// === Output ===
	seen := make(map[string]bool, len(cfg.Output.Sinks))
	for _, s := range cfg.Output.Sinks {
		switch s {
		case SinkFile, SinkPostgres, SinkSQLite, SinkRedis:
		default:
			return ValidationError{"output.sinks", fmt.Sprintf("unknown sink %q (supported: %s)", s, strings.Join([]string{SinkFile, SinkPostgres, SinkSQLite, SinkRedis}, ", "))}
		}
		if seen[s] {
			return ValidationError{"output.sinks", fmt.Sprintf("duplicate sink %q", s)}
		}
		seen[s] = true
	}
	if cfg.Output.HasSink(SinkFile) && cfg.Output.EvaluationReport == "" {
		return ValidationError{"output.evaluation_report", "required when the file sink is enabled"}
	}

	// === Schedule ===
	if cfg.Schedule.Cron != "" {
		if _, err := CronParser.Parse(cfg.Schedule.Cron); err != nil {
			return ValidationError{"schedule.cron", err.Error()}
		}
	}
	if _, err := time.LoadLocation(cfg.Schedule.Timezone); err != nil {
		return ValidationError{"schedule.timezone", err.Error()}
	}

	// === Forecast service ===
	if cfg.ForecastService.Enabled() {
		if !strings.HasPrefix(cfg.ForecastService.BaseURL, "http://") && !strings.HasPrefix(cfg.ForecastService.BaseURL, "https://") {
			return ValidationError{"forecast_service.base_url", "must start with http:// or https://"}
		}
		if cfg.ForecastService.RequestsPerSecond < 0 {
			return ValidationError{"forecast_service.requests_per_second", "must be >= 0"}
		}
		if cfg.ForecastService.TimeoutSeconds < 0 {
			return ValidationError{"forecast_service.timeout_seconds", "must be >= 0"}
		}
	}

	return nil
}
