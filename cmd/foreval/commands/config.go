package commands

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/foreval/internal/evalconfig"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "평가 설정 관리",
}

var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "평가 설정 검증",
	Long: `평가 설정(YAML)을 로드하고 기본값 적용 후 검증합니다.
검증에 통과하면 설정 해시(SHA-256)와 주요 값을 출력합니다.

Example:
  go run ./cmd/foreval config check
  go run ./cmd/foreval config check --config config/evaluation.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadEnv()
		if err != nil {
			return err
		}
		return checkConfig(cmd.OutOrStdout(), cfg.EvalConfigPath)
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configCheckCmd)
}

func loadEvalConfig(path string) (*evalconfig.Config, error) {
	cfg, _, err := evalconfig.Load(path)
	return cfg, err
}

// checkConfig prints the validated settings and their hash
func checkConfig(w io.Writer, path string) error {
	cfg, err := loadEvalConfig(path)
	if err != nil {
		return err
	}
	hash, err := evalconfig.Hash(cfg)
	if err != nil {
		return fmt.Errorf("hash config: %w", err)
	}

	forecasts := cfg.Data.ForecastFile
	if cfg.ForecastService.Enabled() {
		forecasts = cfg.ForecastService.BaseURL
	}

	fmt.Fprintf(w, "✅ %s is valid\n", path)
	fmt.Fprintf(w, "  hash        : %s\n", hash)
	fmt.Fprintf(w, "  actuals     : %s\n", cfg.Data.InputFile)
	fmt.Fprintf(w, "  forecasts   : %s\n", forecasts)
	fmt.Fprintf(w, "  test days   : %d\n", cfg.Training.TestSizeDays)
	fmt.Fprintf(w, "  metrics     : %s\n", strings.Join(cfg.Evaluation.Metrics, ", "))
	fmt.Fprintf(w, "  sinks       : %s\n", strings.Join(cfg.Output.Sinks, ", "))
	if cfg.Schedule.Cron != "" {
		fmt.Fprintf(w, "  schedule    : %s (%s)\n", cfg.Schedule.Cron, cfg.Schedule.Timezone)
	}
	return nil
}

// nextActivations returns the next n activation times of spec in tz
func nextActivations(spec, tz string, from time.Time, n int) ([]time.Time, error) {
	sched, err := evalconfig.CronParser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("schedule.cron: %w", err)
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("schedule.timezone: %w", err)
	}

	out := make([]time.Time, 0, n)
	t := from.In(loc)
	for i := 0; i < n; i++ {
		t = sched.Next(t)
		out = append(out, t)
	}
	return out, nil
}
