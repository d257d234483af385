package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	evalConfigFile string
	env            string
	verbose        bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "foreval",
	Short: "Forecast Evaluator - 예측 정확도 평가",
	Long: `Forecast Evaluator CLI

holdout 기간의 실제값과 예측값을 비교해 항목별 RMSE/MAE/MAPE/MASE 를 계산하고
전체 요약(mean/std/min/max)과 함께 평가 리포트를 저장합니다.

Usage:
  go run ./cmd/foreval [command]

Examples:
  go run ./cmd/foreval evaluate
  go run ./cmd/foreval config check
  go run ./cmd/foreval api
  go run ./cmd/foreval scheduler start`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
// Ctrl+C / SIGTERM 은 커맨드 context 취소로 전달
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&evalConfigFile, "config", "", "evaluation config (default is $EVAL_CONFIG or config/evaluation.yaml)")
	rootCmd.PersistentFlags().StringVar(&env, "env", "", "environment override (development|staging|production)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
