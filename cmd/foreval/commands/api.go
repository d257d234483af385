package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/wonny/foreval/internal/api"
	"github.com/wonny/foreval/internal/api/handlers"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `REST API 서버를 시작합니다.

Endpoints:
  GET  /health                  - Health check
  GET  /metrics                 - Prometheus metrics (METRICS_ENABLED)
  GET  /api/evaluation/report   - 최신 평가 리포트
  GET  /api/evaluation/status   - 설정 해시
  POST /api/evaluation/run      - 평가 즉시 실행

Example:
  go run ./cmd/foreval api
  go run ./cmd/foreval api --port 8080`,
	RunE: runAPIServer,
}

var (
	apiPort     string
	apiRunEvery time.Duration
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (default is $PORT)")
	apiCmd.Flags().DurationVar(&apiRunEvery, "run-interval", 10*time.Second, "POST /api/evaluation/run 최소 간격 (0 이면 제한 없음)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Forecast Evaluator API Server ===")

	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	if apiPort != "" {
		a.env.Port = apiPort
	}

	var limiter *rate.Limiter
	if apiRunEvery > 0 {
		limiter = rate.NewLimiter(rate.Every(apiRunEvery), 1)
	}

	evalHandler := handlers.NewEvaluationHandler(a.runner, a.resources.Sink, limiter, a.log)

	var gatherer prometheus.Gatherer
	if a.env.MetricsEnabled {
		gatherer = a.registry
	}
	router := api.NewRouter(evalHandler, gatherer, a.log)
	server := api.New(a.env, a.log, router)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	fmt.Printf("\n✅ Server running on http://localhost:%s\n", a.env.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	select {
	case err := <-errCh:
		return err
	case <-cmd.Context().Done():
	}

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	a.log.Info("Server stopped")
	return nil
}
