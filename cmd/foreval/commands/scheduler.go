package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/foreval/internal/scheduler"
	"github.com/wonny/foreval/internal/scheduler/jobs"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "스케줄러 관리",
	Long: `schedule.cron 에 따라 평가를 주기적으로 실행합니다.

Subcommands:
  start   - 스케줄러 시작
  run     - 평가 job 즉시 실행 (재시도 포함)
  next    - 다음 실행 시각

Example:
  go run ./cmd/foreval scheduler start
  go run ./cmd/foreval scheduler run
  go run ./cmd/foreval scheduler next`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "스케줄러 시작",
		RunE:  runScheduler,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run",
		Short: "평가 job 즉시 실행",
		RunE:  runJobNow,
	}

	schedulerNextCmd = &cobra.Command{
		Use:   "next",
		Short: "다음 실행 시각",
		RunE:  showNext,
	}
)

var (
	schedulerRetries    int
	schedulerRetryDelay time.Duration
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
	schedulerCmd.AddCommand(schedulerNextCmd)

	schedulerCmd.PersistentFlags().IntVar(&schedulerRetries, "retries", 3, "실패 시 재시도 횟수")
	schedulerCmd.PersistentFlags().DurationVar(&schedulerRetryDelay, "retry-delay", time.Minute, "재시도 간격")
}

// initScheduler registers the evaluation job using schedule.cron and schedule.timezone
func initScheduler(a *app) (*scheduler.Scheduler, error) {
	if a.evalCfg.Schedule.Cron == "" {
		return nil, fmt.Errorf("schedule.cron is not set in %s", a.env.EvalConfigPath)
	}
	loc, err := time.LoadLocation(a.evalCfg.Schedule.Timezone)
	if err != nil {
		return nil, fmt.Errorf("schedule.timezone: %w", err)
	}

	sched := scheduler.New(a.log, scheduler.Options{
		Location:   loc,
		MaxRetries: schedulerRetries,
		RetryDelay: schedulerRetryDelay,
	})
	job := jobs.NewEvaluationJob(a.runner, a.evalCfg.Schedule.Cron, a.log)
	if err := sched.AddJob(job); err != nil {
		return nil, err
	}
	return sched, nil
}

func runScheduler(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Forecast Evaluator Scheduler ===")

	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := initScheduler(a)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	sched.Start()

	fmt.Println("\n✅ Scheduler started successfully")
	for _, name := range sched.GetAllJobs() {
		next, _ := sched.NextRun(name)
		fmt.Printf("  - %s (%s)\n", name, a.evalCfg.Schedule.Cron)
		if !next.IsZero() {
			fmt.Printf("    next run: %s\n", next.Format(time.RFC3339))
		}
	}
	fmt.Println("\nPress Ctrl+C to stop")

	<-cmd.Context().Done()

	fmt.Println("\nShutting down scheduler...")
	sched.Stop()
	fmt.Println("Scheduler stopped")
	return nil
}

func runJobNow(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := initScheduler(a)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	result, err := sched.RunNow(cmd.Context(), "forecast_evaluation")
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("job %s failed: %s", result.JobName, result.Error)
	}
	return nil
}

func showNext(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadEnv()
	if err != nil {
		return err
	}
	evalCfg, err := loadEvalConfig(cfg.EvalConfigPath)
	if err != nil {
		return err
	}
	if evalCfg.Schedule.Cron == "" {
		return fmt.Errorf("schedule.cron is not set in %s", cfg.EvalConfigPath)
	}

	next, err := nextActivations(evalCfg.Schedule.Cron, evalCfg.Schedule.Timezone, time.Now(), 5)
	if err != nil {
		return err
	}
	fmt.Printf("Schedule: %s (%s)\n", evalCfg.Schedule.Cron, evalCfg.Schedule.Timezone)
	for _, t := range next {
		fmt.Printf("  %s\n", t.Format(time.RFC3339))
	}
	return nil
}
