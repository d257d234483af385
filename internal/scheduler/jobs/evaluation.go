package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/wonny/foreval/internal/contracts"
	"github.com/wonny/foreval/internal/evaluation"
	"github.com/wonny/foreval/internal/pipeline"
	"github.com/wonny/foreval/internal/scheduler"
	"github.com/wonny/foreval/pkg/logger"
)

// Runner 평가 1회 실행 (pipeline.Runner)
type Runner interface {
	Run(ctx context.Context) (*contracts.EvaluationReport, error)
}

// EvaluationJob runs the forecast evaluation on schedule.cron
type EvaluationJob struct {
	runner   Runner
	schedule string
	logger   *logger.Logger
}

// NewEvaluationJob creates a new evaluation job
func NewEvaluationJob(runner Runner, schedule string, log *logger.Logger) *EvaluationJob {
	return &EvaluationJob{
		runner:   runner,
		schedule: schedule,
		logger:   log,
	}
}

// Name returns the job name
func (j *EvaluationJob) Name() string {
	return "forecast_evaluation"
}

// Schedule returns the cron schedule from the evaluation config
func (j *EvaluationJob) Schedule() string {
	return j.schedule
}

// Run executes one evaluation
// 설정/입력 오류와 중복 실행은 재시도하지 않음
func (j *EvaluationJob) Run(ctx context.Context) error {
	j.logger.Info("Starting scheduled forecast evaluation")

	rep, err := j.runner.Run(ctx)
	if err != nil {
		err = fmt.Errorf("evaluation: %w", err)
		if isPermanent(err) {
			return scheduler.Permanent(err)
		}
		return err
	}

	j.logger.WithFields(map[string]interface{}{
		"entities":    rep.EntityCount,
		"diagnostics": len(rep.Diagnostics),
	}).Info("Scheduled forecast evaluation completed")
	return nil
}

func isPermanent(err error) bool {
	var (
		cfgErr     *evaluation.ConfigurationError
		missingErr *evaluation.MissingInputError
		inputErr   *evaluation.InputError
	)
	return errors.Is(err, pipeline.ErrRunInProgress) ||
		errors.As(err, &cfgErr) ||
		errors.As(err, &missingErr) ||
		errors.As(err, &inputErr)
}
