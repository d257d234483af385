package report

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/wonny/foreval/internal/contracts"
	"github.com/wonny/foreval/internal/evaluation"
	"github.com/wonny/foreval/pkg/fsutil"
)

// FileSink output.evaluation_report 경로의 JSON 문서
// temp + rename 으로 교체 → 읽는 쪽은 이전 또는 새 문서 전체만 봄
type FileSink struct {
	path string
}

// NewFileSink creates a file sink for path
func NewFileSink(path string) *FileSink {
	return &FileSink{path: path}
}

func (s *FileSink) Name() string { return "file" }

// Path returns the report location
func (s *FileSink) Path() string { return s.path }

func (s *FileSink) Write(_ context.Context, report *contracts.EvaluationReport) error {
	data, err := evaluation.MarshalReport(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	return fsutil.WriteFileAtomic(s.path, data, 0o644)
}

func (s *FileSink) Latest(_ context.Context) (*contracts.EvaluationReport, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	return evaluation.UnmarshalReport(data)
}
