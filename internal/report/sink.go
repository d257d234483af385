package report

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/wonny/foreval/internal/contracts"
	"github.com/wonny/foreval/internal/metrics"
)

// ErrNotFound 저장된 리포트 없음
var ErrNotFound = errors.New("evaluation report not found")

// Sink 리포트 저장소. Write 는 이전 문서를 통째로 교체 (증분 쓰기 없음)
type Sink interface {
	Name() string
	Write(ctx context.Context, report *contracts.EvaluationReport) error
}

// Reader 최신 리포트 조회
type Reader interface {
	Latest(ctx context.Context) (*contracts.EvaluationReport, error)
}

// Store 읽기/쓰기 모두 지원하는 sink
type Store interface {
	Sink
	Reader
}

// MultiSink 설정된 모든 sink 에 같은 리포트를 기록
// 하나가 실패해도 나머지는 계속 기록하고, 실패는 합쳐서 반환
type MultiSink struct {
	sinks []Sink
	rec   *metrics.Recorder
	log   zerolog.Logger
}

// NewMultiSink creates a fan-out over sinks in the given order
func NewMultiSink(sinks []Sink, rec *metrics.Recorder, log zerolog.Logger) *MultiSink {
	return &MultiSink{
		sinks: sinks,
		rec:   rec,
		log:   log.With().Str("component", "report.multi_sink").Logger(),
	}
}

// Name implements Sink
func (m *MultiSink) Name() string { return "multi" }

// Sinks returns the configured sinks
func (m *MultiSink) Sinks() []Sink { return m.sinks }

// Write implements Sink
func (m *MultiSink) Write(ctx context.Context, report *contracts.EvaluationReport) error {
	var errs []error
	for _, s := range m.sinks {
		err := s.Write(ctx, report)
		m.rec.ObserveSinkWrite(s.Name(), err)
		if err != nil {
			m.log.Error().Err(err).Str("sink", s.Name()).Msg("report write failed")
			errs = append(errs, fmt.Errorf("%s sink: %w", s.Name(), err))
			continue
		}
		m.log.Info().Str("sink", s.Name()).Msg("report written")
	}
	return errors.Join(errs...)
}

// Latest reads from the first sink that supports reading
func (m *MultiSink) Latest(ctx context.Context) (*contracts.EvaluationReport, error) {
	for _, s := range m.sinks {
		if r, ok := s.(Reader); ok {
			return r.Latest(ctx)
		}
	}
	return nil, ErrNotFound
}
