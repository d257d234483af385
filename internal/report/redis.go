package report

import (
	"context"
	"fmt"

	"github.com/wonny/foreval/internal/contracts"
	"github.com/wonny/foreval/internal/evaluation"
	"github.com/wonny/foreval/pkg/redis"
)

// RedisSink foreval:doc:<key> 에 문서 전체를 SET
type RedisSink struct {
	store *redis.DocumentStore
	key   string
}

// NewRedisSink creates a sink over a document store
func NewRedisSink(store *redis.DocumentStore, key string) *RedisSink {
	return &RedisSink{store: store, key: key}
}

func (s *RedisSink) Name() string { return "redis" }

func (s *RedisSink) Write(ctx context.Context, report *contracts.EvaluationReport) error {
	data, err := evaluation.MarshalReport(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	return s.store.Put(ctx, s.key, data)
}

func (s *RedisSink) Latest(ctx context.Context) (*contracts.EvaluationReport, error) {
	data, found, err := s.store.Get(ctx, s.key)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	return evaluation.UnmarshalReport(data)
}
