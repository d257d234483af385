package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/wonny/foreval/internal/dataset"
	"github.com/wonny/foreval/internal/evalconfig"
	"github.com/wonny/foreval/internal/metrics"
	"github.com/wonny/foreval/internal/report"
	"github.com/wonny/foreval/pkg/config"
	"github.com/wonny/foreval/pkg/database"
	"github.com/wonny/foreval/pkg/httputil"
	"github.com/wonny/foreval/pkg/logger"
	"github.com/wonny/foreval/pkg/redis"
)

// Resources sink 가 사용하는 외부 연결. Close 로 한 번에 정리
type Resources struct {
	Sink    *report.MultiSink
	closers []func()
}

// Close releases every opened connection (역순)
func (r *Resources) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
	r.closers = nil
}

// OpenSinks connects the sinks listed in output.sinks
// postgres/redis 는 환경변수 설정(DATABASE_URL, REDIS_*)을 사용
func OpenSinks(ctx context.Context, evalCfg *evalconfig.Config, envCfg *config.Config, rec *metrics.Recorder, log zerolog.Logger) (*Resources, error) {
	res := &Resources{}
	var sinks []report.Sink

	fail := func(err error) (*Resources, error) {
		res.Close()
		return nil, err
	}

	for _, name := range evalCfg.Output.Sinks {
		switch name {
		case evalconfig.SinkFile:
			sinks = append(sinks, report.NewFileSink(evalCfg.Output.EvaluationReport))

		case evalconfig.SinkSQLite:
			s, err := report.NewSQLiteSink(envCfg.SQLitePath, evalCfg.Output.ReportKey)
			if err != nil {
				return fail(err)
			}
			res.closers = append(res.closers, func() { _ = s.Close() })
			sinks = append(sinks, s)

		case evalconfig.SinkPostgres:
			db, err := database.New(ctx, envCfg.Database)
			if err != nil {
				return fail(fmt.Errorf("postgres sink: %w", err))
			}
			res.closers = append(res.closers, db.Close)
			s := report.NewPostgresSink(db.Pool, evalCfg.Output.ReportKey)
			if err := s.Migrate(ctx); err != nil {
				return fail(err)
			}
			sinks = append(sinks, s)

		case evalconfig.SinkRedis:
			if !envCfg.Redis.Enabled {
				return fail(errors.New("redis sink: REDIS_ENABLED must be true"))
			}
			client, err := redis.New(ctx, envCfg.Redis)
			if err != nil {
				return fail(fmt.Errorf("redis sink: %w", err))
			}
			res.closers = append(res.closers, func() { _ = client.Close() })
			sinks = append(sinks, report.NewRedisSink(redis.NewDocumentStore(client, "foreval"), evalCfg.Output.ReportKey))

		default:
			return fail(fmt.Errorf("unknown sink %q", name))
		}
	}

	res.Sink = report.NewMultiSink(sinks, rec, log)
	return res, nil
}

// NewForecastSource picks the service when forecast_service.base_url is set, else the file
func NewForecastSource(evalCfg *evalconfig.Config, log *logger.Logger) ForecastSource {
	if evalCfg.ForecastService.Enabled() {
		fs := evalCfg.ForecastService
		client := httputil.NewWithTimeout(log, time.Duration(fs.TimeoutSeconds)*time.Second).
			WithRateLimit(fs.RequestsPerSecond)
		return ServiceForecasts{Service: dataset.NewForecastService(client, fs.BaseURL, log.Zerolog())}
	}
	return FileForecasts{Path: evalCfg.Data.ForecastFile, Format: evalCfg.Data.ForecastFormat}
}
