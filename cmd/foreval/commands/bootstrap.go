package commands

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/wonny/foreval/internal/evalconfig"
	"github.com/wonny/foreval/internal/metrics"
	"github.com/wonny/foreval/internal/pipeline"
	"github.com/wonny/foreval/pkg/config"
	"github.com/wonny/foreval/pkg/logger"
)

// app 모든 커맨드가 공유하는 구성 요소
type app struct {
	env       *config.Config
	log       *logger.Logger
	evalCfg   *evalconfig.Config
	registry  *prometheus.Registry
	resources *pipeline.Resources
	runner    *pipeline.Runner
}

// loadEnv reads process config and applies global flag overrides
func loadEnv() (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if env != "" {
		cfg.Env = env
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	if evalConfigFile != "" {
		cfg.EvalConfigPath = evalConfigFile
	}
	return cfg, logger.New(cfg), nil
}

// newApp loads both configs, opens the sinks, and builds the runner
func newApp(ctx context.Context) (*app, error) {
	cfg, log, err := loadEnv()
	if err != nil {
		return nil, err
	}

	evalCfg, _, err := evalconfig.Load(cfg.EvalConfigPath)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	var rec *metrics.Recorder
	if cfg.MetricsEnabled {
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		rec = metrics.New(reg)
	}

	res, err := pipeline.OpenSinks(ctx, evalCfg, cfg, rec, log.Component("report"))
	if err != nil {
		return nil, fmt.Errorf("open sinks: %w", err)
	}

	runner, err := pipeline.NewRunner(pipeline.Options{
		Config:    evalCfg,
		Forecasts: pipeline.NewForecastSource(evalCfg, log),
		Sink:      res.Sink,
		Recorder:  rec,
	}, log.Zerolog())
	if err != nil {
		res.Close()
		return nil, err
	}

	log.WithFields(map[string]interface{}{
		"eval_config": cfg.EvalConfigPath,
		"config_hash": runner.ConfigHash(),
		"sinks":       evalCfg.Output.Sinks,
	}).Info("Evaluator initialized")

	return &app{
		env:       cfg,
		log:       log,
		evalCfg:   evalCfg,
		registry:  reg,
		resources: res,
		runner:    runner,
	}, nil
}

func (a *app) Close() {
	a.resources.Close()
}
