// Package app wires epiflow's modules into an fx application and runs one
// pipeline to completion.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/fx"

	"github.com/tigerroll/epiflow/internal/job"
	"github.com/tigerroll/epiflow/internal/step/reader"
	"github.com/tigerroll/epiflow/internal/step/tasklet"
	"github.com/tigerroll/epiflow/internal/step/writer"
	storage "github.com/tigerroll/epiflow/pkg/batch/adapter/storage"
	"github.com/tigerroll/epiflow/pkg/batch/adapter/storage/gcs"
	"github.com/tigerroll/epiflow/pkg/batch/adapter/storage/local"
	config "github.com/tigerroll/epiflow/pkg/batch/core/config"
	coremetrics "github.com/tigerroll/epiflow/pkg/batch/core/metrics"
	inframetrics "github.com/tigerroll/epiflow/pkg/batch/infrastructure/metrics"
	"github.com/tigerroll/epiflow/pkg/batch/listener/logging"
	"github.com/tigerroll/epiflow/pkg/batch/support/util/logger"
)

const flushTimeout = 10 * time.Second

// Options selects what to run and where configuration comes from.
type Options struct {
	EnvFilePath    string
	ConfigPath     string
	EmbeddedConfig config.EmbeddedConfig
	Mode           job.Mode
	// Metrics overrides epiflow.forecast.metrics when set.
	Metrics []string
}

// outcome carries the pipeline result out of the fx lifecycle. err is only
// read after done is closed.
type outcome struct {
	err  error
	done chan struct{}
}

func newOutcome() *outcome {
	return &outcome{done: make(chan struct{})}
}

func (o *outcome) finish(err error) {
	o.err = err
	close(o.done)
}

// wait returns the pipeline error once the run has finished, or an error if
// ctx ends first.
func (o *outcome) wait(ctx context.Context) error {
	select {
	case <-o.done:
		return o.err
	default:
	}
	select {
	case <-o.done:
		return o.err
	case <-ctx.Done():
		return fmt.Errorf("pipeline still running at shutdown: %w", ctx.Err())
	}
}

// RunApplication builds the application, runs the selected pipeline and
// returns its error once the application has stopped.
func RunApplication(appCtx context.Context, opts Options) error {
	result := newOutcome()
	app := fx.New(modules(appCtx, opts, result)...)
	if err := app.Err(); err != nil {
		return err
	}

	startCtx, cancel := context.WithTimeout(context.Background(), app.StartTimeout())
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return err
	}

	sig := <-app.Wait()
	logger.Debugf("Application received shutdown signal (exit code %d).", sig.ExitCode)

	stopCtx, cancelStop := context.WithTimeout(context.Background(), app.StopTimeout())
	defer cancelStop()
	stopErr := app.Stop(stopCtx)

	return errors.Join(result.wait(stopCtx), stopErr)
}

// modules returns every fx option of the application.
func modules(appCtx context.Context, opts Options, result *outcome) []fx.Option {
	return []fx.Option{
		fx.Supply(
			opts.EmbeddedConfig,
			fx.Annotate(opts.EnvFilePath, fx.ResultTags(`name:"envFilePath"`)),
			fx.Annotate(opts.ConfigPath, fx.ResultTags(`name:"externalConfigPath"`)),
			fx.Annotate(appCtx, fx.As(new(context.Context)), fx.ResultTags(`name:"appCtx"`)),
			opts.Mode,
			result,
		),
		logger.Module,
		config.Module,
		fx.Decorate(overrideMetrics(opts.Metrics)),
		inframetrics.Module,
		storage.Module,
		local.Module,
		gcs.Module,
		logging.Module,
		reader.Module,
		writer.Module,
		tasklet.Module,
		job.Module,
		fx.Invoke(fx.Annotate(startPipeline, fx.ParamTags("", "", "", "", "", "", `name:"appCtx"`))),
	}
}

func overrideMetrics(names []string) func(*config.Config) *config.Config {
	return func(cfg *config.Config) *config.Config {
		if len(names) > 0 {
			cfg.Epiflow.Forecast.Metrics = names
		}
		return cfg
	}
}

// startPipeline builds the pipeline up front, so graph errors fail startup,
// then runs it in the background and shuts the application down when it ends.
func startPipeline(
	lc fx.Lifecycle,
	shutdowner fx.Shutdowner,
	builder *job.Builder,
	mode job.Mode,
	recorder coremetrics.MetricRecorder,
	result *outcome,
	appCtx context.Context,
) error {
	p, err := builder.Build(mode)
	if err != nil {
		return err
	}
	logger.Infof("Pipeline '%s' stages: %v", p.Name(), p.Order())

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				runErr := runPipeline(appCtx, p.Name(), func(ctx context.Context) error {
					_, err := p.Run(ctx)
					return err
				}, recorder)
				result.finish(runErr)
				code := 0
				if runErr != nil {
					code = 1
				}
				if err := shutdowner.Shutdown(fx.ExitCode(code)); err != nil {
					logger.Errorf("Failed to shutdown application: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			select {
			case <-result.done:
			case <-ctx.Done():
				return ctx.Err()
			}
			logger.Infof("Application is shutting down.")
			return nil
		},
	})
	return nil
}

func runPipeline(ctx context.Context, name string, run func(context.Context) error, recorder coremetrics.MetricRecorder) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pipeline %s panicked: %v", name, r)
			logger.Errorf("%v", err)
		}
		flushCtx, cancel := context.WithTimeout(context.Background(), flushTimeout)
		defer cancel()
		if ferr := recorder.Flush(flushCtx); ferr != nil {
			logger.Warnf("Failed to flush metrics: %v", ferr)
		}
	}()

	logger.Infof("Starting pipeline '%s'...", name)
	if err := run(ctx); err != nil {
		logger.Errorf("Pipeline '%s' failed: %v", name, err)
		return err
	}
	logger.Infof("Pipeline '%s' completed.", name)
	return nil
}
