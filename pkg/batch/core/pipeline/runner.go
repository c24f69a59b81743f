package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"

	model "github.com/tigerroll/epiflow/pkg/batch/core/domain/model"
	"github.com/tigerroll/epiflow/pkg/batch/support/util/exception"
	"github.com/tigerroll/epiflow/pkg/batch/support/util/logger"
)

// RunListener observes a whole run.
type RunListener interface {
	BeforeRun(ctx context.Context, execution *model.RunExecution)
	AfterRun(ctx context.Context, execution *model.RunExecution)
}

// StageListener observes individual stages.
type StageListener interface {
	BeforeStage(ctx context.Context, execution *model.StageExecution)
	AfterStage(ctx context.Context, execution *model.StageExecution)
}

// Run executes the pipeline against a fresh set of tables.
func (p *Pipeline) Run(ctx context.Context) (*model.RunExecution, error) {
	return p.RunWith(ctx, NewTables())
}

// RunWith executes the pipeline against tables. The first failing stage stops
// the run; stages after it are recorded as SKIPPED and nothing they would have
// written is produced.
func (p *Pipeline) RunWith(ctx context.Context, tables *Tables) (*model.RunExecution, error) {
	run := model.NewRunExecution(p.name)

	ctx, endSpan := p.tracer.StartRunSpan(ctx, run)
	defer endSpan()

	if err := run.MarkAsStarted(); err != nil {
		return run, err
	}
	p.recorder.RecordRunStart(ctx, run)
	for _, l := range p.runListeners {
		l.BeforeRun(ctx, run)
	}

	var runErr error
	for _, stage := range p.order {
		se := model.NewStageExecution(stage.Name())
		run.AddStageExecution(se)

		if runErr == nil {
			if err := ctx.Err(); err != nil {
				runErr = err
			}
		}
		if runErr != nil {
			_ = se.MarkAsSkipped()
			continue
		}
		runErr = p.executeStage(ctx, stage, se, tables)
	}

	switch {
	case runErr == nil:
		_ = run.MarkAsCompleted()
	case errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded):
		_ = run.MarkAsStopped(runErr)
	default:
		_ = run.MarkAsFailed(runErr)
	}
	if runErr != nil {
		p.tracer.RecordError(ctx, "pipeline", runErr)
	}

	for _, l := range p.runListeners {
		l.AfterRun(ctx, run)
	}
	p.recorder.RecordRunEnd(ctx, run)
	return run, runErr
}

func (p *Pipeline) executeStage(ctx context.Context, stage Stage, se *model.StageExecution, tables *Tables) (err error) {
	ctx, endSpan := p.tracer.StartStageSpan(ctx, se)
	defer endSpan()

	_ = se.MarkAsStarted()
	p.recorder.RecordStageStart(ctx, se)
	for _, l := range p.stageListeners {
		l.BeforeStage(ctx, se)
	}

	scope := newScope(stage, tables)
	defer func() {
		se.TablesWritten = scope.writtenTables()
		if err != nil {
			_ = se.MarkAsFailed(err)
			p.tracer.RecordError(ctx, stage.Name(), err)
		} else {
			_ = se.MarkAsCompleted()
		}
		for _, l := range p.stageListeners {
			l.AfterStage(ctx, se)
		}
		p.recorder.RecordStageEnd(ctx, se)
	}()

	if err = safeExecute(ctx, stage, scope); err != nil {
		return exception.NewBatchErrorf("pipeline", err, "stage %s failed", stage.Name())
	}
	if missing := scope.missingOutputs(); len(missing) > 0 {
		err = fmt.Errorf("%w: stage %s did not produce %s", ErrTableMissing, stage.Name(), strings.Join(missing, ", "))
		return err
	}
	return nil
}

func safeExecute(ctx context.Context, stage Stage, scope *Scope) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("Panic in stage %s: %v\n%s", stage.Name(), r, debug.Stack())
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return stage.Execute(ctx, scope)
}
