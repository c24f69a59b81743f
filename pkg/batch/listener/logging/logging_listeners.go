// Package logging provides pipeline listeners that narrate a run through the
// package logger.
package logging

import (
	"context"
	"strings"

	model "github.com/tigerroll/epiflow/pkg/batch/core/domain/model"
	"github.com/tigerroll/epiflow/pkg/batch/core/pipeline"
	"github.com/tigerroll/epiflow/pkg/batch/support/util/logger"
)

// RunListener logs the start and end of a run.
type RunListener struct{}

// NewRunListener creates a RunListener.
func NewRunListener() *RunListener {
	return &RunListener{}
}

func (l *RunListener) BeforeRun(_ context.Context, e *model.RunExecution) {
	logger.Infof("Pipeline '%s' starting (run ID: %s).", e.PipelineName, e.ID)
}

func (l *RunListener) AfterRun(_ context.Context, e *model.RunExecution) {
	if len(e.Failures) > 0 {
		logger.Errorf("Pipeline '%s' finished with status %s after %s: %v", e.PipelineName, e.Status, e.Duration(), e.Failures[0])
		return
	}
	logger.Infof("Pipeline '%s' finished with status %s after %s.", e.PipelineName, e.Status, e.Duration())
}

var _ pipeline.RunListener = (*RunListener)(nil)

// StageListener logs every stage transition.
type StageListener struct{}

// NewStageListener creates a StageListener.
func NewStageListener() *StageListener {
	return &StageListener{}
}

func (l *StageListener) BeforeStage(_ context.Context, e *model.StageExecution) {
	logger.Debugf("Stage '%s' starting.", e.StageName)
}

func (l *StageListener) AfterStage(_ context.Context, e *model.StageExecution) {
	if e.Failure != nil {
		logger.Errorf("Stage '%s' %s after %s: %v", e.StageName, e.Status, e.Duration(), e.Failure)
		return
	}
	logger.Infof("Stage '%s' %s in %s, published [%s].", e.StageName, e.Status, e.Duration(), strings.Join(e.TablesWritten, ", "))
}

var _ pipeline.StageListener = (*StageListener)(nil)
