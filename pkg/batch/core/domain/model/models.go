// Package model holds the in-memory execution records of a pipeline run.
// Nothing here is persisted; records exist for logging, tracing and metrics.
package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// BatchStatus represents the state of a run or stage.
type BatchStatus string

const (
	BatchStatusStarting  BatchStatus = "STARTING"
	BatchStatusStarted   BatchStatus = "STARTED"
	BatchStatusCompleted BatchStatus = "COMPLETED"
	BatchStatusFailed    BatchStatus = "FAILED"
	BatchStatusStopped   BatchStatus = "STOPPED"
	// BatchStatusSkipped marks stages never reached because an earlier stage failed.
	BatchStatusSkipped BatchStatus = "SKIPPED"
)

// String returns the string representation of the status.
func (s BatchStatus) String() string {
	return string(s)
}

// IsFinished reports whether s is terminal.
func (s BatchStatus) IsFinished() bool {
	switch s {
	case BatchStatusCompleted, BatchStatusFailed, BatchStatusStopped, BatchStatusSkipped:
		return true
	default:
		return false
	}
}

// canTransition lists the legal moves. Terminal states never move.
func canTransition(from, to BatchStatus) bool {
	switch from {
	case BatchStatusStarting:
		return to == BatchStatusStarted || to == BatchStatusFailed || to == BatchStatusStopped || to == BatchStatusSkipped
	case BatchStatusStarted:
		return to == BatchStatusCompleted || to == BatchStatusFailed || to == BatchStatusStopped
	default:
		return false
	}
}

// ExitStatus is the summarized outcome reported when a run ends.
type ExitStatus string

const (
	ExitStatusUnknown   ExitStatus = "UNKNOWN"
	ExitStatusCompleted ExitStatus = "COMPLETED"
	ExitStatusFailed    ExitStatus = "FAILED"
	ExitStatusStopped   ExitStatus = "STOPPED"
)

// ToExitStatus maps a terminal status onto an exit status.
func (s BatchStatus) ToExitStatus() ExitStatus {
	switch s {
	case BatchStatusCompleted:
		return ExitStatusCompleted
	case BatchStatusFailed:
		return ExitStatusFailed
	case BatchStatusStopped:
		return ExitStatusStopped
	default:
		return ExitStatusUnknown
	}
}

// RunExecution records one execution of a pipeline.
type RunExecution struct {
	ID              string
	PipelineName    string
	Status          BatchStatus
	ExitStatus      ExitStatus
	CreateTime      time.Time
	StartTime       time.Time
	EndTime         *time.Time
	Failures        []error
	StageExecutions []*StageExecution
}

// NewRunExecution creates a run in STARTING state.
func NewRunExecution(pipelineName string) *RunExecution {
	return &RunExecution{
		ID:           uuid.NewString(),
		PipelineName: pipelineName,
		Status:       BatchStatusStarting,
		ExitStatus:   ExitStatusUnknown,
		CreateTime:   time.Now(),
	}
}

// TransitionTo moves the run to next, rejecting illegal transitions.
func (re *RunExecution) TransitionTo(next BatchStatus) error {
	if !canTransition(re.Status, next) {
		return fmt.Errorf("RunExecution (ID: %s): invalid state transition: %s -> %s", re.ID, re.Status, next)
	}
	re.Status = next
	return nil
}

// MarkAsStarted moves the run to STARTED.
func (re *RunExecution) MarkAsStarted() error {
	if err := re.TransitionTo(BatchStatusStarted); err != nil {
		return err
	}
	re.StartTime = time.Now()
	return nil
}

// MarkAsCompleted moves the run to COMPLETED.
func (re *RunExecution) MarkAsCompleted() error {
	if err := re.TransitionTo(BatchStatusCompleted); err != nil {
		return err
	}
	re.finish()
	return nil
}

// MarkAsFailed moves the run to FAILED and records err.
func (re *RunExecution) MarkAsFailed(err error) error {
	if terr := re.TransitionTo(BatchStatusFailed); terr != nil {
		return terr
	}
	re.AddFailure(err)
	re.finish()
	return nil
}

// MarkAsStopped moves the run to STOPPED after cancellation.
func (re *RunExecution) MarkAsStopped(err error) error {
	if terr := re.TransitionTo(BatchStatusStopped); terr != nil {
		return terr
	}
	re.AddFailure(err)
	re.finish()
	return nil
}

func (re *RunExecution) finish() {
	now := time.Now()
	re.EndTime = &now
	re.ExitStatus = re.Status.ToExitStatus()
}

// AddFailure appends err when non-nil.
func (re *RunExecution) AddFailure(err error) {
	if err != nil {
		re.Failures = append(re.Failures, err)
	}
}

// AddStageExecution attaches se to the run.
func (re *RunExecution) AddStageExecution(se *StageExecution) {
	se.RunExecutionID = re.ID
	re.StageExecutions = append(re.StageExecutions, se)
}

// Duration is the elapsed wall time, or time so far for an unfinished run.
func (re *RunExecution) Duration() time.Duration {
	if re.StartTime.IsZero() {
		return 0
	}
	if re.EndTime == nil {
		return time.Since(re.StartTime)
	}
	return re.EndTime.Sub(re.StartTime)
}

// StageExecution records one execution of a pipeline stage.
type StageExecution struct {
	ID             string
	RunExecutionID string
	StageName      string
	Status         BatchStatus
	ExitStatus     ExitStatus
	StartTime      time.Time
	EndTime        *time.Time
	Failure        error
	// TablesWritten lists the tables the stage published, in publication order.
	TablesWritten []string
}

// NewStageExecution creates a stage execution in STARTING state.
func NewStageExecution(stageName string) *StageExecution {
	return &StageExecution{
		ID:         uuid.NewString(),
		StageName:  stageName,
		Status:     BatchStatusStarting,
		ExitStatus: ExitStatusUnknown,
	}
}

// TransitionTo moves the stage to next, rejecting illegal transitions.
func (se *StageExecution) TransitionTo(next BatchStatus) error {
	if !canTransition(se.Status, next) {
		return fmt.Errorf("StageExecution (%s): invalid state transition: %s -> %s", se.StageName, se.Status, next)
	}
	se.Status = next
	return nil
}

// MarkAsStarted moves the stage to STARTED.
func (se *StageExecution) MarkAsStarted() error {
	if err := se.TransitionTo(BatchStatusStarted); err != nil {
		return err
	}
	se.StartTime = time.Now()
	return nil
}

// MarkAsCompleted moves the stage to COMPLETED.
func (se *StageExecution) MarkAsCompleted() error {
	if err := se.TransitionTo(BatchStatusCompleted); err != nil {
		return err
	}
	se.finish()
	return nil
}

// MarkAsFailed moves the stage to FAILED.
func (se *StageExecution) MarkAsFailed(err error) error {
	if terr := se.TransitionTo(BatchStatusFailed); terr != nil {
		return terr
	}
	se.Failure = err
	se.finish()
	return nil
}

// MarkAsSkipped records that the stage never ran.
func (se *StageExecution) MarkAsSkipped() error {
	if err := se.TransitionTo(BatchStatusSkipped); err != nil {
		return err
	}
	se.ExitStatus = ExitStatusUnknown
	return nil
}

func (se *StageExecution) finish() {
	now := time.Now()
	se.EndTime = &now
	se.ExitStatus = se.Status.ToExitStatus()
}

// Duration is the elapsed wall time of the stage.
func (se *StageExecution) Duration() time.Duration {
	if se.StartTime.IsZero() {
		return 0
	}
	if se.EndTime == nil {
		return time.Since(se.StartTime)
	}
	return se.EndTime.Sub(se.StartTime)
}
