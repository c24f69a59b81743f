package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	model "github.com/tigerroll/epiflow/pkg/batch/core/domain/model"
)

type funcStage struct {
	name    string
	inputs  []string
	outputs []string
	fn      func(ctx context.Context, s *Scope) error
}

func (f *funcStage) Name() string      { return f.name }
func (f *funcStage) Inputs() []string  { return f.inputs }
func (f *funcStage) Outputs() []string { return f.outputs }
func (f *funcStage) Execute(ctx context.Context, s *Scope) error {
	if f.fn == nil {
		for _, out := range f.outputs {
			if err := s.Put(out, f.name); err != nil {
				return err
			}
		}
		return nil
	}
	return f.fn(ctx, s)
}

func stage(name string, inputs, outputs []string) *funcStage {
	return &funcStage{name: name, inputs: inputs, outputs: outputs}
}

type recordingListener struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingListener) add(e string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingListener) BeforeRun(_ context.Context, e *model.RunExecution) { r.add("run:start") }
func (r *recordingListener) AfterRun(_ context.Context, e *model.RunExecution) {
	r.add("run:" + string(e.Status))
}
func (r *recordingListener) BeforeStage(_ context.Context, e *model.StageExecution) {
	r.add("before:" + e.StageName)
}
func (r *recordingListener) AfterStage(_ context.Context, e *model.StageExecution) {
	r.add("after:" + e.StageName + ":" + string(e.Status))
}

func TestNew_OrdersByDependencyThenRegistration(t *testing.T) {
	p, err := New("epi", []Stage{
		stage("summary", []string{"vaccReconciled"}, []string{"summary"}),
		stage("cases", nil, []string{"cases"}),
		stage("reconcile", []string{"vacc", "cases"}, []string{"vaccReconciled"}),
		stage("vacc", nil, []string{"vacc"}),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"cases", "vacc", "reconcile", "summary"}, p.Order())
}

func TestNew_RejectsInvalidGraphs(t *testing.T) {
	tests := map[string][]Stage{
		"missing input":    {stage("a", []string{"ghost"}, []string{"x"})},
		"duplicate output": {stage("a", nil, []string{"x"}), stage("b", nil, []string{"x"})},
		"duplicate name":   {stage("a", nil, []string{"x"}), stage("a", nil, []string{"y"})},
		"cycle": {
			stage("a", []string{"y"}, []string{"x"}),
			stage("b", []string{"x"}, []string{"y"}),
		},
		"empty": {},
	}
	for name, stages := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := New("epi", stages)
			assert.ErrorIs(t, err, ErrPipelineGraph)
		})
	}
}

func TestRun_PassesTablesDownstream(t *testing.T) {
	var seen string
	consumer := &funcStage{
		name:    "consumer",
		inputs:  []string{"numbers"},
		outputs: []string{"total"},
		fn: func(_ context.Context, s *Scope) error {
			nums, err := Input[[]int](s, "numbers")
			if err != nil {
				return err
			}
			sum := 0
			for _, n := range nums {
				sum += n
			}
			seen = s.StageName()
			return s.Put("total", sum)
		},
	}
	producer := &funcStage{
		name:    "producer",
		outputs: []string{"numbers"},
		fn: func(_ context.Context, s *Scope) error {
			return s.Put("numbers", []int{1, 2, 3})
		},
	}
	listener := &recordingListener{}
	p, err := New("epi", []Stage{consumer, producer}, WithRunListener(listener), WithStageListener(listener))
	require.NoError(t, err)

	tables := NewTables()
	run, err := p.RunWith(context.Background(), tables)
	require.NoError(t, err)

	total, err := Lookup[int](tables, "total")
	require.NoError(t, err)
	assert.Equal(t, 6, total)
	assert.Equal(t, "consumer", seen)
	assert.Equal(t, model.BatchStatusCompleted, run.Status)
	require.Len(t, run.StageExecutions, 2)
	assert.Equal(t, []string{"numbers"}, run.StageExecutions[0].TablesWritten)
	assert.Equal(t, []string{
		"run:start",
		"before:producer", "after:producer:COMPLETED",
		"before:consumer", "after:consumer:COMPLETED",
		"run:COMPLETED",
	}, listener.events)
}

func TestRun_FailureSkipsRemainingStages(t *testing.T) {
	boom := errors.New("boom")
	failing := &funcStage{name: "fetch", outputs: []string{"cases"}, fn: func(context.Context, *Scope) error { return boom }}
	p, err := New("epi", []Stage{failing, stage("export", []string{"cases"}, []string{"written"})})
	require.NoError(t, err)

	tables := NewTables()
	run, err := p.RunWith(context.Background(), tables)

	require.ErrorIs(t, err, boom)
	assert.Equal(t, model.BatchStatusFailed, run.Status)
	assert.Equal(t, model.BatchStatusFailed, run.StageExecutions[0].Status)
	assert.Equal(t, model.BatchStatusSkipped, run.StageExecutions[1].Status)
	assert.False(t, tables.Has("written"))
}

func TestRun_StageMustProduceDeclaredOutputs(t *testing.T) {
	lazy := &funcStage{name: "lazy", outputs: []string{"a", "b"}, fn: func(_ context.Context, s *Scope) error {
		return s.Put("a", 1)
	}}
	p, err := New("epi", []Stage{lazy})
	require.NoError(t, err)

	_, err = p.Run(context.Background())
	assert.ErrorIs(t, err, ErrTableMissing)
	assert.Contains(t, err.Error(), "b")
}

func TestRun_ScopeRejectsUndeclaredAccess(t *testing.T) {
	sneaky := &funcStage{name: "sneaky", outputs: []string{"a"}, fn: func(_ context.Context, s *Scope) error {
		return s.Put("b", 1)
	}}
	p, err := New("epi", []Stage{sneaky})
	require.NoError(t, err)

	_, err = p.Run(context.Background())
	assert.ErrorIs(t, err, ErrUndeclaredTable)
}

func TestRun_PanicBecomesFailure(t *testing.T) {
	p, err := New("epi", []Stage{&funcStage{name: "panicky", outputs: []string{"a"}, fn: func(context.Context, *Scope) error {
		panic("bad row")
	}}})
	require.NoError(t, err)

	run, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad row")
	assert.Equal(t, model.BatchStatusFailed, run.Status)
}

func TestRun_CancelledContextStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p, err := New("epi", []Stage{stage("a", nil, []string{"a"})})
	require.NoError(t, err)

	run, err := p.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, model.BatchStatusStopped, run.Status)
	assert.Equal(t, model.BatchStatusSkipped, run.StageExecutions[0].Status)
}

func TestTables_WriteOnce(t *testing.T) {
	tables := NewTables()
	require.NoError(t, tables.Put("cases", 1))
	assert.ErrorIs(t, tables.Put("cases", 2), ErrTableConflict)

	_, err := Lookup[string](tables, "cases")
	assert.ErrorIs(t, err, ErrTableType)
	_, err = tables.Get("missing")
	assert.ErrorIs(t, err, ErrTableMissing)
	assert.Equal(t, []string{"cases"}, tables.Names())
}
