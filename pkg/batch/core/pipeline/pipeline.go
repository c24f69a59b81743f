// Package pipeline runs a directed acyclic graph of stages. Each stage declares
// the tables it reads and the tables it produces; the graph is validated when the
// pipeline is built and executed sequentially in dependency order, ties broken by
// registration order so that runs are reproducible.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tigerroll/epiflow/pkg/batch/core/metrics"
)

// ErrPipelineGraph is returned when stages do not form a valid graph.
var ErrPipelineGraph = errors.New("invalid pipeline graph")

// Stage is one node of the pipeline.
type Stage interface {
	// Name identifies the stage. Names are unique within a pipeline.
	Name() string
	// Inputs lists the tables the stage reads.
	Inputs() []string
	// Outputs lists the tables the stage produces. Every output must be published
	// through the scope before Execute returns nil.
	Outputs() []string
	// Execute runs the stage.
	Execute(ctx context.Context, scope *Scope) error
}

// Pipeline is a validated, ordered set of stages.
type Pipeline struct {
	name           string
	stages         []Stage
	order          []Stage
	runListeners   []RunListener
	stageListeners []StageListener
	recorder       metrics.MetricRecorder
	tracer         metrics.Tracer
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithRunListener registers a run listener.
func WithRunListener(l RunListener) Option {
	return func(p *Pipeline) { p.runListeners = append(p.runListeners, l) }
}

// WithStageListener registers a stage listener.
func WithStageListener(l StageListener) Option {
	return func(p *Pipeline) { p.stageListeners = append(p.stageListeners, l) }
}

// WithMetricRecorder sets the metric recorder.
func WithMetricRecorder(r metrics.MetricRecorder) Option {
	return func(p *Pipeline) {
		if r != nil {
			p.recorder = r
		}
	}
}

// WithTracer sets the tracer.
func WithTracer(t metrics.Tracer) Option {
	return func(p *Pipeline) {
		if t != nil {
			p.tracer = t
		}
	}
}

// New validates stages and returns a runnable Pipeline.
func New(name string, stages []Stage, opts ...Option) (*Pipeline, error) {
	p := &Pipeline{
		name:     name,
		stages:   stages,
		recorder: metrics.NewNoOpMetricRecorder(),
		tracer:   metrics.NewNoOpTracer(),
	}
	for _, opt := range opts {
		opt(p)
	}
	order, err := resolveOrder(stages)
	if err != nil {
		return nil, err
	}
	p.order = order
	return p, nil
}

// Name returns the pipeline name.
func (p *Pipeline) Name() string { return p.name }

// Order returns stage names in execution order.
func (p *Pipeline) Order() []string {
	names := make([]string, len(p.order))
	for i, s := range p.order {
		names[i] = s.Name()
	}
	return names
}

// resolveOrder checks the graph and returns stages in dependency order.
func resolveOrder(stages []Stage) ([]Stage, error) {
	if len(stages) == 0 {
		return nil, fmt.Errorf("%w: no stages", ErrPipelineGraph)
	}

	producer := make(map[string]int)
	names := make(map[string]struct{})
	for i, s := range stages {
		if s == nil || s.Name() == "" {
			return nil, fmt.Errorf("%w: stage #%d has no name", ErrPipelineGraph, i)
		}
		if _, dup := names[s.Name()]; dup {
			return nil, fmt.Errorf("%w: duplicate stage name %s", ErrPipelineGraph, s.Name())
		}
		names[s.Name()] = struct{}{}
		for _, out := range s.Outputs() {
			if prev, dup := producer[out]; dup {
				return nil, fmt.Errorf("%w: table %s is produced by both %s and %s", ErrPipelineGraph, out, stages[prev].Name(), s.Name())
			}
			producer[out] = i
		}
	}

	// deps[i] holds the indices of stages that i reads from.
	deps := make([]map[int]struct{}, len(stages))
	for i, s := range stages {
		deps[i] = make(map[int]struct{})
		for _, in := range s.Inputs() {
			j, ok := producer[in]
			if !ok {
				return nil, fmt.Errorf("%w: stage %s reads %s, which no stage produces", ErrPipelineGraph, s.Name(), in)
			}
			deps[i][j] = struct{}{}
		}
	}

	done := make([]bool, len(stages))
	order := make([]Stage, 0, len(stages))
	for len(order) < len(stages) {
		next := -1
		for i := range stages {
			if done[i] {
				continue
			}
			ready := true
			for j := range deps[i] {
				if !done[j] {
					ready = false
					break
				}
			}
			if ready {
				next = i
				break
			}
		}
		if next < 0 {
			var stuck []string
			for i, s := range stages {
				if !done[i] {
					stuck = append(stuck, s.Name())
				}
			}
			return nil, fmt.Errorf("%w: cycle among stages %s", ErrPipelineGraph, strings.Join(stuck, ", "))
		}
		done[next] = true
		order = append(order, stages[next])
	}
	return order, nil
}
