package pipeline

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	// ErrTableMissing is returned when a table is read before any stage produced it,
	// or when a stage finishes without producing a table it declared.
	ErrTableMissing = errors.New("table not available")
	// ErrTableConflict is returned when a table is published twice.
	ErrTableConflict = errors.New("table already published")
	// ErrTableType is returned when a table does not hold the requested Go type.
	ErrTableType = errors.New("table has unexpected type")
	// ErrUndeclaredTable is returned when a stage touches a table it did not declare.
	ErrUndeclaredTable = errors.New("table not declared by stage")
)

// Tables is the write-once handoff area between stages. Each table is published
// exactly once and read-only afterwards.
type Tables struct {
	mu      sync.RWMutex
	entries map[string]interface{}
}

// NewTables creates an empty Tables.
func NewTables() *Tables {
	return &Tables{entries: make(map[string]interface{})}
}

// Put publishes a table.
func (t *Tables) Put(name string, value interface{}) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.entries[name]; exists {
		return fmt.Errorf("%w: %s", ErrTableConflict, name)
	}
	t.entries[name] = value
	return nil
}

// Get returns a published table.
func (t *Tables) Get(name string) (interface{}, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTableMissing, name)
	}
	return v, nil
}

// Has reports whether name has been published.
func (t *Tables) Has(name string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.entries[name]
	return ok
}

// Names returns the published table names, sorted.
func (t *Tables) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names := make([]string, 0, len(t.entries))
	for n := range t.entries {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Lookup reads a table from t and asserts its type.
func Lookup[T any](t *Tables, name string) (T, error) {
	var zero T
	v, err := t.Get(name)
	if err != nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s holds %T, want %T", ErrTableType, name, v, zero)
	}
	return typed, nil
}

// Scope is the view of Tables handed to a running stage. It only allows reads
// of declared inputs and writes of declared outputs.
type Scope struct {
	stage   string
	tables  *Tables
	inputs  map[string]struct{}
	outputs map[string]struct{}

	mu      sync.Mutex
	written []string
}

func newScope(stage Stage, tables *Tables) *Scope {
	s := &Scope{
		stage:   stage.Name(),
		tables:  tables,
		inputs:  make(map[string]struct{}),
		outputs: make(map[string]struct{}),
	}
	for _, in := range stage.Inputs() {
		s.inputs[in] = struct{}{}
	}
	for _, out := range stage.Outputs() {
		s.outputs[out] = struct{}{}
	}
	return s
}

// StageName returns the owning stage.
func (s *Scope) StageName() string { return s.stage }

// Get reads a declared input.
func (s *Scope) Get(name string) (interface{}, error) {
	if _, ok := s.inputs[name]; !ok {
		return nil, fmt.Errorf("%w: stage %s reads %s", ErrUndeclaredTable, s.stage, name)
	}
	return s.tables.Get(name)
}

// Put publishes a declared output.
func (s *Scope) Put(name string, value interface{}) error {
	if _, ok := s.outputs[name]; !ok {
		return fmt.Errorf("%w: stage %s writes %s", ErrUndeclaredTable, s.stage, name)
	}
	if err := s.tables.Put(name, value); err != nil {
		return err
	}
	s.mu.Lock()
	s.written = append(s.written, name)
	s.mu.Unlock()
	return nil
}

func (s *Scope) missingOutputs() []string {
	var missing []string
	for out := range s.outputs {
		if !s.tables.Has(out) {
			missing = append(missing, out)
		}
	}
	sort.Strings(missing)
	return missing
}

func (s *Scope) writtenTables() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.written...)
}

// Input reads a declared input of type T.
func Input[T any](s *Scope, name string) (T, error) {
	var zero T
	v, err := s.Get(name)
	if err != nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s holds %T, want %T", ErrTableType, name, v, zero)
	}
	return typed, nil
}
