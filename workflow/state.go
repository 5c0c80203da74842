package workflow

import (
	"encoding/json"
	"strings"
	"sync"
)

// ============================================================================
// WORKFLOW STATE
// ============================================================================

// WorkflowState is the shared key-value state of a running graph. Every
// write goes through the field's reducer; fields without a schema entry
// are overwritten. Safe for concurrent use by parallel nodes.
type WorkflowState struct {
	mu       sync.RWMutex
	fields   map[string]interface{}
	reducers map[string]ReducerType
}

// NewState seeds state from a schema: defaults become initial values
// and each field's reducer is recorded. Defaults are cloned so reducers
// that mutate in place never touch the schema shared across runs.
func NewState(schema map[string]StateFieldDef) *WorkflowState {
	state := EmptyState()
	for name, def := range schema {
		if def.Default != nil {
			state.fields[name] = cloneValue(def.Default)
		}
		reducer := def.Reducer
		if reducer == "" {
			reducer = ReducerOverwrite
		}
		state.reducers[name] = reducer
	}
	return state
}

// cloneValue copies a YAML-shaped value (maps, slices, scalars).
func cloneValue(value interface{}) interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		clone := make(map[string]interface{}, len(v))
		for k, item := range v {
			clone[k] = cloneValue(item)
		}
		return clone
	case []interface{}:
		clone := make([]interface{}, len(v))
		for i, item := range v {
			clone[i] = cloneValue(item)
		}
		return clone
	default:
		return v
	}
}

// EmptyState creates state with no schema; every field overwrites.
func EmptyState() *WorkflowState {
	return &WorkflowState{
		fields:   make(map[string]interface{}),
		reducers: make(map[string]ReducerType),
	}
}

// Update merges a value into a field using its reducer.
func (s *WorkflowState) Update(key string, value interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reducer, ok := s.reducers[key]
	if !ok {
		reducer = ReducerOverwrite
	}

	switch reducer {
	case ReducerAppend:
		current, exists := s.fields[key]
		if !exists {
			current = []interface{}{}
		}
		arr, ok := current.([]interface{})
		if !ok {
			return
		}
		if items, ok := value.([]interface{}); ok {
			arr = append(arr, items...)
		} else {
			arr = append(arr, value)
		}
		s.fields[key] = arr

	case ReducerMax:
		incoming, ok := asNumber(value)
		if !ok {
			return
		}
		if current, exists := s.numericField(key); !exists || incoming > current {
			s.fields[key] = value
		}

	case ReducerMin:
		incoming, ok := asNumber(value)
		if !ok {
			return
		}
		if current, exists := s.numericField(key); !exists || incoming < current {
			s.fields[key] = value
		}

	case ReducerMerge:
		current, exists := s.fields[key]
		if !exists {
			current = map[string]interface{}{}
			s.fields[key] = current
		}
		currentObj, ok := current.(map[string]interface{})
		if !ok {
			return
		}
		incomingObj, ok := value.(map[string]interface{})
		if !ok {
			return
		}
		for k, v := range incomingObj {
			currentObj[k] = v
		}

	default:
		s.fields[key] = value
	}
}

func (s *WorkflowState) numericField(key string) (float64, bool) {
	current, exists := s.fields[key]
	if !exists {
		return 0, false
	}
	return asNumber(current)
}

// Get returns a top-level field value.
func (s *WorkflowState) Get(key string) (interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.fields[key]
	return v, ok
}

// GetPath resolves a dotted path, walking object keys after the first
// segment (e.g. "result.data.intent").
func (s *WorkflowState) GetPath(path string) (interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	parts := strings.Split(path, ".")
	current, ok := s.fields[parts[0]]
	if !ok {
		return nil, false
	}

	for _, part := range parts[1:] {
		obj, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current, ok = obj[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// Keys returns all field names.
func (s *WorkflowState) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.fields))
	for k := range s.fields {
		keys = append(keys, k)
	}
	return keys
}

// Snapshot returns a shallow copy of the fields.
func (s *WorkflowState) Snapshot() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := make(map[string]interface{}, len(s.fields))
	for k, v := range s.fields {
		snapshot[k] = v
	}
	return snapshot
}

// ToJSON renders the state as a JSON object.
func (s *WorkflowState) ToJSON() ([]byte, error) {
	return json.Marshal(s.Snapshot())
}
