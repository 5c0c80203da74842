package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rabi/kinetic/agent"
)

// nodeAgent returns a fixed response and records the inputs it saw.
type nodeAgent struct {
	name     string
	response string
	err      error

	mu     sync.Mutex
	inputs []string
}

func (a *nodeAgent) Name() string {
	return a.name
}

func (a *nodeAgent) Run(ctx context.Context, input string) (string, error) {
	a.mu.Lock()
	a.inputs = append(a.inputs, input)
	a.mu.Unlock()
	if a.err != nil {
		return "", a.err
	}
	return a.response, nil
}

func (a *nodeAgent) RunStream(ctx context.Context, input string, events chan<- agent.Event) (string, error) {
	return a.Run(ctx, input)
}

func (a *nodeAgent) lastInput() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.inputs) == 0 {
		return ""
	}
	return a.inputs[len(a.inputs)-1]
}

func makeNode(id string, a agent.Agent, dependsOn ...string) *CompiledNode {
	return &CompiledNode{ID: id, Agent: a, DependsOn: dependsOn}
}

func TestSingleNodeExtractsResultKey(t *testing.T) {
	node := makeNode("main", &nodeAgent{name: "test", response: `{"result": "done"}`})
	graph := NewGraphAgent("test", "test", nil, []*CompiledNode{node})

	result, err := graph.Run(context.Background(), "input")
	require.NoError(t, err)
	assert.Equal(t, "done", result)
}

func TestSequentialReturnsOnlyTerminalOutput(t *testing.T) {
	a := &nodeAgent{name: "A", response: "step a complete"}
	b := &nodeAgent{name: "B", response: "step b complete"}
	graph := NewGraphAgent("seq", "sequential", nil, []*CompiledNode{
		makeNode("a", a),
		makeNode("b", b, "a"),
	})

	result, err := graph.Run(context.Background(), "start")
	require.NoError(t, err)
	assert.Contains(t, result, "step b complete")
	assert.NotContains(t, result, "step a complete")
}

func TestParallelCombinesTerminalOutputs(t *testing.T) {
	graph := NewGraphAgent("par", "parallel", nil, []*CompiledNode{
		makeNode("a", &nodeAgent{name: "A", response: "result_a"}),
		makeNode("b", &nodeAgent{name: "B", response: "result_b"}),
	})

	result, err := graph.Run(context.Background(), "start")
	require.NoError(t, err)
	assert.Equal(t, "result_a\n\n---\n\nresult_b", result)
}

func TestConditionalBranchSkipsUnmetCondition(t *testing.T) {
	classify := makeNode("a", &nodeAgent{name: "A", response: `{"intent": "search"}`})
	classify.Outputs = map[string]string{"intent": "intent"}

	search := makeNode("b", &nodeAgent{name: "B", response: "search_result"}, "a")
	search.When = mustParse(t, "intent == 'search'")

	code := makeNode("c", &nodeAgent{name: "C", response: "code_result"}, "a")
	code.When = mustParse(t, "intent == 'code'")

	graph := NewGraphAgent("cond", "conditional", nil, []*CompiledNode{classify, search, code})

	result, err := graph.Run(context.Background(), "test")
	require.NoError(t, err)
	assert.Contains(t, result, "search_result")
	assert.NotContains(t, result, "code_result")
}

func TestSequentialDataFlow(t *testing.T) {
	a := &nodeAgent{name: "A", response: "data from step A"}
	b := &nodeAgent{name: "B", response: "processed by B"}
	graph := NewGraphAgent("seq", "data flow", nil, []*CompiledNode{
		makeNode("a", a),
		makeNode("b", b, "a"),
	})

	_, err := graph.Run(context.Background(), "original input")
	require.NoError(t, err)

	// Node B receives A's output, not the original input.
	assert.Equal(t, "data from step A", b.lastInput())
	assert.Equal(t, "original input", a.lastInput())
}

func TestDependencyJSONOutputSerializedAsInput(t *testing.T) {
	a := &nodeAgent{name: "A", response: `{"intent": "search"}`}
	b := &nodeAgent{name: "B", response: "done"}
	graph := NewGraphAgent("seq", "", nil, []*CompiledNode{
		makeNode("a", a),
		makeNode("b", b, "a"),
	})

	_, err := graph.Run(context.Background(), "q")
	require.NoError(t, err)
	assert.JSONEq(t, `{"intent": "search"}`, b.lastInput())
}

func TestLastDependencyFeedsInput(t *testing.T) {
	a := &nodeAgent{name: "A", response: "from a"}
	b := &nodeAgent{name: "B", response: "from b"}
	c := &nodeAgent{name: "C", response: "final"}

	join := makeNode("c", c, "a", "b")
	graph := NewGraphAgent("fan", "", nil, []*CompiledNode{
		makeNode("a", a),
		makeNode("b", b),
		join,
	})

	_, err := graph.Run(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "from b", c.lastInput())
}

func TestNodeErrorDoesNotFailWorkflow(t *testing.T) {
	failing := &nodeAgent{name: "A", err: fmt.Errorf("agent exploded")}
	after := &nodeAgent{name: "B", response: "still ran"}
	graph := NewGraphAgent("err", "", nil, []*CompiledNode{
		makeNode("a", failing),
		makeNode("b", after, "a"),
	})

	result, err := graph.Run(context.Background(), "start")
	require.NoError(t, err)
	// The failed node has no output, so its dependent falls back to the
	// original input and the workflow still completes.
	assert.Equal(t, "still ran", result)
	assert.Equal(t, "start", after.lastInput())
}

func TestCancelledContextStopsWorkflow(t *testing.T) {
	a := &nodeAgent{name: "A", response: "from a"}
	b := &nodeAgent{name: "B", response: "from b"}
	graph := NewGraphAgent("cancel", "", nil, []*CompiledNode{
		makeNode("a", a),
		makeNode("b", b, "a"),
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := graph.Run(ctx, "start")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, result)
	assert.Empty(t, a.inputs)
	assert.Empty(t, b.inputs)
}

func TestNodeCancellationPropagates(t *testing.T) {
	cancelled := &nodeAgent{name: "A", err: context.Canceled}
	after := &nodeAgent{name: "B", response: "never"}
	graph := NewGraphAgent("cancel", "", nil, []*CompiledNode{
		makeNode("a", cancelled),
		makeNode("b", after, "a"),
	})

	_, err := graph.Run(context.Background(), "start")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	// Cancellation is not recorded as node data and downstream nodes
	// never run.
	assert.Empty(t, after.inputs)
}

func TestNodeDeadlinePropagates(t *testing.T) {
	timedOut := &nodeAgent{name: "A", err: fmt.Errorf("llm call: %w", context.DeadlineExceeded)}
	graph := NewGraphAgent("deadline", "", nil, []*CompiledNode{
		makeNode("a", timedOut),
	})

	_, err := graph.Run(context.Background(), "start")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestDependenciesSatisfiedAll(t *testing.T) {
	graph := NewGraphAgent("test", "", nil, nil)
	node := &CompiledNode{ID: "test", DependsOn: []string{"a", "b"}, WaitMode: WaitAll}

	completed := map[string]bool{}
	assert.False(t, graph.dependenciesSatisfied(node, completed))

	completed["a"] = true
	assert.False(t, graph.dependenciesSatisfied(node, completed))

	completed["b"] = true
	assert.True(t, graph.dependenciesSatisfied(node, completed))
}

func TestDependenciesSatisfiedAny(t *testing.T) {
	graph := NewGraphAgent("test", "", nil, nil)
	node := &CompiledNode{ID: "test", DependsOn: []string{"a", "b"}, WaitMode: WaitAny}

	completed := map[string]bool{}
	assert.False(t, graph.dependenciesSatisfied(node, completed))

	completed["a"] = true
	assert.True(t, graph.dependenciesSatisfied(node, completed))
}

func TestOutputsExtractedIntoState(t *testing.T) {
	classify := makeNode("classify", &nodeAgent{name: "C", response: `{"intent": "search", "confidence": 0.9}`})
	classify.Outputs = map[string]string{"intent": "intent", "confidence": "confidence"}

	gated := makeNode("gated", &nodeAgent{name: "G", response: "ran"}, "classify")
	gated.When = mustParse(t, "intent == 'search' and confidence > 0.8")

	graph := NewGraphAgent("extract", "", nil, []*CompiledNode{classify, gated})

	result, err := graph.Run(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "ran", result)
}

func TestStateSchemaDefaultsVisibleToConditions(t *testing.T) {
	schema := map[string]StateFieldDef{
		"threshold": {Type: "number", Default: 5},
	}
	gated := makeNode("only", &nodeAgent{name: "O", response: "ok"})
	gated.When = mustParse(t, "threshold >= 5")

	graph := NewGraphAgent("schema", "", schema, []*CompiledNode{gated})

	result, err := graph.Run(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
}

func TestEmptyGraphPassthrough(t *testing.T) {
	passthrough := NewGraphAgent("empty-seq", "", nil, nil)
	passthrough.emptyPassthrough = true

	result, err := passthrough.Run(context.Background(), "echo me")
	require.NoError(t, err)
	assert.Equal(t, "echo me", result)

	silent := NewGraphAgent("empty-par", "", nil, nil)
	result, err = silent.Run(context.Background(), "echo me")
	require.NoError(t, err)
	assert.Equal(t, "", result)
}

func TestRunStreamEmitsAnswer(t *testing.T) {
	node := makeNode("main", &nodeAgent{name: "A", response: "streamed"})
	graph := NewGraphAgent("stream", "", nil, []*CompiledNode{node})

	events := make(chan agent.Event, 100)
	result, err := graph.RunStream(context.Background(), "q", events)
	require.NoError(t, err)
	assert.Equal(t, "streamed", result)
	close(events)

	var last agent.Event
	for ev := range events {
		last = ev
	}
	assert.Equal(t, agent.EventAnswer, last.Type)
	assert.Equal(t, "streamed", last.Content)
}

func TestValueToText(t *testing.T) {
	assert.Equal(t, "plain", valueToText("plain"))
	assert.Equal(t, "42", valueToText(42.0))
	assert.Equal(t, "2.5", valueToText(2.5))
	assert.Equal(t, "true", valueToText(true))
	assert.Equal(t, "", valueToText(nil))

	// Single result/answer/response keys unwrap.
	assert.Equal(t, "done", valueToText(map[string]interface{}{"result": "done"}))
	assert.Equal(t, "done", valueToText(map[string]interface{}{"answer": "done"}))
	assert.Equal(t, "done", valueToText(map[string]interface{}{"response": "done"}))

	// Multi-key objects render as key-value lines.
	text := valueToText(map[string]interface{}{"b": "two", "a": "one"})
	assert.Equal(t, "**a**: one\n**b**: two", text)

	// Arrays render as bullets.
	assert.Equal(t, "- x\n- y", valueToText([]interface{}{"x", "y"}))
}

func TestExtractJSONPath(t *testing.T) {
	value := map[string]interface{}{
		"result": map[string]interface{}{
			"data": map[string]interface{}{"value": 42.0},
		},
	}

	v, ok := extractJSONPath(value, "result.data.value")
	require.True(t, ok)
	assert.Equal(t, 42.0, v)

	_, ok = extractJSONPath(value, "nonexistent")
	assert.False(t, ok)

	_, ok = extractJSONPath(value, "result.data.value.deeper")
	assert.False(t, ok)
}

func TestNonJSONOutputStoredRaw(t *testing.T) {
	a := makeNode("a", &nodeAgent{name: "A", response: "not json"})
	a.Outputs = map[string]string{"intent": "intent"}
	b := &nodeAgent{name: "B", response: "end"}

	graph := NewGraphAgent("raw", "", nil, []*CompiledNode{a, makeNode("b", b, "a")})

	_, err := graph.Run(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "not json", b.lastInput())
}
