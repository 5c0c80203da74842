package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/rabi/kinetic/agent"
)

// ============================================================================
// GRAPH EXECUTION
// ============================================================================

// maxGraphIterations bounds the scheduler loop against runaway graphs.
const maxGraphIterations = 100

// CompiledNode is a graph node bound to a runnable agent, with its
// condition parsed ahead of execution.
type CompiledNode struct {
	ID        string
	Agent     agent.Agent
	DependsOn []string
	// When is nil when the node is unconditional.
	When     Expression
	Outputs  map[string]string
	WaitMode WaitMode
}

// GraphAgent executes a compiled node graph over shared state. Nodes in
// the same ready set run concurrently; state writes are serialized by
// the state's own lock.
type GraphAgent struct {
	name        string
	description string
	nodes       map[string]*CompiledNode
	// order preserves definition order for deterministic scheduling.
	order  []string
	schema map[string]StateFieldDef
	// emptyPassthrough echoes the input when the graph has no nodes.
	emptyPassthrough bool
}

// NewGraphAgent creates a graph executor over compiled nodes.
func NewGraphAgent(name, description string, schema map[string]StateFieldDef, nodes []*CompiledNode) *GraphAgent {
	order := make([]string, 0, len(nodes))
	byID := make(map[string]*CompiledNode, len(nodes))
	for _, node := range nodes {
		order = append(order, node.ID)
		byID[node.ID] = node
	}

	return &GraphAgent{
		name:        name,
		description: description,
		nodes:       byID,
		order:       order,
		schema:      schema,
	}
}

func (g *GraphAgent) Name() string {
	return g.name
}

func (g *GraphAgent) Run(ctx context.Context, input string) (string, error) {
	return g.run(ctx, input, nil)
}

// RunStream forwards node agent events to the caller and closes with an
// Answer event carrying the formatted terminal output.
func (g *GraphAgent) RunStream(ctx context.Context, input string, events chan<- agent.Event) (string, error) {
	result, err := g.run(ctx, input, events)
	if err != nil {
		agent.Emit(events, agent.ErrorEvent(err.Error()))
		return "", err
	}
	agent.Emit(events, agent.AnswerEvent(result))
	return result, nil
}

func (g *GraphAgent) run(ctx context.Context, input string, events chan<- agent.Event) (string, error) {
	if len(g.order) == 0 && g.emptyPassthrough {
		return input, nil
	}

	state := NewState(g.schema)
	state.Update("input", input)

	completed := make(map[string]bool)

	for iteration := 1; ; iteration++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if iteration > maxGraphIterations {
			slog.Error("Graph execution exceeded max iterations", "workflow", g.name)
			break
		}

		ready := g.readyNodes(completed, state)
		if len(ready) == 0 {
			break
		}

		slog.Info("Graph iteration", "workflow", g.name, "iteration", iteration, "nodes", ready)

		// Inputs are resolved before the wave launches; within a wave no
		// node depends on another, so state reads stay consistent.
		group, groupCtx := errgroup.WithContext(ctx)
		for _, id := range ready {
			node := g.nodes[id]
			nodeInput := g.buildNodeInput(input, node, state)

			group.Go(func() error {
				agent.Emit(events, agent.LogEvent(fmt.Sprintf("Executing node: %s", node.ID)))

				output, err := g.executeNode(groupCtx, node, nodeInput, events)
				if err != nil {
					// Cancellation propagates; any other node failure is
					// data, not a workflow failure.
					if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
						return err
					}
					slog.Error("Node failed", "node", node.ID, "error", err)
					state.Update(node.ID+".error", err.Error())
					return nil
				}
				g.applyOutputs(node, output, state)
				slog.Info("Node completed", "node", node.ID)
				return nil
			})
		}
		if err := group.Wait(); err != nil {
			return "", err
		}

		for _, id := range ready {
			completed[id] = true
		}
	}

	return g.formatResponse(state), nil
}

func (g *GraphAgent) executeNode(ctx context.Context, node *CompiledNode, input string, events chan<- agent.Event) (string, error) {
	slog.Info("Executing node", "node", node.ID, "agent", node.Agent.Name())
	if events != nil {
		return node.Agent.RunStream(ctx, input, events)
	}
	return node.Agent.Run(ctx, input)
}

// readyNodes returns not-yet-completed nodes whose dependencies are
// satisfied and whose condition holds, in definition order.
func (g *GraphAgent) readyNodes(completed map[string]bool, state *WorkflowState) []string {
	var ready []string
	for _, id := range g.order {
		if completed[id] {
			continue
		}
		node := g.nodes[id]
		if g.dependenciesSatisfied(node, completed) && g.conditionMet(node, state) {
			ready = append(ready, id)
		}
	}
	return ready
}

func (g *GraphAgent) dependenciesSatisfied(node *CompiledNode, completed map[string]bool) bool {
	if len(node.DependsOn) == 0 {
		return true
	}

	if node.WaitMode == WaitAny {
		for _, dep := range node.DependsOn {
			if completed[dep] {
				return true
			}
		}
		return false
	}

	for _, dep := range node.DependsOn {
		if !completed[dep] {
			return false
		}
	}
	return true
}

func (g *GraphAgent) conditionMet(node *CompiledNode, state *WorkflowState) bool {
	if node.When == nil {
		return true
	}
	return Evaluate(node.When, state)
}

// buildNodeInput resolves what a node receives: nodes without
// dependencies get the original input, others get the last listed
// dependency's output (verbatim for strings, JSON otherwise).
func (g *GraphAgent) buildNodeInput(originalInput string, node *CompiledNode, state *WorkflowState) string {
	if len(node.DependsOn) == 0 {
		return originalInput
	}

	lastDep := node.DependsOn[len(node.DependsOn)-1]
	depOutput, ok := state.Get("output." + lastDep)
	if !ok {
		return originalInput
	}

	if s, ok := depOutput.(string); ok {
		return s
	}
	rendered, err := json.Marshal(depOutput)
	if err != nil {
		return originalInput
	}
	return string(rendered)
}

// applyOutputs records a node's output under "output.<id>" and extracts
// mapped fields into state. JSON outputs are stored parsed; anything
// else is stored as the raw string.
func (g *GraphAgent) applyOutputs(node *CompiledNode, output string, state *WorkflowState) {
	var parsed interface{}
	if err := json.Unmarshal([]byte(output), &parsed); err == nil {
		state.Update("output."+node.ID, parsed)

		for stateKey, jsonPath := range node.Outputs {
			if value, ok := extractJSONPath(parsed, jsonPath); ok {
				state.Update(stateKey, value)
			}
		}
		return
	}

	state.Update("output."+node.ID, output)
	if len(node.Outputs) > 0 {
		slog.Warn("Node output is not JSON, but has output mappings", "node", node.ID)
	}
}

// formatResponse projects state onto the outputs of terminal nodes,
// the ones no other node depends on.
func (g *GraphAgent) formatResponse(state *WorkflowState) string {
	allDeps := make(map[string]bool)
	for _, node := range g.nodes {
		for _, dep := range node.DependsOn {
			allDeps[dep] = true
		}
	}

	var outputs []interface{}
	for _, id := range g.order {
		if allDeps[id] {
			continue
		}
		if value, ok := state.Get("output." + id); ok {
			outputs = append(outputs, value)
		}
	}

	if len(outputs) == 1 {
		return valueToText(outputs[0])
	}

	texts := make([]string, 0, len(outputs))
	for _, value := range outputs {
		texts = append(texts, valueToText(value))
	}
	return strings.Join(texts, "\n\n---\n\n")
}

// valueToText renders a JSON value as readable text. Single-key objects
// named result, answer, or response unwrap to their value.
func valueToText(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case map[string]interface{}:
		if len(v) == 1 {
			for _, key := range []string{"result", "answer", "response"} {
				if inner, ok := v[key]; ok {
					return valueToText(inner)
				}
			}
		}
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		lines := make([]string, 0, len(keys))
		for _, k := range keys {
			lines = append(lines, fmt.Sprintf("**%s**: %s", k, valueToText(v[k])))
		}
		return strings.Join(lines, "\n")
	case []interface{}:
		lines := make([]string, 0, len(v))
		for _, item := range v {
			lines = append(lines, fmt.Sprintf("- %s", valueToText(item)))
		}
		return strings.Join(lines, "\n")
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case nil:
		return ""
	default:
		rendered, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(rendered)
	}
}

// extractJSONPath walks a dotted path through nested objects.
func extractJSONPath(value interface{}, path string) (interface{}, bool) {
	current := value
	for _, part := range strings.Split(path, ".") {
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
