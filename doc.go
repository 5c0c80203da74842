// Package kinetic is a declarative agentic workflow engine.
//
// Kinetic runs LLM agent workflows described in YAML. A workflow names
// its agents, their models and tools, and how they compose; the engine
// normalizes every composition style to a dependency graph and
// schedules it over a typed shared state.
//
// # Quick Start
//
// Install the CLI:
//
//	go install github.com/rabi/kinetic/cmd/kinetic@latest
//
// Create a workflow file:
//
//	kind: Direct
//	name: Assistant
//	description: "A helpful assistant"
//
//	agent:
//	  name: Assistant
//	  description: "Answers questions"
//	  instructions: "You are a helpful assistant."
//	  model:
//	    kind: llm
//	    model_name: gemini-2.0-flash
//
// Run it:
//
//	kinetic workflow --file assistant.yaml --input "hello"
//
// # Workflow Kinds
//
//   - Direct: a single agent
//   - Composite: sequential, parallel, or loop over a list of agents
//   - Graph: explicit nodes with depends_on edges, conditions, and a
//     shared state schema with per-field reducers
//
// Every kind normalizes to the same graph representation before
// execution, so conditions, wait modes, and state semantics behave
// identically regardless of how the workflow was declared.
//
// # Using as a Go Library
//
//	import (
//	    "github.com/rabi/kinetic/workflow"
//	    "github.com/rabi/kinetic/tools"
//	    "github.com/rabi/kinetic/mcp"
//	)
//
//	builder := workflow.NewBuilder(tools.NewToolRegistry(), mcp.NewServiceManager())
//	agent, err := builder.BuildAgentFromFile(ctx, "assistant.yaml")
//
// # HTTP Server
//
// The server package exposes workflows over a REST API, including SSE
// streaming of agent events:
//
//	kinetic serve --port 8080
package kinetic
