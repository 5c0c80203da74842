// Command kinetic is the CLI for the Kinetic workflow engine.
//
// Usage:
//
//	kinetic run --prompt "What is the capital of France?"
//	kinetic workflow --file examples/research.yaml --input "golang schedulers"
//	kinetic serve --port 8080
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/rabi/kinetic"
	"github.com/rabi/kinetic/agent"
	"github.com/rabi/kinetic/config"
	"github.com/rabi/kinetic/llms"
	"github.com/rabi/kinetic/mcp"
	"github.com/rabi/kinetic/server"
	"github.com/rabi/kinetic/tools"
	"github.com/rabi/kinetic/workflow"
)

// CLI defines the command-line interface.
type CLI struct {
	Version  VersionCmd  `cmd:"" help:"Show version information."`
	Run      RunCmd      `cmd:"" help:"Run a simple prompt directly."`
	Workflow WorkflowCmd `cmd:"" help:"Run a workflow from a file."`
	Serve    ServeCmd    `cmd:"" help:"Start the workflow HTTP server."`

	LogLevel  string `help:"Log level (debug, info, warn, error)." default:""`
	LogFile   string `help:"Log file path (empty = stderr)."`
	LogFormat string `help:"Log format (simple, verbose, or standard)." default:""`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Println(kinetic.GetVersion().String())
	return nil
}

// RunCmd sends a single prompt to a model through a bare agent.
type RunCmd struct {
	Prompt string `short:"p" required:"" help:"The prompt to send."`
	Model  string `short:"m" default:"gemini-2.0-flash" help:"The model to use."`
}

func (c *RunCmd) Run() error {
	ctx, cancel := signalContext()
	defer cancel()

	provider := resolveProvider(c.Model)
	slog.Info("Using provider", "provider", provider, "model", c.Model)

	model, err := llms.NewModel(provider, c.Model)
	if err != nil {
		return err
	}

	simple := agent.NewLLMAgent("simple-agent", "A simple agent",
		"You are a helpful assistant.", model, nil)

	fmt.Printf("Sending prompt: %s\n", c.Prompt)
	response, err := simple.Run(ctx, c.Prompt)
	if err != nil {
		return err
	}
	fmt.Printf("Response: %s\n", response)
	return nil
}

// resolveProvider applies the MODEL_PROVIDER override before falling
// back to inference from the model name.
func resolveProvider(modelName string) llms.Provider {
	if name := os.Getenv("MODEL_PROVIDER"); name != "" {
		if provider, ok := llms.ParseProvider(name); ok {
			return provider
		}
		slog.Warn("Unknown MODEL_PROVIDER, inferring from model name", "provider", name)
	}
	return llms.InferProviderFromModel(modelName)
}

// WorkflowCmd builds and runs a workflow file.
type WorkflowCmd struct {
	File   string `short:"f" required:"" type:"path" help:"Path to the workflow file."`
	Input  string `short:"i" required:"" help:"Input to the workflow."`
	Stream bool   `help:"Print agent events as they happen."`
}

func (c *WorkflowCmd) Run() error {
	ctx, cancel := signalContext()
	defer cancel()

	registry := tools.NewToolRegistry()
	registerNativeTools(registry)

	builder := workflow.NewBuilder(registry, mcp.NewServiceManager())
	built, err := builder.BuildAgentFromFile(ctx, c.File)
	if err != nil {
		return err
	}

	fmt.Printf("Running workflow: %s\n", built.Name())

	var response string
	if c.Stream {
		response, err = runStreaming(ctx, built, c.Input)
	} else {
		response, err = built.Run(ctx, c.Input)
	}
	if err != nil {
		return err
	}
	fmt.Printf("Response: %s\n", response)
	return nil
}

// runStreaming runs the agent while printing its event stream.
func runStreaming(ctx context.Context, built agent.Agent, input string) (string, error) {
	events := make(chan agent.Event, 100)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for ev := range events {
			switch ev.Type {
			case agent.EventThought:
				fmt.Printf("[thought] %s\n", ev.Content)
			case agent.EventToolCall:
				fmt.Printf("[tool] %s\n", ev.Name)
			case agent.EventToolResult:
				fmt.Printf("[result] %s\n", ev.Name)
			case agent.EventError:
				fmt.Printf("[error] %s\n", ev.Content)
			}
		}
	}()

	response, err := built.RunStream(ctx, input, events)
	close(events)
	<-done
	return response, err
}

// registerNativeTools registers the API-backed tools whose credentials
// are configured; missing credentials skip the tool with a warning.
func registerNativeTools(registry *tools.ToolRegistry) {
	searchTool, err := tools.NewBraveSearchTool()
	if err != nil {
		slog.Warn("Failed to load search tool", "error", err)
	} else if err := registry.RegisterTool(searchTool); err != nil {
		slog.Warn("Failed to register search tool", "error", err)
	} else {
		slog.Info("Registered tool", "tool", searchTool.GetName())
	}

	githubTools, err := tools.NewGitHubTools()
	if err != nil {
		slog.Warn("Failed to load GitHub tools", "error", err)
		return
	}
	for _, tool := range githubTools {
		if err := registry.RegisterTool(tool); err != nil {
			slog.Warn("Failed to register tool", "tool", tool.GetName(), "error", err)
			continue
		}
		slog.Info("Registered tool", "tool", tool.GetName())
	}
}

// ServeCmd starts the workflow HTTP server.
type ServeCmd struct {
	Host         string `default:"127.0.0.1" help:"Host to bind."`
	Port         int    `default:"8080" help:"Port to listen on."`
	WorkflowsDir string `name:"workflows-dir" default:"examples" type:"path" help:"Directory holding workflow YAML files."`
	AgentsDir    string `name:"agents-dir" default:"agents" type:"path" help:"Directory holding agent YAML files."`
}

func (c *ServeCmd) Run() error {
	ctx, cancel := signalContext()
	defer cancel()

	srv := server.NewServer(server.Config{
		Host:         c.Host,
		Port:         c.Port,
		WorkflowsDir: c.WorkflowsDir,
		AgentsDir:    c.AgentsDir,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		slog.Info("Shutting down...")
		return srv.Stop(context.Background())
	}
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func main() {
	if err := config.LoadEnvFiles(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load env files: %v\n", err)
	}

	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("kinetic"),
		kong.Description("Kinetic - Declarative agentic workflow engine"),
		kong.UsageOnError(),
	)

	cleanup, err := initLoggerFromCLI(cli.LogLevel, cli.LogFile, cli.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	if cleanup != nil {
		defer cleanup()
	}

	err = ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
