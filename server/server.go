// Package server exposes workflows over HTTP: definition listings,
// one-shot executions, and SSE streaming of agent events.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/rabi/kinetic/agent"
	"github.com/rabi/kinetic/mcp"
	"github.com/rabi/kinetic/tools"
	"github.com/rabi/kinetic/workflow"
)

// ============================================================================
// SERVER
// ============================================================================

// Config contains configuration for the workflow HTTP server.
type Config struct {
	Host         string
	Port         int
	WorkflowsDir string // directory holding workflow YAML files
	AgentsDir    string // directory holding standalone agent YAML files
}

// Server serves the workflow API.
type Server struct {
	config     Config
	executions map[string]*Execution
	mu         sync.RWMutex
	httpServer *http.Server
}

// ExecutionStatus tracks an execution's lifecycle.
type ExecutionStatus string

const (
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionFailed    ExecutionStatus = "failed"
)

// Execution is one workflow run started through the API.
type Execution struct {
	ID         string          `json:"id"`
	WorkflowID string          `json:"workflow_id"`
	Status     ExecutionStatus `json:"status"`
	Output     string          `json:"output,omitempty"`
	Error      string          `json:"error,omitempty"`
	StartedAt  time.Time       `json:"started_at"`
	EndedAt    *time.Time      `json:"ended_at,omitempty"`
}

// ExecutionRequest names the workflow to run and its input.
type ExecutionRequest struct {
	WorkflowID string `json:"workflow_id"`
	Input      string `json:"input"`
}

// NewServer creates a server. Empty directories default to "examples"
// and "agents" relative to the working directory.
func NewServer(config Config) *Server {
	if config.WorkflowsDir == "" {
		config.WorkflowsDir = "examples"
	}
	if config.AgentsDir == "" {
		config.AgentsDir = "agents"
	}
	return &Server{
		config:     config,
		executions: make(map[string]*Execution),
	}
}

// Router builds the chi router with all API routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(loggingMiddleware)
	r.Use(corsMiddleware)

	r.Get("/api/health", s.handleHealth)
	r.Get("/api/workflows", s.handleListWorkflows)
	r.Get("/api/workflows/{id}", s.handleGetWorkflow)
	r.Get("/api/agents", s.handleListAgents)
	r.Get("/api/agents/{id}", s.handleGetAgent)
	r.Post("/api/executions", s.handleCreateExecution)
	r.Get("/api/executions/{id}", s.handleGetExecution)
	r.Post("/api/executions/stream", s.handleStreamExecution)

	return r
}

// Start runs the HTTP server until it fails or Stop is called.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	slog.Info("Listening", "addr", fmt.Sprintf("http://%s", addr))
	return s.httpServer.ListenAndServe()
}

// Stop gracefully stops the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// newBuilder assembles a fresh builder with the built-in tools and an
// MCP manager scoped to one execution.
func (s *Server) newBuilder() *workflow.Builder {
	registry := tools.NewToolRegistry()
	registerBuiltinTools(registry)
	return workflow.NewBuilder(registry, mcp.NewServiceManager())
}

// registerBuiltinTools registers the API-backed tools whose credentials
// are present. A missing credential just leaves the tool out.
func registerBuiltinTools(registry *tools.ToolRegistry) {
	if searchTool, err := tools.NewBraveSearchTool(); err == nil {
		if err := registry.RegisterTool(searchTool); err != nil {
			slog.Warn("Failed to register search tool", "error", err)
		}
	}
	githubTools, err := tools.NewGitHubTools()
	if err != nil {
		return
	}
	for _, tool := range githubTools {
		if err := registry.RegisterTool(tool); err != nil {
			slog.Warn("Failed to register tool", "tool", tool.GetName(), "error", err)
		}
	}
}

// ============================================================================
// HANDLERS
// ============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, listDefinitions(s.config.WorkflowsDir))
}

func (s *Server) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	s.serveDefinition(w, s.config.WorkflowsDir, chi.URLParam(r, "id"), "Workflow not found")
}

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, listDefinitions(s.config.AgentsDir))
}

func (s *Server) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	s.serveDefinition(w, s.config.AgentsDir, chi.URLParam(r, "id"), "Agent not found")
}

// serveDefinition returns the parsed YAML of one definition file.
func (s *Server) serveDefinition(w http.ResponseWriter, dir, id, notFound string) {
	path, ok := definitionPath(dir, id)
	if !ok {
		respondJSON(w, http.StatusNotFound, map[string]string{"error": notFound})
		return
	}

	content, err := os.ReadFile(path)
	if err != nil {
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	var parsed interface{}
	if err := yaml.Unmarshal(content, &parsed); err != nil {
		respondJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": fmt.Sprintf("Invalid YAML: %v", err)})
		return
	}
	respondJSON(w, http.StatusOK, parsed)
}

func (s *Server) handleCreateExecution(w http.ResponseWriter, r *http.Request) {
	var req ExecutionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	path, ok := s.resolveWorkflowPath(req.WorkflowID)
	if !ok {
		respondJSON(w, http.StatusNotFound, map[string]string{"error": "Workflow/Agent not found"})
		return
	}

	execution := s.recordExecution(req.WorkflowID)

	built, err := s.newBuilder().BuildAgentFromFile(r.Context(), path)
	if err != nil {
		s.finishExecution(execution, "", fmt.Errorf("Failed to build agent: %w", err))
		respondJSON(w, http.StatusUnprocessableEntity, execution)
		return
	}

	output, err := built.Run(r.Context(), req.Input)
	if err != nil {
		s.finishExecution(execution, "", fmt.Errorf("Execution failed: %w", err))
		respondJSON(w, http.StatusInternalServerError, execution)
		return
	}

	s.finishExecution(execution, output, nil)
	respondJSON(w, http.StatusOK, execution)
}

func (s *Server) handleGetExecution(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	execution, exists := s.executions[chi.URLParam(r, "id")]
	s.mu.RUnlock()

	if !exists {
		respondJSON(w, http.StatusNotFound, map[string]string{"error": "Execution not found"})
		return
	}
	respondJSON(w, http.StatusOK, execution)
}

// handleStreamExecution runs a workflow and streams its agent events as
// server-sent events, one JSON event per data line.
func (s *Server) handleStreamExecution(w http.ResponseWriter, r *http.Request) {
	var req ExecutionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Streaming unsupported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	events := make(chan agent.Event, 100)
	done := make(chan struct{})

	go func() {
		defer close(events)
		defer close(done)
		s.runStreaming(r.Context(), req, events)
	}()

	keepalive := time.NewTicker(1 * time.Second)
	defer keepalive.Stop()

	for {
		select {
		case ev, open := <-events:
			if !open {
				return
			}
			writeSSEEvent(w, flusher, ev)
		case <-keepalive.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		case <-r.Context().Done():
			<-done
			return
		}
	}
}

// runStreaming builds the agent and runs it, reporting failures as
// error events on the same stream.
func (s *Server) runStreaming(ctx context.Context, req ExecutionRequest, events chan<- agent.Event) {
	slog.Info("Starting streaming execution", "workflow", req.WorkflowID)

	path, ok := s.resolveWorkflowPath(req.WorkflowID)
	if !ok {
		slog.Warn("Workflow/agent not found", "workflow", req.WorkflowID)
		agent.Emit(events, agent.ErrorEvent("Workflow/Agent not found"))
		return
	}

	execution := s.recordExecution(req.WorkflowID)

	built, err := s.newBuilder().BuildAgentFromFile(ctx, path)
	if err != nil {
		slog.Error("Failed to build agent", "error", err)
		s.finishExecution(execution, "", err)
		agent.Emit(events, agent.ErrorEvent(fmt.Sprintf("Build failed: %v", err)))
		return
	}

	output, err := built.RunStream(ctx, req.Input, events)
	if err != nil {
		slog.Error("Agent execution failed", "error", err)
		s.finishExecution(execution, "", err)
		agent.Emit(events, agent.ErrorEvent(fmt.Sprintf("Execution Error: %v", err)))
		return
	}
	s.finishExecution(execution, output, nil)
	slog.Info("Agent execution finished", "execution", execution.ID)
}

// ============================================================================
// EXECUTION TRACKING
// ============================================================================

func (s *Server) recordExecution(workflowID string) *Execution {
	execution := &Execution{
		ID:         uuid.New().String(),
		WorkflowID: workflowID,
		Status:     ExecutionRunning,
		StartedAt:  time.Now(),
	}
	s.mu.Lock()
	s.executions[execution.ID] = execution
	s.mu.Unlock()
	return execution
}

func (s *Server) finishExecution(execution *Execution, output string, err error) {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	execution.EndedAt = &now
	if err != nil {
		execution.Status = ExecutionFailed
		execution.Error = err.Error()
		return
	}
	execution.Status = ExecutionCompleted
	execution.Output = output
}

// ============================================================================
// DEFINITION LISTING
// ============================================================================

// DefinitionInfo describes one YAML definition file.
type DefinitionInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	File string `json:"file"`
}

// listDefinitions lists the yaml/yml files in a directory. A missing
// directory yields an empty list, not an error.
func listDefinitions(dir string) []DefinitionInfo {
	definitions := make([]DefinitionInfo, 0)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return definitions
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		stem := strings.TrimSuffix(entry.Name(), ext)
		definitions = append(definitions, DefinitionInfo{
			ID:   stem,
			Name: stem,
			File: filepath.Join(dir, entry.Name()),
		})
	}
	return definitions
}

// definitionPath locates <dir>/<id>.yaml or <dir>/<id>.yml.
func definitionPath(dir, id string) (string, bool) {
	for _, ext := range []string{".yaml", ".yml"} {
		path := filepath.Join(dir, id+ext)
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
	}
	return "", false
}

// resolveWorkflowPath checks the workflows directory first, then falls
// back to standalone agents.
func (s *Server) resolveWorkflowPath(id string) (string, bool) {
	if path, ok := definitionPath(s.config.WorkflowsDir, id); ok {
		return path, true
	}
	return definitionPath(s.config.AgentsDir, id)
}

// ============================================================================
// UTILITIES AND MIDDLEWARE
// ============================================================================

func writeSSEEvent(w http.ResponseWriter, flusher http.Flusher, ev agent.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		slog.Warn("Failed to marshal event", "error", err)
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Warn("Failed to encode response", "error", err)
	}
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Info("Request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
