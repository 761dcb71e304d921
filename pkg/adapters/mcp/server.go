// Package mcp exposes an engine as a Model Context Protocol server, so other
// agents can drive threads as tools.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/agentgraph"
	"github.com/aretw0/agentgraph/internal/logging"
	presentation "github.com/aretw0/agentgraph/internal/presentation/graph"
	"github.com/aretw0/agentgraph/internal/sanitize"
	"github.com/aretw0/agentgraph/pkg/domain"
	"github.com/aretw0/agentgraph/pkg/graph"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// GraphURI is the resource holding the compiled graph description.
const GraphURI = "agentgraph://graph"

// Engine is the subset of *agentgraph.Engine served over MCP.
type Engine interface {
	Run(ctx context.Context, threadID string, input *domain.Message) (*domain.State, error)
	Thread(ctx context.Context, threadID string) (*domain.Checkpoint, error)
	Graph() *graph.Graph
}

// RunArgs are the arguments of run_thread.
type RunArgs struct {
	ThreadID string `json:"thread_id"`
	Input    string `json:"input"`
}

// GetArgs are the arguments of get_thread.
type GetArgs struct {
	ThreadID string `json:"thread_id"`
	Since    int    `json:"since"`
}

// ThreadResult is the structured output of both tools.
type ThreadResult struct {
	ThreadID string                 `json:"thread_id" jsonschema_description:"The thread id"`
	Step     int                    `json:"step" jsonschema_description:"Steps completed on the thread"`
	Status   domain.ExecutionStatus `json:"status" jsonschema_description:"active or terminated"`
	NextNode string                 `json:"next_node" jsonschema_description:"Node the thread resumes at"`
	Reply    string                 `json:"reply,omitempty" jsonschema_description:"Content of the last assistant message"`
	Messages []domain.Message       `json:"messages" jsonschema_description:"Messages from the requested offset"`
	Error    string                 `json:"error,omitempty" jsonschema_description:"Abort reason; the thread stays resumable"`
}

// Server wraps the engine and exposes it as an MCP server.
type Server struct {
	engine    Engine
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

// Option configures the server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new MCP server instance.
func NewServer(engine Engine, opts ...Option) *Server {
	s := &Server{
		engine:    engine,
		logger:    logging.NewNop(),
		mcpServer: server.NewMCPServer("agentgraph-mcp", strings.TrimSpace(agentgraph.Version)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying protocol server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves over SSE on addr until ctx is canceled.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())
	httpServer := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func (s *Server) registerTools() {
	runTool := mcp.NewTool("run_thread",
		mcp.WithDescription("Send a message to a thread and run the agent until it replies. Omit input to resume an interrupted thread."),
		mcp.WithString("thread_id", mcp.Required(), mcp.Description("Conversation thread id")),
		mcp.WithString("input", mcp.Description("User message to append")),
		mcp.WithOutputSchema[ThreadResult](),
	)
	s.mcpServer.AddTool(runTool, mcp.NewStructuredToolHandler(s.handleRunThread))

	getTool := mcp.NewTool("get_thread",
		mcp.WithDescription("Read the checkpoint of a thread."),
		mcp.WithString("thread_id", mcp.Required(), mcp.Description("Conversation thread id")),
		mcp.WithNumber("since", mcp.Description("Index of the first message to return")),
		mcp.WithOutputSchema[ThreadResult](),
	)
	s.mcpServer.AddTool(getTool, mcp.NewStructuredToolHandler(s.handleGetThread))
}

func (s *Server) handleRunThread(ctx context.Context, _ mcp.CallToolRequest, args RunArgs) (ThreadResult, error) {
	if args.ThreadID == "" {
		return ThreadResult{}, errors.New("thread_id is required")
	}

	var input *domain.Message
	before := 0
	if args.Input != "" {
		clean, err := sanitize.Input(args.Input)
		if err != nil {
			return ThreadResult{}, fmt.Errorf("input rejected: %w", err)
		}
		msg := domain.UserMessage(clean)
		input = &msg
	}
	if cp, err := s.engine.Thread(ctx, args.ThreadID); err == nil {
		before = cp.State.Len()
	}

	_, runErr := s.engine.Run(ctx, args.ThreadID, input)
	if runErr != nil {
		var abort *domain.RunError
		if !errors.As(runErr, &abort) {
			return ThreadResult{}, runErr
		}
		s.logger.Warn("mcp run aborted", "thread_id", args.ThreadID, "err", runErr)
	}

	res, err := s.result(ctx, args.ThreadID, before)
	if err != nil {
		if runErr != nil {
			return ThreadResult{}, runErr
		}
		return ThreadResult{}, err
	}
	if runErr != nil {
		res.Error = runErr.Error()
	}
	return res, nil
}

func (s *Server) handleGetThread(ctx context.Context, _ mcp.CallToolRequest, args GetArgs) (ThreadResult, error) {
	if args.ThreadID == "" {
		return ThreadResult{}, errors.New("thread_id is required")
	}
	return s.result(ctx, args.ThreadID, args.Since)
}

func (s *Server) result(ctx context.Context, threadID string, since int) (ThreadResult, error) {
	cp, err := s.engine.Thread(ctx, threadID)
	if err != nil {
		return ThreadResult{}, err
	}
	res := ThreadResult{
		ThreadID: cp.ThreadID,
		Step:     cp.Step,
		Status:   cp.Status,
		NextNode: cp.NextNode,
		Messages: []domain.Message{},
	}
	if diff := domain.Since(cp.State, since); diff != nil {
		res.Messages = diff.Appended
	}
	if last, ok := cp.State.Last(); ok && last.Role == domain.RoleAssistant {
		res.Reply = last.Content
	}
	return res, nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(GraphURI, "Compiled graph",
		mcp.WithResourceDescription("Nodes and edges of the agent graph"),
		mcp.WithMIMEType("application/json"),
	), s.readGraph)
}

func (s *Server) readGraph(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	b, err := json.Marshal(presentation.Describe(s.engine.Graph()))
	if err != nil {
		return nil, fmt.Errorf("failed to describe graph: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      GraphURI,
			MIMEType: "application/json",
			Text:     string(b),
		},
	}, nil
}
