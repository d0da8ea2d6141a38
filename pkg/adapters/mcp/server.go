package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/codec"
	"github.com/aretw0/arbor/pkg/session"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// GraphsURI is the resource listing the available graphs.
const GraphsURI = "arbor://graphs"

type sessionArgs struct {
	SessionID string `json:"session_id"`
}

type createArgs struct {
	Graph string `json:"graph"`
}

type pickArgs struct {
	SessionID string `json:"session_id"`
	Index     int    `json:"index"`
}

type minigameArgs struct {
	SessionID string `json:"session_id"`
	Success   bool   `json:"success"`
}

type graphArgs struct {
	Name string `json:"name"`
}

// GraphList is the result of list_graphs.
type GraphList struct {
	Graphs []string `json:"graphs"`
}

// Server exposes live sessions as Model Context Protocol tools, so an agent
// can play a story turn by turn.
type Server struct {
	sessions     *session.Manager
	defaultGraph string
	logger       *slog.Logger
	mcpServer    *server.MCPServer
}

// Option configures the Server.
type Option func(*Server)

// WithDefaultGraph names the graph played when create_session omits one.
func WithDefaultGraph(name string) Option {
	return func(s *Server) {
		s.defaultGraph = name
	}
}

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(sessions *session.Manager, version string, opts ...Option) *Server {
	s := &Server{
		sessions:  sessions,
		logger:    logging.NewNop(),
		mcpServer: server.NewMCPServer("arbor-mcp", version),
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

// ServeSSE serves the protocol over Server-Sent Events until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Channel to listen for errors coming from the listener.
	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
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

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("list_graphs",
		mcp.WithDescription("List the story graphs that can be played."),
		mcp.WithOutputSchema[GraphList](),
	), mcp.NewStructuredToolHandler(s.handleListGraphs))

	s.mcpServer.AddTool(mcp.NewTool("get_graph",
		mcp.WithDescription("Get a graph document (nodes, properties and links) for introspection."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Graph name")),
	), s.handleGetGraph)

	s.mcpServer.AddTool(mcp.NewTool("create_session",
		mcp.WithDescription("Start a playthrough of a graph. Returns the session view with the produced actions."),
		mcp.WithString("graph", mcp.Description("Graph name (optional, defaults to the server graph)")),
		mcp.WithOutputSchema[session.View](),
	), mcp.NewStructuredToolHandler(s.handleCreate))

	s.mcpServer.AddTool(mcp.NewTool("get_session",
		mcp.WithDescription("Get the current view of a session without consuming its actions."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
		mcp.WithOutputSchema[session.View](),
	), mcp.NewStructuredToolHandler(s.handleGet))

	s.mcpServer.AddTool(mcp.NewTool("advance",
		mcp.WithDescription("Move past the current line. Ignored while choices are offered."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
		mcp.WithOutputSchema[session.View](),
	), mcp.NewStructuredToolHandler(s.handleAdvance))

	s.mcpServer.AddTool(mcp.NewTool("pick_choice",
		mcp.WithDescription("Pick one of the offered choices by its zero-based index."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
		mcp.WithNumber("index", mcp.Required(), mcp.Description("Zero-based choice index")),
		mcp.WithOutputSchema[session.View](),
	), mcp.NewStructuredToolHandler(s.handlePick))

	s.mcpServer.AddTool(mcp.NewTool("complete_minigame",
		mcp.WithDescription("Report the outcome of the running minigame."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
		mcp.WithBoolean("success", mcp.Required(), mcp.Description("Whether the player won")),
		mcp.WithOutputSchema[session.View](),
	), mcp.NewStructuredToolHandler(s.handleMinigame))

	s.mcpServer.AddTool(mcp.NewTool("restart_session",
		mcp.WithDescription("Play the session's graph again from its start node."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
		mcp.WithOutputSchema[session.View](),
	), mcp.NewStructuredToolHandler(s.handleRestart))

	s.mcpServer.AddTool(mcp.NewTool("end_session",
		mcp.WithDescription("Discard a session."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
	), s.handleEnd)
}

func (s *Server) handleListGraphs(ctx context.Context, _ mcp.CallToolRequest, _ struct{}) (GraphList, error) {
	names, err := s.sessions.Loader().List(ctx)
	if err != nil {
		return GraphList{}, err
	}
	return GraphList{Graphs: names}, nil
}

func (s *Server) handleGetGraph(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args graphArgs
	if err := request.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	g, err := s.sessions.Loader().Load(ctx, args.Name)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("load failed: %v", err)), nil
	}
	data, err := codec.Marshal(g)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode failed: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) handleCreate(ctx context.Context, _ mcp.CallToolRequest, args createArgs) (session.View, error) {
	name := args.Graph
	if name == "" {
		name = s.defaultGraph
	}
	view, err := s.sessions.Create(ctx, name)
	if err != nil {
		return session.View{}, err
	}
	s.logger.Debug("MCP session created", "session_id", view.SessionID, "graph", name)
	return view, nil
}

func (s *Server) handleGet(ctx context.Context, _ mcp.CallToolRequest, args sessionArgs) (session.View, error) {
	return s.sessions.Get(ctx, args.SessionID)
}

func (s *Server) handleAdvance(ctx context.Context, _ mcp.CallToolRequest, args sessionArgs) (session.View, error) {
	return s.sessions.Advance(ctx, args.SessionID)
}

func (s *Server) handlePick(ctx context.Context, _ mcp.CallToolRequest, args pickArgs) (session.View, error) {
	return s.sessions.Pick(ctx, args.SessionID, args.Index)
}

func (s *Server) handleMinigame(ctx context.Context, _ mcp.CallToolRequest, args minigameArgs) (session.View, error) {
	return s.sessions.CompleteMinigame(ctx, args.SessionID, args.Success)
}

func (s *Server) handleRestart(ctx context.Context, _ mcp.CallToolRequest, args sessionArgs) (session.View, error) {
	return s.sessions.Restart(ctx, args.SessionID)
}

func (s *Server) handleEnd(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args sessionArgs
	if err := request.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	if err := s.sessions.Delete(ctx, args.SessionID); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("session %s ended", args.SessionID)), nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(GraphsURI, "Available graphs",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		names, err := s.sessions.Loader().List(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list graphs: %w", err)
		}
		data, err := json.Marshal(GraphList{Graphs: names})
		if err != nil {
			return nil, err
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      GraphsURI,
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	})
}
