// Package mcp provides an MCP (Model Context Protocol) server exposing
// coherence scoring, simulation, conflict resolution, and scene rendering.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/nvandessel/coherence/internal/config"
	"github.com/nvandessel/coherence/internal/logging"
	"github.com/nvandessel/coherence/internal/pathutil"
	"github.com/nvandessel/coherence/internal/ratelimit"
	"github.com/nvandessel/coherence/internal/store"
)

// Server wraps the MCP SDK server with the coherence tools.
type Server struct {
	server       *sdk.Server
	settings     *config.CoherenceConfig
	root         string
	scenarioDirs []string
	logger       *slog.Logger
	decisions    *logging.DecisionLogger
	auditLogger  *AuditLogger
	toolLimiters ratelimit.ToolLimiters

	runsMu sync.Mutex
	runs   *store.RunStore // opened by the first recorded run
}

// Config holds server configuration.
type Config struct {
	Name    string // Server name (e.g., "coherence")
	Version string // Server version
	Root    string // Project root; scenario files may be read from here

	// Settings are the effective model settings. Nil means config.Default().
	Settings *config.CoherenceConfig

	// Logger receives diagnostics. Nil discards them.
	Logger *slog.Logger
}

// NewServer creates a new MCP server with the coherence tools registered.
func NewServer(cfg *Config) (*Server, error) {
	settings := cfg.Settings
	if settings == nil {
		settings = config.Default()
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	scenarioDirs, err := pathutil.ScenarioDirs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve scenario directories: %w", err)
	}

	logDir, err := settings.LogDir()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve log directory: %w", err)
	}

	mcpServer := sdk.NewServer(&sdk.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, &sdk.ServerOptions{
		InitializedHandler: func(ctx context.Context, req *sdk.InitializedRequest) {
			logger.Debug("mcp client initialized")
		},
	})

	s := &Server{
		server:       mcpServer,
		settings:     settings,
		root:         cfg.Root,
		scenarioDirs: scenarioDirs,
		logger:       logger,
		decisions:    logging.NewDecisionLogger(logDir, settings.Logging.Level),
		auditLogger:  NewAuditLogger(logDir),
		toolLimiters: ratelimit.NewToolLimiters(),
	}

	if err := s.registerTools(); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}
	if err := s.registerResources(); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to register resources: %w", err)
	}

	return s, nil
}

// Run starts the MCP server over stdio transport.
// This blocks until the client disconnects or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	notifySignals(sigChan)

	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	err := s.server.Run(ctx, &sdk.StdioTransport{})

	if cerr := s.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// Close releases the run store, the decision log, and the audit log.
func (s *Server) Close() error {
	var firstErr error
	s.runsMu.Lock()
	if s.runs != nil {
		if err := s.runs.Close(); err != nil {
			firstErr = err
		}
		s.runs = nil
	}
	s.runsMu.Unlock()
	s.decisions.Close()
	if err := s.auditLogger.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// runStore opens the run store on first use.
func (s *Server) runStore() (*store.RunStore, error) {
	s.runsMu.Lock()
	defer s.runsMu.Unlock()
	if s.runs != nil {
		return s.runs, nil
	}
	path, err := s.settings.StorePath()
	if err != nil {
		return nil, err
	}
	runs, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening run store: %w", err)
	}
	s.runs = runs
	return runs, nil
}
