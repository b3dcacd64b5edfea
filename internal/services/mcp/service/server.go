package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/louisbranch/combatsim/internal/catalog"
	"github.com/louisbranch/combatsim/internal/services/mcp/domain"
	"github.com/louisbranch/combatsim/internal/services/sim"
	"github.com/louisbranch/combatsim/internal/storage"
	"github.com/louisbranch/combatsim/internal/storage/sqlite"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	serverName    = "combatsim"
	serverVersion = "0.1.0"
)

// Config controls MCP server startup.
type Config struct {
	// DBPath enables stored batches and the job queue when set.
	DBPath      string
	CatalogPath string
	// Workers caps concurrent trials for inline simulations.
	Workers int
}

// Server owns the MCP server and the stores its tools use.
type Server struct {
	mcpServer *mcp.Server
	store     *sqlite.Store
}

type toolRegistrar struct {
	matches func(any) bool
	add     func(*mcp.Server, *mcp.Tool, any)
}

func newToolRegistrar[I any, O any]() toolRegistrar {
	return toolRegistrar{
		matches: func(handler any) bool {
			_, ok := handler.(mcp.ToolHandlerFor[I, O])
			return ok
		},
		add: func(server *mcp.Server, tool *mcp.Tool, handler any) {
			mcp.AddTool(server, tool, handler.(mcp.ToolHandlerFor[I, O]))
		},
	}
}

var toolRegistrars = []toolRegistrar{
	newToolRegistrar[domain.SimulateBattleInput, domain.BatchResult](),
	newToolRegistrar[domain.EnqueueBattleInput, domain.JobResult](),
	newToolRegistrar[domain.GetJobInput, domain.JobResult](),
	newToolRegistrar[domain.GetBatchInput, domain.BatchResult](),
	newToolRegistrar[domain.ListBatchesInput, domain.ListBatchesResult](),
	newToolRegistrar[domain.ListBotsInput, domain.ListBotsResult](),
}

func addTool(server *mcp.Server, tool *mcp.Tool, handler any) error {
	for _, registrar := range toolRegistrars {
		if registrar.matches(handler) {
			registrar.add(server, tool, handler)
			return nil
		}
	}
	toolName := "<nil>"
	if tool != nil {
		toolName = tool.Name
	}
	return fmt.Errorf("mcp registration does not support handler type %T for tool %q", handler, toolName)
}

type toolBinding struct {
	tool    *mcp.Tool
	handler any
}

// New builds a server over cat. A nil store leaves only the catalog and
// inline simulation tools registered.
func New(cat *catalog.Catalog, store *sqlite.Store, workers int) (*Server, error) {
	if cat == nil {
		return nil, fmt.Errorf("catalog is required")
	}
	var batches storage.BatchStore
	if store != nil {
		batches = store
	}
	runner, err := sim.NewRunner(cat, batches)
	if err != nil {
		return nil, err
	}
	runner.Workers = workers

	bindings := []toolBinding{
		{domain.SimulateBattleTool(), domain.SimulateBattleHandler(runner)},
		{domain.ListBotsTool(), domain.ListBotsHandler(cat)},
	}
	if store != nil {
		bindings = append(bindings,
			toolBinding{domain.EnqueueBattleTool(), domain.EnqueueBattleHandler(cat, store)},
			toolBinding{domain.GetJobTool(), domain.GetJobHandler(store)},
			toolBinding{domain.GetBatchTool(), domain.GetBatchHandler(store)},
			toolBinding{domain.ListBatchesTool(), domain.ListBatchesHandler(store)},
		)
	}

	mcpServer := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, nil)
	for _, binding := range bindings {
		if err := addTool(mcpServer, binding.tool, binding.handler); err != nil {
			return nil, err
		}
	}
	return &Server{mcpServer: mcpServer, store: store}, nil
}

// Run serves MCP over stdio until ctx ends.
func Run(ctx context.Context, cfg Config) error {
	cat, err := sim.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		return err
	}

	var store *sqlite.Store
	if path := strings.TrimSpace(cfg.DBPath); path != "" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create mcp storage dir: %w", err)
			}
		}
		store, err = sqlite.Open(path)
		if err != nil {
			return fmt.Errorf("open mcp sqlite store: %w", err)
		}
	}

	server, err := New(cat, store, cfg.Workers)
	if err != nil {
		_ = store.Close()
		return err
	}
	return server.serveWithTransport(ctx, &mcp.StdioTransport{})
}

// Close releases the server's store.
func (s *Server) Close() error {
	if s == nil {
		return nil
	}
	return s.store.Close()
}

// serveWithTransport runs until the transport closes or ctx ends, then closes
// the store.
func (s *Server) serveWithTransport(ctx context.Context, transport mcp.Transport) error {
	if s == nil || s.mcpServer == nil {
		return fmt.Errorf("MCP server is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	log.Printf("serving MCP tools")
	err := s.mcpServer.Run(ctx, transport)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		err = nil
	}
	closeErr := s.Close()
	if closeErr != nil {
		if err == nil {
			return fmt.Errorf("close store: %w", closeErr)
		}
		return fmt.Errorf("serve MCP: %v; close store: %w", err, closeErr)
	}
	if err != nil {
		return fmt.Errorf("serve MCP: %w", err)
	}
	return nil
}
