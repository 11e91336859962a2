// Package main is the entry point for the rcae engine's MCP/HTTP front end.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rcae/rcae/internal/config"
	"github.com/rcae/rcae/internal/engine"
	"github.com/rcae/rcae/internal/transport"

	"github.com/ThinkInAIXYZ/go-mcp/protocol"
	mcpserver "github.com/ThinkInAIXYZ/go-mcp/server"
	mcptransport "github.com/ThinkInAIXYZ/go-mcp/transport"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.SetupLogging(); err != nil {
		fmt.Fprintf(os.Stderr, "Error configuring logging: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eng, err := engine.New(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to start engine: %v", err)
	}
	defer eng.Close()

	if cfg.HTTP {
		runHTTP(ctx, cfg, eng)
		return
	}
	runMCP(ctx, cfg, eng)
}

// runMCP serves the spec §6 tool surface over the MCP protocol, selecting
// stdio (the default, matching the teacher's front end) or Streamable HTTP
// when configured.
func runMCP(ctx context.Context, cfg *config.Config, eng *engine.Engine) {
	var t mcptransport.ServerTransport
	var err error
	var opts []mcpserver.Option

	if cfg.MCPStreamableHTTP {
		addr := cfg.MCPStreamableHTTPAddr
		if addr == "" {
			addr = ":3000"
		}
		endpoint := cfg.MCPStreamableHTTPEndpoint
		if endpoint == "" {
			endpoint = "/mcp"
		}
		log.Printf("MCP Streamable HTTP transport enabled, listening on %s%s", addr, endpoint)
		t, err = mcptransport.NewStreamableHTTPServerTransport(addr, endpoint)
		if err != nil {
			log.Fatalf("failed to initialize Streamable HTTP transport: %v", err)
		}
		opts = append(opts, mcpserver.WithLogger(streamableHTTPLogger()))
	} else {
		log.Println("Starting MCP over stdio (default)")
		t = mcptransport.NewStdioServerTransport()
	}

	opts = append(opts,
		mcpserver.WithServerInfo(protocol.Implementation{
			Name:    "rcae",
			Version: "0.1.0",
		}),
		mcpserver.WithInstructions("rcae is ready: scan, build, and query a project's code graph and memories."),
	)

	srv, err := mcpserver.NewServer(t, opts...)
	if err != nil {
		log.Fatalf("failed to create MCP server: %v", err)
	}

	if err := NewToolManager(eng).RegisterTools(srv); err != nil {
		log.Fatalf("failed to register tools: %v", err)
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.Run(); err != nil {
		log.Fatalf("server run error: %v", err)
	}
}

// runHTTP serves the same tool surface over the plain HTTP JSON API, for
// callers that don't speak MCP (spec §6 "a plain HTTP transport alongside
// MCP, for non-MCP callers").
func runHTTP(ctx context.Context, cfg *config.Config, eng *engine.Engine) {
	addr := cfg.HTTPAddr
	if addr == "" {
		addr = ":8080"
	}
	tm := NewToolManager(eng)
	if err := tm.build(); err != nil {
		log.Fatalf("failed to build tool registry: %v", err)
	}
	srv := transport.NewHTTPTransport(addr, tm)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("http transport shutdown error", "err", err)
		}
	}()

	log.Printf("HTTP JSON API listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil {
		log.Fatalf("http transport error: %v", err)
	}
}
