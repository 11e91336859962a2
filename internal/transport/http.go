// Package transport contains a plain HTTP JSON API transport alongside MCP,
// for callers that don't speak the MCP protocol (spec §6).
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/ThinkInAIXYZ/go-mcp/protocol"
)

const (
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"
	headerCORSOrigin  = "Access-Control-Allow-Origin"
	headerCORSMethods = "Access-Control-Allow-Methods"
	headerCORSHeaders = "Access-Control-Allow-Headers"
	corsMethods       = "GET, POST, OPTIONS"
	corsOrigin        = "*"
	corsHeaders       = "Content-Type"
)

// ToolDispatcher is the subset of cmd/rcaectl's ToolManager this transport
// needs: enough to list the tool surface and invoke a tool by name without
// depending on a go-mcp server instance.
type ToolDispatcher interface {
	ListTools() []*protocol.Tool
	CallTool(ctx context.Context, name string, rawArguments json.RawMessage) (*protocol.CallToolResult, error)
}

// HTTPTransport implements a simple HTTP JSON API transport over the rcae
// tool surface, independent of the MCP protocol framing.
type HTTPTransport struct {
	addr   string
	server *http.Server
	tools  ToolDispatcher
}

// NewHTTPTransport creates an HTTP transport serving dispatcher's tools.
func NewHTTPTransport(addr string, dispatcher ToolDispatcher) *HTTPTransport {
	h := &HTTPTransport{addr: addr, tools: dispatcher}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.handleHealth)
	mux.HandleFunc("/mcp/tools", h.handleListTools)
	mux.HandleFunc("/mcp/tools/call", h.handleCallTool)

	h.server = &http.Server{Addr: addr, Handler: mux}
	return h
}

func (h *HTTPTransport) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set(headerContentType, contentTypeJSON)
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (h *HTTPTransport) handleListTools(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.setCORSHeaders(w)
	w.Header().Set(headerContentType, contentTypeJSON)

	response := map[string]any{"tools": h.tools.ListTools()}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("failed to encode tools response", "error", err)
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

type callToolRequest struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

func (h *HTTPTransport) handleCallTool(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		h.setCORSHeaders(w)
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.setCORSHeaders(w)
	w.Header().Set(headerContentType, contentTypeJSON)

	var callReq callToolRequest
	if err := json.NewDecoder(r.Body).Decode(&callReq); err != nil {
		slog.Error("failed to decode tool call request", "error", err)
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	result, err := h.tools.CallTool(r.Context(), callReq.Name, callReq.Arguments)
	if err != nil {
		slog.Error("tool call failed", "tool", callReq.Name, "error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := json.NewEncoder(w).Encode(result); err != nil {
		slog.Error("failed to encode tool call response", "error", err)
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

func (h *HTTPTransport) setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set(headerCORSOrigin, corsOrigin)
	w.Header().Set(headerCORSMethods, corsMethods)
	w.Header().Set(headerCORSHeaders, corsHeaders)
}

// ListenAndServe starts the HTTP server and blocks until it stops.
func (h *HTTPTransport) ListenAndServe() error {
	slog.Info("starting HTTP transport server", "address", h.addr)
	return h.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (h *HTTPTransport) Shutdown(ctx context.Context) error {
	slog.Info("shutting down HTTP transport server")
	return h.server.Shutdown(ctx)
}
