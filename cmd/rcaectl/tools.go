package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ThinkInAIXYZ/go-mcp/protocol"
	mcpserver "github.com/ThinkInAIXYZ/go-mcp/server"

	"github.com/rcae/rcae/internal/assembler"
	"github.com/rcae/rcae/internal/codegraph"
	"github.com/rcae/rcae/internal/engine"
	"github.com/rcae/rcae/internal/graphrag"
	"github.com/rcae/rcae/internal/retriever"
	"github.com/rcae/rcae/internal/storage"
)

// ToolManager adapts an engine.Engine onto the go-mcp tool surface, kept as
// a thin dispatcher per spec §1's Non-goal that the RPC surface not shape
// the engine's design — grounded on the teacher's pkg/mcp_tools.ToolManager
// shape (one struct, grouped RegisterXTools helpers, typed Input structs per
// tool, JSON-rendered text results). Registered tools are also kept in
// an internal registry so internal/transport's plain HTTP API can dispatch
// the same handlers without a go-mcp server in the loop.
type ToolManager struct {
	engine *engine.Engine
	tools  []*protocol.Tool
	byName map[string]toolHandler
}

// NewToolManager wires a ToolManager over an already-constructed engine.
func NewToolManager(e *engine.Engine) *ToolManager {
	return &ToolManager{engine: e, byName: make(map[string]toolHandler)}
}

type toolHandler = func(context.Context, *protocol.CallToolRequest) (*protocol.CallToolResult, error)

// ListTools returns every tool definition registered so far, satisfying
// internal/transport's dispatcher interface.
func (tm *ToolManager) ListTools() []*protocol.Tool {
	return tm.tools
}

// CallTool invokes a registered tool by name with raw JSON arguments,
// satisfying internal/transport's dispatcher interface.
func (tm *ToolManager) CallTool(ctx context.Context, name string, rawArguments json.RawMessage) (*protocol.CallToolResult, error) {
	handler, ok := tm.byName[name]
	if !ok {
		return nil, fmt.Errorf("unknown tool %q", name)
	}
	return handler(ctx, &protocol.CallToolRequest{Name: name, RawArguments: rawArguments})
}

// build populates the internal registry (tools/byName) once, idempotently,
// so both the MCP and plain-HTTP front ends can share one source of truth
// for the tool surface.
func (tm *ToolManager) build() error {
	if tm.tools != nil {
		return nil
	}
	tm.tools = []*protocol.Tool{}

	reg := func(name, description string, input any, handler toolHandler) error {
		tool, err := protocol.NewTool(name, description, input)
		if err != nil {
			return fmt.Errorf("create tool %s: %w", name, err)
		}
		tm.tools = append(tm.tools, tool)
		tm.byName[name] = handler
		return nil
	}

	if err := tm.registerCodeTools(reg); err != nil {
		return err
	}
	if err := tm.registerGraphragTools(reg); err != nil {
		return err
	}
	if err := tm.registerMemoryTools(reg); err != nil {
		return err
	}
	if err := tm.registerPendingTools(reg); err != nil {
		return err
	}
	return nil
}

// RegisterTools builds the tool surface (if not already built) and registers
// every tool with srv.
func (tm *ToolManager) RegisterTools(srv *mcpserver.Server) error {
	if err := tm.build(); err != nil {
		return err
	}
	for _, tool := range tm.tools {
		srv.RegisterTool(tool, tm.byName[tool.Name])
	}
	slog.Info("registered rcae tool surface")
	return nil
}

func textResult(text string) *protocol.CallToolResult {
	return protocol.NewCallToolResult([]protocol.Content{
		&protocol.TextContent{Type: "text", Text: text},
	}, false)
}

func jsonResult(v any) (*protocol.CallToolResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return textResult(string(b)), nil
}

func decodeArgs(raw json.RawMessage, out any) error {
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("parse arguments: %w", err)
	}
	return nil
}

// --- Code Graph tools (spec §6) ---

type scanCodeInput struct {
	Include []string `json:"include,omitempty"`
	Exclude []string `json:"exclude,omitempty"`
	MaxFiles int     `json:"maxFiles,omitempty"`
	Watch   bool     `json:"watch,omitempty"`
}

type getCodeNodeInput struct {
	ID string `json:"id"`
}

type updateNodeSummaryInput struct {
	ID         string  `json:"id"`
	Summary    string  `json:"summary"`
	Confidence float64 `json:"confidence"`
}

type getCallGraphInput struct {
	NodeID   string `json:"nodeId"`
	MaxDepth int    `json:"maxDepth,omitempty"`
}

type findImplementationsInput struct {
	NodeID string `json:"nodeId"`
}

type analyzeImpactInput struct {
	NodeID   string `json:"nodeId"`
	MaxDepth int    `json:"maxDepth,omitempty"`
}

type summarizeCodeInput struct {
	NodeID string `json:"nodeId"`
}

type getUnsummarizedInput struct {
	Limit int `json:"limit,omitempty"`
}

type batchUpdateSummariesInput struct {
	Updates map[string]string `json:"updates"`
}

func (tm *ToolManager) registerCodeTools(reg func(string, string, any, toolHandler) error) error {
	if err := reg("scanCode", "Scan the project and update the code graph.", scanCodeInput{}, tm.scanCodeHandler); err != nil {
		return err
	}
	if err := reg("stopCodeWatch", "Stop the background code watcher.", struct{}{}, tm.stopCodeWatchHandler); err != nil {
		return err
	}
	if err := reg("getCodeNode", "Fetch a code node by id.", getCodeNodeInput{}, tm.getCodeNodeHandler); err != nil {
		return err
	}
	if err := reg("updateNodeSummary", "Overwrite a code node's summary.", updateNodeSummaryInput{}, tm.updateNodeSummaryHandler); err != nil {
		return err
	}
	if err := reg("getCallGraph", "Walk the call graph from a node.", getCallGraphInput{}, tm.getCallGraphHandler); err != nil {
		return err
	}
	if err := reg("findImplementations", "Find implementers/extenders of a node.", findImplementationsInput{}, tm.findImplementationsHandler); err != nil {
		return err
	}
	if err := reg("getDependencyTree", "Walk the import graph from a node.", getCallGraphInput{}, tm.getDependencyTreeHandler); err != nil {
		return err
	}
	if err := reg("analyzeImpact", "Report every node reachable from callers/importers of a node.", analyzeImpactInput{}, tm.analyzeImpactHandler); err != nil {
		return err
	}
	if err := reg("summarizeCode", "Recompute a node's heuristic summary.", summarizeCodeInput{}, tm.summarizeCodeHandler); err != nil {
		return err
	}
	if err := reg("getUnsummarized", "List nodes still flagged needsAiSummary.", getUnsummarizedInput{}, tm.getUnsummarizedHandler); err != nil {
		return err
	}
	if err := reg("batchUpdateSummaries", "Apply many AI-generated summaries at once.", batchUpdateSummariesInput{}, tm.batchUpdateSummariesHandler); err != nil {
		return err
	}
	return nil
}

func (tm *ToolManager) scanCodeHandler(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var in scanCodeInput
	if err := decodeArgs(req.RawArguments, &in); err != nil {
		return nil, err
	}
	stats, err := tm.engine.ScanCode(ctx, codegraph.ScanOptions{
		Include: in.Include, Exclude: in.Exclude, MaxFiles: in.MaxFiles, Watch: in.Watch,
	})
	if err != nil {
		return nil, err
	}
	return jsonResult(stats)
}

func (tm *ToolManager) stopCodeWatchHandler(_ context.Context, _ *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	tm.engine.StopCodeWatch()
	return textResult("code watcher stopped"), nil
}

func (tm *ToolManager) getCodeNodeHandler(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var in getCodeNodeInput
	if err := decodeArgs(req.RawArguments, &in); err != nil {
		return nil, err
	}
	n, err := tm.engine.GetCodeNode(ctx, in.ID)
	if err != nil {
		return nil, err
	}
	return jsonResult(n)
}

func (tm *ToolManager) updateNodeSummaryHandler(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var in updateNodeSummaryInput
	if err := decodeArgs(req.RawArguments, &in); err != nil {
		return nil, err
	}
	if err := tm.engine.UpdateNodeSummary(ctx, in.ID, in.Summary, in.Confidence); err != nil {
		return nil, err
	}
	return textResult(fmt.Sprintf("updated summary for %s", in.ID)), nil
}

func (tm *ToolManager) getCallGraphHandler(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var in getCallGraphInput
	if err := decodeArgs(req.RawArguments, &in); err != nil {
		return nil, err
	}
	entries, err := tm.engine.GetCallGraph(ctx, in.NodeID, in.MaxDepth)
	if err != nil {
		return nil, err
	}
	return jsonResult(entries)
}

func (tm *ToolManager) findImplementationsHandler(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var in findImplementationsInput
	if err := decodeArgs(req.RawArguments, &in); err != nil {
		return nil, err
	}
	nodes, err := tm.engine.FindImplementations(ctx, in.NodeID)
	if err != nil {
		return nil, err
	}
	return jsonResult(nodes)
}

func (tm *ToolManager) getDependencyTreeHandler(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var in getCallGraphInput
	if err := decodeArgs(req.RawArguments, &in); err != nil {
		return nil, err
	}
	entries, err := tm.engine.GetDependencyTree(ctx, in.NodeID, in.MaxDepth)
	if err != nil {
		return nil, err
	}
	return jsonResult(entries)
}

func (tm *ToolManager) analyzeImpactHandler(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var in analyzeImpactInput
	if err := decodeArgs(req.RawArguments, &in); err != nil {
		return nil, err
	}
	report, err := tm.engine.AnalyzeImpact(ctx, in.NodeID, in.MaxDepth)
	if err != nil {
		return nil, err
	}
	return jsonResult(report)
}

func (tm *ToolManager) summarizeCodeHandler(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var in summarizeCodeInput
	if err := decodeArgs(req.RawArguments, &in); err != nil {
		return nil, err
	}
	n, err := tm.engine.SummarizeCode(ctx, in.NodeID)
	if err != nil {
		return nil, err
	}
	return jsonResult(n)
}

func (tm *ToolManager) getUnsummarizedHandler(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var in getUnsummarizedInput
	if err := decodeArgs(req.RawArguments, &in); err != nil {
		return nil, err
	}
	nodes, err := tm.engine.GetUnsummarized(ctx, in.Limit)
	if err != nil {
		return nil, err
	}
	return jsonResult(nodes)
}

func (tm *ToolManager) batchUpdateSummariesHandler(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var in batchUpdateSummariesInput
	if err := decodeArgs(req.RawArguments, &in); err != nil {
		return nil, err
	}
	n, errs := tm.engine.BatchUpdateSummaries(ctx, in.Updates)
	result := map[string]any{"updated": n}
	if len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		result["errors"] = msgs
	}
	return jsonResult(result)
}

// --- GraphRAG tools ---

type graphragBuildInput struct {
	MemoryIDs   []string `json:"memoryIds,omitempty"`
	ReindexAll  bool     `json:"reindexAll,omitempty"`
	MaxLevel    int      `json:"maxLevel,omitempty"`
}

type graphragSearchInput struct {
	Query string `json:"query"`
	Mode  string `json:"mode,omitempty"`
}

func (tm *ToolManager) registerGraphragTools(reg func(string, string, any, toolHandler) error) error {
	if err := reg("graphragBuild", "Run the GraphRAG build pipeline.", graphragBuildInput{}, tm.graphragBuildHandler); err != nil {
		return err
	}
	if err := reg("graphragSearch", "Search the entity/community graph (local | global | drift).", graphragSearchInput{}, tm.graphragSearchHandler); err != nil {
		return err
	}
	if err := reg("graphragStatus", "Report the entity/community graph's current size.", struct{}{}, tm.graphragStatusHandler); err != nil {
		return err
	}
	return nil
}

func (tm *ToolManager) graphragBuildHandler(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var in graphragBuildInput
	if err := decodeArgs(req.RawArguments, &in); err != nil {
		return nil, err
	}
	stats, err := tm.engine.GraphragBuild(ctx, graphrag.BuildOptions{
		MemoryIDs: in.MemoryIDs, ReindexAll: in.ReindexAll, MaxLevel: in.MaxLevel,
	})
	if err != nil {
		return nil, err
	}
	return jsonResult(stats)
}

func (tm *ToolManager) graphragSearchHandler(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var in graphragSearchInput
	if err := decodeArgs(req.RawArguments, &in); err != nil {
		return nil, err
	}
	result, err := tm.engine.GraphragSearch(ctx, engine.GraphragSearchOptions{
		Mode: engine.SearchMode(in.Mode), Query: in.Query,
	})
	if err != nil {
		return nil, err
	}
	return jsonResult(result)
}

func (tm *ToolManager) graphragStatusHandler(ctx context.Context, _ *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	status, err := tm.engine.GraphragStatus(ctx)
	if err != nil {
		return nil, err
	}
	return jsonResult(status)
}

// --- Memory CRUD + relation tools ---

type createMemoryInput struct {
	Type         string   `json:"type"`
	Title        string   `json:"title"`
	Content      string   `json:"content"`
	Tags         []string `json:"tags,omitempty"`
	RelatedFiles []string `json:"relatedFiles,omitempty"`
	Importance   float64  `json:"importance,omitempty"`
	Pending      bool     `json:"pending,omitempty"`
}

type getMemoryInput struct {
	ID string `json:"id"`
}

type updateMemoryInput struct {
	ID           string    `json:"id"`
	Title        *string   `json:"title,omitempty"`
	Content      *string   `json:"content,omitempty"`
	Tags         *[]string `json:"tags,omitempty"`
	RelatedFiles *[]string `json:"relatedFiles,omitempty"`
	Importance   *float64  `json:"importance,omitempty"`
}

type deleteMemoryInput struct {
	ID string `json:"id"`
}

type listMemoriesInput struct {
	Type   string `json:"type,omitempty"`
	Status string `json:"status,omitempty"`
	Tag    string `json:"tag,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

type linkMemoriesInput struct {
	SourceMemoryID string `json:"sourceMemoryId"`
	TargetMemoryID string `json:"targetMemoryId"`
	RelationType   string `json:"relationType"`
}

type getRelatedInput struct {
	MemoryID string `json:"memoryId"`
}

type findPathInput struct {
	SourceEntityID string `json:"sourceEntityId"`
	TargetEntityID string `json:"targetEntityId"`
	MaxDepth       int    `json:"maxDepth,omitempty"`
}

type deleteRelationInput struct {
	ID string `json:"id"`
}

type queryInput struct {
	Query    string `json:"query"`
	Budget   int    `json:"budget,omitempty"`
	Template string `json:"template,omitempty"`
}

func (tm *ToolManager) registerMemoryTools(reg func(string, string, any, toolHandler) error) error {
	if err := reg("createMemory", "Create a new memory.", createMemoryInput{}, tm.createMemoryHandler); err != nil {
		return err
	}
	if err := reg("getMemory", "Fetch a memory by id.", getMemoryInput{}, tm.getMemoryHandler); err != nil {
		return err
	}
	if err := reg("updateMemory", "Edit an existing memory.", updateMemoryInput{}, tm.updateMemoryHandler); err != nil {
		return err
	}
	if err := reg("deleteMemory", "Delete a memory and its vector/relations.", deleteMemoryInput{}, tm.deleteMemoryHandler); err != nil {
		return err
	}
	if err := reg("listMemories", "List memories matching a filter.", listMemoriesInput{}, tm.listMemoriesHandler); err != nil {
		return err
	}
	if err := reg("link_memories", "Create an explicit memory-memory relation.", linkMemoriesInput{}, tm.linkMemoriesHandler); err != nil {
		return err
	}
	if err := reg("get_related", "List relations touching a memory.", getRelatedInput{}, tm.getRelatedHandler); err != nil {
		return err
	}
	if err := reg("find_path", "Find a path between two entities.", findPathInput{}, tm.findPathHandler); err != nil {
		return err
	}
	if err := reg("delete_relation", "Delete a memory-memory relation.", deleteRelationInput{}, tm.deleteRelationHandler); err != nil {
		return err
	}
	if err := reg("query", "Assemble a token-bounded context for a question.", queryInput{}, tm.queryHandler); err != nil {
		return err
	}
	return nil
}

func (tm *ToolManager) createMemoryHandler(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var in createMemoryInput
	if err := decodeArgs(req.RawArguments, &in); err != nil {
		return nil, err
	}
	mem, err := tm.engine.CreateMemory(ctx, storage.CreateMemoryInput{
		Type: in.Type, Title: in.Title, Content: in.Content, Tags: in.Tags,
		RelatedFiles: in.RelatedFiles, Importance: in.Importance, Pending: in.Pending,
	})
	if err != nil {
		return nil, err
	}
	return jsonResult(mem)
}

func (tm *ToolManager) getMemoryHandler(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var in getMemoryInput
	if err := decodeArgs(req.RawArguments, &in); err != nil {
		return nil, err
	}
	mem, err := tm.engine.GetMemory(ctx, in.ID)
	if err != nil {
		return nil, err
	}
	return jsonResult(mem)
}

func (tm *ToolManager) updateMemoryHandler(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var in updateMemoryInput
	if err := decodeArgs(req.RawArguments, &in); err != nil {
		return nil, err
	}
	mem, err := tm.engine.UpdateMemory(ctx, in.ID, storage.UpdateMemoryInput{
		Title: in.Title, Content: in.Content, Tags: in.Tags,
		RelatedFiles: in.RelatedFiles, Importance: in.Importance,
	})
	if err != nil {
		return nil, err
	}
	return jsonResult(mem)
}

func (tm *ToolManager) deleteMemoryHandler(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var in deleteMemoryInput
	if err := decodeArgs(req.RawArguments, &in); err != nil {
		return nil, err
	}
	if err := tm.engine.DeleteMemory(ctx, in.ID); err != nil {
		return nil, err
	}
	return textResult(fmt.Sprintf("deleted memory %s", in.ID)), nil
}

func (tm *ToolManager) listMemoriesHandler(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var in listMemoriesInput
	if err := decodeArgs(req.RawArguments, &in); err != nil {
		return nil, err
	}
	mems, err := tm.engine.ListMemories(ctx, storage.ListMemoriesFilter{
		Type: in.Type, Status: in.Status, Tag: in.Tag, Limit: in.Limit,
	})
	if err != nil {
		return nil, err
	}
	return jsonResult(mems)
}

func (tm *ToolManager) linkMemoriesHandler(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var in linkMemoriesInput
	if err := decodeArgs(req.RawArguments, &in); err != nil {
		return nil, err
	}
	rel, err := tm.engine.LinkMemories(ctx, in.SourceMemoryID, in.TargetMemoryID, in.RelationType)
	if err != nil {
		return nil, err
	}
	return jsonResult(rel)
}

func (tm *ToolManager) getRelatedHandler(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var in getRelatedInput
	if err := decodeArgs(req.RawArguments, &in); err != nil {
		return nil, err
	}
	rels, err := tm.engine.GetRelated(ctx, in.MemoryID)
	if err != nil {
		return nil, err
	}
	return jsonResult(rels)
}

func (tm *ToolManager) findPathHandler(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var in findPathInput
	if err := decodeArgs(req.RawArguments, &in); err != nil {
		return nil, err
	}
	result, err := tm.engine.FindPath(ctx, in.SourceEntityID, in.TargetEntityID, retriever.PathSearchOptions{MaxDepth: in.MaxDepth})
	if err != nil {
		return nil, err
	}
	return jsonResult(result)
}

func (tm *ToolManager) deleteRelationHandler(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var in deleteRelationInput
	if err := decodeArgs(req.RawArguments, &in); err != nil {
		return nil, err
	}
	if err := tm.engine.DeleteRelation(ctx, in.ID); err != nil {
		return nil, err
	}
	return textResult(fmt.Sprintf("deleted relation %s", in.ID)), nil
}

func (tm *ToolManager) queryHandler(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var in queryInput
	if err := decodeArgs(req.RawArguments, &in); err != nil {
		return nil, err
	}
	result, err := tm.engine.Query(ctx, assembler.AssembleOptions{
		Query: in.Query, Budget: in.Budget, Template: assembler.Template(in.Template),
	})
	if err != nil {
		return nil, err
	}
	return jsonResult(result)
}

// --- Pending / suggested workflow tools ---

type idInput struct {
	ID string `json:"id"`
}

type idsInput struct {
	IDs []string `json:"ids"`
}

type setStorageModeInput struct {
	Mode string `json:"mode"`
}

func (tm *ToolManager) registerPendingTools(reg func(string, string, any, toolHandler) error) error {
	if err := reg("list_pending", "List memories awaiting approval.", struct{}{}, tm.listPendingHandler); err != nil {
		return err
	}
	if err := reg("approve_pending", "Approve a single relation proposal.", idInput{}, tm.approvePendingHandler); err != nil {
		return err
	}
	if err := reg("reject_pending", "Reject a single relation proposal.", idInput{}, tm.rejectPendingHandler); err != nil {
		return err
	}
	if err := reg("bulk_approve_pending", "Approve many relation proposals at once.", idsInput{}, tm.bulkApprovePendingHandler); err != nil {
		return err
	}
	if err := reg("bulk_reject_pending", "Reject many relation proposals at once.", idsInput{}, tm.bulkRejectPendingHandler); err != nil {
		return err
	}
	if err := reg("review_queue", "List every pending relation proposal.", struct{}{}, tm.reviewQueueHandler); err != nil {
		return err
	}
	if err := reg("confirm_memory", "Approve a pending memory.", idInput{}, tm.confirmMemoryHandler); err != nil {
		return err
	}
	if err := reg("get_storage_mode", "Report the current relation storage mode.", struct{}{}, tm.getStorageModeHandler); err != nil {
		return err
	}
	if err := reg("set_storage_mode", "Change the relation storage mode.", setStorageModeInput{}, tm.setStorageModeHandler); err != nil {
		return err
	}
	return nil
}

func (tm *ToolManager) listPendingHandler(ctx context.Context, _ *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	mems, err := tm.engine.ListPendingMemories(ctx)
	if err != nil {
		return nil, err
	}
	return jsonResult(mems)
}

func (tm *ToolManager) approvePendingHandler(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var in idInput
	if err := decodeArgs(req.RawArguments, &in); err != nil {
		return nil, err
	}
	if err := tm.engine.ApproveMemoryRelation(ctx, in.ID); err != nil {
		return nil, err
	}
	return textResult(fmt.Sprintf("approved proposal %s", in.ID)), nil
}

func (tm *ToolManager) rejectPendingHandler(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var in idInput
	if err := decodeArgs(req.RawArguments, &in); err != nil {
		return nil, err
	}
	if err := tm.engine.RejectMemoryRelation(ctx, in.ID); err != nil {
		return nil, err
	}
	return textResult(fmt.Sprintf("rejected proposal %s", in.ID)), nil
}

func (tm *ToolManager) bulkApprovePendingHandler(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var in idsInput
	if err := decodeArgs(req.RawArguments, &in); err != nil {
		return nil, err
	}
	n, err := tm.engine.BulkApproveMemoryRelations(ctx, in.IDs)
	if err != nil {
		return nil, err
	}
	return textResult(fmt.Sprintf("approved %d proposals", n)), nil
}

func (tm *ToolManager) bulkRejectPendingHandler(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var in idsInput
	if err := decodeArgs(req.RawArguments, &in); err != nil {
		return nil, err
	}
	n, err := tm.engine.BulkRejectMemoryRelations(ctx, in.IDs)
	if err != nil {
		return nil, err
	}
	return textResult(fmt.Sprintf("rejected %d proposals", n)), nil
}

func (tm *ToolManager) reviewQueueHandler(ctx context.Context, _ *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	queue, err := tm.engine.ReviewQueue(ctx)
	if err != nil {
		return nil, err
	}
	return jsonResult(queue)
}

func (tm *ToolManager) confirmMemoryHandler(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var in idInput
	if err := decodeArgs(req.RawArguments, &in); err != nil {
		return nil, err
	}
	mem, err := tm.engine.ConfirmMemory(ctx, in.ID)
	if err != nil {
		return nil, err
	}
	return jsonResult(mem)
}

func (tm *ToolManager) getStorageModeHandler(_ context.Context, _ *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	return textResult(string(tm.engine.StorageMode())), nil
}

func (tm *ToolManager) setStorageModeHandler(_ context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var in setStorageModeInput
	if err := decodeArgs(req.RawArguments, &in); err != nil {
		return nil, err
	}
	tm.engine.SetStorageMode(storage.StorageMode(in.Mode))
	return textResult(fmt.Sprintf("storage mode set to %s", in.Mode)), nil
}
