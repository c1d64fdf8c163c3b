// Package mcp exposes workflow instances as MCP tools over stdio, so a
// coding agent can drive its own workflow: read the active node's
// instructions, do the work, report the output, repeat.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/waymark-dev/waymark/internal/engine"
	"github.com/waymark-dev/waymark/internal/format"
	"github.com/waymark-dev/waymark/internal/instance"
)

// getArgs extracts arguments from request as map[string]any
func getArgs(request mcp.CallToolRequest) map[string]any {
	if args, ok := request.Params.Arguments.(map[string]any); ok {
		return args
	}
	return make(map[string]any)
}

// Server wraps an MCP server around one workspace's instance manager.
type Server struct {
	mcpServer *server.MCPServer
	manager   *instance.Manager
}

// NewServer builds the MCP server and registers the workflow tools.
func NewServer(manager *instance.Manager) *Server {
	s := &Server{manager: manager}

	mcpServer := server.NewMCPServer(
		"waymark",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	s.registerTools(mcpServer)

	s.mcpServer = mcpServer
	return s
}

// Run serves MCP over stdio until the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	return server.ServeStdio(s.mcpServer)
}

func (s *Server) registerTools(mcpServer *server.MCPServer) {
	startTool := mcp.NewTool("workflow_start",
		mcp.WithDescription("Start a new workflow instance from a template file and return its first step"),
		mcp.WithString("template_path",
			mcp.Required(),
			mcp.Description("Path to the workflow template YAML"),
		),
	)
	mcpServer.AddTool(startTool, s.handleStart)

	statusTool := mcp.NewTool("workflow_status",
		mcp.WithDescription("Get the current position and instructions of a workflow instance"),
		mcp.WithString("instance_id",
			mcp.Required(),
			mcp.Description("Instance UUID returned by workflow_start"),
		),
	)
	mcpServer.AddTool(statusTool, s.handleStatus)

	advanceTool := mcp.NewTool("workflow_advance",
		mcp.WithDescription("Report the output of the active node and move the workflow to the next position"),
		mcp.WithString("instance_id",
			mcp.Required(),
			mcp.Description("Instance UUID"),
		),
		mcp.WithString("output",
			mcp.Required(),
			mcp.Description("Result of the work performed for the active node"),
		),
	)
	mcpServer.AddTool(advanceTool, s.handleAdvance)

	setTasksTool := mcp.NewTool("workflow_set_tasks",
		mcp.WithDescription("Assign the task list a loop step iterates over. An empty list skips the loop."),
		mcp.WithString("instance_id",
			mcp.Required(),
			mcp.Description("Instance UUID"),
		),
		mcp.WithString("loop_id",
			mcp.Required(),
			mcp.Description("Loop id the tasks belong to"),
		),
		mcp.WithString("tasks_json",
			mcp.Required(),
			mcp.Description(`JSON array of tasks, e.g. [{"id":"T1","title":"Fix login"}]`),
		),
	)
	mcpServer.AddTool(setTasksTool, s.handleSetTasks)

	contextTool := mcp.NewTool("workflow_context",
		mcp.WithDescription("Get the outputs recorded so far, keyed per completed node"),
		mcp.WithString("instance_id",
			mcp.Required(),
			mcp.Description("Instance UUID"),
		),
	)
	mcpServer.AddTool(contextTool, s.handleContext)

	artefactsTool := mcp.NewTool("workflow_artefacts",
		mcp.WithDescription("Register produced artefact paths on a workflow instance"),
		mcp.WithString("instance_id",
			mcp.Required(),
			mcp.Description("Instance UUID"),
		),
		mcp.WithString("paths_json",
			mcp.Required(),
			mcp.Description(`JSON array of file paths, e.g. ["dist/build.tgz"]`),
		),
	)
	mcpServer.AddTool(artefactsTool, s.handleArtefacts)

	summaryTool := mcp.NewTool("workflow_summary",
		mcp.WithDescription("Record the closing summary of a workflow instance"),
		mcp.WithString("instance_id",
			mcp.Required(),
			mcp.Description("Instance UUID"),
		),
		mcp.WithString("summary",
			mcp.Required(),
			mcp.Description("Summary text"),
		),
	)
	mcpServer.AddTool(summaryTool, s.handleSummary)
}

func (s *Server) handleStart(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := getArgs(request)

	templatePath, ok := args["template_path"].(string)
	if !ok || templatePath == "" {
		return mcp.NewToolResultError("template_path parameter is required"), nil
	}

	id, snap, err := s.manager.Start(templatePath)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to start workflow: %v", err)), nil
	}

	name, _, _ := s.manager.Status(id)
	return mcp.NewToolResultText(fmt.Sprintf("Instance %s started.\n\n%s", id, format.RenderStatus(name, snap))), nil
}

func (s *Server) handleStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := getArgs(request)

	id, ok := args["instance_id"].(string)
	if !ok || id == "" {
		return mcp.NewToolResultError("instance_id parameter is required"), nil
	}

	name, snap, err := s.manager.Status(id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load instance: %v", err)), nil
	}
	return mcp.NewToolResultText(format.RenderStatus(name, snap)), nil
}

func (s *Server) handleAdvance(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := getArgs(request)

	id, _ := args["instance_id"].(string)
	output, ok := args["output"].(string)
	if id == "" || !ok {
		return mcp.NewToolResultError("instance_id and output parameters are required"), nil
	}

	snap, err := s.manager.Advance(id, output)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to advance: %v", err)), nil
	}
	name, _, _ := s.manager.Status(id)
	return mcp.NewToolResultText(format.RenderStatus(name, snap)), nil
}

func (s *Server) handleSetTasks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := getArgs(request)

	id, _ := args["instance_id"].(string)
	loopID, _ := args["loop_id"].(string)
	tasksJSON, _ := args["tasks_json"].(string)
	if id == "" || loopID == "" || tasksJSON == "" {
		return mcp.NewToolResultError("instance_id, loop_id and tasks_json parameters are required"), nil
	}

	var tasks []engine.Task
	if err := json.Unmarshal([]byte(tasksJSON), &tasks); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("tasks_json is not a valid task array: %v", err)), nil
	}

	snap, err := s.manager.SetTasks(id, loopID, tasks)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to set tasks: %v", err)), nil
	}
	name, _, _ := s.manager.Status(id)
	return mcp.NewToolResultText(format.RenderStatus(name, snap)), nil
}

func (s *Server) handleContext(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := getArgs(request)

	id, ok := args["instance_id"].(string)
	if !ok || id == "" {
		return mcp.NewToolResultError("instance_id parameter is required"), nil
	}

	outputs, err := s.manager.Context(id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load context: %v", err)), nil
	}
	return mcp.NewToolResultText(format.RenderContext(outputs)), nil
}

func (s *Server) handleArtefacts(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := getArgs(request)

	id, _ := args["instance_id"].(string)
	pathsJSON, _ := args["paths_json"].(string)
	if id == "" || pathsJSON == "" {
		return mcp.NewToolResultError("instance_id and paths_json parameters are required"), nil
	}

	var paths []string
	if err := json.Unmarshal([]byte(pathsJSON), &paths); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("paths_json is not a valid path array: %v", err)), nil
	}

	if _, err := s.manager.RegisterArtefacts(id, paths); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to register artefacts: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Registered %d artefact(s)", len(paths))), nil
}

func (s *Server) handleSummary(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := getArgs(request)

	id, _ := args["instance_id"].(string)
	summary, _ := args["summary"].(string)
	if id == "" || summary == "" {
		return mcp.NewToolResultError("instance_id and summary parameters are required"), nil
	}

	if _, err := s.manager.SetSummary(id, summary); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to set summary: %v", err)), nil
	}
	return mcp.NewToolResultText("Summary recorded"), nil
}
