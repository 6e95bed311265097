package api

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/bapsim/agent/internal/agent"
)

// NewMCPServer exposes the dining tool set over MCP so external clients can
// drive the same guarded tools the in-process loop uses.
func NewMCPServer(registry *agent.Registry, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"bapsim",
		version,
		server.WithToolCapabilities(true),
		server.WithInstructions("bapsim: campus dining assistant for menus, prices, nutrition, and cafeteria info."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("offtopic_router",
			mcp.WithDescription("Check whether a question is about campus dining; off-topic questions get a guidance message."),
			mcp.WithString("question", mcp.Description("The user question to classify"), mcp.Required()),
		),
		dispatchHandler(registry, "offtopic_router"),
	)

	s.AddTool(
		mcp.NewTool("sql_answer",
			mcp.WithDescription("Answer menu/price/nutrition questions with one guarded read-only SELECT against the dining database."),
			mcp.WithString("question", mcp.Description("The user question to answer from the database"), mcp.Required()),
			mcp.WithString("schema_ddl", mcp.Description("Schema hint for SQL generation")),
			mcp.WithString("proposed_sql", mcp.Description("Candidate SELECT to validate instead of generating one")),
			mcp.WithObject("known_filters", mcp.Description("Already-resolved filters such as date or cafeteria")),
		),
		dispatchHandler(registry, "sql_answer"),
	)

	s.AddTool(
		mcp.NewTool("rag_lookup",
			mcp.WithDescription("Semantic search over indexed dining documents; returns assembled context and sources."),
			mcp.WithString("query", mcp.Description("Search query"), mcp.Required()),
			mcp.WithNumber("top_k", mcp.Description("Number of passages to retrieve")),
			mcp.WithObject("filters", mcp.Description("Optional metadata filters")),
		),
		dispatchHandler(registry, "rag_lookup"),
	)

	s.AddTool(
		mcp.NewTool("clarify_builder",
			mcp.WithDescription("Check whether the question has enough detail (date, place, campus); if not, produce one short clarifying question."),
			mcp.WithString("question", mcp.Description("The user question"), mcp.Required()),
			mcp.WithObject("known_slots", mcp.Description("Slots already resolved upstream (date, place, campus)")),
		),
		dispatchHandler(registry, "clarify_builder"),
	)

	s.AddTool(
		mcp.NewTool("safety_redactor",
			mcp.WithDescription("Mask or reject text containing PII (phone numbers, emails, student ids, account numbers)."),
			mcp.WithString("text", mcp.Description("Text to scrub"), mcp.Required()),
			mcp.WithString("policy", mcp.Description("mask returns redacted text; reject discards it on any hit"),
				mcp.Enum("mask", "reject")),
		),
		dispatchHandler(registry, "safety_redactor"),
	)

	return s
}

// dispatchHandler routes an MCP tool call through the registry, so argument
// validation, panic recovery, and error codes behave identically to the
// in-process loop.
func dispatchHandler(registry *agent.Registry, name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		raw, err := json.Marshal(req.GetArguments())
		if err != nil {
			return mcpError("invalid arguments: " + err.Error()), nil
		}

		res := registry.Dispatch(ctx, name, string(raw))
		if res.Err != nil {
			return mcpError(res.Content()), nil
		}
		return mcpText(res.Content()), nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
