package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/bapsim/agent/internal/llm"
)

// Tool is one registered capability: its declarative contract plus the
// executor. Required lists argument names validated at the dispatch
// boundary, before the executor runs.
type Tool struct {
	Name        string
	Description string
	Parameters  json.RawMessage
	Required    []string
	Run         func(ctx context.Context, args map[string]any) ToolResult
}

// Registry maps a closed set of tool names to handlers and exposes their
// contracts for the model. It is built once at startup and read-only after.
type Registry struct {
	tools map[string]Tool
	order []string
}

// NewRegistry creates a Registry from the given tools, preserving order for
// the advertised contract list.
func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		if _, dup := r.tools[t.Name]; dup {
			panic(fmt.Sprintf("duplicate tool %q", t.Name))
		}
		r.tools[t.Name] = t
		r.order = append(r.order, t.Name)
	}
	return r
}

// Specs returns the declarative tool contracts advertised to the model.
func (r *Registry) Specs() []llm.ToolSpec {
	specs := make([]llm.ToolSpec, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		specs = append(specs, llm.ToolSpec{
			Type: "function",
			Function: llm.FunctionSpec{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return specs
}

// Dispatch runs the named tool with raw JSON arguments. Every failure mode
// (unknown name, malformed arguments, missing required argument, executor
// error or panic) is converted into a structured error result; nothing
// propagates past this boundary.
func (r *Registry) Dispatch(ctx context.Context, name, rawArgs string) (result ToolResult) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("tool panicked", "tool", name, "panic", rec)
			result = Errf(CodeToolError, "", fmt.Sprintf("tool %s panicked", name))
		}
	}()

	tool, ok := r.tools[name]
	if !ok {
		return Errf(CodeToolError, "", fmt.Sprintf("unknown tool %q", name))
	}

	args := map[string]any{}
	if rawArgs != "" {
		if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
			return Errf(CodeToolError, "", fmt.Sprintf("invalid arguments for %s: %v", name, err))
		}
	}

	for _, req := range tool.Required {
		if _, present := args[req]; !present {
			return Errf(CodeToolError, "", fmt.Sprintf("missing required argument %q for %s", req, name))
		}
	}

	return tool.Run(ctx, args)
}

// stringArg extracts a string argument, tolerating absence.
func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

// intArg extracts an integer argument (JSON numbers decode as float64),
// falling back to def when absent or non-numeric.
func intArg(args map[string]any, key string, def int) int {
	if f, ok := args[key].(float64); ok {
		return int(f)
	}
	return def
}
