package agent

import (
	"encoding/json"
	"sort"
)

// Error codes a tool can report back into the conversation.
const (
	CodeStoreNotReady     = "STORE_NOT_READY"
	CodeGenerationError   = "GENERATION_ERROR"
	CodeQueryBlocked      = "QUERY_BLOCKED"
	CodeQueryExecError    = "QUERY_EXEC_ERROR"
	CodeRetrievalNotReady = "RETRIEVAL_NOT_READY"
	CodeToolError         = "TOOL_ERROR"
)

// ToolError is a tagged failure reason carried inside a ToolResult.
type ToolError struct {
	Code   string `json:"error"`
	Reason string `json:"reason,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// ToolResult is the outcome of one tool dispatch. Exactly one of Payload and
// Err is authoritative. A Terminal result ends the agent loop immediately
// with Message as the final answer, skipping further model calls.
type ToolResult struct {
	Payload  map[string]any
	Err      *ToolError
	Terminal bool
	Message  string
}

// Errf builds an error result with the given code.
func Errf(code, reason, detail string) ToolResult {
	return ToolResult{Err: &ToolError{Code: code, Reason: reason, Detail: detail}}
}

// Content renders the result as the JSON string appended to the message
// history for the model's next step.
func (r ToolResult) Content() string {
	var v any
	if r.Err != nil {
		v = r.Err
	} else {
		v = r.Payload
	}
	b, err := json.Marshal(v)
	if err != nil {
		return `{"error":"TOOL_ERROR","detail":"unencodable result"}`
	}
	return string(b)
}

// Keys returns up to max payload keys (or the error code) for observability
// previews. Values are never included.
func (r ToolResult) Keys(max int) []string {
	if r.Err != nil {
		return []string{"error"}
	}
	keys := make([]string, 0, len(r.Payload))
	for k := range r.Payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) > max {
		keys = keys[:max]
	}
	return keys
}
