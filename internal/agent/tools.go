package agent

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/bapsim/agent/internal/llm"
	"github.com/bapsim/agent/internal/redact"
	"github.com/bapsim/agent/internal/retrieval"
	"github.com/bapsim/agent/internal/sqlguard"
)

// Chatter is the model-call slice of the LLM client the agent needs.
type Chatter interface {
	Chat(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error)
}

// CampusDB is the guarded query surface of the campus dining database.
type CampusDB interface {
	Query(ctx context.Context, query string, maxRows int) ([]string, [][]string, error)
	SchemaDDL(ctx context.Context) (string, error)
}

// Retriever is the semantic-search slice of the retrieval service.
type Retriever interface {
	Search(ctx context.Context, query string, topK int) ([]retrieval.Hit, error)
}

// DomainClassifier decides whether a question is in scope.
type DomainClassifier interface {
	InDomain(text string) bool
}

// ToolConfig carries the tunable limits for tool execution.
type ToolConfig struct {
	AllowTables     []string
	MaxLimit        int
	MaxRows         int
	TopK            int
	MaxContextChars int
	SQLModel        string
}

// ToolDeps are the collaborators the default tool set executes against.
// Campus, Retrieval, and LLM may be nil; the affected tools then report
// their not-ready error codes instead of failing the request.
type ToolDeps struct {
	Gate      DomainClassifier
	Campus    CampusDB
	Retrieval Retriever
	LLM       Chatter
	Config    ToolConfig
}

const offtopicMessage = "이 기능은 학식/교내 식당 정보 검색 도우미예요."

var offtopicExamples = []string{
	"오늘 학식 영양정보",
	"후생관 인기메뉴",
	"What's today's cafeteria menu?",
}

// DefaultRegistry builds the production tool set.
func DefaultRegistry(deps ToolDeps) *Registry {
	return NewRegistry(
		offtopicRouterTool(deps),
		sqlAnswerTool(deps),
		ragLookupTool(deps),
		clarifyBuilderTool(),
		safetyRedactorTool(),
	)
}

func offtopicRouterTool(deps ToolDeps) Tool {
	return Tool{
		Name:        "offtopic_router",
		Description: "Check whether the question is about campus dining; off-topic questions end the conversation with a guidance message.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"question": {"type": "string", "description": "The user question to classify"}
			},
			"required": ["question"]
		}`),
		Required: []string{"question"},
		Run: func(ctx context.Context, args map[string]any) ToolResult {
			question := stringArg(args, "question")
			if deps.Gate != nil && deps.Gate.InDomain(question) {
				return ToolResult{Payload: map[string]any{"offtopic": false}}
			}
			return ToolResult{
				Payload: map[string]any{
					"offtopic": true,
					"message":  offtopicMessage,
					"examples": offtopicExamples,
				},
				Terminal: true,
				Message:  offtopicMessage,
			}
		},
	}
}

func sqlAnswerTool(deps ToolDeps) Tool {
	return Tool{
		Name:        "sql_answer",
		Description: "Answer menu/price/nutrition questions by running one guarded read-only SELECT against the campus dining database.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"question": {"type": "string", "description": "The user question to answer from the database"},
				"schema_ddl": {"type": "string", "description": "Schema hint for SQL generation"},
				"known_filters": {"type": "object", "description": "Already-resolved filters such as date or cafeteria"},
				"proposed_sql": {"type": "string", "description": "Candidate SELECT to validate instead of generating one"}
			},
			"required": ["question"]
		}`),
		Required: []string{"question"},
		Run: func(ctx context.Context, args map[string]any) ToolResult {
			if deps.Campus == nil {
				return Errf(CodeStoreNotReady, "", "campus database is not configured")
			}

			candidate := strings.TrimSpace(stringArg(args, "proposed_sql"))
			if candidate == "" {
				schemaDDL := stringArg(args, "schema_ddl")
				if schemaDDL == "" {
					if ddl, err := deps.Campus.SchemaDDL(ctx); err == nil {
						schemaDDL = ddl
					}
				}
				generated, err := generateSQL(ctx, deps.LLM, deps.Config.SQLModel, stringArg(args, "question"), schemaDDL)
				if err != nil {
					return Errf(CodeGenerationError, "", truncateDetail(err.Error()))
				}
				candidate = generated
			}

			decision := sqlguard.Validate(candidate, deps.Config.AllowTables, deps.Config.MaxLimit)
			if !decision.Allowed {
				return Errf(CodeQueryBlocked, string(decision.Reason), "")
			}

			cols, rows, err := deps.Campus.Query(ctx, decision.Statement, deps.Config.MaxRows)
			if err != nil {
				return Errf(CodeQueryExecError, "", truncateDetail(err.Error()))
			}

			return ToolResult{Payload: map[string]any{
				"safe_sql": decision.Statement,
				"cols":     cols,
				"rows":     rows,
			}}
		},
	}
}

func ragLookupTool(deps ToolDeps) Tool {
	return Tool{
		Name:        "rag_lookup",
		Description: "Semantic search over indexed dining documents (policies, notices, nutrition guides); returns assembled context and sources.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"query": {"type": "string", "description": "Search query"},
				"filters": {"type": "object", "description": "Optional metadata filters"},
				"top_k": {"type": "integer", "description": "Number of passages to retrieve"}
			},
			"required": ["query"]
		}`),
		Required: []string{"query"},
		Run: func(ctx context.Context, args map[string]any) ToolResult {
			if deps.Retrieval == nil {
				return Errf(CodeRetrievalNotReady, "", "vector index is not loaded")
			}

			topK := intArg(args, "top_k", deps.Config.TopK)
			hits, err := deps.Retrieval.Search(ctx, stringArg(args, "query"), topK)
			if err != nil {
				if errors.Is(err, retrieval.ErrNotReady) {
					return Errf(CodeRetrievalNotReady, "", "vector index is not loaded")
				}
				return Errf(CodeToolError, "", truncateDetail(err.Error()))
			}

			sources := make([]map[string]any, len(hits))
			for i, h := range hits {
				sources[i] = map[string]any{
					"doc_id":      h.Source.DocID,
					"title":       h.Source.Title,
					"chunk_index": h.Source.ChunkIndex,
					"score":       h.Score,
				}
			}

			return ToolResult{Payload: map[string]any{
				"context": retrieval.AssembleContext(hits, deps.Config.MaxContextChars),
				"sources": sources,
			}}
		},
	}
}

// clarify slot keywords, checked against the normalized lowercase question.
var (
	dateHints   = []string{"오늘", "내일", "202", "월", "일", "today", "tomorrow"}
	placeHints  = []string{"학생식당", "교내식당", "후생관", "푸드코트", "학식", "cafeteria", "food court"}
	campusHints = []string{"캠퍼스", "학교", "서강대", "연세대", "동국대", "서울대", "campus"}
)

func clarifyBuilderTool() Tool {
	return Tool{
		Name:        "clarify_builder",
		Description: "Check whether the question has enough detail (date, place, campus); if not, ask one short clarifying question and stop.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"question": {"type": "string", "description": "The user question"},
				"known_slots": {"type": "object", "description": "Slots already resolved upstream (date, place, campus)"}
			},
			"required": ["question"]
		}`),
		Required: []string{"question"},
		Run: func(ctx context.Context, args map[string]any) ToolResult {
			question := strings.ToLower(stringArg(args, "question"))
			known, _ := args["known_slots"].(map[string]any)

			var missing []string
			if !slotFilled(known, "date") && !containsAny(question, dateHints) {
				missing = append(missing, "날짜")
			}
			if !slotFilled(known, "place") && !containsAny(question, placeHints) {
				missing = append(missing, "식당/매장")
			}
			if !slotFilled(known, "campus") && !containsAny(question, campusHints) {
				missing = append(missing, "캠퍼스/학교")
			}

			if len(missing) == 0 {
				return ToolResult{Payload: map[string]any{
					"need_clarify":   false,
					"short_question": "",
				}}
			}

			joined := strings.Join(missing, "·")
			shortQuestion := "정확히 안내하려면 " + joined + "가 필요해요. 어떤 " + joined + "인가요?"
			return ToolResult{
				Payload: map[string]any{
					"need_clarify":   true,
					"short_question": shortQuestion,
				},
				Terminal: true,
				Message:  shortQuestion,
			}
		},
	}
}

func safetyRedactorTool() Tool {
	return Tool{
		Name:        "safety_redactor",
		Description: "Mask or reject text containing PII (phone numbers, emails, student ids, account numbers).",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"text": {"type": "string", "description": "Text to scrub"},
				"policy": {"type": "string", "enum": ["mask", "reject"], "description": "mask returns redacted text; reject discards it entirely on any hit"}
			},
			"required": ["text"]
		}`),
		Required: []string{"text"},
		Run: func(ctx context.Context, args map[string]any) ToolResult {
			res := redact.Redact(stringArg(args, "text"))
			policy := redact.Policy(stringArg(args, "policy"))
			if policy == redact.PolicyReject && res.Hit {
				return ToolResult{Payload: map[string]any{
					"rejected": true,
					"found":    res.Kinds,
				}}
			}
			return ToolResult{Payload: map[string]any{
				"rejected":      false,
				"text_redacted": res.Text,
				"pii_detected":  res.Hit,
				"found":         res.Kinds,
			}}
		},
	}
}

func slotFilled(known map[string]any, key string) bool {
	if known == nil {
		return false
	}
	v, ok := known[key]
	if !ok || v == nil {
		return false
	}
	if s, isStr := v.(string); isStr {
		return strings.TrimSpace(s) != ""
	}
	return true
}

func containsAny(s string, hints []string) bool {
	for _, h := range hints {
		if strings.Contains(s, h) {
			return true
		}
	}
	return false
}

func truncateDetail(s string) string {
	if len(s) <= 200 {
		return s
	}
	return s[:200]
}
