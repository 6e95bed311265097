// Package api exposes the dining assistant over HTTP and MCP.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/bapsim/agent/internal/agent"
	"github.com/bapsim/agent/internal/llm"
	"github.com/bapsim/agent/internal/retrieval"
)

const maxRequestBodySize = 1 << 20 // 1MB

const systemPrompt = `너는 교내 식당(학식) 정보를 알려주는 도우미야.
메뉴, 가격, 영양정보, 운영시간, 결제 수단 질문에만 답해.
도구 결과에 근거해서만 답하고, 근거가 없으면 모른다고 말해.
개인정보(전화번호, 이메일, 학번, 계좌번호)는 절대 그대로 답변에 포함하지 마.`

// ChatRetriever is the slice of the retrieval service the chat handler uses
// to inject context before the agent loop runs.
type ChatRetriever interface {
	Ready() bool
	Search(ctx context.Context, query string, topK int) ([]retrieval.Hit, error)
}

// AgentRunner runs one bounded agent conversation.
type AgentRunner interface {
	Run(ctx context.Context, history []llm.Message) (agent.Outcome, error)
}

// Pinger reports backend reachability for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ChatDeps wires the chat handler. Retrieval and Campus may be nil; the
// handler then skips context injection and reports them as not ready.
type ChatDeps struct {
	Runner          AgentRunner
	Fallback        agent.Chatter
	Model           string
	Retrieval       ChatRetriever
	Campus          Pinger
	TopK            int
	MaxContextChars int
}

// ChatTurn is one prior exchange replayed by the client.
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	UserID   string     `json:"user_id"`
	Message  string     `json:"message"`
	History  []ChatTurn `json:"history,omitempty"`
	Language string     `json:"language,omitempty"`
}

// ChatMeta is the observability block of a chat response. Tool previews
// carry result keys only, never values.
type ChatMeta struct {
	RagUsed            bool                `json:"rag_used"`
	RagSources         []string            `json:"rag_sources"`
	ToolsUsed          []string            `json:"tools_used"`
	ToolResultsPreview []agent.ToolPreview `json:"tool_results_preview"`
	TotalMillis        int64               `json:"total_ms"`
	LLMMillis          int64               `json:"llm_ms"`
	LLMCalls           int                 `json:"llm_calls"`
}

// ChatResponse is the body of a successful chat reply.
type ChatResponse struct {
	Reply string     `json:"reply"`
	Model string     `json:"model"`
	Usage *llm.Usage `json:"usage,omitempty"`
	Meta  ChatMeta   `json:"meta"`
}

// NewHandler returns the HTTP surface: POST /chat and GET /healthz.
func NewHandler(deps ChatDeps) http.Handler {
	r := chi.NewRouter()
	r.Post("/chat", handleChat(deps))
	r.Get("/healthz", handleHealthz(deps))
	return r
}

func handleChat(deps ChatDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := uuid.NewString()
		w.Header().Set("X-Request-Id", requestID)

		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if strings.TrimSpace(req.Message) == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "message is required")
			return
		}

		var meta ChatMeta
		meta.RagSources = []string{}

		userContent := req.Message
		if deps.Retrieval != nil && deps.Retrieval.Ready() {
			hits, err := deps.Retrieval.Search(r.Context(), req.Message, deps.TopK)
			if err != nil {
				slog.Debug("context search skipped", "error", err)
			} else if len(hits) > 0 {
				userContent = req.Message + "\n\n[참고 자료]\n" +
					retrieval.AssembleContext(hits, deps.MaxContextChars)
				meta.RagUsed = true
				for _, h := range hits {
					meta.RagSources = append(meta.RagSources, h.Source.DocID)
				}
			}
		}

		messages := buildHistory(req, userContent)

		out, err := deps.Runner.Run(r.Context(), messages)
		if err != nil {
			slog.Warn("agent loop failed, falling back to plain completion", "error", err)
			out, err = fallbackAnswer(r.Context(), deps, messages)
			if err != nil {
				httpError(w, http.StatusBadGateway, "api_error", "upstream error: %v", err)
				return
			}
		}

		meta.ToolsUsed = out.ToolsUsed
		if meta.ToolsUsed == nil {
			meta.ToolsUsed = []string{}
		}
		meta.ToolResultsPreview = out.ToolPreviews
		if meta.ToolResultsPreview == nil {
			meta.ToolResultsPreview = []agent.ToolPreview{}
		}
		meta.LLMMillis = out.LLMMillis
		meta.LLMCalls = out.LLMCalls
		meta.TotalMillis = time.Since(start).Milliseconds()

		slog.Info("chat handled",
			"request_id", requestID,
			"user_id", req.UserID,
			"tools", meta.ToolsUsed,
			"llm_calls", meta.LLMCalls,
			"total_ms", meta.TotalMillis,
		)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(ChatResponse{
			Reply: out.Reply,
			Model: deps.Model,
			Usage: out.Usage,
			Meta:  meta,
		})
	}
}

// buildHistory assembles the model message list: system prompt, replayed
// turns with unknown roles dropped, then the current user message.
func buildHistory(req ChatRequest, userContent string) []llm.Message {
	prompt := systemPrompt
	if lang := strings.TrimSpace(req.Language); lang != "" {
		prompt += fmt.Sprintf("\n항상 %s 언어로 답변해. (Always answer in %s.)", lang, lang)
	}

	messages := []llm.Message{{Role: "system", Content: prompt}}
	for _, turn := range req.History {
		if turn.Role != "user" && turn.Role != "assistant" {
			continue
		}
		messages = append(messages, llm.Message{Role: turn.Role, Content: turn.Content})
	}
	return append(messages, llm.Message{Role: "user", Content: userContent})
}

// fallbackAnswer makes one plain completion with tools disabled so a broken
// tool path still yields a best-effort reply.
func fallbackAnswer(ctx context.Context, deps ChatDeps, messages []llm.Message) (agent.Outcome, error) {
	if deps.Fallback == nil {
		return agent.Outcome{}, fmt.Errorf("no fallback client configured")
	}
	start := time.Now()
	resp, err := deps.Fallback.Chat(ctx, llm.ChatRequest{
		Model:    deps.Model,
		Messages: messages,
	})
	if err != nil {
		return agent.Outcome{}, fmt.Errorf("fallback completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return agent.Outcome{}, fmt.Errorf("fallback completion: empty response")
	}
	return agent.Outcome{
		Reply:     resp.Choices[0].Message.Content,
		Usage:     resp.Usage,
		LLMMillis: time.Since(start).Milliseconds(),
		LLMCalls:  1,
	}, nil
}

func handleHealthz(deps ChatDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ragReady := deps.Retrieval != nil && deps.Retrieval.Ready()
		dbReady := deps.Campus != nil && deps.Campus.Ping(r.Context()) == nil

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"status":          "ok",
			"rag_index_ready": ragReady,
			"db_ready":        dbReady,
		})
	}
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
