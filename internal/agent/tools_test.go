package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/bapsim/agent/internal/llm"
	"github.com/bapsim/agent/internal/retrieval"
)

type fakeGate struct{ in bool }

func (f fakeGate) InDomain(string) bool { return f.in }

type fakeCampus struct {
	lastQuery string
	cols      []string
	rows      [][]string
	queryErr  error
	ddl       string
}

func (f *fakeCampus) Query(ctx context.Context, query string, maxRows int) ([]string, [][]string, error) {
	f.lastQuery = query
	return f.cols, f.rows, f.queryErr
}

func (f *fakeCampus) SchemaDDL(ctx context.Context) (string, error) {
	return f.ddl, nil
}

type fakeRetriever struct {
	hits []retrieval.Hit
	err  error
}

func (f *fakeRetriever) Search(ctx context.Context, query string, topK int) ([]retrieval.Hit, error) {
	if f.err != nil {
		return nil, f.err
	}
	if topK < len(f.hits) {
		return f.hits[:topK], nil
	}
	return f.hits, nil
}

// scriptedChatter returns canned responses in order.
type scriptedChatter struct {
	responses []llm.ChatResponse
	requests  []llm.ChatRequest
	err       error
}

func (s *scriptedChatter) Chat(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
	s.requests = append(s.requests, req)
	if s.err != nil {
		return llm.ChatResponse{}, s.err
	}
	if len(s.responses) == 0 {
		return llm.ChatResponse{}, fmt.Errorf("no scripted response left")
	}
	resp := s.responses[0]
	s.responses = s.responses[1:]
	return resp, nil
}

func textResponse(content string) llm.ChatResponse {
	return llm.ChatResponse{Choices: []llm.Choice{{Message: llm.Message{Role: "assistant", Content: content}}}}
}

func toolConfig() ToolConfig {
	return ToolConfig{
		AllowTables:     []string{"food", "menus"},
		MaxLimit:        200,
		MaxRows:         200,
		TopK:            4,
		MaxContextChars: 2000,
		SQLModel:        "sql-model",
	}
}

func TestOfftopicRouter(t *testing.T) {
	reg := DefaultRegistry(ToolDeps{Gate: fakeGate{in: true}, Config: toolConfig()})
	res := reg.Dispatch(context.Background(), "offtopic_router", `{"question":"오늘 학식 메뉴"}`)
	if res.Terminal {
		t.Fatal("in-domain question must not be terminal")
	}
	if res.Payload["offtopic"] != false {
		t.Errorf("payload = %v", res.Payload)
	}

	reg = DefaultRegistry(ToolDeps{Gate: fakeGate{in: false}, Config: toolConfig()})
	res = reg.Dispatch(context.Background(), "offtopic_router", `{"question":"weather in paris"}`)
	if !res.Terminal {
		t.Fatal("off-topic question must be terminal")
	}
	if res.Message == "" {
		t.Error("terminal result must carry the final message")
	}
	if res.Payload["offtopic"] != true {
		t.Errorf("payload = %v", res.Payload)
	}
}

func TestSqlAnswer_ProposedSQLGuardedAndExecuted(t *testing.T) {
	campus := &fakeCampus{cols: []string{"name", "price"}, rows: [][]string{{"비빔밥", "5500"}}}
	reg := DefaultRegistry(ToolDeps{Campus: campus, Config: toolConfig()})

	res := reg.Dispatch(context.Background(), "sql_answer",
		`{"question":"김밥 얼마야","proposed_sql":"SELECT name, price FROM food"}`)
	if res.Err != nil {
		t.Fatalf("err = %+v", res.Err)
	}
	safeSQL := res.Payload["safe_sql"].(string)
	if !strings.HasSuffix(safeSQL, "LIMIT 200;") {
		t.Errorf("safe_sql = %q, want default limit appended", safeSQL)
	}
	if campus.lastQuery != safeSQL {
		t.Errorf("executed %q, want %q", campus.lastQuery, safeSQL)
	}
}

func TestSqlAnswer_BlockedQuery(t *testing.T) {
	campus := &fakeCampus{}
	reg := DefaultRegistry(ToolDeps{Campus: campus, Config: toolConfig()})

	res := reg.Dispatch(context.Background(), "sql_answer",
		`{"question":"x","proposed_sql":"SELECT * FROM food; DROP TABLE food"}`)
	if res.Err == nil || res.Err.Code != CodeQueryBlocked {
		t.Fatalf("res = %+v, want QUERY_BLOCKED", res)
	}
	if res.Err.Reason != "BAD_KEYWORD" {
		t.Errorf("reason = %q", res.Err.Reason)
	}
	if campus.lastQuery != "" {
		t.Errorf("blocked query reached the store: %q", campus.lastQuery)
	}
}

func TestSqlAnswer_DenyTable(t *testing.T) {
	reg := DefaultRegistry(ToolDeps{Campus: &fakeCampus{}, Config: toolConfig()})
	res := reg.Dispatch(context.Background(), "sql_answer",
		`{"question":"x","proposed_sql":"SELECT * FROM payment"}`)
	if res.Err == nil || res.Err.Reason != "DENY_TABLE" {
		t.Fatalf("res = %+v, want DENY_TABLE", res)
	}
}

func TestSqlAnswer_StoreNotReady(t *testing.T) {
	reg := DefaultRegistry(ToolDeps{Config: toolConfig()})
	res := reg.Dispatch(context.Background(), "sql_answer", `{"question":"x"}`)
	if res.Err == nil || res.Err.Code != CodeStoreNotReady {
		t.Fatalf("res = %+v, want STORE_NOT_READY", res)
	}
}

func TestSqlAnswer_GeneratesWhenNoProposal(t *testing.T) {
	campus := &fakeCampus{ddl: "CREATE TABLE food (name TEXT, price INTEGER);", cols: []string{"name"}}
	gen := &scriptedChatter{responses: []llm.ChatResponse{textResponse("SELECT name FROM food")}}
	reg := DefaultRegistry(ToolDeps{Campus: campus, LLM: gen, Config: toolConfig()})

	res := reg.Dispatch(context.Background(), "sql_answer", `{"question":"메뉴 이름 알려줘"}`)
	if res.Err != nil {
		t.Fatalf("err = %+v", res.Err)
	}
	if len(gen.requests) != 1 {
		t.Fatalf("generator called %d times", len(gen.requests))
	}
	if !strings.Contains(gen.requests[0].Messages[1].Content, campus.ddl) {
		t.Error("schema DDL not included in generation prompt")
	}
	if got := res.Payload["safe_sql"].(string); got != "SELECT name FROM food LIMIT 200;" {
		t.Errorf("safe_sql = %q", got)
	}
}

func TestSqlAnswer_GenerationError(t *testing.T) {
	gen := &scriptedChatter{err: errors.New("model down")}
	reg := DefaultRegistry(ToolDeps{Campus: &fakeCampus{}, LLM: gen, Config: toolConfig()})

	res := reg.Dispatch(context.Background(), "sql_answer", `{"question":"x"}`)
	if res.Err == nil || res.Err.Code != CodeGenerationError {
		t.Fatalf("res = %+v, want GENERATION_ERROR", res)
	}
}

func TestSqlAnswer_ExecError(t *testing.T) {
	campus := &fakeCampus{queryErr: errors.New("no such table: foods")}
	reg := DefaultRegistry(ToolDeps{Campus: campus, Config: toolConfig()})

	res := reg.Dispatch(context.Background(), "sql_answer",
		`{"question":"x","proposed_sql":"SELECT * FROM food"}`)
	if res.Err == nil || res.Err.Code != CodeQueryExecError {
		t.Fatalf("res = %+v, want QUERY_EXEC_ERROR", res)
	}
}

func TestRagLookup(t *testing.T) {
	ret := &fakeRetriever{hits: []retrieval.Hit{
		{Text: "후생관은 11시에 엽니다", Score: 0.9, Source: retrieval.Source{DocID: "policy", Title: "운영안내", ChunkIndex: 0}},
	}}
	reg := DefaultRegistry(ToolDeps{Retrieval: ret, Config: toolConfig()})

	res := reg.Dispatch(context.Background(), "rag_lookup", `{"query":"후생관 운영시간","top_k":3}`)
	if res.Err != nil {
		t.Fatalf("err = %+v", res.Err)
	}
	if !strings.Contains(res.Payload["context"].(string), "후생관은 11시에 엽니다") {
		t.Errorf("context = %v", res.Payload["context"])
	}
	sources := res.Payload["sources"].([]map[string]any)
	if len(sources) != 1 || sources[0]["doc_id"] != "policy" {
		t.Errorf("sources = %v", sources)
	}
}

func TestRagLookup_NotReady(t *testing.T) {
	reg := DefaultRegistry(ToolDeps{Retrieval: &fakeRetriever{err: retrieval.ErrNotReady}, Config: toolConfig()})
	res := reg.Dispatch(context.Background(), "rag_lookup", `{"query":"x"}`)
	if res.Err == nil || res.Err.Code != CodeRetrievalNotReady {
		t.Fatalf("res = %+v, want RETRIEVAL_NOT_READY", res)
	}

	reg = DefaultRegistry(ToolDeps{Config: toolConfig()})
	res = reg.Dispatch(context.Background(), "rag_lookup", `{"query":"x"}`)
	if res.Err == nil || res.Err.Code != CodeRetrievalNotReady {
		t.Fatalf("res = %+v, want RETRIEVAL_NOT_READY for nil retriever", res)
	}
}

func TestClarifyBuilder(t *testing.T) {
	reg := DefaultRegistry(ToolDeps{Config: toolConfig()})

	// Fully specified question: date + place + campus all present.
	res := reg.Dispatch(context.Background(), "clarify_builder",
		`{"question":"내일 후생관 캠퍼스 메뉴 알려줘"}`)
	if res.Terminal {
		t.Fatalf("complete question flagged for clarification: %+v", res)
	}
	if res.Payload["need_clarify"] != false {
		t.Errorf("payload = %v", res.Payload)
	}

	// Missing everything.
	res = reg.Dispatch(context.Background(), "clarify_builder", `{"question":"메뉴 가격 알려줘"}`)
	if !res.Terminal {
		t.Fatal("under-specified question must be terminal")
	}
	sq := res.Payload["short_question"].(string)
	if !strings.Contains(sq, "날짜") {
		t.Errorf("short_question = %q", sq)
	}
	if res.Message != sq {
		t.Errorf("Message %q != short_question %q", res.Message, sq)
	}

	// known_slots fill the gaps.
	res = reg.Dispatch(context.Background(), "clarify_builder",
		`{"question":"메뉴 가격 알려줘","known_slots":{"date":"2025-09-01","place":"후생관","campus":"서울"}}`)
	if res.Terminal {
		t.Fatalf("known_slots ignored: %+v", res)
	}
}

func TestSafetyRedactor(t *testing.T) {
	reg := DefaultRegistry(ToolDeps{Config: toolConfig()})

	res := reg.Dispatch(context.Background(), "safety_redactor",
		`{"text":"연락처는 010-1234-5678 입니다","policy":"mask"}`)
	if res.Err != nil {
		t.Fatalf("err = %+v", res.Err)
	}
	if res.Payload["rejected"] != false || res.Payload["pii_detected"] != true {
		t.Errorf("payload = %v", res.Payload)
	}
	if !strings.Contains(res.Payload["text_redacted"].(string), "010-****-5678") {
		t.Errorf("text_redacted = %v", res.Payload["text_redacted"])
	}

	res = reg.Dispatch(context.Background(), "safety_redactor",
		`{"text":"연락처는 010-1234-5678 입니다","policy":"reject"}`)
	if res.Payload["rejected"] != true {
		t.Errorf("payload = %v", res.Payload)
	}
	if _, leaked := res.Payload["text_redacted"]; leaked {
		t.Error("reject policy must not return text")
	}
}
