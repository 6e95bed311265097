package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/bapsim/agent/internal/llm"
)

const sqlGenSystemPrompt = "You generate a single SELECT SQL only."

// generateSQL asks the model for one SELECT statement answering the question
// against the given schema. The result still goes through the guard; this
// function makes no safety promises of its own.
func generateSQL(ctx context.Context, client Chatter, model, question, schemaDDL string) (string, error) {
	if client == nil {
		return "", fmt.Errorf("no SQL generator configured")
	}

	prompt := fmt.Sprintf(
		"You are a SQL generator. Based on the schema:\n\n%s\n\nGenerate ONE safe SELECT SQL query (no explanation, no comments).\nUser question: %s",
		schemaDDL, question)

	temp := 0.0
	resp, err := client.Chat(ctx, llm.ChatRequest{
		Model: model,
		Messages: []llm.Message{
			{Role: "system", Content: sqlGenSystemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: &temp,
		MaxTokens:   300,
	})
	if err != nil {
		return "", fmt.Errorf("generating SQL: %w", err)
	}

	sql := strings.TrimSpace(resp.Choices[0].Message.Content)
	// Models love fencing SQL in markdown; unwrap it.
	sql = strings.TrimPrefix(sql, "```sql")
	sql = strings.TrimPrefix(sql, "```")
	sql = strings.TrimSuffix(sql, "```")
	return strings.TrimSpace(sql), nil
}
