// Package agent drives the tool-mediated conversation loop: it calls the
// model with the running message history and the registry's tool contracts,
// dispatches requested tools in order, and decides when to stop.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bapsim/agent/internal/llm"
)

const (
	defaultMaxSteps    = 3
	defaultTemperature = 0.2
	defaultMaxTokens   = 800
	previewKeyLimit    = 8
)

// Loop runs the bounded agent conversation. One Loop value is shared across
// requests; it holds no per-request state.
type Loop struct {
	client   Chatter
	model    string
	registry *Registry
	maxSteps int
}

// NewLoop creates a Loop. maxSteps bounds in-loop model calls; the forced
// final call can add one more, so total model calls per run is at most
// maxSteps+1.
func NewLoop(client Chatter, model string, registry *Registry, maxSteps int) *Loop {
	if maxSteps <= 0 {
		maxSteps = defaultMaxSteps
	}
	return &Loop{
		client:   client,
		model:    model,
		registry: registry,
		maxSteps: maxSteps,
	}
}

// ToolPreview records which tool ran and the keys of its result, for
// observability metadata. Result values never appear here.
type ToolPreview struct {
	Name string   `json:"name"`
	Keys []string `json:"keys"`
}

// Outcome is the terminal result of one loop run.
type Outcome struct {
	Reply        string
	Usage        *llm.Usage
	ToolsUsed    []string
	ToolPreviews []ToolPreview
	LLMMillis    int64
	LLMCalls     int
}

// Run executes the loop over the given starting history. It returns an error
// only when the model endpoint itself fails; tool failures are folded back
// into the conversation as structured results.
func (l *Loop) Run(ctx context.Context, history []llm.Message) (Outcome, error) {
	messages := make([]llm.Message, len(history))
	copy(messages, history)

	var out Outcome
	temp := defaultTemperature

	for step := 0; step < l.maxSteps; step++ {
		resp, err := l.call(ctx, &out, llm.ChatRequest{
			Model:       l.model,
			Messages:    messages,
			Tools:       l.registry.Specs(),
			ToolChoice:  "auto",
			Temperature: &temp,
			MaxTokens:   defaultMaxTokens,
		})
		if err != nil {
			return out, fmt.Errorf("model call (step %d): %w", step+1, err)
		}

		msg := resp.Choices[0].Message
		out.Usage = resp.Usage

		if len(msg.ToolCalls) == 0 {
			out.Reply = msg.Content
			return out, nil
		}

		messages = append(messages, msg)

		// Dispatch sequentially: each result must be visible in the history
		// before the next model call. A failing tool is isolated as an error
		// result and the remaining calls in this step still run.
		for _, call := range msg.ToolCalls {
			result := l.registry.Dispatch(ctx, call.Function.Name, call.Function.Arguments)
			out.ToolsUsed = append(out.ToolsUsed, call.Function.Name)
			out.ToolPreviews = append(out.ToolPreviews, ToolPreview{
				Name: call.Function.Name,
				Keys: result.Keys(previewKeyLimit),
			})

			if result.Terminal {
				slog.Debug("terminal tool result", "tool", call.Function.Name)
				out.Reply = result.Message
				return out, nil
			}

			messages = append(messages, llm.Message{
				Role:       "tool",
				ToolCallID: call.ID,
				Name:       call.Function.Name,
				Content:    result.Content(),
			})
		}
	}

	// Step budget exhausted: one last call with tool use disabled. Whatever
	// text comes back is the answer, even if empty.
	resp, err := l.call(ctx, &out, llm.ChatRequest{
		Model:       l.model,
		Messages:    messages,
		Temperature: &temp,
		MaxTokens:   defaultMaxTokens,
	})
	if err != nil {
		return out, fmt.Errorf("forced final call: %w", err)
	}

	out.Reply = resp.Choices[0].Message.Content
	out.Usage = resp.Usage
	return out, nil
}

func (l *Loop) call(ctx context.Context, out *Outcome, req llm.ChatRequest) (llm.ChatResponse, error) {
	start := time.Now()
	resp, err := l.client.Chat(ctx, req)
	out.LLMMillis += time.Since(start).Milliseconds()
	out.LLMCalls++
	return resp, err
}
