package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bapsim/agent/internal/config"
	"github.com/bapsim/agent/internal/ingest"
	"github.com/bapsim/agent/internal/llm"
	"github.com/bapsim/agent/internal/retrieval"
	"github.com/bapsim/agent/internal/storage"
)

// --- ingest ---

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Index dining documents into the vector store",
	Long: `Index dining documents into the vector store.

Examples:
  bapsim ingest --file ./notices/hours.md
  bapsim ingest --file ./guides/nutrition.pdf --title "영양 가이드"
  bapsim ingest --text "후생관은 11시에 엽니다" --doc-id hours`,
	RunE: func(cmd *cobra.Command, args []string) error {
		text, _ := cmd.Flags().GetString("text")
		file, _ := cmd.Flags().GetString("file")
		title, _ := cmd.Flags().GetString("title")
		docID, _ := cmd.Flags().GetString("doc-id")

		if text == "" && file == "" {
			return fmt.Errorf("one of --text or --file is required")
		}
		if text != "" && docID == "" {
			return fmt.Errorf("--doc-id is required with --text")
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		setupLogging(cfg.Log.Level)

		store, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening storage: %w", err)
		}
		defer store.Close()

		client := llm.NewClient(cfg.LLM.APIKey, cfg.LLM.BaseURL)
		embedder := retrieval.NewEmbedder(client, cfg.LLM.EmbedModel)
		ingester := ingest.NewIngester(embedder, retrieval.NewSQLiteStore(store.DB()), 0, 0)

		ctx := cmd.Context()
		var chunks int
		switch {
		case file != "":
			printStep("Indexing %s", file)
			chunks, err = ingester.IngestFile(ctx, file, title)
		default:
			printStep("Indexing text as %s", docID)
			chunks, err = ingester.IngestText(ctx, docID, title, text)
		}
		if err != nil {
			return err
		}

		printSuccess("Indexed %d chunks", chunks)
		return nil
	},
}

func init() {
	ingestCmd.Flags().String("text", "", "text content to index")
	ingestCmd.Flags().String("file", "", "document file to index (.txt, .md, .pdf)")
	ingestCmd.Flags().String("title", "", "title for the document")
	ingestCmd.Flags().String("doc-id", "", "document id (required with --text)")
}

// --- ask ---

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask the running server one question",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		language, _ := cmd.Flags().GetString("language")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		req := map[string]any{
			"user_id": "cli",
			"message": args[0],
		}
		if language != "" {
			req["language"] = language
		}

		resp, err := client.post("/chat", req)
		if err != nil {
			return err
		}

		var result struct {
			Reply string `json:"reply"`
			Meta  struct {
				ToolsUsed []string `json:"tools_used"`
				TotalMs   int64    `json:"total_ms"`
				LLMCalls  int      `json:"llm_calls"`
			} `json:"meta"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		fmt.Fprintln(os.Stdout, result.Reply)
		printStatus("tools", "%v", result.Meta.ToolsUsed)
		printStatus("llm calls", "%d", result.Meta.LLMCalls)
		printStatus("total", "%dms", result.Meta.TotalMs)
		return nil
	},
}

func init() {
	askCmd.Flags().String("language", "", "pin the answer language (e.g. English)")
}

// --- status ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server readiness",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get("/healthz")
		if err != nil {
			printError("server is not reachable: %v", err)
			return err
		}

		var health map[string]any
		if err := decodeJSON(resp, &health); err != nil {
			return err
		}

		printSuccess("server is up")
		printStatus("rag index", "%v", health["rag_index_ready"])
		printStatus("campus db", "%v", health["db_ready"])
		return nil
	},
}

func decodeJSON(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
