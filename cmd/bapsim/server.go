package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/bapsim/agent/internal/agent"
	"github.com/bapsim/agent/internal/api"
	"github.com/bapsim/agent/internal/config"
	"github.com/bapsim/agent/internal/domaingate"
	"github.com/bapsim/agent/internal/llm"
	"github.com/bapsim/agent/internal/retrieval"
	"github.com/bapsim/agent/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the assistant server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "bapsim version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Vector store for document retrieval.
	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	// Campus dining database is optional; without it the SQL tool reports
	// its not-ready code and the rest of the assistant keeps working.
	var campus *storage.CampusStore
	if cfg.SQL.DBPath != "" {
		campus, err = storage.OpenCampus(cfg.SQL.DBPath)
		if err != nil {
			printWarning("campus database unavailable: %v", err)
			campus = nil
		} else {
			defer campus.Close()
		}
	} else {
		printWarning("no campus database configured (set BAPSIM_SQL_DB_PATH)")
	}

	client := llm.NewClient(cfg.LLM.APIKey, cfg.LLM.BaseURL)
	embedder := retrieval.NewEmbedder(client, cfg.LLM.EmbedModel)
	vectorStore := retrieval.NewSQLiteStore(store.DB())
	retrievalSvc := retrieval.NewService(embedder, vectorStore)

	toolConfig := agent.ToolConfig{
		AllowTables:     cfg.SQL.AllowTables,
		MaxLimit:        cfg.SQL.MaxLimit,
		MaxRows:         cfg.SQL.MaxRows,
		TopK:            cfg.Retrieval.TopK,
		MaxContextChars: cfg.Retrieval.MaxContextChars,
		SQLModel:        cfg.LLM.SQLModel,
	}
	// Retrieval readiness is re-checked per call, so an index built by
	// `bapsim ingest` while the server runs is picked up without a restart.
	deps := agent.ToolDeps{
		Gate:      domaingate.Default(),
		LLM:       client,
		Retrieval: retrievalSvc,
		Config:    toolConfig,
	}
	if campus != nil {
		deps.Campus = campus
	}
	if !retrievalSvc.Ready() {
		printWarning("vector index is empty; run `bapsim ingest` to index documents")
	}

	registry := agent.DefaultRegistry(deps)
	loop := agent.NewLoop(client, cfg.LLM.Model, registry, cfg.LLM.MaxSteps)

	chatDeps := api.ChatDeps{
		Runner:          loop,
		Fallback:        client,
		Model:           cfg.LLM.Model,
		TopK:            cfg.Retrieval.TopK,
		MaxContextChars: cfg.Retrieval.MaxContextChars,
	}
	if campus != nil {
		chatDeps.Campus = campus
	}
	chatDeps.Retrieval = retrievalSvc

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: api.NewHandler(chatDeps),
	}

	// MCP surface on its own port.
	mcpSrv := api.NewMCPServer(registry, version)
	mcpHTTP := server.NewStreamableHTTPServer(mcpSrv)
	mcpAddr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.MCPPort)
	go func() {
		slog.Info("MCP server listening", "addr", mcpAddr)
		if err := mcpHTTP.Start(mcpAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("MCP server error", "error", err)
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "bapsim listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := mcpHTTP.Shutdown(shutdownCtx); err != nil {
		slog.Warn("MCP shutdown", "error", err)
	}
	return srv.Shutdown(shutdownCtx)
}

func setupLogging(level string) {
	logLevel := slog.LevelInfo
	if strings.EqualFold(level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))
}
