package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestIngestRequiresInput(t *testing.T) {
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"ingest"})
	err := rootCmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "--text or --file") {
		t.Errorf("err = %v, want missing-input error", err)
	}

	rootCmd.SetArgs([]string{"ingest", "--text", "후생관은 11시에 엽니다"})
	err = rootCmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "--doc-id") {
		t.Errorf("err = %v, want missing doc-id error", err)
	}
}

func TestAskAgainstFakeServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"reply":"비빔밥은 5,500원입니다.","meta":{"tools_used":["sql_answer"],"total_ms":12,"llm_calls":2}}`))
	}))
	defer srv.Close()

	old := newAPIClient
	defer func() { newAPIClient = old }()
	newAPIClient = func() (*apiClient, error) {
		return &apiClient{baseURL: srv.URL, httpClient: &http.Client{Timeout: 5 * time.Second}}, nil
	}

	defer rootCmd.SetArgs(nil)
	rootCmd.SetArgs([]string{"ask", "비빔밥 얼마야"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("ask: %v", err)
	}
}

func TestStatusAgainstFakeServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/healthz" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","rag_index_ready":true,"db_ready":false}`))
	}))
	defer srv.Close()

	old := newAPIClient
	defer func() { newAPIClient = old }()
	newAPIClient = func() (*apiClient, error) {
		return &apiClient{baseURL: srv.URL, httpClient: &http.Client{Timeout: 5 * time.Second}}, nil
	}

	defer rootCmd.SetArgs(nil)
	rootCmd.SetArgs([]string{"status"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("status: %v", err)
	}
}

func TestColorize(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()

	noColor = true
	if result := colorize(colorGreen, "ok"); strings.Contains(result, "\033") {
		t.Errorf("colorize with noColor=true should not contain ANSI codes, got %q", result)
	}

	noColor = false
	if result := colorize(colorGreen, "ok"); !strings.Contains(result, "\033") {
		t.Errorf("colorize with noColor=false should contain ANSI codes, got %q", result)
	}
}
