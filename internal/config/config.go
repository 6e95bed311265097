package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Server    ServerConfig
	LLM       LLMConfig
	Retrieval RetrievalConfig
	SQL       SQLConfig
	Storage   StorageConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port    int
	MCPPort int
}

type LLMConfig struct {
	BaseURL    string
	APIKey     string
	Model      string
	SQLModel   string
	EmbedModel string
	MaxSteps   int
}

type RetrievalConfig struct {
	TopK            int
	MaxContextChars int
}

type SQLConfig struct {
	DBPath      string
	AllowTables []string
	MaxLimit    int
	MaxRows     int
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:    8000,
			MCPPort: 8001,
		},
		LLM: LLMConfig{
			BaseURL:    "https://api.openai.com/v1",
			Model:      "gpt-4o-mini",
			SQLModel:   "gpt-4o-mini",
			EmbedModel: "text-embedding-3-small",
			MaxSteps:   3,
		},
		Retrieval: RetrievalConfig{
			TopK:            4,
			MaxContextChars: 2000,
		},
		SQL: SQLConfig{
			MaxLimit: 200,
			MaxRows:  200,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func defaultDataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return dir + "/bapsim"
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "./data"
	}
	return home + "/.local/share/bapsim"
}

// Load reads configuration from defaults overridden by BAPSIM_* environment
// variables. The LLM API key is the only required value.
func Load() (Config, error) {
	cfg, err := loadWith(os.Getenv)
	if err != nil {
		return Config{}, err
	}
	if cfg.LLM.APIKey == "" {
		return Config{}, fmt.Errorf("missing required config: LLM API key, set BAPSIM_LLM_API_KEY")
	}
	return cfg, nil
}

// LoadLenient is Load without the API key requirement, for commands that
// never call the model (status, ingest with a local embedder disabled).
func LoadLenient() (Config, error) {
	return loadWith(os.Getenv)
}

type keyType int

const (
	kString keyType = iota
	kInt
	kStrings
)

type keySpec struct {
	env   string
	typ   keyType
	apply func(cfg *Config, v any)
}

var specs = []keySpec{
	{env: "BAPSIM_SERVER_PORT", typ: kInt,
		apply: func(cfg *Config, v any) { cfg.Server.Port = v.(int) }},
	{env: "BAPSIM_SERVER_MCP_PORT", typ: kInt,
		apply: func(cfg *Config, v any) { cfg.Server.MCPPort = v.(int) }},
	{env: "BAPSIM_LLM_BASE_URL", typ: kString,
		apply: func(cfg *Config, v any) { cfg.LLM.BaseURL = v.(string) }},
	{env: "BAPSIM_LLM_API_KEY", typ: kString,
		apply: func(cfg *Config, v any) { cfg.LLM.APIKey = v.(string) }},
	{env: "BAPSIM_LLM_MODEL", typ: kString,
		apply: func(cfg *Config, v any) { cfg.LLM.Model = v.(string) }},
	{env: "BAPSIM_LLM_SQL_MODEL", typ: kString,
		apply: func(cfg *Config, v any) { cfg.LLM.SQLModel = v.(string) }},
	{env: "BAPSIM_LLM_EMBED_MODEL", typ: kString,
		apply: func(cfg *Config, v any) { cfg.LLM.EmbedModel = v.(string) }},
	{env: "BAPSIM_LLM_MAX_STEPS", typ: kInt,
		apply: func(cfg *Config, v any) { cfg.LLM.MaxSteps = v.(int) }},
	{env: "BAPSIM_RETRIEVAL_TOP_K", typ: kInt,
		apply: func(cfg *Config, v any) { cfg.Retrieval.TopK = v.(int) }},
	{env: "BAPSIM_RETRIEVAL_MAX_CONTEXT_CHARS", typ: kInt,
		apply: func(cfg *Config, v any) { cfg.Retrieval.MaxContextChars = v.(int) }},
	{env: "BAPSIM_SQL_DB_PATH", typ: kString,
		apply: func(cfg *Config, v any) { cfg.SQL.DBPath = v.(string) }},
	{env: "BAPSIM_SQL_ALLOW_TABLES", typ: kStrings,
		apply: func(cfg *Config, v any) { cfg.SQL.AllowTables = v.([]string) }},
	{env: "BAPSIM_SQL_MAX_LIMIT", typ: kInt,
		apply: func(cfg *Config, v any) { cfg.SQL.MaxLimit = v.(int) }},
	{env: "BAPSIM_SQL_MAX_ROWS", typ: kInt,
		apply: func(cfg *Config, v any) { cfg.SQL.MaxRows = v.(int) }},
	{env: "BAPSIM_STORAGE_DATA_DIR", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) }},
	{env: "BAPSIM_LOG_LEVEL", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Log.Level = v.(string) }},
}

func loadWith(getenv func(string) string) (Config, error) {
	cfg := defaults()
	for _, s := range specs {
		raw := getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(&cfg, raw)
		case kInt:
			n, err := strconv.Atoi(strings.TrimSpace(raw))
			if err != nil {
				return Config{}, fmt.Errorf("parsing %s: %w", s.env, err)
			}
			s.apply(&cfg, n)
		case kStrings:
			parts := strings.Split(raw, ",")
			out := make([]string, 0, len(parts))
			for _, p := range parts {
				if p = strings.TrimSpace(p); p != "" {
					out = append(out, p)
				}
			}
			s.apply(&cfg, out)
		}
	}
	return cfg, nil
}
