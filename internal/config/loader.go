package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/peezy/hyperfy-eliza-client/internal/behavior"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm":        {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"embeddings": {"openai"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader] and
// [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d is out of range [0, 65535]", cfg.Server.Port))
	}
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("embeddings", cfg.Providers.Embeddings.Name)

	if cfg.Providers.LLM.Name == "" && len(cfg.Agents) > 0 {
		errs = append(errs, errors.New("providers.llm is required when agents are configured"))
	}

	// Embeddings ↔ memory dimensions
	if cfg.Providers.Embeddings.Name != "" && cfg.Memory.EmbeddingDimensions <= 0 {
		slog.Warn("providers.embeddings is configured but memory.embedding_dimensions is not set; semantic recall will be disabled")
	}
	if cfg.Memory.EmbeddingDimensions > 0 && cfg.Providers.Embeddings.Name == "" {
		errs = append(errs, errors.New("memory.embedding_dimensions is set but providers.embeddings is not configured"))
	}

	// Memory availability
	if cfg.Memory.PostgresDSN == "" && len(cfg.Agents) > 0 {
		slog.Warn("memory.postgres_dsn is empty; conversation history will not be available to agents")
	}

	// Agent duplicate detection
	agentIDsSeen := make(map[string]int, len(cfg.Agents))
	for i, a := range cfg.Agents {
		prefix := fmt.Sprintf("agents[%d]", i)
		if a.ID == "" {
			errs = append(errs, fmt.Errorf("%s.id is required", prefix))
		} else {
			if prev, ok := agentIDsSeen[a.ID]; ok {
				errs = append(errs, fmt.Errorf("%s.id %q is a duplicate of agents[%d]", prefix, a.ID, prev))
			}
			agentIDsSeen[a.ID] = i
		}
		if a.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		}
	}

	// MCP servers
	for i, srv := range cfg.MCP.Servers {
		prefix := fmt.Sprintf("mcp.servers[%d]", i)
		if srv.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		}
		switch srv.Transport {
		case behavior.TransportStdio:
			if srv.Command == "" {
				errs = append(errs, fmt.Errorf("%s.command is required when transport is stdio", prefix))
			}
		case behavior.TransportStreamableHTTP:
			if srv.URL == "" {
				errs = append(errs, fmt.Errorf("%s.url is required when transport is streamable-http", prefix))
			}
		default:
			errs = append(errs, fmt.Errorf("%s.transport %q is invalid; valid values: stdio, streamable-http", prefix, srv.Transport))
		}
	}

	return errors.Join(errs...)
}

// SlogLevel converts a [LogLevel] to its slog equivalent. Empty and unknown
// values default to info.
func (l LogLevel) SlogLevel() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}

// addr renders a numeric port as a listen address.
func addr(port int) string {
	return ":" + strconv.Itoa(port)
}
