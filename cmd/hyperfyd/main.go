// Command hyperfyd is the main entry point for the Hyperfy agent decision
// server. It exposes the inbound HTTP interface, drives the decision pipeline
// and persists conversation history.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/peezy/hyperfy-eliza-client/internal/agent"
	"github.com/peezy/hyperfy-eliza-client/internal/behavior"
	"github.com/peezy/hyperfy-eliza-client/internal/commit"
	"github.com/peezy/hyperfy-eliza-client/internal/config"
	"github.com/peezy/hyperfy-eliza-client/internal/decision"
	"github.com/peezy/hyperfy-eliza-client/internal/eval"
	"github.com/peezy/hyperfy-eliza-client/internal/health"
	"github.com/peezy/hyperfy-eliza-client/internal/observe"
	"github.com/peezy/hyperfy-eliza-client/internal/prompt"
	"github.com/peezy/hyperfy-eliza-client/internal/server"
	"github.com/peezy/hyperfy-eliza-client/internal/turn"
	"github.com/peezy/hyperfy-eliza-client/pkg/memory"
	"github.com/peezy/hyperfy-eliza-client/pkg/memory/postgres"
	"github.com/peezy/hyperfy-eliza-client/pkg/provider/embeddings"
	oaembed "github.com/peezy/hyperfy-eliza-client/pkg/provider/embeddings/openai"
	"github.com/peezy/hyperfy-eliza-client/pkg/provider/llm"
	"github.com/peezy/hyperfy-eliza-client/pkg/provider/llm/anyllm"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "hyperfyd: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "hyperfyd: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("hyperfyd starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr(),
		"log_level", cfg.Server.LogLevel,
		"agents", len(cfg.Agents),
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "hyperfy-eliza-client",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	llmProvider, embedder, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}
	if llmProvider == nil {
		slog.Error("no LLM provider configured — set providers.llm in the config")
		return 1
	}

	// ── Conversation store ────────────────────────────────────────────────────
	var (
		store    memory.Store
		checkers []health.Checker
	)
	if dsn := cfg.Memory.PostgresDSN; dsn != "" {
		pgStore, err := postgres.NewStore(ctx, dsn, cfg.Memory.EmbeddingDimensions)
		if err != nil {
			slog.Error("failed to connect to postgres", "err", err)
			return 1
		}
		defer pgStore.Close()
		store = pgStore
		checkers = append(checkers, health.Checker{Name: "database", Check: pgStore.Ping})
		slog.Info("conversation store ready", "backend", "postgres",
			"embedding_dimensions", cfg.Memory.EmbeddingDimensions)
	} else {
		store = memory.NewInMemoryStore()
		slog.Warn("no postgres_dsn configured — conversation history is in-process only")
	}

	// ── Agent registry ────────────────────────────────────────────────────────
	agents := agent.NewRegistry()
	for _, ac := range cfg.Agents {
		a := &agent.Agent{
			ID:        ac.ID,
			Name:      ac.Name,
			Bio:       ac.Bio,
			Template:  ac.Template,
			Behaviors: ac.Behaviors,
		}
		if err := agents.Register(a); err != nil {
			slog.Error("failed to register agent", "id", ac.ID, "err", err)
			return 1
		}
		slog.Info("agent registered", "id", a.ID, "name", a.Name)
	}
	metrics.ActiveAgents.Add(ctx, int64(agents.Len()))

	// ── Behaviors (MCP tools) ─────────────────────────────────────────────────
	behaviors := behavior.NewRegistry(logger)
	mcpSource := behavior.NewMCPSource()
	for _, sc := range cfg.MCP.Servers {
		err := mcpSource.Connect(ctx, behaviors, behavior.ServerConfig{
			Name:      sc.Name,
			Transport: sc.Transport,
			Command:   sc.Command,
			Env:       sc.Env,
			URL:       sc.URL,
		})
		if err != nil {
			slog.Error("failed to connect MCP server", "server", sc.Name, "err", err)
			return 1
		}
		slog.Info("mcp server connected", "server", sc.Name, "transport", sc.Transport)
	}
	defer func() {
		if err := mcpSource.Close(); err != nil {
			slog.Warn("mcp close error", "err", err)
		}
	}()

	// ── Decision pipeline ─────────────────────────────────────────────────────
	var assemblerOpts []prompt.Option
	if cfg.Prompt.HistoryLimit > 0 {
		assemblerOpts = append(assemblerOpts, prompt.WithHistoryLimit(cfg.Prompt.HistoryLimit))
	}
	if cfg.Prompt.RecallLimit > 0 {
		assemblerOpts = append(assemblerOpts, prompt.WithRecallLimit(cfg.Prompt.RecallLimit))
	}
	if embedder != nil && cfg.Memory.EmbeddingDimensions > 0 {
		assemblerOpts = append(assemblerOpts, prompt.WithEmbedder(embedder))
	}
	assembler := prompt.NewAssembler(store, assemblerOpts...)

	engine := decision.NewEngine(llmProvider)

	evaluators := eval.NewChain(logger)

	commitOpts := []commit.Option{commit.WithMetrics(metrics)}
	if embedder != nil && cfg.Memory.EmbeddingDimensions > 0 {
		commitOpts = append(commitOpts, commit.WithEmbedder(embedder))
	}
	if cfg.Compat.CorrectedEmoteText {
		commitOpts = append(commitOpts, commit.WithCorrectedEmoteText())
	}
	committer := commit.NewCommitter(store, behaviors, evaluators, logger, commitOpts...)

	coordinator := turn.NewCoordinator(agents, assembler, engine, committer, logger,
		turn.WithMetrics(metrics))

	// ── HTTP server ───────────────────────────────────────────────────────────
	healthHandler := health.New(agents, checkers...)
	srv := server.New(cfg.Server.ListenAddr(), coordinator, agents, healthHandler, metrics, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	slog.Info("server ready — press Ctrl+C to shut down", "addr", cfg.Server.ListenAddr())

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "err", err)
			return 1
		}
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	slog.Info("shutdown signal received, stopping…")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}

	// Let in-flight background commits land before closing the store.
	coordinator.Drain()

	slog.Info("goodbye")
	return 0
}

// version is stamped at build time via -ldflags "-X main.version=…".
var version = "dev"

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the appropriate
// provider from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry) {
	// ── LLM ───────────────────────────────────────────────────────────────────
	// openai, anthropic, gemini, deepseek, mistral, groq, llamacpp, llamafile
	// all share the same pattern: optional APIKey + optional BaseURL.
	for _, providerName := range []string{
		"openai", "anthropic", "gemini",
		"deepseek", "mistral", "groq", "llamacpp", "llamafile",
	} {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New("ollama", entry.Model, opts...)
	})

	// ── Embeddings ────────────────────────────────────────────────────────────

	reg.RegisterEmbeddings("openai", func(entry config.ProviderEntry) (embeddings.Provider, error) {
		var opts []oaembed.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaembed.WithBaseURL(entry.BaseURL))
		}
		if dims := optInt(entry.Options, "dimensions"); dims > 0 {
			opts = append(opts, oaembed.WithDimensions(dims))
		}
		return oaembed.New(entry.APIKey, entry.Model, opts...)
	})
}

// buildProviders instantiates the providers named in cfg using the registry.
// The embeddings provider is optional; the LLM provider is checked by the
// caller.
func buildProviders(cfg *config.Config, reg *config.Registry) (llm.Provider, embeddings.Provider, error) {
	var (
		llmProvider llm.Provider
		embedder    embeddings.Provider
	)

	if name := cfg.Providers.LLM.Name; name != "" {
		p, err := reg.CreateLLM(cfg.Providers.LLM)
		if err != nil {
			return nil, nil, fmt.Errorf("create llm provider %q: %w", name, err)
		}
		llmProvider = p
		slog.Info("provider created", "kind", "llm", "name", name, "model", cfg.Providers.LLM.Model)
	}

	if name := cfg.Providers.Embeddings.Name; name != "" {
		p, err := reg.CreateEmbeddings(cfg.Providers.Embeddings)
		if err != nil {
			return nil, nil, fmt.Errorf("create embeddings provider %q: %w", name, err)
		}
		embedder = p
		slog.Info("provider created", "kind", "embeddings", "name", name, "model", cfg.Providers.Embeddings.Model)
	}

	return llmProvider, embedder, nil
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level.SlogLevel(),
	}))
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// optInt extracts an integer value from a provider Options map[string]any.
// YAML decodes whole numbers as int; returns 0 for anything else.
func optInt(opts map[string]any, key string) int {
	if opts == nil {
		return 0
	}
	n, ok := opts[key].(int)
	if !ok {
		return 0
	}
	return n
}
