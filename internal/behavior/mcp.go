package behavior

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Transport selects how to reach an MCP behavior server.
type Transport string

// Supported MCP transports.
const (
	TransportStdio          Transport = "stdio"
	TransportStreamableHTTP Transport = "streamable-http"
)

// ServerConfig describes one external MCP server whose tools become
// dispatchable behaviors.
type ServerConfig struct {
	// Name labels the server in logs and errors.
	Name string

	// Transport selects stdio or streamable-http.
	Transport Transport

	// Command is the stdio launch command, split on spaces into
	// executable + args. Required for [TransportStdio].
	Command string

	// Env holds additional environment variables for stdio servers.
	Env map[string]string

	// URL is the endpoint address. Required for [TransportStreamableHTTP].
	URL string
}

// MCPSource connects to external MCP servers and exposes each discovered
// tool as a [Handler]. One client manages all sessions.
type MCPSource struct {
	client   *mcpsdk.Client
	sessions []*mcpsdk.ClientSession
}

// NewMCPSource creates an MCPSource with no connections yet.
func NewMCPSource() *MCPSource {
	return &MCPSource{
		client: mcpsdk.NewClient(
			&mcpsdk.Implementation{Name: "hyperfy-eliza-client", Version: "1.0.0"},
			nil,
		),
	}
}

// Connect establishes a session with the server described by cfg, discovers
// its tool catalogue, and registers one behavior handler per tool into reg.
func (s *MCPSource) Connect(ctx context.Context, reg *Registry, cfg ServerConfig) error {
	var transport mcpsdk.Transport
	switch cfg.Transport {
	case TransportStdio:
		executable, args := splitCommand(cfg.Command)
		if executable == "" {
			return fmt.Errorf("behavior: mcp server %q requires a non-empty command", cfg.Name)
		}
		cmd := exec.CommandContext(ctx, executable, args...)
		cmd.Env = mergeEnv(os.Environ(), cfg.Env)
		transport = &mcpsdk.CommandTransport{Command: cmd}
	case TransportStreamableHTTP:
		if cfg.URL == "" {
			return fmt.Errorf("behavior: mcp server %q requires a non-empty URL", cfg.Name)
		}
		transport = &mcpsdk.StreamableClientTransport{Endpoint: cfg.URL}
	default:
		return fmt.Errorf("behavior: unknown transport %q for mcp server %q", cfg.Transport, cfg.Name)
	}

	session, err := s.client.Connect(ctx, transport, nil)
	if err != nil {
		return fmt.Errorf("behavior: connect mcp server %q: %w", cfg.Name, err)
	}

	registered := 0
	for tool, err := range session.Tools(ctx, nil) {
		if err != nil {
			_ = session.Close()
			return fmt.Errorf("behavior: list tools for mcp server %q: %w", cfg.Name, err)
		}
		if err := reg.Register(&mcpHandler{name: tool.Name, session: session}); err != nil {
			_ = session.Close()
			return err
		}
		registered++
	}
	if registered == 0 {
		_ = session.Close()
		return fmt.Errorf("behavior: mcp server %q exposes no tools", cfg.Name)
	}

	s.sessions = append(s.sessions, session)
	return nil
}

// Close closes all established sessions.
func (s *MCPSource) Close() error {
	var firstErr error
	for _, sess := range s.sessions {
		if err := sess.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.sessions = nil
	return firstErr
}

// mcpHandler dispatches one MCP tool as a behavior.
type mcpHandler struct {
	name    string
	session *mcpsdk.ClientSession
}

var _ Handler = (*mcpHandler)(nil)

func (h *mcpHandler) Name() string { return h.name }

// Execute calls the MCP tool with the invocation context as arguments and
// concatenates any text content of the result into the continuation.
func (h *mcpHandler) Execute(ctx context.Context, inv Invocation) (string, error) {
	result, err := h.session.CallTool(ctx, &mcpsdk.CallToolParams{
		Name: h.name,
		Arguments: map[string]any{
			"agentId":        inv.AgentID,
			"conversationId": inv.Record.ConversationID,
			"text":           inv.Record.Text,
		},
	})
	if err != nil {
		return "", fmt.Errorf("call mcp tool %q: %w", h.name, err)
	}

	var sb strings.Builder
	for _, c := range result.Content {
		if tc, ok := c.(*mcpsdk.TextContent); ok {
			sb.WriteString(tc.Text)
		}
	}
	if result.IsError {
		return "", fmt.Errorf("mcp tool %q reported an error: %s", h.name, sb.String())
	}
	return sb.String(), nil
}

// mergeEnv extends the base environment with extra variables. An extra
// variable replaces a base entry of the same name; extra keys are appended
// in sorted order so the result is deterministic.
func mergeEnv(base []string, extra map[string]string) []string {
	if len(extra) == 0 {
		return base
	}
	env := make([]string, 0, len(base)+len(extra))
	for _, kv := range base {
		name, _, _ := strings.Cut(kv, "=")
		if _, ok := extra[name]; ok {
			continue
		}
		env = append(env, kv)
	}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+extra[k])
	}
	return env
}

// splitCommand splits a launch command on spaces into executable and args.
func splitCommand(command string) (string, []string) {
	parts := strings.Fields(command)
	if len(parts) == 0 {
		return "", nil
	}
	return parts[0], parts[1:]
}
