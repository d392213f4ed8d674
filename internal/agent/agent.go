package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/flemzord/relaybot/internal/knowledge"
	"github.com/flemzord/relaybot/internal/memory"
	"github.com/flemzord/relaybot/internal/metrics"
	"github.com/flemzord/relaybot/internal/provider"
	"github.com/flemzord/relaybot/internal/tool"
)

// ErrEmptyMessage is returned when Run receives a blank message.
var ErrEmptyMessage = errors.New("agent: message is empty")

const (
	markdownInstruction = "Use markdown to format your answers."
	referencesPreamble  = "Use the following references from the knowledge base if it helps:"
	tracerName          = "github.com/flemzord/relaybot/internal/agent"
)

// Config describes an agent.
type Config struct {
	ID           string
	Name         string
	Description  string
	Instructions string

	// Markdown asks the model to format answers as markdown.
	Markdown bool

	// HistoryRuns is how many previous runs of the session are replayed.
	HistoryRuns int

	// Knowledge is optional.
	Knowledge *knowledge.Knowledge
	// AddKnowledgeToContext prepends the best references to every user turn.
	AddKnowledgeToContext bool
	// SearchKnowledge registers the search_knowledge_base tool.
	SearchKnowledge bool

	Loop LoopConfig
}

// Deps holds the collaborators of an Agent. Only Provider is required.
type Deps struct {
	Provider provider.Provider
	Tools    *tool.Registry
	Sessions memory.SessionStore
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	Tracer   trace.Tracer
}

// Agent runs user turns through the loop and persists them.
// It is safe for concurrent use.
type Agent struct {
	cfg      Config
	provider provider.Provider
	tools    *tool.Registry
	sessions memory.SessionStore
	loop     *Loop
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
}

// New builds an Agent. When cfg.SearchKnowledge is set and knowledge is
// attached, the search tool is added to deps.Tools.
func New(cfg Config, deps Deps) (*Agent, error) {
	if deps.Provider == nil {
		return nil, provider.ErrNoProvider
	}
	if cfg.ID == "" {
		return nil, errors.New("agent: id is required")
	}
	if err := cfg.Loop.Validate(); err != nil {
		return nil, err
	}
	if deps.Tools == nil {
		deps.Tools = tool.NewRegistry()
	}
	if deps.Sessions == nil {
		deps.Sessions = memory.NewInMemorySessionStore()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Tracer == nil {
		deps.Tracer = otel.Tracer(tracerName)
	}

	if cfg.Knowledge != nil && cfg.SearchKnowledge {
		if err := deps.Tools.Register(knowledge.NewSearchTool(cfg.Knowledge)); err != nil {
			return nil, fmt.Errorf("agent: registering knowledge search: %w", err)
		}
	}

	logger := deps.Logger.With("agent_id", cfg.ID)
	executor := NewToolExecutor(deps.Tools, logger, deps.Metrics)

	return &Agent{
		cfg:      cfg,
		provider: deps.Provider,
		tools:    deps.Tools,
		sessions: deps.Sessions,
		loop:     NewLoop(deps.Provider, executor, cfg.Loop),
		logger:   logger,
		metrics:  deps.Metrics,
		tracer:   deps.Tracer,
	}, nil
}

// ID returns the agent id.
func (a *Agent) ID() string { return a.cfg.ID }

// Sessions returns the store the agent persists runs to.
func (a *Agent) Sessions() memory.SessionStore { return a.sessions }

// Knowledge returns the attached knowledge base, or nil.
func (a *Agent) Knowledge() *knowledge.Knowledge { return a.cfg.Knowledge }

// SystemPrompt returns the system message sent before every conversation.
func (a *Agent) SystemPrompt() string {
	var parts []string
	if d := strings.TrimSpace(a.cfg.Description); d != "" {
		parts = append(parts, d)
	}
	if in := strings.TrimSpace(a.cfg.Instructions); in != "" {
		parts = append(parts, in)
	}
	if a.cfg.Markdown {
		parts = append(parts, markdownInstruction)
	}
	return strings.Join(parts, "\n\n")
}

// Run answers one user turn: it replays the session history, attaches
// knowledge references, runs the loop and stores the result.
func (a *Agent) Run(ctx context.Context, in RunInput) (*RunOutput, error) {
	if strings.TrimSpace(in.Message) == "" {
		return nil, ErrEmptyMessage
	}
	if in.SessionID == "" {
		in.SessionID = uuid.NewString()
	}

	ctx, span := a.tracer.Start(ctx, "agent.run", trace.WithAttributes(
		attribute.String("agent.id", a.cfg.ID),
		attribute.String("session.id", in.SessionID),
		attribute.String("llm.model", a.provider.ModelName()),
	))
	defer span.End()

	start := time.Now()
	resp, err := a.run(ctx, in)
	a.metrics.Run(err, time.Since(start), resp.TotalUsage.PromptTokens, resp.TotalUsage.CompletionTokens)

	span.SetAttributes(
		attribute.Int("llm.iterations", resp.Iterations),
		attribute.Int("llm.tokens.total", resp.TotalUsage.TotalTokens),
		attribute.String("agent.stop_reason", string(resp.StopReason)),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("agent %s: %w", a.cfg.ID, err)
	}

	run := memory.Run{
		ID:               uuid.NewString(),
		SessionID:        in.SessionID,
		UserID:           in.UserID,
		AgentID:          a.cfg.ID,
		Input:            in.Message,
		Content:          resp.Content,
		Model:            a.provider.ModelName(),
		PromptTokens:     resp.TotalUsage.PromptTokens,
		CompletionTokens: resp.TotalUsage.CompletionTokens,
		CreatedAt:        time.Now().UTC(),
	}
	if err := a.sessions.AppendRun(ctx, run); err != nil {
		// The answer is still worth delivering.
		a.logger.Error("failed to persist run", "session_id", in.SessionID, "error", err)
	}

	return &RunOutput{
		RunID:     run.ID,
		SessionID: run.SessionID,
		AgentID:   run.AgentID,
		Content:   run.Content,
		Model:     run.Model,
		Usage:     resp.TotalUsage,
		ToolCalls: resp.ToolCalls,
		CreatedAt: run.CreatedAt,
	}, nil
}

func (a *Agent) run(ctx context.Context, in RunInput) (Response, error) {
	var messages []provider.LLMMessage
	if a.cfg.HistoryRuns > 0 {
		history, err := a.sessions.RecentRuns(ctx, in.SessionID, a.cfg.HistoryRuns)
		if err != nil {
			return Response{StopReason: StopReasonError}, fmt.Errorf("loading history: %w", err)
		}
		messages = memory.History(history)
	}

	messages = append(messages, provider.LLMMessage{
		Role:    provider.MessageRoleUser,
		Content: a.userTurn(ctx, in.Message),
	})

	return a.loop.Run(ctx, Request{
		Messages:     messages,
		SystemPrompt: a.SystemPrompt(),
		Tools:        a.tools.Definitions(),
	})
}

// userTurn appends knowledge references to message. Retrieval failures
// degrade to the bare message.
func (a *Agent) userTurn(ctx context.Context, message string) string {
	if a.cfg.Knowledge == nil || !a.cfg.AddKnowledgeToContext {
		return message
	}

	ctx, span := a.tracer.Start(ctx, "agent.references")
	defer span.End()

	matches, err := a.cfg.Knowledge.Search(ctx, message, 0)
	if err != nil {
		span.RecordError(err)
		a.logger.Warn("knowledge search failed", "error", err)
		return message
	}
	span.SetAttributes(attribute.Int("knowledge.matches", len(matches)))
	if len(matches) == 0 {
		return message
	}
	return WithReferences(message, matches)
}

// WithReferences appends matches to message inside <references> tags.
func WithReferences(message string, matches []knowledge.Match) string {
	var b strings.Builder
	b.WriteString(message)
	b.WriteString("\n\n")
	b.WriteString(referencesPreamble)
	b.WriteString("\n<references>\n")
	b.WriteString(knowledge.FormatReferences(matches))
	b.WriteString("\n</references>")
	return b.String()
}
