package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/flemzord/relaybot/internal/agent"
	"github.com/flemzord/relaybot/internal/channel"
	"github.com/flemzord/relaybot/internal/metrics"
)

const (
	welcomeText     = "Hi! I'm the event assistant. Ask me anything about the event."
	resetText       = "Conversation cleared. Let's start fresh."
	rateLimitedText = "You're sending messages too quickly. Please wait a moment and try again."
)

// Responder produces the reply to a user message.
type Responder interface {
	Run(ctx context.Context, in agent.RunInput) (*agent.RunOutput, error)
}

// SessionResetter deletes the stored conversation of a chat.
type SessionResetter interface {
	DeleteSession(ctx context.Context, sessionID string) error
}

// Bot routes text messages to the agent and relays the replies.
type Bot struct {
	client   *Client
	sender   *Sender
	agent    Responder
	sessions SessionResetter
	allow    *channel.AllowList
	limiter  *chatLimiter
	logger   *slog.Logger
	metrics  *metrics.Metrics
	config   Config
}

// NewBot creates a Bot. sessions may be nil, in which case /reset only
// acknowledges.
func NewBot(client *Client, responder Responder, sessions SessionResetter, logger *slog.Logger, config Config, m *metrics.Metrics) *Bot {
	config.defaults()
	return &Bot{
		client:   client,
		sender:   NewSender(client, logger, m, config.DisablePreview),
		agent:    responder,
		sessions: sessions,
		allow:    channel.NewAllowList(config.AllowUsers, config.AllowChats),
		limiter:  newChatLimiter(config.RatePerMinute),
		logger:   logger,
		metrics:  m,
		config:   config,
	}
}

// HandleUpdate processes one update. Updates without a text message are
// skipped and return nil.
func (b *Bot) HandleUpdate(ctx context.Context, update Update) error {
	msg := update.EffectiveMessage()
	if msg == nil || msg.Chat.ID == 0 || strings.TrimSpace(msg.Text) == "" {
		b.metrics.Update(metrics.OutcomeSkipped)
		return nil
	}

	chatID := msg.Chat.ID
	logger := b.logger.With("update_id", update.UpdateID, "chat_id", chatID)

	if !b.allow.IsAllowed(strconv.FormatInt(chatID, 10), senderKeys(msg.From)...) {
		logger.Debug("update denied by allow list")
		b.metrics.Update(metrics.OutcomeDenied)
		return nil
	}

	logger.Info("received message", "chars", utf8.RuneCountInString(msg.Text))

	switch command(msg.Text) {
	case "/start":
		b.metrics.Update(metrics.OutcomeHandled)
		return b.SendReply(ctx, chatID, welcomeText)
	case "/reset":
		if b.sessions != nil {
			if err := b.sessions.DeleteSession(ctx, sessionID(chatID)); err != nil {
				return fmt.Errorf("telegram: reset session: %w", err)
			}
		}
		b.metrics.Update(metrics.OutcomeHandled)
		return b.SendReply(ctx, chatID, resetText)
	}

	if !b.limiter.Allow(chatID) {
		logger.Warn("chat rate limited")
		b.metrics.Update(metrics.OutcomeLimited)
		return b.SendReply(ctx, chatID, rateLimitedText)
	}

	if err := b.client.SendChatAction(ctx, chatID, "typing"); err != nil {
		logger.Debug("sendChatAction failed", "error", err)
	}

	in := agent.RunInput{
		SessionID: sessionID(chatID),
		Message:   msg.Text,
	}
	if msg.From != nil {
		in.UserID = strconv.FormatInt(msg.From.ID, 10)
	}

	out, err := b.agent.Run(ctx, in)
	if err != nil {
		return fmt.Errorf("telegram: agent run: %w", err)
	}

	b.metrics.Update(metrics.OutcomeHandled)
	if strings.TrimSpace(out.Content) == "" {
		logger.Info("agent returned an empty reply")
		return nil
	}

	logger.Info("sending reply", "run_id", out.RunID, "preview", preview(out.Content, 80))
	return b.SendReply(ctx, chatID, out.Content)
}

// SendReply sends text to chatID; see Sender.SendReply.
func (b *Bot) SendReply(ctx context.Context, chatID int64, text string) error {
	return b.sender.SendReply(ctx, chatID, text)
}

// command returns the bot command at the start of text, without any
// @botname suffix, or "" when text is not a command.
func command(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return ""
	}
	cmd, _, _ := strings.Cut(fields[0], "@")
	return strings.ToLower(cmd)
}

func sessionID(chatID int64) string {
	return strconv.FormatInt(chatID, 10)
}

func senderKeys(u *User) []string {
	if u == nil {
		return nil
	}
	keys := []string{strconv.FormatInt(u.ID, 10)}
	if u.Username != "" {
		keys = append(keys, u.Username)
	}
	return keys
}

func preview(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "…"
}
