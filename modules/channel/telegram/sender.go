package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/flemzord/relaybot/internal/channel"
	"github.com/flemzord/relaybot/internal/metrics"
)

// Sender delivers formatted replies to a chat.
type Sender struct {
	client         *Client
	logger         *slog.Logger
	metrics        *metrics.Metrics
	disablePreview bool
}

// NewSender creates a Sender. m may be nil.
func NewSender(client *Client, logger *slog.Logger, m *metrics.Metrics, disablePreview bool) *Sender {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sender{client: client, logger: logger, metrics: m, disablePreview: disablePreview}
}

// SendReply sanitizes text, splits it into message-sized chunks and sends
// each as HTML. A chunk Telegram rejects (or one whose HTML rendering is
// too long) is re-sent as plain text.
func (s *Sender) SendReply(ctx context.Context, chatID int64, text string) error {
	clean := Sanitize(text)
	if clean == "" {
		return nil
	}

	for _, chunk := range channel.SplitText(clean, MaxMessageLength) {
		if err := s.sendChunk(ctx, chatID, chunk); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sender) sendChunk(ctx context.Context, chatID int64, chunk string) error {
	html := FormatHTML(chunk)
	if utf8.RuneCountInString(html) <= MaxMessageLength {
		_, err := s.client.SendMessage(ctx, SendMessageRequest{
			ChatID:                chatID,
			Text:                  html,
			ParseMode:             ParseModeHTML,
			DisableWebPagePreview: s.disablePreview,
		})
		if err == nil {
			s.metrics.Reply("html")
			return nil
		}
		if !IsBadRequest(err) {
			return fmt.Errorf("telegram: send reply: %w", err)
		}
		s.logger.Warn("html reply rejected, falling back to plain text", "chat_id", chatID, "error", err)
	}

	s.metrics.Fallback()
	if _, err := s.client.SendMessage(ctx, SendMessageRequest{
		ChatID:                chatID,
		Text:                  chunk,
		DisableWebPagePreview: s.disablePreview,
	}); err != nil {
		return fmt.Errorf("telegram: send plain reply: %w", err)
	}
	s.metrics.Reply("plain")
	return nil
}
