package telegram

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/flemzord/relaybot/internal/tool"
)

// SendMessageToolName is the tool the agent uses to post to the default chat.
const SendMessageToolName = "send_telegram_message"

// ReplySender is implemented by Sender and Bot.
type ReplySender interface {
	SendReply(ctx context.Context, chatID int64, text string) error
}

type sendMessageTool struct {
	sender ReplySender
	chatID int64
}

// NewSendMessageTool returns a tool that posts a message to chatID.
func NewSendMessageTool(sender ReplySender, chatID int64) tool.Tool {
	return &sendMessageTool{sender: sender, chatID: chatID}
}

func (t *sendMessageTool) Name() string { return SendMessageToolName }

func (t *sendMessageTool) Description() string {
	return "Send a message to the configured Telegram chat."
}

func (t *sendMessageTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"message":{"type":"string","description":"The message to send."}},"required":["message"]}`)
}

func (t *sendMessageTool) Execute(ctx context.Context, args json.RawMessage) (tool.Output, error) {
	var in struct {
		Message string `json:"message"`
	}
	if err := tool.DecodeArgs(args, &in); err != nil {
		return tool.Output{}, err
	}
	if strings.TrimSpace(in.Message) == "" {
		return tool.ErrorOutput("message is required"), nil
	}
	if err := t.sender.SendReply(ctx, t.chatID, in.Message); err != nil {
		return tool.ErrorOutput("failed to send message: " + err.Error()), nil
	}
	return tool.Output{Content: "Message sent"}, nil
}
