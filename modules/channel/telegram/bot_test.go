package telegram

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
)

func newTestBot(t *testing.T, api *fakeAPI, responder Responder, sessions SessionResetter, cfg Config) *Bot {
	t.Helper()
	cfg.Token = "123:TEST"
	return NewBot(api.client(), responder, sessions, discardLogger(), cfg, nil)
}

func TestBotRepliesWithHTML(t *testing.T) {
	api := newFakeAPI(t)
	ag := &stubAgent{reply: "## Schedule\n**Doors** open at 9 & talks at 10 #vibeHack"}
	bot := newTestBot(t, api, ag, nil, Config{})

	if err := bot.HandleUpdate(context.Background(), textUpdate(1, 42, "when?")); err != nil {
		t.Fatalf("HandleUpdate() error: %v", err)
	}

	calls := ag.calls()
	if len(calls) != 1 || calls[0].SessionID != "42" || calls[0].UserID != "100" || calls[0].Message != "when?" {
		t.Fatalf("agent inputs = %+v", calls)
	}

	sent := api.messages()
	if len(sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sent))
	}
	want := "Schedule\n<b>Doors</b> open at 9 &amp; talks at 10 vibeHack"
	if sent[0].Text != want || sent[0].ParseMode != ParseModeHTML || sent[0].ChatID != 42 {
		t.Errorf("sent = %+v, want HTML %q", sent[0], want)
	}
	if n := api.chatActions(); n != 1 {
		t.Errorf("chat actions = %d, want 1", n)
	}
}

func TestBotDisablePreview(t *testing.T) {
	for _, disable := range []bool{false, true} {
		api := newFakeAPI(t)
		bot := newTestBot(t, api, &stubAgent{reply: "see https://example.com"}, nil, Config{DisablePreview: disable})
		if err := bot.HandleUpdate(context.Background(), textUpdate(1, 42, "link?")); err != nil {
			t.Fatalf("HandleUpdate() error: %v", err)
		}
		sent := api.messages()
		if len(sent) != 1 || sent[0].DisableWebPagePreview != disable {
			t.Errorf("DisablePreview=%v: sent = %+v", disable, sent)
		}
	}
}

func TestBotFallsBackToPlainText(t *testing.T) {
	api := newFakeAPI(t)
	api.rejectHTML = true
	bot := newTestBot(t, api, &stubAgent{reply: "**a _b** c_"}, nil, Config{})

	if err := bot.HandleUpdate(context.Background(), textUpdate(1, 42, "hi")); err != nil {
		t.Fatalf("HandleUpdate() error: %v", err)
	}

	sent := api.messages()
	if len(sent) != 2 {
		t.Fatalf("sent %d messages, want 2 (html then plain)", len(sent))
	}
	if sent[1].ParseMode != "" || sent[1].Text != "**a _b** c_" {
		t.Errorf("fallback = %+v, want sanitized plain text", sent[1])
	}
}

func TestBotPlainFailureIsReturned(t *testing.T) {
	api := newFakeAPI(t)
	api.rejectHTML = true
	api.failPlain = true
	bot := newTestBot(t, api, &stubAgent{reply: "hello"}, nil, Config{})

	err := bot.HandleUpdate(context.Background(), textUpdate(1, 42, "hi"))
	if err == nil || !IsBadRequest(err) {
		t.Fatalf("HandleUpdate() = %v, want wrapped 400", err)
	}
}

func TestBotSkipsNonText(t *testing.T) {
	api := newFakeAPI(t)
	ag := &stubAgent{reply: "x"}
	bot := newTestBot(t, api, ag, nil, Config{})

	updates := []Update{
		{UpdateID: 1},
		{UpdateID: 2, Message: &Message{Chat: Chat{ID: 0}, Text: "no chat"}},
		{UpdateID: 3, Message: &Message{Chat: Chat{ID: 5}, Text: "   "}},
	}
	for _, u := range updates {
		if err := bot.HandleUpdate(context.Background(), u); err != nil {
			t.Errorf("update %d: %v", u.UpdateID, err)
		}
	}
	if len(ag.calls()) != 0 || len(api.messages()) != 0 {
		t.Errorf("skipped updates reached the agent or the API")
	}
}

func TestBotHandlesEditedMessage(t *testing.T) {
	api := newFakeAPI(t)
	ag := &stubAgent{reply: "ok"}
	bot := newTestBot(t, api, ag, nil, Config{})

	u := Update{UpdateID: 1, EditedMessage: &Message{Chat: Chat{ID: 9}, Text: "edited"}}
	if err := bot.HandleUpdate(context.Background(), u); err != nil {
		t.Fatal(err)
	}
	if calls := ag.calls(); len(calls) != 1 || calls[0].Message != "edited" || calls[0].UserID != "" {
		t.Errorf("agent inputs = %+v", calls)
	}
}

func TestBotEmptyReplySendsNothing(t *testing.T) {
	api := newFakeAPI(t)
	bot := newTestBot(t, api, &stubAgent{reply: "  # "}, nil, Config{})

	if err := bot.HandleUpdate(context.Background(), textUpdate(1, 42, "hi")); err != nil {
		t.Fatal(err)
	}
	if n := len(api.messages()); n != 0 {
		t.Errorf("sent %d messages, want 0", n)
	}
}

func TestBotAgentErrorIsReturned(t *testing.T) {
	api := newFakeAPI(t)
	bot := newTestBot(t, api, &stubAgent{err: errors.New("provider down")}, nil, Config{})

	err := bot.HandleUpdate(context.Background(), textUpdate(1, 42, "hi"))
	if err == nil || !strings.Contains(err.Error(), "provider down") {
		t.Fatalf("HandleUpdate() = %v", err)
	}
}

func TestBotCommands(t *testing.T) {
	api := newFakeAPI(t)
	ag := &stubAgent{reply: "x"}
	sessions := &stubSessions{}
	bot := newTestBot(t, api, ag, sessions, Config{})

	if err := bot.HandleUpdate(context.Background(), textUpdate(1, 42, "/start")); err != nil {
		t.Fatal(err)
	}
	if err := bot.HandleUpdate(context.Background(), textUpdate(2, 42, "/reset@event_bot")); err != nil {
		t.Fatal(err)
	}

	if len(ag.calls()) != 0 {
		t.Error("commands must not reach the agent")
	}
	if len(sessions.deleted) != 1 || sessions.deleted[0] != "42" {
		t.Errorf("deleted sessions = %v", sessions.deleted)
	}
	sent := api.messages()
	if len(sent) != 2 || sent[0].Text != welcomeText || sent[1].Text != resetText {
		t.Errorf("sent = %+v", sent)
	}
}

func TestBotAllowList(t *testing.T) {
	api := newFakeAPI(t)
	ag := &stubAgent{reply: "x"}
	bot := newTestBot(t, api, ag, nil, Config{AllowChats: []string{"7"}})

	_ = bot.HandleUpdate(context.Background(), textUpdate(1, 42, "hi"))
	_ = bot.HandleUpdate(context.Background(), textUpdate(2, 7, "hi"))

	calls := ag.calls()
	if len(calls) != 1 || calls[0].SessionID != "7" {
		t.Errorf("agent inputs = %+v, want only chat 7", calls)
	}
}

func TestBotRateLimit(t *testing.T) {
	api := newFakeAPI(t)
	ag := &stubAgent{reply: "x"}
	bot := newTestBot(t, api, ag, nil, Config{RatePerMinute: 2})

	for i := int64(1); i <= 3; i++ {
		if err := bot.HandleUpdate(context.Background(), textUpdate(i, 42, "hi")); err != nil {
			t.Fatal(err)
		}
	}
	// another chat has its own bucket
	_ = bot.HandleUpdate(context.Background(), textUpdate(4, 43, "hi"))

	if n := len(ag.calls()); n != 3 {
		t.Errorf("agent calls = %d, want 3", n)
	}
	sent := api.messages()
	if got := sent[2].Text; got != rateLimitedText {
		t.Errorf("third reply = %q, want rate limit notice", got)
	}
}

func TestSendReplyChunksLongText(t *testing.T) {
	api := newFakeAPI(t)
	bot := newTestBot(t, api, &stubAgent{}, nil, Config{})

	long := strings.Repeat("word ", 2000) // 10000 runes
	if err := bot.SendReply(context.Background(), 42, long); err != nil {
		t.Fatal(err)
	}

	sent := api.messages()
	if len(sent) != 3 {
		t.Fatalf("sent %d chunks, want 3", len(sent))
	}
	for i, m := range sent {
		if n := utf8.RuneCountInString(m.Text); n > MaxMessageLength {
			t.Errorf("chunk %d has %d runes", i, n)
		}
	}
}

func TestSendReplyOversizedHTMLGoesPlain(t *testing.T) {
	api := newFakeAPI(t)
	bot := newTestBot(t, api, &stubAgent{}, nil, Config{})

	// 1500 ampersands fit as text but expand past the limit once escaped.
	text := strings.Repeat("&", 1500)
	if err := bot.SendReply(context.Background(), 42, text); err != nil {
		t.Fatal(err)
	}

	sent := api.messages()
	if len(sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sent))
	}
	if sent[0].ParseMode != "" || sent[0].Text != text {
		t.Errorf("parse mode = %q, want plain text", sent[0].ParseMode)
	}
}

func TestCommand(t *testing.T) {
	tests := map[string]string{
		"/start":           "/start",
		"/START@bot extra": "/start",
		"hello /start":     "",
		"":                 "",
	}
	for in, want := range tests {
		if got := command(in); got != want {
			t.Errorf("command(%q) = %q, want %q", in, got, want)
		}
	}
}
