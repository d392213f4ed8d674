// Package telegram implements the Telegram side of relaybot.
//
// It provides:
//
//   - A thin Bot API client (getMe, getUpdates, sendMessage, sendChatAction)
//   - A long-poll Poller that dispatches each batch concurrently under a
//     semaphore and acknowledges the whole batch once every handler returned
//   - A Bot that routes text messages to the agent and replies in Telegram
//     HTML, falling back to plain text when the HTML is rejected
//   - The send_telegram_message tool, which lets the agent post to a
//     configured chat
//
// No external Telegram library is used: the package talks to the Bot API
// via raw net/http + encoding/json.
package telegram
