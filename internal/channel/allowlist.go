// Package channel holds chat-platform helpers shared by channel modules:
// sender allowlisting and outbound text chunking.
package channel

import "strings"

// AllowList controls which users and chats may talk to the bot. An empty
// or nil AllowList allows everyone.
type AllowList struct {
	users map[string]struct{}
	chats map[string]struct{}
}

// NewAllowList creates an AllowList with O(1) lookups. Keys are trimmed and
// lowercased at construction time so that IsAllowed can use direct map lookups.
// Blank entries are ignored.
func NewAllowList(users, chats []string) *AllowList {
	a := &AllowList{
		users: make(map[string]struct{}, len(users)),
		chats: make(map[string]struct{}, len(chats)),
	}
	for _, u := range users {
		if k := normalize(u); k != "" {
			a.users[k] = struct{}{}
		}
	}
	for _, c := range chats {
		if k := normalize(c); k != "" {
			a.chats[k] = struct{}{}
		}
	}
	return a
}

// Open reports whether the list places no restriction.
func (a *AllowList) Open() bool {
	return a == nil || (len(a.users) == 0 && len(a.chats) == 0)
}

// IsAllowed reports whether a message from senderID in chatID is permitted.
// senderID may also be a username; both forms can be listed.
//
// Rules:
//   - If both maps are empty → allow.
//   - If any sender key matches a user entry → allow.
//   - If the chat's ID matches a chat entry → allow.
//   - Otherwise → deny.
func (a *AllowList) IsAllowed(chatID string, senderKeys ...string) bool {
	if a.Open() {
		return true
	}

	for _, k := range senderKeys {
		if _, ok := a.users[normalize(k)]; ok {
			return true
		}
	}
	_, ok := a.chats[normalize(chatID)]
	return ok
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "@"))
}
