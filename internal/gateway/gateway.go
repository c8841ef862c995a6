package gateway

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/rahul/switchboard/internal/agent"
)

// Messenger defines the interface for communication gateways (Telegram, Discord, etc.)
type Messenger interface {
	// Start listens for messages until ctx is done or the connection fails.
	Start(ctx context.Context) error
	// Send sends a message to a specific chat
	Send(chatID string, text string) error
	// Stop gracefully shuts down the gateway
	Stop() error
}

const thinkingFailed = "I'm having trouble thinking right now..."

// answer asks the brain and turns failures into a user-facing reply.
func answer(ctx context.Context, brain agent.Brain, chatID, text string) string {
	response, err := brain.Think(ctx, chatID, text)
	if err != nil {
		slog.Error("brain failed", "chat_id", chatID, "error", err)
		return thinkingFailed + "\n" + err.Error()
	}
	if strings.TrimSpace(response) == "" {
		return "(no output)"
	}
	return response
}

// chunk splits text into pieces of at most limit bytes, preferring line breaks and
// never splitting a UTF-8 sequence.
func chunk(text string, limit int) []string {
	var out []string
	for len(text) > limit {
		cut := limit
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		if i := strings.LastIndexByte(text[:cut], '\n'); i > limit/2 {
			cut = i + 1
		}
		out = append(out, text[:cut])
		text = text[cut:]
	}
	if text != "" {
		out = append(out, text)
	}
	return out
}
