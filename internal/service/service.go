package service

import (
	"context"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// Replier is the slice of the Telegram client that handlers are allowed to
// use for outbound traffic. *bot.Bot satisfies it.
type Replier interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	EditMessageText(ctx context.Context, params *bot.EditMessageTextParams) (*models.Message, error)
	SendChatAction(ctx context.Context, params *bot.SendChatActionParams) (bool, error)
}

// HandlerFunc handles one incoming update. Replies are side effects via tg;
// nothing is returned to the dispatcher.
type HandlerFunc func(ctx context.Context, tg Replier, update *models.Update)

// Trigger is the matching rule for a binding: an exact command keyword, or
// the zero value for "any free-text message".
type Trigger struct {
	command string
}

// Command returns a trigger matching /name (and /name@botname).
func Command(name string) Trigger {
	return Trigger{command: name}
}

// AnyMessage matches any plain-text message that is not a command.
var AnyMessage = Trigger{}

// IsCommand reports whether the trigger matches a command keyword.
func (t Trigger) IsCommand() bool {
	return t.command != ""
}

// Name returns the command keyword, or "" for the any-message trigger.
func (t Trigger) Name() string {
	return t.command
}

// Binding pairs a trigger with its handler.
type Binding struct {
	Trigger Trigger
	Handler HandlerFunc
}

// Service is the capability every bot service implements: identity for the
// /help listing, plus the ordered handler bindings the orchestrator
// registers at startup. Services are constructed once with their
// dependencies injected and hold no mutable cross-request state.
type Service interface {
	Name() string
	Description() string
	Handlers() []Binding
}

// CommandArgs returns the argument text of a command message, with the
// /command (and optional @botname suffix) stripped.
func CommandArgs(text string) string {
	if !strings.HasPrefix(text, "/") {
		return strings.TrimSpace(text)
	}
	parts := strings.SplitN(text, " ", 2)
	if len(parts) < 2 {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// MaxMessageLen is Telegram's hard limit on outbound message length.
const MaxMessageLen = 4096

// Truncate bounds text to Telegram's message-length limit so a long answer
// still fits in exactly one outbound reply.
func Truncate(text string, limit int) string {
	if limit <= 0 || len(text) <= limit {
		return text
	}
	const marker = "..."
	cut := limit - len(marker)
	// Avoid splitting a multi-byte rune at the cut point.
	for cut > 0 && text[cut]&0xC0 == 0x80 {
		cut--
	}
	return text[:cut] + marker
}
