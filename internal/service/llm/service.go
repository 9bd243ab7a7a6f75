package llm

import (
	"context"
	"strings"
	"sync"

	tbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog"

	"github.com/khodabot/khoda/internal/api"
	"github.com/khodabot/khoda/internal/config"
	"github.com/khodabot/khoda/internal/service"
)

// SessionStore persists the chat to API-session binding and per-chat
// memory overrides. *store.Store implements it.
type SessionStore interface {
	Session(ctx context.Context, chatID int64) (string, bool, error)
	SaveSession(ctx context.Context, chatID int64, sessionID string) error
	ClearSession(ctx context.Context, chatID int64) error
	MemoryPref(ctx context.Context, chatID int64) (*bool, error)
	SetMemoryPref(ctx context.Context, chatID int64, enabled bool) error
}

// Service exposes the LLM backend as chat triggers: /ask with an argument,
// plain messages in private chats, and the conversation-memory commands.
type Service struct {
	asker    api.Asker
	sessions api.Sessions // nil when the backend has no session support
	store    SessionStore
	cfg      *config.Config
	log      zerolog.Logger

	// Per-chat locks serialize session create/delete; concurrent asks
	// within a chat would otherwise race to create server-side sessions.
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func New(asker api.Asker, sessions api.Sessions, store SessionStore, cfg *config.Config, log zerolog.Logger) *Service {
	return &Service{
		asker:    asker,
		sessions: sessions,
		store:    store,
		cfg:      cfg,
		log:      log.With().Str("service", "llm").Logger(),
		locks:    make(map[int64]*sync.Mutex),
	}
}

func (s *Service) Name() string {
	return "LLM Service"
}

func (s *Service) Description() string {
	return "Custom LLM integration for answering questions"
}

func (s *Service) Handlers() []service.Binding {
	return []service.Binding{
		{Trigger: service.Command("ask"), Handler: s.AskCommand},
		{Trigger: service.Command("new_chat"), Handler: s.NewChatCommand},
		{Trigger: service.Command("end_chat"), Handler: s.EndChatCommand},
		{Trigger: service.Command("enable_memory"), Handler: s.EnableMemoryCommand},
		{Trigger: service.Command("disable_memory"), Handler: s.DisableMemoryCommand},
		{Trigger: service.AnyMessage, Handler: s.HandleMessage},
	}
}

// AskCommand handles /ask <question>.
func (s *Service) AskCommand(ctx context.Context, tg service.Replier, update *models.Update) {
	if update.Message == nil {
		return
	}

	question := service.CommandArgs(update.Message.Text)
	if question == "" {
		tg.SendMessage(ctx, &tbot.SendMessageParams{
			ChatID: update.Message.Chat.ID,
			Text:   s.cfg.Messages.AskUsage,
		})
		return
	}

	s.process(ctx, tg, update, question)
}

// HandleMessage treats a whole plain-text message as the question. Free-form
// messages are ignored in groups to avoid spam; commands still work there.
func (s *Service) HandleMessage(ctx context.Context, tg service.Replier, update *models.Update) {
	if update.Message == nil || update.Message.Text == "" {
		return
	}
	// Unknown commands also land on the default handler; they are not questions.
	if strings.HasPrefix(update.Message.Text, "/") {
		return
	}
	if !isPrivate(update) {
		return
	}

	s.process(ctx, tg, update, update.Message.Text)
}

// NewChatCommand handles /new_chat: rotates the server-side session so the
// conversation starts fresh.
func (s *Service) NewChatCommand(ctx context.Context, tg service.Replier, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	if s.sessions == nil {
		tg.SendMessage(ctx, &tbot.SendMessageParams{
			ChatID: chatID,
			Text:   "Conversation memory is not supported by the current backend.",
		})
		return
	}

	lock := s.chatLock(chatID)
	lock.Lock()
	defer lock.Unlock()

	if !s.memoryEnabled(ctx, chatID, isPrivate(update)) {
		// End any leftover session so it does not leak server-side.
		s.dropSession(ctx, chatID)
		tg.SendMessage(ctx, &tbot.SendMessageParams{
			ChatID: chatID,
			Text:   "Memory is disabled for this chat. Use /enable_memory to re-enable it.",
		})
		return
	}

	s.dropSession(ctx, chatID)

	sessionID, err := s.sessions.CreateSession(ctx)
	if err != nil {
		s.log.Error().Err(err).Int64("chat_id", chatID).Msg("unable to create new session")
		tg.SendMessage(ctx, &tbot.SendMessageParams{
			ChatID: chatID,
			Text:   "Failed to create a new chat session. Please try again.",
		})
		return
	}
	if err := s.store.SaveSession(ctx, chatID, sessionID); err != nil {
		s.log.Error().Err(err).Int64("chat_id", chatID).Msg("unable to save new session")
	}

	s.log.Info().Int64("chat_id", chatID).Str("session_id", sessionID).Msg("new session started")
	tg.SendMessage(ctx, &tbot.SendMessageParams{
		ChatID: chatID,
		Text:   "Started a new chat session! Your conversation history has been cleared.",
	})
}

// EndChatCommand handles /end_chat.
func (s *Service) EndChatCommand(ctx context.Context, tg service.Replier, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	lock := s.chatLock(chatID)
	lock.Lock()
	defer lock.Unlock()

	sessionID, ok, err := s.store.Session(ctx, chatID)
	if err != nil {
		s.log.Error().Err(err).Int64("chat_id", chatID).Msg("unable to look up session")
	}
	if !ok {
		tg.SendMessage(ctx, &tbot.SendMessageParams{
			ChatID: chatID,
			Text:   "No active chat session to end.",
		})
		return
	}

	// Clear locally even if the server-side delete fails.
	if s.sessions != nil {
		if err := s.sessions.DeleteSession(ctx, sessionID); err != nil {
			s.log.Warn().Err(err).Int64("chat_id", chatID).Msg("unable to delete session server-side")
		}
	}
	if err := s.store.ClearSession(ctx, chatID); err != nil {
		s.log.Error().Err(err).Int64("chat_id", chatID).Msg("unable to clear session")
	}

	s.log.Info().Int64("chat_id", chatID).Str("session_id", sessionID).Msg("session ended by user")
	tg.SendMessage(ctx, &tbot.SendMessageParams{
		ChatID: chatID,
		Text:   "Chat session ended. Your conversation history has been cleared.",
	})
}

// EnableMemoryCommand handles /enable_memory.
func (s *Service) EnableMemoryCommand(ctx context.Context, tg service.Replier, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	if err := s.store.SetMemoryPref(ctx, chatID, true); err != nil {
		s.log.Error().Err(err).Int64("chat_id", chatID).Msg("unable to enable memory")
		tg.SendMessage(ctx, &tbot.SendMessageParams{
			ChatID: chatID,
			Text:   s.cfg.Messages.GenericError,
		})
		return
	}

	tg.SendMessage(ctx, &tbot.SendMessageParams{
		ChatID: chatID,
		Text:   "Memory is now enabled for this chat.",
	})
}

// DisableMemoryCommand handles /disable_memory.
func (s *Service) DisableMemoryCommand(ctx context.Context, tg service.Replier, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	lock := s.chatLock(chatID)
	lock.Lock()
	defer lock.Unlock()

	if err := s.store.SetMemoryPref(ctx, chatID, false); err != nil {
		s.log.Error().Err(err).Int64("chat_id", chatID).Msg("unable to disable memory")
		tg.SendMessage(ctx, &tbot.SendMessageParams{
			ChatID: chatID,
			Text:   s.cfg.Messages.GenericError,
		})
		return
	}

	s.dropSession(ctx, chatID)

	tg.SendMessage(ctx, &tbot.SendMessageParams{
		ChatID: chatID,
		Text:   "Memory has been disabled for this chat (sessionless mode).",
	})
}

// process runs one question through the backend and sends exactly one reply.
func (s *Service) process(ctx context.Context, tg service.Replier, update *models.Update, question string) {
	chatID := update.Message.Chat.ID

	tg.SendChatAction(ctx, &tbot.SendChatActionParams{
		ChatID: chatID,
		Action: models.ChatActionTyping,
	})

	sessionID, ok := s.sessionFor(ctx, chatID, isPrivate(update))
	if !ok {
		tg.SendMessage(ctx, &tbot.SendMessageParams{
			ChatID: chatID,
			Text:   "Failed to initialize chat session. Please try the /new_chat command.",
		})
		return
	}

	s.log.Info().Int64("chat_id", chatID).Str("session_id", sessionID).Msg("ai request sending")
	res := s.asker.Ask(ctx, question, sessionID)
	if !res.OK() {
		s.log.Error().
			Int64("chat_id", chatID).
			Str("kind", string(res.Failure.Kind)).
			Str("detail", res.Failure.Detail).
			Msg("ask failed")
		tg.SendMessage(ctx, &tbot.SendMessageParams{
			ChatID: chatID,
			Text:   s.cfg.Messages.GenericError,
		})
		return
	}
	s.log.Info().Int64("chat_id", chatID).Msg("ai response received")

	tg.SendMessage(ctx, &tbot.SendMessageParams{
		ChatID: chatID,
		Text:   service.Truncate(res.Answer, service.MaxMessageLen),
	})
}

// sessionFor returns the session id to ask with. Empty with ok=true means a
// sessionless ask (memory off or unsupported); ok=false means memory is on
// but no session could be created, and the caller should not ask.
func (s *Service) sessionFor(ctx context.Context, chatID int64, private bool) (string, bool) {
	if !s.memoryEnabled(ctx, chatID, private) {
		return "", true
	}

	lock := s.chatLock(chatID)
	lock.Lock()
	defer lock.Unlock()

	sessionID, ok, err := s.store.Session(ctx, chatID)
	if err != nil {
		s.log.Error().Err(err).Int64("chat_id", chatID).Msg("unable to look up session")
	}
	if ok {
		return sessionID, true
	}

	sessionID, err = s.sessions.CreateSession(ctx)
	if err != nil {
		s.log.Error().Err(err).Int64("chat_id", chatID).Msg("unable to create session")
		return "", false
	}
	if err := s.store.SaveSession(ctx, chatID, sessionID); err != nil {
		s.log.Error().Err(err).Int64("chat_id", chatID).Msg("unable to save session")
	}

	s.log.Info().Int64("chat_id", chatID).Str("session_id", sessionID).Msg("session created for chat")
	return sessionID, true
}

// memoryEnabled applies the per-chat override, then the configured defaults.
func (s *Service) memoryEnabled(ctx context.Context, chatID int64, private bool) bool {
	if s.sessions == nil {
		return false
	}

	pref, err := s.store.MemoryPref(ctx, chatID)
	if err != nil {
		s.log.Error().Err(err).Int64("chat_id", chatID).Msg("unable to read memory pref")
	}
	if pref != nil {
		return *pref
	}

	if !s.cfg.MemoryDefault {
		return false
	}
	if !private {
		return s.cfg.MemoryInGroups
	}
	return true
}

// dropSession ends the chat's session server-side (best effort) and clears
// the local binding. Callers hold the chat lock.
func (s *Service) dropSession(ctx context.Context, chatID int64) {
	sessionID, ok, err := s.store.Session(ctx, chatID)
	if err != nil {
		s.log.Error().Err(err).Int64("chat_id", chatID).Msg("unable to look up session")
		return
	}
	if !ok {
		return
	}

	if s.sessions != nil {
		if err := s.sessions.DeleteSession(ctx, sessionID); err != nil {
			s.log.Warn().Err(err).Int64("chat_id", chatID).Msg("unable to delete session server-side")
		}
	}
	if err := s.store.ClearSession(ctx, chatID); err != nil {
		s.log.Error().Err(err).Int64("chat_id", chatID).Msg("unable to clear session")
	}
}

func (s *Service) chatLock(chatID int64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[chatID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[chatID] = lock
	}
	return lock
}

func isPrivate(update *models.Update) bool {
	return update.Message != nil && update.Message.Chat.Type == models.ChatTypePrivate
}
