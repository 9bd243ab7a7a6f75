package report

import (
	"context"
	"fmt"

	tbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog"
	"go.uber.org/fx"

	"github.com/khodabot/khoda/internal/config"
	"github.com/khodabot/khoda/internal/service"
	"github.com/khodabot/khoda/internal/store"
)

// ReportStore persists user reports. *store.Store implements it.
type ReportStore interface {
	SaveReport(ctx context.Context, r store.Report) error
}

// Service lets users send reports to the administrators via /report.
type Service struct {
	store ReportStore
	cfg   *config.Config
	log   zerolog.Logger
}

func New(store ReportStore, cfg *config.Config, log zerolog.Logger) *Service {
	return &Service{
		store: store,
		cfg:   cfg,
		log:   log.With().Str("service", "report").Logger(),
	}
}

func (s *Service) Name() string {
	return "Report Service"
}

func (s *Service) Description() string {
	return "Allow users to send reports to administrators"
}

func (s *Service) Handlers() []service.Binding {
	return []service.Binding{
		{Trigger: service.Command("report"), Handler: s.ReportCommand},
	}
}

// ReportCommand handles /report <message>.
func (s *Service) ReportCommand(ctx context.Context, tg service.Replier, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	message := service.CommandArgs(update.Message.Text)
	if message == "" {
		tg.SendMessage(ctx, &tbot.SendMessageParams{
			ChatID: chatID,
			Text:   s.cfg.Messages.ReportUsage,
		})
		return
	}

	var userID int64
	username := "unknown"
	if update.Message.From != nil {
		userID = update.Message.From.ID
		if update.Message.From.Username != "" {
			username = update.Message.From.Username
		} else {
			username = fmt.Sprintf("user_%d", userID)
		}
	}

	// Include the replied-to message text when the report is a reply.
	repliedTo := ""
	if update.Message.ReplyToMessage != nil {
		replied := update.Message.ReplyToMessage
		switch {
		case replied.Text != "":
			repliedTo = replied.Text
		case replied.Caption != "":
			repliedTo = replied.Caption
		default:
			repliedTo = "<non-text message>"
		}
	}

	err := s.store.SaveReport(ctx, store.Report{
		ChatID:    chatID,
		UserID:    userID,
		Username:  username,
		Message:   message,
		RepliedTo: repliedTo,
	})
	if err != nil {
		s.log.Error().Err(err).Int64("chat_id", chatID).Msg("unable to save report")
		tg.SendMessage(ctx, &tbot.SendMessageParams{
			ChatID: chatID,
			Text:   "Failed to save report. Please try again later.",
		})
		return
	}

	s.log.Info().
		Int64("chat_id", chatID).
		Str("username", username).
		Msg("report saved")
	tg.SendMessage(ctx, &tbot.SendMessageParams{
		ChatID: chatID,
		Text:   "Report sent successfully! Thank you for your feedback.",
	})
}

// Module provides the report service
func Module() fx.Option {
	return fx.Module(
		"report",
		fx.Provide(
			func(s *store.Store, cfg *config.Config, log zerolog.Logger) *Service {
				return New(s, cfg, log)
			},
		),
	)
}
