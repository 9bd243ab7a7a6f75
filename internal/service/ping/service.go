package ping

import (
	"context"
	"fmt"
	"time"

	tbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/fx"

	"github.com/khodabot/khoda/internal/service"
)

// Service answers /ping with the measured round-trip time of one send.
type Service struct{}

func New() *Service {
	return &Service{}
}

func (s *Service) Name() string {
	return "Ping Service"
}

func (s *Service) Description() string {
	return "Check bot response time"
}

func (s *Service) Handlers() []service.Binding {
	return []service.Binding{
		{Trigger: service.Command("ping"), Handler: s.PingCommand},
	}
}

// PingCommand handles /ping.
func (s *Service) PingCommand(ctx context.Context, tg service.Replier, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	start := time.Now()
	msg, err := tg.SendMessage(ctx, &tbot.SendMessageParams{
		ChatID: chatID,
		Text:   "Pinging...",
	})
	if err != nil || msg == nil {
		return
	}
	elapsed := time.Since(start)

	tg.EditMessageText(ctx, &tbot.EditMessageTextParams{
		ChatID:    chatID,
		MessageID: msg.ID,
		Text:      fmt.Sprintf("PONG! Response time: %dms", elapsed.Milliseconds()),
	})
}

// Module provides the ping service
func Module() fx.Option {
	return fx.Module(
		"ping",
		fx.Provide(
			New,
		),
	)
}
