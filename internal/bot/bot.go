package bot

import (
	"context"
	"runtime/debug"
	"strings"

	tbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog"
	"go.uber.org/fx"

	"github.com/khodabot/khoda/internal/config"
	"github.com/khodabot/khoda/internal/service"
	"github.com/khodabot/khoda/internal/service/llm"
	"github.com/khodabot/khoda/internal/service/ping"
	"github.com/khodabot/khoda/internal/service/report"
)

// registrar is the slice of the Telegram dispatcher the orchestrator needs
// for command bindings. *tbot.Bot satisfies it.
type registrar interface {
	RegisterHandler(handlerType tbot.HandlerType, pattern string, matchType tbot.MatchType, f tbot.HandlerFunc, m ...tbot.Middleware) string
}

// Orchestrator composes the services into the Telegram dispatcher. Bindings
// are registered per service in declaration order; when two services claim
// the same trigger the last registration wins.
type Orchestrator struct {
	services []service.Service
	messages config.Messages
	log      zerolog.Logger
}

func NewOrchestrator(services []service.Service, messages config.Messages, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		services: services,
		messages: messages,
		log:      log.With().Str("component", "bot").Logger(),
	}
}

// Register binds every command trigger onto the dispatcher, plus the
// built-in /start /help /hi welcome handler, and returns the number of
// service bindings registered (any-message bindings included).
func (o *Orchestrator) Register(r registrar) int {
	welcome := adapt(o.wrap("bot", o.welcomeHandler))
	for _, cmd := range []string{"start", "help", "hi"} {
		r.RegisterHandler(tbot.HandlerTypeMessageText, cmd, tbot.MatchTypeCommand, welcome)
	}

	count := 0
	for _, svc := range o.services {
		for _, binding := range svc.Handlers() {
			count++
			if !binding.Trigger.IsCommand() {
				// The any-message slot is wired through DefaultHandler
				// at dispatcher construction.
				continue
			}
			r.RegisterHandler(
				tbot.HandlerTypeMessageText,
				binding.Trigger.Name(),
				tbot.MatchTypeCommand,
				adapt(o.wrap(svc.Name(), binding.Handler)),
			)
			o.log.Info().
				Str("service", svc.Name()).
				Str("command", binding.Trigger.Name()).
				Msg("handler registered")
		}
	}
	return count
}

// DefaultHandler returns the wrapped handler for the any-message trigger,
// or nil when no service claims it. Last-registered-wins on conflict.
func (o *Orchestrator) DefaultHandler() tbot.HandlerFunc {
	var h service.HandlerFunc
	name := ""
	for _, svc := range o.services {
		for _, binding := range svc.Handlers() {
			if !binding.Trigger.IsCommand() {
				h = binding.Handler
				name = svc.Name()
			}
		}
	}
	if h == nil {
		return nil
	}
	o.log.Info().Str("service", name).Msg("default handler registered")
	return adapt(o.wrap(name, h))
}

// wrap is the dispatch-wide safety net: a panicking handler is logged and
// answered with one generic error reply instead of taking down the
// dispatch loop.
func (o *Orchestrator) wrap(svcName string, h service.HandlerFunc) service.HandlerFunc {
	return func(ctx context.Context, tg service.Replier, update *models.Update) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			o.log.Error().
				Str("service", svcName).
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("handler panicked")
			if update != nil && update.Message != nil {
				tg.SendMessage(ctx, &tbot.SendMessageParams{
					ChatID: update.Message.Chat.ID,
					Text:   o.messages.GenericError,
				})
			}
		}()
		h(ctx, tg, update)
	}
}

func (o *Orchestrator) welcomeHandler(ctx context.Context, tg service.Replier, update *models.Update) {
	if update.Message == nil {
		return
	}

	lines := make([]string, 0, len(o.services))
	for _, svc := range o.services {
		lines = append(lines, "- "+svc.Description())
	}
	servicesText := "- No additional services loaded"
	if len(lines) > 0 {
		servicesText = strings.Join(lines, "\n")
	}

	tg.SendMessage(ctx, &tbot.SendMessageParams{
		ChatID: update.Message.Chat.ID,
		Text:   o.messages.Welcome + "\n\nLoaded services:\n" + servicesText,
	})
}

// adapt turns a service handler into the dispatcher's handler shape.
func adapt(h service.HandlerFunc) tbot.HandlerFunc {
	return func(ctx context.Context, tg *tbot.Bot, update *models.Update) {
		h(ctx, tg, update)
	}
}

type Params struct {
	fx.In

	Config *config.Config
	LLM    *llm.Service
	Ping   *ping.Service
	Report *report.Service
}

type Result struct {
	fx.Out

	Bot *tbot.Bot
}

func New(lc fx.Lifecycle, p Params, log zerolog.Logger) (Result, error) {
	// Static, ordered service composition; registration order follows it.
	services := []service.Service{p.LLM, p.Ping, p.Report}

	orch := NewOrchestrator(services, p.Config.Messages, log)

	var opts []tbot.Option
	if dh := orch.DefaultHandler(); dh != nil {
		opts = append(opts, tbot.WithDefaultHandler(dh))
	}

	tg, err := tbot.New(p.Config.Token, opts...)
	if err != nil {
		return Result{}, err
	}

	count := orch.Register(tg)
	log.Info().Int("bindings", count).Int("services", len(services)).Msg("services registered")

	lc.Append(
		fx.Hook{
			OnStart: func(ctx context.Context) error {
				log.Info().Msg("starting telegram bot...")
				go tg.Start(context.Background())
				return nil
			},
			OnStop: func(ctx context.Context) error {
				log.Info().Msg("stopping telegram bot...")
				return nil
			},
		},
	)

	return Result{Bot: tg}, nil
}

func Module() fx.Option {
	return fx.Module(
		"bot",
		fx.Provide(
			New,
		),
		fx.Invoke(
			func(bot *tbot.Bot) {},
		),
	)
}
