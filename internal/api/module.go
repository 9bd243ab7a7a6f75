package api

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"go.uber.org/fx"

	"github.com/khodabot/khoda/internal/config"
)

// Params for creating the LLM backend
type Params struct {
	fx.In

	Config *config.Config
	Logger zerolog.Logger
}

// Result of creating the LLM backend
type Result struct {
	fx.Out

	Asker    Asker
	Sessions Sessions
}

// New creates the configured LLM backend. Sessions is nil for backends
// without server-side conversation support.
func New(lc fx.Lifecycle, p Params) (Result, error) {
	switch p.Config.Provider {
	case "khoda":
		client := NewClient(
			p.Config.APIBaseURL,
			p.Config.APIUsername,
			p.Config.APIPassword,
			p.Config.AskTimeout,
			p.Logger,
		)

		lc.Append(
			fx.Hook{
				OnStart: func(ctx context.Context) error {
					client.Init()
					return nil
				},
				OnStop: func(ctx context.Context) error {
					client.Shutdown()
					return nil
				},
			},
		)

		return Result{Asker: client, Sessions: client}, nil

	case "openai":
		asker, err := NewOpenAIAsker(
			p.Config.OpenAIAPIKey,
			p.Config.OpenAIBaseURL,
			p.Config.OpenAIModel,
		)
		if err != nil {
			return Result{}, err
		}
		return Result{Asker: asker, Sessions: nil}, nil

	default:
		return Result{}, fmt.Errorf("unknown LLM provider %q", p.Config.Provider)
	}
}

// Module provides the LLM backend
func Module() fx.Option {
	return fx.Module(
		"api",
		fx.Provide(
			New,
		),
	)
}
