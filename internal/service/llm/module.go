package llm

import (
	"github.com/rs/zerolog"
	"go.uber.org/fx"

	"github.com/khodabot/khoda/internal/api"
	"github.com/khodabot/khoda/internal/config"
	"github.com/khodabot/khoda/internal/store"
)

// Params for creating the LLM service
type Params struct {
	fx.In

	Asker    api.Asker
	Sessions api.Sessions `optional:"true"`
	Store    *store.Store
	Config   *config.Config
	Logger   zerolog.Logger
}

// NewFx creates the LLM service from its injected dependencies.
func NewFx(p Params) *Service {
	return New(p.Asker, p.Sessions, p.Store, p.Config, p.Logger)
}

// Module provides the LLM service
func Module() fx.Option {
	return fx.Module(
		"llm",
		fx.Provide(
			NewFx,
		),
	)
}
