package main

import (
	"github.com/khodabot/khoda/internal/api"
	"github.com/khodabot/khoda/internal/bot"
	"github.com/khodabot/khoda/internal/config"
	"github.com/khodabot/khoda/internal/log"
	"github.com/khodabot/khoda/internal/service/llm"
	"github.com/khodabot/khoda/internal/service/ping"
	"github.com/khodabot/khoda/internal/service/report"
	"github.com/khodabot/khoda/internal/store"
	"go.uber.org/fx"
)

func main() {

	fx.New(
		config.Module(),
		log.Module(),
		store.Module(),
		api.Module(),
		llm.Module(),
		ping.Module(),
		report.Module(),
		bot.Module(),
	).Run()
}
