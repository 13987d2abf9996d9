package payout

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/polkiloo/payledger/internal/config"
)

// Module exposes payout gateway implementation to fx graph.
var Module = fx.Provide(newClient)

type clientParams struct {
	fx.In

	Config *config.Config
	Logger *slog.Logger
}

func newClient(p clientParams) (Gateway, error) {
	return NewHTTPClient(p.Config.PayoutGatewayAddress, p.Config.PayoutAPIKey, p.Config.PayoutTimeout, p.Logger)
}
