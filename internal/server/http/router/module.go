package router

import (
	"go.uber.org/fx"

	"github.com/polkiloo/payledger/internal/app"
	"github.com/polkiloo/payledger/internal/server/http/handlers"
)

// Module registers HTTP router construction for fx runtime.
var Module = fx.Options(
	fx.Provide(func(f *app.LedgerFacade) handlers.OpsFacade { return f }),
	fx.Provide(Setup),
)
