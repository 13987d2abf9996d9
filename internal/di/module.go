package di

import (
	"go.uber.org/fx"

	"github.com/polkiloo/payledger/internal/adapter/payout"
	"github.com/polkiloo/payledger/internal/app"
	"github.com/polkiloo/payledger/internal/config"
	"github.com/polkiloo/payledger/internal/logger"
	"github.com/polkiloo/payledger/internal/pkg/auth"
	"github.com/polkiloo/payledger/internal/server/http/router"
	"github.com/polkiloo/payledger/internal/storage/postgres"
	"github.com/polkiloo/payledger/internal/usecase"
)

func Module(opts ...fx.Option) fx.Option {
	modules := []fx.Option{
		config.Module,
		logger.Module,
		auth.Module,
		postgres.Module,
		payout.Module,
		usecase.Module,
		fx.Provide(func(s *postgres.Storage) app.HealthChecker { return s }),
		router.Module,
		app.Module,
	}
	modules = append(modules, opts...)
	return fx.Options(modules...)
}
