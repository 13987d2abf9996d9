package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"

	"github.com/polkiloo/payledger/internal/config"
	"github.com/polkiloo/payledger/internal/worker"
)

// Module wires application services, runtime components, and lifecycle hooks.
var Module = fx.Options(
	fx.Provide(
		NewLedgerFacade,
		newHTTPServer,
		newWithdrawalProcessor,
	),
	fx.Invoke(registerLifecycle),
)

type serverParams struct {
	fx.In

	Config *config.Config
	Router *gin.Engine
}

func newHTTPServer(p serverParams) *http.Server {
	return &http.Server{
		Addr:    p.Config.OpsAddress,
		Handler: p.Router,
	}
}

type workerParams struct {
	fx.In

	Facade *LedgerFacade
	Config *config.Config
	Logger *slog.Logger
}

func newWithdrawalProcessor(p workerParams) *worker.WithdrawalProcessor {
	return worker.NewWithdrawalProcessor(
		p.Facade,
		p.Config.PollInterval,
		p.Config.BatchSize,
		p.Config.WorkerPoolSize,
		p.Logger,
	)
}

type lifecycleParams struct {
	fx.In

	Lifecycle  fx.Lifecycle
	Shutdowner fx.Shutdowner
	Logger     *slog.Logger
	Server     *http.Server
	Worker     *worker.WithdrawalProcessor
	Config     *config.Config
}

// registerLifecycle starts the worker and the ops server. On stop the server stops
// taking requests first, then the worker drains the payouts it already started.
// Both steps share one shutdown budget.
func registerLifecycle(p lifecycleParams) {
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			p.Logger.Info("starting payledger",
				slog.String("ops_addr", p.Server.Addr),
				slog.Duration("poll_interval", p.Config.PollInterval),
				slog.Int("workers", p.Config.WorkerPoolSize),
			)
			// ctx only bounds startup; the worker lives until OnStop.
			p.Worker.Start(context.WithoutCancel(ctx))
			go func() {
				if err := p.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					p.Logger.Error("ops server terminated", slog.String("error", err.Error()))
					_ = p.Shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx := ctx
			cancel := func() {}
			if _, ok := ctx.Deadline(); !ok {
				shutdownCtx, cancel = context.WithTimeout(ctx, p.Config.ShutdownTimeout)
			}
			defer cancel()

			serverErr := p.Server.Shutdown(shutdownCtx)
			if errors.Is(serverErr, http.ErrServerClosed) {
				serverErr = nil
			}

			if err := p.Worker.Stop(shutdownCtx); err != nil {
				p.Logger.Error("withdrawal worker did not drain, in-flight payouts are left for reconciliation",
					slog.String("error", err.Error()))
				return errors.Join(serverErr, err)
			}
			p.Logger.Info("withdrawal worker drained")

			if serverErr != nil {
				return serverErr
			}
			p.Logger.Info("payledger stopped")
			return nil
		},
	})
}
