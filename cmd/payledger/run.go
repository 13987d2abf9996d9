package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/fx"
)

// run blocks until a signal arrives or a component asks fx to shut down.
func run(ctx context.Context, app *fx.App) {
	if err := app.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "payledger: start: %v\n", err)
		os.Exit(1)
	}

	select {
	case <-ctx.Done():
	case sig := <-app.Wait():
		if sig.ExitCode != 0 {
			defer os.Exit(sig.ExitCode)
		}
	}

	// The stop hook bounds itself with the configured shutdown timeout.
	if err := app.Stop(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "payledger: stop: %v\n", err)
		os.Exit(1)
	}
}
