// Package app provides the agriqa server application.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kart-io/agriqa/cmd/agriqa/app/options"
	"github.com/kart-io/agriqa/internal/agriqa"
	"github.com/kart-io/agriqa/pkg/infra/app"
	"github.com/kart-io/agriqa/pkg/infra/config"
)

// commandDesc is the description of the command.
const commandDesc = `Agricultural and climate Q&A service.

Answers natural-language questions about Indian crop production and
rainfall using public government datasets.

This server provides:
  - A cached dataset store backed by snapshots and the data.gov.in API
  - A relevance index over dataset and column descriptions
  - Question decomposition and cited answer synthesis with an LLM
  - Direct filtered access to the dataset catalog`

// NewApp creates and returns a new App object with default parameters.
func NewApp() *app.App {
	opts := options.NewServerOptions()
	return app.NewApp(
		app.WithName(agriqa.Name),
		app.WithShortDescription("Agricultural and climate Q&A service"),
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithRunFunc(run(opts)),
		app.WithConfigWatch(func(w *config.Watcher) {
			w.Subscribe("log-level", config.NewLogLevel(opts.LogOptions.Level, nil).Handler())
		}),
	)
}

// run contains the main logic for initializing and running the server.
func run(opts *options.ServerOptions) app.RunFunc {
	return func() error {
		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		// 启动阶段（加载数据集、建索引）同样响应中断信号
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		server, err := cfg.NewServer(ctx)
		if err != nil {
			return fmt.Errorf("failed to create server: %w", err)
		}
		return server.Run(ctx)
	}
}
