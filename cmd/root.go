// Package cmd defines and implements the CLI commands for the fetcher executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/fetcher/internal/app"
	"github.com/JakeFAU/fetcher/internal/config"
	"github.com/JakeFAU/fetcher/internal/fetcher"
	"github.com/JakeFAU/fetcher/internal/sink"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App defines the application interface that commands will use.
// This allows tests to inject their own engine and configuration.
type App interface {
	Close()
	Config() config.Config
	GetLogger() *zap.Logger
	GetEngine() *fetcher.Engine
	GetSink() sink.Sink
}

// newApp is the application factory. Tests replace it.
var newApp = func(ctx context.Context, cfgPath string) (App, error) {
	return app.NewApp(ctx, cfgPath)
}

// rootCommand owns the App built for a run so it is closed even when a
// subcommand fails. Cobra skips post-run hooks after a RunE error.
type rootCommand struct {
	*cobra.Command
	app App
}

func newRootCmd() *rootCommand {
	var cfgFile string
	root := &rootCommand{}

	root.Command = &cobra.Command{
		Use:   "fetcher",
		Short: "A bounded-concurrency HTTP fetch executor.",
		Long: `fetcher runs batches of HTTP requests under a global concurrency cap,
optionally serializing requests to the same host, and reports one result per
request. Use "fetch" for one-off runs and "serve" to expose the engine over HTTP.`,
		SilenceUsage: true,

		// Builds the application before any subcommand runs.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := newApp(cmd.Context(), cfgFile)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			root.app = appInstance
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./fetcher.yaml)")

	root.AddCommand(newFetchCmd())
	root.AddCommand(newServeCmd())

	return root
}

// execute runs the command tree and closes the App on every exit path.
func (r *rootCommand) execute(ctx context.Context) error {
	defer func() {
		if r.app != nil {
			r.app.Close()
			r.app = nil
		}
	}()
	return r.ExecuteContext(ctx)
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point. SIGINT and SIGTERM cancel the command's context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().execute(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
