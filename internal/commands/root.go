// Package commands implements the finctl subcommands.
package commands

import (
	"context"
	"errors"
	"io"

	"github.com/spf13/cobra"

	"github.com/gaborage/finbricks/app"
	"github.com/gaborage/finbricks/config"
	"github.com/gaborage/finbricks/httpclient"
	"github.com/gaborage/finbricks/logger"
)

// AppFactory creates the application for one command run. Logs go to logOut
// so they never mix with response bodies on stdout.
type AppFactory func(ctx context.Context, configPath string, logOut io.Writer) (*app.App, error)

// DefaultAppFactory loads configuration from configPath and the environment.
func DefaultAppFactory(ctx context.Context, configPath string, logOut io.Writer) (*app.App, error) {
	cfg, err := config.LoadFrom(configPath)
	if err != nil {
		return nil, err
	}
	log := logger.NewWithWriter(logOut, cfg.Log.Level, cfg.Log.Pretty, logger.DefaultFilterConfig())
	return app.NewWithConfig(ctx, cfg, &app.Options{Logger: log})
}

type rootOptions struct {
	configPath string
	factory    AppFactory
}

// NewRootCommand builds finctl with every subcommand attached.
func NewRootCommand(version string, factory AppFactory) *cobra.Command {
	if factory == nil {
		factory = DefaultAppFactory
	}
	opts := &rootOptions{factory: factory}

	root := &cobra.Command{
		Use:   "finctl",
		Short: "Call the finbricks API with automatic token refresh and retries",
		Long: `finctl sends authenticated requests to the finbricks API.

Expired access tokens are refreshed once and the request replayed; 502, 503
and 504 responses on idempotent requests are retried with linear backoff.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", config.DefaultFile, "Path to the YAML configuration file")

	root.AddCommand(
		newLoginCommand(opts),
		newLogoutCommand(opts),
		newStatusCommand(opts),
		newRequestCommand(opts, "get"),
		newRequestCommand(opts, "post"),
		newRequestCommand(opts, "put"),
		newRequestCommand(opts, "patch"),
		newRequestCommand(opts, "delete"),
		newVersionCommand(version),
	)
	return root
}

// withApp creates the application, runs fn and closes the application.
func (o *rootOptions) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) (err error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := o.factory(ctx, o.configPath, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, a.Close())
	}()
	return fn(ctx, a)
}

// UserMessage returns the text shown to the user for err: the fixed message
// of a classified API failure, or the error itself otherwise.
func UserMessage(err error) string {
	var ce *httpclient.ClassifiedError
	if errors.As(err, &ce) {
		return ce.Message
	}
	return err.Error()
}
