// Package cli provides the tradectl command-line interface: listing and
// watching the trade book, and submitting or editing trade versions.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tradebook/trade-service/internal/client"
	"github.com/tradebook/trade-service/internal/config"
	"github.com/tradebook/trade-service/internal/notify"
	"github.com/tradebook/trade-service/internal/tradedate"
)

// Version information
const Version = "0.1.0"

// App holds the dependencies shared by every command. It is populated in
// the root PersistentPreRunE once flags have been parsed.
type App struct {
	Config config.Client
	Client *client.Client
	Bus    *notify.Bus
	Now    func() time.Time

	viper *viper.Viper
}

// Today is the local calendar day used for form defaults and validation.
func (a *App) Today() tradedate.Date {
	return tradedate.Today(a.Now())
}

// requestContext bounds one command's requests by the configured timeout.
func (a *App) requestContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), a.Config.Timeout)
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd() *cobra.Command {
	app := &App{
		Bus:   notify.NewBus(),
		Now:   time.Now,
		viper: config.NewClientViper(),
	}

	var configDir string
	rootCmd := &cobra.Command{
		Use:   "tradectl",
		Short: "Trade book client",
		Long: `tradectl lists, watches and submits trades against a trade API.

The API location comes from --api-base or TRADES_API_BASE, for example
https://trades.example.com/api/trades. Without it the local default
http://localhost/api/trades is used.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadClient(app.viper, configDir)
			if err != nil {
				return err
			}
			app.Config = cfg

			var level slog.Level
			if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
				return fmt.Errorf("invalid log level %q", cfg.LogLevel)
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))

			app.Client = client.New(cfg.Origin, cfg.TradesPath, &http.Client{Timeout: cfg.Timeout})
			slog.Debug("client configured", "origin", cfg.Origin, "trades_path", cfg.TradesPath, "timeout", cfg.Timeout.String())
			return nil
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String(config.KeyAPIBase, "", "trade API base URL (env TRADES_API_BASE)")
	rootCmd.PersistentFlags().Duration(config.KeyTimeout, config.DefaultClientTimeout, "request timeout")
	rootCmd.PersistentFlags().String(config.KeyLogLevel, "warn", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&configDir, "config", config.DefaultConfigDir(), "directory holding tradectl.toml")
	for _, key := range []string{config.KeyAPIBase, config.KeyTimeout, config.KeyLogLevel} {
		app.viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(key))
	}

	rootCmd.AddCommand(newListCmd(app))
	rootCmd.AddCommand(newWatchCmd(app))
	rootCmd.AddCommand(newSubmitCmd(app))
	rootCmd.AddCommand(newEditCmd(app))
	rootCmd.AddCommand(newHealthCmd(app))

	return rootCmd
}

func newHealthCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the trade API is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := app.requestContext(cmd)
			defer cancel()
			if err := app.Client.Health(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
}
