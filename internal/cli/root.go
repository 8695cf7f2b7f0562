// Package cli provides the command-line interface for the paper trading
// application.
package cli

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"paper-trader/internal/config"
	"paper-trader/internal/feed"
	"paper-trader/internal/logging"
	"paper-trader/internal/store"
	"paper-trader/internal/trading"
)

// Version information
const (
	Version = "0.1.0"
)

// App holds the application dependencies.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	Store  store.DataStore
	Feed   feed.SpotFeed
	Desk   *trading.Desk
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	switch cfg.Store.Backend {
	case "memory":
		app.Store = store.NewMemoryStore()
		logger.Debug().Msg("In-memory store initialized")
	default:
		dataStore, err := store.NewSQLiteStore(cfg.Store.Path)
		if err != nil {
			logger.Warn().Err(err).Str("path", cfg.Store.Path).
				Msg("Failed to open SQLite store, falling back to in-memory")
			app.Store = store.NewMemoryStore()
		} else {
			app.Store = dataStore
			logger.Debug().Str("path", cfg.Store.Path).Msg("SQLite store initialized")
		}
	}

	app.Feed = feed.NewYahooFeed(cfg.Feed.Timeout, logger)
	app.Desk = trading.NewDesk(app.Store, app.Feed, logger)
	app.Desk.SetSessionOffset(cfg.Trading.SessionOffsetMinutes)

	rootCmd := &cobra.Command{
		Use:   "paper-trader",
		Short: "Paper Trader - simulated trading for the Indian market",
		Long: `Paper Trader simulates stock and options trading on the Indian market
with virtual cash. Spot prices come from a live feed with deterministic
fallbacks, option premiums are synthesized from spot, and every
settlement is journalled.

Use 'paper-trader serve' to run the HTTP API, or trade directly from
the command line with 'paper-trader buy', 'close' and 'portfolio'.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/paper-trader)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().String("user", "default", "user ID to trade as")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	rootCmd.AddCommand(newServeCmd(app))
	rootCmd.AddCommand(newStatusCmd(app))
	rootCmd.AddCommand(newChainCmd(app))
	rootCmd.AddCommand(newBuyCmd(app))
	rootCmd.AddCommand(newSellCmd(app))
	rootCmd.AddCommand(newCloseCmd(app))
	rootCmd.AddCommand(newCloseAllCmd(app))
	rootCmd.AddCommand(newPortfolioCmd(app))
	rootCmd.AddCommand(newBalanceCmd(app))
	rootCmd.AddCommand(newExportCmd(app))

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"version": Version})
			} else {
				output.Printf("Paper Trader v%s\n", Version)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and manage application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			return showConfig(output, app.Config)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"path": config.DefaultConfigDir()})
			} else {
				output.Println(config.DefaultConfigDir())
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration files",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				output.JSON(map[string]bool{"valid": true})
			} else {
				output.Success("Configuration is valid")
			}
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) error {
	output.Bold("Server")
	output.Printf("  Addr:             %s\n", cfg.Server.Addr)
	output.Printf("  Shutdown Timeout: %s\n", cfg.Server.ShutdownTimeout)
	output.Println()

	output.Bold("Trading")
	output.Printf("  Initial Balance:  %.2f\n", cfg.Trading.InitialBalance)
	output.Printf("  Session Offset:   %d min\n", cfg.Trading.SessionOffsetMinutes)
	output.Println()

	output.Bold("Store")
	output.Printf("  Backend:          %s\n", cfg.Store.Backend)
	output.Printf("  Path:             %s\n", cfg.Store.Path)
	output.Println()

	output.Bold("Feed")
	output.Printf("  Timeout:          %s\n", cfg.Feed.Timeout)
	output.Printf("  Poll Interval:    %s\n", cfg.Feed.PollInterval)
	output.Printf("  Symbols:          %v\n", cfg.Feed.Symbols)

	return nil
}

func userID(cmd *cobra.Command) string {
	user, _ := cmd.Flags().GetString("user")
	if user == "" {
		user = "default"
	}
	return user
}
