package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/groupchat-server/internal/app"
	"github.com/vovakirdan/groupchat-server/internal/config"
	"github.com/vovakirdan/groupchat-server/internal/core"
	"github.com/vovakirdan/groupchat-server/internal/log"
)

type rootFlags struct {
	configPath  string
	addr        string
	logLevel    string
	databaseURL string
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:          "groupchat-server",
		Short:        "Real-time group chat over WebSocket",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(flags)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			application, err := app.New(ctx, &cfg, logger)
			if err != nil {
				return err
			}
			if err := application.Run(ctx); err != nil {
				logger.Error().Err(err).Msg("server exited with error")
				return err
			}
			logger.Info().Msg("server stopped")
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "path to config file")
	pf.StringVar(&flags.addr, "addr", "", "HTTP listen address")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	pf.StringVar(&flags.databaseURL, "database-url", "", "postgres URL or SQLite file path")

	root.AddCommand(newHistoryCmd(flags))
	return root
}

func newHistoryCmd(flags *rootFlags) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print the most recent chat messages, oldest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit <= 0 {
				return fmt.Errorf("--limit must be positive, got %d", limit)
			}

			cfg, logger, err := loadConfig(flags)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			st, err := app.OpenStore(ctx, &cfg, logger)
			if err != nil {
				return err
			}
			defer st.Close()

			rows, err := st.Recent(ctx, limit)
			if err != nil {
				return fmt.Errorf("load history: %w", err)
			}

			out := cmd.OutOrStdout()
			for i := len(rows) - 1; i >= 0; i-- {
				row := rows[i]
				fmt.Fprintf(out, "%s [%s] %s\n", row.CreatedAt.Format("2006-01-02 15:04:05"), row.Username, row.Content)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", core.DefaultHistoryLimit, "number of messages to print")
	return cmd
}

// loadConfig resolves configuration with CLI flags taking precedence.
func loadConfig(flags *rootFlags) (config.Config, *zerolog.Logger, error) {
	bootLogger := log.New("info", "console")

	cfg, path, err := config.Load(bootLogger, flags.configPath)
	if err != nil {
		return cfg, nil, fmt.Errorf("load config: %w", err)
	}
	cfg.UpdateFrom(config.Config{
		Addr:        flags.addr,
		LogLevel:    flags.logLevel,
		DatabaseURL: flags.databaseURL,
	})

	logger := log.New(cfg.LogLevel, cfg.LogFormat)
	logger.Debug().Str("config", path).Msg("configuration loaded")
	return cfg, logger, nil
}
