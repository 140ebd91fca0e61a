package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/keyroom-server/internal/adminclient"
	"github.com/vovakirdan/keyroom-server/internal/app"
	"github.com/vovakirdan/keyroom-server/internal/auth"
	"github.com/vovakirdan/keyroom-server/internal/config"
	applog "github.com/vovakirdan/keyroom-server/internal/log"
)

func main() {
	// A missing .env is fine; real deployments use the environment directly.
	_ = godotenv.Load()

	if err := execute(context.Background(), os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "keyroom: %v\n", err)
		os.Exit(1)
	}
}

// execute runs the CLI. Errors are returned, never printed by cobra.
func execute(ctx context.Context, args []string, stdout io.Writer) error {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	return root.ExecuteContext(ctx)
}

type rootOptions struct {
	configPath string
	server     string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "keyroom",
		Short:         "Key-gated chat room server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to config file")

	root.AddCommand(
		newServeCmd(opts),
		newIssueCmd(opts),
		newAnnounceCmd(opts),
		newTokenCmd(opts),
	)
	return root
}

// loadConfig reads file and env configuration, then applies overrides.
func loadConfig(opts *rootOptions, logger *zerolog.Logger, overrides config.Config) (config.Config, error) {
	cfg, path, err := config.Load(logger, opts.configPath)
	if err != nil {
		return cfg, err
	}
	cfg.UpdateFrom(overrides)
	if opts.server != "" {
		cfg.Admin.ServerURL = opts.server
	}
	logger.Debug().Str("config_path", path).Msg("config loaded")
	return cfg, nil
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	var flags config.Config

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the chat server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			bootLogger := applog.New("info", "console")
			cfg, err := loadConfig(opts, bootLogger, flags)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			logger := applog.New(cfg.LogLevel, cfg.LogFormat)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			application, err := app.New(ctx, &cfg, logger)
			if err != nil {
				return fmt.Errorf("init app: %w", err)
			}

			logger.Info().Str("addr", cfg.Addr).Str("storage", cfg.Storage.Backend).Msg("starting keyroom server")
			if err := application.Run(ctx); err != nil {
				logger.Error().Err(err).Msg("server exited with error")
				return err
			}
			logger.Info().Msg("server stopped")
			return nil
		},
	}

	cmd.Flags().StringVar(&flags.Addr, "addr", "", "HTTP listen address")
	cmd.Flags().StringVar(&flags.LogLevel, "log-level", "", "log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&flags.Storage.Backend, "storage", "", "storage backend (file, sqlite, badger)")
	cmd.Flags().DurationVar(&flags.ReadHeaderTimeout, "read-header-timeout", 0, "HTTP read header timeout")
	cmd.Flags().DurationVar(&flags.ShutdownTimeout, "shutdown-timeout", 0, "graceful shutdown timeout")
	return cmd
}

// adminClient mints a token from the shared secret and targets the configured server.
func adminClient(opts *rootOptions) (*adminclient.Client, error) {
	logger := applog.NewWithWriter(os.Stderr, "warn", "console")
	cfg, err := loadConfig(opts, logger, config.Config{})
	if err != nil {
		return nil, err
	}
	token, err := auth.FromConfig(cfg.Admin).IssueAdminToken()
	if err != nil {
		return nil, fmt.Errorf("admin token: %w", err)
	}
	return adminclient.New(cfg.Admin.ServerURL, token), nil
}

func newIssueCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "issue <owner>",
		Short: "Issue a one-time key for owner",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := adminClient(opts)
			if err != nil {
				return err
			}
			issued, err := client.IssueKey(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Access key for %s: %s\n", issued.Owner, issued.Key)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.server, "server", "", "server base URL (overrides admin.server_url)")
	return cmd
}

func newAnnounceCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "announce <text...>",
		Short: "Set the announcement shown to every viewer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := adminClient(opts)
			if err != nil {
				return err
			}
			text, err := client.SetAnnouncement(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Announcement set: %s\n", text)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.server, "server", "", "server base URL (overrides admin.server_url)")
	return cmd
}

func newTokenCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Print an admin bearer token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := applog.NewWithWriter(os.Stderr, "warn", "console")
			cfg, err := loadConfig(opts, logger, config.Config{})
			if err != nil {
				return err
			}
			token, err := auth.FromConfig(cfg.Admin).IssueAdminToken()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
}
