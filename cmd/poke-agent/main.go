package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"pokeagent/internal/config"
	"pokeagent/internal/logger"
	"pokeagent/pkg/logging"
)

var (
	configFile string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "poke-agent",
		Short:         "HTTP poke agent",
		Long:          "Checks the HTTP and HTTPS reachability of domains and reports status and latency to a metrics store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Activate debug mode")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Activate verbose mode")

	rootCmd.AddCommand(onceCmd(), daemonCmd())
	return rootCmd
}

// commonBindings binds the persistent flags of cmd.
func commonBindings(cmd *cobra.Command) []config.FlagBinding {
	return []config.FlagBinding{
		{Key: "agent.debug", Flag: cmd.Flags().Lookup("debug")},
		{Key: "check.verbose", Flag: cmd.Flags().Lookup("verbose")},
	}
}

func warp10Flags(cmd *cobra.Command) {
	cmd.Flags().StringP("warp10-url", "u", "http://localhost:8080/", "Url of the Warp10 datastore")
	cmd.Flags().StringP("warp10-token", "t", "", "Token to write in the Warp10 datastore")
}

func warp10Bindings(cmd *cobra.Command) []config.FlagBinding {
	return []config.FlagBinding{
		{Key: "store.warp10.url", Flag: cmd.Flags().Lookup("warp10-url")},
		{Key: "store.warp10.token", Flag: cmd.Flags().Lookup("warp10-token")},
	}
}

func configPath() string {
	if configFile != "" {
		return configFile
	}
	return os.Getenv("CONFIG_FILE")
}

func onceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "once <domain>",
		Short: "Check one domain and post the result to Warp 10",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			earlyLog := logging.NewEarlyLog()

			bindings := append(commonBindings(cmd), warp10Bindings(cmd)...)
			cfg, err := config.LoadOnceConfig(configPath(), bindings...)
			if err != nil {
				earlyLog.Error("Failed to load config: %v", err)
				return err
			}

			log, err := logger.New(cfg.Logging.Level, "console")
			if err != nil {
				earlyLog.Error("Failed to init logger: %v", err)
				return err
			}
			defer log.Sync()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			return runOnce(ctx, cfg, log, args[0], cmd.OutOrStdout())
		},
	}

	warp10Flags(cmd)
	return cmd
}

func daemonCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon [rabbitmq-url]",
		Short: "Consume check requests from the broker until stopped",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			earlyLog := logging.NewEarlyLog()

			bindings := append(commonBindings(cmd), warp10Bindings(cmd)...)
			bindings = append(bindings, config.FlagBinding{
				Key:  "agent.buffer_in_seconds",
				Flag: cmd.Flags().Lookup("buffer_in_seconds"),
			})
			if len(args) == 1 {
				bindings = append(bindings, config.FlagBinding{Key: "broker.rabbitmq.url", Value: args[0]})
			}

			cfg, err := config.LoadConfig(configPath(), bindings...)
			if err != nil {
				earlyLog.Error("Failed to load config: %v", err)
				return err
			}

			log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
			if err != nil {
				earlyLog.Error("Failed to init logger: %v", err)
				return err
			}
			defer log.Sync()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			log.InfowCtx(ctx, "Starting poke agent",
				"broker", cfg.Broker.Type,
				"store", cfg.Store.Type,
			)

			app := NewApp(cfg, log)
			if err := app.Initialize(ctx); err != nil {
				log.Errorw("Failed to initialize application", "error", err)
				if shutdownErr := app.Shutdown(context.Background()); shutdownErr != nil {
					log.Errorw("Shutdown error", "error", shutdownErr)
				}
				return err
			}

			runErr := app.Run(ctx)
			if runErr != nil {
				log.ErrorwCtx(ctx, "Application error", "error", runErr)
			}

			if err := app.Shutdown(context.Background()); err != nil {
				log.Errorw("Shutdown error", "error", err)
				if runErr == nil {
					runErr = err
				}
			}
			return runErr
		},
	}

	cmd.Flags().IntP("buffer_in_seconds", "s", 10, "Time in seconds, for buffer to send data in warp10")
	warp10Flags(cmd)
	return cmd
}
