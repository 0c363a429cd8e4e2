package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/quillcms/quill/bootstrap"
	"github.com/quillcms/quill/config"
)

var hotReload bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	Long: `Start the Quill API server.

The server will:
  - Load configuration from quill.yaml (or --config)
  - Or load configuration from QUILL_* environment variables
  - Load the collection definitions and create their tables
  - Serve one CRUD route per collection

Environment variables (for Docker deployments):
  QUILL_DATABASE_DSN     - Database path (default: quill.db)
  QUILL_COLLECTIONS_DIR  - Collection definitions directory
  QUILL_SERVER_PORT      - Server port (default: 8090)
  QUILL_LOG_LEVEL        - Log level: debug, info, warn, error

Examples:
  quill serve
  quill serve --config /etc/quill/config.yaml
  quill serve --hot-reload=false`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&hotReload, "hot-reload", true, "enable hot reload of configuration")
}

func runServe(cmd *cobra.Command, args []string) error {
	// Optional .env for local development.
	_ = godotenv.Load()

	hasConfigFile := false
	if _, err := os.Stat(cfgFile); err == nil {
		hasConfigFile = true
	}

	var (
		cfg *config.Config
		err error
	)
	if hasConfigFile {
		cfg, err = config.Load(cfgFile)
	} else if config.HasEnvConfig() {
		cfg, err = config.FromEnv()
	} else {
		cfg, err = config.Load(cfgFile) // surfaces the missing-file error
	}
	if err != nil {
		return err
	}

	logger := newLogger(cfg.Logging)

	var holder *config.Holder
	if hasConfigFile && hotReload {
		holder, err = config.NewHolder(cfgFile, logger)
		if err != nil {
			return err
		}
		if err := holder.Watch(); err != nil {
			logger.Warn().Err(err).Msg("config hot reload unavailable")
			holder = nil
		} else {
			// Reloads adjust runtime settings; the log level takes
			// effect through the global threshold.
			holder.OnChange(func(c *config.Config) {
				applyLogLevel(c.Logging)
			})
			defer holder.Stop()
		}
	}

	application, err := bootstrap.New(cfg, logger)
	if err != nil {
		return err
	}

	if holder != nil && application.Metrics != nil {
		holder.SetCounter(application.Metrics)
	}

	return application.Run(context.Background())
}

// applyLogLevel sets the process-wide log threshold. Loggers carry no
// per-instance level so a config reload can raise or lower it.
func applyLogLevel(cfg config.LoggingConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}

// newLogger builds the process logger from config.
func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	applyLogLevel(cfg)

	var logger zerolog.Logger
	if cfg.Format == "console" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		logger = zerolog.New(os.Stderr)
	}

	return logger.With().Timestamp().Logger()
}
