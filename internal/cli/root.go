package cli

import (
	"os"

	"github.com/spf13/cobra"
	"medquiz-service/internal/config"
	"medquiz-service/internal/logger"
)

var (
	port       string
	configPath string
	apiURL     string
	logLevel   string
)

// Execute runs the CLI.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	envPort := os.Getenv("PORT")
	envConfig := os.Getenv("CONFIG_PATH")
	if envConfig == "" {
		envConfig = "config/config.yaml"
	}

	cmd := &cobra.Command{
		Use:          "medquiz",
		Short:        "Medical MCQ practice: question API server and quiz client",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&port, "port", envPort, "port to listen on")
	cmd.PersistentFlags().StringVar(&configPath, "config", envConfig, "path to YAML config")
	cmd.PersistentFlags().StringVar(&apiURL, "api", os.Getenv("MEDQUIZ_API"), "base URL of the question API")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	cmd.AddCommand(NewStartCmd(&configPath, &port))
	cmd.AddCommand(NewMigrateCmd(&configPath))
	cmd.AddCommand(NewQuizCmd(&configPath, &apiURL))
	cmd.AddCommand(NewSetsCmd(&configPath, &apiURL))
	return cmd
}

// loadConfig reads the config file if present and configures logging from it. The --log-level
// flag overrides the file.
func loadConfig(path string) (config.Config, error) {
	cfg, err := config.LoadOptional(path)
	if err != nil {
		return cfg, err
	}
	level := cfg.Log.Level
	if logLevel != "" {
		level = logLevel
	}
	if err := logger.Configure(logger.Options{Level: level, File: cfg.Log.File}); err != nil {
		logger.Warn("logger configuration incomplete", "error", err)
	}
	return cfg, nil
}
