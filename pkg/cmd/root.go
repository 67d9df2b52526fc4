package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/smy-101/skillpack/internal/config"
	"github.com/smy-101/skillpack/internal/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var logLevelFlag string

var rootCmd = &cobra.Command{
	Use:   "skillpack",
	Short: "Discover and package skills from GitHub repositories",
	Long: `skillpack scans a GitHub repository for SKILL.md manifests and packages
the selected skills into files or ZIP archives under claude-skills/.`,

	CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
	SilenceUsage:      true,
	SilenceErrors:     true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogging()
	},

	// 直接运行 `skillpack` 时打印 help
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "log level (debug, info, warn, error)")
}

// setupLogging applies log_level and log_format. Invalid config values
// are reported by the commands that load settings.
func setupLogging() error {
	level := viper.GetString(config.KeyLogLevel)
	if logLevelFlag != "" {
		level = logLevelFlag
	}
	if level != "" {
		if err := logger.SetLogLevel(level); err != nil {
			return fmt.Errorf("invalid log level %q: %w", level, err)
		}
	}
	logger.SetLogFormat(viper.GetString(config.KeyLogFormat))
	return nil
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		printError(err)
		stop()
		os.Exit(1)
	}
}
