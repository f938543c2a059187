package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jingkaihe/skillfetch/pkg/logger"
	"github.com/jingkaihe/skillfetch/pkg/presenter"
)

var rootCmd = &cobra.Command{
	Use:   "skillfetch [query] [min-stars]",
	Short: "Download Claude skills from the SkillsMP marketplace",
	Long: `Download Claude skills from the SkillsMP marketplace.

skillfetch searches the marketplace for skills matching a query, filters them
by star count, and downloads their bundles to the local skills directory.
Already downloaded skills are skipped, so an interrupted run can be resumed
by running the same command again.

Examples:
  skillfetch SEO 1000
  skillfetch --all --min-stars 500 --workers 10
  skillfetch --top 100 --retry 3 --organize`,
	Args: cobra.MaximumNArgs(2),
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		if err := logger.SetLogLevel(viper.GetString("log_level")); err != nil {
			return err
		}
		logger.SetLogFormat(viper.GetString("log_format"))
		presenter.SetQuiet(viper.GetBool("quiet"))
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		if err := runDownload(cmd.Context(), args); err != nil {
			presenter.Error(err, "Download run could not start")
			os.Exit(1)
		}
	},
}

func init() {
	// Environment variables: SKILLFETCH_API_TOKEN, SKILLFETCH_GITHUB_TOKEN, ...
	viper.SetEnvPrefix("SKILLFETCH")
	viper.AutomaticEnv()

	// Optional config file
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME/.skillfetch")
	viper.AddConfigPath(".")
	_ = viper.ReadInConfig()

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format (text, json)")
	rootCmd.PersistentFlags().Bool("quiet", false, "Suppress non-error output")
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))
	viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(historyCmd)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	shutdownTracing, err := initTracing(ctx)
	if err != nil {
		logger.G(ctx).WithError(err).Warn("failed to initialize tracing")
	} else {
		defer shutdownTracing(context.Background())
	}

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
