package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/alekspetrov/ideabot/internal/config"
)

var (
	version = "0.1.0"
	cfgFile string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "ideabot",
		Short:         "Telegram bot that captures and organizes your ideas",
		Long:          `ideabot turns voice notes and messages into categorized, searchable ideas and sends a weekly digest of what you've been thinking about.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default ~/.ideabot/config.yaml)")

	rootCmd.AddCommand(
		newStartCmd(),
		newInitCmd(),
		newStatsCmd(),
		newDigestCmd(),
		newVersionCmd(),
	)

	return rootCmd
}

func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultConfigPath()
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show ideabot version",
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "ideabot v%s\n", version)
		},
	}
}
