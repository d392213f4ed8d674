// Package main is the entry point for the relaybot CLI.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/flemzord/relaybot/internal/config"
	"github.com/flemzord/relaybot/pkg/app"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var envFile string
	root := &cobra.Command{
		Use:           "relaybot",
		Short:         "Telegram and HTTP front-end for a knowledge-grounded agent",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return loadEnvFile(envFile)
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Dotenv file loaded before reading the environment")
	root.PersistentFlags().StringP("config", "c", "", "Path to configuration file")

	root.AddCommand(
		versionCmd(),
		startCmd(),
		configCmd(),
		knowledgeCmd(),
		askCmd(),
		initCmd(),
		serviceCmd(),
	)
	return root
}

// loadEnvFile loads path without overriding variables already set. A
// missing file is not an error.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "relaybot %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

func startCmd() *cobra.Command {
	var (
		mode      string
		ephemeral bool
	)
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Run the Telegram bot and/or the web server",
		Long: `Run relaybot in the mode selected by --mode or RUN_MODE:

  web     serve the HTTP API only
  bot     long-poll Telegram only
  hybrid  both, supervised together (default)`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			return app.Run(app.RunParams{
				ConfigPath: cfgPath,
				Mode:       mode,
				Version:    version,
				Ephemeral:  ephemeral,
			})
		},
	}
	cmd.Flags().StringVarP(&mode, "mode", "m", "", "Run mode: web, bot or hybrid (overrides RUN_MODE)")
	cmd.Flags().BoolVar(&ephemeral, "ephemeral", false, "Keep sessions and vectors in memory")
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}

	var mode string
	check := &cobra.Command{
		Use:   "check",
		Short: "Validate configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			cfg, err := app.LoadConfig(cfgPath, mode)
			if err != nil {
				return err
			}
			printConfig(cmd, cfg)
			return nil
		},
	}
	check.Flags().StringVarP(&mode, "mode", "m", "", "Run mode to validate against")
	cmd.AddCommand(check)
	return cmd
}

func printConfig(cmd *cobra.Command, cfg *config.Config) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Configuration OK")
	fmt.Fprintf(out, "  mode:      %s\n", cfg.NormalizedMode())
	fmt.Fprintf(out, "  agent:     %s (%s)\n", cfg.Agent.ID, cfg.Provider.Model)
	fmt.Fprintf(out, "  server:    %s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Fprintf(out, "  telegram:  %t\n", cfg.Telegram.Token != "")
	if cfg.KnowledgeEnabled() {
		fmt.Fprintf(out, "  knowledge: %s\n", cfg.Knowledge.Source)
	} else {
		fmt.Fprintln(out, "  knowledge: disabled (OPENAI_API_KEY not set)")
	}
	switch {
	case cfg.Storage.DatabaseURL != "":
		fmt.Fprintln(out, "  sessions:  postgres")
	default:
		fmt.Fprintf(out, "  sessions:  %s\n", cfg.SessionsPath())
	}
}
