package main

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/flemzord/relaybot/internal/config"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var tokenPattern = regexp.MustCompile(`^\d+:[A-Za-z0-9_-]+$`)

// wizardAnswers holds the values collected by the init form.
type wizardAnswers struct {
	Mode          string
	TelegramToken string
	OpenRouterKey string
	Model         string
	OpenAIKey     string
	KnowledgeDir  string
	Port          string
	SecurityKey   string
}

// env maps the answers onto the environment variables relaybot reads.
// Empty answers are left out.
func (a wizardAnswers) env() map[string]string {
	out := map[string]string{"RUN_MODE": a.Mode}
	set := func(k, v string) {
		if v = strings.TrimSpace(v); v != "" {
			out[k] = v
		}
	}
	set("TELEGRAM_TOKEN", a.TelegramToken)
	set("OPENROUTER_API_KEY", a.OpenRouterKey)
	set("PORTFOLIO_AGENT_MODEL", a.Model)
	set("OPENAI_API_KEY", a.OpenAIKey)
	set("PORTFOLIO_KNOWLEDGE_DIR", a.KnowledgeDir)
	set("PORT", a.Port)
	set("OS_SECURITY_KEY", a.SecurityKey)
	return out
}

func initCmd() *cobra.Command {
	var (
		output string
		force  bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Interactively write a .env file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := os.Stat(output); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", output)
			}

			defaults := config.Defaults()
			answers := wizardAnswers{
				Mode:         defaults.Mode,
				Model:        defaults.Provider.Model,
				KnowledgeDir: defaults.Knowledge.Source,
				Port:         fmt.Sprint(defaults.Server.Port),
			}
			if err := newWizard(&answers).Run(); err != nil {
				if errors.Is(err, huh.ErrUserAborted) {
					fmt.Fprintln(cmd.ErrOrStderr(), "Aborted.")
					return nil
				}
				return err
			}

			if err := godotenv.Write(answers.env(), output); err != nil {
				return err
			}
			if err := os.Chmod(output, 0o600); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s. Run `relaybot config check` to validate it.\n", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", ".env", "File to write")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")
	return cmd
}

func newWizard(a *wizardAnswers) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Run mode").
				Options(
					huh.NewOption("Hybrid: Telegram bot and web server", config.ModeHybrid),
					huh.NewOption("Bot: Telegram only", config.ModeBot),
					huh.NewOption("Web: HTTP API only", config.ModeWeb),
				).
				Value(&a.Mode),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Telegram bot token").
				Description("From @BotFather, formatted <bot_id>:<hash>.").
				EchoMode(huh.EchoModePassword).
				Validate(func(s string) error {
					return validateToken(a.Mode, s)
				}).
				Value(&a.TelegramToken),
		).WithHideFunc(func() bool { return a.Mode == config.ModeWeb }),
		huh.NewGroup(
			huh.NewInput().
				Title("OpenRouter API key").
				EchoMode(huh.EchoModePassword).
				Validate(required("an OpenRouter API key is required")).
				Value(&a.OpenRouterKey),
			huh.NewInput().
				Title("Chat model").
				Value(&a.Model),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("OpenAI API key for embeddings").
				Description("Leave empty to run without a knowledge base.").
				EchoMode(huh.EchoModePassword).
				Value(&a.OpenAIKey),
			huh.NewInput().
				Title("Knowledge source").
				Description("A directory of .md/.txt files or an s3://bucket/prefix URL.").
				Value(&a.KnowledgeDir),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("HTTP port").
				Value(&a.Port),
			huh.NewInput().
				Title("API security key").
				Description("Bearer token required by the HTTP API. Leave empty to disable auth.").
				EchoMode(huh.EchoModePassword).
				Value(&a.SecurityKey),
		).WithHideFunc(func() bool { return a.Mode == config.ModeBot }),
	)
}

func validateToken(mode, s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		if mode == config.ModeWeb {
			return nil
		}
		return errors.New("a token is required in bot and hybrid mode")
	}
	if !tokenPattern.MatchString(s) {
		return errors.New("expected <bot_id>:<hash>")
	}
	return nil
}

func required(msg string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return errors.New(msg)
		}
		return nil
	}
}
