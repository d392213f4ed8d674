package main

import (
	"context"
	"errors"

	"github.com/flemzord/relaybot/internal/config"
	"github.com/flemzord/relaybot/pkg/app"
	"github.com/spf13/cobra"
)

var errKnowledgeDisabled = errors.New("knowledge is disabled: set OPENAI_API_KEY")

// buildRuntime loads the configuration in web mode, so one-shot commands
// never require a Telegram token, and wires the runtime.
func buildRuntime(cmd *cobra.Command) (*app.Runtime, error) {
	cfgPath, _ := cmd.Flags().GetString("config")
	cfg, err := app.LoadConfig(cfgPath, config.ModeWeb)
	if err != nil {
		return nil, err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return app.Build(ctx, cfg, app.BuildOptions{
		Version:   version,
		LogOutput: cmd.ErrOrStderr(),
	})
}
