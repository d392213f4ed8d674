package main

import (
	"fmt"
	"strings"

	"github.com/flemzord/relaybot/internal/agent"
	"github.com/spf13/cobra"
)

func askCmd() *cobra.Command {
	var (
		sessionID string
		userID    string
	)
	cmd := &cobra.Command{
		Use:   "ask <message>",
		Short: "Send one message to the agent and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			rt.EnsureKnowledge(cmd.Context())
			out, err := rt.Agent.Run(cmd.Context(), agent.RunInput{
				SessionID: sessionID,
				UserID:    userID,
				Message:   strings.Join(args, " "),
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out.Content)
			fmt.Fprintf(cmd.ErrOrStderr(), "\nsession: %s  tokens: %d\n", out.SessionID, out.Usage.TotalTokens)
			return nil
		},
	}
	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "Continue an existing session")
	cmd.Flags().StringVar(&userID, "user", "cli", "User id recorded with the run")
	return cmd
}
