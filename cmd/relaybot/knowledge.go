package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func knowledgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "knowledge",
		Short: "Manage the knowledge base",
	}
	cmd.AddCommand(knowledgeLoadCmd(), knowledgeSearchCmd())
	return cmd
}

func knowledgeLoadCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Ingest the knowledge source into the vector store",
		Long: `Ingest the configured knowledge source. Without --force this is a
no-op once the storage directory carries the load marker.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := buildRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()
			if rt.Knowledge == nil {
				return errKnowledgeDisabled
			}

			out := cmd.OutOrStdout()
			if force {
				n, err := rt.Knowledge.Reload(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Loaded %d chunks from %s\n", n, rt.Config.Knowledge.Source)
				return nil
			}

			loaded, err := rt.Knowledge.EnsureLoaded(cmd.Context(), rt.Config.Storage.Dir)
			if err != nil {
				return err
			}
			if !loaded {
				fmt.Fprintln(out, "Knowledge already loaded (use --force to reload)")
				return nil
			}
			n, err := rt.Knowledge.Count(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Knowledge base initialized (%d chunks)\n", n)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Re-ingest even if already loaded")
	return cmd
}

func knowledgeSearchCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Print the chunks closest to a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()
			if rt.Knowledge == nil {
				return errKnowledgeDisabled
			}

			matches, err := rt.Knowledge.Search(cmd.Context(), strings.Join(args, " "), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(matches) == 0 {
				fmt.Fprintln(out, "No results.")
				return nil
			}
			for i, m := range matches {
				fmt.Fprintf(out, "%d. %s#%d (score %.3f)\n", i+1, m.Document, m.Index, m.Score)
				fmt.Fprintf(out, "   %s\n", preview(m.Content, 200))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum results (default: PORTFOLIO_KNOWLEDGE_MAX_RESULTS)")
	return cmd
}

func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
