package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rwese/obsidian-postprocessor/internal/orchestrator"
	"github.com/rwese/obsidian-postprocessor/internal/vaultrun"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var dryRun bool
	var note string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process unprocessed attachments once",
		Long: `Scan the vault, run every configured processor against attachments
that have no completed record, and record the outcome in each note's
frontmatter. Exits non-zero when any item failed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := ctx.runtime()
			if err != nil {
				return err
			}

			signalCtx, cancel := signal.NotifyContext(commandContextOrBackground(cmd), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			summary, err := rt.Run(signalCtx, vaultrun.RunOptions{DryRun: dryRun, Note: note})
			if err != nil && summary.RunID == "" {
				return err
			}

			if jsonOutput {
				if encErr := writeJSON(cmd, summary); encErr != nil {
					return encErr
				}
			} else {
				renderSummary(cmd.OutOrStdout(), summary, shouldColorize(cmd.OutOrStdout()))
			}
			if err != nil {
				return err
			}
			return summaryError(summary)
		},
	}

	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "Report what would be processed without invoking processors")
	cmd.Flags().StringVar(&note, "note", "", "Process a single note (path absolute or relative to the vault)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the run summary as JSON")
	return cmd
}

func summaryError(summary orchestrator.Summary) error {
	if summary.OK() {
		return nil
	}
	return fmt.Errorf("%d item(s) failed", summary.Failed)
}

func commandContextOrBackground(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
