package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rwese/obsidian-postprocessor/internal/logging"
	"github.com/rwese/obsidian-postprocessor/internal/orchestrator"
	"github.com/rwese/obsidian-postprocessor/internal/vaultrun"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Process the vault now and again whenever it changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := ctx.runtime()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			signalCtx, cancel := signal.NotifyContext(commandContextOrBackground(cmd), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			return rt.Watch(signalCtx, vaultrun.RunOptions{DryRun: dryRun}, func(summary orchestrator.Summary) {
				if summary.Processed == 0 && summary.Failed == 0 && len(summary.Planned) == 0 {
					return
				}
				logger.Info("pass finished",
					logging.String(logging.FieldRunID, summary.RunID),
					logging.Int("processed", summary.Processed),
					logging.Int("failed", summary.Failed),
					logging.Int("planned", len(summary.Planned)),
				)
			})
		},
	}

	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "Report what would be processed without invoking processors")
	return cmd
}
