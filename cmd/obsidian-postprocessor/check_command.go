package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rwese/obsidian-postprocessor/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify vault access and processor dependencies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			printLines(out, renderSectionHeader("Preflight", colorize))

			results := preflight.RunAll(commandContextOrBackground(cmd), cfg)
			for _, r := range results {
				kind := statusOK
				switch {
				case r.Passed:
				case r.Optional:
					kind = statusWarn
				default:
					kind = statusError
				}
				fmt.Fprintln(out, renderStatusLine(r.Name, kind, r.Detail, colorize))
			}
			if len(cfg.EnabledProcessors()) == 0 {
				fmt.Fprintln(out, renderStatusLine("Processors", statusWarn, "none enabled", colorize))
			}

			if blocking := preflight.Blocking(results); len(blocking) > 0 {
				return fmt.Errorf("%d preflight check(s) failed", len(blocking))
			}
			return nil
		},
	}
}
