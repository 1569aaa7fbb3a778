package main

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/rwese/obsidian-postprocessor/internal/state"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show processing state across the vault",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := ctx.runtime()
			if err != nil {
				return err
			}
			status, err := rt.Status(commandContextOrBackground(cmd))
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, status)
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			printLines(out, renderSectionHeader("Vault", colorize))
			fmt.Fprintln(out, renderStatusLine("Root", statusInfo, rt.Root(), colorize))
			fmt.Fprintln(out, renderStatusLine("Notes", statusInfo, strconv.Itoa(status.Documents), colorize))
			fmt.Fprintln(out, renderStatusLine("Malformed frontmatter", countKind(status.Malformed, statusWarn), strconv.Itoa(status.Malformed), colorize))
			fmt.Fprintln(out, renderStatusLine("Unreadable", countKind(status.Unreadable, statusError), strconv.Itoa(status.Unreadable), colorize))
			fmt.Fprintln(out)

			printLines(out, renderSectionHeader("Processors", colorize))
			if len(status.Processors) == 0 {
				fmt.Fprintln(out, "No processors configured")
				return nil
			}
			fmt.Fprintln(out, renderProcessorCounts(status.Processors, status.Total()))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output status as JSON")
	return cmd
}

func countKind(n int, kind statusKind) statusKind {
	if n == 0 {
		return statusOK
	}
	return kind
}

func renderProcessorCounts(counts map[string]state.StatusCounts, total state.StatusCounts) string {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([][]string, 0, len(names)+1)
	for _, name := range names {
		rows = append(rows, countsRow(name, counts[name]))
	}
	if len(names) > 1 {
		rows = append(rows, countsRow("total", total))
	}
	return renderTable(
		[]string{"Processor", "Pending", "In progress", "Completed", "Failed"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight},
	)
}

func countsRow(name string, c state.StatusCounts) []string {
	return []string{
		name,
		strconv.Itoa(c.Pending),
		strconv.Itoa(c.InProgress),
		strconv.Itoa(c.Completed),
		strconv.Itoa(c.Failed),
	}
}
