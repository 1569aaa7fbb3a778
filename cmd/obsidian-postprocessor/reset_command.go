package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newResetCommand(ctx *commandContext) *cobra.Command {
	var processorName string
	var attachment string

	cmd := &cobra.Command{
		Use:   "reset NOTE",
		Short: "Clear processing records so the next run reprocesses them",
		Long: `Remove processor_state records from a note. Without flags every record
in the note is removed; --processor and --attachment narrow the selection.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := ctx.runtime()
			if err != nil {
				return err
			}
			removed, err := rt.Reset(commandContextOrBackground(cmd), args[0], processorName, attachment)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if removed == 0 {
				fmt.Fprintln(out, "No matching records")
				return nil
			}
			fmt.Fprintf(out, "Removed %d record(s) from %s\n", removed, args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&processorName, "processor", "p", "", "Only clear records of this processor")
	cmd.Flags().StringVarP(&attachment, "attachment", "a", "", "Only clear records of this attachment")
	return cmd
}
