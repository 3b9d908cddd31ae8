package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/KaramelBytes/tabstep-cli/internal/session"
	"github.com/spf13/cobra"
)

var undoCmd = &cobra.Command{
	Use:   "undo",
	Short: "Restore the table to its state before the last snapshot",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		res, ok, err := openSession().Undo()
		return reportStep(cmd, "Undid", "Nothing to undo.", res, ok, err)
	},
}

var redoCmd = &cobra.Command{
	Use:   "redo",
	Short: "Re-apply the most recently undone step",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		res, ok, err := openSession().Redo()
		return reportStep(cmd, "Redid", "Nothing to redo.", res, ok, err)
	},
}

func reportStep(cmd *cobra.Command, verb, empty string, res *session.StepResult, ok bool, err error) error {
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if !ok {
		fmt.Fprintln(out, empty)
		return nil
	}
	desc := res.Record.Description
	if desc == "" {
		desc = res.Record.Operation
	}
	fmt.Fprintf(out, "✓ %s: %s\n", verb, desc)
	fmt.Fprintf(out, "  table now has %d rows, %d columns\n", res.Rows, res.Cols)
	return nil
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List saved snapshots, oldest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		h := openSession().History()
		records := h.Log()
		out := cmd.OutOrStdout()
		if len(records) == 0 {
			fmt.Fprintln(out, "(no history)")
		} else {
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "INDEX\tOPERATION\tCOLUMN\tDESCRIPTION")
			for _, r := range records {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", r.Index, r.Operation, r.Column, r.Description)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
		}
		if n := h.RedoDepth(); n > 0 {
			fmt.Fprintf(out, "%d step(s) can be redone\n", n)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(undoCmd)
	rootCmd.AddCommand(redoCmd)
	rootCmd.AddCommand(historyCmd)
}
