package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/KaramelBytes/tabstep-cli/internal/cleaning"
	"github.com/KaramelBytes/tabstep-cli/internal/session"
	"github.com/spf13/cobra"
)

var (
	clFillValue string
	clNewName   string
	clYes       bool
	clList      bool
)

var cleanCmd = &cobra.Command{
	Use:   "clean <operation> <column>",
	Short: "Apply a cleaning operation to a column of the working table",
	Long: `Apply a cleaning operation and record it as a step. The table is snapshotted
first so the step can be undone. Destructive operations (drop_column, dropna,
drop_duplicates, remove_outliers) ask for confirmation unless --yes is given.
Run with --list to see every operation.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if clList {
			return nil
		}
		return cobra.ExactArgs(2)(cmd, args)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if clList {
			return listOperations(cmd)
		}
		req := session.CleanRequest{
			Operation: cleaning.Operation(args[0]),
			Column:    args[1],
			FillValue: clFillValue,
			NewName:   clNewName,
			Confirmed: clYes,
		}
		sess := openSession()
		res, err := sess.Clean(req)
		var confirm *session.ConfirmationError
		if errors.As(err, &confirm) {
			if !askConfirmation(cmd, confirm.Prompt) {
				fmt.Fprintln(out, "Operation cancelled.")
				return nil
			}
			req.Confirmed = true
			res, err = sess.Clean(req)
		}
		if err != nil {
			return err
		}
		if res.Note != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "⚠ Warning: %s\n", res.Note)
			return nil
		}
		fmt.Fprintf(out, "✓ %s (step #%d)\n", res.Description, res.Entry.ID)
		fmt.Fprintf(out, "  rows: %d -> %d, columns: %d\n", res.RowsBefore, res.RowsAfter, res.Cols)
		if !res.Snapshot {
			fmt.Fprintln(cmd.ErrOrStderr(), "⚠ Warning: snapshot not saved; this step cannot be undone")
		}
		return nil
	},
}

// askConfirmation reads a yes/no answer from the command input.
func askConfirmation(cmd *cobra.Command, prompt string) bool {
	fmt.Fprintf(cmd.OutOrStdout(), "%s [y/N]: ", prompt)
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		fmt.Fprintln(cmd.OutOrStdout())
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

func listOperations(cmd *cobra.Command) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "OPERATION\tLABEL\tDESTRUCTIVE")
	for _, s := range cleaning.Catalog() {
		d := ""
		if s.Destructive {
			d = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", s.Op, s.Label, d)
	}
	return tw.Flush()
}

var previewCmd = &cobra.Command{
	Use:   "preview <operation> <column>",
	Short: "Show how many rows an operation would affect without applying it",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := session.CleanRequest{
			Operation: cleaning.Operation(args[0]),
			Column:    args[1],
			FillValue: clFillValue,
			NewName:   clNewName,
		}
		p, err := openSession().Preview(req)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s\n", cleaning.Describe(req.Operation, req.Column, cleaning.Params{FillValue: req.FillValue, NewName: req.NewName}))
		fmt.Fprintf(out, "  rows before: %d\n  rows after:  %d\n  rows affected: %d\n", p.RowsBefore, p.RowsAfter, p.RowsAffected)
		if cleaning.IsDestructive(req.Operation) {
			fmt.Fprintln(out, "  (destructive: applying it will ask for confirmation)")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(previewCmd)
	for _, c := range []*cobra.Command{cleanCmd, previewCmd} {
		c.Flags().StringVar(&clFillValue, "fill-value", "", "value for fillna, or characters for lstrip/rstrip")
		c.Flags().StringVar(&clNewName, "new-name", "", "new column name for rename_column")
	}
	cleanCmd.Flags().BoolVarP(&clYes, "yes", "y", false, "apply destructive operations without asking")
	cleanCmd.Flags().BoolVar(&clList, "list", false, "list available operations and exit")
}
