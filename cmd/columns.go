package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var headRows int

var columnsCmd = &cobra.Command{
	Use:   "columns",
	Short: "List the working table's columns with inferred kinds",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cols, err := openSession().Columns()
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tKIND\tNULLS")
		for _, c := range cols {
			fmt.Fprintf(tw, "%s\t%s\t%d\n", c.Name, c.Kind, c.Nulls)
		}
		return tw.Flush()
	},
}

var headCmd = &cobra.Command{
	Use:   "head",
	Short: "Print the first rows of the working table",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := openSession().Table()
		if err != nil {
			return err
		}
		h := f.Head(headRows)
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, strings.Join(h.Names(), "\t"))
		for _, rec := range h.Records() {
			fmt.Fprintln(tw, strings.Join(rec, "\t"))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		if n := f.NumRows(); n > h.NumRows() {
			fmt.Fprintf(cmd.OutOrStdout(), "... %d more row(s)\n", n-h.NumRows())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(columnsCmd)
	rootCmd.AddCommand(headCmd)
	headCmd.Flags().IntVarP(&headRows, "rows", "n", 10, "number of rows to print")
}
