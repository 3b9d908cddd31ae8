package cmd

import (
	"fmt"
	"strconv"

	"github.com/KaramelBytes/tabstep-cli/internal/upload"
	"github.com/spf13/cobra"
)

var editFrom string

var editCmd = &cobra.Command{
	Use:   "edit <row> <column> <value> | edit --from <file>",
	Short: "Change the working table directly, outside the step log",
	Long: `Set one cell of the working table (rows count from 0; an empty value or NA
stores a missing value), or replace the whole table with an edited copy via
--from. Edits can be undone but are not steps, so exported scripts do not
reproduce them.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if editFrom != "" {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.ExactArgs(3)(cmd, args)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		sess := openSession()
		if editFrom != "" {
			f, _, err := upload.DecodeFile(editFrom)
			if err != nil {
				return err
			}
			res, err := sess.SaveTable(f.Names(), f.Records())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Changes have been saved (%d rows, %d columns)\n", res.Rows, res.Cols)
			return nil
		}
		row, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid row %q", args[0])
		}
		res, err := sess.Edit(row, args[1], args[2])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ %s\n", res.Description)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(editCmd)
	editCmd.Flags().StringVar(&editFrom, "from", "", "replace the working table with this file (csv, tsv, json, xlsx)")
}
