package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var (
	exOutput string
	exStdout bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Generate a pandas script from the enabled steps",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sess := openSession()
		if exStdout {
			fmt.Fprint(cmd.OutOrStdout(), sess.Export())
			return nil
		}
		path := exOutput
		if path == "" {
			path = exportName(sess.Workspace())
		}
		if err := sess.ExportTo(path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Exported %d step(s) to %s\n", len(sess.Log().Enabled()), path)
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <script.py>",
	Short: "Replay an exported script on the working table",
	Long: `Parse a script produced by 'tabstep export' and rebuild the step log from it.
Cleaning steps are re-applied to the current working table; chart and model
steps are recorded as they are. Lines the parser does not recognize are
reported and skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read script: %w", err)
		}
		rep, err := openSession().Import(string(b), filepath.Base(args[0]))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ %s\n", rep.Message())
		stderr := cmd.ErrOrStderr()
		for _, e := range rep.Errors {
			fmt.Fprintf(stderr, "⚠ Warning: %s\n", e)
		}
		for _, s := range rep.Skipped {
			fmt.Fprintf(stderr, "⚠ Warning: skipped line %d: %s\n", s.Line, s.Text)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	exportCmd.Flags().StringVarP(&exOutput, "output", "o", "", "output path (default: export_name in the workspace)")
	exportCmd.Flags().BoolVar(&exStdout, "stdout", false, "print the script instead of writing a file")
}
