package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/KaramelBytes/tabstep-cli/internal/session"
	"github.com/KaramelBytes/tabstep-cli/internal/upload"
	"github.com/spf13/cobra"
)

var (
	upSheetName string
)

var uploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Load a dataset as the working table (resets steps and history)",
	Long: fmt.Sprintf(`Load a dataset into the workspace. Supported formats: %s.
The step log restarts with a single upload step and undo history is cleared.`, strings.Join(upload.Formats(), ", ")),
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		sess := openSession()
		var res *session.UploadResult
		if upSheetName != "" {
			if upload.FormatOf(path) != "xlsx" {
				return fmt.Errorf("--sheet only applies to .xlsx files")
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read file: %w", err)
			}
			f, err := upload.ReadSheet(data, upSheetName)
			if err != nil {
				return err
			}
			res, err = sess.Load(path, "xlsx", f)
			if err != nil {
				return err
			}
		} else {
			r, err := sess.UploadFile(path)
			if err != nil {
				return err
			}
			res = r
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "✓ Successfully imported %s\n", res.Filename)
		fmt.Fprintf(out, "  %d rows, %d columns\n", res.Rows, res.Cols)
		cols := res.Columns
		more := ""
		if len(cols) > 8 {
			cols, more = cols[:8], "..."
		}
		fmt.Fprintf(out, "  Columns: %s%s\n", strings.Join(cols, ", "), more)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(uploadCmd)
	uploadCmd.Flags().StringVar(&upSheetName, "sheet", "", "XLSX: sheet name to load (default: first sheet)")
}
