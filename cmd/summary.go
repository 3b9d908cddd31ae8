package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/KaramelBytes/tabstep-cli/internal/analysis"
	"github.com/KaramelBytes/tabstep-cli/internal/table"
	"github.com/KaramelBytes/tabstep-cli/internal/upload"
	"github.com/KaramelBytes/tabstep-cli/internal/utils"
	"github.com/spf13/cobra"
)

var (
	sumOutputPath string
	sumOutDir     string
	sumSampleRows int
	sumGroupBy    []string
	sumCorr       bool
	sumOutliers   bool
	sumOutlierThr float64
	sumSheetName  string
	sumJSON       bool
	sumQuiet      bool
)

var summaryCmd = &cobra.Command{
	Use:   "summary [files...]",
	Short: "Summarize the working table, or dataset files, as Markdown",
	Long: `Produce a compact statistical summary. Without arguments the working table is
summarized. With file arguments (globs allowed) each file is decoded and
summarized without touching the session.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opt := analysis.DefaultOptions()
		opt.SampleRows = sumSampleRows
		opt.GroupBy = sumGroupBy
		opt.Correlations = sumCorr
		opt.Outliers = sumOutliers
		if sumOutlierThr > 0 {
			opt.OutlierThreshold = sumOutlierThr
		}

		if len(args) == 0 {
			rep, err := openSession().Summary(opt)
			if err != nil {
				return err
			}
			return emitSummary(cmd, rep, sumOutputPath)
		}

		files, err := expandInputs(args)
		if err != nil {
			return err
		}
		if sumOutDir == "" && sumOutputPath != "" && len(files) > 1 {
			return fmt.Errorf("--output takes a single file; use --out-dir for several")
		}
		out := cmd.OutOrStdout()
		total := len(files)
		for i, path := range files {
			if !sumQuiet && total > 1 {
				fmt.Fprintf(out, "[%d/%d] Processing %s...\n", i+1, total, filepath.Base(path))
			}
			f, err := decodeForSummary(path)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			rep := analysis.Summarize(f, filepath.Base(path), opt)
			dest := sumOutputPath
			if sumOutDir != "" {
				if err := utils.EnsureDir(sumOutDir); err != nil {
					return err
				}
				dest = summaryPath(sumOutDir, path)
			}
			if err := emitSummary(cmd, rep, dest); err != nil {
				return err
			}
		}
		return nil
	},
}

// expandInputs resolves globs, keeping literal paths that exist, and returns
// a sorted, de-duplicated list.
func expandInputs(args []string) ([]string, error) {
	var files []string
	seen := map[string]struct{}{}
	for _, arg := range args {
		matches, _ := filepath.Glob(arg)
		if len(matches) == 0 {
			if _, err := os.Stat(arg); err == nil {
				matches = []string{arg}
			}
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			files = append(files, m)
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no input files matched")
	}
	sort.Strings(files)
	return files, nil
}

func decodeForSummary(path string) (*table.Frame, error) {
	if sumSheetName != "" && upload.FormatOf(path) == "xlsx" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return upload.ReadSheet(data, sumSheetName)
	}
	f, _, err := upload.DecodeFile(path)
	return f, err
}

// summaryPath picks <dir>/<base>.summary.md, adding a __N suffix instead of
// overwriting an existing report.
func summaryPath(dir, src string) string {
	base := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	out := filepath.Join(dir, base+".summary.md")
	if _, err := os.Stat(out); os.IsNotExist(err) {
		return out
	}
	for idx := 2; ; idx++ {
		cand := filepath.Join(dir, fmt.Sprintf("%s__%d.summary.md", base, idx))
		if _, err := os.Stat(cand); os.IsNotExist(err) {
			return cand
		}
	}
}

func emitSummary(cmd *cobra.Command, rep *analysis.Report, dest string) error {
	var body []byte
	if sumJSON {
		b, err := utils.PrettyJSON(rep)
		if err != nil {
			return err
		}
		body = append(b, '\n')
	} else {
		body = []byte(rep.Markdown())
	}
	if dest == "" {
		_, err := cmd.OutOrStdout().Write(body)
		return err
	}
	if err := utils.SafeWriteFile(dest, body); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	if !sumQuiet {
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote summary to %s\n", dest)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(summaryCmd)
	summaryCmd.Flags().StringVarP(&sumOutputPath, "output", "o", "", "write the summary to a file")
	summaryCmd.Flags().StringVar(&sumOutDir, "out-dir", "", "write one <name>.summary.md per input file into this directory")
	summaryCmd.Flags().IntVar(&sumSampleRows, "sample-rows", 5, "number of sample rows to include")
	summaryCmd.Flags().StringSliceVar(&sumGroupBy, "group-by", nil, "comma-separated column names to group by (repeatable)")
	summaryCmd.Flags().BoolVar(&sumCorr, "correlations", true, "compute Pearson correlations among numeric columns")
	summaryCmd.Flags().BoolVar(&sumOutliers, "outliers", true, "compute robust outlier counts (MAD)")
	summaryCmd.Flags().Float64Var(&sumOutlierThr, "outlier-threshold", 3.5, "robust |z| threshold for outliers (MAD-based)")
	summaryCmd.Flags().StringVar(&sumSheetName, "sheet", "", "XLSX: sheet name to summarize")
	summaryCmd.Flags().BoolVar(&sumJSON, "json", false, "emit the report as JSON instead of Markdown")
	summaryCmd.Flags().BoolVar(&sumQuiet, "quiet", false, "suppress progress and non-essential output")
}
