package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/KaramelBytes/tabstep-cli/internal/action"
	"github.com/KaramelBytes/tabstep-cli/internal/ml"
	"github.com/KaramelBytes/tabstep-cli/internal/utils"
	"github.com/spf13/cobra"
)

var (
	mlX          string
	mlY          string
	mlTarget     string
	mlClusters   int
	mlKernel     string
	mlMaxDepth   int
	mlEstimators int
	mlTestSize   float64
	mlElbow      int
	mlJSON       bool
)

var mlCmd = &cobra.Command{
	Use:   "ml <task>",
	Short: "Train and evaluate a model on the working table and record it as a step",
	Long: fmt.Sprintf(`Run a machine learning task on the working table. The step is recorded only
when the run succeeds. Tasks: %s.
Kernels for classification: %s.`, strings.Join(action.Tasks(), ", "), strings.Join(action.Kernels, ", ")),
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		sess := openSession()
		m := action.ML{
			Task:        args[0],
			XCol:        mlX,
			YCol:        mlY,
			TargetCol:   mlTarget,
			NClusters:   mlClusters,
			Kernel:      mlKernel,
			MaxDepth:    mlMaxDepth,
			NEstimators: mlEstimators,
			TestSize:    mlTestSize,
		}
		if mlElbow > 0 {
			if m.Task != "clustering" {
				return fmt.Errorf("--elbow only applies to clustering")
			}
			f, err := sess.Table()
			if err != nil {
				return err
			}
			inertia, err := ml.Elbow(f, m.XCol, m.YCol, mlElbow)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, "k\tinertia")
			for i, v := range inertia {
				fmt.Fprintf(out, "%d\t%.3f\n", i+1, v)
			}
			return nil
		}
		res, e, err := sess.RunML(m)
		if err != nil {
			return err
		}
		if mlJSON {
			b, err := utils.PrettyJSON(res)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(b))
			return nil
		}
		fmt.Fprint(out, res.Report)
		if !strings.HasSuffix(res.Report, "\n") {
			fmt.Fprintln(out)
		}
		if len(res.Importances) > 0 {
			fmt.Fprintln(out, "Feature importances:")
			names := make([]string, 0, len(res.Importances))
			for n := range res.Importances {
				names = append(names, n)
			}
			sort.Strings(names)
			for _, n := range names {
				fmt.Fprintf(out, "  %s: %.4f\n", n, res.Importances[n])
			}
		}
		fmt.Fprintf(out, "✓ Recorded %s (step #%d)\n", action.Describe(e.Action), e.ID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(mlCmd)
	mlCmd.Flags().StringVar(&mlX, "x", "", "first feature column")
	mlCmd.Flags().StringVar(&mlY, "y", "", "second feature column (not used by regression)")
	mlCmd.Flags().StringVar(&mlTarget, "target", "", "target column (classification, trees, regression)")
	mlCmd.Flags().IntVar(&mlClusters, "clusters", 0, "clustering: number of clusters (default 3)")
	mlCmd.Flags().StringVar(&mlKernel, "kernel", "", "classification: SVM kernel (default linear)")
	mlCmd.Flags().IntVar(&mlMaxDepth, "max-depth", 0, "trees: maximum depth (default 5)")
	mlCmd.Flags().IntVar(&mlEstimators, "estimators", 0, "random_forest: number of trees (default 100)")
	mlCmd.Flags().Float64Var(&mlTestSize, "test-size", 0, "held-out fraction (default 0.25)")
	mlCmd.Flags().IntVar(&mlElbow, "elbow", 0, "clustering: print inertia for k = 1..N instead of running")
	mlCmd.Flags().BoolVar(&mlJSON, "json", false, "print the full result as JSON")
}
