package cmd

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/tabstep-cli/internal/action"
	"github.com/spf13/cobra"
)

var (
	chX     string
	chY     string
	chColor string
	chSize  string
)

var chartCmd = &cobra.Command{
	Use:   "chart <type>",
	Short: "Record a chart step",
	Long: fmt.Sprintf(`Record a chart as a step. The chart is rendered by the exported script.
Chart types: %s.`, strings.Join(action.ChartTypes(), ", ")),
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := action.Chart{ChartType: args[0], XCol: chX, YCol: chY, ColorCol: chColor, SizeCol: chSize}
		e, err := openSession().RecordChart(c)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Recorded %s (step #%d)\n", action.Describe(e.Action), e.ID)
		// flags the chart type ignores were dropped by normalization
		if e.Action.(action.Chart) != c {
			used := strings.Join(action.ChartFields[c.ChartType], ", ")
			if used == "" {
				used = "no column options"
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "⚠ Warning: %s uses only: %s\n", c.ChartType, used)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(chartCmd)
	chartCmd.Flags().StringVar(&chX, "x", "", "x column")
	chartCmd.Flags().StringVar(&chY, "y", "", "y column")
	chartCmd.Flags().StringVar(&chColor, "color", "", "color column")
	chartCmd.Flags().StringVar(&chSize, "size", "", "size column (bubble)")
}
