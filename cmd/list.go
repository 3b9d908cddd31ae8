package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/KaramelBytes/tabstep-cli/internal/action"
	"github.com/KaramelBytes/tabstep-cli/internal/utils"
	"github.com/spf13/cobra"
)

var (
	stepsJSON bool
)

var stepsCmd = &cobra.Command{
	Use:     "steps",
	Aliases: []string{"list"},
	Short:   "List, inspect, toggle or delete recorded steps",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		entries := openSession().Steps()
		out := cmd.OutOrStdout()
		if stepsJSON {
			b, err := utils.PrettyJSON(entries)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(b))
			return nil
		}
		if len(entries) == 0 {
			fmt.Fprintln(out, "(no steps)")
			return nil
		}
		for _, e := range entries {
			mark := " "
			if e.Disabled {
				mark = "x"
			}
			fmt.Fprintf(out, "[%s] #%d %-8s %s\n", mark, e.ID, e.Action.Type(), action.Describe(e.Action))
		}
		return nil
	},
}

func parseStepID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("invalid step id: %s", s)
	}
	return id, nil
}

var stepsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one step as stored",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseStepID(args[0])
		if err != nil {
			return err
		}
		e, err := openSession().Step(id)
		if err != nil {
			return err
		}
		b, err := utils.PrettyJSON(e)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, string(b))
		sec := int64(e.Timestamp)
		ts := time.Unix(sec, int64((e.Timestamp-float64(sec))*1e9)).Local()
		fmt.Fprintf(out, "recorded %s\n", ts.Format(time.RFC3339))
		return nil
	},
}

var stepsToggleCmd = &cobra.Command{
	Use:   "toggle <id>",
	Short: "Enable or disable a step in exports",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseStepID(args[0])
		if err != nil {
			return err
		}
		e, err := openSession().ToggleStep(id)
		if err != nil {
			return err
		}
		state := "enabled"
		if e.Disabled {
			state = "disabled"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Step #%d %s\n", id, state)
		return nil
	},
}

var stepsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Remove a step from the log (the table is not changed)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseStepID(args[0])
		if err != nil {
			return err
		}
		if err := openSession().DeleteStep(id); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Step #%d deleted\n", id)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(stepsCmd)
	stepsCmd.AddCommand(stepsShowCmd)
	stepsCmd.AddCommand(stepsToggleCmd)
	stepsCmd.AddCommand(stepsDeleteCmd)
	stepsCmd.Flags().BoolVar(&stepsJSON, "json", false, "print the raw log as JSON")
}
