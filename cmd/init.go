package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/KaramelBytes/tabstep-cli/internal/session"
	"github.com/KaramelBytes/tabstep-cli/internal/utils"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Initialize an empty tabstep workspace",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := flagWorkspace
		if len(args) == 1 {
			dir = args[0]
		}
		if dir == "" {
			wd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("resolve working dir: %w", err)
			}
			dir = wd
		}
		actions := filepath.Join(dir, ".actions")
		if info, err := os.Stat(actions); err == nil && info.IsDir() {
			return fmt.Errorf("workspace already initialized at %s", dir)
		} else if err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("stat workspace: %w", err)
		}
		if err := utils.EnsureDir(dir); err != nil {
			return err
		}
		opt := session.Options{Workspace: dir, Logger: logger}
		if cfg != nil {
			opt.DataFile = cfg.DataFile
			opt.MaxHistory = cfg.MaxHistory
		}
		if err := session.New(opt).Log().Clear(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Workspace initialized: %s\n", dir)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
