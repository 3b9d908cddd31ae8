package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	cfgpkg "github.com/KaramelBytes/tabstep-cli/internal/config"
	"github.com/KaramelBytes/tabstep-cli/internal/logging"
	"github.com/KaramelBytes/tabstep-cli/internal/metrics"
	"github.com/KaramelBytes/tabstep-cli/internal/session"
	"github.com/KaramelBytes/tabstep-cli/internal/utils"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile       string
	debug         bool
	flagWorkspace string
	flagLogFormat string

	// Loaded configuration
	cfg    *cfgpkg.Global
	logger = slog.Default()
)

var rootCmd = &cobra.Command{
	Use:   "tabstep",
	Short: "tabstep: explore a dataset as a log of replayable steps",
	Long: `tabstep loads a tabular dataset into a workspace and records every cleaning
operation, chart and model run as a step. Steps can be undone, toggled,
exported to a pandas script and imported back.`,
	SilenceUsage: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(loadConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.tabstep/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&flagWorkspace, "workspace", "w", "", "workspace directory (default: nearest directory holding a session, else the current one)")
	rootCmd.PersistentFlags().StringVar(&flagLogFormat, "log-format", "", "log format: text|json (overrides config)")
}

func loadConfig() {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: fall back to defaults
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		c = &cfgpkg.Global{DataFile: session.DefaultDataFile, MaxHistory: 10, LogLevel: "info", LogFormat: "text"}
	}
	cfg = c

	level := cfg.LogLevel
	if debug {
		level = "debug"
	}
	format := cfg.LogFormat
	if flagLogFormat != "" {
		format = flagLogFormat
	}
	logger = logging.Setup(level, format)
}

// workspaceDir resolves the session root: --workspace, then the nearest
// directory at or above the configured one that already holds a session,
// then the configured directory itself.
func workspaceDir() string {
	if flagWorkspace != "" {
		return flagWorkspace
	}
	start := ""
	dataFile := session.DefaultDataFile
	if cfg != nil {
		start = cfg.WorkspaceDir
		if cfg.DataFile != "" {
			dataFile = cfg.DataFile
		}
	}
	if root, err := utils.FindWorkspaceRoot(start, dataFile); err == nil {
		return root
	}
	if start == "" {
		if wd, err := os.Getwd(); err == nil {
			return wd
		}
		return "."
	}
	return start
}

func openSession() *session.Session {
	return openSessionWith(nil)
}

func openSessionWith(m *metrics.Metrics) *session.Session {
	opt := session.Options{Workspace: workspaceDir(), Logger: logger, Metrics: m}
	if cfg != nil {
		opt.DataFile = cfg.DataFile
		opt.MaxHistory = cfg.MaxHistory
	}
	return session.New(opt)
}

// exportName is the default script name, relative to the workspace.
func exportName(ws string) string {
	name := "session_export.py"
	if cfg != nil && cfg.ExportName != "" {
		name = cfg.ExportName
	}
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(ws, name)
}
