package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Global configuration structure.
type Global struct {
	WorkspaceDir string `mapstructure:"workspace_dir" yaml:"workspace_dir"`
	DataFile     string `mapstructure:"data_file" yaml:"data_file"`
	MaxHistory   int    `mapstructure:"max_history" yaml:"max_history"`
	ExportName   string `mapstructure:"export_name" yaml:"export_name"`

	// Logging
	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`

	// HTTP adapter
	ServeAddr string `mapstructure:"serve_addr" yaml:"serve_addr"`
}

// Keys lists the settable configuration keys in display order.
var Keys = []string{"workspace_dir", "data_file", "max_history", "export_name", "log_level", "log_format", "serve_addr"}

func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".tabstep"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.tabstep/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	var path string
	if cfgFile != "" {
		path = cfgFile
	} else {
		dir, err := configDir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: flags (cfgFile) > env > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("TABSTEP")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("workspace_dir", "")
	v.SetDefault("data_file", "local_data.csv")
	v.SetDefault("max_history", 10)
	v.SetDefault("export_name", "session_export.py")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("serve_addr", "127.0.0.1:8050")

	// Config file
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := configDir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	// optional read
	_ = v.ReadInConfig()

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if c.WorkspaceDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolve working dir: %w", err)
		}
		c.WorkspaceDir = wd
	}
	if c.MaxHistory <= 0 {
		c.MaxHistory = 10
	}
	return &c, nil
}

// Set assigns a single key by name. Unknown keys and bad values are errors.
func (c *Global) Set(key, value string) error {
	switch key {
	case "workspace_dir":
		c.WorkspaceDir = value
	case "data_file":
		c.DataFile = value
	case "export_name":
		c.ExportName = value
	case "log_level":
		c.LogLevel = value
	case "log_format":
		if value != "text" && value != "json" {
			return fmt.Errorf("log_format must be text or json, got %q", value)
		}
		c.LogFormat = value
	case "serve_addr":
		c.ServeAddr = value
	case "max_history":
		var n int
		if _, err := fmt.Sscanf(value, "%d", &n); err != nil || n <= 0 {
			return fmt.Errorf("max_history must be a positive integer, got %q", value)
		}
		c.MaxHistory = n
	default:
		return fmt.Errorf("unknown config key %q", key)
	}
	return nil
}

// Get returns the display value of a key.
func (c *Global) Get(key string) (string, bool) {
	switch key {
	case "workspace_dir":
		return c.WorkspaceDir, true
	case "data_file":
		return c.DataFile, true
	case "export_name":
		return c.ExportName, true
	case "log_level":
		return c.LogLevel, true
	case "log_format":
		return c.LogFormat, true
	case "serve_addr":
		return c.ServeAddr, true
	case "max_history":
		return fmt.Sprintf("%d", c.MaxHistory), true
	}
	return "", false
}
