package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	operrors "github.com/dshills/flowedit/pkg/errors"
	"github.com/dshills/flowedit/pkg/refdata"
)

const (
	// Version is the current version of flowedit
	Version = "1.0.0"

	// DefaultProject is used when neither --project nor config.yaml name one
	DefaultProject = "default"

	configDirEnv = "FLOWEDIT_CONFIG_DIR"
)

// Config holds the global configuration for the flowedit CLI
type Config struct {
	ConfigDir string
	Debug     bool
	Project   string

	FetchTimeout time.Duration
	UndoCapacity int
}

// FileConfig is the content of config.yaml
type FileConfig struct {
	Version      string        `yaml:"version"`
	Project      string        `yaml:"project"`
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
	UndoCapacity int           `yaml:"undo_capacity"`
}

// GlobalConfig is the shared configuration instance
var GlobalConfig = &Config{}

// NewRootCommand creates the root cobra command for flowedit
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flowedit",
		Short: "flowedit - edit flow graphs from the command line",
		Long: `flowedit edits flow graphs: the nodes of a flow, their configuration and
their variables, plus the enumerations and constants node forms can reference.

Every edit goes through the same node editor an interactive front end uses, so
configuration is normalized the same way.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := initConfig(); err != nil {
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}
			setupLogging(cmd.ErrOrStderr(), GlobalConfig.Debug)
			return nil
		},
	}

	cmd.PersistentFlags().BoolVar(&GlobalConfig.Debug, "debug", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&GlobalConfig.ConfigDir, "config-dir", "", "Configuration directory (default: ~/.flowedit)")
	cmd.PersistentFlags().StringVarP(&GlobalConfig.Project, "project", "p", "", "Project owning reference data (default from config.yaml)")

	cmd.AddCommand(NewInitCommand())
	cmd.AddCommand(NewValidateCommand())
	cmd.AddCommand(NewNodeCommand())
	cmd.AddCommand(NewVarCommand())
	cmd.AddCommand(NewRefDataCommand())

	return cmd
}

// setupLogging installs the default logger: debug output on w, or nothing
func setupLogging(w io.Writer, debug bool) {
	if !debug {
		slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
		return
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})))
}

// initConfig initializes the configuration directory and reads config.yaml
func initConfig() error {
	// Environment variable always takes priority (for testing)
	if envDir := os.Getenv(configDirEnv); envDir != "" {
		GlobalConfig.ConfigDir = envDir
	} else if GlobalConfig.ConfigDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get user home directory: %w", err)
		}
		GlobalConfig.ConfigDir = filepath.Join(homeDir, ".flowedit")
	}

	if err := os.MkdirAll(GetFlowsDir(), 0755); err != nil {
		return fmt.Errorf("failed to create flows directory: %w", err)
	}

	fileConfig, err := loadFileConfig(filepath.Join(GlobalConfig.ConfigDir, "config.yaml"))
	if err != nil {
		return err
	}

	if GlobalConfig.Project == "" {
		GlobalConfig.Project = fileConfig.Project
	}
	GlobalConfig.FetchTimeout = fileConfig.FetchTimeout
	GlobalConfig.UndoCapacity = fileConfig.UndoCapacity
	return nil
}

func defaultFileConfig() FileConfig {
	return FileConfig{
		Version:      "1.0",
		Project:      DefaultProject,
		FetchTimeout: refdata.DefaultFetchTimeout,
		UndoCapacity: 100,
	}
}

// loadFileConfig reads path, creating it with defaults when missing.
// Fields missing from the file keep their defaults.
func loadFileConfig(path string) (FileConfig, error) {
	cfg := defaultFileConfig()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return cfg, fmt.Errorf("failed to marshal default config: %w", err)
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			return cfg, fmt.Errorf("failed to write default config: %w", err)
		}
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if cfg.Project == "" {
		cfg.Project = DefaultProject
	}
	return cfg, nil
}

// GetConfigDir returns the configuration directory path
// Priority order: 1) FLOWEDIT_CONFIG_DIR env var (for testing), 2) GlobalConfig.ConfigDir, 3) ~/.flowedit
func GetConfigDir() string {
	if envDir := os.Getenv(configDirEnv); envDir != "" {
		return envDir
	}
	if GlobalConfig.ConfigDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return ".flowedit"
		}
		return filepath.Join(homeDir, ".flowedit")
	}
	return GlobalConfig.ConfigDir
}

// GetFlowsDir returns the directory flow files are stored in
func GetFlowsDir() string {
	return filepath.Join(GetConfigDir(), "flows")
}

// GetDatabasePath returns the reference data database path
func GetDatabasePath() string {
	return filepath.Join(GetConfigDir(), "flowedit.db")
}

// Execute runs the root command with the process arguments
func Execute() error {
	err := NewRootCommand().Execute()
	var opErr *operrors.OperationalError
	if errors.As(err, &opErr) {
		slog.Debug("command failed", "error", opErr)
	}
	return err
}
