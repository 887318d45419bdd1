// Package config loads packager-runner settings from defaults, an optional
// packager-runner.yaml file and PACKAGER_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/SanjoDeundiak/packager-runner/pkg/lib/logger"
)

// Config holds all configuration sections.
type Config struct {
	Packager   PackagerConfig       `mapstructure:"packager"`
	Retry      RetryConfig          `mapstructure:"retry"`
	Supervisor SupervisorConfig     `mapstructure:"supervisor"`
	Workspace  WorkspaceConfig      `mapstructure:"workspace"`
	IPC        IPCConfig            `mapstructure:"ipc"`
	Logging    logger.LoggingConfig `mapstructure:"logging"`
}

// PackagerConfig describes how to reach and spawn the bundler.
type PackagerConfig struct {
	Host           string   `mapstructure:"host"`
	Port           int      `mapstructure:"port"`
	Command        string   `mapstructure:"command"`
	Args           []string `mapstructure:"args"`
	ReadyPattern   string   `mapstructure:"readyPattern"`
	ProbeTimeoutMs int      `mapstructure:"probeTimeoutMs"`
	PatchOpn       bool     `mapstructure:"patchOpn"`
}

// RetryConfig is the readiness polling budget used after spawning.
type RetryConfig struct {
	MaxAttempts int `mapstructure:"maxAttempts"`
	DelayMs     int `mapstructure:"delayMs"`
}

// SupervisorConfig tunes process termination.
type SupervisorConfig struct {
	TerminateGraceMs int `mapstructure:"terminateGraceMs"`
}

// WorkspaceConfig identifies the project the packager serves.
type WorkspaceConfig struct {
	Path string `mapstructure:"path"`
}

// IPCConfig configures the control socket. An empty SocketPath is derived from the workspace.
type IPCConfig struct {
	SocketPath string `mapstructure:"socketPath"`
}

// Address returns host:port of the packager.
func (p *PackagerConfig) Address() string {
	return fmt.Sprintf("%s:%d", p.Host, p.Port)
}

// ProbeTimeout returns the per-request HTTP timeout.
func (p *PackagerConfig) ProbeTimeout() time.Duration {
	return time.Duration(p.ProbeTimeoutMs) * time.Millisecond
}

// Delay returns the constant delay between readiness attempts.
func (r *RetryConfig) Delay() time.Duration {
	return time.Duration(r.DelayMs) * time.Millisecond
}

// TerminateGrace returns how long a SIGTERM is given before SIGKILL.
func (s *SupervisorConfig) TerminateGrace() time.Duration {
	return time.Duration(s.TerminateGraceMs) * time.Millisecond
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("packager.host", "localhost")
	v.SetDefault("packager.port", 8081)
	v.SetDefault("packager.command", "npx")
	v.SetDefault("packager.args", []string{"react-native", "start"})
	v.SetDefault("packager.readyPattern", `(?i)(packager|metro).*(ready|running)|Loading dependency graph, done`)
	v.SetDefault("packager.probeTimeoutMs", 2000)
	v.SetDefault("packager.patchOpn", true)

	v.SetDefault("retry.maxAttempts", 30)
	v.SetDefault("retry.delayMs", 2000)

	v.SetDefault("supervisor.terminateGraceMs", 5000)

	v.SetDefault("workspace.path", "")
	v.SetDefault("ipc.socketPath", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.outputPath", "stderr")
}

// Load reads configuration using the current directory as the workspace.
func Load() (*Config, error) {
	return LoadWithPath("")
}

// LoadWithPath reads configuration, looking for packager-runner.yaml in configPath first.
func LoadWithPath(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("PACKAGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// camelCase keys do not map onto SNAKE_CASE env names by themselves
	_ = v.BindEnv("packager.readyPattern", "PACKAGER_PACKAGER_READY_PATTERN")
	_ = v.BindEnv("packager.probeTimeoutMs", "PACKAGER_PACKAGER_PROBE_TIMEOUT_MS")
	_ = v.BindEnv("packager.patchOpn", "PACKAGER_PACKAGER_PATCH_OPN")
	_ = v.BindEnv("retry.maxAttempts", "PACKAGER_RETRY_MAX_ATTEMPTS")
	_ = v.BindEnv("retry.delayMs", "PACKAGER_RETRY_DELAY_MS")
	_ = v.BindEnv("supervisor.terminateGraceMs", "PACKAGER_SUPERVISOR_TERMINATE_GRACE_MS")
	_ = v.BindEnv("ipc.socketPath", "PACKAGER_IPC_SOCKET_PATH")
	_ = v.BindEnv("logging.outputPath", "PACKAGER_LOGGING_OUTPUT_PATH")

	v.SetConfigName("packager-runner")
	v.SetConfigType("yaml")
	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "packager-runner"))
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if cfg.Workspace.Path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolve workspace: %w", err)
		}
		cfg.Workspace.Path = wd
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	var errs []string

	if cfg.Packager.Host == "" {
		errs = append(errs, "packager.host is required")
	}
	if cfg.Packager.Port <= 0 || cfg.Packager.Port > 65535 {
		errs = append(errs, "packager.port must be between 1 and 65535")
	}
	if strings.TrimSpace(cfg.Packager.Command) == "" {
		errs = append(errs, "packager.command is required")
	}
	if cfg.Packager.ProbeTimeoutMs <= 0 {
		errs = append(errs, "packager.probeTimeoutMs must be positive")
	}
	if cfg.Retry.MaxAttempts < 1 {
		errs = append(errs, "retry.maxAttempts must be at least 1")
	}
	if cfg.Retry.DelayMs < 0 {
		errs = append(errs, "retry.delayMs must not be negative")
	}
	if cfg.Supervisor.TerminateGraceMs <= 0 {
		errs = append(errs, "supervisor.terminateGraceMs must be positive")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(cfg.Logging.Level)] {
		errs = append(errs, "logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[strings.ToLower(cfg.Logging.Format)] {
		errs = append(errs, "logging.format must be one of: json, text")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}
