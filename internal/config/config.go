package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultFile is the configuration file looked up in the working directory
// when --config is not given.
const DefaultFile = "smpybuild.yaml"

// Config is the smpybuild configuration file.
//
// Every field has a default matching the Makefiles smpybuild replaces, so an
// empty file (or no file at all) is a valid configuration.
type Config struct {
	Python     PythonConfig           `yaml:"python"`
	Extensions ExtensionsConfig       `yaml:"extensions"`
	Notebooks  NotebooksConfig        `yaml:"notebooks"`
	Publish    map[string]Destination `yaml:"publish"`
	Venv       VenvConfig             `yaml:"venv"`
	Env        EnvConfig              `yaml:"env"`

	// Freshness is "mtime" (make semantics) or "content".
	Freshness string `yaml:"freshness"`

	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	History HistoryConfig `yaml:"history"`
	Watch   WatchConfig   `yaml:"watch"`

	// StateDir holds stamps and run history, relative to the working directory.
	StateDir string `yaml:"state_dir"`
}

// PythonConfig names the interpreters used by the extension targets.
type PythonConfig struct {
	Default string `yaml:"default"`
	Python2 string `yaml:"python2"`
	Python3 string `yaml:"python3"`
}

// ExtensionsConfig drives the cython_extensions targets.
type ExtensionsConfig struct {
	SetupScript string   `yaml:"setup_script"`
	BuildArgs   []string `yaml:"build_args"`

	// Sources are the Cython inputs; watch rebuilds when they change.
	Sources []string `yaml:"sources"`

	// Artifacts is where build_ext leaves the compiled modules.
	Artifacts string `yaml:"artifacts"`
	TargetDir string `yaml:"target_dir"`

	// Cleanup
	BuildDirs []string `yaml:"build_dirs"`
	Generated []string `yaml:"generated"`
}

// Converter backends.
const (
	ConverterNbconvert = "nbconvert"
	ConverterNative    = "native"
)

// NotebooksConfig drives the nb2py / nb2html targets.
type NotebooksConfig struct {
	Pattern   string `yaml:"pattern"`
	Converter string `yaml:"converter"`

	// Nbconvert is the executable used by the nbconvert backend.
	Nbconvert string `yaml:"nbconvert"`
}

// Destination is a publishing target. Exactly one of Path and Remote is set.
type Destination struct {
	Path   string `yaml:"path,omitempty"`
	Remote string `yaml:"remote,omitempty"`

	// Command copies files to Remote. Defaults to scp.
	Command string `yaml:"command,omitempty"`
}

// IsRemote reports whether the destination is reached through Command.
func (d Destination) IsRemote() bool { return d.Remote != "" }

// VenvConfig drives the venv target.
type VenvConfig struct {
	Command string `yaml:"command"`
	Dir     string `yaml:"dir"`
}

// EnvConfig controls the environment of shell steps.
type EnvConfig struct {
	// Passthrough lists host variables copied into every step.
	Passthrough []string `yaml:"passthrough"`

	// Vars are set on every step and win over passthrough values.
	Vars map[string]string `yaml:"vars"`
}

// LoggingConfig mirrors the --verbose / --log-format flags.
type LoggingConfig struct {
	Level  LogLevel  `yaml:"level"`
	Format LogFormat `yaml:"format"`
}

// MetricsConfig controls the Prometheus textfile export.
type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

// HistoryConfig controls run-history retention.
type HistoryConfig struct {
	// Keep is the number of runs retained. Negative keeps everything.
	Keep int `yaml:"keep"`
}

// WatchConfig controls `smpybuild watch`.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

// Load reads the configuration at path.
//
// .env and .env.local next to the file are loaded first (existing process
// variables win) so ${VAR} references in the YAML can use them. When
// optional is true a missing file yields the defaults.
func Load(path string, optional bool) (*Config, error) {
	if _, err := loadEnvFiles(dirOf(path)); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
	case optional && errors.Is(err, fs.ErrNotExist):
		data = nil
	case errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("configuration file not found: %s", path)
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML configuration data, expanding ${VAR} references from
// the process environment, then applies defaults and validates. References
// to unset or empty variables are left in place; publishing resolves them
// again at run time and fails on the ones still missing.
func Parse(data []byte) (*Config, error) {
	var cfg Config

	expanded := os.Expand(string(data), expandSetOnly)
	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	normalize(&cfg)
	applyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func expandSetOnly(key string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	if !isEnvName(key) {
		return ""
	}
	return "${" + key + "}"
}

func isEnvName(s string) bool {
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return s != ""
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}
