package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"smpybuild/internal/core"
)

// Validate checks a configuration after defaults have been applied.
// All problems are reported together.
func Validate(cfg *Config) error {
	var errs []error

	if _, err := core.ParseFreshnessMode(cfg.Freshness); err != nil {
		errs = append(errs, err)
	}
	if NormalizeLogLevel(string(cfg.Logging.Level)) == "" {
		errs = append(errs, fmt.Errorf("invalid logging.level %q (expected debug|info|warn|error)", cfg.Logging.Level))
	}
	if NormalizeLogFormat(string(cfg.Logging.Format)) == "" {
		errs = append(errs, fmt.Errorf("invalid logging.format %q (expected text|json)", cfg.Logging.Format))
	}

	switch cfg.Notebooks.Converter {
	case ConverterNbconvert, ConverterNative:
	default:
		errs = append(errs, fmt.Errorf("invalid notebooks.converter %q (expected nbconvert|native)", cfg.Notebooks.Converter))
	}
	if strings.HasPrefix(cfg.Notebooks.Pattern, "/") {
		errs = append(errs, fmt.Errorf("notebooks.pattern must be relative: %q", cfg.Notebooks.Pattern))
	}

	if cfg.Extensions.Artifacts == "" {
		errs = append(errs, errors.New("extensions.artifacts is required"))
	}

	names := make([]string, 0, len(cfg.Publish))
	for name := range cfg.Publish {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		d := cfg.Publish[name]
		switch {
		case strings.TrimSpace(name) == "":
			errs = append(errs, errors.New("publish: destination name is empty"))
		case d.Path != "" && d.Remote != "":
			errs = append(errs, fmt.Errorf("publish.%s: path and remote are mutually exclusive", name))
		case d.Path == "" && d.Remote == "":
			errs = append(errs, fmt.Errorf("publish.%s: one of path or remote is required", name))
		}
	}

	if cfg.Venv.Dir == "" {
		errs = append(errs, errors.New("venv.dir is required"))
	}
	return errors.Join(errs...)
}
