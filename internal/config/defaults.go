package config

import (
	"strings"
	"time"
)

// Publishing path of the notebooks Makefile. ${Szam} is expected
// to hold a "user@host:~/www/" style prefix.
const defaultRemote = "${Szam}phd/SMPyBandits/notebooks/"

func defaultPassthrough() []string {
	return []string{
		"HOME", "LANG", "LC_ALL", "PATH", "PYTHONPATH",
		"SSH_AUTH_SOCK", "TMPDIR", "USER", "VIRTUAL_ENV",
	}
}

func normalize(cfg *Config) {
	cfg.Freshness = strings.ToLower(strings.TrimSpace(cfg.Freshness))
	cfg.Notebooks.Converter = strings.ToLower(strings.TrimSpace(cfg.Notebooks.Converter))
	if l := NormalizeLogLevel(string(cfg.Logging.Level)); l != "" {
		cfg.Logging.Level = l
	}
	if f := NormalizeLogFormat(string(cfg.Logging.Format)); f != "" {
		cfg.Logging.Format = f
	}
}

func applyDefaults(cfg *Config) {
	p := &cfg.Python
	if p.Python3 == "" {
		p.Python3 = "python3"
	}
	if p.Python2 == "" {
		p.Python2 = "python2"
	}
	if p.Default == "" {
		p.Default = p.Python3
	}

	ext := &cfg.Extensions
	if ext.SetupScript == "" {
		ext.SetupScript = "setup.py"
	}
	if ext.BuildArgs == nil {
		ext.BuildArgs = []string{"--inplace"}
	}
	if ext.Sources == nil {
		ext.Sources = []string{"SMPyBandits/Policies/Experimentals/*.pyx"}
	}
	if ext.Artifacts == "" {
		ext.Artifacts = "SMPyBandits/Policies/Experimentals/*.so"
	}
	if ext.TargetDir == "" {
		ext.TargetDir = "."
	}
	if ext.BuildDirs == nil {
		ext.BuildDirs = []string{"build"}
	}
	if ext.Generated == nil {
		ext.Generated = []string{"SMPyBandits/Policies/Experimentals/*.c"}
	}

	nb := &cfg.Notebooks
	if nb.Pattern == "" {
		nb.Pattern = "*.ipynb"
	}
	if nb.Converter == "" {
		nb.Converter = ConverterNbconvert
	}
	if nb.Nbconvert == "" {
		nb.Nbconvert = "jupyter-nbconvert"
	}

	// send is an alias of send_zamok, as in the Makefile.
	if cfg.Publish == nil {
		cfg.Publish = map[string]Destination{
			"send":       {Remote: defaultRemote},
			"send_zamok": {Remote: defaultRemote},
		}
	}
	for name, d := range cfg.Publish {
		if d.Remote != "" && d.Command == "" {
			d.Command = "scp"
			cfg.Publish[name] = d
		}
	}

	if cfg.Venv.Command == "" {
		cfg.Venv.Command = "virtualenv3"
	}
	if cfg.Venv.Dir == "" {
		cfg.Venv.Dir = "venv"
	}

	if cfg.Env.Passthrough == nil {
		cfg.Env.Passthrough = defaultPassthrough()
	}

	if cfg.Freshness == "" {
		cfg.Freshness = "mtime"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = LogLevelInfo
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = LogFormatText
	}
	if cfg.History.Keep == 0 {
		cfg.History.Keep = 50
	}
	if cfg.Watch.Debounce <= 0 {
		cfg.Watch.Debounce = 500 * time.Millisecond
	}
	if cfg.StateDir == "" {
		cfg.StateDir = ".smpybuild"
	}
}
