package notebook

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"smpybuild/internal/core"
)

// Publish copies the files matching Patterns to a destination directory,
// either locally (Path) or through a copy command (Remote, e.g. scp).
//
// ${VAR} references in Path and Remote are expanded when the step runs; an
// unset variable is an error rather than silently publishing to a
// truncated path.
type Publish struct {
	Patterns []string
	Path     string
	Remote   string
	Command  string

	// LookupEnv defaults to os.LookupEnv.
	LookupEnv func(string) (string, bool)
}

func (p Publish) Describe() string {
	files := strings.Join(p.Patterns, " ")
	if p.Remote != "" {
		return fmt.Sprintf("%s %s %s", p.command(), files, p.Remote)
	}
	return fmt.Sprintf("copy %s -> %s", files, p.Path)
}

func (p Publish) command() string {
	if p.Command == "" {
		return "scp"
	}
	return p.Command
}

func (p Publish) Do(ctx context.Context, sc *core.StepContext) error {
	found, err := core.NewInputResolver(sc.WorkDir).Resolve(p.Patterns)
	if err != nil {
		return err
	}
	if len(found) == 0 {
		return fmt.Errorf("nothing to publish: no files match %s", strings.Join(p.Patterns, " "))
	}
	files := make([]string, len(found))
	for i, f := range found {
		files[i] = f.Path
	}

	if p.Remote != "" {
		remote, err := p.expand(p.Remote)
		if err != nil {
			return err
		}
		args := make([]string, 0, len(files)+2)
		args = append(args, p.command())
		for _, f := range files {
			args = append(args, core.ShellQuote(f))
		}
		args = append(args, core.ShellQuote(remote))
		return sc.Shell(ctx, strings.Join(args, " "))
	}

	dest, err := p.expand(p.Path)
	if err != nil {
		return err
	}
	dest = sc.Abs(dest)
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dest, err)
	}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := core.CopyFile(sc.Abs(f), filepath.Join(dest, filepath.Base(f))); err != nil {
			return err
		}
	}
	if sc.Logger != nil {
		sc.Logger.Info("Published files", "count", len(files), "path", dest)
	}
	return nil
}

func (p Publish) expand(s string) (string, error) {
	lookup := p.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	var missing []string
	out := os.Expand(s, func(key string) string {
		v, ok := lookup(key)
		if !ok || v == "" {
			missing = append(missing, key)
		}
		return v
	})
	if len(missing) > 0 {
		sort.Strings(missing)
		return "", fmt.Errorf("destination %q: unset variable(s) %s", s, strings.Join(missing, ", "))
	}
	if strings.TrimSpace(out) == "" {
		return "", fmt.Errorf("destination is empty")
	}
	return out, nil
}
