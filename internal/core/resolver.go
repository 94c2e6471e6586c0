package core

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// InputResolver expands declared patterns to a deterministic, sorted set of
// paths.
//
// Patterns use doublestar syntax ("**" crosses directories). Ordering never
// depends on directory iteration order.
type InputResolver struct {
	// BaseDir is the directory relative patterns are resolved against.
	BaseDir string
}

// NewInputResolver creates a new InputResolver with the given base directory.
func NewInputResolver(baseDir string) *InputResolver {
	return &InputResolver{BaseDir: baseDir}
}

// Resolve expands input patterns to regular files.
//
// Directories matched by a pattern are ignored. A literal path that does not
// exist is not an error: a missing prerequisite simply contributes nothing,
// and the recipe's own command decides whether that is fatal.
func (r *InputResolver) Resolve(patterns []string) ([]Input, error) {
	seen := make(map[string]Input)
	for _, pattern := range patterns {
		matches, err := r.expand(pattern)
		if err != nil {
			return nil, fmt.Errorf("expanding pattern %q: %w", pattern, err)
		}
		for _, m := range matches {
			if m.IsDir {
				continue
			}
			seen[m.Path] = m
		}
	}
	return sortedInputs(seen), nil
}

// ResolveOutputs expands output patterns, keeping directories.
//
// missing lists every literal output that does not exist and every glob
// that matched nothing, in declaration order.
func (r *InputResolver) ResolveOutputs(patterns []string) (found []Input, missing []string, err error) {
	seen := make(map[string]Input)
	for _, pattern := range patterns {
		matches, err := r.expand(pattern)
		if err != nil {
			return nil, nil, fmt.Errorf("expanding pattern %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			missing = append(missing, pattern)
			continue
		}
		for _, m := range matches {
			seen[m.Path] = m
		}
	}
	return sortedInputs(seen), missing, nil
}

func (r *InputResolver) expand(pattern string) ([]Input, error) {
	if strings.TrimSpace(pattern) == "" {
		return nil, fmt.Errorf("empty pattern")
	}
	full := absUnder(r.BaseDir, pattern)

	var paths []string
	if containsGlobChar(pattern) {
		if !doublestar.ValidatePathPattern(full) {
			return nil, fmt.Errorf("invalid glob pattern")
		}
		matches, err := doublestar.FilepathGlob(full)
		if err != nil {
			return nil, fmt.Errorf("invalid glob pattern: %w", err)
		}
		paths = matches
	} else {
		paths = []string{full}
	}

	out := make([]Input, 0, len(paths))
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("stat %q: %w", p, err)
		}
		out = append(out, Input{
			Path:    r.display(pattern, p),
			ModTime: info.ModTime(),
			Size:    info.Size(),
			IsDir:   info.IsDir(),
		})
	}
	return out, nil
}

// display maps an absolute match back to the form the user wrote:
// relative patterns yield base-relative slash paths.
func (r *InputResolver) display(pattern, abs string) string {
	if filepath.IsAbs(pattern) || r.BaseDir == "" {
		return filepath.ToSlash(abs)
	}
	rel, err := filepath.Rel(r.BaseDir, abs)
	if err != nil {
		return filepath.ToSlash(abs)
	}
	return filepath.ToSlash(rel)
}

func sortedInputs(set map[string]Input) []Input {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]Input, 0, len(keys))
	for _, k := range keys {
		out = append(out, set[k])
	}
	return out
}

func absUnder(base, p string) string {
	p = filepath.FromSlash(p)
	if filepath.IsAbs(p) || base == "" {
		return filepath.Clean(p)
	}
	return filepath.Join(base, p)
}

// containsGlobChar returns true if the pattern contains glob special characters.
func containsGlobChar(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[{")
}
