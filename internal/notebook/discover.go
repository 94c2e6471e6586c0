package notebook

import (
	"path"
	"sort"
	"strings"

	"smpybuild/internal/core"
)

const checkpointDir = ".ipynb_checkpoints"

// Discover returns the notebooks under dir matching pattern, as sorted
// slash-separated paths relative to dir. Jupyter checkpoint copies are
// skipped.
func Discover(dir, pattern string) ([]string, error) {
	found, err := core.NewInputResolver(dir).Resolve([]string{pattern})
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(found))
	for _, in := range found {
		if in.IsDir || inCheckpointDir(in.Path) {
			continue
		}
		out = append(out, in.Path)
	}
	sort.Strings(out)
	return out, nil
}

func inCheckpointDir(p string) bool {
	for _, part := range strings.Split(p, "/") {
		if part == checkpointDir {
			return true
		}
	}
	return false
}

// DerivedName substitutes the extension of src: "a/X.ipynb" -> "a/X.py".
func DerivedName(src, ext string) string {
	return strings.TrimSuffix(src, path.Ext(src)) + ext
}
