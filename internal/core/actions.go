package core

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// CopyFiles copies every regular file matching Patterns into DestDir,
// keeping base names. It fails when nothing matches, like `cp` with an
// unexpanded glob.
type CopyFiles struct {
	Patterns []string
	DestDir  string
}

func (a CopyFiles) Describe() string {
	return fmt.Sprintf("copy %s -> %s", strings.Join(a.Patterns, " "), a.DestDir)
}

func (a CopyFiles) Do(ctx context.Context, sc *StepContext) error {
	files, err := NewInputResolver(sc.WorkDir).Resolve(a.Patterns)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no files match %s", strings.Join(a.Patterns, " "))
	}
	dest := sc.Abs(a.DestDir)
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", a.DestDir, err)
	}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		src := sc.Abs(f.Path)
		dst := filepath.Join(dest, filepath.Base(src))
		if err := CopyFile(src, dst); err != nil {
			return err
		}
		if sc.Logger != nil {
			sc.Logger.Debug("Copied file", "from", f.Path, "to", dst)
		}
	}
	return nil
}

// CopyFile copies src to dst, preserving the permission bits.
// Copying a file onto itself is a no-op.
func CopyFile(src, dst string) error {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return err
	}
	if dstInfo, err := os.Stat(dst); err == nil && os.SameFile(srcInfo, dstInfo) {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		_ = in.Close()
	}()

	tmp, err := os.CreateTemp(filepath.Dir(dst), filepath.Base(dst)+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := io.Copy(tmp, in); err != nil {
		return fmt.Errorf("copying %s: %w", src, err)
	}
	if err := tmp.Chmod(srcInfo.Mode().Perm()); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, dst)
}

// StripModes clears permission bits on every file matching Patterns.
type StripModes struct {
	Patterns []string
	Clear    os.FileMode
}

func (a StripModes) Describe() string {
	return fmt.Sprintf("chmod -%04o %s", a.Clear.Perm(), strings.Join(a.Patterns, " "))
}

func (a StripModes) Do(_ context.Context, sc *StepContext) error {
	files, err := NewInputResolver(sc.WorkDir).Resolve(a.Patterns)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no files match %s", strings.Join(a.Patterns, " "))
	}
	for _, f := range files {
		p := sc.Abs(f.Path)
		info, err := os.Stat(p)
		if err != nil {
			return err
		}
		if err := os.Chmod(p, info.Mode().Perm()&^a.Clear); err != nil {
			return err
		}
	}
	return nil
}

// RemovePaths deletes every path matching Patterns, recursively.
// Nothing matching is not an error.
type RemovePaths struct {
	Patterns []string
}

func (a RemovePaths) Describe() string {
	return "rm -rf " + strings.Join(a.Patterns, " ")
}

func (a RemovePaths) Do(_ context.Context, sc *StepContext) error {
	found, _, err := NewInputResolver(sc.WorkDir).ResolveOutputs(a.Patterns)
	if err != nil {
		return err
	}
	for _, f := range found {
		p := sc.Abs(f.Path)
		if filepath.Clean(p) == filepath.Clean(sc.WorkDir) {
			return fmt.Errorf("refusing to remove working directory")
		}
		if err := os.RemoveAll(p); err != nil {
			return err
		}
	}
	return nil
}

// ListFiles writes one line per matching file (mode, size, path) to stdout.
type ListFiles struct {
	Patterns []string
}

func (a ListFiles) Describe() string {
	return "ls " + strings.Join(a.Patterns, " ")
}

func (a ListFiles) Do(_ context.Context, sc *StepContext) error {
	files, err := NewInputResolver(sc.WorkDir).Resolve(a.Patterns)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no files match %s", strings.Join(a.Patterns, " "))
	}
	out := sc.Stdout
	if out == nil {
		out = io.Discard
	}
	for _, f := range files {
		info, err := os.Stat(sc.Abs(f.Path))
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s %10d %s\n", info.Mode(), info.Size(), f.Path)
	}
	return nil
}
