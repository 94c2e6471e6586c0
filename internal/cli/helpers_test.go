package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const notebookJSON = `{
 "cells": [{"cell_type": "code", "execution_count": 1, "metadata": {}, "outputs": [], "source": ["print(%d)"]}],
 "metadata": {},
 "nbformat": 4,
 "nbformat_minor": 2
}`

func writeNotebook(t *testing.T, dir, name string, n int, mtime time.Time) {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(fmt.Sprintf(notebookJSON, n)), 0o644))
	require.NoError(t, os.Chtimes(p, mtime, mtime))
}

// newTestProject returns a working directory with one notebook converted by
// the native backend.
func newTestProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "smpybuild.yaml"), []byte("notebooks:\n  converter: native\n"), 0o644))
	writeNotebook(t, dir, "A.ipynb", 1, time.Now().Add(-time.Hour))
	return dir
}

func newTestApp(t *testing.T, ctx context.Context, flags CLI) (*App, *bytes.Buffer) {
	t.Helper()
	if flags.Jobs == 0 {
		flags.Jobs = 1
	}
	var out bytes.Buffer
	app, err := newApp(ctx, &flags, &out, &out)
	require.NoError(t, err)
	return app, &out
}
