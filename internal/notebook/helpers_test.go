package notebook

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"smpybuild/internal/core"
)

const sampleNotebook = `{
 "cells": [
  {"cell_type": "markdown", "metadata": {}, "source": ["# Title\n", "\n", "Some *text* <b>raw</b>."]},
  {"cell_type": "code", "execution_count": 2, "metadata": {}, "outputs": [
    {"output_type": "stream", "name": "stdout", "text": ["hello\n"]}
  ], "source": ["!pip install numpy\n", "%load_ext watermark\n", "import numpy as np\n", "if x < 1:\n", "    %time f()"]},
  {"cell_type": "code", "execution_count": null, "metadata": {}, "outputs": [], "source": "print('x')"},
  {"cell_type": "raw", "metadata": {}, "source": "dropped"},
  {"cell_type": "code", "execution_count": 4, "metadata": {}, "outputs": [
    {"output_type": "display_data", "data": {"image/png": "iVBORw0KGgo=\n", "text/plain": ["<Figure>"]}, "metadata": {}},
    {"output_type": "error", "ename": "ValueError", "evalue": "bad", "traceback": ["\u001b[0;31mValueError\u001b[0m: bad"]}
  ], "source": "plot()"}
 ],
 "metadata": {"language_info": {"name": "python"}},
 "nbformat": 4,
 "nbformat_minor": 2
}`

func writeFile(t *testing.T, dir, rel, content string) string {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte("#!/bin/sh\n"+body), 0o755))
	return p
}

// runStep executes a single native step through a core.Runner rooted at dir.
func runStep(t *testing.T, dir string, a core.Action) *core.TaskResult {
	t.Helper()
	r := core.NewRunner(dir, core.FreshnessMTime, nil)
	r.Passthrough = []string{"PATH"}
	res, err := r.Run(context.Background(), &core.Task{Name: "step", Steps: []core.Step{core.Native(a)}})
	require.NoError(t, err)
	return res
}
