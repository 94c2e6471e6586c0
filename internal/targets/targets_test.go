package targets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smpybuild/internal/config"
	"smpybuild/internal/core"
	"smpybuild/internal/dag"
)

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, n := range names {
		p := filepath.Join(dir, filepath.FromSlash(n))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte("{}"), 0o644))
	}
}

func buildGraph(t *testing.T, dir string, cfg *config.Config) (*Catalog, *dag.TaskGraph) {
	t.Helper()
	c, err := Build(dir, cfg)
	require.NoError(t, err)
	g, err := c.Graph()
	require.NoError(t, err)
	return c, g
}

func TestBuild_MakefileTargets(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "A.ipynb", "B.ipynb", ".ipynb_checkpoints/A-checkpoint.ipynb")

	c, g := buildGraph(t, dir, config.Default())
	assert.Equal(t, []string{"A.ipynb", "B.ipynb"}, c.Notebooks)

	for _, name := range []string{
		"all", "cython_extensions", "cython_extensions2", "cython_extensions3",
		"nb2py", "nb2html", "notebooks", "send", "send_zamok", "venv",
		"A.py", "A.html", "B.py", "B.html",
	} {
		_, ok := g.Node(name)
		assert.True(t, ok, name)
	}

	assert.Equal(t, []string{"A.py", "B.py"}, g.Dependencies(NB2Py))
	assert.Equal(t, []string{"A.html", "B.html"}, g.Dependencies(NB2HTML))
	assert.Equal(t, []string{NB2HTML, NB2Py}, g.Dependencies(Notebooks))
	assert.Equal(t, []string{CythonExtensions, Notebooks}, g.Dependencies(All))
	assert.Equal(t, []string{NB2HTML}, g.Dependencies("send"))
	assert.Empty(t, g.Dependencies(Venv))
	assert.Empty(t, g.Dependencies(CythonExtensions3))
}

// Derived names are the source name with the suffix substituted.
func TestBuild_NotebookTasks(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "sub/X.ipynb")
	cfg := config.Default()
	cfg.Notebooks.Pattern = "**/*.ipynb"

	_, g := buildGraph(t, dir, cfg)

	n, ok := g.Node("sub/X.html")
	require.True(t, ok)
	assert.Equal(t, []string{"sub/X.ipynb"}, n.Task.Inputs)
	assert.Equal(t, []string{"sub/X.html"}, n.Task.Outputs)
	require.Len(t, n.Task.Steps, 1)
	assert.Equal(t, "jupyter-nbconvert --to html sub/X.ipynb", n.Task.Steps[0].Describe())
	assert.False(t, n.Task.Phony)
}

func TestBuild_ExtensionRecipe(t *testing.T) {
	_, g := buildGraph(t, t.TempDir(), config.Default())

	n, ok := g.Node(CythonExtensions2)
	require.True(t, ok)

	var lines []string
	for _, s := range n.Task.Steps {
		lines = append(lines, s.Describe())
	}
	assert.Equal(t, []string{
		"python2 setup.py build_ext --inplace",
		"-copy SMPyBandits/Policies/Experimentals/*.so -> .",
		"-chmod -0133 *.so",
		"-ls *.so",
		"-rm -rf build",
		"-rm -rf SMPyBandits/Policies/Experimentals/*.c",
	}, lines)
	assert.True(t, n.Task.Phony)
	assert.Empty(t, n.Task.Outputs)

	// Only the build step is primary.
	for i, s := range n.Task.Steps {
		assert.Equal(t, i > 0, s.IgnoreErrors, lines[i])
	}
}

func TestBuild_PublishDestinations(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "A.ipynb")
	cfg := config.Default()
	cfg.Publish = map[string]config.Destination{"site": {Path: "_site"}}

	_, g := buildGraph(t, dir, cfg)

	n, ok := g.Node("site")
	require.True(t, ok)
	assert.True(t, n.Task.Phony)
	assert.Equal(t, "copy A.html -> _site", n.Task.Steps[0].Describe())
	_, ok = g.Node("send")
	assert.False(t, ok)
}

func TestBuild_RejectsClashingDestination(t *testing.T) {
	cfg := config.Default()
	cfg.Publish = map[string]config.Destination{"venv": {Path: "x"}}
	_, err := Build(t.TempDir(), cfg)
	require.Error(t, err)
}

func TestBuild_NativeConverter(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "A.ipynb")
	cfg := config.Default()
	cfg.Notebooks.Converter = config.ConverterNative

	_, g := buildGraph(t, dir, cfg)
	n, _ := g.Node("A.py")
	assert.Equal(t, "convert --to python A.ipynb", n.Task.Steps[0].Describe())
}

func TestSelect(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "A.ipynb")
	_, g := buildGraph(t, dir, config.Default())

	sub, err := Select(g, nil)
	require.NoError(t, err)
	_, ok := sub.Node(Venv)
	assert.False(t, ok, "venv is not part of all")
	_, ok = sub.Node("A.html")
	assert.True(t, ok)

	sub, err = Select(g, []string{"send"})
	require.NoError(t, err)
	assert.Equal(t, []string{"A.html", NB2HTML, "send"}, sub.TopologicalOrder())

	_, err = Select(g, []string{"nope"})
	require.ErrorIs(t, err, dag.ErrUnknownTarget)
}

func TestBuild_NoNotebooks(t *testing.T) {
	_, g := buildGraph(t, t.TempDir(), config.Default())
	assert.Empty(t, g.Dependencies(NB2Py))

	n, _ := g.Node(Venv)
	assert.Equal(t, []core.Step{core.Shell("virtualenv3 venv")}, n.Task.Steps)
}
