package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type batches struct {
	mu  sync.Mutex
	all [][]string
}

func (b *batches) add(_ context.Context, changed []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.all = append(b.all, changed)
}

func (b *batches) snapshot() [][]string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([][]string(nil), b.all...)
}

func TestWatcher_TriggersOnMatchingChange(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nb"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "venv"), 0o755))

	w := &Watcher{Root: dir, Patterns: []string{"**/*.ipynb"}, Debounce: 20 * time.Millisecond}
	var got batches
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, got.add) }()

	// The watch is installed asynchronously, so keep touching until it fires.
	assert.Eventually(t, func() bool {
		_ = os.WriteFile(filepath.Join(dir, "nb", "A.py"), []byte("x"), 0o644)
		_ = os.WriteFile(filepath.Join(dir, "venv", "B.ipynb"), []byte("{}"), 0o644)
		_ = os.WriteFile(filepath.Join(dir, "nb", "A.ipynb"), []byte("{}"), 0o644)
		return len(got.snapshot()) > 0
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	for _, batch := range got.snapshot() {
		assert.Equal(t, []string{"nb/A.ipynb"}, batch)
	}
}

func TestWatcher_WatchesNewDirectories(t *testing.T) {
	dir := t.TempDir()
	w := &Watcher{Root: dir, Patterns: []string{"**/*.pyx"}, Debounce: 20 * time.Millisecond}
	var got batches
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx, got.add) }()

	sub := filepath.Join(dir, "pkg", "exp")
	assert.Eventually(t, func() bool {
		_ = os.MkdirAll(sub, 0o755)
		_ = os.WriteFile(filepath.Join(sub, "kl.pyx"), []byte("x"), 0o644)
		for _, b := range got.snapshot() {
			for _, p := range b {
				if p == "pkg/exp/kl.pyx" {
					return true
				}
			}
		}
		return false
	}, 5*time.Second, 50*time.Millisecond)
}

func TestWatcher_InvalidPattern(t *testing.T) {
	w := &Watcher{Root: t.TempDir(), Patterns: []string{"[unclosed"}}
	err := w.Run(context.Background(), func(context.Context, []string) {})
	require.Error(t, err)
}

func TestWatcher_Match(t *testing.T) {
	w := &Watcher{Root: "/repo", Patterns: []string{"*.ipynb", "SMPyBandits/**/*.pyx", "setup.py"}}

	tests := []struct {
		path string
		want bool
	}{
		{"/repo/A.ipynb", true},
		{"/repo/sub/A.ipynb", false},
		{"/repo/SMPyBandits/Policies/Experimentals/x.pyx", true},
		{"/repo/setup.py", true},
		{"/repo/A.py", false},
	}
	for _, tt := range tests {
		_, ok := w.match(filepath.FromSlash(tt.path))
		assert.Equal(t, tt.want, ok, tt.path)
	}
}
