// Package testutils holds fixtures shared by the package tests: site trees
// on an afero filesystem and a ready-to-use configuration.
package testutils

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/stasis/internal/config"
)

// CreateTestConfig returns a configuration that binds an ephemeral port on
// loopback, builds source into output with two workers and polls quickly.
func CreateTestConfig(source, output string) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Host:         "127.0.0.1",
			Port:         0,
			LiveReload:   true,
			ReloadAnchor: config.DefaultReloadAnchor,
		},
		Build: config.BuildConfig{
			Source:  source,
			Output:  output,
			Workers: 2,
		},
		Watch: config.WatchConfig{
			Interval: 250 * time.Millisecond,
			Ignore:   []string{"node_modules", ".git"},
		},
	}
}

// WriteFile creates path and its parents on fsys.
func WriteFile(t *testing.T, fsys afero.Fs, path, content string) {
	t.Helper()
	require.NoError(t, fsys.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, afero.WriteFile(fsys, path, []byte(content), 0o644))
}

// WriteFileAt is WriteFile with a fixed modification time.
func WriteFileAt(t *testing.T, fsys afero.Fs, path, content string, mtime time.Time) {
	t.Helper()
	WriteFile(t, fsys, path, content)
	require.NoError(t, fsys.Chtimes(path, mtime, mtime))
}

// CreateSite writes files, keyed by slash-separated path, under root.
func CreateSite(t *testing.T, fsys afero.Fs, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		WriteFile(t, fsys, filepath.Join(root, filepath.FromSlash(rel)), content)
	}
}

// ReadFile returns the contents of path on fsys.
func ReadFile(t *testing.T, fsys afero.Fs, path string) string {
	t.Helper()
	data, err := afero.ReadFile(fsys, path)
	require.NoError(t, err)
	return string(data)
}

// Exists reports whether path exists on fsys.
func Exists(t *testing.T, fsys afero.Fs, path string) bool {
	t.Helper()
	ok, err := afero.Exists(fsys, path)
	require.NoError(t, err)
	return ok
}
