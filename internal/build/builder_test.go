package build

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/stasis/internal/config"
	stasiserrors "github.com/conneroisu/stasis/internal/errors"
	"github.com/conneroisu/stasis/internal/logging"
	"github.com/conneroisu/stasis/internal/render"
	"github.com/conneroisu/stasis/internal/testutils"
	"github.com/conneroisu/stasis/internal/watcher"
)

const (
	source = "/site"
	output = "/public"
)

func testConfig(workers int, fifo bool) *config.Config {
	cfg := testutils.CreateTestConfig(source, output)
	cfg.Build.Workers = workers
	cfg.Build.FIFO = fifo
	return cfg
}

func put(t *testing.T, fsys afero.Fs, rel, content string) {
	t.Helper()
	testutils.WriteFile(t, fsys, filepath.Join(source, rel), content)
}

func read(t *testing.T, fsys afero.Fs, rel string) string {
	t.Helper()
	return testutils.ReadFile(t, fsys, filepath.Join(output, rel))
}

func exists(t *testing.T, fsys afero.Fs, rel string) bool {
	t.Helper()
	return testutils.Exists(t, fsys, filepath.Join(output, rel))
}

func newSite(t *testing.T) afero.Fs {
	t.Helper()
	fsys := afero.NewMemMapFs()
	put(t, fsys, "index.html", "<!DOCTYPE html><html><body>home</body></html>")
	put(t, fsys, "blog/first-post.html", "---\ntitle: First\n---\n<p>post</p>")
	put(t, fsys, "blog/wip.html", "---\ndraft: true\n---\n<p>wip</p>")
	put(t, fsys, "css/site.css", "body{}")
	put(t, fsys, ".env", "SECRET=1")
	put(t, fsys, "node_modules/pkg/index.js", "x")
	put(t, fsys, "notes.html~", "backup")
	return fsys
}

func TestBuild(t *testing.T) {
	for _, fifo := range []bool{false, true} {
		fsys := newSite(t)
		b := New(testConfig(2, fifo), logging.Discard(), WithFs(fsys))

		result, err := b.Build(context.Background())
		require.NoError(t, err)

		assert.Equal(t, 2, result.Rendered)
		assert.Equal(t, 1, result.Copied)
		assert.Equal(t, 1, result.Skipped)
		assert.Equal(t, 3, result.Total())
		assert.Equal(t, []string{"blog/first-post.html", "css/site.css", "index.html"}, result.Outputs)

		assert.Equal(t, "<!DOCTYPE html><html><body>home</body></html>", read(t, fsys, "index.html"))
		assert.Contains(t, read(t, fsys, "blog/first-post.html"), "<title>First</title>")
		assert.Equal(t, "body{}", read(t, fsys, "css/site.css"))
		assert.False(t, exists(t, fsys, "blog/wip.html"))
		assert.False(t, exists(t, fsys, ".env"))
		assert.False(t, exists(t, fsys, "node_modules/pkg/index.js"))
		assert.False(t, exists(t, fsys, "notes.html~"))
	}
}

func TestBuildWithRenderer(t *testing.T) {
	fsys := newSite(t)
	renderer := render.New(render.WithDrafts(true), render.WithLang("de"))
	b := New(testConfig(2, false), logging.Discard(), WithFs(fsys), WithRenderer(renderer))

	result, err := b.Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, result.Rendered)
	assert.Zero(t, result.Skipped)
	assert.Contains(t, read(t, fsys, "blog/wip.html"), `<html lang="de">`)
}

func TestBuildMissingSource(t *testing.T) {
	b := New(testConfig(2, false), logging.Discard(), WithFs(afero.NewMemMapFs()))

	_, err := b.Build(context.Background())
	require.Error(t, err)
	assert.True(t, stasiserrors.IsNotFound(err))
}

func TestBuildContinuesPastFailures(t *testing.T) {
	fsys := newSite(t)
	put(t, fsys, "broken.html", "---\ntitle: never closed")
	b := New(testConfig(1, false), logging.Discard(), WithFs(fsys))

	result, err := b.Build(context.Background())
	require.Error(t, err)
	assert.True(t, stasiserrors.IsBuildError(err))
	assert.Contains(t, err.Error(), "broken.html")
	assert.Equal(t, 3, result.Total())
	assert.True(t, exists(t, fsys, "css/site.css"))
}

func TestApply(t *testing.T) {
	fsys := newSite(t)
	b := New(testConfig(4, false), logging.Discard(), WithFs(fsys))
	_, err := b.Build(context.Background())
	require.NoError(t, err)

	put(t, fsys, "about.html", "<h1>About me</h1>")
	put(t, fsys, "css/site.css", "body{color:red}")
	require.NoError(t, fsys.Remove(filepath.Join(source, "index.html")))

	result, err := b.Apply(context.Background(), []watcher.Event{
		{Type: watcher.EventTypeCreated, Path: filepath.Join(source, "about.html")},
		{Type: watcher.EventTypeChanged, Path: filepath.Join(source, "css/site.css")},
		{Type: watcher.EventTypeDeleted, Path: filepath.Join(source, "index.html")},
		{Type: watcher.EventTypeChanged, Path: "/elsewhere/x.html"},
		{Type: watcher.EventTypeChanged, Path: filepath.Join(source, ".env")},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Rendered)
	assert.Equal(t, 1, result.Copied)
	assert.Equal(t, 1, result.Removed)
	assert.Equal(t, []string{"about.html", "css/site.css", "index.html"}, result.Outputs)

	assert.Contains(t, read(t, fsys, "about.html"), "<title>About me</title>")
	assert.Equal(t, "body{color:red}", read(t, fsys, "css/site.css"))
	assert.False(t, exists(t, fsys, "index.html"))
}

func TestApplyLatestEventWins(t *testing.T) {
	fsys := newSite(t)
	b := New(testConfig(2, false), logging.Discard(), WithFs(fsys))
	_, err := b.Build(context.Background())
	require.NoError(t, err)

	path := filepath.Join(source, "css/site.css")
	result, err := b.Apply(context.Background(), []watcher.Event{
		{Type: watcher.EventTypeDeleted, Path: path},
		{Type: watcher.EventTypeCreated, Path: path},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Copied)
	assert.Zero(t, result.Removed)
	assert.True(t, exists(t, fsys, "css/site.css"))
}

func TestApplyVanishedSourceRemovesOutput(t *testing.T) {
	fsys := newSite(t)
	b := New(testConfig(2, false), logging.Discard(), WithFs(fsys))
	_, err := b.Build(context.Background())
	require.NoError(t, err)

	require.NoError(t, fsys.Remove(filepath.Join(source, "css/site.css")))
	result, err := b.Apply(context.Background(), []watcher.Event{
		{Type: watcher.EventTypeChanged, Path: filepath.Join(source, "css/site.css")},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Removed)
	assert.False(t, exists(t, fsys, "css/site.css"))
}

func TestApplyPageBecomesDraft(t *testing.T) {
	fsys := newSite(t)
	b := New(testConfig(2, false), logging.Discard(), WithFs(fsys))
	_, err := b.Build(context.Background())
	require.NoError(t, err)
	require.True(t, exists(t, fsys, "blog/first-post.html"))

	put(t, fsys, "blog/first-post.html", "---\ndraft: true\n---\n<p>post</p>")
	result, err := b.Apply(context.Background(), []watcher.Event{
		{Type: watcher.EventTypeChanged, Path: filepath.Join(source, "blog/first-post.html")},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Removed)
	assert.Equal(t, []string{"blog/first-post.html"}, result.Outputs)
	assert.False(t, exists(t, fsys, "blog/first-post.html"))
}

func TestApplyNothingRelevant(t *testing.T) {
	b := New(testConfig(2, false), logging.Discard(), WithFs(afero.NewMemMapFs()))

	result, err := b.Apply(context.Background(), []watcher.Event{
		{Type: watcher.EventTypeChanged, Path: "/tmp/other.html"},
	})
	require.NoError(t, err)
	assert.Zero(t, result.Total())
}

func TestCancelledBuild(t *testing.T) {
	fsys := newSite(t)
	b := New(testConfig(1, false), logging.Discard(), WithFs(fsys))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := b.Build(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOpTypeString(t *testing.T) {
	assert.Equal(t, "render", OpRender.String())
	assert.Equal(t, "copy", OpCopy.String())
	assert.Equal(t, "remove", OpRemove.String())
	assert.Equal(t, "skip", OpSkip.String())
	assert.Equal(t, "unknown", OpType(9).String())
}
