// Package build drives site generation: it renders pages, copies every other
// file through unchanged, and removes outputs whose sources were deleted.
//
// Work is scheduled on a taskqueue.Queue so that independent files are
// processed in parallel, bounded by the configured worker count.
package build

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/conneroisu/stasis/internal/config"
	stasiserrors "github.com/conneroisu/stasis/internal/errors"
	"github.com/conneroisu/stasis/internal/logging"
	"github.com/conneroisu/stasis/internal/render"
	"github.com/conneroisu/stasis/internal/taskqueue"
	"github.com/conneroisu/stasis/internal/watcher"
)

// OpType identifies what happened to one file.
type OpType int

const (
	OpRender OpType = iota
	OpCopy
	OpRemove
	OpSkip
)

func (o OpType) String() string {
	switch o {
	case OpRender:
		return "render"
	case OpCopy:
		return "copy"
	case OpRemove:
		return "remove"
	case OpSkip:
		return "skip"
	default:
		return "unknown"
	}
}

// job is one unit of work for the queue; rel is slash-separated and relative
// to the source root.
type job struct {
	rel    string
	remove bool
}

// Output records the outcome for one file.
type Output struct {
	Op   OpType
	Rel  string
	Path string
}

// Result summarises a build or an incremental update.
type Result struct {
	Rendered int
	Copied   int
	Removed  int
	Skipped  int
	// Outputs lists the changed output paths relative to the output root,
	// slash-separated and sorted.
	Outputs []string
}

func (r *Result) add(out Output) {
	switch out.Op {
	case OpRender:
		r.Rendered++
	case OpCopy:
		r.Copied++
	case OpRemove:
		r.Removed++
	case OpSkip:
		r.Skipped++
		return
	}
	r.Outputs = append(r.Outputs, out.Rel)
}

// Total returns the number of files that changed in the output.
func (r Result) Total() int {
	return r.Rendered + r.Copied + r.Removed
}

// Builder renders a source tree into an output tree.
type Builder struct {
	fs       afero.Fs
	source   string
	output   string
	workers  int
	fifo     bool
	renderer *render.Renderer
	filters  []watcher.FileFilter
	logger   logging.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithFs builds on fsys instead of the OS filesystem.
func WithFs(fsys afero.Fs) Option {
	return func(b *Builder) {
		b.fs = fsys
	}
}

// WithRenderer replaces the page renderer.
func WithRenderer(r *render.Renderer) Option {
	return func(b *Builder) {
		b.renderer = r
	}
}

// New creates a builder from cfg. Files rejected by the watcher's filters
// are never built.
func New(cfg *config.Config, logger logging.Logger, opts ...Option) *Builder {
	b := &Builder{
		fs:       afero.NewOsFs(),
		source:   filepath.Clean(cfg.Build.Source),
		output:   filepath.Clean(cfg.Build.Output),
		workers:  cfg.Build.Workers,
		fifo:     cfg.Build.FIFO,
		renderer: render.New(render.WithDrafts(cfg.Build.Drafts)),
		filters:  DefaultFilters(cfg),
		logger:   logger.WithComponent("build"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// DefaultFilters returns the filters shared by the builder and the watcher.
func DefaultFilters(cfg *config.Config) []watcher.FileFilter {
	return []watcher.FileFilter{
		watcher.NoGitFilter,
		watcher.NoHiddenFilter,
		watcher.NoTempFilter,
		watcher.IgnoreFilter(cfg.Watch.Ignore...),
	}
}

// Source returns the source root.
func (b *Builder) Source() string {
	return b.source
}

// Output returns the output root.
func (b *Builder) Output() string {
	return b.output
}

func (b *Builder) newQueue() *taskqueue.Queue[job, Output] {
	var opts []taskqueue.Option
	if b.fifo {
		opts = append(opts, taskqueue.WithFIFO())
	}
	return taskqueue.New(b.process, b.workers, opts...)
}

// Build processes every source file.
func (b *Builder) Build(ctx context.Context) (Result, error) {
	perf := logging.StartOperation(b.logger, "build")

	var jobs []job
	err := afero.Walk(b.fs, b.source, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		rel, ok := b.relative(path)
		if ok {
			jobs = append(jobs, job{rel: rel})
		}
		return nil
	})
	if err != nil {
		err = stasiserrors.WrapIO(err, "failed to list sources")
		perf.EndWithError(ctx, err)
		return Result{}, err
	}

	result, err := b.run(ctx, jobs)
	if err != nil {
		perf.EndWithError(ctx, err)
		return result, err
	}
	perf.End(ctx, "rendered", result.Rendered, "copied", result.Copied, "skipped", result.Skipped)
	return result, nil
}

// Apply processes watcher events: created and changed files are rebuilt,
// deleted files have their outputs removed. Events outside the source root
// or rejected by the filters are ignored.
func (b *Builder) Apply(ctx context.Context, events []watcher.Event) (Result, error) {
	seen := make(map[string]int, len(events))
	var jobs []job
	for _, ev := range events {
		rel, ok := b.relative(ev.Path)
		if !ok {
			continue
		}
		j := job{rel: rel, remove: ev.Type == watcher.EventTypeDeleted}
		// The latest event for a path wins.
		if i, dup := seen[rel]; dup {
			jobs[i] = j
			continue
		}
		seen[rel] = len(jobs)
		jobs = append(jobs, j)
	}
	if len(jobs) == 0 {
		return Result{}, nil
	}

	perf := logging.StartOperation(b.logger, "apply")
	result, err := b.run(ctx, jobs)
	if err != nil {
		perf.EndWithError(ctx, err)
		return result, err
	}
	perf.End(ctx, "changed", result.Total())
	return result, nil
}

// run pushes every job and collects results in completion order. Failed
// files do not stop the others; their errors are joined.
func (b *Builder) run(ctx context.Context, jobs []job) (Result, error) {
	queue := b.newQueue()
	for _, j := range jobs {
		queue.Push(ctx, j)
	}
	b.logger.Debug(ctx, "Queued build jobs", "jobs", len(jobs), "in_flight", queue.InFlight(), "buffered", queue.Buffered())

	var result Result
	var errs []error
	for out, err := range queue.All(ctx) {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		result.add(out)
	}
	sort.Strings(result.Outputs)

	if err := ctx.Err(); err != nil {
		errs = append(errs, err)
	}
	return result, errors.Join(errs...)
}

// relative maps an absolute or source-prefixed path to its slash-separated
// path under the source root, applying the filters.
func (b *Builder) relative(path string) (string, bool) {
	rel, err := filepath.Rel(b.source, filepath.Clean(path))
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	for _, filter := range b.filters {
		if !filter(rel) {
			return "", false
		}
	}
	return rel, true
}

func (b *Builder) process(ctx context.Context, j job) (Output, error) {
	src := filepath.Join(b.source, filepath.FromSlash(j.rel))
	dst := filepath.Join(b.output, filepath.FromSlash(j.rel))

	if j.remove {
		return b.remove(ctx, j.rel, dst)
	}

	switch strings.ToLower(filepath.Ext(j.rel)) {
	case ".html", ".htm":
		return b.renderPage(ctx, j.rel, src, dst)
	default:
		return b.copyFile(ctx, j.rel, src, dst)
	}
}

func (b *Builder) renderPage(ctx context.Context, rel, src, dst string) (Output, error) {
	data, err := afero.ReadFile(b.fs, src)
	if err != nil {
		return b.vanished(ctx, rel, dst, err)
	}

	var buf bytes.Buffer
	page, err := b.renderer.Render(ctx, rel, data, &buf)
	if errors.Is(err, render.ErrDraft) {
		// A page that became a draft must disappear from the output.
		out, rmErr := b.remove(ctx, rel, dst)
		if rmErr != nil {
			return Output{}, rmErr
		}
		b.logger.Debug(ctx, "Skipped draft", "file", rel)
		return out, nil
	}
	if err != nil {
		return Output{}, err
	}

	if err := b.write(dst, &buf); err != nil {
		return Output{}, stasiserrors.ErrBuildFailed(rel, err)
	}
	b.logger.Debug(ctx, "Rendered page", "file", rel, "title", page.Title)
	return Output{Op: OpRender, Rel: rel, Path: dst}, nil
}

func (b *Builder) copyFile(ctx context.Context, rel, src, dst string) (Output, error) {
	in, err := b.fs.Open(src)
	if err != nil {
		return b.vanished(ctx, rel, dst, err)
	}
	defer in.Close()

	if err := b.write(dst, in); err != nil {
		return Output{}, stasiserrors.ErrBuildFailed(rel, err)
	}
	b.logger.Debug(ctx, "Copied file", "file", rel)
	return Output{Op: OpCopy, Rel: rel, Path: dst}, nil
}

// vanished handles a source that disappeared after it was queued by
// treating it as deleted.
func (b *Builder) vanished(ctx context.Context, rel, dst string, err error) (Output, error) {
	if stasiserrors.IsNotFound(err) {
		return b.remove(ctx, rel, dst)
	}
	return Output{}, stasiserrors.ErrBuildFailed(rel, stasiserrors.WrapIO(err, "failed to read source"))
}

func (b *Builder) remove(ctx context.Context, rel, dst string) (Output, error) {
	if err := b.fs.Remove(dst); err != nil {
		if stasiserrors.IsNotFound(err) {
			return Output{Op: OpSkip, Rel: rel, Path: dst}, nil
		}
		return Output{}, stasiserrors.ErrBuildFailed(rel, stasiserrors.WrapIO(err, "failed to remove output"))
	}
	b.logger.Debug(ctx, "Removed output", "file", rel)
	return Output{Op: OpRemove, Rel: rel, Path: dst}, nil
}

// write replaces dst with the contents of r through a temporary file so the
// server never sees a half-written output.
func (b *Builder) write(dst string, r io.Reader) error {
	if err := b.fs.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	tmp := fmt.Sprintf("%s.%d.tmp", dst, os.Getpid())
	f, err := b.fs.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		_ = b.fs.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = b.fs.Remove(tmp)
		return err
	}
	return b.fs.Rename(tmp, dst)
}
