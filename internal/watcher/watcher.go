package watcher

import (
	"context"
	"errors"
	"io/fs"
	"iter"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"

	stasiserrors "github.com/conneroisu/stasis/internal/errors"
	"github.com/conneroisu/stasis/internal/logging"
)

// ErrNotInitialized is yielded by Watch when Init has not been called since
// construction or since the previous Watch loop ended.
var ErrNotInitialized = errors.New("watcher: not initialized")

// EventType represents the type of file change
type EventType int

const (
	EventTypeCreated EventType = iota
	EventTypeChanged
	EventTypeDeleted
)

// String returns the string representation of the EventType
func (e EventType) String() string {
	switch e {
	case EventTypeCreated:
		return "created"
	case EventTypeChanged:
		return "changed"
	case EventTypeDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Event is one difference between two consecutive snapshots.
type Event struct {
	Type EventType
	Path string
}

// Fingerprint is the cheap change signal kept for each file: its
// modification time in milliseconds. Edits within the same millisecond, or
// edits that preserve mtime, are invisible.
type Fingerprint struct {
	Path  string
	Stamp int64
}

// Snapshot maps every regular file under the root to its fingerprint.
type Snapshot map[string]Fingerprint

// FileFilter determines if a file should be watched. It receives the path
// relative to the watched root, with forward slashes.
type FileFilter func(rel string) bool

// Option configures a Watcher.
type Option func(*Watcher)

// WithFs sets the filesystem the watcher polls. Defaults to the OS.
func WithFs(fsys afero.Fs) Option {
	return func(w *Watcher) { w.fs = fsys }
}

// WithLogger sets the logger used for per-generation debug output.
func WithLogger(logger logging.Logger) Option {
	return func(w *Watcher) { w.logger = logger.WithComponent("watcher") }
}

// WithFilters adds file filters.
func WithFilters(filters ...FileFilter) Option {
	return func(w *Watcher) { w.filters = append(w.filters, filters...) }
}

// Watcher detects changes under a directory by polling. No OS notification
// API is used, so detection latency is bounded by the poll interval.
type Watcher struct {
	fs            afero.Fs
	root          string
	interval      time.Duration
	disableDelete bool
	filters       []FileFilter
	logger        logging.Logger

	mutex       sync.Mutex
	snapshot    Snapshot
	initialized bool
}

// New creates a watcher for root. With disableDelete set, removed files
// produce no event and simply drop out of the snapshot.
func New(root string, interval time.Duration, disableDelete bool, opts ...Option) *Watcher {
	w := &Watcher{
		fs:            afero.NewOsFs(),
		root:          filepath.Clean(root),
		interval:      interval,
		disableDelete: disableDelete,
		logger:        logging.Discard(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// AddFilter adds a file filter
func (w *Watcher) AddFilter(filter FileFilter) {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	w.filters = append(w.filters, filter)
}

// Root returns the watched directory.
func (w *Watcher) Root() string {
	return w.root
}

// Init takes the initial snapshot. It must complete before Watch.
func (w *Watcher) Init(ctx context.Context) error {
	snap, err := w.take(ctx)
	if err != nil {
		return err
	}

	w.mutex.Lock()
	w.snapshot = snap
	w.initialized = true
	w.mutex.Unlock()

	w.logger.Debug(ctx, "Initial snapshot taken", "root", w.root, "files", len(snap))
	return nil
}

// Initialized reports whether Init has run since the last Watch loop ended.
func (w *Watcher) Initialized() bool {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.initialized
}

// Snapshot returns a copy of the retained snapshot.
func (w *Watcher) Snapshot() Snapshot {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	out := make(Snapshot, len(w.snapshot))
	for k, v := range w.snapshot {
		out[k] = v
	}
	return out
}

// Watch yields change events generation by generation until the consumer
// stops ranging, ctx is cancelled, or a filesystem error occurs. The error is
// yielded once and ends the sequence. However the loop ends, the watcher
// must be re-initialized before the next Watch.
func (w *Watcher) Watch(ctx context.Context) iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		for batch, err := range w.Generations(ctx) {
			if err != nil {
				yield(Event{}, err)
				return
			}
			for _, ev := range batch {
				if !yield(ev, nil) {
					return
				}
			}
		}
	}
}

// Generations is Watch grouped by generation: each step yields the
// non-empty set of events one generation produced, in emission order.
// Generations without changes are not yielded.
func (w *Watcher) Generations(ctx context.Context) iter.Seq2[[]Event, error] {
	return func(yield func([]Event, error) bool) {
		if !w.Initialized() {
			yield(nil, ErrNotInitialized)
			return
		}
		defer func() {
			w.mutex.Lock()
			w.initialized = false
			w.mutex.Unlock()
		}()

		for {
			start := time.Now()

			events, err := w.step(ctx)
			if err != nil {
				if ctx.Err() == nil {
					yield(nil, err)
				}
				return
			}
			if len(events) > 0 && !yield(events, nil) {
				return
			}

			wait := w.interval - time.Since(start)
			if wait < 0 {
				wait = 0
			}
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}
	}
}

// step runs one generation: snapshot, diff against the retained snapshot,
// replace it.
func (w *Watcher) step(ctx context.Context) ([]Event, error) {
	next, err := w.take(ctx)
	if err != nil {
		return nil, err
	}

	w.mutex.Lock()
	events := diff(w.snapshot, next, w.disableDelete)
	w.snapshot = next
	w.mutex.Unlock()

	if len(events) > 0 {
		w.logger.Debug(ctx, "Generation complete", "files", len(next), "events", len(events))
	}
	return events, nil
}

func diff(prev, next Snapshot, disableDelete bool) []Event {
	var events []Event

	for _, path := range sortedKeys(next) {
		old, ok := prev[path]
		switch {
		case !ok:
			events = append(events, Event{Type: EventTypeCreated, Path: path})
		case old.Stamp != next[path].Stamp:
			events = append(events, Event{Type: EventTypeChanged, Path: path})
		}
	}
	if disableDelete {
		return events
	}
	for _, path := range sortedKeys(prev) {
		if _, ok := next[path]; !ok {
			events = append(events, Event{Type: EventTypeDeleted, Path: path})
		}
	}
	return events
}

func sortedKeys(s Snapshot) []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// take lists regular files under the root and stats each one. Paths that
// disappear between listing and stat are left out.
func (w *Watcher) take(ctx context.Context) (Snapshot, error) {
	paths, err := w.list()
	if err != nil {
		return nil, err
	}

	snap := make(Snapshot, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		info, err := w.fs.Stat(path)
		if err != nil {
			if stasiserrors.IsNotFound(err) {
				continue
			}
			return nil, stasiserrors.WrapIO(err, "stat failed")
		}
		if !info.Mode().IsRegular() {
			continue
		}
		snap[path] = Fingerprint{Path: path, Stamp: info.ModTime().UnixMilli()}
	}
	return snap, nil
}

func (w *Watcher) list() ([]string, error) {
	w.mutex.Lock()
	filters := w.filters
	w.mutex.Unlock()

	var paths []string
	err := afero.Walk(w.fs, w.root, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			if stasiserrors.IsNotFound(err) {
				return nil
			}
			return stasiserrors.WrapIO(err, "listing failed")
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		rel, relErr := filepath.Rel(w.root, path)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)
		for _, filter := range filters {
			if !filter(rel) {
				return nil
			}
		}
		paths = append(paths, path)
		return nil
	})
	return paths, err
}

// Common file filters

// NoHiddenFilter rejects files under any dot-directory and dot-files.
func NoHiddenFilter(rel string) bool {
	for _, part := range strings.Split(rel, "/") {
		if strings.HasPrefix(part, ".") && part != "." && part != ".." {
			return false
		}
	}
	return true
}

// NoGitFilter rejects anything inside a .git directory.
func NoGitFilter(rel string) bool {
	return !strings.HasPrefix(rel, ".git/") && !strings.Contains(rel, "/.git/")
}

// NoTempFilter rejects editor swap and backup files.
func NoTempFilter(rel string) bool {
	base := filepath.Base(rel)
	return !strings.HasSuffix(base, "~") &&
		!strings.HasSuffix(base, ".swp") &&
		!strings.HasSuffix(base, ".tmp") &&
		!strings.HasPrefix(base, ".#")
}

// ExtFilter keeps only files with one of the given extensions.
func ExtFilter(exts ...string) FileFilter {
	allowed := make(map[string]bool, len(exts))
	for _, ext := range exts {
		allowed[strings.ToLower(ext)] = true
	}
	return func(rel string) bool {
		return allowed[strings.ToLower(filepath.Ext(rel))]
	}
}

// IgnoreFilter rejects files matching any of the glob patterns. Patterns are
// matched against both the relative path and the base name.
func IgnoreFilter(patterns ...string) FileFilter {
	return func(rel string) bool {
		base := filepath.Base(rel)
		for _, p := range patterns {
			if ok, _ := filepath.Match(p, rel); ok {
				return false
			}
			if ok, _ := filepath.Match(p, base); ok {
				return false
			}
			if strings.HasPrefix(rel, strings.TrimSuffix(p, "/")+"/") {
				return false
			}
		}
		return true
	}
}
