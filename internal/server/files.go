package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"

	stasiserrors "github.com/conneroisu/stasis/internal/errors"
	"github.com/conneroisu/stasis/internal/inject"
	"github.com/conneroisu/stasis/internal/logging"
	"github.com/conneroisu/stasis/internal/mimetype"
)

const allowedMethods = "GET, HEAD"

var copyBuffers = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, 32*1024)
		return &buf
	},
}

// FileServer serves a directory tree with conditional GET, Accept
// negotiation and optional live-reload injection into HTML bodies.
type FileServer struct {
	root      string
	fs        afero.Fs
	sink      Sink
	anchor    []byte
	injection []byte
}

// FileServerOption configures a FileServer.
type FileServerOption func(*FileServer)

// WithFileSystem serves from fsys instead of the OS filesystem.
func WithFileSystem(fsys afero.Fs) FileServerOption {
	return func(s *FileServer) {
		s.fs = fsys
	}
}

// WithSink sets where request events go.
func WithSink(sink Sink) FileServerOption {
	return func(s *FileServer) {
		s.sink = sink
	}
}

// WithInjection streams script into every HTML body right after anchor.
func WithInjection(anchor string, script []byte) FileServerOption {
	return func(s *FileServer) {
		s.anchor = []byte(anchor)
		s.injection = script
	}
}

// NewFileServer serves root.
func NewFileServer(root string, opts ...FileServerOption) *FileServer {
	s := &FileServer{
		root: filepath.Clean(root),
		fs:   afero.NewOsFs(),
		sink: LogSink{Logger: logging.Discard()},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Root returns the served directory.
func (s *FileServer) Root() string {
	return s.root
}

func (s *FileServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rc := newRequestContext(w, r)
	failed := false

	defer func() {
		rec := recover()
		aborted := rec == http.ErrAbortHandler
		if rec != nil && !aborted {
			s.fail(rc, stasiserrors.Normalize(rec))
			failed = true
		}
		ev := rc.finish()
		if failed && ev.Status < http.StatusInternalServerError {
			ev.Status = http.StatusInternalServerError
		}
		s.sink.RequestDone(rc.ctx, ev)
		// net/http relies on this panic to drop the connection.
		if aborted {
			panic(rec)
		}
	}()

	if err := s.serve(rc, r); err != nil {
		s.fail(rc, err)
		failed = true
	}
}

// fail emits the error signal and answers 500 if the response has not
// started yet.
func (s *FileServer) fail(rc *requestContext, err error) {
	s.sink.RequestError(rc.ctx, rc.event, err)
	if !rc.w.wroteHeader() {
		rc.w.Header().Del("Last-Modified")
		rc.w.Header().Del("Content-Length")
		reject(rc.w, http.StatusInternalServerError)
	}
}

func reject(w http.ResponseWriter, status int) {
	http.Error(w, http.StatusText(status), status)
}

// serve returns an error only for unexpected failures. Protocol problems
// become statuses.
func (s *FileServer) serve(rc *requestContext, r *http.Request) error {
	w := rc.w

	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", allowedMethods)
		reject(w, http.StatusMethodNotAllowed)
		return nil
	}

	urlPath, fullPath, ok := s.resolve(r.URL.Path)
	if !ok {
		reject(w, http.StatusNotFound)
		return nil
	}

	ext := path.Ext(urlPath)
	if ext == "" {
		// Directories requested without a trailing slash get one.
		if info, err := s.fs.Stat(fullPath); err == nil && info.IsDir() {
			target := r.URL.Path + "/"
			if r.URL.RawQuery != "" {
				target += "?" + r.URL.RawQuery
			}
			http.Redirect(w, r, target, http.StatusMovedPermanently)
			return nil
		}
	}

	typ, ok := mimetype.Lookup(ext)
	if !ok {
		reject(w, http.StatusUnsupportedMediaType)
		return nil
	}

	info, err := s.fs.Stat(fullPath)
	if err != nil {
		if stasiserrors.IsNotFound(err) {
			reject(w, http.StatusNotFound)
			return nil
		}
		return stasiserrors.WrapIO(err, "stat failed")
	}
	if !info.Mode().IsRegular() {
		reject(w, http.StatusNotFound)
		return nil
	}
	rc.event.FilePath = fullPath

	if !acceptable(r.Header.Get("Accept"), typ.MimeType) {
		reject(w, http.StatusNotAcceptable)
		return nil
	}

	modTime := info.ModTime()
	lastModified := modTime.UTC().Format(http.TimeFormat)

	if ims := r.Header.Get("If-Modified-Since"); ims != "" {
		since, err := http.ParseTime(ims)
		if err != nil {
			reject(w, http.StatusBadRequest)
			return nil
		}
		// HTTP dates carry whole seconds.
		if !modTime.Truncate(time.Second).After(since) {
			w.Header().Set("Last-Modified", lastModified)
			w.WriteHeader(http.StatusNotModified)
			return nil
		}
	}

	f, err := s.fs.Open(fullPath)
	if err != nil {
		if stasiserrors.IsNotFound(err) {
			reject(w, http.StatusNotFound)
			return nil
		}
		return stasiserrors.WrapIO(err, "open failed")
	}
	defer f.Close()

	injecting := typ.IsHTML() && len(s.injection) > 0

	h := w.Header()
	h.Set("Content-Type", typ.MimeType)
	h.Set("Last-Modified", lastModified)
	h.Set("Cache-Control", "no-cache")
	h.Set("X-Content-Type-Options", "nosniff")
	if !injecting {
		h.Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	}
	w.WriteHeader(http.StatusOK)

	if r.Method == http.MethodHead {
		return nil
	}

	return s.copyBody(rc, f, injecting)
}

// copyBody streams src to the client, aborting when the request context is
// cancelled. A client that goes away is not a server error.
func (s *FileServer) copyBody(rc *requestContext, src io.Reader, injecting bool) error {
	var dst io.Writer = rc.w
	var iw *inject.Writer
	if injecting {
		iw = inject.NewWriter(rc.w, s.anchor, s.injection)
		dst = iw
	}

	bufp := copyBuffers.Get().(*[]byte)
	defer copyBuffers.Put(bufp)

	start := rc.w.written
	defer func() {
		rc.event.Bytes = rc.w.written - start
	}()

	_, err := io.CopyBuffer(dst, contextReader{ctx: rc.ctx, r: src}, *bufp)
	if err == nil && iw != nil {
		err = iw.Close()
	}
	if err == nil {
		return nil
	}

	var we *writeError
	if rc.ctx.Err() != nil || errors.As(err, &we) {
		return nil
	}
	return stasiserrors.WrapIO(err, "streaming failed")
}

// resolve maps a URL path onto the served tree. The returned URL path is
// cleaned and rooted.
func (s *FileServer) resolve(urlPath string) (string, string, bool) {
	if strings.ContainsRune(urlPath, 0) || strings.Contains(urlPath, "\\") {
		return "", "", false
	}
	if urlPath == "" || strings.HasSuffix(urlPath, "/") {
		urlPath += "index.html"
	}

	clean := path.Clean("/" + urlPath)
	full := filepath.Join(s.root, filepath.FromSlash(clean))

	rel, err := filepath.Rel(s.root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", "", false
	}
	return clean, full, true
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
