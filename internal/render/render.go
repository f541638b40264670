// Package render turns page sources into output documents.
//
// A page is an HTML file with optional YAML frontmatter. Complete documents
// are emitted as they are; fragments are wrapped in a layout. Pages marked as
// drafts are skipped unless drafts are enabled.
package render

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path"
	"strings"

	"github.com/a-h/templ"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	stasiserrors "github.com/conneroisu/stasis/internal/errors"
)

// ErrDraft is returned for draft pages when drafts are disabled.
var ErrDraft = errors.New("render: draft page skipped")

const (
	LayoutDefault = "default"
	LayoutNone    = "none"
)

// Page is a parsed source ready for layout.
type Page struct {
	Meta
	// Path is the slash-separated source path relative to the site root.
	Path string
	Body []byte
	// Document is true when Body is already a complete HTML document.
	Document bool
}

// Renderer renders pages. It is safe for concurrent use once configured.
type Renderer struct {
	layouts map[string]Layout
	drafts  bool
	lang    string
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithDrafts renders draft pages instead of skipping them.
func WithDrafts(enabled bool) Option {
	return func(r *Renderer) {
		r.drafts = enabled
	}
}

// WithLayout registers or replaces a named layout.
func WithLayout(name string, layout Layout) Option {
	return func(r *Renderer) {
		r.layouts[name] = layout
	}
}

// WithLang sets the document language used when frontmatter has none.
func WithLang(lang string) Option {
	return func(r *Renderer) {
		r.lang = lang
	}
}

// New creates a renderer with the default layout registered.
func New(opts ...Option) *Renderer {
	r := &Renderer{
		layouts: map[string]Layout{LayoutDefault: DefaultLayout},
		lang:    "en",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Parse splits src into frontmatter and body and fills in derived fields.
func (r *Renderer) Parse(rel string, src []byte) (*Page, error) {
	meta, body, err := SplitFrontmatter(src)
	if err != nil {
		return nil, err
	}

	page := &Page{Meta: meta, Path: rel, Body: body, Document: IsDocument(body)}
	if page.Lang == "" {
		page.Lang = r.lang
	}
	if page.Title == "" {
		page.Title = FirstHeading(body)
	}
	if page.Title == "" {
		page.Title = TitleFromPath(rel)
	}
	return page, nil
}

// Render parses src and writes the output document to w. Drafts return
// ErrDraft without writing anything.
func (r *Renderer) Render(ctx context.Context, rel string, src []byte, w io.Writer) (*Page, error) {
	page, err := r.Parse(rel, src)
	if err != nil {
		return nil, stasiserrors.ErrBuildFailed(rel, err)
	}
	if page.Draft && !r.drafts {
		return page, ErrDraft
	}

	name := page.Layout
	if name == "" {
		name = LayoutDefault
		if page.Document {
			name = LayoutNone
		}
	}

	var component templ.Component
	if name == LayoutNone {
		component = rawContent(page.Body)
	} else {
		layout, ok := r.layouts[name]
		if !ok {
			return nil, stasiserrors.ErrBuildFailed(rel, stasiserrors.NewValidationError(
				stasiserrors.ErrCodeValidationFailed, "unknown layout "+name))
		}
		component = layout(page, rawContent(page.Body))
	}

	if err := component.Render(ctx, w); err != nil {
		return nil, stasiserrors.ErrBuildFailed(rel, err)
	}
	return page, nil
}

// IsDocument reports whether body starts a complete HTML document, that is
// its first markup is a doctype or an <html> element.
func IsDocument(body []byte) bool {
	z := html.NewTokenizer(bytes.NewReader(body))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return false
		case html.DoctypeToken:
			return true
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			return atom.Lookup(name) == atom.Html
		case html.TextToken:
			if len(bytes.TrimSpace(z.Text())) > 0 {
				return false
			}
		}
	}
}

// FirstHeading returns the text of the first <h1>, or "".
func FirstHeading(body []byte) string {
	z := html.NewTokenizer(bytes.NewReader(body))
	depth := 0
	var text strings.Builder
	for {
		switch z.Next() {
		case html.ErrorToken:
			return ""
		case html.StartTagToken:
			name, _ := z.TagName()
			if atom.Lookup(name) == atom.H1 {
				depth++
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if atom.Lookup(name) == atom.H1 && depth > 0 {
				return strings.Join(strings.Fields(text.String()), " ")
			}
		case html.TextToken:
			if depth > 0 {
				text.Write(z.Text())
			}
		}
	}
}

// TitleFromPath derives a title from a slash-separated source path:
// "blog/getting-started.html" becomes "Getting Started" and an index page
// takes its directory's name.
func TitleFromPath(rel string) string {
	name := strings.TrimSuffix(path.Base(rel), path.Ext(rel))
	if name == "index" {
		dir := path.Base(path.Dir(rel))
		if dir == "." || dir == "/" {
			return "Home"
		}
		name = dir
	}
	name = strings.NewReplacer("-", " ", "_", " ").Replace(name)
	// Casers carry state and must not be shared between goroutines.
	return cases.Title(language.English).String(strings.Join(strings.Fields(name), " "))
}
