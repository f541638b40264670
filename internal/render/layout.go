package render

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

//go:generate templ generate -f layout.templ

// Layout wraps rendered page content into a full document.
type Layout func(page *Page, content templ.Component) templ.Component

// rawContent emits trusted page markup unchanged.
func rawContent(body []byte) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := w.Write(body)
		return err
	})
}
