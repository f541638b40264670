package mimetype

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLookup(t *testing.T) {
	testCases := []struct {
		ext      string
		expected string
		found    bool
	}{
		{".html", "text/html", true},
		{".HTML", "text/html", true},
		{".css", "text/css", true},
		{".png", "image/png", true},
		{".exe", "", false},
		{"", "", false},
	}

	for _, tc := range testCases {
		t.Run(tc.ext, func(t *testing.T) {
			typ, ok := Lookup(tc.ext)
			assert.Equal(t, tc.found, ok)
			assert.Equal(t, tc.expected, typ.MimeType)
		})
	}
}

func TestIsHTML(t *testing.T) {
	html, _ := Lookup(".htm")
	css, _ := Lookup(".css")
	assert.True(t, html.IsHTML())
	assert.False(t, css.IsHTML())
}
