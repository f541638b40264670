// Package mimetype maps file extensions to the media types the dev server
// is willing to serve.
package mimetype

import "strings"

// Type describes a servable media type.
type Type struct {
	MimeType string
}

// IsHTML reports whether the type should receive the live-reload script.
func (t Type) IsHTML() bool {
	return t.MimeType == "text/html"
}

var table = map[string]Type{
	".html":  {MimeType: "text/html"},
	".htm":   {MimeType: "text/html"},
	".css":   {MimeType: "text/css"},
	".js":    {MimeType: "text/javascript"},
	".mjs":   {MimeType: "text/javascript"},
	".json":  {MimeType: "application/json"},
	".map":   {MimeType: "application/json"},
	".xml":   {MimeType: "application/xml"},
	".rss":   {MimeType: "application/rss+xml"},
	".atom":  {MimeType: "application/atom+xml"},
	".txt":   {MimeType: "text/plain"},
	".md":    {MimeType: "text/markdown"},
	".csv":   {MimeType: "text/csv"},
	".svg":   {MimeType: "image/svg+xml"},
	".png":   {MimeType: "image/png"},
	".jpg":   {MimeType: "image/jpeg"},
	".jpeg":  {MimeType: "image/jpeg"},
	".gif":   {MimeType: "image/gif"},
	".webp":  {MimeType: "image/webp"},
	".avif":  {MimeType: "image/avif"},
	".ico":   {MimeType: "image/x-icon"},
	".woff":  {MimeType: "font/woff"},
	".woff2": {MimeType: "font/woff2"},
	".ttf":   {MimeType: "font/ttf"},
	".otf":   {MimeType: "font/otf"},
	".pdf":   {MimeType: "application/pdf"},
	".wasm":  {MimeType: "application/wasm"},
	".mp4":   {MimeType: "video/mp4"},
	".webm":  {MimeType: "video/webm"},
	".mp3":   {MimeType: "audio/mpeg"},
	".ogg":   {MimeType: "audio/ogg"},
	".zip":   {MimeType: "application/zip"},
}

// Lookup returns the type registered for ext (with leading dot, any case).
func Lookup(ext string) (Type, bool) {
	t, ok := table[strings.ToLower(ext)]
	return t, ok
}
