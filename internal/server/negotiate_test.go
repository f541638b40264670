package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAcceptable(t *testing.T) {
	tests := []struct {
		header   string
		mimeType string
		expected bool
	}{
		{"", "text/html", true},
		{"   ", "text/css", true},
		{"*/*", "image/png", true},
		{"*", "image/png", true},
		{"text/html", "text/html", true},
		{"TEXT/HTML", "text/html", true},
		{"text/*", "text/css", true},
		{"text/*", "image/png", false},
		{"application/json", "text/html", false},
		{"text/html;q=0", "text/html", false},
		{"text/html;q=abc", "text/html", false},
		{"image/avif,image/webp,*/*", "image/png", true},
		{"not a media type", "text/html", false},
		{",,text/html", "text/html", true},
	}

	for _, tt := range tests {
		t.Run(tt.header+" vs "+tt.mimeType, func(t *testing.T) {
			assert.Equal(t, tt.expected, acceptable(tt.header, tt.mimeType))
		})
	}
}
