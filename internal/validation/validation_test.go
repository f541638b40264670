package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name      string
		url       string
		expectErr bool
	}{
		// Valid URLs
		{name: "valid http URL", url: "http://localhost:8080"},
		{name: "valid https URL", url: "https://example.com"},
		{name: "valid URL with port", url: "http://127.0.0.1:3000"},
		{name: "valid URL with path", url: "https://example.com/path/to/resource"},
		{name: "IPv6 host", url: "http://[::1]:8080/"},

		// Invalid schemes
		{name: "javascript scheme", url: "javascript:alert('xss')", expectErr: true},
		{name: "file scheme", url: "file:///etc/passwd", expectErr: true},
		{name: "ftp scheme", url: "ftp://ftp.example.com", expectErr: true},

		// Command injection attempts
		{name: "semicolon injection", url: "http://example.com;rm", expectErr: true},
		{name: "ampersand injection", url: "http://example.com&cat", expectErr: true},
		{name: "pipe injection", url: "http://example.com|nc", expectErr: true},
		{name: "backtick injection", url: "http://example.com/`id`", expectErr: true},
		{name: "subshell injection", url: "http://example.com/$(id)", expectErr: true},
		{name: "newline injection", url: "http://example.com/\nid", expectErr: true},
		{name: "space", url: "http://example.com/a b", expectErr: true},

		// Malformed
		{name: "missing host", url: "http://", expectErr: true},
		{name: "unparsable", url: "http://[::1", expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateURL(tt.url)
			if tt.expectErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidatePath(t *testing.T) {
	tests := []struct {
		path      string
		expectErr bool
	}{
		{path: "site"},
		{path: "../public"},
		{path: "/var/www/my site"},
		{path: "", expectErr: true},
		{path: "out;rm -rf /", expectErr: true},
		{path: "$(id)", expectErr: true},
		{path: "a\x00b", expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			err := ValidatePath(tt.path)
			if tt.expectErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateHost(t *testing.T) {
	for _, host := range []string{"", "localhost", "0.0.0.0", "::1", "dev.example.com"} {
		assert.NoError(t, ValidateHost(host), host)
	}
	for _, host := range []string{"local host", "a;b", "$(id)", "a\\b", "x'y"} {
		assert.Error(t, ValidateHost(host), host)
	}
}
