// Package validation checks user-supplied paths, hosts and URLs before they
// reach the filesystem, a listener or a spawned process.
package validation

import (
	"fmt"
	"net/url"
	"strings"
)

// Characters a shell would interpret, plus the extras hosts and URLs forbid.
var (
	shellChars = []string{";", "&", "|", "$", "`", "<", ">", "\"", "'"}
	hostChars  = append(append([]string{}, shellChars...), "(", ")", "\\", " ", "\t", "\n", "\r")
	urlChars   = append(append([]string{}, shellChars...), "(", ")", "\\", "\n", "\r")
)

// ValidatePath rejects empty paths and paths containing shell metacharacters
// or NUL bytes.
func ValidatePath(path string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}
	if strings.ContainsRune(path, 0) {
		return fmt.Errorf("path contains NUL byte")
	}
	if char, ok := containsAny(path, shellChars); ok {
		return fmt.Errorf("path contains dangerous character: %s", char)
	}
	return nil
}

// ValidateHost rejects listen hosts that could smuggle shell syntax into the
// URL handed to the browser opener. An empty host is allowed and binds every
// interface.
func ValidateHost(host string) error {
	if char, ok := containsAny(host, hostChars); ok {
		return fmt.Errorf("host contains dangerous character: %q", char)
	}
	return nil
}

// ValidateURL validates URLs for browser auto-open functionality.
func ValidateURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	// Only allow http/https schemes to prevent protocol handlers
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("invalid URL scheme: %s (only http/https allowed)", parsed.Scheme)
	}

	if char, ok := containsAny(rawURL, urlChars); ok {
		return fmt.Errorf("URL contains dangerous character: %s", char)
	}
	if strings.Contains(rawURL, " ") {
		return fmt.Errorf("URL contains spaces")
	}

	if parsed.Host == "" {
		return fmt.Errorf("URL must have a valid hostname")
	}

	return nil
}

func containsAny(s string, chars []string) (string, bool) {
	for _, char := range chars {
		if strings.Contains(s, char) {
			return char, true
		}
	}
	return "", false
}
