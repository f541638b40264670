package render

import (
	"bytes"

	"gopkg.in/yaml.v3"

	stasiserrors "github.com/conneroisu/stasis/internal/errors"
)

// Meta is the YAML frontmatter a page may start with.
type Meta struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Layout      string `yaml:"layout"`
	Lang        string `yaml:"lang"`
	Draft       bool   `yaml:"draft"`
}

const fence = "---"

// SplitFrontmatter separates a leading YAML block fenced by "---" lines from
// the body. Sources without a block return zero Meta and src unchanged.
func SplitFrontmatter(src []byte) (Meta, []byte, error) {
	var meta Meta

	first, rest, ok := cutLine(src)
	if !ok || string(first) != fence {
		return meta, src, nil
	}

	block := rest
	offset := 0
	for {
		line, next, more := cutLine(rest)
		if string(line) == fence {
			if err := yaml.Unmarshal(block[:offset], &meta); err != nil {
				return Meta{}, nil, stasiserrors.NewValidationError(
					stasiserrors.ErrCodeValidationFailed, "invalid frontmatter: "+err.Error())
			}
			return meta, next, nil
		}
		if !more {
			return Meta{}, nil, stasiserrors.NewValidationError(
				stasiserrors.ErrCodeValidationFailed, "unterminated frontmatter")
		}
		offset += len(rest) - len(next)
		rest = next
	}
}

// cutLine splits off the first line, dropping its terminator. more is false
// when no terminator was found.
func cutLine(b []byte) (line, rest []byte, more bool) {
	i := bytes.IndexByte(b, '\n')
	if i < 0 {
		return bytes.TrimSuffix(b, []byte("\r")), nil, false
	}
	return bytes.TrimSuffix(b[:i], []byte("\r")), b[i+1:], true
}
