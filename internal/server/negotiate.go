package server

import (
	"mime"
	"strconv"
	"strings"
)

// acceptable reports whether an Accept header admits mimeType. A missing
// header accepts everything; ranges with q=0 are refusals.
func acceptable(header, mimeType string) bool {
	if strings.TrimSpace(header) == "" {
		return true
	}
	typ, sub, _ := strings.Cut(mimeType, "/")

	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		mediaType, params, err := mime.ParseMediaType(part)
		if err != nil {
			continue
		}
		if q, ok := params["q"]; ok {
			weight, err := strconv.ParseFloat(q, 64)
			if err != nil || weight <= 0 {
				continue
			}
		}
		if mediaType == "*" {
			mediaType = "*/*"
		}

		rangeType, rangeSub, _ := strings.Cut(mediaType, "/")
		if rangeType == "*" {
			return true
		}
		if rangeType == typ && (rangeSub == "*" || rangeSub == sub) {
			return true
		}
	}
	return false
}
