package schema

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var textPolicy = bluemonday.StrictPolicy()

// cleanText strips all markup from user supplied free text. The strict
// policy escapes entities on output, which is undone so that names like
// O'Brien survive unchanged.
func cleanText(s string) string {
	if s == "" {
		return s
	}
	return strings.TrimSpace(html.UnescapeString(textPolicy.Sanitize(s)))
}

func cleanTextPtr(s *string) {
	if s != nil {
		*s = cleanText(*s)
	}
}
