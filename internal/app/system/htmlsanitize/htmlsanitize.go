// internal/app/system/htmlsanitize/htmlsanitize.go
package htmlsanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// strict removes every tag. Profile and team names are shown verbatim by the
// chat bot and in CSV exports, so no markup is allowed through.
var strict = bluemonday.StrictPolicy()

// PlainText strips all markup from s and returns the unescaped text,
// trimmed of surrounding whitespace.
func PlainText(s string) string {
	if s == "" {
		return ""
	}
	cleaned := strict.Sanitize(s)
	return strings.TrimSpace(html.UnescapeString(cleaned))
}
