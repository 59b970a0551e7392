package content

import "strings"

// htmlReplacer escapes markup and attribute delimiters. A single pass over the
// input is equivalent to replacing "&" first and every other character after
// it, so entities introduced by the replacements are never escaped again.
var htmlReplacer = strings.NewReplacer( //nolint: gochecknoglobals
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#x27;",
	"/", "&#x2F;",
	`\`, "&#x5C;",
	"`", "&#96;",
)

// quoteReplacer escapes only the attribute quote characters of a URL that has
// already been validated.
var quoteReplacer = strings.NewReplacer( //nolint: gochecknoglobals
	`"`, "&quot;",
	"'", "&#x27;",
)

// SanitizeHTML escapes s so that it can be embedded in HTML text or in a
// quoted attribute without being interpreted as markup or script.
//
// SanitizeHTML is not idempotent: escaping an already escaped string encodes
// its ampersands a second time.
func SanitizeHTML(s string) string {
	return htmlReplacer.Replace(s)
}

// SanitizeValue is SanitizeHTML for untyped input. Anything that is not a
// string sanitizes to the empty string.
func SanitizeValue(v any) string {
	if s, ok := v.(string); ok {
		return SanitizeHTML(s)
	}

	return ""
}
