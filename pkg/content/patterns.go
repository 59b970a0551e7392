package content

import "regexp"

// maliciousPatterns are blocklist heuristics. They match anywhere in the
// input except for the executable extensions, which must end it.
var maliciousPatterns = []*regexp.Regexp{ //nolint: gochecknoglobals
	regexp.MustCompile(`(?i)javascript:`),
	regexp.MustCompile(`(?i)data:`),
	regexp.MustCompile(`(?i)vbscript:`),
	regexp.MustCompile(`(?i)on\w+\s*=`),
	regexp.MustCompile(`(?i)<script`),
	regexp.MustCompile(`(?i)<%`),
	regexp.MustCompile(`(?i)\$\{`),
	regexp.MustCompile(`(?i)eval\(`),
	regexp.MustCompile(`(?i)expression\(`),
	regexp.MustCompile(`(?i)\.exe$`),
	regexp.MustCompile(`(?i)\.bat$`),
	regexp.MustCompile(`(?i)\.cmd$`),
	regexp.MustCompile(`(?i)\.scr$`),
	regexp.MustCompile(`(?i)\.pif$`),
}

// ContainsMaliciousPatterns reports whether s looks like a script URI, inline
// event handler, script tag, template injection, eval call or executable.
func ContainsMaliciousPatterns(s string) bool {
	return maliciousPattern(s) != ""
}

// maliciousPattern returns the first pattern matching s, or "".
func maliciousPattern(s string) string {
	for _, p := range maliciousPatterns {
		if p.MatchString(s) {
			return p.String()
		}
	}

	return ""
}
