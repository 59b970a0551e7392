package content

import "regexp"

var phonePattern = regexp.MustCompile(`^[+]*[(]{0,1}[0-9]{1,4}[)]{0,1}[-\s./0-9]*$`) //nolint: gochecknoglobals

// IsValidPhone reports whether s looks like a phone number: an optional
// leading "+", an optional parenthesized prefix of up to four digits, then
// digits and separators.
func IsValidPhone(s string) bool {
	return phonePattern.MatchString(s)
}
