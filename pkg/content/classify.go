package content

import (
	"chatrelay/pkg/serrors"
	"errors"
	"fmt"
	"regexp"
)

// MaxURLLength is the longest candidate, in UTF-16 code units, a media classifier accepts.
const MaxURLLength = 2048

// urlChars is the character class of an unencoded URL.
const urlChars = `[a-zA-Z0-9\-._~:/?#\[\]@!$&'()*+,;=%]`

var (
	imageExtensionURL = regexp.MustCompile( //nolint: gochecknoglobals
		`(?i)^https?://` + urlChars + `+\.(?:jpg|jpeg|gif|png|bmp|webp|svg)(?:\?` + urlChars + `*)?$`)
	imageServiceURL = regexp.MustCompile( //nolint: gochecknoglobals
		`(?i)^https?://(?:images\.unsplash\.com|i\.imgur\.com|[^/?#]*\.wikimedia\.org)/` + urlChars + `+$`)
	googleServiceURL = regexp.MustCompile( //nolint: gochecknoglobals
		`(?i)^https?://(?:lh[3-6]\.googleusercontent\.com|drive\.google\.com|docs\.google\.com|sites\.google\.com|` +
			`blogger\.googleusercontent\.com|storage\.googleapis\.com|images\.google\.com|www\.google\.com|` +
			`encrypted-tbn[0-3]\.gstatic\.com|gstatic\.com)/` + urlChars + `+$`)

	googleImagesURLs = []*regexp.Regexp{ //nolint: gochecknoglobals
		regexp.MustCompile(`(?i)^https?://(?:www\.)?google\.com/imgres\?`),
		regexp.MustCompile(`(?i)^https?://images\.google\.com/imgres\?`),
		regexp.MustCompile(`(?i)^https?://encrypted-tbn[0-3]\.gstatic\.com/images\?`),
		regexp.MustCompile(`(?i)^https?://[^/?#]*\.gstatic\.com/images\?`),
	}

	youTubeURL = regexp.MustCompile( //nolint: gochecknoglobals
		`(?i)^https?://(?:www\.)?(?:youtube\.com/(?:embed/|v/|watch\?v=|watch\?.+&v=)|youtu\.be/)([\w-]{11})(?:\S+)?$`)

	videoExtensionURL = regexp.MustCompile( //nolint: gochecknoglobals
		`(?i)^https?://` + urlChars + `+\.(?:mp4|webm|ogg|avi|mov)(?:\?` + urlChars + `*)?$`)
)

// errFormatMismatch is returned by a classifier whose format pattern does not
// match. It is expected for every plain text body and is not reported.
var errFormatMismatch = errors.New("format mismatch")

// IsValidImageURL reports whether s is a link to an image on a trusted host.
func IsValidImageURL(s string) bool {
	return checkImage(defaultTrusted, s) == nil
}

// IsValidYouTubeURL reports whether s is a YouTube watch, embed or short link.
func IsValidYouTubeURL(s string) bool {
	return checkYouTube(defaultTrusted, s) == nil
}

// IsValidVideoURL reports whether s is a link to a video file on a trusted host.
func IsValidVideoURL(s string) bool {
	return checkVideo(defaultTrusted, s) == nil
}

// IsValidGoogleImagesURL reports whether s has one of the Google Images
// result or thumbnail shapes.
func IsValidGoogleImagesURL(s string) bool {
	if s == "" {
		return false
	}
	for _, p := range googleImagesURLs {
		if p.MatchString(s) {
			return true
		}
	}

	return false
}

// YouTubeVideoID returns the 11 character video id of a YouTube link.
func YouTubeVideoID(s string) (string, bool) {
	m := youTubeURL.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}

	return m[1], true
}

func checkImage(trusted *TrustedDomains, s string) (err error) {
	defer failClosed("image", &err)

	if err := checkCandidate(s); err != nil {
		return err
	}
	if !imageExtensionURL.MatchString(s) && !imageServiceURL.MatchString(s) && !googleServiceURL.MatchString(s) {
		return errFormatMismatch
	}
	if !trusted.IsTrusted(s) && !IsValidGoogleImagesURL(s) {
		return untrusted(s)
	}

	return nil
}

func checkYouTube(trusted *TrustedDomains, s string) (err error) {
	defer failClosed("youtube", &err)

	if err := checkCandidate(s); err != nil {
		return err
	}
	if !youTubeURL.MatchString(s) {
		return errFormatMismatch
	}
	if !trusted.IsTrusted(s) {
		return untrusted(s)
	}

	return nil
}

func checkVideo(trusted *TrustedDomains, s string) (err error) {
	defer failClosed("video", &err)

	if err := checkCandidate(s); err != nil {
		return err
	}
	if !videoExtensionURL.MatchString(s) {
		return errFormatMismatch
	}
	if !trusted.IsTrusted(s) {
		return untrusted(s)
	}

	return nil
}

// checkCandidate runs the shape and blocklist stages shared by every classifier.
func checkCandidate(s string) error {
	if s == "" {
		return serrors.With(serrors.ErrMalformedInput, "empty candidate")
	}
	if n := textLength(s); n > MaxURLLength {
		return serrors.With(serrors.ErrMalformedInput, "candidate has %d characters", n)
	}
	if p := maliciousPattern(s); p != "" {
		return serrors.With(serrors.ErrMaliciousContent, "candidate matches %s", p)
	}

	return nil
}

func untrusted(s string) error {
	host, _ := hostOf(s)

	return serrors.With(serrors.ErrUntrustedContent, "host %q is not trusted", host)
}

// failClosed turns a panic inside a classifier into a rejection.
func failClosed(classifier string, err *error) {
	if r := recover(); r != nil {
		*err = serrors.Wrap(serrors.ErrInternal, fmt.Errorf("%v", r), "%s classifier panicked", classifier)
	}
}
