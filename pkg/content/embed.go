package content

import "regexp"

const (
	// InvalidVideoFragment replaces a YouTube link whose id fails validation.
	InvalidVideoFragment = "<p>Error: Video de YouTube inválido</p>"
	// VideoLoadErrorFragment replaces a YouTube link that could not be embedded.
	VideoLoadErrorFragment = "<p>Error: No se pudo cargar el video</p>"

	embedPrefix = `<iframe width="560" height="315" src="https://www.youtube.com/embed/`
	embedSuffix = `" frameborder="0" allow="accelerometer; autoplay; encrypted-media; gyroscope; picture-in-picture"` +
		` allowfullscreen sandbox="allow-scripts allow-same-origin allow-presentation"></iframe>`

	imagePrefix = `<img src="`
	imageSuffix = `" style="max-height: 400px;max-width: 400px;" alt="Imagen segura" loading="lazy">`

	videoPrefix = `<video controls style="max-height: 400px;max-width: 400px;" preload="metadata"><source src="`
	videoSuffix = `" type="video/mp4">Tu navegador no soporta el elemento video.</video>`
)

var (
	// embedIDPattern takes everything after "/watch?v=" or the first "/" that
	// follows the host, up to white space or "&". Only plain watch and short
	// links yield a bare id.
	embedIDPattern = regexp.MustCompile( //nolint: gochecknoglobals
		`(?:https?://)?(?:www\.)?youtu(?:be)?\.(?:com|be)(?:/watch\?v=|/)([^\s&]+)`)
	videoIDPattern = regexp.MustCompile(`^[\w-]{11}$`) //nolint: gochecknoglobals
)

// EmbedCode returns a sandboxed YouTube iframe for a plain watch link or a
// short link. An id that is not exactly 11 word characters or dashes, as
// taken from embed, legacy player or share links, yields
// InvalidVideoFragment. Input that is not a YouTube link at all yields
// VideoLoadErrorFragment.
func EmbedCode(url string) string {
	return embed(url, embedVideoID)
}

func embed(url string, extract func(string) (string, bool)) (code string) {
	defer func() {
		if r := recover(); r != nil {
			code = VideoLoadErrorFragment
		}
	}()

	id, ok := extract(url)
	if !ok {
		return VideoLoadErrorFragment
	}
	if !videoIDPattern.MatchString(id) {
		return InvalidVideoFragment
	}

	return embedPrefix + SanitizeHTML(id) + embedSuffix
}

// embedVideoID returns the unvalidated video id EmbedCode embeds.
func embedVideoID(url string) (string, bool) {
	m := embedIDPattern.FindStringSubmatch(url)
	if m == nil {
		return "", false
	}

	return m[1], true
}

// ImageTag returns an <img> element for a URL accepted by IsValidImageURL.
// Only quotes are escaped so the URL keeps its syntax.
func ImageTag(url string) string {
	return imagePrefix + quoteReplacer.Replace(url) + imageSuffix
}

// VideoTag returns a <video> element for a URL accepted by IsValidVideoURL.
// Only quotes are escaped so the URL keeps its syntax.
func VideoTag(url string) string {
	return videoPrefix + quoteReplacer.Replace(url) + videoSuffix
}
