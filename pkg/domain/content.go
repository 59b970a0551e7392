package domain

// ContentKind is the classification of a chat message body.
type ContentKind string

const (
	// ContentKindImage is a direct link to an image on a trusted host.
	ContentKindImage ContentKind = "image"
	// ContentKindYouTube is a YouTube watch, embed or short link.
	ContentKindYouTube ContentKind = "youtube"
	// ContentKindVideo is a direct link to a video file on a trusted host.
	ContentKindVideo ContentKind = "video"
	// ContentKindText is any other body; it is relayed HTML-escaped.
	ContentKindText ContentKind = "text"
	// ContentKindRejected marks a payload replaced by a fixed fallback.
	ContentKindRejected ContentKind = "rejected"
)

// ContentKinds lists every kind in classification priority order, followed by
// the fallback kinds.
var ContentKinds = []ContentKind{ //nolint: gochecknoglobals
	ContentKindImage,
	ContentKindYouTube,
	ContentKindVideo,
	ContentKindText,
	ContentKindRejected,
}

// IsMedia reports whether the kind is rendered as embedded media.
func (k ContentKind) IsMedia() bool {
	return k == ContentKindImage || k == ContentKindYouTube || k == ContentKindVideo
}

// Valid reports whether k is one of the known kinds.
func (k ContentKind) Valid() bool {
	for _, known := range ContentKinds {
		if k == known {
			return true
		}
	}

	return false
}

// Message field names of the wire envelope.
const (
	// MessageField holds the chat body.
	MessageField = "mensaje"
	// NameField holds the optional display name.
	NameField = "nombre"
)

// MaxNameLength is the number of characters of a display name that are kept.
const MaxNameLength = 50
