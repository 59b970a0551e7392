package content

import (
	"chatrelay/pkg/domain"
	"chatrelay/pkg/logger"
	"chatrelay/pkg/serrors"
	"context"
	"fmt"
	"strings"
	"unicode/utf16"

	"github.com/go-faster/jx"
	"go.uber.org/zap"
)

const (
	// MaxPayloadLength is the longest raw payload, in UTF-16 code units, that is decoded.
	MaxPayloadLength = 10000
	// MaxBodyLength is the longest trimmed message body, in UTF-16 code units, that is classified.
	MaxBodyLength = MaxURLLength
)

// Fixed message bodies of the terminal fallbacks.
const (
	PayloadTooLongMessage = "Mensaje demasiado largo"
	InvalidFormatMessage  = "Formato de mensaje inválido"
	BodyTooLongMessage    = "Contenido demasiado largo"
	FallbackMessage       = "Error: Mensaje inválido"
	FallbackName          = "Sistema"
)

// Result is the outcome of validating one payload.
type Result struct {
	// Payload is the serialized message to broadcast. It is always a JSON
	// object whose message field is a string.
	Payload string
	// Kind is how the message body was classified.
	Kind domain.ContentKind
	// Err explains a rejection, or why a body that looked like media was
	// relayed as text. It carries a serrors kind and never needs handling
	// beyond logging: Payload is safe either way.
	Err error
}

// Pipeline validates payloads against a trusted domain set.
type Pipeline struct {
	trusted *TrustedDomains
}

// NewPipeline returns a pipeline using trusted, or the built-in allow-list
// when trusted is nil.
func NewPipeline(trusted *TrustedDomains) *Pipeline {
	if trusted == nil {
		trusted = defaultTrusted
	}

	return &Pipeline{trusted: trusted}
}

var defaultPipeline = NewPipeline(nil) //nolint: gochecknoglobals

// Validate runs the built-in pipeline on raw.
func Validate(raw any) Result {
	return defaultPipeline.Validate(context.Background(), raw)
}

// ValidateMessage runs the built-in pipeline on raw and returns the payload to broadcast.
func ValidateMessage(raw string) string {
	return defaultPipeline.ValidateMessage(context.Background(), raw)
}

// TrustedDomains returns the allow-list the pipeline checks media hosts against.
func (p *Pipeline) TrustedDomains() *TrustedDomains {
	return p.trusted
}

// ValidateMessage returns the payload to broadcast for raw.
func (p *Pipeline) ValidateMessage(ctx context.Context, raw string) string {
	return p.Validate(ctx, raw).Payload
}

// Validate decodes raw, sanitizes the display name, classifies the message
// body and replaces it with a vetted fragment or its escaped text. Fields
// other than the message and the name are kept in place.
//
// raw is expected to be a string; any other value is treated as an empty
// payload. Validate never panics.
func (p *Pipeline) Validate(ctx context.Context, raw any) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error(ctx, "message validation panicked", zap.Any("panic", r))
			res = fallback(serrors.Wrap(serrors.ErrInternal, fmt.Errorf("%v", r), "validating message"))
		}
	}()

	s, ok := raw.(string)
	if !ok || s == "" {
		return rejected("", serrors.With(serrors.ErrMalformedInput, "empty or non-string payload"))
	}
	if n := textLength(s); n > MaxPayloadLength {
		logger.Warn(ctx, "payload too long", zap.Int("length", n))

		return rejected(PayloadTooLongMessage, serrors.With(serrors.ErrMalformedInput, "payload has %d characters", n))
	}

	obj, err := decodeObject(s)
	if err != nil {
		logger.Debug(ctx, "invalid payload", zap.Error(err))

		return rejected(InvalidFormatMessage, serrors.Wrap(serrors.ErrMalformedInput, err, "decoding payload"))
	}
	msg, ok := obj.get(domain.MessageField)
	if !ok {
		logger.Debug(ctx, "payload has no message field")

		return rejected(InvalidFormatMessage, serrors.With(serrors.ErrMalformedInput, "payload has no %s field", domain.MessageField))
	}

	if name, ok := obj.get(domain.NameField); ok && name.truthy() {
		obj.setString(domain.NameField, SanitizeHTML(truncate(name.text(), domain.MaxNameLength)))
	}

	if msg.typ != jx.String {
		obj.setString(domain.MessageField, "")

		return Result{
			Payload: obj.encode(),
			Kind:    domain.ContentKindRejected,
			Err:     serrors.With(serrors.ErrMalformedInput, "message is %s, not a string", msg.typ),
		}
	}

	body := trimSpace(msg.lit)
	if n := textLength(body); n > MaxBodyLength {
		logger.Debug(ctx, "message body too long", zap.Int("length", n))
		obj.setString(domain.MessageField, BodyTooLongMessage)

		return Result{
			Payload: obj.encode(),
			Kind:    domain.ContentKindRejected,
			Err:     serrors.With(serrors.ErrMalformedInput, "message body has %d characters", n),
		}
	}

	kind, cerr := p.Classify(body)
	if cerr != nil {
		logger.Debug(ctx, "message body relayed as text", zap.Error(cerr))
	}
	obj.setString(domain.MessageField, render(kind, body))
	logger.Debug(ctx, "message validated", zap.String("kind", string(kind)))

	return Result{Payload: obj.encode(), Kind: kind, Err: cerr}
}

// Classify assigns body to the first matching media kind, in image, YouTube,
// video order, falling back to text. For text it also returns the first
// blocklist, trust or internal failure met by the media checks.
func (p *Pipeline) Classify(body string) (domain.ContentKind, error) {
	return p.classify(body, mediaChecks)
}

// mediaCheck pairs a media kind with the check a body must pass to get it.
type mediaCheck struct {
	kind  domain.ContentKind
	check func(*TrustedDomains, string) error
}

var mediaChecks = []mediaCheck{ //nolint: gochecknoglobals
	{domain.ContentKindImage, checkImage},
	{domain.ContentKindYouTube, checkYouTube},
	{domain.ContentKindVideo, checkVideo},
}

func (p *Pipeline) classify(body string, checks []mediaCheck) (domain.ContentKind, error) {
	var reported error
	for _, c := range checks {
		err := c.check(p.trusted, body)
		if err == nil {
			return c.kind, nil
		}
		if k := serrors.KindOf(err); reported == nil && k != nil && k != serrors.ErrMalformedInput {
			reported = err
		}
	}

	return domain.ContentKindText, reported
}

// IsValidImageURL is the image check against the pipeline's allow-list.
func (p *Pipeline) IsValidImageURL(s string) bool {
	return checkImage(p.trusted, s) == nil
}

// IsValidYouTubeURL is the YouTube check against the pipeline's allow-list.
func (p *Pipeline) IsValidYouTubeURL(s string) bool {
	return checkYouTube(p.trusted, s) == nil
}

// IsValidVideoURL is the video check against the pipeline's allow-list.
func (p *Pipeline) IsValidVideoURL(s string) bool {
	return checkVideo(p.trusted, s) == nil
}

func render(kind domain.ContentKind, body string) string {
	switch kind {
	case domain.ContentKindImage:
		return ImageTag(body)
	case domain.ContentKindYouTube:
		return EmbedCode(body)
	case domain.ContentKindVideo:
		return VideoTag(body)
	default:
		return SanitizeHTML(body)
	}
}

// rejected is a terminal payload carrying only a message body.
func rejected(message string, err error) Result {
	obj := newObject()
	obj.setString(domain.MessageField, message)

	return Result{Payload: obj.encode(), Kind: domain.ContentKindRejected, Err: err}
}

func fallback(err error) Result {
	obj := newObject()
	obj.setString(domain.MessageField, SanitizeHTML(FallbackMessage))
	obj.setString(domain.NameField, FallbackName)

	return Result{Payload: obj.encode(), Kind: domain.ContentKindRejected, Err: err}
}

// textLength counts s in UTF-16 code units, the unit browsers measure
// string length in. Characters outside the Basic Multilingual Plane count twice.
func textLength(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}

	return n
}

// truncate keeps the longest prefix of s that is at most n UTF-16 code units
// long. A character that would be split in half is dropped.
func truncate(s string, n int) string {
	units := 0
	for pos, r := range s {
		units += utf16.RuneLen(r)
		if units > n {
			return s[:pos]
		}
	}

	return s
}

// trimSpace removes leading and trailing white space and line terminators,
// including the byte order mark but not U+0085.
func trimSpace(s string) string {
	return strings.TrimFunc(s, isSpace)
}

func isSpace(r rune) bool {
	switch r {
	case '\t', '\n', '\v', '\f', '\r', ' ', '\u00a0', '\u1680',
		'\u2028', '\u2029', '\u202f', '\u205f', '\u3000', '\ufeff':
		return true
	}

	return r >= '\u2000' && r <= '\u200a'
}
