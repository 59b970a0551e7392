// Package content validates and sanitizes inbound chat payloads.
//
// The package is a set of pure functions around one immutable value, the
// trusted domain set. A payload is decoded, its body is classified as an
// image link, a YouTube link, a direct video link or plain text, and the body
// is replaced with a vetted HTML fragment or with its HTML-escaped form. The
// resulting payload is always safe to broadcast verbatim. All functions are
// safe for concurrent use.
//
// IsValidPhone is not part of the pipeline. It is exported for callers that
// validate contact fields alongside chat messages.
package content
