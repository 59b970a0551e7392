// Package domain contains the core types shared across the relay: the
// classification of chat content and the inbound chat message envelope.
// They carry no infrastructure concerns so every package can depend on them.
package domain
