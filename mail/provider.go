// Package mail renders digests and account emails and hands them to a
// pluggable transport.
package mail

import (
	"context"
)

// Message is one outgoing email with HTML and plain-text parts.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Provider defines the interface for email sending implementations.
type Provider interface {
	// Send delivers the message. Implementations retry transient failures
	// themselves; a returned error means the message was not accepted.
	Send(ctx context.Context, msg Message) error
}
