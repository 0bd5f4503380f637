package mail

import (
	"context"
	"io"
)

// Message is a provider-neutral email. The OTP notification flow fills in
// To, Subject and TextBody; the remaining fields exist for completeness.
type Message struct {
	// From overrides the transport's default sender when set.
	From string
	// To lists the primary recipients and must not be empty.
	To []string
	// Cc and Bcc list secondary recipients.
	Cc  []string
	Bcc []string
	// Subject is the subject line.
	Subject string
	// TextBody is the plain-text body. HTMLBody, when present, is sent as an
	// alternative part.
	TextBody string
	HTMLBody string
}

// Mail delivers email messages. Implementations own their connection
// lifecycle and release it on Close.
type Mail interface {
	io.Closer
	Send(ctx context.Context, msg Message) error
}
