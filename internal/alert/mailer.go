// Package alert formats alert emails, sends them through a mail transport and records each send as an audit event.
package alert

import (
	"context"
	"fmt"
)

// Message is one outbound email.
type Message struct {
	To       string
	Subject  string
	HTML     string
	Text     string
	Priority string
}

// Mailer is the mail transport capability.
type Mailer interface {
	// Send delivers msg. Failures are returned as *TransportError.
	Send(ctx context.Context, msg Message) error
	// Verify connects and authenticates without sending anything.
	Verify(ctx context.Context) error
}

// TransportError reports a failure of the mail transport.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("mail transport: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
