package alert

import (
	"context"
)

// alertHandlerInterface is the delivery backend. SMTP is the only handler for
// now; a chat-robot handler would implement the same interface.
type alertHandlerInterface interface {
	SendMessageTo(ctx context.Context, receiver, subject, body string) error
}
