package notify

import "context"

// Notifier delivers a message to a recipient. Implementations are best-effort
// collaborators: the dispatch core logs failures but never retries or rolls
// back business state because of them.
type Notifier interface {
	Notify(ctx context.Context, recipient, subject, body string) error
}

// Nop discards every notification. Used when SMTP is not configured.
type Nop struct{}

func (Nop) Notify(ctx context.Context, recipient, subject, body string) error { return nil }
