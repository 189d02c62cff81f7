package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	gomail "gopkg.in/gomail.v2"

	"github.com/example/taxi-dispatch/internal/models"
)

// EmailNotifier sends plain-text mail over SMTP.
type EmailNotifier struct {
	dialer  *gomail.Dialer
	from    string
	timeout time.Duration
}

func NewEmailNotifier(host string, port int, username, password, from string, timeout time.Duration) *EmailNotifier {
	d := gomail.NewDialer(host, port, username, password)
	d.TLSConfig = &tls.Config{ServerName: host}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &EmailNotifier{dialer: d, from: from, timeout: timeout}
}

// Notify dials and sends within the configured timeout. gomail has no context
// support, so the send runs in a goroutine and the slow path is abandoned.
func (n *EmailNotifier) Notify(ctx context.Context, recipient, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", recipient)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- n.dialer.DialAndSend(m) }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send to %s: %v: %w", recipient, err, models.ErrNotificationFailed)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("send to %s: %w", recipient, models.ErrNotificationTimeout)
	}
}
