package app

import (
	"context"
	"log"
)

// Mailer delivers account verification email. Actual transport is owned by
// the surrounding system; the server only composes the verification link.
type Mailer interface {
	SendVerification(ctx context.Context, email string, link string) error
}

// LogMailer writes verification links to the process log instead of sending
// email. It is the development default, matching the console fallback the
// hosted deployments replace with a real provider.
type LogMailer struct{}

// SendVerification logs the verification link for email.
func (LogMailer) SendVerification(_ context.Context, email string, link string) error {
	log.Printf("auth: verification email for %s: %s", email, link)
	return nil
}
