package service

import "context"

// Mailer delivers outbound account emails.
type Mailer interface {
	// SendConfirmation sends the email-verification link to a newly registered user.
	SendConfirmation(ctx context.Context, to, username, confirmURL string) error
}
