// Package mail delivers account emails over SMTP.
package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"html/template"
	"log/slog"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"

	"phonebook/config"
	deliverycontext "phonebook/internal/delivery/context"
	"phonebook/internal/domain/service"
	"phonebook/internal/errors"
)

const confirmationSubject = "Confirm your email"

var confirmationTemplate = template.Must(template.New("confirmation").Parse(`<!DOCTYPE html>
<html>
<body>
<p>Hi {{.Username}},</p>
<p>Thanks for signing up. Please confirm your email address by following the link below.</p>
<p><a href="{{.Link}}">Confirm email</a></p>
<p>If you did not create an account, you can ignore this message.</p>
</body>
</html>
`))

type smtpMailer struct {
	cfg    *config.MailConfig
	logger *slog.Logger
	dialer *net.Dialer
}

// NewMailer returns an SMTP mailer, or a mailer that only logs when mail.host is unset.
func NewMailer(cfg *config.Config, logger *slog.Logger) service.Mailer {
	if cfg.Mail == nil || cfg.Mail.Host == "" {
		logger.Warn("SMTP not configured, confirmation emails will only be logged")

		return &logMailer{logger: logger}
	}

	return &smtpMailer{
		cfg:    cfg.Mail,
		logger: logger,
		dialer: &net.Dialer{},
	}
}

// SendConfirmation renders the confirmation email and delivers it.
func (m *smtpMailer) SendConfirmation(ctx context.Context, to, username, confirmURL string) error {
	msg, err := m.buildMessage(to, username, confirmURL)
	if err != nil {
		return err
	}

	if err := m.send(ctx, to, msg); err != nil {
		return errors.Wrapf(err, "failed to send confirmation to %s", to)
	}

	deliverycontext.GetLoggerOrDefault(ctx, m.logger).Info("Confirmation email sent", slog.String("to", to))

	return nil
}

func (m *smtpMailer) buildMessage(to, username, link string) ([]byte, error) {
	var body bytes.Buffer
	if err := confirmationTemplate.Execute(&body, struct {
		Username string
		Link     string
	}{Username: username, Link: link}); err != nil {
		return nil, errors.Wrap(err, "failed to render confirmation email")
	}

	from := mail.Address{Name: m.cfg.FromName, Address: m.cfg.From}
	recipient := mail.Address{Address: to}

	var msg bytes.Buffer
	msg.WriteString("From: " + from.String() + "\r\n")
	msg.WriteString("To: " + recipient.String() + "\r\n")
	msg.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", confirmationSubject) + "\r\n")
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"utf-8\"\r\n")
	msg.WriteString("\r\n")
	msg.Write(body.Bytes())

	return msg.Bytes(), nil
}

func (m *smtpMailer) send(ctx context.Context, to string, msg []byte) error {
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))

	conn, err := m.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return errors.Wrap(err, "dial smtp")
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		_ = conn.Close()

		return errors.Wrap(err, "smtp handshake")
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: m.cfg.Host, MinVersion: tls.VersionTLS12}); err != nil {
			return errors.Wrap(err, "smtp starttls")
		}
	}

	if m.cfg.Username != "" {
		auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return errors.Wrap(err, "smtp auth")
		}
	}

	if err := client.Mail(m.cfg.From); err != nil {
		return errors.Wrap(err, "smtp mail from")
	}
	if err := client.Rcpt(to); err != nil {
		return errors.Wrap(err, "smtp rcpt to")
	}

	w, err := client.Data()
	if err != nil {
		return errors.Wrap(err, "smtp data")
	}
	if _, err := w.Write(msg); err != nil {
		_ = w.Close()

		return errors.Wrap(err, "smtp write body")
	}
	if err := w.Close(); err != nil {
		return errors.Wrap(err, "smtp close body")
	}

	return errors.WithStack(client.Quit())
}

// logMailer records the confirmation link instead of sending it.
type logMailer struct {
	logger *slog.Logger
}

func (m *logMailer) SendConfirmation(ctx context.Context, to, username, confirmURL string) error {
	deliverycontext.GetLoggerOrDefault(ctx, m.logger).Info("Confirmation email not sent, SMTP disabled",
		slog.String("to", to),
		slog.String("username", username),
		slog.String("link", confirmURL),
	)

	return nil
}
