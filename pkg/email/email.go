package email

import (
	"fmt"
	"net/smtp"
)

// Sender delivers plain text email over SMTP. A zero Host disables sending,
// which keeps local development working without a mail server.
type Sender struct {
	Host     string
	Port     string
	From     string
	Password string
}

func NewSender(host, port, from, password string) *Sender {
	return &Sender{Host: host, Port: port, From: from, Password: password}
}

// Enabled reports whether the sender is configured to actually deliver mail.
func (s *Sender) Enabled() bool {
	return s.Host != ""
}

// Send sends a plain text email to a single recipient.
func (s *Sender) Send(to, subject, body string) error {
	if !s.Enabled() {
		return nil
	}

	auth := smtp.PlainAuth("", s.From, s.Password, s.Host)

	msg := []byte("To: " + to + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"\r\n" + body + "\r\n")

	address := s.Host + ":" + s.Port

	if err := smtp.SendMail(address, auth, s.From, []string{to}, msg); err != nil {
		return fmt.Errorf("failed to send email: %v", err)
	}
	return nil
}
