package smtp

import (
	"fmt"
	"mime"
	"net/smtp"
	"strings"

	"github.com/plumehost/platform/internal/config"
)

// Message is one outbound notification email. FromName carries the tenant's
// display identity; the envelope sender stays the platform address.
type Message struct {
	To             string
	FromName       string
	ReplyTo        string
	Subject        string
	Body           string
	UnsubscribeURL string
}

// Mailer sends emails.
type Mailer interface {
	Send(m Message) error
}

type mailer struct {
	host     string
	port     string
	from     string
	username string
	password string
}

func NewMailer(cfg *config.Config) Mailer {
	return &mailer{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		from:     cfg.SMTPFrom,
		username: cfg.SMTPUsername,
		password: cfg.SMTPPassword,
	}
}

func (m *mailer) Send(msg Message) error {
	addr := fmt.Sprintf("%s:%s", m.host, m.port)

	var auth smtp.Auth
	if m.username != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}

	return smtp.SendMail(addr, auth, m.from, []string{msg.To}, renderMessage(msg, m.from))
}

// renderMessage builds the raw RFC 5322 message. The unsubscribe URL is
// carried both in the body and in List-Unsubscribe headers so mail clients
// can offer one-click unsubscribe.
func renderMessage(msg Message, from string) []byte {
	var b strings.Builder
	if msg.FromName != "" {
		b.WriteString(fmt.Sprintf("From: %s <%s>\r\n", mime.QEncoding.Encode("utf-8", msg.FromName), from))
	} else {
		b.WriteString(fmt.Sprintf("From: %s\r\n", from))
	}
	b.WriteString(fmt.Sprintf("To: %s\r\n", msg.To))
	if msg.ReplyTo != "" {
		b.WriteString(fmt.Sprintf("Reply-To: %s\r\n", msg.ReplyTo))
	}
	b.WriteString(fmt.Sprintf("Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject)))
	if msg.UnsubscribeURL != "" {
		b.WriteString(fmt.Sprintf("List-Unsubscribe: <%s>\r\n", msg.UnsubscribeURL))
		b.WriteString("List-Unsubscribe-Post: List-Unsubscribe=One-Click\r\n")
	}
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.Body)
	return []byte(b.String())
}
