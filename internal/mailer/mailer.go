package mailer

import (
	"bytes"
	"embed"
	"html/template"
	"time"

	"github.com/go-mail/mail"
)

//go:embed templates/*
var templatesFS embed.FS

// Mailer sends templated emails over SMTP.
type Mailer struct {
	dialer *mail.Dialer
	sender string
}

// New creates a new Mailer instance.
func New(host string, port int, username, password, sender string) *Mailer {
	dialer := mail.NewDialer(host, port, username, password)
	dialer.Timeout = 5 * time.Second
	return &Mailer{
		dialer: dialer,
		sender: sender,
	}
}

// message holds a rendered template.
type message struct {
	subject string
	plain   string
	html    string
}

// render executes the subject, plainBody and htmlBody blocks of a template.
func render(templateName string, data any) (*message, error) {
	tmpl, err := template.ParseFS(templatesFS, "templates/"+templateName)
	if err != nil {
		return nil, err
	}

	parts := make([]*bytes.Buffer, 3)
	for i, name := range []string{"subject", "plainBody", "htmlBody"} {
		parts[i] = new(bytes.Buffer)
		if err := tmpl.ExecuteTemplate(parts[i], name, data); err != nil {
			return nil, err
		}
	}

	return &message{
		subject: parts[0].String(),
		plain:   parts[1].String(),
		html:    parts[2].String(),
	}, nil
}

// Send renders templateName with data and delivers it to the recipient.
func (m *Mailer) Send(to, templateName string, data any) error {
	rendered, err := render(templateName, data)
	if err != nil {
		return err
	}

	msg := mail.NewMessage()
	msg.SetHeader("From", m.sender)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", rendered.subject)
	msg.SetBody("text/plain", rendered.plain)
	msg.AddAlternative("text/html", rendered.html)

	// Three attempts, backing off between them.
	for i := 1; i <= 3; i++ {
		err = m.dialer.DialAndSend(msg)
		if err == nil {
			return nil
		}
		time.Sleep(time.Duration(i) * 500 * time.Millisecond)
	}

	return err
}
