/*
Package notify delivers generated reports by email.

PURPOSE:
  Sends a collaborator's attendance report as a CSV attachment over
  SMTP with STARTTLS (the Gmail app-password setup the operators use).
  When credentials are not configured the mailer reports itself
  disabled and the caller skips delivery - report generation must not
  depend on mail being set up.

  The MIME message is assembled by hand: a multipart/mixed body with a
  text part and one base64 attachment is small enough that pulling in a
  mail library buys nothing.
*/
package notify

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"mime/multipart"
	"net/smtp"
	"net/textproto"
)

// Mailer sends report emails. Zero-value credentials disable it.
type Mailer struct {
	Host     string
	Port     int
	From     string
	Password string

	// send is swapped out in tests.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewMailer(host string, port int, from, password string) *Mailer {
	return &Mailer{Host: host, Port: port, From: from, Password: password, send: smtp.SendMail}
}

// Enabled reports whether credentials are configured.
func (m *Mailer) Enabled() bool { return m.From != "" && m.Password != "" }

// SendReport mails one attachment to one recipient.
func (m *Mailer) SendReport(to, subject, body, filename string, attachment []byte) error {
	if !m.Enabled() {
		return fmt.Errorf("mailer not configured")
	}
	msg, err := m.compose(to, subject, body, filename, attachment)
	if err != nil {
		return err
	}
	auth := smtp.PlainAuth("", m.From, m.Password, m.Host)
	addr := fmt.Sprintf("%s:%d", m.Host, m.Port)
	if err := m.send(addr, auth, m.From, []string{to}, msg); err != nil {
		return fmt.Errorf("send to %s: %w", to, err)
	}
	return nil
}

func (m *Mailer) compose(to, subject, body, filename string, attachment []byte) ([]byte, error) {
	var buf bytes.Buffer
	mp := multipart.NewWriter(&buf)

	fmt.Fprintf(&buf, "From: %s\r\n", m.From)
	fmt.Fprintf(&buf, "To: %s\r\n", to)
	fmt.Fprintf(&buf, "Subject: %s\r\n", subject)
	fmt.Fprintf(&buf, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", mp.Boundary())

	text, err := mp.CreatePart(textproto.MIMEHeader{
		"Content-Type": {"text/plain; charset=utf-8"},
	})
	if err != nil {
		return nil, err
	}
	fmt.Fprint(text, body)

	file, err := mp.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {"text/csv; charset=utf-8"},
		"Content-Transfer-Encoding": {"base64"},
		"Content-Disposition":       {fmt.Sprintf("attachment; filename=%q", filename)},
	})
	if err != nil {
		return nil, err
	}
	enc := base64.NewEncoder(base64.StdEncoding, file)
	if _, err := enc.Write(attachment); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}

	if err := mp.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ReportBody renders the standard report email text.
func ReportBody(collaborator, payDate string) string {
	return fmt.Sprintf(`Dear %s,

Attached is your attendance report for the pay period ending %s.
The file lists each attendance session with its normal and overtime
minutes.

If anything looks off, please reach out.

Kind regards,
Human Resources

--
This email was generated automatically by the attendance system.
`, collaborator, payDate)
}
