package mailer

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/smtp"
	"time"

	"github.com/redmonkez12/scitech-admin-api/internal/logging"
)

// SendFunc matches smtp.SendMail.
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPSender delivers reset codes over SMTP.
type SMTPSender struct {
	smtpHost     string
	smtpPort     string
	smtpUser     string
	smtpPassword string
	fromEmail    string
	codeTTL      time.Duration
	send         SendFunc
}

func NewSMTPSender(smtpHost, smtpPort, smtpUser, smtpPassword, fromEmail string, codeTTL time.Duration) *SMTPSender {
	return &SMTPSender{
		smtpHost:     smtpHost,
		smtpPort:     smtpPort,
		smtpUser:     smtpUser,
		smtpPassword: smtpPassword,
		fromEmail:    fromEmail,
		codeTTL:      codeTTL,
		send:         smtp.SendMail,
	}
}

// SendPasswordResetCode emails a reset code to the user.
func (s *SMTPSender) SendPasswordResetCode(ctx context.Context, toEmail, code string) error {
	logger := logging.GetLoggerFromContext(ctx)

	body, err := renderResetCode(code, s.codeTTL)
	if err != nil {
		logger.Error("failed to render password reset email template", "error", err)
		return fmt.Errorf("render template: %w", err)
	}

	if err := s.sendEmail(toEmail, "Your password reset code", body); err != nil {
		logger.Error("failed to send password reset email", "email", toEmail, "error", err)
		return fmt.Errorf("send email: %w", err)
	}

	logger.Info("password reset email sent", "email", toEmail)
	return nil
}

func (s *SMTPSender) sendEmail(to, subject, body string) error {
	auth := smtp.PlainAuth("", s.smtpUser, s.smtpPassword, s.smtpHost)

	msg := []byte(fmt.Sprintf(
		"From: %s\r\n"+
			"To: %s\r\n"+
			"Subject: %s\r\n"+
			"MIME-Version: 1.0\r\n"+
			"Content-Type: text/html; charset=UTF-8\r\n"+
			"\r\n"+
			"%s\r\n",
		s.fromEmail, to, subject, body,
	))

	addr := fmt.Sprintf("%s:%s", s.smtpHost, s.smtpPort)
	return s.send(addr, auth, s.fromEmail, []string{to}, msg)
}

var resetCodeTemplate = template.Must(template.New("resetCode").Parse(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background-color: #0F5E9C; color: white; padding: 20px; text-align: center; border-radius: 5px 5px 0 0; }
        .content { background-color: #f9f9f9; padding: 30px; border-radius: 0 0 5px 5px; }
        .code { font-size: 32px; letter-spacing: 8px; font-weight: bold; text-align: center; margin: 24px 0; }
        .footer { margin-top: 30px; font-size: 12px; color: #666; text-align: center; }
    </style>
</head>
<body>
    <div class="header">
        <h1>Password Reset</h1>
    </div>
    <div class="content">
        <p>Use the code below to reset your password for the Science &amp; Technology Office admin portal.</p>
        <div class="code">{{.Code}}</div>
        <p>If you didn't request a password reset, you can ignore this email. Your password will remain unchanged.</p>
    </div>
    <div class="footer">
        <p>This code expires in {{.Minutes}} minutes.</p>
    </div>
</body>
</html>
`))

func renderResetCode(code string, ttl time.Duration) (string, error) {
	var buf bytes.Buffer
	data := struct {
		Code    string
		Minutes int
	}{
		Code:    code,
		Minutes: int(ttl.Minutes()),
	}

	if err := resetCodeTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute template: %w", err)
	}

	return buf.String(), nil
}
