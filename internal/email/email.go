package email

import (
	"fmt"
	"net/smtp"
	"strings"
)

type SMTPConfig struct {
	Host       string
	Port       int
	User       string
	Pass       string
	From       string
	SenderName string
}

// SendText sends a plain-text mail through the configured SMTP relay.
func SendText(cfg SMTPConfig, to, subject, body string) error {
	if cfg.Host == "" || cfg.From == "" {
		return fmt.Errorf("smtp not configured")
	}

	from := cfg.From
	if cfg.SenderName != "" {
		from = fmt.Sprintf("%s <%s>", cfg.SenderName, cfg.From)
	}

	var msg strings.Builder
	msg.WriteString("From: " + from + "\r\n")
	msg.WriteString("To: " + to + "\r\n")
	msg.WriteString("Subject: " + subject + "\r\n")
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	auth := smtp.PlainAuth("", cfg.User, cfg.Pass, cfg.Host)
	if err := smtp.SendMail(addr, auth, cfg.From, []string{to}, []byte(msg.String())); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// RiskAlertMail builds the parent-facing notification for a detected risk.
func RiskAlertMail(childName, riskLevel, redirectURL string) (subject, body string) {
	subject = fmt.Sprintf("AI Chat Risk Notification for %s", childName)
	body = fmt.Sprintf(
		"Dear Parent,\n\nWe have detected a %s risk level in your child's AI chat activities. \n\nPlease click the following link to view the conversation: %s\n\nBest regards,\nYouthSafeAgent Team",
		riskLevel, redirectURL,
	)
	return subject, body
}
