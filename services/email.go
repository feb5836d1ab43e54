package services

import (
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"time"
)

// EmailService sends notification emails over SMTP. Delivery is best-effort:
// callers log failures and move on, the in-app notification is the source of
// truth.
type EmailService struct {
	smtpConfig SMTPConfig
	timeout    time.Duration
	logger     *slog.Logger
}

func NewEmailService(cfg SMTPConfig, timeout time.Duration, logger *slog.Logger) *EmailService {
	if logger == nil {
		logger = slog.Default()
	}
	return &EmailService{
		smtpConfig: cfg,
		timeout:    timeout,
		logger:     logger,
	}
}

// SendTaskDeadlineReminder emails the assignee that a task deadline is near.
func (s *EmailService) SendTaskDeadlineReminder(to, taskTitle string, deadline time.Time) error {
	subject := fmt.Sprintf("[DBI Hive] Reminder: Task '%s' deadline approaching", taskTitle)
	body := fmt.Sprintf(
		"This is a reminder that your task is due soon:\n\nTask: %s\nDeadline: %s\n\nPlease ensure to complete this task on time.",
		taskTitle, deadline.UTC().Format("2006-01-02 15:04"))
	return s.Send(to, subject, body)
}

// SendTaskAssigned emails a user that a task was assigned to them.
func (s *EmailService) SendTaskAssigned(to, taskTitle, assignedBy string) error {
	subject := fmt.Sprintf("[DBI Hive] New task assigned: '%s'", taskTitle)
	body := fmt.Sprintf(
		"You have been assigned a new task:\n\nTask: %s\nAssigned by: %s\n\nPlease check your dashboard for more details.",
		taskTitle, assignedBy)
	return s.Send(to, subject, body)
}

// Send delivers a single plaintext email. The whole exchange is bounded by
// the configured timeout so a slow SMTP endpoint cannot stall callers.
func (s *EmailService) Send(to, subject, body string) error {
	// Skip if SMTP not configured
	if s.smtpConfig.Host == "" || s.smtpConfig.Port == "" {
		return errors.New("SMTP not configured")
	}

	from := s.smtpConfig.From
	if from == "" {
		from = s.smtpConfig.Username
	}

	message := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s", from, to, subject, body)

	addr := net.JoinHostPort(s.smtpConfig.Host, s.smtpConfig.Port)
	conn, err := net.DialTimeout("tcp", addr, s.timeout)
	if err != nil {
		return fmt.Errorf("failed to dial SMTP server: %w", err)
	}
	if err := conn.SetDeadline(time.Now().Add(s.timeout)); err != nil {
		conn.Close()
		return fmt.Errorf("failed to set SMTP deadline: %w", err)
	}

	client, err := smtp.NewClient(conn, s.smtpConfig.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: s.smtpConfig.Host}); err != nil {
			return fmt.Errorf("failed to start TLS: %w", err)
		}
	}

	if s.smtpConfig.Username != "" {
		auth := smtp.PlainAuth("", s.smtpConfig.Username, s.smtpConfig.Password, s.smtpConfig.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("failed to authenticate: %w", err)
		}
	}

	if err := client.Mail(from); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("failed to set recipient: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to open message body: %w", err)
	}
	if _, err := w.Write([]byte(message)); err != nil {
		w.Close()
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close message: %w", err)
	}

	if err := client.Quit(); err != nil {
		s.logger.Debug("SMTP quit failed", slog.String("error", err.Error()))
	}
	return nil
}
