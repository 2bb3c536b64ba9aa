// Package mailer delivers transactional email over SMTP. Every send is
// best-effort: callers log failures and never fail the request that
// triggered the notification.
package mailer

import (
	"crypto/tls"
	"fmt"
	"net/smtp"

	"hospital-app-server/internal/config"
)

// AppointmentEmail carries the details shared by booking and confirmation
// notifications.
type AppointmentEmail struct {
	PatientName     string
	DoctorName      string
	AppointmentDate string
	AppointmentTime string
	Reason          string
}

// CancellationEmail carries the details of a cancellation notification.
type CancellationEmail struct {
	PatientName     string
	DoctorName      string
	AppointmentDate string
	AppointmentTime string
	CancelledBy     string
}

// RescheduleEmail carries the old and new slot of a reschedule notification.
type RescheduleEmail struct {
	PatientName   string
	DoctorName    string
	OldDate       string
	OldTime       string
	NewDate       string
	NewTime       string
	RescheduledBy string
}

// Notifier is the outbound notification boundary consumed by handlers.
type Notifier interface {
	SendVerificationEmail(to, username, token string) error
	SendPasswordResetEmail(to, token string) error
	SendAppointmentConfirmation(to string, d AppointmentEmail) error
	SendAppointmentCancellation(to string, d CancellationEmail) error
	SendAppointmentRescheduled(to string, d RescheduleEmail) error
}

// Mailer sends plain-text email over SMTP with STARTTLS.
type Mailer struct {
	cfg         config.MailerConfig
	frontendURL string
}

// New creates a Mailer from SMTP configuration.
func New(cfg config.MailerConfig, frontendURL string) *Mailer {
	return &Mailer{cfg: cfg, frontendURL: frontendURL}
}

func (m *Mailer) SendVerificationEmail(to, username, token string) error {
	link := fmt.Sprintf("%s/verify-email?token=%s", m.frontendURL, token)
	body := fmt.Sprintf(
		"Hello %s,\r\n\r\n"+
			"Thank you for registering. Please verify your email address by visiting the link below:\r\n\r\n"+
			"%s\r\n\r\n"+
			"This link expires in 24 hours. If you did not create an account, you can ignore this email.\r\n",
		username, link)
	return m.send(to, "Verify Your Email Address", body)
}

func (m *Mailer) SendPasswordResetEmail(to, token string) error {
	link := fmt.Sprintf("%s/reset-password?token=%s", m.frontendURL, token)
	body := fmt.Sprintf(
		"Hello,\r\n\r\n"+
			"We received a request to reset your password. Visit the link below to choose a new one:\r\n\r\n"+
			"%s\r\n\r\n"+
			"This link expires in 1 hour. If you did not request a password reset, you can ignore this email.\r\n",
		link)
	return m.send(to, "Reset Your Password", body)
}

func (m *Mailer) SendAppointmentConfirmation(to string, d AppointmentEmail) error {
	body := fmt.Sprintf(
		"Hello %s,\r\n\r\n"+
			"Your appointment with Dr. %s has been scheduled.\r\n\r\n"+
			"Date: %s\r\nTime: %s\r\nReason: %s\r\n\r\n"+
			"Please arrive a few minutes early.\r\n",
		d.PatientName, d.DoctorName, d.AppointmentDate, d.AppointmentTime, d.Reason)
	return m.send(to, "Appointment Confirmed", body)
}

func (m *Mailer) SendAppointmentCancellation(to string, d CancellationEmail) error {
	body := fmt.Sprintf(
		"Hello %s,\r\n\r\n"+
			"The appointment with Dr. %s on %s at %s has been cancelled by %s.\r\n\r\n"+
			"You can book a new appointment at any time.\r\n",
		d.PatientName, d.DoctorName, d.AppointmentDate, d.AppointmentTime, d.CancelledBy)
	return m.send(to, "Appointment Cancelled", body)
}

func (m *Mailer) SendAppointmentRescheduled(to string, d RescheduleEmail) error {
	body := fmt.Sprintf(
		"Hello %s,\r\n\r\n"+
			"The appointment with Dr. %s has been rescheduled by %s.\r\n\r\n"+
			"Previous: %s at %s\r\nNew: %s at %s\r\n",
		d.PatientName, d.DoctorName, d.RescheduledBy, d.OldDate, d.OldTime, d.NewDate, d.NewTime)
	return m.send(to, "Appointment Rescheduled", body)
}

// send connects, upgrades to TLS with STARTTLS, authenticates and writes a
// single message.
func (m *Mailer) send(recipient, subject, body string) error {
	smtpAddr := m.cfg.SMTPHost + ":" + m.cfg.SMTPPort

	client, err := smtp.Dial(smtpAddr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer client.Close()

	tlsConfig := &tls.Config{
		ServerName: m.cfg.SMTPHost,
		MinVersion: tls.VersionTLS12,
	}
	if err = client.StartTLS(tlsConfig); err != nil {
		return fmt.Errorf("failed to start TLS: %w", err)
	}

	auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.SMTPHost)
	if err = client.Auth(auth); err != nil {
		return fmt.Errorf("failed to authenticate: %w", err)
	}

	if err = client.Mail(m.cfg.Sender); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	if err = client.Rcpt(recipient); err != nil {
		return fmt.Errorf("failed to set recipient: %w", err)
	}

	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to create mail writer: %w", err)
	}

	message := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		m.cfg.Sender, recipient, subject, body)
	if _, err = writer.Write([]byte(message)); err != nil {
		return fmt.Errorf("failed to write email body: %w", err)
	}
	if err = writer.Close(); err != nil {
		return fmt.Errorf("failed to close mail writer: %w", err)
	}

	return client.Quit()
}
