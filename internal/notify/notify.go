// Package notify delivers activation notifications to the sales team.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ghsales/discount-engine/internal/domain"
	"github.com/ghsales/discount-engine/pkg/constants"
	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

// Sender delivers a rendered notification.
type Sender interface {
	Send(ctx context.Context, n domain.Notification) error
}

var (
	_ Sender = (*SMTPSender)(nil)
	_ Sender = (*LogSender)(nil)
	_ Sender = (*Recorder)(nil)
)

// SMTPConfig holds SMTP connection parameters.
type SMTPConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	From       string
	Recipients []string
	Timeout    time.Duration
}

// SMTPSender sends notifications as HTML mail through go-mail.
type SMTPSender struct {
	config SMTPConfig
	logger *zap.Logger
}

// NewSMTPSender creates an SMTP sender.
func NewSMTPSender(config SMTPConfig, logger *zap.Logger) *SMTPSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Timeout <= 0 {
		config.Timeout = constants.DefaultMailTimeout
	}
	return &SMTPSender{config: config, logger: logger}
}

// Send mails the notification to every configured recipient.
func (s *SMTPSender) Send(ctx context.Context, n domain.Notification) error {
	const op = "notify.SMTPSender.Send"

	if len(s.config.Recipients) == 0 {
		s.logger.Warn("no notification recipients configured, skipping",
			zap.String("op", op),
			zap.Int64("version_id", n.VersionID),
		)
		return nil
	}

	msg, err := s.message(n)
	if err != nil {
		return err
	}

	client, err := mail.NewClient(s.config.Host, s.clientOptions()...)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		s.logger.Error("failed to send notification",
			zap.String("op", op),
			zap.Int64("version_id", n.VersionID),
			zap.Error(err),
		)
		return fmt.Errorf("failed to send notification: %w", err)
	}

	s.logger.Info("notification sent",
		zap.String("op", op),
		zap.Int64("version_id", n.VersionID),
		zap.Int("recipients", len(s.config.Recipients)),
	)
	return nil
}

func (s *SMTPSender) message(n domain.Notification) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(s.config.From); err != nil {
		return nil, fmt.Errorf("invalid from address: %w", err)
	}
	if err := msg.To(s.config.Recipients...); err != nil {
		return nil, fmt.Errorf("invalid recipient address: %w", err)
	}
	msg.Subject(n.Subject)
	msg.SetBodyString(mail.TypeTextHTML, n.HTMLBody)
	return msg, nil
}

func (s *SMTPSender) clientOptions() []mail.Option {
	opts := []mail.Option{
		mail.WithPort(s.config.Port),
		mail.WithTimeout(s.config.Timeout),
	}

	switch s.config.Port {
	case 465:
		opts = append(opts, mail.WithSSL())
	case 587:
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	default:
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}

	if s.config.Username != "" && s.config.Password != "" {
		opts = append(opts,
			mail.WithUsername(s.config.Username),
			mail.WithPassword(s.config.Password),
			mail.WithSMTPAuth(mail.SMTPAuthAutoDiscover),
		)
	}
	return opts
}

// LogSender only logs notifications. Used when mail is disabled.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender creates a log-only sender.
func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, n domain.Notification) error {
	s.logger.Info("notification",
		zap.String("op", "notify.LogSender.Send"),
		zap.Int64("version_id", n.VersionID),
		zap.Bool("first_activation", n.FirstActivation),
		zap.String("subject", n.Subject),
	)
	return nil
}

// Recorder keeps sent notifications in memory.
type Recorder struct {
	mu   sync.Mutex
	sent []domain.Notification
}

func (r *Recorder) Send(ctx context.Context, n domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

// Sent returns the recorded notifications in send order.
func (r *Recorder) Sent() []domain.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Notification(nil), r.sent...)
}
