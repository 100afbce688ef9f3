package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/wneessen/go-mail"

	"scribe/internal/config"
	"scribe/internal/logging"
	"scribe/internal/queue"
	"scribe/internal/services"
)

// Service delivers lifecycle notifications for transcription tasks.
type Service interface {
	// NotifyTaskComplete tells the task owner that their transcript is ready.
	NotifyTaskComplete(ctx context.Context, task *queue.Task) error
	// TestNotification sends a connectivity check to the configured sender.
	TestNotification(ctx context.Context) error
}

// sendFunc performs the actual SMTP delivery. Tests replace it to capture
// outgoing messages without a live server.
type sendFunc func(ctx context.Context, msg *mail.Msg) error

type mailService struct {
	cfg    config.Mail
	from   string
	base   string
	logger *slog.Logger
	send   sendFunc
}

// NewService returns a mail-backed service when mail is enabled in cfg and
// a no-op service otherwise.
func NewService(cfg *config.Config, logger *slog.Logger) Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	if !cfg.Mail.Enabled {
		return &noopService{logger: logger}
	}
	svc := &mailService{
		cfg:    cfg.Mail,
		from:   cfg.SenderAddress(),
		base:   cfg.Paths.BaseURL,
		logger: logging.NewComponentLogger(logger, "notifications"),
	}
	svc.send = svc.deliver
	return svc
}

func (s *mailService) NotifyTaskComplete(ctx context.Context, task *queue.Task) error {
	if task == nil {
		return services.Wrap(services.ErrValidation, "notifications", "notify", "task is required", nil)
	}
	msg, err := s.newMessage(task.Owner, fmt.Sprintf("[scribe] Transcript %d ready", task.ID), completionBody(s.base, task))
	if err != nil {
		return err
	}
	if err := s.send(ctx, msg); err != nil {
		return services.Wrap(services.ErrTransient, "notifications", "notify", "send completion mail", err)
	}
	s.logger.Info("sent completion notice",
		logging.Int64(logging.FieldTaskID, task.ID),
		logging.String("recipient", task.Owner))
	return nil
}

func (s *mailService) TestNotification(ctx context.Context) error {
	msg, err := s.newMessage(s.from, "[scribe] Test notification",
		fmt.Sprintf("Mail delivery is working. Sent at %s.\n", time.Now().UTC().Format(time.RFC3339)))
	if err != nil {
		return err
	}
	if err := s.send(ctx, msg); err != nil {
		return services.Wrap(services.ErrTransient, "notifications", "test", "send test mail", err)
	}
	return nil
}

func (s *mailService) newMessage(to, subject, body string) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(s.from); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "notifications", "compose", "invalid sender address", err)
	}
	if err := msg.To(to); err != nil {
		return nil, services.Wrap(services.ErrValidation, "notifications", "compose", "invalid recipient address", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)
	return msg, nil
}

func (s *mailService) deliver(ctx context.Context, msg *mail.Msg) error {
	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithSSL(),
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password))
	}
	client, err := mail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return err
	}
	return client.DialAndSendWithContext(ctx, msg)
}

func completionBody(base string, task *queue.Task) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Your transcript for task %d is ready.\n\n", task.ID)
	if task.File != "" {
		fmt.Fprintf(&b, "Source: %s\n", task.File)
	} else {
		fmt.Fprintf(&b, "Source: %s\n", task.URL)
	}
	if base != "" {
		fmt.Fprintf(&b, "Subtitles: %s/api/tasks/%d/subtitles\n", base, task.ID)
		fmt.Fprintf(&b, "Plain text: %s/api/tasks/%d/text\n", base, task.ID)
	}
	b.WriteString("\n")
	b.WriteString(task.ResultSubtitles)
	return b.String()
}

type noopService struct {
	logger *slog.Logger
}

func (n *noopService) NotifyTaskComplete(_ context.Context, task *queue.Task) error {
	if task != nil {
		n.logger.Debug("mail disabled, skipping completion notice",
			logging.Int64(logging.FieldTaskID, task.ID))
	}
	return nil
}

func (n *noopService) TestNotification(context.Context) error {
	n.logger.Info("mail disabled, test notification skipped")
	return nil
}
