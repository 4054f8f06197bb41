package notify

import (
	"context"
	"fmt"
	"time"

	"storefront/pkg/utils"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

type SMTPNotifier struct {
	client   *mail.Client
	from     string
	renderer *Renderer
	log      *zap.Logger
}

func NewSMTPNotifier(cfg utils.EmailConfig, renderer *Renderer, log *zap.Logger) (*SMTPNotifier, error) {
	log = log.With(zap.String("notifier", "smtp"))

	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTimeout(sendTimeout),
	}

	if cfg.User != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.User),
			mail.WithPassword(cfg.Password),
		)
	}

	switch cfg.Encryption {
	case "ssl":
		opts = append(opts, mail.WithSSL())
	case "none":
		opts = append(opts, mail.WithTLSPortPolicy(mail.NoTLS))
	default:
		opts = append(opts, mail.WithTLSPortPolicy(mail.TLSMandatory))
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		log.Error("Failed to create mail client",
			zap.Error(err),
			zap.String("host", cfg.Host),
			zap.Int("port", cfg.Port),
		)
		return nil, fmt.Errorf("create mail client %s: %w", cfg.Host, err)
	}

	log.Info("SMTP notifier initialized",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("encryption", cfg.Encryption),
	)

	return &SMTPNotifier{
		client:   client,
		from:     cfg.From,
		renderer: renderer,
		log:      log,
	}, nil
}

// BuildMessage renders and addresses the email without sending it.
func (n *SMTPNotifier) BuildMessage(kind Kind, email, token, displayName string) (*mail.Msg, error) {
	rendered, err := n.renderer.Render(kind, email, token, displayName)
	if err != nil {
		return nil, err
	}

	msg := mail.NewMsg()
	if err := msg.From(n.from); err != nil {
		return nil, fmt.Errorf("set from address: %w", err)
	}
	if err := msg.To(rendered.To); err != nil {
		return nil, fmt.Errorf("set to address: %w", err)
	}
	msg.Subject(rendered.Subject)
	msg.SetBodyString(mail.TypeTextHTML, rendered.HTML)
	msg.AddAlternativeString(mail.TypeTextPlain, rendered.Text)

	return msg, nil
}

func (n *SMTPNotifier) Notify(ctx context.Context, kind Kind, email, token, displayName string) error {
	msg, err := n.BuildMessage(kind, email, token, displayName)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	start := time.Now()
	if err := n.client.DialAndSendWithContext(ctx, msg); err != nil {
		n.log.Error("Failed to send email",
			zap.Error(err),
			zap.String("kind", string(kind)),
			zap.String("to", email),
			zap.Duration("attempt_duration", time.Since(start)),
		)
		return fmt.Errorf("send %s email to %s: %w", kind, email, err)
	}

	n.log.Info("Email sent",
		zap.String("kind", string(kind)),
		zap.String("to", email),
		zap.Duration("send_duration", time.Since(start)),
	)
	return nil
}

func (n *SMTPNotifier) Close() error {
	return n.client.Close()
}
