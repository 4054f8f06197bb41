package notify

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v2"
	"go.uber.org/zap"
)

// emailSender is the part of the Resend client this package uses.
type emailSender interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

type ResendNotifier struct {
	emails   emailSender
	from     string
	renderer *Renderer
	log      *zap.Logger
}

func NewResendNotifier(apiKey, from string, renderer *Renderer, log *zap.Logger) *ResendNotifier {
	client := resend.NewClient(apiKey)
	return newResendNotifier(client.Emails, from, renderer, log)
}

func newResendNotifier(emails emailSender, from string, renderer *Renderer, log *zap.Logger) *ResendNotifier {
	return &ResendNotifier{
		emails:   emails,
		from:     from,
		renderer: renderer,
		log:      log.With(zap.String("notifier", "resend")),
	}
}

func (n *ResendNotifier) Notify(ctx context.Context, kind Kind, email, token, displayName string) error {
	msg, err := n.renderer.Render(kind, email, token, displayName)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	sent, err := n.emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    n.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
		Text:    msg.Text,
	})
	if err != nil {
		n.log.Error("Failed to send email",
			zap.Error(err),
			zap.String("kind", string(kind)),
			zap.String("to", email),
		)
		return fmt.Errorf("send %s email to %s: %w", kind, email, err)
	}

	n.log.Info("Email sent",
		zap.String("kind", string(kind)),
		zap.String("to", email),
		zap.String("resend_id", sent.Id),
	)
	return nil
}

func (n *ResendNotifier) Close() error { return nil }
