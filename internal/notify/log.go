package notify

import (
	"context"

	"go.uber.org/zap"
)

// LogNotifier writes the link it would have mailed to the log. Meant for
// development when no mail provider is configured.
type LogNotifier struct {
	renderer *Renderer
	log      *zap.Logger
}

func NewLogNotifier(renderer *Renderer, log *zap.Logger) *LogNotifier {
	return &LogNotifier{
		renderer: renderer,
		log:      log.With(zap.String("notifier", "log")),
	}
}

func (n *LogNotifier) Notify(_ context.Context, kind Kind, email, token, displayName string) error {
	msg, err := n.renderer.Render(kind, email, token, displayName)
	if err != nil {
		return err
	}

	n.log.Info("Email not sent (log notifier)",
		zap.String("kind", string(kind)),
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("link", msg.Link),
	)
	return nil
}

func (n *LogNotifier) Close() error { return nil }
