// Package notify delivers account emails. The variant is chosen once at
// startup; callers only see the Notifier interface.
package notify

import (
	"bytes"
	"context"
	"fmt"
	htmlTemplate "html/template"
	"net/url"
	textTemplate "text/template"
	"time"

	"storefront/pkg/utils"

	"go.uber.org/zap"
)

type Kind string

const (
	KindVerification  Kind = "verification"
	KindPasswordReset Kind = "password_reset"
)

type Notifier interface {
	Notify(ctx context.Context, kind Kind, email, token, displayName string) error
	Close() error
}

// Message is a fully rendered email.
type Message struct {
	Kind    Kind   `json:"kind"`
	To      string `json:"to"`
	Name    string `json:"name"`
	Subject string `json:"subject"`
	Link    string `json:"link"`
	HTML    string `json:"html"`
	Text    string `json:"text"`
}

type templateData struct {
	AppName       string
	Name          string
	Link          string
	ExpiryMinutes int
}

type mailTemplate struct {
	subject string
	path    string
	html    *htmlTemplate.Template
	text    *textTemplate.Template
}

var templates = map[Kind]mailTemplate{
	KindVerification: {
		subject: "Verify your email address",
		path:    "/verify-email",
		html: htmlTemplate.Must(htmlTemplate.New("verification.html").Parse(
			`<p>Hi {{.Name}},</p>
<p>Thanks for signing up to {{.AppName}}. Confirm your email address by clicking the link below:</p>
<p><a href="{{.Link}}">Verify email</a></p>
<p>This link expires in {{.ExpiryMinutes}} minutes.</p>`)),
		text: textTemplate.Must(textTemplate.New("verification.txt").Parse(
			`Hi {{.Name}},

Thanks for signing up to {{.AppName}}. Confirm your email address here:
{{.Link}}

This link expires in {{.ExpiryMinutes}} minutes.
`)),
	},
	KindPasswordReset: {
		subject: "Reset your password",
		path:    "/reset-password",
		html: htmlTemplate.Must(htmlTemplate.New("password_reset.html").Parse(
			`<p>Hi {{.Name}},</p>
<p>We received a request to reset your {{.AppName}} password. Choose a new one here:</p>
<p><a href="{{.Link}}">Reset password</a></p>
<p>This link expires in {{.ExpiryMinutes}} minutes. If you did not ask for a reset you can ignore this email.</p>`)),
		text: textTemplate.Must(textTemplate.New("password_reset.txt").Parse(
			`Hi {{.Name}},

We received a request to reset your {{.AppName}} password. Choose a new one here:
{{.Link}}

This link expires in {{.ExpiryMinutes}} minutes. If you did not ask for a reset you can ignore this email.
`)),
	},
}

// Renderer turns a token into a message with a link back to the frontend.
type Renderer struct {
	AppName       string
	FrontendURL   string
	ExpiryMinutes map[Kind]int
}

func (r *Renderer) Render(kind Kind, email, token, displayName string) (*Message, error) {
	tmpl, ok := templates[kind]
	if !ok {
		return nil, fmt.Errorf("unknown notification kind %q", kind)
	}

	link := r.FrontendURL + tmpl.path + "?token=" + url.QueryEscape(token)
	data := templateData{
		AppName:       r.AppName,
		Name:          displayName,
		Link:          link,
		ExpiryMinutes: r.ExpiryMinutes[kind],
	}

	var htmlBuf, textBuf bytes.Buffer
	if err := tmpl.html.Execute(&htmlBuf, data); err != nil {
		return nil, fmt.Errorf("render %s html: %w", kind, err)
	}
	if err := tmpl.text.Execute(&textBuf, data); err != nil {
		return nil, fmt.Errorf("render %s text: %w", kind, err)
	}

	return &Message{
		Kind:    kind,
		To:      email,
		Name:    displayName,
		Subject: tmpl.subject,
		Link:    link,
		HTML:    htmlBuf.String(),
		Text:    textBuf.String(),
	}, nil
}

const sendTimeout = 10 * time.Second

// New picks the notifier variant from config. A provider whose credentials
// are missing falls back to the logging stub.
func New(cfg *utils.Config, log *zap.Logger) (Notifier, error) {
	log = log.With(zap.String("component", "notifier"))
	renderer := &Renderer{
		AppName:     cfg.App.Name,
		FrontendURL: cfg.App.FrontendURL,
		ExpiryMinutes: map[Kind]int{
			KindVerification:  cfg.Token.VerificationExpiryMinutes,
			KindPasswordReset: cfg.Token.ResetExpiryMinutes,
		},
	}
	email := cfg.Email

	provider := email.Provider
	if provider == "" {
		switch {
		case email.User != "" && email.Password != "":
			provider = "smtp"
		case email.ResendAPIKey != "":
			provider = "resend"
		case len(email.KafkaBrokers) > 0:
			provider = "kafka"
		default:
			provider = "log"
		}
	}

	switch provider {
	case "smtp":
		if email.Host == "" || email.From == "" {
			log.Warn("SMTP not configured, falling back to log notifier")
			return NewLogNotifier(renderer, log), nil
		}
		return NewSMTPNotifier(email, renderer, log)
	case "resend":
		if email.ResendAPIKey == "" || email.From == "" {
			log.Warn("Resend not configured, falling back to log notifier")
			return NewLogNotifier(renderer, log), nil
		}
		return NewResendNotifier(email.ResendAPIKey, email.From, renderer, log), nil
	case "kafka":
		if len(email.KafkaBrokers) == 0 || email.KafkaTopic == "" {
			log.Warn("Kafka not configured, falling back to log notifier")
			return NewLogNotifier(renderer, log), nil
		}
		return NewQueueNotifier(email.KafkaBrokers, email.KafkaTopic, renderer, log), nil
	case "log":
		log.Info("Using log notifier, emails are not delivered")
		return NewLogNotifier(renderer, log), nil
	default:
		return nil, fmt.Errorf("unknown EMAIL_PROVIDER %q", provider)
	}
}
