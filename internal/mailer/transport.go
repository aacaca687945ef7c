package mailer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/revo-marketplace/waitlist/internal/config"
	"github.com/revo-marketplace/waitlist/internal/observability"
)

// ErrTransportDisabled is returned when no mail provider is configured.
var ErrTransportDisabled = errors.New("email transport not configured")

// Transport delivers a rendered message.
type Transport interface {
	Send(ctx context.Context, msg Message) error
}

// NewTransport picks the transport named by cfg.Provider.
func NewTransport(ctx context.Context, cfg config.EmailConfig, logger *zap.Logger) (Transport, error) {
	switch cfg.Provider {
	case "smtp":
		if cfg.SMTPUsername == "" || cfg.SMTPPassword == "" {
			logger.Warn("SMTP credentials not provided; confirmation emails disabled")
			return LogTransport{logger: logger}, nil
		}
		return NewSMTPTransport(cfg), nil
	case "ses":
		return NewSESTransport(ctx, cfg)
	case "", "none", "log":
		return LogTransport{logger: logger}, nil
	default:
		return nil, fmt.Errorf("unknown EMAIL_PROVIDER %q", cfg.Provider)
	}
}

// SMTPTransport sends through an SMTP relay such as Gmail.
type SMTPTransport struct {
	cfg    config.EmailConfig
	once   sync.Once
	dialer *gomail.Dialer
}

// NewSMTPTransport builds the transport; the dialer is created on first send.
func NewSMTPTransport(cfg config.EmailConfig) *SMTPTransport {
	return &SMTPTransport{cfg: cfg}
}

func (t *SMTPTransport) dial() *gomail.Dialer {
	t.once.Do(func() {
		t.dialer = gomail.NewDialer(t.cfg.SMTPHost, t.cfg.SMTPPort, t.cfg.SMTPUsername, t.cfg.SMTPPassword)
	})
	return t.dialer
}

// Send delivers msg as multipart text + HTML.
func (t *SMTPTransport) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetAddressHeader("From", t.from(), t.cfg.FromName)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Text)
	m.AddAlternative("text/html", msg.HTML)

	if err := t.dial().DialAndSend(m); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func (t *SMTPTransport) from() string {
	if t.cfg.FromAddress != "" {
		return t.cfg.FromAddress
	}
	return t.cfg.SMTPUsername
}

// SESTransport sends through Amazon SES v2.
type SESTransport struct {
	client   *sesv2.Client
	from     string
	fromName string
}

// NewSESTransport loads AWS config, preferring static keys when provided.
func NewSESTransport(ctx context.Context, cfg config.EmailConfig) (*SESTransport, error) {
	if cfg.FromAddress == "" {
		return nil, errors.New("EMAIL_FROM_ADDRESS is required for SES")
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.SESRegion)}
	if cfg.SESAccessKey != "" && cfg.SESSecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.SESAccessKey, cfg.SESSecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &SESTransport{client: sesv2.NewFromConfig(awsCfg), from: cfg.FromAddress, fromName: cfg.FromName}, nil
}

// Send delivers msg with SendEmail.
func (t *SESTransport) Send(ctx context.Context, msg Message) error {
	from := t.from
	if t.fromName != "" {
		from = fmt.Sprintf("%s <%s>", t.fromName, t.from)
	}
	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(from),
		Destination:      &types.Destination{ToAddresses: []string{msg.To}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(msg.HTML), Charset: aws.String("UTF-8")},
					Text: &types.Content{Data: aws.String(msg.Text), Charset: aws.String("UTF-8")},
				},
			},
		},
	}
	if _, err := t.client.SendEmail(ctx, input); err != nil {
		return fmt.Errorf("ses send: %w", err)
	}
	return nil
}

// LogTransport records the message and reports it as undelivered.
type LogTransport struct {
	logger *zap.Logger
}

func (t LogTransport) Send(_ context.Context, msg Message) error {
	if t.logger != nil {
		t.logger.Debug("email transport disabled; dropping message",
			observability.RedactEmail(msg.To),
			zap.String("subject", msg.Subject))
	}
	return ErrTransportDisabled
}
