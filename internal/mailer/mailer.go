// Package mailer delivers rendered reports through an authenticated SMTP relay.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethpandaops/tracker-probe/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/wneessen/go-mail"
)

var (
	// ErrDelivery is returned when the relay rejects or times out a message.
	ErrDelivery = errors.New("mail delivery failed")

	errNoRecipient = errors.New("no recipient")
	errNoSender    = errors.New("no sender address")
	errNoRelay     = errors.New("no smtp host configured")
)

const sendTimeout = 30 * time.Second

// DeliveryResult describes the outcome of one send.
type DeliveryResult struct {
	Success   bool   `json:"success"`
	MessageID string `json:"messageId,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Sender delivers an HTML body to a recipient.
type Sender interface {
	Send(ctx context.Context, html, subject, recipient string) (DeliveryResult, error)
}

// SMTPSender sends mail over SMTP with PLAIN auth.
type SMTPSender struct {
	log      logrus.FieldLogger
	host     string
	port     int
	username string
	password string
	from     string
}

var _ Sender = (*SMTPSender)(nil)

// NewSMTPSender builds a sender from the relay settings in cfg.
func NewSMTPSender(log logrus.FieldLogger, cfg *config.AppConfig) (*SMTPSender, error) {
	if cfg.SMTPHost == "" {
		return nil, errNoRelay
	}

	from := cfg.MailFrom
	if from == "" {
		from = cfg.SMTPUsername
	}

	if from == "" {
		return nil, errNoSender
	}

	return &SMTPSender{
		log:      log.WithField("component", "mailer"),
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		username: cfg.SMTPUsername,
		password: cfg.SMTPPassword,
		from:     from,
	}, nil
}

// Send delivers one message. A failed delivery is returned both in the
// result and as an error wrapping ErrDelivery.
func (s *SMTPSender) Send(ctx context.Context, html, subject, recipient string) (DeliveryResult, error) {
	msg, err := s.message(html, subject, recipient)
	if err != nil {
		return failed(err)
	}

	client, err := mail.NewClient(s.host, s.clientOptions()...)
	if err != nil {
		return failed(fmt.Errorf("creating smtp client: %w", err))
	}

	log := s.log.WithFields(logrus.Fields{
		"relay":     fmt.Sprintf("%s:%d", s.host, s.port),
		"recipient": recipient,
	})

	log.Debug("Sending report")

	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	if err := client.DialAndSendWithContext(sendCtx, msg); err != nil {
		log.WithError(err).Error("Report delivery failed")

		return failed(err)
	}

	id := msg.GetMessageID()
	log.WithField("message_id", id).Info("Report delivered")

	return DeliveryResult{Success: true, MessageID: id}, nil
}

func (s *SMTPSender) message(html, subject, recipient string) (*mail.Msg, error) {
	recipients := splitRecipients(recipient)
	if len(recipients) == 0 {
		return nil, errNoRecipient
	}

	msg := mail.NewMsg()
	if err := msg.From(s.from); err != nil {
		return nil, fmt.Errorf("setting sender: %w", err)
	}

	if err := msg.To(recipients...); err != nil {
		return nil, fmt.Errorf("setting recipient: %w", err)
	}

	msg.Subject(subject)
	msg.SetDate()
	msg.SetMessageID()
	msg.SetBodyString(mail.TypeTextHTML, html)

	return msg, nil
}

func (s *SMTPSender) clientOptions() []mail.Option {
	opts := []mail.Option{
		mail.WithPort(s.port),
		mail.WithTimeout(sendTimeout),
	}

	if s.username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.username),
			mail.WithPassword(s.password),
		)
	}

	if s.port == 465 {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	}

	return opts
}

func failed(err error) (DeliveryResult, error) {
	return DeliveryResult{Error: err.Error()}, fmt.Errorf("%w: %w", ErrDelivery, err)
}

// splitRecipients accepts a comma or semicolon separated address list.
func splitRecipients(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' })

	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}

	return out
}

// NopSender logs messages instead of sending them.
type NopSender struct {
	log logrus.FieldLogger
}

var _ Sender = (*NopSender)(nil)

// NewNopSender returns a dry-run sender.
func NewNopSender(log logrus.FieldLogger) *NopSender {
	return &NopSender{log: log.WithField("component", "mailer")}
}

// Send logs the message and reports success.
func (n *NopSender) Send(_ context.Context, html, subject, recipient string) (DeliveryResult, error) {
	n.log.WithFields(logrus.Fields{
		"subject":   subject,
		"recipient": recipient,
		"bytes":     len(html),
	}).Info("Dry run, report not sent")

	return DeliveryResult{Success: true}, nil
}
