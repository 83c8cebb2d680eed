package mailer

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/ethpandaops/tracker-probe/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubject(t *testing.T) {
	london, err := time.LoadLocation("Europe/London")
	require.NoError(t, err)

	at := time.Date(2026, 7, 1, 16, 5, 0, 0, time.UTC)

	tests := []struct {
		name     string
		prefix   string
		category string
		loc      *time.Location
		want     string
	}{
		{name: "london summer time", prefix: "PSG", category: "NFL", loc: london, want: "PSG NFL Report - 01 Jul 2026 17:05 BST"},
		{name: "utc default", prefix: "Live Tracker", category: "Football", want: "Live Tracker Football Report - 01 Jul 2026 16:05 UTC"},
		{name: "no category", prefix: "Live Tracker", loc: time.UTC, want: "Live Tracker Report - 01 Jul 2026 16:05 UTC"},
		{name: "no prefix", category: "Tennis", loc: time.UTC, want: "Tennis Report - 01 Jul 2026 16:05 UTC"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Subject(tt.prefix, tt.category, at, tt.loc))
		})
	}
}

func TestNewSMTPSender(t *testing.T) {
	log, _ := test.NewNullLogger()

	_, err := NewSMTPSender(log, &config.AppConfig{MailFrom: "a@example.com"})
	require.ErrorIs(t, err, errNoRelay)

	_, err = NewSMTPSender(log, &config.AppConfig{SMTPHost: "smtp.example.com"})
	require.ErrorIs(t, err, errNoSender)

	s, err := NewSMTPSender(log, &config.AppConfig{SMTPHost: "smtp.example.com", SMTPPort: 587, SMTPUsername: "bot@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "bot@example.com", s.from)
}

func TestSMTPSender_Message(t *testing.T) {
	log, _ := test.NewNullLogger()

	s, err := NewSMTPSender(log, &config.AppConfig{SMTPHost: "smtp.example.com", SMTPPort: 587, MailFrom: "reports@example.com"})
	require.NoError(t, err)

	_, err = s.message("<p>hi</p>", "subject", " , ")
	require.ErrorIs(t, err, errNoRecipient)

	msg, err := s.message("<p>hello report</p>", "Live Tracker Report", "ops@example.com; qa@example.com")
	require.NoError(t, err)

	assert.Len(t, msg.GetToString(), 2)
	assert.NotEmpty(t, msg.GetMessageID())

	var buf bytes.Buffer

	_, err = msg.WriteTo(&buf)
	require.NoError(t, err)

	raw := buf.String()
	assert.Contains(t, raw, "Subject: Live Tracker Report")
	assert.Contains(t, raw, "text/html")
	assert.Contains(t, raw, "hello report")
}

func TestSMTPSender_DeliveryFailure(t *testing.T) {
	log, _ := test.NewNullLogger()

	s, err := NewSMTPSender(log, &config.AppConfig{SMTPHost: "127.0.0.1", SMTPPort: 1, MailFrom: "reports@example.com"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	res, err := s.Send(ctx, "<p>x</p>", "subject", "ops@example.com")
	require.ErrorIs(t, err, ErrDelivery)
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Error)
	assert.Empty(t, res.MessageID)
}

func TestSMTPSender_NoRecipient(t *testing.T) {
	log, _ := test.NewNullLogger()

	s, err := NewSMTPSender(log, &config.AppConfig{SMTPHost: "smtp.example.com", SMTPPort: 587, MailFrom: "reports@example.com"})
	require.NoError(t, err)

	res, err := s.Send(context.Background(), "<p>x</p>", "subject", "")
	require.ErrorIs(t, err, ErrDelivery)
	require.ErrorIs(t, err, errNoRecipient)
	assert.False(t, res.Success)
}

func TestNopSender(t *testing.T) {
	log, hook := test.NewNullLogger()

	res, err := NewNopSender(log).Send(context.Background(), strings.Repeat("x", 42), "subject", "ops@example.com")
	require.NoError(t, err)
	assert.True(t, res.Success)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.InfoLevel, entry.Level)
	assert.Equal(t, 42, entry.Data["bytes"])
	assert.Equal(t, "mailer", entry.Data["component"])
}

func TestSplitRecipients(t *testing.T) {
	assert.Equal(t, []string{"a@x.com", "b@x.com", "c@x.com"}, splitRecipients("a@x.com, b@x.com;c@x.com,"))
	assert.Empty(t, splitRecipients(""))
}
