package notify

import (
	"context"
	"testing"

	"github.com/ghsales/discount-engine/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var sample = domain.Notification{
	VersionID:       4,
	FirstActivation: false,
	Subject:         "Discount changes: version #4 replaces #3",
	HTMLBody:        "<p>changes</p>",
}

func TestSMTPSenderMessage(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{
		Host:       "localhost",
		Port:       1025,
		From:       "discounts@example.com",
		Recipients: []string{"sales@example.com", "heads@example.com"},
	}, nil)

	msg, err := s.message(sample)
	require.NoError(t, err)
	assert.Equal(t, []string{sample.Subject}, msg.GetGenHeader(mail.HeaderSubject))
	assert.Len(t, msg.GetToString(), 2)
}

func TestSMTPSenderRejectsBadAddress(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Host: "localhost", From: "not an address", Recipients: []string{"sales@example.com"}}, zap.NewNop())

	_, err := s.message(sample)
	assert.Error(t, err)
}

func TestSMTPSenderWithoutRecipients(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Host: "localhost", From: "discounts@example.com"}, zap.NewNop())

	assert.NoError(t, s.Send(context.Background(), sample))
}

func TestLogSender(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	s := NewLogSender(zap.New(core))

	require.NoError(t, s.Send(context.Background(), sample))
	entries := logs.FilterField(zap.Int64("version_id", 4)).All()
	require.Len(t, entries, 1)
	assert.Equal(t, "notification", entries[0].Message)
}

func TestRecorder(t *testing.T) {
	var r Recorder
	require.NoError(t, r.Send(context.Background(), sample))

	sent := r.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, sample, sent[0])
}
