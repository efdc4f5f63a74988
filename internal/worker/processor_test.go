package worker_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ntugo/ntugo/internal/mail"
	"github.com/ntugo/ntugo/internal/worker"
)

type stubMailer struct {
	sent     []mail.Message
	err      error
	deadline bool
}

func (m *stubMailer) Send(ctx context.Context, msg mail.Message) error {
	_, m.deadline = ctx.Deadline()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func TestDefaultConfig(t *testing.T) {
	cfg := worker.DefaultConfig()

	assert.Equal(t, 10, cfg.MaxOutstandingMessages)
	assert.Equal(t, 10*time.Minute, cfg.MaxExtension)
	assert.Equal(t, 30*time.Second, cfg.SendTimeout)
	assert.Equal(t, 15*time.Minute, cfg.MaxAge)
}

func TestConfig_Expired(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	cfg := worker.Config{MaxAge: 10 * time.Minute}
	assert.False(t, cfg.Expired(now.Add(-9*time.Minute), now))
	assert.True(t, cfg.Expired(now.Add(-11*time.Minute), now))
	assert.False(t, cfg.Expired(time.Time{}, now), "missing publish time is delivered")

	var zero worker.Config
	assert.False(t, zero.Expired(now.Add(-14*time.Minute), now))
	assert.True(t, zero.Expired(now.Add(-16*time.Minute), now))
}

func TestProcessor_SendsMail(t *testing.T) {
	mailer := &stubMailer{}
	p := worker.NewProcessor(mailer, time.Second, zerolog.Nop())

	data, err := mail.EncodeJob(mail.Message{To: "a@ntu.edu.tw", Subject: "NTUGo", Text: "123456"})
	require.NoError(t, err)

	assert.Equal(t, worker.Ack, p.Process(context.Background(), data))
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "a@ntu.edu.tw", mailer.sent[0].To)
	assert.True(t, mailer.deadline)
}

func TestProcessor_NacksDeliveryFailure(t *testing.T) {
	mailer := &stubMailer{err: errors.New("smtp: 421 try again later")}
	p := worker.NewProcessor(mailer, 0, zerolog.Nop())

	data, err := mail.EncodeJob(mail.Message{To: "a@ntu.edu.tw", Subject: "NTUGo", Text: "123456"})
	require.NoError(t, err)

	assert.Equal(t, worker.Nack, p.Process(context.Background(), data))
}

func TestProcessor_AcksWhatCannotSucceed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "garbage", data: "not json"},
		{name: "unknown job", data: `{"job_type":"provider_refresh"}`},
		{name: "health check", data: `{"job_type":"health_check"}`},
		{name: "missing mail", data: `{"job_type":"send_mail"}`},
		{name: "no recipient", data: `{"job_type":"send_mail","mail":{"subject":"s","text":"t"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mailer := &stubMailer{}
			p := worker.NewProcessor(mailer, time.Second, zerolog.Nop())

			assert.Equal(t, worker.Ack, p.Process(context.Background(), []byte(tt.data)))
			assert.Empty(t, mailer.sent)
		})
	}
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "ack", worker.Ack.String())
	assert.Equal(t, "nack", worker.Nack.String())
}
