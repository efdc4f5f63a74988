package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ntugo/ntugo/internal/mail"
)

// Outcome tells the consumer how to settle a message.
type Outcome int

const (
	// Ack removes the message from the subscription.
	Ack Outcome = iota
	// Nack asks Pub/Sub to redeliver the message.
	Nack
)

func (o Outcome) String() string {
	if o == Nack {
		return "nack"
	}
	return "ack"
}

// Processor runs mail jobs against a Mailer.
type Processor struct {
	mailer      mail.Mailer
	sendTimeout time.Duration
	logger      zerolog.Logger
}

// NewProcessor creates a processor that delivers through mailer.
func NewProcessor(mailer mail.Mailer, sendTimeout time.Duration, logger zerolog.Logger) *Processor {
	if sendTimeout <= 0 {
		sendTimeout = DefaultConfig().SendTimeout
	}
	return &Processor{mailer: mailer, sendTimeout: sendTimeout, logger: logger}
}

// Process handles one payload. Payloads that can never succeed are acked so
// they are not redelivered; delivery failures are nacked.
func (p *Processor) Process(ctx context.Context, data []byte) Outcome {
	job, err := mail.DecodeJob(data)
	if err != nil {
		p.logger.Error().Err(err).Msg("failed to parse message")
		return Ack
	}

	switch job.JobType {
	case mail.JobSendMail:
		err = p.sendMail(ctx, job)
	case mail.JobHealthCheck:
		p.logger.Debug().Msg("health check passed")
		return Ack
	default:
		p.logger.Warn().Str("job_type", job.JobType).Msg("unknown job type")
		return Ack
	}

	if errors.Is(err, mail.ErrInvalidMessage) {
		p.logger.Error().Err(err).Msg("dropping undeliverable mail")
		return Ack
	}
	if err != nil {
		p.logger.Error().Err(err).Msg("mail delivery failed")
		return Nack
	}
	return Ack
}

func (p *Processor) sendMail(ctx context.Context, job mail.Job) error {
	if job.Mail == nil {
		return fmt.Errorf("%w: job has no mail", mail.ErrInvalidMessage)
	}
	if err := job.Mail.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, p.sendTimeout)
	defer cancel()

	return p.mailer.Send(ctx, *job.Mail)
}
