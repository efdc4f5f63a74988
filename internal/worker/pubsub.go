package worker

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// PubSubHandler feeds subscription messages to a Processor.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	processor        *Processor
	config           Config
	logger           zerolog.Logger
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg Config, processor *Processor, logger zerolog.Logger) (*PubSubHandler, error) {
	cfg = cfg.withDefaults()

	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)
	subscriber.ReceiveSettings.MaxOutstandingMessages = cfg.MaxOutstandingMessages
	subscriber.ReceiveSettings.MaxExtension = cfg.MaxExtension

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		processor:        processor,
		config:           cfg,
		logger:           logger,
	}, nil
}

// Start blocks processing messages until ctx is cancelled.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		h.handleMessage(ctx, msg)
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

func (h *PubSubHandler) handleMessage(ctx context.Context, msg *pubsub.Message) {
	startTime := time.Now()

	logger := h.logger.With().
		Str("message_id", msg.ID).
		Str("job_type", msg.Attributes["job_type"]).
		Time("publish_time", msg.PublishTime).
		Logger()
	if msg.DeliveryAttempt != nil {
		logger = logger.With().Int("delivery_attempt", *msg.DeliveryAttempt).Logger()
	}

	if h.config.Expired(msg.PublishTime, startTime) {
		logger.Warn().Dur("age", startTime.Sub(msg.PublishTime)).Msg("dropping expired mail job")
		msg.Ack()
		return
	}

	outcome := h.processor.Process(logger.WithContext(ctx), msg.Data)
	logger.Info().
		Stringer("outcome", outcome).
		Dur("duration", time.Since(startTime)).
		Msg("message handled")

	if outcome == Nack {
		msg.Nack()
		return
	}
	msg.Ack()
}
