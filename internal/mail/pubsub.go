package mail

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub/v2"
)

// Job types carried on the mail topic.
const (
	JobSendMail    = "send_mail"
	JobHealthCheck = "health_check"
)

// Job is the Pub/Sub payload consumed by the worker.
type Job struct {
	JobType string   `json:"job_type"`
	Mail    *Message `json:"mail,omitempty"`
}

// EncodeJob wraps msg in a send_mail job.
func EncodeJob(msg Message) ([]byte, error) {
	return json.Marshal(Job{JobType: JobSendMail, Mail: &msg})
}

// DecodeJob parses a job payload.
func DecodeJob(data []byte) (Job, error) {
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return Job{}, fmt.Errorf("decoding mail job: %w", err)
	}
	return job, nil
}

// PubSubMailer queues messages on a topic for the worker to deliver.
type PubSubMailer struct {
	client    *pubsub.Client
	publisher *pubsub.Publisher
}

// NewPubSubMailer creates a publisher for topic in projectID.
func NewPubSubMailer(ctx context.Context, projectID, topic string) (*PubSubMailer, error) {
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	return &PubSubMailer{
		client:    client,
		publisher: client.Publisher(topic),
	}, nil
}

// Send publishes msg and waits for the server to accept it.
func (m *PubSubMailer) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	data, err := EncodeJob(msg)
	if err != nil {
		return err
	}

	result := m.publisher.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: map[string]string{"job_type": JobSendMail},
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publishing mail job: %w", err)
	}
	return nil
}

// Close flushes pending publishes and closes the client.
func (m *PubSubMailer) Close() error {
	m.publisher.Stop()
	return m.client.Close()
}
