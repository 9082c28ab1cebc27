package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"

	"github.com/JakeFAU/fetcher/internal/fetcher"
)

// PubSubConfig names the topic results are published to.
type PubSubConfig struct {
	ProjectID string
	TopicID   string
}

// PubSub publishes one message per result.
type PubSub struct {
	client *pubsub.Client
	topic  *pubsub.Topic
}

// NewPubSub connects to Pub/Sub and verifies the topic exists.
func NewPubSub(ctx context.Context, cfg PubSubConfig, opts ...option.ClientOption) (*PubSub, error) {
	if cfg.ProjectID == "" || cfg.TopicID == "" {
		return nil, errors.New("sink.pubsub.project_id and sink.pubsub.topic_id are required")
	}
	client, err := pubsub.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	p, err := NewPubSubWithClient(ctx, client, cfg.TopicID)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return p, nil
}

// NewPubSubWithClient builds a sink over an existing client. The caller keeps
// ownership of client only if this returns an error.
func NewPubSubWithClient(ctx context.Context, client *pubsub.Client, topicID string) (*PubSub, error) {
	topic := client.Topic(topicID)
	exists, err := topic.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("check pubsub topic %q: %w", topicID, err)
	}
	if !exists {
		return nil, fmt.Errorf("pubsub topic %q does not exist", topicID)
	}
	return &PubSub{client: client, topic: topic}, nil
}

// Write publishes every result and waits for the server to acknowledge each.
func (p *PubSub) Write(ctx context.Context, results []fetcher.Result) error {
	pending := make([]*pubsub.PublishResult, 0, len(results))
	for _, res := range results {
		data, err := json.Marshal(res)
		if err != nil {
			return fmt.Errorf("marshal result %s: %w", res.JobID, err)
		}
		pending = append(pending, p.topic.Publish(ctx, &pubsub.Message{
			Data: data,
			Attributes: map[string]string{
				"job_id":     res.JobID,
				"successful": strconv.FormatBool(res.Successful),
			},
		}))
	}
	var errs []error
	for i, r := range pending {
		if _, err := r.Get(ctx); err != nil {
			errs = append(errs, fmt.Errorf("publish result %s: %w", results[i].JobID, err))
		}
	}
	return errors.Join(errs...)
}

// Close flushes pending messages and closes the client.
func (p *PubSub) Close() error {
	p.topic.Stop()
	if err := p.client.Close(); err != nil {
		return fmt.Errorf("close pubsub client: %w", err)
	}
	return nil
}
