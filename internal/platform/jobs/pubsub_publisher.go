package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"

	"github.com/launchpad/api/internal/domain"
)

// ProductEventMessage is the JSON payload published for product lifecycle events.
type ProductEventMessage struct {
	Type       string    `json:"type"`
	OwnerID    string    `json:"ownerId"`
	ProductID  string    `json:"productId"`
	PublicURL  string    `json:"publicUrl,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// PubSubProductEventPublisher publishes product events to a Pub/Sub topic.
type PubSubProductEventPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubProductEventPublisher constructs a Pub/Sub backed product event publisher.
func NewPubSubProductEventPublisher(topic *pubsub.Topic) (*PubSubProductEventPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub product publisher: topic is required")
	}
	return &PubSubProductEventPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// PublishProductEvent publishes the event and waits for the server-assigned message ID.
func (p *PubSubProductEventPublisher) PublishProductEvent(ctx context.Context, event domain.ProductEvent) (string, error) {
	if p == nil || p.topic == nil {
		return "", errors.New("pubsub product publisher: not initialised")
	}

	data, err := p.marshal(ProductEventMessage(event))
	if err != nil {
		return "", fmt.Errorf("marshal product event: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "eventType", event.Type)
	setAttr(attrs, "ownerId", event.OwnerID)
	setAttr(attrs, "productId", event.ProductID)

	msg := &pubsub.Message{Data: data, Attributes: attrs}
	if p.topic.EnableMessageOrdering {
		msg.OrderingKey = event.OwnerID
	}
	result := p.topic.Publish(ctx, msg)

	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish product event: %w", err)
	}
	return id, nil
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
