// Package pubsub provides the Google Pub/Sub queue transport for
// distributed crawl execution. Delivery is at-least-once; the worker's
// idempotent storage keys make re-delivery safe.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"

	"github.com/feedlake/social-crawler/internal/crawl"
)

// Config identifies the topic and subscription to use.
type Config struct {
	ProjectID      string `mapstructure:"project_id"`
	TopicID        string `mapstructure:"topic_id"`
	SubscriptionID string `mapstructure:"subscription_id"`
}

// Queue bridges the crawl.Queue contract onto a Pub/Sub topic and
// subscription. Dequeue lazily starts a receive loop that feeds an
// internal channel; if the loop dies, pending and future Dequeue calls
// fail instead of blocking forever.
type Queue struct {
	client *pubsub.Client
	topic  *pubsub.Topic
	subID  string
	logger *zap.Logger

	items     chan crawl.QueueItem
	startOnce sync.Once
	done      chan struct{}
	recvErr   error
}

// New connects to Pub/Sub and ensures the topic and subscription exist,
// creating them on first use.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Queue, error) {
	if cfg.ProjectID == "" || cfg.TopicID == "" || cfg.SubscriptionID == "" {
		return nil, fmt.Errorf("pubsub project, topic and subscription are required")
	}
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	topic, err := ensureTopic(ctx, client, cfg.TopicID)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	if err := ensureSubscription(ctx, client, cfg.SubscriptionID, topic); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &Queue{
		client: client,
		topic:  topic,
		subID:  cfg.SubscriptionID,
		logger: logger,
		items:  make(chan crawl.QueueItem),
		done:   make(chan struct{}),
	}, nil
}

func ensureTopic(ctx context.Context, client *pubsub.Client, topicID string) (*pubsub.Topic, error) {
	topic := client.Topic(topicID)
	exists, err := topic.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("check topic %s: %w", topicID, err)
	}
	if !exists {
		topic, err = client.CreateTopic(ctx, topicID)
		if err != nil {
			return nil, fmt.Errorf("create topic %s: %w", topicID, err)
		}
	}
	return topic, nil
}

func ensureSubscription(ctx context.Context, client *pubsub.Client, subID string, topic *pubsub.Topic) error {
	sub := client.Subscription(subID)
	exists, err := sub.Exists(ctx)
	if err != nil {
		return fmt.Errorf("check subscription %s: %w", subID, err)
	}
	if !exists {
		if _, err := client.CreateSubscription(ctx, subID, pubsub.SubscriptionConfig{Topic: topic}); err != nil {
			return fmt.Errorf("create subscription %s: %w", subID, err)
		}
	}
	return nil
}

// Enqueue publishes the item and waits for the server acknowledgment so
// dispatch failures surface to the caller.
func (q *Queue) Enqueue(ctx context.Context, item crawl.QueueItem) error {
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("marshal queue item: %w", err)
	}
	result := q.topic.Publish(ctx, &pubsub.Message{Data: data})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish queue item: %w", err)
	}
	return nil
}

// Dequeue returns the next received item. The first call starts the
// subscription receive loop; messages are acknowledged on handoff, with
// re-delivery covered by idempotent storage keys. If the receive loop
// terminates, Dequeue returns its error rather than blocking forever.
func (q *Queue) Dequeue(ctx context.Context) (crawl.QueueItem, error) {
	q.startOnce.Do(func() {
		go q.receive(ctx)
	})
	select {
	case <-ctx.Done():
		return crawl.QueueItem{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case item := <-q.items:
		return item, nil
	case <-q.done:
		if q.recvErr != nil {
			return crawl.QueueItem{}, fmt.Errorf("pubsub receive stopped: %w", q.recvErr)
		}
		return crawl.QueueItem{}, fmt.Errorf("pubsub receive stopped")
	}
}

func (q *Queue) receive(ctx context.Context) {
	sub := q.client.Subscription(q.subID)
	err := sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		var item crawl.QueueItem
		if err := json.Unmarshal(msg.Data, &item); err != nil {
			q.logger.Error("drop malformed queue message", zap.Error(err))
			msg.Ack()
			return
		}
		select {
		case <-ctx.Done():
			msg.Nack()
		case q.items <- item:
			msg.Ack()
		}
	})
	if err != nil && ctx.Err() == nil {
		q.logger.Error("pubsub receive stopped", zap.Error(err))
	}
	q.recvErr = err
	close(q.done)
}

// Close stops the publisher and closes the client.
func (q *Queue) Close() error {
	q.topic.Stop()
	if err := q.client.Close(); err != nil {
		return fmt.Errorf("close pubsub client: %w", err)
	}
	return nil
}
