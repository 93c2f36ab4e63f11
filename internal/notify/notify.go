// Package notify fans cue lifecycle events out to external channels so an
// operator hears about pending requests without watching the console.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
	"github.com/slack-go/slack"
)

// Event types published to notifiers.
const (
	EventCreated   = "cue.created"
	EventCompleted = "cue.completed"
	EventCancelled = "cue.cancelled"
)

// Event describes one lifecycle transition of a cue request.
type Event struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id"`
	AgentID   string `json:"agent_id"`
	Prompt    string `json:"prompt,omitempty"`
	At        string `json:"at"`
}

// Notifier delivers an event to one external channel.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// --- Slack ---

// SlackNotifier posts events as messages to a Slack channel.
type SlackNotifier struct {
	client  *slack.Client
	channel string
}

func NewSlackNotifier(token, channel string) *SlackNotifier {
	return &SlackNotifier{client: slack.New(token), channel: channel}
}

func (n *SlackNotifier) Notify(ctx context.Context, ev Event) error {
	var text string
	switch ev.Type {
	case EventCreated:
		text = fmt.Sprintf("🔔 %s is waiting for input: %s", ev.AgentID, ev.Prompt)
	case EventCompleted:
		text = fmt.Sprintf("✅ Answered %s (request %s)", ev.AgentID, ev.RequestID)
	case EventCancelled:
		text = fmt.Sprintf("🚫 Cancelled request %s from %s", ev.RequestID, ev.AgentID)
	default:
		text = fmt.Sprintf("%s: %s", ev.Type, ev.RequestID)
	}
	_, _, err := n.client.PostMessageContext(ctx, n.channel, slack.MsgOptionText(text, false))
	if err != nil {
		return fmt.Errorf("slack notify: %w", err)
	}
	return nil
}

// --- Kafka ---

// KafkaPublisher writes events to a Kafka topic, keyed by request id so
// one request's transitions land on one partition in order.
type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.Hash{},
		},
	}
}

func (p *KafkaPublisher) Notify(ctx context.Context, ev Event) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("kafka notify: %w", err)
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.RequestID),
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("kafka notify: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
