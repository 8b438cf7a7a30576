// Package events publishes interview activity to Kafka.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/javaboys/hunty/interview/internal/metrics"
)

// Default topics
const (
	DefaultTranscriptTopic = "interview.transcript.final"
	DefaultLifecycleTopic  = "interview.lifecycle"
)

// TranscriptEvent is a finalized subtitle line
type TranscriptEvent struct {
	InterviewID string    `json:"interviewId"`
	MeetingCode string    `json:"meetingCode"`
	Text        string    `json:"text"`
	FromMs      int64     `json:"fromMs"`
	ToMs        int64     `json:"toMs"`
	ReceivedAt  time.Time `json:"receivedAt"`
}

// LifecycleEvent records a session phase change
type LifecycleEvent struct {
	InterviewID string    `json:"interviewId"`
	MeetingCode string    `json:"meetingCode"`
	Status      string    `json:"status"`
	Reason      string    `json:"reason,omitempty"`
	At          time.Time `json:"at"`
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers         []string
	TranscriptTopic string
	LifecycleTopic  string
	ClientID        string
	Enabled         bool
}

// Publisher writes transcript and lifecycle events to separate topics.
// With Kafka disabled it only logs.
type Publisher struct {
	writerTranscript *kafka.Writer
	writerLifecycle  *kafka.Writer
	transcriptTopic  string
	lifecycleTopic   string
	clientID         string
	enabled          bool
	logger           *zap.Logger
}

// New creates a publisher. A nil config or one without brokers yields log-only mode.
func New(cfg *Config, logger *zap.Logger) *Publisher {
	if cfg == nil {
		logger.Info("Kafka disabled (nil config), using log-only mode")
		return &Publisher{logger: logger}
	}

	transcriptTopic := cfg.TranscriptTopic
	if transcriptTopic == "" {
		transcriptTopic = DefaultTranscriptTopic
	}
	lifecycleTopic := cfg.LifecycleTopic
	if lifecycleTopic == "" {
		lifecycleTopic = DefaultLifecycleTopic
	}

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		logger.Info("Kafka disabled, using log-only mode")
		return &Publisher{
			transcriptTopic: transcriptTopic,
			lifecycleTopic:  lifecycleTopic,
			clientID:        cfg.ClientID,
			logger:          logger,
		}
	}

	dialer := &kafka.Dialer{
		ClientID:  cfg.ClientID,
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	transport := &kafka.Transport{
		Dial:     dialer.DialFunc,
		ClientID: cfg.ClientID,
	}

	newWriter := func(topic string) *kafka.Writer {
		return &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 10 * time.Millisecond,
			WriteTimeout: 10 * time.Second,
			RequiredAcks: kafka.RequireOne,
			Transport:    transport,
		}
	}

	logger.Info("Kafka publisher initialized",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("transcriptTopic", transcriptTopic),
		zap.String("lifecycleTopic", lifecycleTopic))

	return &Publisher{
		writerTranscript: newWriter(transcriptTopic),
		writerLifecycle:  newWriter(lifecycleTopic),
		transcriptTopic:  transcriptTopic,
		lifecycleTopic:   lifecycleTopic,
		clientID:         cfg.ClientID,
		enabled:          true,
		logger:           logger,
	}
}

// Enabled reports whether events reach Kafka
func (p *Publisher) Enabled() bool { return p.enabled }

// PublishTranscript publishes a final subtitle keyed by interview id.
func (p *Publisher) PublishTranscript(ctx context.Context, event TranscriptEvent) error {
	return p.publish(ctx, p.writerTranscript, p.transcriptTopic, event.InterviewID, event)
}

// PublishLifecycle publishes a session phase change keyed by interview id.
func (p *Publisher) PublishLifecycle(ctx context.Context, event LifecycleEvent) error {
	return p.publish(ctx, p.writerLifecycle, p.lifecycleTopic, event.InterviewID, event)
}

func (p *Publisher) publish(ctx context.Context, writer *kafka.Writer, topic, key string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("Failed to marshal event", zap.String("topic", topic), zap.Error(err))
		metrics.EventsPublishedTotal.WithLabelValues("error").Inc()
		return err
	}

	p.logger.Debug("Publishing event",
		zap.String("topic", topic),
		zap.String("key", key),
		zap.ByteString("payload", payload))

	if !p.enabled || writer == nil {
		metrics.EventsPublishedTotal.WithLabelValues("logged").Inc()
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(topic)},
			{Key: "clientId", Value: []byte(p.clientID)},
		},
	}
	if err := writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to write to Kafka",
			zap.String("topic", topic),
			zap.String("key", key),
			zap.Error(err))
		metrics.EventsPublishedTotal.WithLabelValues("error").Inc()
		return err
	}

	metrics.EventsPublishedTotal.WithLabelValues("kafka").Inc()
	return nil
}

// Close closes both Kafka writers.
func (p *Publisher) Close() error {
	var err error
	if p.writerTranscript != nil {
		if e := p.writerTranscript.Close(); e != nil {
			p.logger.Error("Error closing transcript writer", zap.Error(e))
			err = e
		}
	}
	if p.writerLifecycle != nil {
		if e := p.writerLifecycle.Close(); e != nil {
			p.logger.Error("Error closing lifecycle writer", zap.Error(e))
			err = e
		}
	}
	return err
}
