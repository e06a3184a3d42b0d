package events

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"careslot/backend/internal/domain"
	"careslot/backend/internal/store"
)

const (
	defaultPollEvery    = 2 * time.Second
	defaultBatchSize    = 50
	defaultWriteTimeout = 10 * time.Second
)

// MessageWriter is the subset of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type relayRecorder interface {
	ObserveRelayed(eventType, status string)
}

type Publisher struct {
	source    store.OutboxSource
	log       *slog.Logger
	brokers   []string
	pollEvery    time.Duration
	batchSize    int
	writeTimeout time.Duration
	metrics      relayRecorder

	newWriter func(brokers []string) MessageWriter
}

type PublisherConfig struct {
	Brokers   string
	PollEvery time.Duration
	BatchSize int
	// WriteTimeout bounds each batch write; the batch's row locks are held
	// until it returns.
	WriteTimeout time.Duration
}

func NewPublisher(source store.OutboxSource, log *slog.Logger, cfg PublisherConfig, metrics relayRecorder) *Publisher {
	if cfg.PollEvery <= 0 {
		cfg.PollEvery = defaultPollEvery
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &Publisher{
		source:       source,
		log:          log.With(slog.String("component", "outbox_publisher")),
		brokers:      SplitBrokers(cfg.Brokers),
		pollEvery:    cfg.PollEvery,
		batchSize:    cfg.BatchSize,
		writeTimeout: cfg.WriteTimeout,
		metrics:      metrics,
		newWriter:    newKafkaWriter,
	}
}

func newKafkaWriter(brokers []string) MessageWriter {
	return &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Balancer: &kafka.Hash{},
	}
}

// Run relays outbox rows until ctx is done. It returns immediately when no
// brokers are configured.
func (p *Publisher) Run(ctx context.Context) {
	if len(p.brokers) == 0 {
		p.log.Warn("outbox publisher disabled (no kafka brokers configured)")
		return
	}

	writer := p.newWriter(p.brokers)
	defer func() {
		if err := writer.Close(); err != nil {
			p.log.Warn("kafka writer close failed", slog.Any("err", err))
		}
	}()

	p.log.Info("outbox publisher started", slog.Int("brokers", len(p.brokers)), slog.Duration("poll_every", p.pollEvery))

	ticker := time.NewTicker(p.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := p.PublishBatch(ctx, writer)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				p.log.Error("outbox publish failed", slog.Any("err", err))
				continue
			}
			if n > 0 {
				p.log.Debug("outbox batch published", slog.Int("count", n))
			}
		}
	}
}

// PublishBatch writes one batch of unpublished events. Rows stay unpublished
// if any write fails or outlasts the write timeout, so delivery is
// at-least-once.
func (p *Publisher) PublishBatch(ctx context.Context, writer MessageWriter) (int, error) {
	return p.source.RelayBatch(ctx, p.batchSize, func(ctx context.Context, events []domain.OutboxEvent) error {
		msgs := make([]kafka.Message, 0, len(events))
		for _, ev := range events {
			msgs = append(msgs, Message(ev))
		}
		wctx, cancel := context.WithTimeout(ctx, p.writeTimeout)
		defer cancel()
		if err := writer.WriteMessages(wctx, msgs...); err != nil {
			for _, ev := range events {
				p.observe(ev.EventType, "error")
			}
			return err
		}
		for _, ev := range events {
			p.observe(ev.EventType, "ok")
		}
		return nil
	})
}

func (p *Publisher) observe(eventType domain.EventType, status string) {
	if p.metrics != nil {
		p.metrics.ObserveRelayed(string(eventType), status)
	}
}

// Message maps an outbox row onto a kafka message. The topic is the event type
// and the key is the appointment id so that one appointment's events stay
// ordered within a partition.
func Message(ev domain.OutboxEvent) kafka.Message {
	return kafka.Message{
		Topic: string(ev.EventType),
		Key:   []byte(ev.AggregateID.String()),
		Value: ev.Payload,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(ev.EventID.String())},
			{Key: "event_type", Value: []byte(ev.EventType)},
		},
	}
}

func SplitBrokers(raw string) []string {
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
