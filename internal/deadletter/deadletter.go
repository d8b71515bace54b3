// Package deadletter makes the non-retryable drop path of a sink
// observable: each dropped event is published with the reason it could
// not be delivered.
package deadletter

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"sinkflow/internal/event"
	"sinkflow/internal/logging"
	"sinkflow/internal/telemetry"
)

type Publisher interface {
	Publish(ctx context.Context, ev event.ProfileEvent, reason string, cause error) error
	Close() error
}

// Nop discards records.
type Nop struct{}

func (Nop) Publish(context.Context, event.ProfileEvent, string, error) error { return nil }
func (Nop) Close() error                                                    { return nil }

// Record is the JSON value written for each dropped event.
type Record struct {
	Timestamp time.Time `json:"timestamp"`
	Stream    string    `json:"stream_id"`
	Reason    string    `json:"reason"`
	Error     string    `json:"error,omitempty"`
	Body      []byte    `json:"body"`
}

type Config struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	Acks    int16    `yaml:"required_acks"` // 0,1,-1
	Version string   `yaml:"version"`
}

// KafkaPublisher writes records asynchronously; delivery failures are
// logged and counted, never returned to the dispatcher.
type KafkaPublisher struct {
	topic string
	p     sarama.AsyncProducer
	wg    sync.WaitGroup
}

func NewKafkaPublisher(cfg Config) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		return nil, fmt.Errorf("deadletter: brokers and topic are required")
	}
	sc := sarama.NewConfig()
	if cfg.Version != "" {
		ver, err := sarama.ParseKafkaVersion(cfg.Version)
		if err != nil {
			return nil, err
		}
		sc.Version = ver
	}
	sc.Producer.RequiredAcks = sarama.RequiredAcks(cfg.Acks)
	sc.Producer.Return.Errors = true
	p, err := sarama.NewAsyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, err
	}
	return newKafkaPublisher(cfg.Topic, p), nil
}

func newKafkaPublisher(topic string, p sarama.AsyncProducer) *KafkaPublisher {
	k := &KafkaPublisher{topic: topic, p: p}
	k.wg.Add(1)
	go func() {
		defer k.wg.Done()
		for perr := range p.Errors() {
			telemetry.DeadLetterErrors.Inc()
			logging.L().Error("dead-letter publish failed", "topic", topic, "err", perr.Err)
		}
	}()
	return k
}

func (k *KafkaPublisher) Publish(ctx context.Context, ev event.ProfileEvent, reason string, cause error) error {
	rec := Record{
		Timestamp: time.Now().UTC(),
		Stream:    ev.StreamID(),
		Reason:    reason,
		Body:      ev.Body(),
	}
	if cause != nil {
		rec.Error = cause.Error()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	msg := &sarama.ProducerMessage{
		Topic:   k.topic,
		Key:     sarama.StringEncoder(rec.Stream),
		Value:   sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{{Key: []byte("reason"), Value: []byte(reason)}},
	}
	select {
	case k.p.Input() <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (k *KafkaPublisher) Close() error {
	err := k.p.Close()
	k.wg.Wait()
	return err
}
