package kafka

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/IBM/sarama"

	"sinkflow/internal/event"
	"sinkflow/internal/logging"
	"sinkflow/internal/telemetry"
)

type SaramaDriver struct {
	cfg   Config
	cl    sarama.Client
	group sarama.ConsumerGroup
}

func (d *SaramaDriver) Configure(config Config) error {
	d.cfg = config
	if len(config.Brokers) == 0 || len(config.Topics) == 0 || config.GroupID == "" {
		return fmt.Errorf("kafka: brokers, topics and group_id are required")
	}

	ver, err := sarama.ParseKafkaVersion(config.Version)
	if err != nil {
		return err
	}
	sc := sarama.NewConfig()
	sc.Version = ver
	sc.Consumer.Return.Errors = true
	sc.Consumer.Offsets.AutoCommit.Enable = true
	sc.Consumer.Offsets.AutoCommit.Interval = config.Checkpoint.CommitInt
	if config.TLSEn {
		sc.Net.TLS.Enable = true
	}
	if config.SASLUser != "" {
		sc.Net.SASL.Enable = true
		sc.Net.SASL.User, sc.Net.SASL.Password = config.SASLUser, config.SASLPass
	}
	switch config.StartFrom {
	case "oldest":
		sc.Consumer.Offsets.Initial = sarama.OffsetOldest
	default:
		sc.Consumer.Offsets.Initial = sarama.OffsetNewest
	}

	if d.cl, err = sarama.NewClient(config.Brokers, sc); err != nil {
		return err
	}
	d.group, err = sarama.NewConsumerGroupFromClient(config.GroupID, d.cl)
	return err
}

func (d *SaramaDriver) Run(ctx context.Context, emit EmitFunc) error {
	handler := &groupHandler{cfg: d.cfg, emit: emit}

	go func() {
		for err := range d.group.Errors() {
			logging.L().Error("sarama-driver: consumer error", "err", err)
		}
	}()

	for {
		if err := d.group.Consume(ctx, d.cfg.Topics, handler); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (d *SaramaDriver) Close() error {
	if d.group != nil {
		_ = d.group.Close()
	}
	if d.cl != nil && !d.cl.Closed() {
		return d.cl.Close()
	}
	return nil
}

type groupHandler struct {
	cfg  Config
	emit EmitFunc
}

func (*groupHandler) Setup(sarama.ConsumerGroupSession) error { return nil }

func (*groupHandler) Cleanup(sess sarama.ConsumerGroupSession) error {
	logging.L().Info("sarama-driver: session ended", "generation", sess.GenerationID())
	return nil
}

// ConsumeClaim emits one event per record. Each event's ack, or its settle
// when a sink drops it, resolves its record in the partition window and
// marks the contiguous watermark; auto-commit flushes marks on the
// configured cadence. Records of a revoked partition that ack late are
// ignored by sarama.
func (h *groupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	ctx := sess.Context()
	win := newWindow[*sarama.ConsumerMessage](h.cfg.BackPressure.Capacity)

	for {
		select {
		case <-ctx.Done():
			return nil

		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			resolve, err := win.add(ctx, msg)
			if err != nil {
				return nil
			}

			commit := func() {
				if hi, advanced := resolve(); advanced {
					sess.MarkMessage(hi, "")
				}
			}
			topic := msg.Topic
			ev := event.New(streamID(msg, h.cfg.StreamHeader), msg.Value, func() {
				commit()
				telemetry.SourceAcked.WithLabelValues(topic).Inc()
			}).OnSettle(func() {
				// dropped by the sink and already dead-lettered: stop holding the window
				commit()
				telemetry.SourceSettled.WithLabelValues(topic).Inc()
			})
			if err := h.emit(ctx, ev); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			if h.cfg.CommitMode == CommitAuto {
				ev.Ack()
			}
		}
	}
}

func streamID(msg *sarama.ConsumerMessage, header string) string {
	key := []byte(header)
	for _, rh := range msg.Headers {
		if rh != nil && bytes.Equal(rh.Key, key) && len(rh.Value) > 0 {
			return string(rh.Value)
		}
	}
	return msg.Topic
}

func init() { Register("sarama", func() Adapter { return &SaramaDriver{} }) }
