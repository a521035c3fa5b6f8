package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"github.com/tournevent/cttgateway/internal/broker/messages"
	"github.com/tournevent/cttgateway/pkg/gateway"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// StateSink publishes delivery state changes keyed by tracking code, so all
// updates of one shipment land on the same partition.
type StateSink struct {
	w     messageWriter
	topic string
	now   func() time.Time
}

func NewStateSink(brokers []string, topic string) *StateSink {
	return newStateSinkWithWriter(&kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Balancer: &kafka.Hash{},
	}, topic)
}

func newStateSinkWithWriter(w messageWriter, topic string) *StateSink {
	return &StateSink{w: w, topic: topic, now: time.Now}
}

func (s *StateSink) Publish(ctx context.Context, change gateway.StateChange) error {
	value, err := json.Marshal(messages.DeliveryStateChanged{
		AccountID:    change.AccountID,
		Protocol:     string(change.Protocol),
		TrackingCode: change.TrackingCode,
		State:        string(change.State),
		StatusCode:   change.StatusCode,
		Description:  change.Description,
		EventTime:    change.EventTime,
		ObservedAt:   s.now().UTC(),
	})
	if err != nil {
		return errors.Wrap(err, "encode state change")
	}

	if err := s.w.WriteMessages(ctx, kafka.Message{
		Topic: s.topic,
		Key:   []byte(change.TrackingCode),
		Value: value,
	}); err != nil {
		return errors.Wrap(err, "kafka publish")
	}
	return nil
}

func (s *StateSink) Close() error {
	if c, ok := s.w.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

var _ gateway.StateSink = (*StateSink)(nil)
