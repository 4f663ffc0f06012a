package events

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/fjod/go_pos/pos-service/internal/domain"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	DefaultTopic = "pos-events"
	maxBatch     = 100
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink exports events to Kafka keyed by merchant id, so one merchant's
// events land on one partition in order. Publishing only enqueues; Run does
// the writes.
type KafkaSink struct {
	writer       messageWriter
	queue        chan domain.Event
	writeTimeout time.Duration
	dropped      atomic.Uint64
	onDrop       func()
	log          *zap.Logger
}

func NewKafkaSink(topic string, queueSize int, log *zap.Logger, brokers ...string) *KafkaSink {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
	}
	return newKafkaSink(w, queueSize, log)
}

func newKafkaSink(w messageWriter, queueSize int, log *zap.Logger) *KafkaSink {
	if queueSize <= 0 {
		queueSize = 1024
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &KafkaSink{
		writer:       w,
		queue:        make(chan domain.Event, queueSize),
		writeTimeout: 5 * time.Second,
		log:          log,
	}
}

// OnDrop registers a callback for events discarded because the queue was full.
func (k *KafkaSink) OnDrop(fn func()) {
	k.onDrop = fn
}

func (k *KafkaSink) Offer(e domain.Event) {
	select {
	case k.queue <- e:
	default:
		k.dropped.Add(1)
		if k.onDrop != nil {
			k.onDrop()
		}
	}
}

func (k *KafkaSink) Dropped() uint64 {
	return k.dropped.Load()
}

// Run drains the queue until ctx is done, then flushes what is left.
func (k *KafkaSink) Run(ctx context.Context) {
	for {
		select {
		case e := <-k.queue:
			k.write(k.collect(e))
		case <-ctx.Done():
			k.flush()
			return
		}
	}
}

func (k *KafkaSink) collect(first domain.Event) []domain.Event {
	batch := []domain.Event{first}
	for len(batch) < maxBatch {
		select {
		case e := <-k.queue:
			batch = append(batch, e)
		default:
			return batch
		}
	}
	return batch
}

func (k *KafkaSink) flush() {
	for {
		select {
		case e := <-k.queue:
			k.write(k.collect(e))
		default:
			return
		}
	}
}

func (k *KafkaSink) write(batch []domain.Event) {
	msgs := make([]kafka.Message, 0, len(batch))
	for _, e := range batch {
		value, err := json.Marshal(e)
		if err != nil {
			k.log.Error("failed to marshal event", zap.String("merchant_id", e.MerchantID), zap.Error(err))
			continue
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(e.MerchantID),
			Value: value,
			Headers: []kafka.Header{
				{Key: "event_type", Value: []byte(e.Type)},
			},
			Time: e.At,
		})
	}
	if len(msgs) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), k.writeTimeout)
	defer cancel()
	if err := k.writer.WriteMessages(ctx, msgs...); err != nil {
		k.log.Error("failed to publish events to kafka", zap.Int("count", len(msgs)), zap.Error(err))
	}
}

func (k *KafkaSink) Close() error {
	return k.writer.Close()
}
