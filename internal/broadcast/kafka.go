package broadcast

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fastprodman/casinobot/internal/infra/kafkautil"
	"github.com/segmentio/kafka-go"
)

// KafkaPublisher keeps one writer per topic.
type KafkaPublisher struct {
	brokers []string

	mu      sync.Mutex
	writers map[string]*kafka.Writer
}

func NewKafkaPublisher(brokers []string) *KafkaPublisher {
	return &KafkaPublisher{
		brokers: brokers,
		writers: make(map[string]*kafka.Writer),
	}
}

func (p *KafkaPublisher) writer(topic string) *kafka.Writer {
	p.mu.Lock()
	defer p.mu.Unlock()

	w, ok := p.writers[topic]
	if !ok {
		w = kafkautil.NewWriter(p.brokers, topic)
		p.writers[topic] = w
	}

	return w
}

func (p *KafkaPublisher) Publish(ctx context.Context, topic, key string, payload []byte) error {
	return p.writer(topic).WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Time:  time.Now(),
	})
}

func (p *KafkaPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error

	for topic, w := range p.writers {
		err := w.Close()
		if err != nil {
			errs = append(errs, err)
		}

		delete(p.writers, topic)
	}

	return errors.Join(errs...)
}
