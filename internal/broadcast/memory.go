package broadcast

import (
	"context"
	"sync"
)

type Message struct {
	Topic   string
	Key     string
	Payload []byte
}

// MemPublisher records messages in memory. FailTopics makes publishes to
// the listed topics fail with the mapped error.
type MemPublisher struct {
	mu         sync.Mutex
	messages   []Message
	failTopics map[string]error
}

func NewMemPublisher() *MemPublisher {
	return &MemPublisher{failTopics: make(map[string]error)}
}

func (p *MemPublisher) Publish(_ context.Context, topic, key string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.failTopics[topic]; err != nil {
		return err
	}

	p.messages = append(p.messages, Message{Topic: topic, Key: key, Payload: append([]byte(nil), payload...)})

	return nil
}

// FailTopic makes publishes to topic return err; a nil err clears it.
func (p *MemPublisher) FailTopic(topic string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err == nil {
		delete(p.failTopics, topic)
		return
	}

	p.failTopics[topic] = err
}

// Messages returns the recorded messages of topic.
func (p *MemPublisher) Messages(topic string) []Message {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []Message

	for _, m := range p.messages {
		if m.Topic == topic {
			out = append(out, m)
		}
	}

	return out
}
