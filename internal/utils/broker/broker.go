// broker/broker.go
package broker

import (
	"sync"

	"textcleaner_go_backend/internal/models"
)

// Broker fans outcomes out to per-session subscribers. Topics are session
// ids; the websocket layer subscribes, the ingestion pipeline and payment
// coordinator publish.
type Broker struct {
	subscribers map[string][]chan models.Outcome
	mu          sync.RWMutex
}

func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[string][]chan models.Outcome),
	}
}

func (b *Broker) Subscribe(topic string) <-chan models.Outcome {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan models.Outcome, 8)
	b.subscribers[topic] = append(b.subscribers[topic], ch)
	return ch
}

func (b *Broker) Unsubscribe(topic string, ch <-chan models.Outcome) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if chans, ok := b.subscribers[topic]; ok {
		for i, c := range chans {
			if c == ch {
				b.subscribers[topic] = append(chans[:i], chans[i+1:]...)
				close(c)
				break
			}
		}
	}
}

// Notify satisfies the services.OutcomeNotifier contract: outcomes are
// published on the session's topic.
func (b *Broker) Notify(sessionID string, outcome models.Outcome) {
	b.Publish(sessionID, outcome)
}

// Publish delivers msg to every subscriber of topic. A subscriber whose
// buffer is full is skipped rather than blocking the publisher; a slow
// websocket client must never stall settlement or background ingestion.
func (b *Broker) Publish(topic string, msg models.Outcome) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if chans, ok := b.subscribers[topic]; ok {
		for _, ch := range chans {
			select {
			case ch <- msg:
			default:
			}
		}
	}
}
