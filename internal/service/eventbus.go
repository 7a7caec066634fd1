package service

import (
	"sync"

	"github.com/bnema/transq/internal/domain"
)

// EventPublisher receives the pipeline status after every state change.
type EventPublisher interface {
	Publish(status domain.Status)
}

const statusBuffer = 8

// EventBus fans pipeline status out to stream subscribers. Only the latest
// status matters to a watcher, so a full buffer sheds its oldest entry
// instead of the new one.
type EventBus struct {
	mu     sync.Mutex
	nextID int
	subs   map[chan domain.Status]int
}

func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[chan domain.Status]int)}
}

func (eb *EventBus) Subscribe() chan domain.Status {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	ch := make(chan domain.Status, statusBuffer)
	eb.nextID++
	eb.subs[ch] = eb.nextID
	return ch
}

// Unsubscribe closes ch. Unknown channels are ignored.
func (eb *EventBus) Unsubscribe(ch chan domain.Status) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if _, ok := eb.subs[ch]; !ok {
		return
	}
	delete(eb.subs, ch)
	close(ch)
}

func (eb *EventBus) Publish(status domain.Status) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	for ch := range eb.subs {
		for {
			select {
			case ch <- status:
			default:
				select {
				case <-ch:
				default:
				}
				continue
			}
			break
		}
	}
}

func (eb *EventBus) Subscribers() int {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	return len(eb.subs)
}
