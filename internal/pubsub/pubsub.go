package pubsub

import (
	"sync"

	"github.com/bilyardvmetro/posts-feed-sync/internal/model"
)

type Unsubscribe func()

type Bus interface {
	Publish(topic string, ev model.Event)
	Subscribe(topic string, h func(model.Event)) Unsubscribe
}

// subscriber получает события в порядке публикации: очередь разбирает
// одна горутина, медленный подписчик не тормозит остальных.
type subscriber struct {
	id uint64
	h  func(model.Event)

	mu    sync.Mutex
	queue []model.Event
	wake  chan struct{}
	done  chan struct{}
	once  sync.Once
}

func newSubscriber(id uint64, h func(model.Event)) *subscriber {
	s := &subscriber{id: id, h: h, wake: make(chan struct{}, 1), done: make(chan struct{})}
	go s.run()
	return s
}

func (s *subscriber) push(ev model.Event) {
	s.mu.Lock()
	s.queue = append(s.queue, ev)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscriber) run() {
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
		}
		for {
			s.mu.Lock()
			batch := s.queue
			s.queue = nil
			s.mu.Unlock()
			if len(batch) == 0 {
				break
			}
			for _, ev := range batch {
				select {
				case <-s.done:
					return
				default:
				}
				s.h(ev)
			}
		}
	}
}

func (s *subscriber) stop() { s.once.Do(func() { close(s.done) }) }

type memoryBus struct {
	mu   sync.RWMutex
	next uint64
	m    map[string][]*subscriber
}

func NewMemoryBus() Bus {
	return &memoryBus{m: map[string][]*subscriber{}}
}

func (m *memoryBus) Publish(topic string, ev model.Event) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.m[topic] {
		s.push(ev)
	}
}

func (m *memoryBus) Subscribe(topic string, h func(model.Event)) Unsubscribe {
	m.mu.Lock()
	m.next++
	sub := newSubscriber(m.next, h)
	m.m[topic] = append(m.m[topic], sub)
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			sub.stop()
			subs := m.m[topic]
			for i, s := range subs {
				if s.id == sub.id {
					m.m[topic] = append(subs[:i:i], subs[i+1:]...)
					break
				}
			}
			if len(m.m[topic]) == 0 {
				delete(m.m, topic)
			}
		})
	}
}
