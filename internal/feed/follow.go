package feed

import (
	"github.com/bilyardvmetro/posts-feed-sync/internal/model"
	"github.com/bilyardvmetro/posts-feed-sync/internal/pubsub"
)

// Follow merges every event published on topic into the store until the
// returned func is called. Events for entities the store does not hold are ignored.
func (s *Store[T]) Follow(bus pubsub.Bus, topic string) pubsub.Unsubscribe {
	return bus.Subscribe(topic, func(ev model.Event) {
		if err := s.ApplyRemote(ev); err != nil {
			s.log.Warn().Err(err).Str("event", string(ev.Type)).Str("id", ev.ID).Msg("apply remote event")
			return
		}
		feedEvents.WithLabelValues(s.name, string(ev.Type)).Inc()
	})
}
