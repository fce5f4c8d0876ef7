package pubsub

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/bilyardvmetro/posts-feed-sync/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// PgBus раздаёт события между инстансами сервера через LISTEN/NOTIFY.
// Слушающее соединение занято WaitForNotification, поэтому каналы слушаются
// с самого старта, а NOTIFY уходит через отдельный пул.
type PgBus struct {
	listener *pgx.Conn
	pool     *pgxpool.Pool
	ctx      context.Context
	cancel   context.CancelFunc
	log      zerolog.Logger
	mu       sync.RWMutex
	next     uint64
	handlers map[string][]*subscriber
}

func NewPgBus(parentCtx context.Context, dsn string, l zerolog.Logger, topics ...string) (*PgBus, error) {
	ctx, cancel := context.WithCancel(parentCtx)
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		cancel()
		return nil, err
	}
	for _, topic := range topics {
		if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{topic}.Sanitize()); err != nil {
			cancel()
			_ = conn.Close(context.Background())
			return nil, err
		}
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		cancel()
		_ = conn.Close(context.Background())
		return nil, err
	}

	b := &PgBus{
		listener: conn,
		pool:     pool,
		ctx:      ctx,
		cancel:   cancel,
		log:      l.With().Str("component", "pgbus").Logger(),
		handlers: make(map[string][]*subscriber),
	}

	go b.listenLoop()
	return b, nil
}

func (b *PgBus) listenLoop() {
	for {
		notif, err := b.listener.WaitForNotification(b.ctx)
		if err != nil {
			if b.ctx.Err() != nil {
				// graceful shutdown
				return
			}
			b.log.Error().Err(err).Msg("wait for notification")
			return
		}
		if notif == nil {
			continue
		}

		var ev model.Event
		if err := json.Unmarshal([]byte(notif.Payload), &ev); err != nil {
			b.log.Warn().Err(err).Str("channel", notif.Channel).Msg("bad notification payload")
			continue
		}

		b.mu.RLock()
		for _, s := range b.handlers[notif.Channel] {
			s.push(ev)
		}
		b.mu.RUnlock()
	}
}

func (b *PgBus) Publish(topic string, ev model.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		b.log.Error().Err(err).Msg("marshal event")
		return
	}
	// pg_notify принимает канал и payload параметрами, без ручного экранирования
	if _, err := b.pool.Exec(b.ctx, "select pg_notify($1, $2)", topic, string(payload)); err != nil {
		b.log.Error().Err(err).Str("topic", topic).Msg("publish")
	}
}

func (b *PgBus) Subscribe(topic string, h func(model.Event)) Unsubscribe {
	b.mu.Lock()
	b.next++
	sub := newSubscriber(b.next, h)
	b.handlers[topic] = append(b.handlers[topic], sub)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			sub.stop()
			subs := b.handlers[topic]
			for i, s := range subs {
				if s.id == sub.id {
					b.handlers[topic] = append(subs[:i:i], subs[i+1:]...)
					break
				}
			}
			if len(b.handlers[topic]) == 0 {
				delete(b.handlers, topic)
			}
		})
	}
}

func (b *PgBus) Close() error {
	b.cancel()
	b.mu.Lock()
	for _, subs := range b.handlers {
		for _, s := range subs {
			s.stop()
		}
	}
	b.mu.Unlock()
	b.pool.Close()
	return b.listener.Close(context.Background())
}
