package feed

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/bilyardvmetro/posts-feed-sync/internal/logctx"
	"github.com/bilyardvmetro/posts-feed-sync/internal/model"
	"github.com/bilyardvmetro/posts-feed-sync/internal/strategy"

	"github.com/rs/zerolog"
)

var ErrNoTarget = errors.New("store has no target, call LoadInitial first")

// Source is the read side of the remote resource.
type Source[T any] interface {
	List(ctx context.Context, path string, q model.PageQuery) (*model.Page[T], error)
	Get(ctx context.Context, id string) (T, error)
}

type options struct {
	name     string
	pageSize int
	log      zerolog.Logger
}

type Option func(*options)

func WithName(name string) Option { return func(o *options) { o.name = name } }

func WithPageSize(n int) Option { return func(o *options) { o.pageSize = n } }

func WithLogger(l zerolog.Logger) Option { return func(o *options) { o.log = l } }

// Store owns one ordered collection plus an independent detail slot.
// Entities handed out are clones; all changes go through the Store methods.
type Store[T model.Entity[T]] struct {
	mu     sync.RWMutex
	name   string
	source Source[T]
	log    zerolog.Logger

	items     []T
	detail    T
	hasDetail bool

	cursor   Cursor
	target   strategy.Target
	gen      uint64
	metadata json.RawMessage
	err      error
}

func NewStore[T model.Entity[T]](source Source[T], opts ...Option) *Store[T] {
	o := options{name: "feed", log: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Store[T]{
		name:   o.name,
		source: source,
		log:    o.log.With().Str("store", o.name).Logger(),
		cursor: NewCursor(o.pageSize),
	}
}

func (s *Store[T]) Name() string { return s.name }

// LoadInitial re-targets the store: the collection, cursor and session token
// are cleared, then the first page is requested. A page still in flight for
// the previous target is dropped when it arrives.
func (s *Store[T]) LoadInitial(ctx context.Context, t strategy.Target) (Outcome, error) {
	if _, _, err := t.Endpoint(); err != nil {
		return Failed, err
	}

	s.mu.Lock()
	s.gen++
	s.target = t
	s.items = nil
	s.cursor.Reset()
	s.metadata = nil
	s.err = nil
	s.mu.Unlock()

	l := logctx.From(ctx, s.log)
	l.Debug().Str("target", t.String()).Msg("store re-targeted")
	return s.LoadNext(ctx)
}

func (s *Store[T]) LoadNext(ctx context.Context) (Outcome, error) {
	l := logctx.From(ctx, s.log)

	s.mu.Lock()
	if s.target.Strategy == "" {
		s.mu.Unlock()
		return Failed, ErrNoTarget
	}
	page, outcome := s.cursor.Advance()
	if outcome != Loaded {
		s.mu.Unlock()
		pageLoadsCounter.WithLabelValues(s.name, outcome.String()).Inc()
		l.Debug().Str("outcome", outcome.String()).Msg("page load skipped")
		return outcome, nil
	}
	gen, target := s.gen, s.target
	cfg, path, _ := target.Endpoint()
	q := model.PageQuery{Page: page, PageSize: s.cursor.pageSize}
	if cfg.UsesSessionToken {
		q.SessionID = s.cursor.session
	}
	s.mu.Unlock()

	res, err := s.source.List(ctx, path, q)

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen {
		pageLoadsCounter.WithLabelValues(s.name, Stale.String()).Inc()
		l.Debug().Int("page", page).Str("target", target.String()).Msg("dropping page of a previous target")
		return Stale, nil
	}
	s.cursor.Release()

	if err != nil {
		s.err = err
		pageLoadsCounter.WithLabelValues(s.name, Failed.String()).Inc()
		l.Error().Err(err).Int("page", page).Str("path", path).Msg("page load failed")
		return Failed, err
	}

	s.err = nil
	added := s.appendLocked(res.Data)
	s.cursor.Commit(page, res.TotalPages, res.TotalCount)
	if len(res.Metadata) > 0 {
		s.metadata = res.Metadata
	}
	if cfg.UsesSessionToken && res.SessionID != "" {
		s.cursor.SetSession(res.SessionID)
	}

	pageLoadsCounter.WithLabelValues(s.name, Loaded.String()).Inc()
	l.Debug().
		Int("page", page).
		Int("added", added).
		Int("total_pages", s.cursor.totalPages).
		Msg("page loaded")
	return Loaded, nil
}

// LoadDetail fetches a single entity into the detail slot.
func (s *Store[T]) LoadDetail(ctx context.Context, id string) (T, error) {
	v, err := s.source.Get(ctx, id)
	if err != nil {
		var zero T
		return zero, err
	}
	s.SetDetail(v)
	return v.Clone(), nil
}

func (s *Store[T]) appendLocked(page []T) int {
	seen := make(map[string]struct{}, len(s.items)+len(page))
	for _, it := range s.items {
		seen[it.EntityID()] = struct{}{}
	}
	added := 0
	for _, it := range page {
		if _, dup := seen[it.EntityID()]; dup {
			s.log.Debug().Str("id", it.EntityID()).Msg("duplicate entity in page skipped")
			continue
		}
		seen[it.EntityID()] = struct{}{}
		s.items = append(s.items, it)
		added++
	}
	return added
}

// ApplyLocalPatch replaces the entity in the collection and in the detail
// slot with updater(current). Returns false if neither holds id.
func (s *Store[T]) ApplyLocalPatch(id string, updater func(T) T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.patchLocked(id, updater)
}

func (s *Store[T]) patchLocked(id string, updater func(T) T) bool {
	found := false
	if i := s.indexLocked(id); i >= 0 {
		s.items[i] = updater(s.items[i])
		found = true
	}
	if s.hasDetail && s.detail.EntityID() == id {
		s.detail = updater(s.detail)
		found = true
	}
	return found
}

func (s *Store[T]) indexLocked(id string) int {
	for i, it := range s.items {
		if it.EntityID() == id {
			return i
		}
	}
	return -1
}

// Remove drops the entity from the collection and the detail slot.
func (s *Store[T]) Remove(id string) bool {
	_, ok := s.remove(id)
	return ok
}

// ApplyRemote merges a server-side change into the store.
func (s *Store[T]) ApplyRemote(ev model.Event) error {
	if ev.Deleted() {
		s.Remove(ev.ID)
		return nil
	}
	var shared T
	if err := json.Unmarshal(ev.Data, &shared); err != nil {
		return err
	}
	if isNil(shared) {
		return errors.New("event without entity data")
	}
	s.ApplyLocalPatch(ev.ID, func(cur T) T { return cur.Merge(shared) })
	return nil
}

func (s *Store[T]) SetDetail(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detail = v.Clone()
	s.hasDetail = true
}

func (s *Store[T]) ClearDetail() {
	s.mu.Lock()
	defer s.mu.Unlock()
	var zero T
	s.detail = zero
	s.hasDetail = false
}

func (s *Store[T]) Detail() (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.hasDetail {
		var zero T
		return zero, false
	}
	return s.detail.Clone(), true
}

func (s *Store[T]) Items() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]T, len(s.items))
	for i, it := range s.items {
		out[i] = it.Clone()
	}
	return out
}

func (s *Store[T]) Get(id string) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexLocked(id); i >= 0 {
		return s.items[i].Clone(), true
	}
	var zero T
	return zero, false
}

func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *Store[T]) Target() strategy.Target {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.target
}

func (s *Store[T]) Cursor() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cursor.State()
}

func (s *Store[T]) Loading() bool { return s.Cursor().Loading }

func (s *Store[T]) HasMore() bool { return s.Cursor().HasMore() }

// Err is the error of the last failed page load, cleared by the next success.
func (s *Store[T]) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

func (s *Store[T]) Metadata() json.RawMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append(json.RawMessage(nil), s.metadata...)
}

// Reset tears the view down: empty collection, no target, no detail.
func (s *Store[T]) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.target = strategy.Target{}
	s.items = nil
	s.cursor.Reset()
	s.metadata = nil
	s.err = nil
	var zero T
	s.detail = zero
	s.hasDetail = false
}
