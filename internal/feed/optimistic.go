package feed

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/bilyardvmetro/posts-feed-sync/internal/model"
)

var ErrUnknownEntity = errors.New("entity is not loaded")

// Reconcile says what to install once the remote write succeeds.
type Reconcile int

const (
	// ReplaceWithServer installs the server's entity: it is authoritative for shared counters.
	ReplaceWithServer Reconcile = iota
	// KeepOptimistic is for calls that return only an operation result.
	KeepOptimistic
)

// RunOptimistic applies optimistic(E) locally, performs call and then either
// installs the server result or restores the exact pre-mutation snapshot.
// The remote error is always returned after the rollback.
func RunOptimistic[T model.Entity[T]](
	ctx context.Context,
	s *Store[T],
	id string,
	optimistic func(T) T,
	call func(ctx context.Context) (T, error),
	rc Reconcile,
) (T, error) {
	var zero T

	snap, ok := s.snapshot(id)
	if !ok {
		return zero, fmt.Errorf("%w: %s", ErrUnknownEntity, id)
	}
	s.ApplyLocalPatch(id, optimistic)

	res, err := call(ctx)
	if err != nil {
		s.restore(snap)
		return zero, err
	}

	if rc == ReplaceWithServer && !isNil(res) {
		s.ApplyLocalPatch(id, func(T) T { return res.Clone() })
		return res, nil
	}
	cur, _ := s.current(id)
	return cur, nil
}

// snapshot holds per-slot deep copies: the list and the detail slot may
// hold different versions of the same entity.
type snapshot[T model.Entity[T]] struct {
	id       string
	item     T
	inList   bool
	detail   T
	inDetail bool
}

func (s *Store[T]) snapshot(id string) (snapshot[T], bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := snapshot[T]{id: id}
	if i := s.indexLocked(id); i >= 0 {
		snap.item, snap.inList = s.items[i].Clone(), true
	}
	if s.hasDetail && s.detail.EntityID() == id {
		snap.detail, snap.inDetail = s.detail.Clone(), true
	}
	return snap, snap.inList || snap.inDetail
}

func (s *Store[T]) restore(snap snapshot[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if snap.inList {
		if i := s.indexLocked(snap.id); i >= 0 {
			s.items[i] = snap.item.Clone()
		}
	}
	if snap.inDetail && s.hasDetail && s.detail.EntityID() == snap.id {
		s.detail = snap.detail.Clone()
	}
}

func (s *Store[T]) current(id string) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexLocked(id); i >= 0 {
		return s.items[i].Clone(), true
	}
	if s.hasDetail && s.detail.EntityID() == id {
		return s.detail.Clone(), true
	}
	var zero T
	return zero, false
}

// removal remembers where a deleted entity was so a failed delete can put it back.
type removal[T model.Entity[T]] struct {
	id       string
	gen      uint64
	index    int
	item     T
	inList   bool
	detail   T
	inDetail bool
}

func (s *Store[T]) remove(id string) (removal[T], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rm := removal[T]{id: id, gen: s.gen, index: -1}
	if i := s.indexLocked(id); i >= 0 {
		rm.index, rm.item, rm.inList = i, s.items[i], true
		s.items = append(s.items[:i], s.items[i+1:]...)
	}
	if s.hasDetail && s.detail.EntityID() == id {
		rm.detail, rm.inDetail = s.detail, true
		var zero T
		s.detail = zero
		s.hasDetail = false
	}
	return rm, rm.inList || rm.inDetail
}

// reinsert puts a removed entity back at its original index, clamped to the
// current length. The list part is skipped if the entity reappeared meanwhile
// (e.g. a reload) or the store was re-targeted: the item belongs to the old listing.
func (s *Store[T]) reinsert(rm removal[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rm.inList && rm.gen == s.gen && s.indexLocked(rm.id) < 0 {
		i := rm.index
		if i > len(s.items) {
			i = len(s.items)
		}
		var zero T
		s.items = append(s.items, zero)
		copy(s.items[i+1:], s.items[i:])
		s.items[i] = rm.item
	}
	if rm.inDetail && !s.hasDetail {
		s.detail, s.hasDetail = rm.detail, true
	}
}

func isNil[T any](v T) bool {
	rv := reflect.ValueOf(any(v))
	if !rv.IsValid() {
		return true
	}
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
