package feed

import (
	"context"
	"errors"
	"fmt"

	"github.com/bilyardvmetro/posts-feed-sync/internal/logctx"
	"github.com/bilyardvmetro/posts-feed-sync/internal/model"

	"github.com/rs/zerolog"
)

var ErrUnsupported = errors.New("action is not supported for this entity")

// Action is the closed set of writes a Mutator knows how to run optimistically.
type Action interface{ isAction() }

type (
	Save       struct{}
	Unsave     struct{}
	React      struct{ Kind string }
	Edit       struct{ Change model.Edit }
	Delete     struct{}
	SoftDelete struct{}
)

func (Save) isAction()       {}
func (Unsave) isAction()     {}
func (React) isAction()      {}
func (Edit) isAction()       {}
func (Delete) isAction()     {}
func (SoftDelete) isAction() {}

func ActionName(a Action) string {
	switch a.(type) {
	case Save:
		return "save"
	case Unsave:
		return "unsave"
	case React:
		return "react"
	case Edit:
		return "edit"
	case Delete:
		return "delete"
	case SoftDelete:
		return "soft_delete"
	}
	return "unknown"
}

// Remote is the write side of the remote resource.
type Remote[T any] interface {
	Source[T]
	Save(ctx context.Context, id string) (T, error)
	Unsave(ctx context.Context, id string) (T, error)
	React(ctx context.Context, id, kind string) (T, error)
	Edit(ctx context.Context, id string, e model.Edit) (T, error)
	Delete(ctx context.Context, id string) error
	MarkDeleted(ctx context.Context, id string) error
}

// Mutator runs writes against one store. Writes on different entities are
// independent; writes on the same entity are not serialized, the response
// that arrives last wins.
type Mutator[T model.Entity[T]] struct {
	store  *Store[T]
	remote Remote[T]
}

func NewMutator[T model.Entity[T]](s *Store[T], r Remote[T]) *Mutator[T] {
	return &Mutator[T]{store: s, remote: r}
}

func (m *Mutator[T]) Store() *Store[T] { return m.store }

// Do dispatches a. For Delete and SoftDelete the returned entity is the zero
// value and the current local state respectively.
func (m *Mutator[T]) Do(ctx context.Context, id string, a Action) (T, error) {
	name := ActionName(a)
	ctx, l := logctx.With(ctx, m.store.log, func(c zerolog.Context) zerolog.Context {
		return c.Str("store", m.store.name).Str("id", id).Str("action", name)
	})

	res, err := m.dispatch(ctx, id, a)
	switch {
	case err == nil:
		mutationsCounter.WithLabelValues(m.store.name, name, "committed").Inc()
		l.Debug().Msg("mutation committed")
	case errors.Is(err, ErrUnsupported), errors.Is(err, ErrUnknownEntity):
		l.Warn().Err(err).Msg("mutation rejected")
	default:
		mutationsCounter.WithLabelValues(m.store.name, name, "rolled_back").Inc()
		l.Warn().Err(err).Msg("mutation rolled back")
	}
	if err != nil {
		return res, fmt.Errorf("%s %s: %w", name, id, err)
	}
	return res, nil
}

func (m *Mutator[T]) dispatch(ctx context.Context, id string, a Action) (T, error) {
	var zero T

	switch a := a.(type) {
	case Save:
		return m.setSaved(ctx, id, true)
	case Unsave:
		return m.setSaved(ctx, id, false)
	case React:
		return RunOptimistic(ctx, m.store, id,
			func(e T) T { return e.WithReaction(a.Kind) },
			func(ctx context.Context) (T, error) { return m.remote.React(ctx, id, a.Kind) },
			ReplaceWithServer)
	case Edit:
		if _, ok := any(zero).(model.Editable[T]); !ok {
			return zero, ErrUnsupported
		}
		return RunOptimistic(ctx, m.store, id,
			func(e T) T { return any(e).(model.Editable[T]).WithEdit(a.Change) },
			func(ctx context.Context) (T, error) { return m.remote.Edit(ctx, id, a.Change) },
			ReplaceWithServer)
	case SoftDelete:
		if _, ok := any(zero).(model.SoftDeletable[T]); !ok {
			return zero, ErrUnsupported
		}
		return RunOptimistic(ctx, m.store, id,
			func(e T) T { return any(e).(model.SoftDeletable[T]).WithDeleted() },
			func(ctx context.Context) (T, error) { return zero, m.remote.MarkDeleted(ctx, id) },
			KeepOptimistic)
	case Delete:
		return zero, m.delete(ctx, id)
	}
	return zero, fmt.Errorf("%w: %T", ErrUnsupported, a)
}

func (m *Mutator[T]) setSaved(ctx context.Context, id string, saved bool) (T, error) {
	var zero T
	if _, ok := any(zero).(model.Saveable[T]); !ok {
		return zero, ErrUnsupported
	}
	call := m.remote.Unsave
	if saved {
		call = m.remote.Save
	}
	return RunOptimistic(ctx, m.store, id,
		func(e T) T { return any(e).(model.Saveable[T]).WithSaved(saved) },
		func(ctx context.Context) (T, error) { return call(ctx, id) },
		ReplaceWithServer)
}

// delete removes the entity right away; on failure it goes back to its original index.
func (m *Mutator[T]) delete(ctx context.Context, id string) error {
	rm, ok := m.store.remove(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEntity, id)
	}
	if err := m.remote.Delete(ctx, id); err != nil {
		m.store.reinsert(rm)
		return err
	}
	return nil
}

func (m *Mutator[T]) Save(ctx context.Context, id string) (T, error) {
	return m.Do(ctx, id, Save{})
}

func (m *Mutator[T]) Unsave(ctx context.Context, id string) (T, error) {
	return m.Do(ctx, id, Unsave{})
}

func (m *Mutator[T]) ToggleReaction(ctx context.Context, id, kind string) (T, error) {
	return m.Do(ctx, id, React{Kind: kind})
}

func (m *Mutator[T]) Edit(ctx context.Context, id string, e model.Edit) (T, error) {
	return m.Do(ctx, id, Edit{Change: e})
}

func (m *Mutator[T]) Delete(ctx context.Context, id string) error {
	_, err := m.Do(ctx, id, Delete{})
	return err
}

func (m *Mutator[T]) SoftDelete(ctx context.Context, id string) (T, error) {
	return m.Do(ctx, id, SoftDelete{})
}
