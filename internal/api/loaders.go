package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/bilyardvmetro/posts-feed-sync/internal/store"

	"golang.org/x/sync/errgroup"
)

type ctxKey int

const loadersKey ctxKey = 1

// requestLoaders живут ровно один запрос, кэш не переживает его.
type requestLoaders struct {
	commentCounts *commentCountLoader
}

func WithLoaders(st store.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			loaders := &requestLoaders{
				commentCounts: newCommentCountLoader(st.BatchCommentsCount, 2*time.Millisecond, 512),
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), loadersKey, loaders)))
		})
	}
}

func loadersFrom(ctx context.Context) *requestLoaders {
	l, _ := ctx.Value(loadersKey).(*requestLoaders)
	return l
}

type countBatchFunc func(ctx context.Context, postIDs []string) (map[string]int, error)

type countResult struct {
	val int
	err error
}

// commentCountLoader answers "how many comments does post X have" for one request.
// A listing asks for all its posts at once (LoadMany); single lookups made
// within wait of each other (Load) share one batch query. Handlers that change
// a count in the same request record it with Prime.
type commentCountLoader struct {
	batch    countBatchFunc
	wait     time.Duration
	maxBatch int

	mu      sync.Mutex
	known   map[string]int
	pending map[string][]chan countResult
	order   []string
	timer   *time.Timer
	bctx    context.Context
}

func newCommentCountLoader(batch countBatchFunc, wait time.Duration, maxBatch int) *commentCountLoader {
	if wait <= 0 {
		wait = time.Millisecond
	}
	if maxBatch <= 0 {
		maxBatch = 512
	}
	return &commentCountLoader{
		batch:    batch,
		wait:     wait,
		maxBatch: maxBatch,
		known:    make(map[string]int),
		pending:  make(map[string][]chan countResult),
	}
}

func (l *commentCountLoader) Load(ctx context.Context, postID string) (int, error) {
	l.mu.Lock()
	if v, ok := l.known[postID]; ok {
		l.mu.Unlock()
		return v, nil
	}

	ch := make(chan countResult, 1)
	if _, queued := l.pending[postID]; !queued {
		l.order = append(l.order, postID)
	}
	l.pending[postID] = append(l.pending[postID], ch)
	if l.bctx == nil {
		// батч не должен умереть вместе с одним из ожидающих
		l.bctx = context.WithoutCancel(ctx)
	}

	switch {
	case len(l.order) >= l.maxBatch:
		if l.timer != nil {
			l.timer.Stop()
			l.timer = nil
		}
		go l.flush()
	case l.timer == nil:
		l.timer = time.AfterFunc(l.wait, l.flush)
	}
	l.mu.Unlock()

	select {
	case res := <-ch:
		return res.val, res.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (l *commentCountLoader) flush() {
	l.mu.Lock()
	n := len(l.order)
	if n > l.maxBatch {
		n = l.maxBatch
	}
	keys := l.order[:n:n]
	l.order = l.order[n:]
	waiters := make(map[string][]chan countResult, n)
	for _, k := range keys {
		waiters[k] = l.pending[k]
		delete(l.pending, k)
	}
	ctx := l.bctx
	l.timer = nil
	if len(l.order) > 0 {
		// остаток не влез в батч: ещё один проход
		l.timer = time.AfterFunc(0, l.flush)
	} else {
		l.bctx = nil
	}
	l.mu.Unlock()

	if len(keys) == 0 {
		return
	}
	counts, err := l.batch(ctx, keys)

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, k := range keys {
		val := counts[k]
		if err == nil {
			l.known[k] = val
		}
		for _, ch := range waiters[k] {
			ch <- countResult{val: val, err: err}
		}
	}
}

// LoadMany resolves a whole listing: cached ids are answered from memory,
// the rest go out in chunks of maxBatch that run in parallel.
func (l *commentCountLoader) LoadMany(ctx context.Context, postIDs []string) (map[string]int, error) {
	out := make(map[string]int, len(postIDs))
	var missing []string

	l.mu.Lock()
	seen := make(map[string]bool, len(postIDs))
	for _, id := range postIDs {
		if v, ok := l.known[id]; ok {
			out[id] = v
		} else if !seen[id] {
			missing = append(missing, id)
		}
		seen[id] = true
	}
	l.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for start := 0; start < len(missing); start += l.maxBatch {
		chunk := missing[start:min(start+l.maxBatch, len(missing))]
		g.Go(func() error {
			counts, err := l.batch(gctx, chunk)
			if err != nil {
				return err
			}
			l.mu.Lock()
			for _, id := range chunk {
				l.known[id] = counts[id]
				out[id] = counts[id]
			}
			l.mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Prime records a count the handler already knows, e.g. 0 for a new post.
func (l *commentCountLoader) Prime(postID string, count int) {
	l.mu.Lock()
	l.known[postID] = count
	l.mu.Unlock()
}
