package feed

// Outcome of a page-load request. Skips are benign short-circuits, not errors.
type Outcome int

const (
	Loaded Outcome = iota
	SkippedInFlight
	SkippedExhausted
	// Stale: the store was re-targeted while the page was in flight, the page was dropped.
	Stale
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Loaded:
		return "loaded"
	case SkippedInFlight:
		return "skipped: in flight"
	case SkippedExhausted:
		return "skipped: no more pages"
	case Stale:
		return "stale"
	case Failed:
		return "failed"
	}
	return "unknown"
}

func (o Outcome) Skipped() bool { return o == SkippedInFlight || o == SkippedExhausted }

const DefaultPageSize = 10

// Cursor tracks pagination for one listing. Not safe for concurrent use,
// the owning Store guards it.
type Cursor struct {
	currentPage int
	pageSize    int
	totalPages  int
	totalCount  int
	session     string
	inFlight    bool
}

func NewCursor(pageSize int) Cursor {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return Cursor{pageSize: pageSize}
}

func (c *Cursor) HasMore() bool { return c.currentPage < c.totalPages }

// Advance returns the next page to request and marks a load as in flight.
func (c *Cursor) Advance() (int, Outcome) {
	if c.inFlight {
		return 0, SkippedInFlight
	}
	if c.currentPage > 0 && !c.HasMore() {
		return 0, SkippedExhausted
	}
	c.inFlight = true
	return c.currentPage + 1, Loaded
}

// Release clears the in-flight mark. Called on every completion path.
func (c *Cursor) Release() { c.inFlight = false }

// Commit records a fetched page. currentPage only moves forward; totalPages is
// raised to the committed page so that currentPage <= totalPages holds for empty listings.
func (c *Cursor) Commit(page, totalPages, totalCount int) {
	if page > c.currentPage {
		c.currentPage = page
	}
	if totalPages < c.currentPage {
		totalPages = c.currentPage
	}
	c.totalPages = totalPages
	if totalCount < 0 {
		totalCount = 0
	}
	c.totalCount = totalCount
}

func (c *Cursor) Reset() {
	size := c.pageSize
	*c = Cursor{pageSize: size}
}

func (c *Cursor) SetSession(token string) { c.session = token }

// State is a read-only copy of the cursor.
type State struct {
	CurrentPage  int
	PageSize     int
	TotalPages   int
	TotalCount   int
	SessionToken string
	Loading      bool
}

func (s State) HasMore() bool { return s.CurrentPage < s.TotalPages }

func (c *Cursor) State() State {
	return State{
		CurrentPage:  c.currentPage,
		PageSize:     c.pageSize,
		TotalPages:   c.totalPages,
		TotalCount:   c.totalCount,
		SessionToken: c.session,
		Loading:      c.inFlight,
	}
}
