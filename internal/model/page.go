package model

import "encoding/json"

// Page is one page of a paginated listing. SessionID comes from the
// X-Session-Id response header, not from the body.
type Page[T any] struct {
	Data       []T             `json:"data"`
	TotalCount int             `json:"totalCount"`
	TotalPages int             `json:"totalPages"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
	SessionID  string          `json:"-"`
}

type PageQuery struct {
	Page      int    `url:"page"`
	PageSize  int    `url:"pageSize"`
	SessionID string `url:"sessionId,omitempty"`
}

const SessionHeader = "X-Session-Id"

func TotalPages(count, size int) int {
	if size <= 0 || count <= 0 {
		return 0
	}
	return (count + size - 1) / size
}
