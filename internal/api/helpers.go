package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/bilyardvmetro/posts-feed-sync/internal/auth"
	"github.com/bilyardvmetro/posts-feed-sync/internal/logctx"
	"github.com/bilyardvmetro/posts-feed-sync/internal/store"

	"github.com/rs/zerolog"
)

const (
	maxCommentLen  = 2000
	maxTitleLen    = 300
	maxPostLen     = 40000
	maxReactionLen = 32

	defaultPageSize = 10
	maxPageSize     = 100
)

var (
	errBadRequest   = errors.New("bad request")
	errUnauthorized = errors.New("unauthorized")
	errForbidden    = errors.New("forbidden")
)

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

func currentUserName(ctx context.Context) string {
	return auth.Name(ctx) // пусто для гостя
}

// requireUser returns the viewer or errUnauthorized for guests.
func requireUser(ctx context.Context) (string, error) {
	if u := currentUserName(ctx); u != "" {
		return u, nil
	}
	return "", fmt.Errorf("%w: sign in required", errUnauthorized)
}

func validateComment(body string) (string, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return "", badRequest("comment body is required")
	}
	if utf8.RuneCountInString(body) > maxCommentLen {
		return "", badRequest("comment is too long (max %d)", maxCommentLen)
	}
	return body, nil
}

func validatePost(title, body string, titleRequired bool) (string, string, error) {
	title = strings.TrimSpace(title)
	body = strings.TrimSpace(body)
	if titleRequired && title == "" {
		return "", "", badRequest("title is required")
	}
	if utf8.RuneCountInString(title) > maxTitleLen {
		return "", "", badRequest("title is too long (max %d)", maxTitleLen)
	}
	if body == "" {
		return "", "", badRequest("body is required")
	}
	if utf8.RuneCountInString(body) > maxPostLen {
		return "", "", badRequest("body is too long (max %d)", maxPostLen)
	}
	return title, body, nil
}

func validateReaction(kind string) (string, error) {
	kind = strings.TrimSpace(kind)
	if kind == "" {
		return "", badRequest("reactionId is required")
	}
	if len(kind) > maxReactionLen {
		return "", badRequest("reactionId is invalid")
	}
	return kind, nil
}

// paging reads page (1-based) and pageSize from the query string.
func paging(r *http.Request) (page, size int, err error) {
	page, size = 1, defaultPageSize
	q := r.URL.Query()
	if v := q.Get("page"); v != "" {
		if page, err = strconv.Atoi(v); err != nil || page < 1 {
			return 0, 0, badRequest("page is invalid")
		}
	}
	if v := q.Get("pageSize"); v != "" {
		if size, err = strconv.Atoi(v); err != nil || size < 1 {
			return 0, 0, badRequest("pageSize is invalid")
		}
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	// (page-1)*size должен влезать в int
	if page-1 > math.MaxInt/size {
		return 0, 0, badRequest("page is invalid")
	}
	return page, size, nil
}

// offset is the first row of a page returned by paging.
func offset(page, size int) int { return (page - 1) * size }

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		return badRequest("invalid json body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeError maps an error to a status and an API error code; internal errors are not echoed.
func writeError(w http.ResponseWriter, r *http.Request, fallback zerolog.Logger, err error) {
	status, code := http.StatusInternalServerError, "INTERNAL"
	msg := err.Error()

	switch {
	case errors.Is(err, errUnauthorized):
		status, code = http.StatusUnauthorized, "UNAUTHORIZED"
	case errors.Is(err, errForbidden):
		status, code = http.StatusForbidden, "FORBIDDEN"
	case errors.Is(err, store.ErrNotFound):
		status, code = http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, errBadRequest):
		status, code = http.StatusBadRequest, "BAD_REQUEST"
	}

	l := logctx.From(r.Context(), fallback)
	if status == http.StatusInternalServerError {
		l.Error().Err(err).Msg("request failed")
		msg = "internal error"
	} else {
		l.Debug().Err(err).Int("status", status).Msg("request rejected")
	}
	writeJSON(w, status, errorBody{Code: code, Message: msg})
}
