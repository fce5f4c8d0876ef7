// Package notify turns failures from the sync layer into user-facing notices.
package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/bilyardvmetro/posts-feed-sync/internal/feed"
	"github.com/bilyardvmetro/posts-feed-sync/internal/remote"

	"github.com/rs/zerolog"
)

type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Codes match the ones the API server puts into error bodies.
const (
	CodeBadRequest   = "BAD_REQUEST"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"
	CodeNotFound     = "NOT_FOUND"
	CodeUnavailable  = "UNAVAILABLE"
	CodeNetwork      = "NETWORK"
	CodeCanceled     = "CANCELED"
	CodeUnsupported  = "UNSUPPORTED"
	CodeInternal     = "INTERNAL"
)

type Notice struct {
	Level   Level
	Code    string
	Message string
}

func (n Notice) String() string { return fmt.Sprintf("[%s] %s", n.Code, n.Message) }

// Translate maps any error returned by a load or mutation to a Notice.
// A nil error yields the zero Notice.
func Translate(err error) Notice {
	if err == nil {
		return Notice{}
	}

	var apiErr *remote.Error
	var netErr net.Error
	switch {
	case errors.Is(err, context.Canceled):
		return Notice{Level: LevelInfo, Code: CodeCanceled, Message: "cancelled"}
	case errors.Is(err, feed.ErrUnsupported):
		return Notice{Level: LevelWarn, Code: CodeUnsupported, Message: "this action is not available here"}
	case errors.Is(err, feed.ErrUnknownEntity):
		return Notice{Level: LevelWarn, Code: CodeNotFound, Message: "item is no longer in view"}
	case errors.Is(err, feed.ErrNoTarget):
		return Notice{Level: LevelWarn, Code: CodeBadRequest, Message: "nothing to load yet"}
	case errors.As(err, &apiErr):
		return fromAPI(apiErr)
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr), errors.Is(err, io.ErrUnexpectedEOF):
		return Notice{Level: LevelError, Code: CodeNetwork, Message: "network problem, try again"}
	}
	return Notice{Level: LevelError, Code: CodeInternal, Message: err.Error()}
}

func fromAPI(e *remote.Error) Notice {
	n := Notice{Level: LevelError, Code: e.Code, Message: e.Message}
	switch {
	case e.StatusCode == http.StatusUnauthorized:
		n = Notice{Level: LevelWarn, Code: CodeUnauthorized, Message: "sign in to do that"}
	case e.StatusCode == http.StatusForbidden:
		n.Level, n.Code = LevelWarn, CodeForbidden
	case e.StatusCode == http.StatusNotFound:
		n.Level, n.Code = LevelWarn, CodeNotFound
	case e.StatusCode == http.StatusBadRequest, e.StatusCode == http.StatusUnprocessableEntity:
		n.Level, n.Code = LevelWarn, CodeBadRequest
	case e.StatusCode == http.StatusTooManyRequests, e.StatusCode >= 500:
		n.Code = CodeUnavailable
		if e.StatusCode == http.StatusInternalServerError {
			n.Code = CodeInternal
		}
	}
	if n.Message == "" {
		n.Message = http.StatusText(e.StatusCode)
	}
	return n
}

// Sink shows notices to the user.
type Sink interface {
	Notify(n Notice)
}

type SinkFunc func(Notice)

func (f SinkFunc) Notify(n Notice) { f(n) }

// LogSink writes notices to a zerolog logger at the matching level.
type LogSink struct {
	Log zerolog.Logger
}

func (s LogSink) Notify(n Notice) {
	var ev *zerolog.Event
	switch n.Level {
	case LevelError:
		ev = s.Log.Error()
	case LevelWarn:
		ev = s.Log.Warn()
	default:
		ev = s.Log.Info()
	}
	ev.Str("code", n.Code).Msg(n.Message)
}

// WriterSink prints one notice per line, the way the CLI shows them.
type WriterSink struct {
	W io.Writer
}

func (s WriterSink) Notify(n Notice) {
	fmt.Fprintf(s.W, "%s: %s\n", n.Level, n.Message)
}

// Report translates err and hands it to sink; nil errors are ignored.
func Report(sink Sink, err error) bool {
	if err == nil {
		return false
	}
	sink.Notify(Translate(err))
	return true
}
