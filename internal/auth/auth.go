package auth

import (
	"context"
	"net/http"
	"strings"
)

// User: минимальная модель текущего пользователя.
type User struct {
	Name string
}

type ctxKey struct{}

var userKey ctxKey

// WithUser берёт имя из "Authorization: Bearer <name>" или из заголовка X-User
// и кладёт его в контекст запроса.
// В проде тут может быть JWT и полноценная валидация.
func WithUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u := bearer(r.Header.Get("Authorization"))
		if u == "" {
			u = strings.TrimSpace(r.Header.Get("X-User"))
		}
		if u == "" {
			// Гость: оставляем nil, читать ленту можно и гостю.
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(Into(r.Context(), &User{Name: u})))
	})
}

func Into(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// FromContext возвращает пользователя из контекста (или nil).
func FromContext(ctx context.Context) *User {
	if v := ctx.Value(userKey); v != nil {
		if u, ok := v.(*User); ok {
			return u
		}
	}
	return nil
}

// Name returns the viewer name, empty for guests.
func Name(ctx context.Context) string {
	if u := FromContext(ctx); u != nil {
		return u.Name
	}
	return ""
}

func bearer(h string) string {
	const prefix = "Bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}
	return ""
}
