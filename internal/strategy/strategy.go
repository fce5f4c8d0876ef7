package strategy

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Strategy selects which endpoint a listing view loads from and how it paginates.
type Strategy string

const (
	Regular   Strategy = "regular"
	Popular   Strategy = "popular"
	Explore   Strategy = "explore"
	Saved     Strategy = "saved"
	Community Strategy = "community"
	Comments  Strategy = "comments"
)

const Default = Regular

const scopeParam = "{scope}"

var ErrUnknown = errors.New("unknown strategy")

type Config struct {
	Endpoint         string
	UsesSessionToken bool
}

// ConfigOf is the fixed strategy table.
func ConfigOf(s Strategy) (Config, bool) {
	switch s {
	case Regular:
		return Config{Endpoint: "/posts"}, true
	case Popular:
		return Config{Endpoint: "/posts/popular", UsesSessionToken: true}, true
	case Explore:
		return Config{Endpoint: "/posts/explore", UsesSessionToken: true}, true
	case Saved:
		return Config{Endpoint: "/posts/saved"}, true
	case Community:
		return Config{Endpoint: "/communities/" + scopeParam + "/posts"}, true
	case Comments:
		return Config{Endpoint: "/posts/" + scopeParam + "/comments"}, true
	}
	return Config{}, false
}

func (c Config) Scoped() bool { return strings.Contains(c.Endpoint, scopeParam) }

func (c Config) Path(scope string) string {
	return strings.ReplaceAll(c.Endpoint, scopeParam, url.PathEscape(scope))
}

func Parse(s string) (Strategy, error) {
	st := Strategy(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := ConfigOf(st); !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknown, s)
	}
	return st, nil
}

// Target is a strategy bound to its scope (community id, post id), if any.
type Target struct {
	Strategy Strategy
	Scope    string
}

func (t Target) String() string {
	if t.Scope == "" {
		return string(t.Strategy)
	}
	return string(t.Strategy) + ":" + t.Scope
}

// Endpoint returns the strategy config and the concrete listing path.
func (t Target) Endpoint() (Config, string, error) {
	cfg, ok := ConfigOf(t.Strategy)
	if !ok {
		return Config{}, "", fmt.Errorf("%w: %q", ErrUnknown, t.Strategy)
	}
	if cfg.Scoped() && t.Scope == "" {
		return Config{}, "", fmt.Errorf("strategy %s requires a scope", t.Strategy)
	}
	return cfg, cfg.Path(t.Scope), nil
}
