// Package settings keeps the client-side session token and preferences.
package settings

import (
	"errors"

	"github.com/bilyardvmetro/posts-feed-sync/internal/feed"
	"github.com/bilyardvmetro/posts-feed-sync/internal/strategy"
)

// ErrNoSettings is returned by Store.Settings when nothing has been saved yet.
var ErrNoSettings = errors.New("no saved settings")

type Settings struct {
	APIURL          string            `json:"apiUrl"`
	PageSize        int               `json:"pageSize"`
	DefaultStrategy strategy.Strategy `json:"defaultStrategy"`
}

func Defaults() Settings {
	return Settings{
		APIURL:          "http://localhost:8080",
		PageSize:        feed.DefaultPageSize,
		DefaultStrategy: strategy.Default,
	}
}

// Normalize fills zero fields from Defaults and drops an unknown strategy.
func (s Settings) Normalize() Settings {
	d := Defaults()
	if s.APIURL == "" {
		s.APIURL = d.APIURL
	}
	if s.PageSize <= 0 {
		s.PageSize = d.PageSize
	}
	if _, ok := strategy.ConfigOf(s.DefaultStrategy); !ok {
		s.DefaultStrategy = d.DefaultStrategy
	}
	return s
}

// Store persists the token and settings. Token satisfies auth.TokenSource.
type Store interface {
	Token() (string, error)
	SetToken(token string) error
	ClearToken() error
	Settings() (Settings, error)
	SaveSettings(s Settings) error
	Close() error
}

// Load returns saved settings normalized, or Defaults when nothing is saved.
func Load(st Store) (Settings, error) {
	s, err := st.Settings()
	if errors.Is(err, ErrNoSettings) {
		return Defaults(), nil
	}
	if err != nil {
		return Settings{}, err
	}
	return s.Normalize(), nil
}
