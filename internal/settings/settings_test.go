package settings

import (
	"path/filepath"
	"testing"

	"github.com/bilyardvmetro/posts-feed-sync/internal/strategy"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	bolt, err := Open(filepath.Join(t.TempDir(), "nested", "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = bolt.Close() })
	return map[string]Store{"bolt": bolt, "memory": NewMemory()}
}

func TestStore_Token(t *testing.T) {
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			tok, err := st.Token()
			require.NoError(t, err)
			assert.Empty(t, tok)

			require.NoError(t, st.SetToken("alice"))
			tok, err = st.Token()
			require.NoError(t, err)
			assert.Equal(t, "alice", tok)

			require.NoError(t, st.ClearToken())
			tok, err = st.Token()
			require.NoError(t, err)
			assert.Empty(t, tok)
		})
	}
}

func TestStore_Settings(t *testing.T) {
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := st.Settings()
			require.ErrorIs(t, err, ErrNoSettings)

			got, err := Load(st)
			require.NoError(t, err)
			assert.Equal(t, Defaults(), got)

			want := Settings{APIURL: "http://feed.test", PageSize: 25, DefaultStrategy: strategy.Popular}
			require.NoError(t, st.SaveSettings(want))
			got, err = Load(st)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestBoltStore_Persists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	st, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, st.SetToken("bob"))
	require.NoError(t, st.SaveSettings(Settings{PageSize: 3}))
	require.NoError(t, st.Close())

	st, err = Open(path)
	require.NoError(t, err)
	defer st.Close()
	tok, err := st.Token()
	require.NoError(t, err)
	assert.Equal(t, "bob", tok)

	got, err := Load(st)
	require.NoError(t, err)
	assert.Equal(t, 3, got.PageSize)
	assert.Equal(t, Defaults().APIURL, got.APIURL)
	assert.Equal(t, strategy.Default, got.DefaultStrategy)
}

func TestNormalize_UnknownStrategy(t *testing.T) {
	s := Settings{DefaultStrategy: "trending"}.Normalize()
	assert.Equal(t, strategy.Default, s.DefaultStrategy)
}
