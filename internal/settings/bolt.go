package settings

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	bucketSession  = "session"
	bucketSettings = "settings"

	keyToken    = "token"
	keySettings = "current"
)

var initDB = map[string]func(*bolt.Tx) error{
	"initialize session table": func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketSession))
		return err
	},
	"initialize settings table": func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketSettings))
		return err
	},
}

type boltStore struct {
	db *bolt.DB
}

// Open opens (creating if needed) the state file at path.
func Open(path string) (Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, fn := range initDB {
			if err := fn(tx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &boltStore{db: db}, nil
}

// DefaultPath is ~/.feedctl/state.db, or a file in the working directory without a home.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "feedctl.db"
	}
	return filepath.Join(home, ".feedctl", "state.db")
}

func (s *boltStore) Token() (string, error) {
	var tok string
	err := s.db.View(func(tx *bolt.Tx) error {
		tok = string(tx.Bucket([]byte(bucketSession)).Get([]byte(keyToken)))
		return nil
	})
	return tok, err
}

func (s *boltStore) SetToken(token string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketSession)).Put([]byte(keyToken), []byte(token))
	})
}

func (s *boltStore) ClearToken() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketSession)).Delete([]byte(keyToken))
	})
}

func (s *boltStore) Settings() (Settings, error) {
	var out Settings
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(bucketSettings)).Get([]byte(keySettings))
		if v == nil {
			return ErrNoSettings
		}
		return json.Unmarshal(v, &out)
	})
	return out, err
}

func (s *boltStore) SaveSettings(st Settings) error {
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketSettings)).Put([]byte(keySettings), data)
	})
}

func (s *boltStore) Close() error { return s.db.Close() }
