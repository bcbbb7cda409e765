package storage

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

const sessionBucket = "Sessions"

// SessionStorage persists fiber sessions in a bbolt bucket so signed-in
// users survive a restart.
type SessionStorage struct {
	db   *bbolt.DB
	done chan struct{}
}

// NewSessionStorage opens the session database under dataDir, creating
// it if needed, and starts the expiry sweeper.
func NewSessionStorage(dataDir string) (*SessionStorage, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %v", err)
	}

	dbPath := filepath.Join(dataDir, "sessions.db")

	// Open the database
	// It will be created if it doesn't exist.
	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open session database: %v", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(sessionBucket)); err != nil {
			return fmt.Errorf("create bucket %s: %s", sessionBucket, err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	s := &SessionStorage{db: db, done: make(chan struct{})}
	go s.gcLoop(10 * time.Minute)

	return s, nil
}

// Records carry an 8 byte big-endian expiry (unix nanoseconds, zero for
// no expiry) followed by the session payload.
func encodeRecord(val []byte, exp time.Duration) []byte {
	record := make([]byte, 8+len(val))
	if exp > 0 {
		binary.BigEndian.PutUint64(record, uint64(time.Now().Add(exp).UnixNano()))
	}
	copy(record[8:], val)
	return record
}

func decodeRecord(record []byte) ([]byte, bool) {
	if len(record) < 8 {
		return nil, false
	}
	expiry := binary.BigEndian.Uint64(record)
	if expiry > 0 && time.Now().UnixNano() > int64(expiry) {
		return nil, false
	}
	return record[8:], true
}

// Get returns the stored value, or nil for a missing or expired key.
func (s *SessionStorage) Get(key string) ([]byte, error) {
	var val []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		record := tx.Bucket([]byte(sessionBucket)).Get([]byte(key))
		if record == nil {
			return nil
		}
		decoded, ok := decodeRecord(record)
		if !ok {
			return nil
		}
		val = append([]byte(nil), decoded...)
		return nil
	})
	return val, err
}

// Set stores a value under key with the given lifetime.
func (s *SessionStorage) Set(key string, val []byte, exp time.Duration) error {
	record := encodeRecord(val, exp)
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(sessionBucket)).Put([]byte(key), record)
	})
}

// Delete removes a stored session.
func (s *SessionStorage) Delete(key string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(sessionBucket)).Delete([]byte(key))
	})
}

// Reset drops every stored session.
func (s *SessionStorage) Reset() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket([]byte(sessionBucket)); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists([]byte(sessionBucket))
		return err
	})
}

// Close stops the sweeper and closes the database.
func (s *SessionStorage) Close() error {
	close(s.done)
	return s.db.Close()
}

func (s *SessionStorage) gcLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.done:
			return
		}
	}
}

func (s *SessionStorage) sweep() {
	now := time.Now().UnixNano()
	s.db.Update(func(tx *bbolt.Tx) error {
		cursor := tx.Bucket([]byte(sessionBucket)).Cursor()
		for k, v := cursor.First(); k != nil; k, v = cursor.Next() {
			if len(v) < 8 {
				continue
			}
			expiry := binary.BigEndian.Uint64(v)
			if expiry > 0 && now > int64(expiry) {
				if err := cursor.Delete(); err != nil {
					return err
				}
			}
		}
		return nil
	})
}
