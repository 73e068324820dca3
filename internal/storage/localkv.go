package storage

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"github.com/echocog/spiralmem/internal/storeerr"
)

// bucketName is the single bucket every key lives in; ordering within a
// bbolt bucket is byte-lexicographic, which is what makes prefix scan via
// Cursor.Seek correct.
var bucketName = []byte("kv")

// LocalKV is the embedded, single-process default backend (spec.md §4.A),
// grounded on the BoltDB (bbolt) transaction model: db.View for
// concurrent reads, db.Update for serialized, atomic writes.
type LocalKV struct {
	path string
	db   *bbolt.DB
}

// NewLocalKV constructs a LocalKV rooted at dir/spiralmem.db. Call Init
// to open the database.
func NewLocalKV(dir string) *LocalKV {
	return &LocalKV{path: filepath.Join(dir, "spiralmem.db")}
}

func (l *LocalKV) Init(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return storeerr.Wrap(storeerr.BackendUnavailable, "create storage dir", err)
	}
	db, err := bbolt.Open(l.path, 0o600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return storeerr.Wrap(storeerr.BackendUnavailable, "open bbolt db", err)
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	}); err != nil {
		db.Close()
		return storeerr.Wrap(storeerr.BackendUnavailable, "create bucket", err)
	}
	l.db = db
	return nil
}

func (l *LocalKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	var ok bool
	err := l.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		v := b.Get([]byte(key))
		if v != nil {
			value = append([]byte(nil), v...)
			ok = true
		}
		return nil
	})
	if err != nil {
		return nil, false, storeerr.Wrap(storeerr.BackendUnavailable, "get", err)
	}
	return value, ok, nil
}

func (l *LocalKV) Set(ctx context.Context, key string, value []byte) error {
	err := l.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName).Put([]byte(key), value)
	})
	if err != nil {
		return storeerr.Wrap(storeerr.BackendUnavailable, "set", err)
	}
	return nil
}

func (l *LocalKV) Del(ctx context.Context, key string) error {
	err := l.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName).Delete([]byte(key))
	})
	if err != nil {
		return storeerr.Wrap(storeerr.BackendUnavailable, "del", err)
	}
	return nil
}

func (l *LocalKV) Keys(ctx context.Context, prefix string) ([]string, error) {
	var out []string
	pfx := []byte(prefix)
	err := l.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketName).Cursor()
		for k, _ := c.Seek(pfx); k != nil && bytes.HasPrefix(k, pfx); k, _ = c.Next() {
			out = append(out, string(k))
		}
		return nil
	})
	if err != nil {
		return nil, storeerr.Wrap(storeerr.BackendUnavailable, "keys", err)
	}
	return out, nil
}

// AtomicIncr relies on bbolt's serialized Update transactions for
// atomicity — the read-modify-write happens inside a single writer
// transaction, matching spec.md §4.A's "synthesize via a lock" fallback.
func (l *LocalKV) AtomicIncr(ctx context.Context, key string, delta int64) (int64, error) {
	var result int64
	err := l.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		cur := int64(0)
		if v := b.Get([]byte(key)); v != nil {
			parsed, err := decodeInt64(v)
			if err != nil {
				return err
			}
			cur = parsed
		}
		cur += delta
		result = cur
		return b.Put([]byte(key), encodeInt64(cur))
	})
	if err != nil {
		return 0, storeerr.Wrap(storeerr.BackendUnavailable, "atomic_incr", err)
	}
	return result, nil
}

func (l *LocalKV) Close() error {
	if l.db == nil {
		return nil
	}
	return l.db.Close()
}

var _ Adapter = (*LocalKV)(nil)
