// Package seencache tracks recently processed article links in a local
// BoltDB file so scheduled Reddit runs can skip known links before touching
// the network or the database. Entries expire after a TTL.
package seencache

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	linkBucket       = "links"
	expiryValueBytes = 8
)

// Options controls retention characteristics for the cache.
type Options struct {
	TTL             time.Duration
	CleanupInterval time.Duration
}

const (
	defaultTTL             = 5 * 24 * time.Hour
	defaultCleanupInterval = 12 * time.Hour
)

// Cache is a TTL'd set of link strings backed by BoltDB.
type Cache struct {
	db              *bolt.DB
	cleanupMu       sync.Mutex
	lastCleanup     atomic.Int64
	ttl             time.Duration
	cleanupInterval time.Duration
}

// Open initializes the cache file, creating parent directories as needed.
func Open(path string, opts Options) (*Cache, error) {
	if opts.TTL <= 0 {
		opts.TTL = defaultTTL
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = defaultCleanupInterval
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bbolt db: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(linkBucket))
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("init bucket: %w", err)
	}

	c := &Cache{
		db:              db,
		ttl:             opts.TTL,
		cleanupInterval: opts.CleanupInterval,
	}
	c.lastCleanup.Store(time.Now().Unix())
	return c, nil
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Seen reports whether the link was marked within the TTL.
func (c *Cache) Seen(link string) (bool, error) {
	if c == nil || c.db == nil {
		return false, nil
	}

	if err := c.maybeCleanupExpired(time.Now()); err != nil {
		return false, err
	}

	var exists bool
	err := c.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(linkBucket))
		if bucket == nil {
			return fmt.Errorf("link bucket missing")
		}

		key := []byte(link)
		value := bucket.Get(key)
		if value == nil {
			exists = false
			return nil
		}

		expiry, ok := decodeExpiry(value)
		if !ok || !expiry.After(time.Now()) {
			exists = false
			return bucket.Delete(key)
		}

		exists = true
		return nil
	})
	return exists, err
}

// Mark records the link as processed.
func (c *Cache) Mark(link string) error {
	if c == nil || c.db == nil {
		return nil
	}

	now := time.Now()
	if err := c.maybeCleanupExpired(now); err != nil {
		return err
	}

	return c.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(linkBucket))
		if bucket == nil {
			return fmt.Errorf("link bucket missing")
		}
		buf := make([]byte, expiryValueBytes)
		binary.BigEndian.PutUint64(buf, uint64(now.Add(c.ttl).Unix()))
		return bucket.Put([]byte(link), buf)
	})
}

// maybeCleanupExpired removes expired links on a fixed cadence to avoid unbounded growth.
func (c *Cache) maybeCleanupExpired(now time.Time) error {
	last := time.Unix(c.lastCleanup.Load(), 0)
	if now.Sub(last) < c.cleanupInterval {
		return nil
	}

	c.cleanupMu.Lock()
	defer c.cleanupMu.Unlock()

	last = time.Unix(c.lastCleanup.Load(), 0)
	if now.Sub(last) < c.cleanupInterval {
		return nil
	}

	err := c.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(linkBucket))
		if bucket == nil {
			return fmt.Errorf("link bucket missing")
		}

		cursor := bucket.Cursor()
		for k, v := cursor.First(); k != nil; k, v = cursor.Next() {
			expiry, ok := decodeExpiry(v)
			if !ok || !expiry.After(now) {
				if err := cursor.Delete(); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err == nil {
		c.lastCleanup.Store(now.Unix())
	}
	return err
}

func decodeExpiry(value []byte) (time.Time, bool) {
	if len(value) != expiryValueBytes {
		return time.Time{}, false
	}
	return time.Unix(int64(binary.BigEndian.Uint64(value)), 0), true
}
