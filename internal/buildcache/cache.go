// Package buildcache implements an incremental-compile cache: a
// compilation unit's source bytes are hashed with blake2b, and the
// resulting digest keys a bbolt-backed store of the unit's serialized
// bytecode+constant-pool result, so a second compile of unchanged source
// skips straight to the cached image.
package buildcache

import (
	"fmt"

	"go.etcd.io/bbolt"
	"golang.org/x/crypto/blake2b"
)

var bucketName = []byte("lethe-compile-cache-v1")

// Key is a compilation unit's content digest.
type Key [blake2b.Size256]byte

// Digest computes source's cache key. Two units with byte-identical
// source, regardless of provenance, collapse to the same entry.
func Digest(source []byte) Key {
	return blake2b.Sum256(source)
}

func (k Key) String() string { return fmt.Sprintf("%x", k[:]) }

// Cache wraps a bbolt database file as a get/put store keyed by Digest.
type Cache struct {
	db *bbolt.DB
}

// Open opens (creating if absent) the cache database at path.
func Open(path string) (*Cache, error) {
	db, err := bbolt.Open(path, 0o644, nil)
	if err != nil {
		return nil, fmt.Errorf("buildcache: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("buildcache: init bucket: %w", err)
	}
	return &Cache{db: db}, nil
}

// Close releases the underlying database file.
func (c *Cache) Close() error { return c.db.Close() }

// Get returns the cached bytes for key, or (nil, false) on a miss. The
// returned slice is a copy safe to retain past the enclosing transaction.
func (c *Cache) Get(key Key) ([]byte, bool) {
	var out []byte
	_ = c.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketName).Get(key[:])
		if v != nil {
			out = append([]byte(nil), v...)
		}
		return nil
	})
	return out, out != nil
}

// Put stores value under key, overwriting any previous entry.
func (c *Cache) Put(key Key, value []byte) error {
	return c.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName).Put(key[:], value)
	})
}

// Delete evicts key, used when a unit's cached result is known stale
// (e.g. a dependency's ABI changed) without invalidating the whole cache.
func (c *Cache) Delete(key Key) error {
	return c.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName).Delete(key[:])
	})
}
