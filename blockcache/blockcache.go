// Package blockcache is a content-addressed cache of raw block bodies,
// keyed by block id. It exists for the upstream follower (external to
// the control/query core) to replay blocks during ResumeSync negotiation
// without re-fetching them from the network; control and query never read
// from it themselves. cmd/chain-index's demo mode stands in for that
// follower, caching each block it applies and evicting it once rolled
// back.
package blockcache

import (
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"rubin.dev/cix/chainindex"
)

var bucketBlocks = []byte("blocks_by_id")

// Cache wraps a bbolt database file holding raw block bytes.
type Cache struct {
	db *bolt.DB
}

// Open creates (or reuses) the bbolt file at path and ensures its bucket
// exists.
func Open(path string) (*Cache, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("blockcache: open: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketBlocks)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("blockcache: create bucket: %w", err)
	}
	return &Cache{db: db}, nil
}

func (c *Cache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Put stores the raw bytes of a block under its id. An existing entry for
// the same id is overwritten; blocks with different ids never replace
// each other, whatever their height.
func (c *Cache) Put(id chainindex.BlockID, raw []byte) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketBlocks).Put(id[:], raw)
	})
}

// Get returns the cached raw bytes for id, or ok=false if absent.
func (c *Cache) Get(id chainindex.BlockID) (raw []byte, ok bool, err error) {
	err = c.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketBlocks).Get(id[:])
		if v == nil {
			return nil
		}
		ok = true
		raw = append([]byte(nil), v...)
		return nil
	})
	return raw, ok, err
}

// Delete drops the cached block for id, if present. cmd/chain-index's demo
// mode calls it to evict a block once it has been rolled back.
func (c *Cache) Delete(id chainindex.BlockID) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketBlocks).Delete(id[:])
	})
}
