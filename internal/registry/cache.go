// Copyright 2025 The Snpm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package registry

import (
	"encoding/binary"
	"encoding/json"
	"path/filepath"
	"time"

	"github.com/boltdb/bolt"
	"github.com/pkg/errors"

	"github.com/snpm-io/snpm/internal/fs"
)

var infoBucket = []byte("registry-info")

// Cache is a persistent registry-metadata cache backed by a BoltDB file.
// Records are stamped on write; reads ignore records older than the cache's
// epoch, so stale metadata ages out without explicit invalidation.
type Cache struct {
	db    *bolt.DB
	epoch time.Time
}

// OpenCache opens (creating as needed) the cache database under dir. Records
// written more than maxAge ago are treated as absent.
func OpenCache(dir string, maxAge time.Duration) (*Cache, error) {
	if err := fs.EnsureDir(dir, 0777); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, "registry.db")
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open registry cache %q", path)
	}
	return &Cache{
		db:    db,
		epoch: time.Now().Add(-maxAge),
	}, nil
}

// GetInfo returns the cached document for name, if present and fresh.
func (c *Cache) GetInfo(name string) (*Info, bool) {
	var info *Info
	err := c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(infoBucket)
		if b == nil {
			return nil
		}
		rec := b.Get([]byte(name))
		if len(rec) < 8 {
			return nil
		}
		stamp := time.Unix(int64(binary.BigEndian.Uint64(rec[:8])), 0)
		if stamp.Before(c.epoch) {
			return nil
		}
		decoded := &Info{}
		if err := json.Unmarshal(rec[8:], decoded); err != nil {
			// A corrupt record is just a miss.
			return nil
		}
		info = decoded
		return nil
	})
	if err != nil || info == nil {
		return nil, false
	}
	return info, true
}

// PutInfo stores the document for name with a fresh stamp.
func (c *Cache) PutInfo(name string, info *Info) error {
	data, err := json.Marshal(info)
	if err != nil {
		return errors.Wrapf(err, "cannot encode registry document for %s", name)
	}
	rec := make([]byte, 8, 8+len(data))
	binary.BigEndian.PutUint64(rec, uint64(time.Now().Unix()))
	rec = append(rec, data...)

	return c.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(infoBucket)
		if err != nil {
			return err
		}
		return b.Put([]byte(name), rec)
	})
}

// Close releases the cache database.
func (c *Cache) Close() error {
	return errors.Wrap(c.db.Close(), "error closing registry cache")
}
