package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	bolt "go.etcd.io/bbolt"
)

// IndexFile is the bbolt index name inside the repository directory
const IndexFile = "index.db"

// Bucket names
var (
	EntriesBucket  = []byte("entries")  // path -> Entry JSON
	RetainedBucket = []byte("retained") // path -> Entry JSON, untracked with keepBlob
	MetaBucket     = []byte("meta")     // version, last change
)

// Meta keys
var (
	MetaVersion  = []byte("version")
	MetaModified = []byte("modified")
)

// lockTimeout bounds how long Open waits for another kitty process
const lockTimeout = 5 * time.Second

// BoltStore keeps the index in a bbolt database
type BoltStore struct {
	db *bolt.DB
}

var _ Store = (*BoltStore)(nil)

// OpenBolt opens or creates the index at path
func OpenBolt(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: lockTimeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}

	s := &BoltStore{db: db}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// initialize creates the bucket structure on first open
func (s *BoltStore) initialize() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{EntriesBucket, RetainedBucket, MetaBucket} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}

		meta := tx.Bucket(MetaBucket)
		if meta.Get(MetaVersion) != nil {
			return nil
		}
		if err := meta.Put(MetaVersion, []byte("1")); err != nil {
			return err
		}
		return touch(tx)
	})
}

// Path returns the index file path
func (s *BoltStore) Path() string {
	return s.db.Path()
}

func touch(tx *bolt.Tx) error {
	modified, _ := time.Now().MarshalBinary()
	return tx.Bucket(MetaBucket).Put(MetaModified, modified)
}

// Track inserts or replaces an entry
func (s *BoltStore) Track(ctx context.Context, e Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(EntriesBucket).Put([]byte(e.Path), data); err != nil {
			return fmt.Errorf("failed to store entry: %w", err)
		}
		if err := tx.Bucket(RetainedBucket).Delete([]byte(e.Path)); err != nil {
			return err
		}
		return touch(tx)
	})
}

// Lookup returns a single entry
func (s *BoltStore) Lookup(ctx context.Context, path string) (*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var entry *Entry
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(EntriesBucket).Get([]byte(path))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrNotTracked, path)
		}
		entry = &Entry{}
		return json.Unmarshal(data, entry)
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Untrack removes an entry, moving it to the retained bucket with keepBlob
func (s *BoltStore) Untrack(ctx context.Context, path string, keepBlob bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		entries := tx.Bucket(EntriesBucket)
		data := entries.Get([]byte(path))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrNotTracked, path)
		}
		if keepBlob {
			// data is only valid for the life of the transaction; Put copies it
			if err := tx.Bucket(RetainedBucket).Put([]byte(path), data); err != nil {
				return err
			}
		}
		if err := entries.Delete([]byte(path)); err != nil {
			return fmt.Errorf("failed to remove entry: %w", err)
		}
		return touch(tx)
	})
}

// Entries returns all tracked entries. bbolt iterates keys in byte order,
// which is path order.
func (s *BoltStore) Entries(ctx context.Context) ([]Entry, error) {
	return s.list(ctx, EntriesBucket)
}

// Retained returns entries untracked with keepBlob
func (s *BoltStore) Retained(ctx context.Context) ([]Entry, error) {
	return s.list(ctx, RetainedBucket)
}

func (s *BoltStore) list(ctx context.Context, bucket []byte) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var entries []Entry
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).ForEach(func(k, v []byte) error {
			var entry Entry
			if err := json.Unmarshal(v, &entry); err != nil {
				return fmt.Errorf("corrupt entry %q: %w", k, err)
			}
			entries = append(entries, entry)
			return nil
		})
	})
	return entries, err
}

// Modified returns when an entry was last tracked or untracked
func (s *BoltStore) Modified() (time.Time, error) {
	var modified time.Time
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(MetaBucket).Get(MetaModified)
		if data == nil {
			return fmt.Errorf("modified time not found")
		}
		return modified.UnmarshalBinary(data)
	})
	return modified, err
}

// Compact creates a compacted copy of the index and swaps it in.
func (s *BoltStore) Compact() error {
	srcPath := s.db.Path()
	tmpPath := srcPath + ".compact"

	dst, err := bolt.Open(tmpPath, 0600, nil)
	if err != nil {
		return fmt.Errorf("failed to create compact index: %w", err)
	}

	err = s.db.View(func(srcTx *bolt.Tx) error {
		return dst.Update(func(dstTx *bolt.Tx) error {
			return srcTx.ForEach(func(name []byte, srcBucket *bolt.Bucket) error {
				dstBucket, err := dstTx.CreateBucketIfNotExists(name)
				if err != nil {
					return err
				}
				return srcBucket.ForEach(func(k, v []byte) error {
					return dstBucket.Put(k, v)
				})
			})
		})
	})
	if err != nil {
		dst.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to copy index: %w", err)
	}

	if err := dst.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close compact index: %w", err)
	}
	if err := s.db.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close index: %w", err)
	}

	// rename is atomic; a crash leaves either the old or the compacted index
	renameErr := os.Rename(tmpPath, srcPath)
	if renameErr != nil {
		os.Remove(tmpPath)
	}

	s.db, err = bolt.Open(srcPath, 0600, &bolt.Options{Timeout: lockTimeout})
	if err != nil {
		return fmt.Errorf("failed to reopen index: %w", err)
	}
	if renameErr != nil {
		return fmt.Errorf("failed to replace index: %w", renameErr)
	}
	return nil
}

// Close closes the index
func (s *BoltStore) Close() error {
	return s.db.Close()
}
