package cache

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

const (
	// DefaultCacheDir is the default cache directory name
	DefaultCacheDir = ".packstream-cache"

	// bucketName is the BoltDB bucket name for build records
	bucketName = "builds"
)

// History stores build records in BoltDB, oldest first
type History struct {
	db   *bbolt.DB
	root string
}

// HistoryStats summarize the stored records
type HistoryStats struct {
	Records      int
	Failed       int
	EmittedBytes int64
	Last         time.Time
	DiskSize     int64
}

// OpenHistory opens the history database in cacheDir.
// If cacheDir is empty, uses DefaultCacheDir in current working directory
func OpenHistory(cacheDir string) (*History, error) {
	if cacheDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}

		cacheDir = filepath.Join(cwd, DefaultCacheDir)
	}

	// Ensure cache directory exists
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	dbPath := filepath.Join(cacheDir, "history.db")
	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	// Create bucket if it doesn't exist
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create history bucket: %w", err)
	}

	return &History{
		db:   db,
		root: cacheDir,
	}, nil
}

// Close closes the history database
func (h *History) Close() error {
	if h.db != nil {
		return h.db.Close()
	}

	return nil
}

// Record appends rec
func (h *History) Record(rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode build record: %w", err)
	}

	err = h.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))

		seq, err := b.NextSequence()
		if err != nil {
			return err
		}

		return b.Put(itob(seq), data)
	})
	if err != nil {
		return fmt.Errorf("failed to store build record: %w", err)
	}

	return nil
}

// List returns up to limit records, newest first. A limit of zero or less returns all.
func (h *History) List(limit int) ([]Record, error) {
	var records []Record

	err := h.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(bucketName)).Cursor()

		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(records) >= limit {
				break
			}

			var rec Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("corrupt build record %d: %w", binary.BigEndian.Uint64(k), err)
			}

			records = append(records, rec)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return records, nil
}

// Stats returns history statistics
func (h *History) Stats() (HistoryStats, error) {
	var stats HistoryStats

	records, err := h.List(0)
	if err != nil {
		return stats, err
	}

	stats.Records = len(records)
	for i, rec := range records {
		if !rec.Success {
			stats.Failed++
		}

		stats.EmittedBytes += rec.EmittedBytes()

		if i == 0 {
			stats.Last = rec.Timestamp
		}
	}

	err = h.db.View(func(tx *bbolt.Tx) error {
		stats.DiskSize = tx.Size()
		return nil
	})

	return stats, err
}

// Clear removes all build records
func (h *History) Clear() error {
	err := h.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket([]byte(bucketName)); err != nil {
			return err
		}

		// Recreate bucket
		_, err := tx.CreateBucket([]byte(bucketName))
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}

	return nil
}

// Dir returns the directory holding the history database
func (h *History) Dir() string {
	return h.root
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)

	return b
}
