// Package diskcache is a content-addressed, TTL-scoped store for raw
// provider responses. Each logical entry is two sibling files under a
// region directory: a small JSON metadata record and the payload bytes.
package diskcache

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// State classifies the outcome of a cache lookup. Expiry is an ordinary
// state, not an error, so callers can fall back to stale data as a branch.
type State int

const (
	Missing State = iota
	Expired
	Found
)

func (s State) String() string {
	switch s {
	case Found:
		return "found"
	case Expired:
		return "expired"
	default:
		return "missing"
	}
}

// Entry is one cached payload with its metadata record.
type Entry struct {
	Key       string    `json:"key"` // original logical key, kept for diagnostics
	Timestamp time.Time `json:"timestamp"`
	Meta      string    `json:"meta,omitempty"` // opaque caller metadata
	Data      []byte    `json:"-"`
}

// Age returns how long ago the entry was written.
func (e *Entry) Age() time.Duration {
	return time.Since(e.Timestamp)
}

const (
	metaExt = ".meta"
	dataExt = ".dat"

	// Concurrent readers and writers of the same entry are tolerated by
	// retrying briefly on IO errors instead of locking.
	openRetryBudget = 400 * time.Millisecond
	openRetrySleep  = 25 * time.Millisecond
)

// Cache stores entries below root on the given filesystem.
type Cache struct {
	fs   afero.Fs
	root string
	log  *logrus.Entry
}

func New(fs afero.Fs, root string) *Cache {
	return &Cache{
		fs:   fs,
		root: root,
		log:  logrus.WithField("component", "cache"),
	}
}

// NewOS is a convenience constructor over the real filesystem.
func NewOS(root string) *Cache {
	return New(afero.NewOsFs(), root)
}

// Get looks up (region, key). A negative ttl disables the cache entirely
// and always reports Missing. An entry older than ttl is returned with
// state Expired so the caller can still serve it when a live fetch fails.
func (c *Cache) Get(region, key string, ttl time.Duration) (*Entry, State) {
	if ttl < 0 {
		return nil, Missing
	}
	base := c.entryPath(region, key)

	metaRaw, err := c.readRetry(base + metaExt)
	if err != nil {
		if !os.IsNotExist(err) {
			c.log.WithError(err).WithField("key", key).Warn("cache metadata unreadable")
		}
		return nil, Missing
	}
	var entry Entry
	if err := json.Unmarshal(metaRaw, &entry); err != nil {
		c.log.WithError(err).WithField("key", key).Warn("cache metadata corrupt")
		return nil, Missing
	}

	data, err := c.readRetry(base + dataExt)
	if err != nil {
		return nil, Missing
	}
	entry.Data = data

	if entry.Age() > ttl {
		return &entry, Expired
	}
	return &entry, Found
}

// Put writes a new entry, replacing any prior file pair. Both files are
// written to .tmp siblings and renamed into place, so a concurrent reader
// sees either the old payload or the new one, never a truncated file. The
// payload file lands first so a reader never sees metadata without data.
func (c *Cache) Put(region, key string, payload []byte, meta string) error {
	base := c.entryPath(region, key)
	if err := c.fs.MkdirAll(filepath.Dir(base), 0o755); err != nil {
		return fmt.Errorf("cache mkdir: %w", err)
	}

	if err := c.writeReplace(base+dataExt, payload); err != nil {
		return fmt.Errorf("cache write data: %w", err)
	}

	record, err := json.Marshal(Entry{Key: key, Timestamp: time.Now(), Meta: meta})
	if err != nil {
		return fmt.Errorf("cache marshal meta: %w", err)
	}
	if err := c.writeReplace(base+metaExt, record); err != nil {
		return fmt.Errorf("cache write meta: %w", err)
	}
	return nil
}

func (c *Cache) writeReplace(p string, data []byte) error {
	tmp := p + ".tmp"
	if err := afero.WriteFile(c.fs, tmp, data, 0o644); err != nil {
		return err
	}
	return c.fs.Rename(tmp, p)
}

// Purge removes every entry older than the given age across all regions.
// Returns the number of entries removed.
func (c *Cache) Purge(olderThan time.Duration) (int, error) {
	removed := 0
	cutoff := time.Now().Add(-olderThan)

	err := afero.Walk(c.fs, c.root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() || !strings.HasSuffix(p, metaExt) {
			return nil
		}
		raw, rerr := afero.ReadFile(c.fs, p)
		if rerr != nil {
			return nil
		}
		var entry Entry
		if json.Unmarshal(raw, &entry) != nil || entry.Timestamp.Before(cutoff) {
			_ = c.fs.Remove(p)
			_ = c.fs.Remove(strings.TrimSuffix(p, metaExt) + dataExt)
			removed++
		}
		return nil
	})
	if err != nil {
		return removed, fmt.Errorf("cache purge: %w", err)
	}
	if removed > 0 {
		c.log.WithField("removed", removed).Info("purged expired cache entries")
	}
	return removed, nil
}

// entryPath hashes the logical key and spreads entries over 4096
// subdirectories per region to bound directory fan-out.
func (c *Cache) entryPath(region, key string) string {
	sum := sha1.Sum([]byte(region + "\x00" + key))
	digest := hex.EncodeToString(sum[:])

	parts := []string{c.root}
	for _, seg := range strings.Split(path.Clean(region), "/") {
		if seg != "" && seg != "." {
			parts = append(parts, seg)
		}
	}
	parts = append(parts, digest[:3], digest[3:])
	return filepath.Join(parts...)
}

// readRetry reads a file, retrying briefly on sharing-violation class
// errors so concurrent writers of the same entry do not surface failures.
func (c *Cache) readRetry(p string) ([]byte, error) {
	deadline := time.Now().Add(openRetryBudget)
	for {
		data, err := afero.ReadFile(c.fs, p)
		if err == nil || os.IsNotExist(err) || time.Now().After(deadline) {
			return data, err
		}
		time.Sleep(openRetrySleep)
	}
}
