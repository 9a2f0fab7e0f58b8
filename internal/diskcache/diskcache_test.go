package diskcache

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemCache() *Cache {
	return New(afero.NewMemMapFs(), "cache")
}

func TestPutGet(t *testing.T) {
	c := newMemCache()
	require.NoError(t, c.Put("prov/pages", "http://example.org/a", []byte("payload"), "text/html"))

	entry, state := c.Get("prov/pages", "http://example.org/a", 60*time.Minute)
	require.Equal(t, Found, state)
	assert.Equal(t, []byte("payload"), entry.Data)
	assert.Equal(t, "http://example.org/a", entry.Key)
	assert.Equal(t, "text/html", entry.Meta)
}

func TestGetMissing(t *testing.T) {
	c := newMemCache()
	entry, state := c.Get("prov", "nope", time.Minute)
	assert.Equal(t, Missing, state)
	assert.Nil(t, entry)
}

func TestExpiredStillReturnsPayload(t *testing.T) {
	c := newMemCache()
	require.NoError(t, c.Put("prov", "k", []byte("stale"), ""))

	// Zero TTL: valid for 0 minutes from write time, so any age is expired.
	entry, state := c.Get("prov", "k", 0)
	require.Equal(t, Expired, state)
	assert.Equal(t, []byte("stale"), entry.Data)
}

func TestNegativeTTLBypassesCache(t *testing.T) {
	c := newMemCache()
	require.NoError(t, c.Put("prov", "k", []byte("x"), ""))

	entry, state := c.Get("prov", "k", -1)
	assert.Equal(t, Missing, state)
	assert.Nil(t, entry)
}

func TestRegionIsolation(t *testing.T) {
	c := newMemCache()
	require.NoError(t, c.Put("alpha", "same-key", []byte("a"), ""))
	require.NoError(t, c.Put("beta", "same-key", []byte("b"), ""))

	ea, _ := c.Get("alpha", "same-key", time.Minute)
	eb, _ := c.Get("beta", "same-key", time.Minute)
	assert.Equal(t, []byte("a"), ea.Data)
	assert.Equal(t, []byte("b"), eb.Data)
}

func TestOnDiskLayout(t *testing.T) {
	fs := afero.NewMemMapFs()
	c := New(fs, "cache")
	require.NoError(t, c.Put("prov/sub", "key", []byte("v"), ""))

	var meta, dat int
	err := afero.Walk(fs, "cache", func(p string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		require.Contains(t, p, "prov")
		require.Contains(t, p, "sub")
		switch {
		case strings.HasSuffix(p, ".meta"):
			meta++
		case strings.HasSuffix(p, ".dat"):
			dat++
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, meta)
	assert.Equal(t, 1, dat)
}

func TestReplaceEntry(t *testing.T) {
	c := newMemCache()
	require.NoError(t, c.Put("prov", "k", []byte("old"), ""))
	require.NoError(t, c.Put("prov", "k", []byte("new"), ""))

	entry, state := c.Get("prov", "k", time.Minute)
	require.Equal(t, Found, state)
	assert.Equal(t, []byte("new"), entry.Data)
}

func TestPurge(t *testing.T) {
	c := newMemCache()
	require.NoError(t, c.Put("prov", "keep", []byte("v"), ""))

	removed, err := c.Purge(time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 0, removed)

	removed, err = c.Purge(-time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, state := c.Get("prov", "keep", time.Minute)
	assert.Equal(t, Missing, state)
}

// openRecorder observes file opens so tests can interleave reads with an
// in-progress write.
type openRecorder struct {
	afero.Fs
	onOpenFile func(name string, flag int)
}

func (o *openRecorder) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	if o.onOpenFile != nil {
		o.onOpenFile(name, flag)
	}
	return o.Fs.OpenFile(name, flag, perm)
}

func TestPutReplacesEntryWithoutTearing(t *testing.T) {
	rec := &openRecorder{Fs: afero.NewMemMapFs()}
	c := New(rec, "cache")
	require.NoError(t, c.Put("prov", "k", []byte("old payload"), ""))

	// While the refresh is writing, the live entry files must never be
	// opened truncating, and a concurrent read must see a complete
	// payload, old or new.
	rec.onOpenFile = func(name string, flag int) {
		if flag&os.O_TRUNC == 0 {
			return
		}
		assert.True(t, strings.HasSuffix(name, ".tmp"),
			"truncating open of live entry file %s", name)

		entry, state := c.Get("prov", "k", time.Hour)
		require.Equal(t, Found, state)
		got := string(entry.Data)
		assert.Contains(t, []string{"old payload", "new payload"}, got)
	}
	require.NoError(t, c.Put("prov", "k", []byte("new payload"), ""))
	rec.onOpenFile = nil

	entry, state := c.Get("prov", "k", time.Hour)
	require.Equal(t, Found, state)
	assert.Equal(t, []byte("new payload"), entry.Data)
}

func TestPutLeavesNoTempFiles(t *testing.T) {
	fs := afero.NewMemMapFs()
	c := New(fs, "cache")
	require.NoError(t, c.Put("prov", "k", []byte("v"), ""))

	err := afero.Walk(fs, "cache", func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			assert.False(t, strings.HasSuffix(p, ".tmp"), "leftover temp file %s", p)
		}
		return nil
	})
	require.NoError(t, err)
}
