package unpack

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const srtPayload = "1\n00:00:01,000 --> 00:00:02,500\nhello\n"

func buildZip(t *testing.T, entries map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, data := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func buildGzip(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	_, err := gw.Write(data)
	require.NoError(t, err)
	require.NoError(t, gw.Close())
	return buf.Bytes()
}

func TestExtractPlainFile(t *testing.T) {
	files := Extract([]byte(srtPayload), "movie.srt", Options{})
	require.Len(t, files, 1)

	assert.Equal(t, "movie.srt", files[0].Name)
	assert.Equal(t, "srt", files[0].Ext)
	require.NotNil(t, files[0].Sub)
	assert.Len(t, files[0].Sub.Cues, 1)
}

func TestExtractZip(t *testing.T) {
	data := buildZip(t, map[string][]byte{
		"episode.srt": []byte(srtPayload),
		"readme.txt":  []byte("not a subtitle"),
	})
	files := Extract(data, "pack.zip", Options{})
	require.Len(t, files, 2)

	byName := map[string]*File{}
	for _, f := range files {
		byName[f.Name] = f
	}
	require.Contains(t, byName, "episode.srt")
	assert.NotNil(t, byName["episode.srt"].Sub)
	assert.Nil(t, byName["readme.txt"].Sub)
}

func TestExtractNestedArchives(t *testing.T) {
	inner := buildZip(t, map[string][]byte{"inner.srt": []byte(srtPayload)})
	outer := buildZip(t, map[string][]byte{"inner.zip": inner})

	files := Extract(outer, "outer.zip", Options{})
	require.Len(t, files, 1)
	assert.Equal(t, "inner.zip/inner.srt", files[0].Name)
	assert.NotNil(t, files[0].Sub)
}

func TestExtractGzip(t *testing.T) {
	files := Extract(buildGzip(t, []byte(srtPayload)), "movie.srt.gz", Options{})
	require.Len(t, files, 1)
	assert.Equal(t, "movie.srt", files[0].Name)
	assert.NotNil(t, files[0].Sub)
}

func TestExtractTar(t *testing.T) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "sub/episode.srt", Mode: 0o644, Size: int64(len(srtPayload))}))
	_, err := tw.Write([]byte(srtPayload))
	require.NoError(t, err)
	require.NoError(t, tw.Close())

	files := Extract(buf.Bytes(), "bundle.tar", Options{})
	require.Len(t, files, 1)
	assert.Equal(t, "sub/episode.srt", files[0].Name)
}

func TestExtractCorruptArchiveKeptRaw(t *testing.T) {
	// valid zip magic but truncated body
	data := append([]byte("PK\x03\x04"), bytes.Repeat([]byte{0}, 30)...)
	files := Extract(data, "broken.zip", Options{})
	require.Len(t, files, 1)
	assert.Equal(t, "broken.zip", files[0].Name)
	assert.Equal(t, data, files[0].Data)
}

func TestExtractDepthCap(t *testing.T) {
	payload := []byte(srtPayload)
	data := buildZip(t, map[string][]byte{"f.srt": payload})
	for i := 0; i < maxDepth+2; i++ {
		data = buildZip(t, map[string][]byte{"n.zip": data})
	}

	files := Extract(data, "deep.zip", Options{})
	require.Len(t, files, 1)
	// the innermost archive is kept unexpanded once the cap is hit
	assert.Equal(t, "zip", files[0].Ext)
}

func TestExtractRarInsideZip(t *testing.T) {
	outer := buildZip(t, map[string][]byte{"inner.rar": rarFixture})

	files := Extract(outer, "pack.zip", Options{})
	require.Len(t, files, 1)
	assert.Equal(t, "inner.rar/inner.srt", files[0].Name)
	assert.Equal(t, []byte(srtPayload), files[0].Data)
	require.NotNil(t, files[0].Sub)
	assert.Len(t, files[0].Sub.Cues, 1)
}

func TestExtractSevenZipInsideZip(t *testing.T) {
	outer := buildZip(t, map[string][]byte{"inner.7z": sevenZipFixture})

	files := Extract(outer, "pack.zip", Options{})
	require.Len(t, files, 1)
	assert.Equal(t, "inner.7z/inner.srt", files[0].Name)
	assert.Equal(t, []byte(srtPayload), files[0].Data)
	require.NotNil(t, files[0].Sub)
}

func TestExtractSevenZip(t *testing.T) {
	files := Extract(sevenZipFixture, "pack.7z", Options{})
	require.Len(t, files, 1)
	assert.Equal(t, "inner.srt", files[0].Name)
	require.NotNil(t, files[0].Sub)
}

func TestExtractEmptyName(t *testing.T) {
	files := Extract([]byte("just bytes"), "", Options{})
	require.Len(t, files, 1)
	assert.Equal(t, "payload", files[0].Name)
}

// rarFixture is a store-mode RAR5 archive holding inner.srt with the
// srtPayload body.
var rarFixture = []byte{
	0x52, 0x61, 0x72, 0x21, 0x1a, 0x07, 0x01, 0x00, 0xc5, 0x1a, 0x33, 0x32,
	0x03, 0x01, 0x00, 0x00, 0x3c, 0x92, 0xca, 0x5d, 0x16, 0x02, 0x02, 0x26,
	0x04, 0x26, 0x00, 0xc5, 0xd9, 0xd4, 0x37, 0x00, 0x01, 0x09, 0x69, 0x6e,
	0x6e, 0x65, 0x72, 0x2e, 0x73, 0x72, 0x74, 0x31, 0x0a, 0x30, 0x30, 0x3a,
	0x30, 0x30, 0x3a, 0x30, 0x31, 0x2c, 0x30, 0x30, 0x30, 0x20, 0x2d, 0x2d,
	0x3e, 0x20, 0x30, 0x30, 0x3a, 0x30, 0x30, 0x3a, 0x30, 0x32, 0x2c, 0x35,
	0x30, 0x30, 0x0a, 0x68, 0x65, 0x6c, 0x6c, 0x6f, 0x0a, 0x19, 0xb2, 0x3a,
	0x35, 0x03, 0x05, 0x00, 0x00,
}

// sevenZipFixture is a store-mode 7z archive holding inner.srt with the
// srtPayload body.
var sevenZipFixture = []byte{
	0x37, 0x7a, 0xbc, 0xaf, 0x27, 0x1c, 0x00, 0x03, 0x78, 0x20, 0xd9, 0x1d,
	0x26, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x62, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x6e, 0xf3, 0xc2, 0x6f, 0x31, 0x0a, 0x30, 0x30,
	0x3a, 0x30, 0x30, 0x3a, 0x30, 0x31, 0x2c, 0x30, 0x30, 0x30, 0x20, 0x2d,
	0x2d, 0x3e, 0x20, 0x30, 0x30, 0x3a, 0x30, 0x30, 0x3a, 0x30, 0x32, 0x2c,
	0x35, 0x30, 0x30, 0x0a, 0x68, 0x65, 0x6c, 0x6c, 0x6f, 0x0a, 0x01, 0x04,
	0x06, 0x00, 0x01, 0x09, 0x26, 0x00, 0x07, 0x0b, 0x01, 0x00, 0x01, 0x01,
	0x00, 0x0c, 0x26, 0x00, 0x08, 0x0a, 0x01, 0xc5, 0xd9, 0xd4, 0x37, 0x00,
	0x00, 0x05, 0x01, 0x11, 0x15, 0x00, 0x69, 0x00, 0x6e, 0x00, 0x6e, 0x00,
	0x65, 0x00, 0x72, 0x00, 0x2e, 0x00, 0x73, 0x00, 0x72, 0x00, 0x74, 0x00,
	0x00, 0x00, 0x14, 0x0a, 0x01, 0x00, 0x23, 0xb0, 0x07, 0xcf, 0x46, 0x38,
	0xdd, 0x01, 0x12, 0x0a, 0x01, 0x00, 0x23, 0xb0, 0x07, 0xcf, 0x46, 0x38,
	0xdd, 0x01, 0x13, 0x0a, 0x01, 0x00, 0xfb, 0x34, 0x08, 0xcf, 0x46, 0x38,
	0xdd, 0x01, 0x15, 0x06, 0x01, 0x00, 0x20, 0x80, 0xa4, 0x81, 0x00, 0x00,
}
