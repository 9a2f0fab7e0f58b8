// Package unpack turns a downloaded payload into a flat list of files,
// opening archives recursively along the way. Zip, rar, 7z, tar and the
// common stream compressors are supported; anything unrecognized is kept
// as a single opaque file.
package unpack

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/bzip2"
	"compress/gzip"
	"io"
	"path"
	"strings"

	"github.com/bodgit/sevenzip"
	"github.com/gabriel-vasile/mimetype"
	"github.com/klauspost/compress/zstd"
	"github.com/nwaples/rardecode/v2"
	"github.com/sirupsen/logrus"
	"github.com/ulikunitz/xz"

	"substream/internal/subtitle"
)

const (
	// maxDepth caps archive nesting so a zip bomb of nested archives
	// cannot recurse forever.
	maxDepth = 5

	// maxParseSize is the largest payload eagerly parsed as a subtitle.
	maxParseSize = 2 << 20
)

// File is one extracted payload. Sub is set when the payload parsed as a
// subtitle during extraction.
type File struct {
	Name string
	Ext  string
	Data []byte
	Sub  *subtitle.Subtitle
}

// Options controls extraction and the eager subtitle parse.
type Options struct {
	SubtitleOptions subtitle.Options
	FallbackFPS     float64
}

type item struct {
	name  string
	data  []byte
	depth int
}

// Extract expands data into its contained files. suggestedName seeds the
// name of payloads that are not archives, and of entries inside stream
// compressors that carry no name of their own.
func Extract(data []byte, suggestedName string, opts Options) []*File {
	log := logrus.WithField("component", "unpack")

	var out []*File
	work := []item{{name: suggestedName, data: data, depth: 0}}

	for len(work) > 0 {
		it := work[0]
		work = work[1:]

		kind := mimetype.Detect(it.data)
		if it.depth >= maxDepth {
			out = append(out, newFile(it.name, it.data, opts))
			continue
		}

		children, err := expand(it, kind)
		if err != nil {
			log.WithFields(logrus.Fields{"name": it.name, "type": kind.String()}).
				WithError(err).Warn("archive extraction failed, keeping raw payload")
			out = append(out, newFile(it.name, it.data, opts))
			continue
		}
		if children == nil {
			// not an archive
			out = append(out, newFile(it.name, it.data, opts))
			continue
		}
		work = append(work, children...)
	}
	return out
}

// expand returns the entries contained in it, or nil when the payload is
// not an archive type.
func expand(it item, kind *mimetype.MIME) ([]item, error) {
	switch {
	case kind.Is("application/zip"):
		return expandZip(it)
	case kind.Is("application/x-rar-compressed"):
		return expandRar(it)
	case kind.Is("application/x-7z-compressed"):
		return expand7z(it)
	case kind.Is("application/x-tar"):
		return expandTar(it)
	case kind.Is("application/gzip"):
		return expandStream(it, func(r io.Reader) (io.Reader, error) {
			return gzip.NewReader(r)
		})
	case kind.Is("application/x-xz"):
		return expandStream(it, func(r io.Reader) (io.Reader, error) {
			return xz.NewReader(r)
		})
	case kind.Is("application/x-bzip2"):
		return expandStream(it, func(r io.Reader) (io.Reader, error) {
			return bzip2.NewReader(r), nil
		})
	case kind.Is("application/zstd"):
		return expandStream(it, func(r io.Reader) (io.Reader, error) {
			return zstd.NewReader(r)
		})
	}
	return nil, nil
}

func expandZip(it item) ([]item, error) {
	zr, err := zip.NewReader(bytes.NewReader(it.data), int64(len(it.data)))
	if err != nil {
		return nil, err
	}
	var children []item
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, err
		}
		children = append(children, childItem(it, f.Name, data))
	}
	return children, nil
}

func expandRar(it item) ([]item, error) {
	rr, err := rardecode.NewReader(bytes.NewReader(it.data))
	if err != nil {
		return nil, err
	}
	var children []item
	for {
		hdr, err := rr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if hdr.IsDir {
			continue
		}
		data, err := io.ReadAll(rr)
		if err != nil {
			return nil, err
		}
		children = append(children, childItem(it, hdr.Name, data))
	}
	return children, nil
}

func expand7z(it item) ([]item, error) {
	sr, err := sevenzip.NewReader(bytes.NewReader(it.data), int64(len(it.data)))
	if err != nil {
		return nil, err
	}
	var children []item
	for _, f := range sr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, err
		}
		children = append(children, childItem(it, f.Name, data))
	}
	return children, nil
}

func expandTar(it item) ([]item, error) {
	tr := tar.NewReader(bytes.NewReader(it.data))
	var children []item
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, err
		}
		children = append(children, childItem(it, hdr.Name, data))
	}
	return children, nil
}

// expandStream handles single-entry compressors. The entry keeps the
// outer name minus its compression suffix.
func expandStream(it item, open func(io.Reader) (io.Reader, error)) ([]item, error) {
	r, err := open(bytes.NewReader(it.data))
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSuffix(it.name, path.Ext(it.name))
	if name == "" {
		name = it.name
	}
	return []item{{name: name, data: data, depth: it.depth + 1}}, nil
}

// childItem prefixes entries of a nested archive with the enclosing
// entry's name so files inside nested archives stay distinguishable.
// Entries of the outermost payload keep their own names.
func childItem(parent item, name string, data []byte) item {
	name = path.Clean(strings.ReplaceAll(name, `\`, "/"))
	name = strings.TrimPrefix(name, "/")
	if parent.depth > 0 && parent.name != "" {
		name = path.Join(parent.name, name)
	}
	return item{name: name, data: data, depth: parent.depth + 1}
}

func newFile(name string, data []byte, opts Options) *File {
	if name == "" {
		name = "payload"
	}
	f := &File{
		Name: name,
		Ext:  strings.TrimPrefix(strings.ToLower(path.Ext(name)), "."),
		Data: data,
	}
	if len(data) > 0 && len(data) <= maxParseSize {
		if sub, err := subtitle.Load(data, opts.SubtitleOptions, opts.FallbackFPS); err == nil {
			f.Sub = sub
		}
	}
	return f
}
