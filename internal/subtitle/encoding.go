package subtitle

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
)

// Detection results below this confidence are ignored in favor of the
// configured default encoding.
const detectConfidence = 65

// decodeText converts raw payload bytes to UTF-8 text, returning the
// charset name that was used. The order is: BOM, confident auto-detection,
// configured default, raw bytes as a last resort.
func decodeText(data []byte, opts Options) (string, string) {
	if text, name, ok := decodeBOM(data); ok {
		return text, name
	}

	charset := ""
	if opts.AutoDetect {
		if res, err := chardet.NewTextDetector().DetectBest(data); err == nil && res.Confidence >= detectConfidence {
			charset = res.Charset
		}
	}
	if charset == "" {
		charset = opts.DefaultEncoding
	}
	if charset == "" {
		charset = "windows-1252"
	}

	if text, ok := decodeCharset(data, charset); ok {
		return text, charset
	}
	// Unknown or broken charset: if the bytes happen to be valid UTF-8 use
	// them as-is, otherwise force the safe single-byte default.
	if utf8.Valid(data) {
		return string(data), "UTF-8"
	}
	if text, ok := decodeCharset(data, "windows-1252"); ok {
		return text, "windows-1252"
	}
	return string(data), charset
}

func decodeBOM(data []byte) (string, string, bool) {
	switch {
	case bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}):
		return string(data[3:]), "UTF-8", true
	case bytes.HasPrefix(data, []byte{0xFF, 0xFE}):
		if text, ok := decodeWith(unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM), data); ok {
			return text, "UTF-16LE", true
		}
	case bytes.HasPrefix(data, []byte{0xFE, 0xFF}):
		if text, ok := decodeWith(unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM), data); ok {
			return text, "UTF-16BE", true
		}
	}
	return "", "", false
}

func decodeCharset(data []byte, name string) (string, bool) {
	canonical := strings.ToLower(strings.TrimSpace(name))
	// chardet reports a few names the html index does not know.
	switch canonical {
	case "utf-8", "utf8", "ascii", "us-ascii":
		if utf8.Valid(data) {
			return string(data), true
		}
		return "", false
	case "gb-18030":
		canonical = "gb18030"
	}

	enc, err := htmlindex.Get(canonical)
	if err != nil {
		enc, err = ianaindex.IANA.Encoding(canonical)
		if err != nil || enc == nil {
			return "", false
		}
	}
	return decodeWith(enc, data)
}

func decodeWith(enc encoding.Encoding, data []byte) (string, bool) {
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", false
	}
	return string(out), true
}
