// Package ids encodes download requests into URL-safe candidate ids.
//
// A candidate id must survive a round trip through query strings and path
// segments with no server-side session, so the JSON form of the request is
// base64url-encoded and the padding '=' is swapped for '.', which is not in
// the base64url alphabet and needs no escaping anywhere.
package ids

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

const padSubstitute = "."

// DownloadRequest is the structured request a provider needs to re-fetch an
// exact subtitle file later.
type DownloadRequest struct {
	URL        string            `json:"u"`
	File       string            `json:"f,omitempty"` // target file within the archive
	Lang       string            `json:"l,omitempty"`
	PostParams map[string]string `json:"p,omitempty"`
	FPS        float64           `json:"r,omitempty"`
}

// Encode serializes the request into a URL-safe token.
func Encode(req DownloadRequest) (string, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encode download request: %w", err)
	}
	return EncodeBytes(data), nil
}

// Decode reverses Encode.
func Decode(id string) (DownloadRequest, error) {
	data, err := DecodeBytes(id)
	if err != nil {
		return DownloadRequest{}, err
	}
	var req DownloadRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return DownloadRequest{}, fmt.Errorf("decode download request: %w", err)
	}
	return req, nil
}

// EncodeBytes base64url-encodes arbitrary bytes with '=' padding replaced.
// The output never contains '+', '/' or '='.
func EncodeBytes(data []byte) string {
	return strings.ReplaceAll(base64.URLEncoding.EncodeToString(data), "=", padSubstitute)
}

// DecodeBytes reverses EncodeBytes.
func DecodeBytes(s string) ([]byte, error) {
	data, err := base64.URLEncoding.DecodeString(strings.ReplaceAll(s, padSubstitute, "="))
	if err != nil {
		return nil, fmt.Errorf("decode id: %w", err)
	}
	return data, nil
}
