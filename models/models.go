package models

import "strings"

// MediaType distinguishes the two content categories the pipeline scores.
type MediaType string

const (
	MediaTypeMovie   MediaType = "movie"
	MediaTypeEpisode MediaType = "episode"
)

// VideoIdent is the normalized search identity derived from the caller's
// video. Provider adapters build their site queries from it and the scoring
// engine matches candidate release text against it.
type VideoIdent struct {
	SearchText        string    // free-text search title
	EpisodeSearchText string    // episode-by-name fallback query, optional
	Lang              string    // two-letter language code
	ImdbID            string    // primary (series or movie) IMDB id, optional
	ImdbIDEpisode     string    // episode-level IMDB id, optional
	FPS               float64   // target frame rate, 0 when unknown
	MediaType         MediaType // movie or episode
	Season            int
	Episode           int
	Year              int
	FileName          string // base name of the video file, without extension
}

// NormalizeLang lowercases and trims the language code to its two-letter form.
func (v *VideoIdent) NormalizeLang() {
	lang := strings.ToLower(strings.TrimSpace(v.Lang))
	if len(lang) > 2 {
		lang = lang[:2]
	}
	v.Lang = lang
}

// Candidate is a single subtitle offered by a provider for a search.
// ID is provider-prefixed and self-describing: combined with the provider
// name it is sufficient to re-fetch the exact file with no server-side state.
type Candidate struct {
	ID          string  `json:"id"`
	Provider    string  `json:"provider"`
	Label       string  `json:"label"`
	Score       float64 `json:"score"`
	IsHashMatch bool    `json:"isHashMatch"`
	Lang        string  `json:"lang"`
	Uploader    string  `json:"uploader,omitempty"`
	UploadedAt  string  `json:"uploadedAt,omitempty"`
	Downloads   int     `json:"downloads,omitempty"`
	Info        string  `json:"info,omitempty"`
}

// SubtitleStream is a ready-to-serve subtitle produced by a provider's Fetch.
type SubtitleStream struct {
	Name        string
	ContentType string
	Data        []byte
}
