// Package releasename extracts structured facts from free-text release
// titles. The grammar itself is delegated to go-ptn; this package only
// shapes its output into the episode/movie fact sets the scorer consumes.
package releasename

import (
	"strings"

	ptn "github.com/razsteinmetz/go-ptn"
)

// EpisodeFacts are the tokens recognized in an episode release title.
type EpisodeFacts struct {
	Title        string
	Year         int
	Season       int
	Episodes     []int
	IsFullSeason bool
	Quality      string // source: BluRay, WEB-DL, HDTV...
	Resolution   string
	Codec        string
	Audio        string
	ReleaseGroup string
}

// MovieFacts are the tokens recognized in a movie release title.
type MovieFacts struct {
	Title        string
	Year         int
	Edition      string // "extended" when an extended cut marker is present
	Quality      string
	Resolution   string
	Codec        string
	Audio        string
	ReleaseGroup string
}

// ParseEpisode parses an episode release title. Unrecognized text still
// yields usable facts: the whole text becomes the title.
func ParseEpisode(text string) EpisodeFacts {
	info, err := ptn.Parse(text)
	if err != nil || info == nil {
		return EpisodeFacts{Title: fallbackTitle(text)}
	}
	facts := EpisodeFacts{
		Title:        strings.TrimSpace(info.Title),
		Year:         info.Year,
		Season:       info.Season,
		Quality:      info.Quality,
		Resolution:   info.Resolution,
		Codec:        info.Codec,
		Audio:        info.Audio,
		ReleaseGroup: info.Group,
	}
	if info.Episode > 0 {
		facts.Episodes = []int{info.Episode}
	}
	facts.IsFullSeason = facts.Season > 0 && len(facts.Episodes) == 0
	if facts.Title == "" {
		facts.Title = fallbackTitle(text)
	}
	return facts
}

// ParseMovie parses a movie release title.
func ParseMovie(text string) MovieFacts {
	info, err := ptn.Parse(text)
	if err != nil || info == nil {
		return MovieFacts{Title: fallbackTitle(text)}
	}
	facts := MovieFacts{
		Title:        strings.TrimSpace(info.Title),
		Year:         info.Year,
		Quality:      info.Quality,
		Resolution:   info.Resolution,
		Codec:        info.Codec,
		Audio:        info.Audio,
		ReleaseGroup: info.Group,
	}
	if info.Extended {
		facts.Edition = "extended"
	}
	if facts.Title == "" {
		facts.Title = fallbackTitle(text)
	}
	return facts
}

func fallbackTitle(text string) string {
	return strings.TrimSpace(strings.NewReplacer(".", " ", "_", " ").Replace(text))
}
