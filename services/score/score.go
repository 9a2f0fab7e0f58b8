// Package score rates how well a candidate subtitle release matches the
// video being searched for. Matching is evidence based: helpers compare
// release facts against the search identity and record named evidence
// tags, then a weight table turns the accumulated tags into a 0-100
// percentage.
package score

import (
	"sort"
	"strings"

	"substream/models"
	"substream/utils/releasename"
	"substream/utils/similarity"
)

// Evidence tag names. TagHash is special: it marks a provider-supplied
// file-hash match and short-circuits scoring to 100.
const (
	TagTitle      = "title"
	TagYear       = "year"
	TagSeason     = "season"
	TagEpisode    = "episode"
	TagEdition    = "edition"
	TagImdb       = "imdb"
	TagFPS        = "fps"
	TagSource     = "source"
	TagResolution = "resolution"
	TagCodec      = "codec"
	TagGroup      = "group"
	TagHash       = "hash"
)

// Weights maps evidence tags to point values. The percentage score is
// matched points over total points.
type Weights map[string]int

// EpisodeWeights rates episode candidates. Title, season and episode
// identity dominate; release pedigree tokens are tie-breakers.
var EpisodeWeights = Weights{
	TagTitle:      35,
	TagYear:       10,
	TagSeason:     15,
	TagEpisode:    15,
	TagImdb:       10,
	TagFPS:        3,
	TagSource:     4,
	TagResolution: 3,
	TagCodec:      2,
	TagGroup:      3,
}

// MovieWeights rates movie candidates. IMDB identity is worth more for
// movies since most providers expose it per release.
var MovieWeights = Weights{
	TagTitle:      35,
	TagYear:       15,
	TagEdition:    10,
	TagImdb:       20,
	TagFPS:        3,
	TagSource:     6,
	TagResolution: 4,
	TagCodec:      3,
	TagGroup:      4,
}

// Total returns the weight denominator.
func (w Weights) Total() int {
	total := 0
	for _, v := range w {
		total += v
	}
	return total
}

// ForMediaType returns the weight table for the content category.
func ForMediaType(mt models.MediaType) Weights {
	if mt == models.MediaTypeEpisode {
		return EpisodeWeights
	}
	return MovieWeights
}

// Evidence is a set of matched tags. Adding is idempotent and nothing is
// ever removed, so helpers can run in any order and repeatedly.
type Evidence struct {
	tags map[string]bool
}

// NewEvidence builds an evidence set from initial tags.
func NewEvidence(tags ...string) *Evidence {
	e := &Evidence{tags: make(map[string]bool, len(tags))}
	for _, tag := range tags {
		e.tags[tag] = true
	}
	return e
}

// Add records a matched tag. The zero Evidence is usable; the tag map
// is allocated on first write.
func (e *Evidence) Add(tag string) {
	if e.tags == nil {
		e.tags = make(map[string]bool)
	}
	e.tags[tag] = true
}

// Has reports whether a tag was recorded.
func (e *Evidence) Has(tag string) bool {
	return e.tags[tag]
}

// Merge returns a new set holding this set's tags plus the other's.
// Neither input is modified, so a shared base set can be merged with a
// per-file delta without copies leaking state between files.
func (e *Evidence) Merge(other *Evidence) *Evidence {
	merged := &Evidence{tags: make(map[string]bool, len(e.tags)+len(other.tags))}
	for tag := range e.tags {
		merged.tags[tag] = true
	}
	for tag := range other.tags {
		merged.tags[tag] = true
	}
	return merged
}

// Tags returns the recorded tags in sorted order.
func (e *Evidence) Tags() []string {
	out := make([]string, 0, len(e.tags))
	for tag := range e.tags {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// Compute turns an evidence set into a percentage score. A hash tag
// forces the maximum regardless of anything else.
func Compute(e *Evidence, w Weights) float64 {
	if e.Has(TagHash) {
		return 100
	}
	total := w.Total()
	if total == 0 {
		return 0
	}
	matched := 0
	for tag := range e.tags {
		matched += w[tag]
	}
	return 100 * float64(matched) / float64(total)
}

// titleThreshold is the minimum normalized similarity treated as a
// title match.
const titleThreshold = 0.9

// Matcher accumulates evidence for one release text against one search
// identity.
type Matcher struct {
	ident    *models.VideoIdent
	evidence *Evidence
}

// NewMatcher starts an empty evidence accumulation for ident.
func NewMatcher(ident *models.VideoIdent) *Matcher {
	return &Matcher{ident: ident, evidence: NewEvidence()}
}

// Evidence exposes the accumulated set.
func (m *Matcher) Evidence() *Evidence {
	return m.evidence
}

// MatchRelease parses releaseText and records every attribute that
// agrees with the search identity.
func (m *Matcher) MatchRelease(releaseText string) {
	if m.ident.MediaType == models.MediaTypeEpisode {
		m.matchEpisodeRelease(releaseText)
	} else {
		m.matchMovieRelease(releaseText)
	}
}

func (m *Matcher) matchEpisodeRelease(releaseText string) {
	facts := releasename.ParseEpisode(releaseText)

	m.MatchTitle(facts.Title)
	m.MatchYear(facts.Year)
	// an episode number is only meaningful within the right season
	seasonOK := m.ident.Season > 0 && facts.Season == m.ident.Season
	if seasonOK {
		m.evidence.Add(TagSeason)
	}
	if seasonOK && m.ident.Episode > 0 && containsInt(facts.Episodes, m.ident.Episode) {
		m.evidence.Add(TagEpisode)
	}
	// a full-season pack covers the wanted episode by construction
	if seasonOK && facts.IsFullSeason {
		m.evidence.Add(TagEpisode)
	}
	m.matchPedigree(facts.Quality, facts.Resolution, facts.Codec, facts.ReleaseGroup)
}

func (m *Matcher) matchMovieRelease(releaseText string) {
	facts := releasename.ParseMovie(releaseText)

	m.MatchTitle(facts.Title)
	m.MatchYear(facts.Year)
	if facts.Edition != "" && strings.Contains(strings.ToLower(m.ident.FileName), facts.Edition) {
		m.evidence.Add(TagEdition)
	}
	m.matchPedigree(facts.Quality, facts.Resolution, facts.Codec, facts.ReleaseGroup)
}

func (m *Matcher) matchPedigree(quality, resolution, codec, group string) {
	want := strings.ToLower(m.ident.FileName)
	if want == "" {
		return
	}
	if quality != "" && strings.Contains(want, strings.ToLower(similarity.Normalize(quality))) {
		m.evidence.Add(TagSource)
	}
	if resolution != "" && strings.Contains(want, strings.ToLower(resolution)) {
		m.evidence.Add(TagResolution)
	}
	if codec != "" && strings.Contains(want, strings.ToLower(similarity.Normalize(codec))) {
		m.evidence.Add(TagCodec)
	}
	if group != "" && strings.Contains(want, strings.ToLower(group)) {
		m.evidence.Add(TagGroup)
	}
}

// MatchTitle records a title match when candidateTitle is sufficiently
// similar to either search text.
func (m *Matcher) MatchTitle(candidateTitle string) {
	if candidateTitle == "" {
		return
	}
	if titleMatches(m.ident.SearchText, candidateTitle) ||
		titleMatches(m.ident.EpisodeSearchText, candidateTitle) {
		m.evidence.Add(TagTitle)
	}
}

// MatchYear records a year match on exact equality.
func (m *Matcher) MatchYear(year int) {
	if year != 0 && m.ident.Year != 0 && year == m.ident.Year {
		m.evidence.Add(TagYear)
	}
}

// MatchFPS records an fps match, tolerating rounding of NTSC rates.
func (m *Matcher) MatchFPS(fps float64) {
	if fps <= 0 || m.ident.FPS <= 0 {
		return
	}
	diff := fps - m.ident.FPS
	if diff < 0 {
		diff = -diff
	}
	if diff < 0.05 {
		m.evidence.Add(TagFPS)
	}
}

// MatchImdb records an IMDB id match against the primary or episode id.
func (m *Matcher) MatchImdb(imdbID string) {
	id := normalizeImdb(imdbID)
	if id == "" {
		return
	}
	if id == normalizeImdb(m.ident.ImdbID) || id == normalizeImdb(m.ident.ImdbIDEpisode) {
		m.evidence.Add(TagImdb)
	}
}

// MatchHash records provider-supplied file-hash evidence.
func (m *Matcher) MatchHash() {
	m.evidence.Add(TagHash)
}

// FileResult is the per-file scoring outcome.
type FileResult struct {
	Score       float64
	IsHashMatch bool
}

// ScoreFile computes the final score for one candidate file.
// releaseText is the release's own free text, fileCount the number of
// files the release page yielded. A single-file release whose text
// loosely contains the video's base filename earns full title
// equivalence; multi-file releases skip that bonus because disc-numbered
// names do not compare against the original. hashThreshold is the score
// at or above which a candidate counts as a perfect match.
func ScoreFile(base *Evidence, m *Matcher, releaseText string, fileCount int, hashThreshold float64) FileResult {
	e := base.Merge(m.Evidence())

	if fileCount == 1 && m.ident.FileName != "" &&
		similarity.Contains(releaseText, m.ident.FileName) {
		e.Add(TagTitle)
	}

	s := Compute(e, ForMediaType(m.ident.MediaType))
	return FileResult{
		Score:       s,
		IsHashMatch: s >= hashThreshold,
	}
}

func titleMatches(want, got string) bool {
	if want == "" || got == "" {
		return false
	}
	return similarity.Score(want, got) >= titleThreshold ||
		similarity.Contains(got, want)
}

func normalizeImdb(id string) string {
	id = strings.TrimSpace(strings.ToLower(id))
	id = strings.TrimPrefix(id, "tt")
	return strings.TrimLeft(id, "0")
}

func containsInt(values []int, want int) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
