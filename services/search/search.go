// Package search fans a subtitle query out across provider adapters and
// merges their candidates into a single ranked list.
package search

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"substream/models"
)

// Provider is one subtitle source. Implementations own their site's URL
// construction and page parsing; they consume the fetcher, cache,
// unpacker and scorer to produce candidates.
type Provider interface {
	Name() string
	Supports(mt models.MediaType) bool
	Search(ctx context.Context, ident *models.VideoIdent) ([]models.Candidate, error)
	Fetch(ctx context.Context, id string) (*models.SubtitleStream, error)
}

// Options bound one aggregate search.
type Options struct {
	Timeout          time.Duration // wall-clock budget for the whole fan-out
	PerfectMatchOnly bool          // drop candidates without IsHashMatch
}

// Service runs aggregate searches over a fixed provider set.
type Service struct {
	providers []Provider
	log       *logrus.Entry
}

func NewService(providers []Provider) *Service {
	return &Service{
		providers: providers,
		log:       logrus.WithField("component", "search"),
	}
}

// Providers returns the registered provider set.
func (s *Service) Providers() []Provider {
	return s.providers
}

type providerResult struct {
	provider   string
	candidates []models.Candidate
	err        error
}

// SearchAll queries every enabled, media-type-compatible provider
// concurrently. Provider failures are logged and contribute nothing;
// providers that miss the deadline are abandoned. Candidate ids are
// prefixed with the provider name so ids from different sources never
// collide, and on a duplicate id the first-merged candidate wins.
func (s *Service) SearchAll(ctx context.Context, ident *models.VideoIdent, opts Options) []models.Candidate {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	searchID := uuid.New().String()[:8]
	log := s.log.WithField("search", searchID)
	ident.NormalizeLang()

	var eligible []Provider
	for _, p := range s.providers {
		if p.Supports(ident.MediaType) {
			eligible = append(eligible, p)
		}
	}
	if len(eligible) == 0 {
		log.Warn("no provider supports this media type")
		return nil
	}

	results := make(chan providerResult, len(eligible))
	for _, p := range eligible {
		go func(p Provider) {
			defer func() {
				if r := recover(); r != nil {
					results <- providerResult{provider: p.Name(), err: fmt.Errorf("panic: %v", r)}
				}
			}()
			candidates, err := p.Search(ctx, ident)
			results <- providerResult{provider: p.Name(), candidates: candidates, err: err}
		}(p)
	}

	// collect until every provider reported or the budget ran out;
	// stragglers are simply never read
	var merged []models.Candidate
	seen := make(map[string]bool)
	received := 0
	for received < len(eligible) {
		select {
		case <-ctx.Done():
			log.WithFields(logrus.Fields{
				"answered": received,
				"total":    len(eligible),
			}).Warn("search deadline reached, discarding unfinished providers")
			return s.finish(merged, opts)
		case res := <-results:
			received++
			if res.err != nil {
				log.WithField("provider", res.provider).WithError(res.err).
					Warn("provider search failed")
				continue
			}
			for _, c := range res.candidates {
				c.Provider = res.provider
				c.ID = res.provider + ":" + c.ID
				if seen[c.ID] {
					continue
				}
				seen[c.ID] = true
				merged = append(merged, c)
			}
			log.WithFields(logrus.Fields{
				"provider":   res.provider,
				"candidates": len(res.candidates),
			}).Debug("provider answered")
		}
	}
	return s.finish(merged, opts)
}

// Fetch resolves a provider-prefixed candidate id to its subtitle
// payload by dispatching to the provider named in the prefix.
func (s *Service) Fetch(ctx context.Context, id string) (*models.SubtitleStream, error) {
	name, raw, ok := strings.Cut(id, ":")
	if !ok {
		return nil, fmt.Errorf("malformed candidate id %q", id)
	}
	for _, p := range s.providers {
		if p.Name() == name {
			return p.Fetch(ctx, raw)
		}
	}
	return nil, fmt.Errorf("unknown provider %q", name)
}

func (s *Service) finish(candidates []models.Candidate, opts Options) []models.Candidate {
	if opts.PerfectMatchOnly {
		kept := candidates[:0]
		for _, c := range candidates {
			if c.IsHashMatch {
				kept = append(kept, c)
			}
		}
		candidates = kept
	}
	// stable: merge order is preserved among equal scores
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	return candidates
}
