// Package selector orchestrates concurrent probing of candidate sources
// and ranks them with the scoring engine to pick the best one.
package selector

import (
	"context"
	"errors"
	"log"
	"sort"

	"github.com/sourcegraph/conc/pool"

	"streampick/models"
)

// ErrNoCandidates is returned when Select is called with an empty list.
var ErrNoCandidates = errors.New("no candidate sources")

// Prober measures one candidate. Implementations must not return errors;
// failures surface as ProbeResult{OK: false}.
type Prober interface {
	Probe(ctx context.Context, cand models.CandidateSource) models.ProbeResult
}

// Selector probes candidates in two half-sized concurrent batches and
// returns the highest-scoring one.
type Selector struct {
	prober Prober
}

func New(prober Prober) *Selector {
	return &Selector{prober: prober}
}

// Select picks the best candidate. A single candidate is returned without
// probing: with no choice to make, a probe would only spend network round
// trips against third-party origins.
func (s *Selector) Select(ctx context.Context, candidates []models.CandidateSource) (*models.ScoredCandidate, error) {
	if len(candidates) == 0 {
		return nil, ErrNoCandidates
	}
	if len(candidates) == 1 {
		return &models.ScoredCandidate{Source: candidates[0]}, nil
	}

	results := s.probeInBatches(ctx, candidates)

	ext := ExtremesOf(results)

	scored := make([]models.ScoredCandidate, 0, len(candidates))
	for i, result := range results {
		if !result.OK {
			continue
		}
		scored = append(scored, models.ScoredCandidate{
			Source: candidates[i],
			Probe:  result,
			Score:  Score(result, ext),
		})
	}

	if len(scored) == 0 {
		// Every probe failed; picking something beats picking nothing,
		// and the first candidate keeps the choice deterministic.
		log.Printf("[selector] all %d probes failed, falling back to first candidate", len(candidates))
		return &models.ScoredCandidate{Source: candidates[0]}, nil
	}

	// Stable: equal scores preserve original candidate order.
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	best := scored[0]
	return &best, nil
}

// probeInBatches splits candidates into two ceil(n/2) batches probed
// concurrently batch-by-batch, bounding peak outbound connections to
// roughly half the candidate count.
func (s *Selector) probeInBatches(ctx context.Context, candidates []models.CandidateSource) []models.ProbeResult {
	results := make([]models.ProbeResult, len(candidates))

	half := (len(candidates) + 1) / 2
	for start := 0; start < len(candidates); start += half {
		end := start + half
		if end > len(candidates) {
			end = len(candidates)
		}

		p := pool.New().WithMaxGoroutines(end - start)
		for i := start; i < end; i++ {
			idx := i
			p.Go(func() {
				results[idx] = s.prober.Probe(ctx, candidates[idx])
			})
		}
		p.Wait()
	}

	return results
}
