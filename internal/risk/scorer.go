package risk

import (
	"context"
	"fmt"
	"strings"

	"github.com/mbd888/lendrisk/internal/chaindata"
	"github.com/mbd888/lendrisk/internal/features"
	"github.com/mbd888/lendrisk/internal/logging"
	"github.com/mbd888/lendrisk/internal/metrics"
	"github.com/mbd888/lendrisk/internal/synthetic"
	"github.com/mbd888/lendrisk/internal/traces"
)

// Options controls a single assessment call.
type Options struct {
	// ForceRefresh bypasses the cache and recomputes the assessment.
	ForceRefresh bool

	// OnChainData supplies a pre-fetched snapshot, skipping the fetch step.
	OnChainData *chaindata.BlockchainData
}

// Scorer walks the scoring chain and memoizes results. Two concurrent
// refreshes for one address may both run the full chain; the cache keeps
// whichever complete assessment lands last.
type Scorer struct {
	fetcher    chaindata.Fetcher
	strategies []Strategy
	cache      Cache
}

// NewScorer creates a scorer over an ordered strategy chain. fetcher may be
// nil, in which case every assessment runs on synthetic data.
func NewScorer(fetcher chaindata.Fetcher, cache Cache, strategies ...Strategy) *Scorer {
	return &Scorer{
		fetcher:    fetcher,
		strategies: strategies,
		cache:      cache,
	}
}

// AssessRisk scores one borrower address. It returns ErrScoringUnavailable
// only when every tier in the chain has failed.
func (s *Scorer) AssessRisk(ctx context.Context, address string, opts Options) (*RiskAssessment, error) {
	address = strings.ToLower(address)
	log := logging.ForAddress(ctx, address)

	ctx, span := traces.StartSpan(ctx, "risk.assess", traces.BorrowerAddr(address))
	defer span.End()

	if !opts.ForceRefresh {
		if cached, ok := s.cache.Get(address); ok {
			metrics.CacheHitsTotal.Inc()
			metrics.AssessmentsTotal.WithLabelValues(TierCache, string(cached.RiskCategory)).Inc()
			span.SetAttributes(traces.CacheHit(true), traces.RiskScore(cached.RiskScore))
			return cached, nil
		}
		metrics.CacheMissesTotal.Inc()
	}
	span.SetAttributes(traces.CacheHit(false))

	data, warning := s.obtainData(ctx, address, opts.OnChainData)
	vector := features.Extract(address, data)

	var firstErr error
	for _, strategy := range s.strategies {
		assessment, err := strategy.Score(ctx, address, vector)
		if err != nil {
			log.Warn("scoring tier failed",
				"tier", strategy.Name(),
				"error", err)
			metrics.FallbacksTotal.WithLabelValues(strategy.Name()).Inc()
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		if assessment.Warning == "" {
			assessment.Warning = warning
		}
		s.cache.Set(address, assessment)
		metrics.AssessmentsTotal.WithLabelValues(assessment.Tier, string(assessment.RiskCategory)).Inc()
		span.SetAttributes(
			traces.ScoringTier(assessment.Tier),
			traces.RiskScore(assessment.RiskScore),
		)

		log.Info("assessment complete",
			"tier", assessment.Tier,
			"score", assessment.RiskScore,
			"category", assessment.RiskCategory)
		return assessment, nil
	}

	metrics.AssessmentFailuresTotal.Inc()
	if firstErr == nil {
		firstErr = fmt.Errorf("no scoring strategies configured")
	}
	return nil, fmt.Errorf("%w: %v", ErrScoringUnavailable, firstErr)
}

// ExtractFeatures builds the feature vector for an address without scoring.
// A nil snapshot triggers the same fetch-or-synthesize path as AssessRisk.
func (s *Scorer) ExtractFeatures(ctx context.Context, address string, data *chaindata.BlockchainData) features.Vector {
	address = strings.ToLower(address)
	data, _ = s.obtainData(ctx, address, data)
	return features.Extract(address, data)
}

// FetchBlockchainData returns the live snapshot for an address, or the
// synthetic one when no fetcher is configured or the fetch fails.
func (s *Scorer) FetchBlockchainData(ctx context.Context, address string) *chaindata.BlockchainData {
	data, _ := s.obtainData(ctx, strings.ToLower(address), nil)
	return data
}

// obtainData resolves the snapshot to score against and a warning when the
// live fetch was substituted with synthetic data.
func (s *Scorer) obtainData(ctx context.Context, address string, supplied *chaindata.BlockchainData) (*chaindata.BlockchainData, string) {
	if supplied != nil {
		return supplied, ""
	}

	if s.fetcher != nil {
		data, err := s.fetcher.Fetch(ctx, address)
		if err == nil {
			return data, ""
		}
		logging.ForAddress(ctx, address).Warn("blockchain data fetch failed, using synthetic data",
			"error", err)
	}

	metrics.SyntheticDataTotal.Inc()
	return synthetic.GenerateBlockchainData(address), "assessment based on synthetic blockchain data"
}
