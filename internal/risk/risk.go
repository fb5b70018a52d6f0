// Package risk orchestrates borrower risk assessment for the lending
// platform.
//
// An assessment runs through a tiered scoring chain: a remote model endpoint,
// then a locally cached model, then a deterministic mock scorer. Each tier's
// failure is logged and triggers the next; only total exhaustion surfaces an
// error. Results are memoized per address with a fixed TTL.
package risk

import (
	"errors"
	"time"

	"github.com/mbd888/lendrisk/internal/explain"
)

// Category is the coarse risk bucket derived from the numeric score.
type Category string

const (
	CategoryLow      Category = "Low"
	CategoryMedium   Category = "Medium"
	CategoryHigh     Category = "High"
	CategoryVeryHigh Category = "VeryHigh"
)

// Score thresholds for category boundaries.
const (
	thresholdLow    = 25
	thresholdMedium = 50
	thresholdHigh   = 75
)

// Scoring tiers, in fallback order.
const (
	TierRemote = "remote"
	TierLocal  = "local"
	TierMock   = "mock"
	TierCache  = "cache"
)

// Scoring-chain errors. Each tier's error is recovered by falling through to
// the next; ErrScoringUnavailable is the only one callers of AssessRisk see.
var (
	ErrRemoteScoring         = errors.New("risk: remote scoring failed")
	ErrLocalModelUnavailable = errors.New("risk: local model unavailable")
	ErrDataFetch             = errors.New("risk: blockchain data fetch failed")
	ErrScoringUnavailable    = errors.New("risk: all scoring tiers exhausted")
)

// Explanation carries the ranked factors and recommendations attached to an
// assessment.
type Explanation struct {
	TopFactors      []explain.Factor         `json:"topFactors"`
	Recommendations []explain.Recommendation `json:"recommendations"`
}

// RiskAssessment is the result of scoring one borrower address. It is the unit
// stored in the cache and returned to callers.
type RiskAssessment struct {
	ID           string      `json:"id"`
	Address      string      `json:"address"`
	RiskScore    float64     `json:"riskScore"`
	RiskCategory Category    `json:"riskCategory"`
	Explanation  Explanation `json:"explanation"`
	Timestamp    time.Time   `json:"timestamp"`

	// Warning is set when the assessment was produced from degraded inputs,
	// e.g. synthetic chain data or the mock scoring tier.
	Warning string `json:"warning,omitempty"`

	// Tier records which scoring tier produced the result.
	Tier string `json:"tier"`
}

// Categorize maps a score to its risk bucket. Pure function of the score.
func Categorize(score float64) Category {
	switch {
	case score < thresholdLow:
		return CategoryLow
	case score < thresholdMedium:
		return CategoryMedium
	case score < thresholdHigh:
		return CategoryHigh
	default:
		return CategoryVeryHigh
	}
}

// ClampScore bounds a raw score to [0,100].
func ClampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
