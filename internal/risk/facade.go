package risk

import (
	"context"
	"math"
	"strings"

	"github.com/mbd888/lendrisk/internal/chaindata"
	"github.com/mbd888/lendrisk/internal/features"
	"github.com/mbd888/lendrisk/internal/logging"
)

// Default interest-rate parameters when the caller supplies none.
const (
	DefaultBaseRate   = 0.03
	DefaultMaxPremium = 0.10
)

// fallbackScore is the midpoint score used when pricing without a real
// assessment.
const fallbackScore = 50

// MarketConditions parameterizes interest-rate pricing.
type MarketConditions struct {
	BaseRate   float64 `json:"baseRate"`
	MaxPremium float64 `json:"maxPremium"`
}

// InterestRate is the pricing result for one borrower. On scoring failure
// it carries backup numbers and an Error marker instead of failing.
type InterestRate struct {
	Address       string   `json:"address"`
	Rate          float64  `json:"rate"`
	RiskScore     float64  `json:"riskScore"`
	RiskCategory  Category `json:"riskCategory"`
	IsBackupScore bool     `json:"isBackupScore,omitempty"`
	Error         string   `json:"error,omitempty"`
}

// Severity grades an early-warning signal.
type Severity string

const (
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// WarningSignal is one early-warning indicator for a borrower.
type WarningSignal struct {
	Type       string   `json:"type"`
	Severity   Severity `json:"severity"`
	Message    string   `json:"message"`
	Feature    string   `json:"feature,omitempty"`
	Importance float64  `json:"importance,omitempty"`
}

// Facade is the public entry point route handlers consume. Its methods
// degrade to safe defaults instead of propagating scoring failures.
type Facade struct {
	scorer *Scorer
}

// NewFacade wraps a scorer.
func NewFacade(scorer *Scorer) *Facade {
	return &Facade{scorer: scorer}
}

// AssessRisk scores a borrower address.
func (f *Facade) AssessRisk(ctx context.Context, address string, opts Options) (*RiskAssessment, error) {
	return f.scorer.AssessRisk(ctx, address, opts)
}

// OptimalInterestRate prices a loan for the address from its risk score:
// rate = baseRate + (score/100)*maxPremium. It never returns an error; when
// scoring fails it prices at the midpoint score and marks the result.
func (f *Facade) OptimalInterestRate(ctx context.Context, address string, market MarketConditions) *InterestRate {
	if market.BaseRate <= 0 {
		market.BaseRate = DefaultBaseRate
	}
	if market.MaxPremium <= 0 {
		market.MaxPremium = DefaultMaxPremium
	}

	result := &InterestRate{Address: strings.ToLower(address)}

	assessment, err := f.scorer.AssessRisk(ctx, address, Options{})
	if err != nil {
		logging.ForAddress(ctx, address).Warn("pricing with backup score", "error", err)
		result.RiskScore = fallbackScore
		result.RiskCategory = Categorize(fallbackScore)
		result.IsBackupScore = true
		result.Error = err.Error()
	} else {
		result.RiskScore = assessment.RiskScore
		result.RiskCategory = assessment.RiskCategory
	}

	rate := market.BaseRate + (result.RiskScore/100)*market.MaxPremium
	result.Rate = math.Round(rate*10000) / 10000
	return result
}

// EarlyWarningSignals surfaces risk indicators for an address: a
// high_risk_score signal when the score exceeds 70, plus one signal per top
// factor whose importance exceeds 0.2. It never fails; internal errors yield
// an empty slice.
func (f *Facade) EarlyWarningSignals(ctx context.Context, address string) []WarningSignal {
	signals := []WarningSignal{}

	assessment, err := f.scorer.AssessRisk(ctx, address, Options{})
	if err != nil {
		logging.ForAddress(ctx, address).Warn("early-warning scan failed", "error", err)
		return signals
	}

	if assessment.RiskScore > 70 {
		signals = append(signals, WarningSignal{
			Type:     "high_risk_score",
			Severity: SeverityHigh,
			Message:  "Borrower risk score exceeds the high-risk threshold",
		})
	}

	for _, factor := range assessment.Explanation.TopFactors {
		if factor.Importance <= 0.2 {
			continue
		}
		severity := SeverityMedium
		if factor.Importance > 0.3 {
			severity = SeverityHigh
		}
		signals = append(signals, WarningSignal{
			Type:       "risk_factor",
			Severity:   severity,
			Message:    "Feature " + factor.Feature + " is a dominant risk driver",
			Feature:    factor.Feature,
			Importance: factor.Importance,
		})
	}

	return signals
}

// ExtractFeatures exposes the feature vector for an address.
func (f *Facade) ExtractFeatures(ctx context.Context, address string, data *chaindata.BlockchainData) features.Vector {
	return f.scorer.ExtractFeatures(ctx, address, data)
}

// FetchBlockchainData exposes the snapshot the engine would score against.
func (f *Facade) FetchBlockchainData(ctx context.Context, address string) *chaindata.BlockchainData {
	return f.scorer.FetchBlockchainData(ctx, address)
}
