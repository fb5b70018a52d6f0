package risk

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbd888/lendrisk/internal/explain"
	"github.com/mbd888/lendrisk/internal/features"
)

func newTestFacade(strategies ...Strategy) *Facade {
	return NewFacade(NewScorer(nil, NewMemoryCache(time.Minute), strategies...))
}

func TestOptimalInterestRate_Formula(t *testing.T) {
	facade := newTestFacade(&stubStrategy{name: TierRemote, score: 50})

	rate := facade.OptimalInterestRate(context.Background(), borrower, MarketConditions{})

	// 0.03 + (50/100)*0.10 = 0.08
	assert.Equal(t, 0.08, rate.Rate)
	assert.Equal(t, 50.0, rate.RiskScore)
	assert.False(t, rate.IsBackupScore)
	assert.Empty(t, rate.Error)
}

func TestOptimalInterestRate_CustomMarket(t *testing.T) {
	facade := newTestFacade(&stubStrategy{name: TierRemote, score: 100})

	rate := facade.OptimalInterestRate(context.Background(), borrower, MarketConditions{
		BaseRate:   0.05,
		MaxPremium: 0.20,
	})

	assert.Equal(t, 0.25, rate.Rate)
}

func TestOptimalInterestRate_BackupOnFailure(t *testing.T) {
	facade := newTestFacade(&stubStrategy{name: TierRemote, err: ErrRemoteScoring})

	rate := facade.OptimalInterestRate(context.Background(), borrower, MarketConditions{})

	require.NotNil(t, rate)
	assert.True(t, rate.IsBackupScore)
	assert.NotEmpty(t, rate.Error)
	// Midpoint score: 0.03 + 0.5*0.10
	assert.Equal(t, 0.08, rate.Rate)
	assert.Equal(t, CategoryHigh, rate.RiskCategory)
}

func TestEarlyWarningSignals_HighRiskScore(t *testing.T) {
	facade := newTestFacade(&stubStrategy{name: TierRemote, score: 85})

	signals := facade.EarlyWarningSignals(context.Background(), borrower)

	require.NotEmpty(t, signals)
	assert.Equal(t, "high_risk_score", signals[0].Type)
	assert.Equal(t, SeverityHigh, signals[0].Severity)
}

func TestEarlyWarningSignals_LowRiskNoScoreSignal(t *testing.T) {
	facade := newTestFacade(&stubStrategy{name: TierRemote, score: 10})

	for _, sig := range facade.EarlyWarningSignals(context.Background(), borrower) {
		assert.NotEqual(t, "high_risk_score", sig.Type)
	}
}

func TestEarlyWarningSignals_FactorThresholds(t *testing.T) {
	// Strategy that fabricates factor importances around the 0.2/0.3 cuts.
	facade := newTestFacade(&factorStrategy{})

	signals := facade.EarlyWarningSignals(context.Background(), borrower)

	byFeature := map[string]WarningSignal{}
	for _, sig := range signals {
		if sig.Type == "risk_factor" {
			byFeature[sig.Feature] = sig
		}
	}

	require.Contains(t, byFeature, "default_count")
	assert.Equal(t, SeverityHigh, byFeature["default_count"].Severity)

	require.Contains(t, byFeature, "utilization_ratio")
	assert.Equal(t, SeverityMedium, byFeature["utilization_ratio"].Severity)

	assert.NotContains(t, byFeature, "loan_count", "importance at or below 0.2 emits no signal")
}

func TestEarlyWarningSignals_EmptyOnFailure(t *testing.T) {
	facade := newTestFacade(&stubStrategy{name: TierRemote, err: ErrRemoteScoring})

	signals := facade.EarlyWarningSignals(context.Background(), borrower)
	assert.NotNil(t, signals)
	assert.Empty(t, signals)
}

// factorStrategy returns a fixed assessment with hand-picked factor
// importances.
type factorStrategy struct{}

func (s *factorStrategy) Name() string { return TierRemote }

func (s *factorStrategy) Score(ctx context.Context, address string, v features.Vector) (*RiskAssessment, error) {
	return &RiskAssessment{
		ID:           "asmt_factors",
		Address:      address,
		RiskScore:    40,
		RiskCategory: Categorize(40),
		Explanation: Explanation{
			TopFactors: []explain.Factor{
				{Feature: "default_count", Importance: 0.35},
				{Feature: "utilization_ratio", Importance: 0.25},
				{Feature: "loan_count", Importance: 0.2},
			},
		},
		Timestamp: time.Now(),
		Tier:      TierRemote,
	}, nil
}
