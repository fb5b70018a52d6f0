// Package explain turns a feature vector and risk score into a ranked list
// of contributing factors and actionable recommendations.
package explain

import (
	"math"
	"sort"

	"github.com/mbd888/lendrisk/internal/features"
)

// Impact grades how much acting on a recommendation would move the score.
type Impact string

const (
	ImpactLow    Impact = "low"
	ImpactMedium Impact = "medium"
	ImpactHigh   Impact = "high"
)

// Factor is one feature's contribution to an assessment.
type Factor struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

// Recommendation is an actionable step a borrower can take to improve
// their risk profile.
type Recommendation struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Impact      Impact `json:"impact"`
}

// topFactorCount caps how many factors an explanation carries.
const topFactorCount = 5

// Engine ranks factors and generates recommendations from a fixed weight
// table.
type Engine struct {
	weights map[string]WeightSpec
}

// NewEngine creates an engine backed by the default weight table.
func NewEngine() *Engine {
	return &Engine{weights: DefaultWeights}
}

// RankFactors scores each weighted feature by how far it deviates from its
// neutral value and returns the top factors sorted by descending importance.
// Importances are normalized so they sum to at most 1.
func (e *Engine) RankFactors(v features.Vector) []Factor {
	factors := make([]Factor, 0, len(e.weights))
	total := 0.0
	for feature, spec := range e.weights {
		signal := math.Abs(v[feature]-spec.Neutral) / spec.Span
		if signal > 1 {
			signal = 1
		}
		imp := spec.Weight * (0.5 + 0.5*signal)
		factors = append(factors, Factor{Feature: feature, Importance: imp})
		total += imp
	}

	if total > 0 {
		for i := range factors {
			factors[i].Importance = math.Round(factors[i].Importance/total*1000) / 1000
		}
	}

	sort.Slice(factors, func(i, j int) bool {
		if factors[i].Importance != factors[j].Importance {
			return factors[i].Importance > factors[j].Importance
		}
		return factors[i].Feature < factors[j].Feature
	})

	if len(factors) > topFactorCount {
		factors = factors[:topFactorCount]
	}
	return factors
}

// Recommendations applies the rule table to the vector and ranked factors.
// Rules are independent and fire in a fixed order, so output is stable for
// a given input. Multiple rules may fire at once.
func (e *Engine) Recommendations(riskScore float64, v features.Vector, factors []Factor) []Recommendation {
	imp := make(map[string]float64, len(factors))
	for _, f := range factors {
		imp[f.Feature] = f.Importance
	}

	recs := []Recommendation{}

	if v[features.CollateralDiversity] < 2 && imp[features.CollateralDiversity] > 0.1 {
		recs = append(recs, Recommendation{
			ID:          "diversify-collateral",
			Title:       "Diversify collateral",
			Description: "Your collateral is concentrated in a single asset type. Pledging two or more asset types reduces exposure to one asset's price swings.",
			Impact:      ImpactHigh,
		})
	}
	if v[features.RepaymentRatio] < 0.8 && imp[features.RepaymentRatio] > 0.1 {
		recs = append(recs, Recommendation{
			ID:          "improve-repayment",
			Title:       "Repay outstanding balances",
			Description: "Less than 80% of borrowed funds have been repaid. Clearing outstanding balances is the strongest signal of creditworthiness.",
			Impact:      ImpactHigh,
		})
	}
	if v[features.LiquidationRiskScore] > 60 {
		recs = append(recs, Recommendation{
			ID:          "add-collateral",
			Title:       "Add collateral",
			Description: "Your position is close to its liquidation threshold. Adding collateral restores the safety margin and avoids forced liquidation.",
			Impact:      ImpactHigh,
		})
	}
	if v[features.UtilizationRatio] > 0.7 && imp[features.UtilizationRatio] > 0.05 {
		recs = append(recs, Recommendation{
			ID:          "reduce-utilization",
			Title:       "Reduce borrow utilization",
			Description: "You are borrowing more than 70% of your available capacity. Repaying part of the balance lowers utilization and the associated risk premium.",
			Impact:      ImpactMedium,
		})
	}
	if v[features.WalletBalanceVolatility] > 0.3 && imp[features.WalletBalanceVolatility] > 0.05 {
		recs = append(recs, Recommendation{
			ID:          "stabilize-balance",
			Title:       "Stabilize wallet balance",
			Description: "Your wallet balance swings sharply over time. Keeping a steadier reserve makes repayment capacity easier to assess.",
			Impact:      ImpactMedium,
		})
	}
	if v[features.TransactionRegularity] < 0.3 && imp[features.TransactionRegularity] > 0.02 {
		recs = append(recs, Recommendation{
			ID:          "increase-regularity",
			Title:       "Establish regular activity",
			Description: "Transactions arrive in irregular bursts. A consistent activity pattern builds a more predictable on-chain history.",
			Impact:      ImpactLow,
		})
	}
	if v[features.IdentityVerified] == 0 && imp[features.IdentityVerified] > 0.02 {
		recs = append(recs, Recommendation{
			ID:          "verify-identity",
			Title:       "Complete identity verification",
			Description: "Verified borrowers receive better terms. Completing verification removes the unverified-identity penalty from your profile.",
			Impact:      ImpactMedium,
		})
	}
	if riskScore > 75 && len(recs) == 0 {
		recs = append(recs, Recommendation{
			ID:          "build-history",
			Title:       "Build on-chain history",
			Description: "Your profile carries very high risk without a single dominant cause. A longer record of borrowing and full repayment is the most reliable way to improve it.",
			Impact:      ImpactMedium,
		})
	}

	return recs
}
