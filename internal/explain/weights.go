package explain

import "github.com/mbd888/lendrisk/internal/features"

// WeightSpec assigns one feature a base importance plus the neutral value
// and span used to measure how far a borrower deviates from it.
type WeightSpec struct {
	Weight  float64 // base importance before signal scaling
	Neutral float64 // value carrying no signal
	Span    float64 // deviation that saturates the signal at 1
}

// DefaultWeights is the importance table behind factor ranking. Weights are
// fixed configuration, not learned at runtime, so the ranking is auditable.
// Features absent from the table never appear in an explanation.
var DefaultWeights = map[string]WeightSpec{
	features.RepaymentRatio:        {Weight: 0.20, Neutral: 1.0, Span: 0.5},
	features.DefaultCount:          {Weight: 0.18, Neutral: 0, Span: 3},
	features.UtilizationRatio:      {Weight: 0.12, Neutral: 0.3, Span: 0.5},
	features.CollateralValueRatio:  {Weight: 0.10, Neutral: 3.0, Span: 2.0},
	features.LiquidationRiskScore:  {Weight: 0.10, Neutral: 0, Span: 80},
	features.LatePaymentRatio:      {Weight: 0.06, Neutral: 0, Span: 0.5},
	features.CollateralDiversity:   {Weight: 0.08, Neutral: 3, Span: 3},
	features.CollateralVolatility:  {Weight: 0.02, Neutral: 0.1, Span: 0.3},
	features.WalletBalanceVolatility: {Weight: 0.04, Neutral: 0.1, Span: 0.4},
	features.TransactionRegularity: {Weight: 0.03, Neutral: 0.8, Span: 0.6},
	features.IdentityVerified:      {Weight: 0.03, Neutral: 1, Span: 1},
	features.WalletAgeDays:         {Weight: 0.02, Neutral: 365, Span: 365},
	features.LoanCount:             {Weight: 0.02, Neutral: 5, Span: 5},
}
