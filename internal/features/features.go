// Package features turns a blockchain activity snapshot into the flat
// numeric feature vector the scoring tiers consume.
//
// Extraction is deterministic, performs no I/O, and never fails: missing
// sub-objects produce documented defaults instead of errors. Absence of
// negative history is treated as neutral-to-good (repayment_ratio defaults
// to 1, collateral_value_ratio defaults to 3), so an empty snapshot can
// never on its own push an address into the worst risk bucket.
package features

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/mbd888/lendrisk/internal/chaindata"
)

// Vector is a flat mapping of named numeric features. Built fresh per
// assessment and never mutated after construction.
type Vector map[string]float64

// Feature names. Valid ranges are noted where they are not obvious.
const (
	TransactionCount          = "transaction_count"
	AvgTransactionValue       = "avg_transaction_value"
	MaxTransactionValue       = "max_transaction_value"
	TotalTransactionValue     = "total_transaction_value"
	TransactionFrequency      = "transaction_frequency"  // txs per day over the active span
	TransactionRegularity     = "transaction_regularity" // [0,1]
	TransactionGrowthRate     = "transaction_growth_rate"
	IncomingTxRatio           = "incoming_tx_ratio" // [0,1]
	UniqueCounterparties      = "unique_counterparties"
	AddressEntropy            = "address_entropy" // [0,1]
	WalletAgeDays             = "wallet_age_days"
	WalletBalance             = "wallet_balance"
	WalletBalanceVolatility   = "wallet_balance_volatility"
	BalanceTrend              = "balance_trend"
	LoanCount                 = "loan_count"
	TotalBorrowed             = "total_borrowed"
	TotalRepaid               = "total_repaid"
	RepaymentRatio            = "repayment_ratio" // defaults to 1 when nothing borrowed
	DefaultCount              = "default_count"
	AvgLoanDuration           = "avg_loan_duration"
	MaxLoanAmount             = "max_loan_amount"
	EarlyRepaymentRatio       = "early_repayment_ratio" // [0,1]
	LatePaymentRatio          = "late_payment_ratio"    // [0,1]
	UtilizationRatio          = "utilization_ratio"     // [0,1]
	CollateralCount           = "collateral_count"
	CollateralTotalValue      = "collateral_total_value"
	CollateralValueRatio      = "collateral_value_ratio" // defaults to 3 when no outstanding borrow
	CollateralDiversity       = "collateral_diversity"
	CollateralQuality         = "collateral_quality"
	CollateralVolatility      = "collateral_volatility"
	VerifiedCollateralRatio   = "verified_collateral_ratio" // [0,1]
	LiquidationRiskScore      = "liquidation_risk_score"    // [0,100]
	CrossChainActivityCount   = "cross_chain_activity_count"
	IdentityVerificationLevel = "identity_verification_level"
	IdentityVerified          = "identity_verified" // 0 or 1
	DeFiProtocolCount         = "defi_protocol_count"
)

// Extract builds the feature vector for an address from its snapshot.
// A nil snapshot yields the all-defaults vector.
func Extract(address string, data *chaindata.BlockchainData) Vector {
	if data == nil {
		data = &chaindata.BlockchainData{Address: address}
	}

	v := Vector{}

	txs := sortedByTime(data.Transactions)
	extractTransactionFeatures(v, address, txs)
	v[AddressEntropy] = Entropy(address)
	extractBalanceFeatures(v, data)
	extractLendingFeatures(v, data)
	extractCollateralFeatures(v, data)

	v[CrossChainActivityCount] = float64(len(data.CrossChainActivity))
	v[IdentityVerificationLevel] = float64(data.Identity.Level)
	v[IdentityVerified] = boolToFloat(data.Identity.Verified)
	v[DeFiProtocolCount] = float64(len(data.DeFiProtocols))

	return v
}

func extractTransactionFeatures(v Vector, address string, txs []chaindata.Transaction) {
	v[TransactionCount] = float64(len(txs))
	v[TransactionRegularity] = Regularity(txs)
	v[TransactionGrowthRate] = GrowthRate(txs)

	if len(txs) == 0 {
		v[AvgTransactionValue] = 0
		v[MaxTransactionValue] = 0
		v[TotalTransactionValue] = 0
		v[TransactionFrequency] = 0
		v[IncomingTxRatio] = 0
		v[UniqueCounterparties] = 0
		v[WalletAgeDays] = 0
		return
	}

	var total, maxVal float64
	var incoming int
	counterparties := make(map[string]bool)
	for _, tx := range txs {
		total += tx.Value
		if tx.Value > maxVal {
			maxVal = tx.Value
		}
		if strings.EqualFold(tx.To, address) {
			incoming++
			if tx.From != "" {
				counterparties[strings.ToLower(tx.From)] = true
			}
		} else if tx.To != "" {
			counterparties[strings.ToLower(tx.To)] = true
		}
	}

	v[AvgTransactionValue] = total / float64(len(txs))
	v[MaxTransactionValue] = maxVal
	v[TotalTransactionValue] = total
	v[IncomingTxRatio] = float64(incoming) / float64(len(txs))
	v[UniqueCounterparties] = float64(len(counterparties))

	// Wallet age comes from the earliest transaction timestamp. The span in
	// days also anchors the frequency feature.
	earliest := txs[0].Timestamp
	ageDays := time.Since(earliest).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}
	v[WalletAgeDays] = ageDays

	spanDays := txs[len(txs)-1].Timestamp.Sub(earliest).Hours() / 24
	if spanDays < 1 {
		spanDays = 1
	}
	v[TransactionFrequency] = float64(len(txs)) / spanDays
}

func extractBalanceFeatures(v Vector, data *chaindata.BlockchainData) {
	v[WalletBalance] = data.Balance

	hist := data.BalanceHistory
	if len(hist) < 2 {
		v[WalletBalanceVolatility] = 0
		v[BalanceTrend] = 0
		return
	}

	var sum float64
	for _, p := range hist {
		sum += p.Balance
	}
	mean := sum / float64(len(hist))

	var variance float64
	for _, p := range hist {
		d := p.Balance - mean
		variance += d * d
	}
	variance /= float64(len(hist))

	if mean > 0 {
		v[WalletBalanceVolatility] = math.Sqrt(variance) / mean
	} else {
		v[WalletBalanceVolatility] = 0
	}

	first, last := hist[0].Balance, hist[len(hist)-1].Balance
	if first > 0 {
		v[BalanceTrend] = (last - first) / first
	} else if last > 0 {
		v[BalanceTrend] = 1
	} else {
		v[BalanceTrend] = 0
	}
}

func extractLendingFeatures(v Vector, data *chaindata.BlockchainData) {
	lh := data.LendingHistory

	v[LoanCount] = float64(lh.LoanCount)
	v[TotalBorrowed] = lh.TotalBorrowed
	v[TotalRepaid] = lh.TotalRepaid
	v[DefaultCount] = float64(lh.DefaultCount)
	v[AvgLoanDuration] = lh.AvgDuration
	v[MaxLoanAmount] = lh.MaxAmount

	// Nothing borrowed means nothing owed: a perfect ratio, not a missing one.
	if lh.TotalBorrowed > 0 {
		v[RepaymentRatio] = clamp(lh.TotalRepaid/lh.TotalBorrowed, 0, 1)
	} else {
		v[RepaymentRatio] = 1
	}

	if lh.LoanCount > 0 {
		v[EarlyRepaymentRatio] = clamp(float64(lh.EarlyRepayments)/float64(lh.LoanCount), 0, 1)
		v[LatePaymentRatio] = clamp(float64(lh.LatePayments)/float64(lh.LoanCount), 0, 1)
	} else {
		v[EarlyRepaymentRatio] = 0
		v[LatePaymentRatio] = 0
	}

	outstanding := lh.TotalBorrowed - lh.TotalRepaid
	denom := data.Balance + outstanding
	if denom > 0 && outstanding > 0 {
		v[UtilizationRatio] = clamp(outstanding/denom, 0, 1)
	} else {
		v[UtilizationRatio] = 0
	}
}

func extractCollateralFeatures(v Vector, data *chaindata.BlockchainData) {
	assets := data.CollateralAssets
	v[CollateralCount] = float64(len(assets))

	var totalValue, verifiedValue float64
	types := make(map[string]bool)
	for _, a := range assets {
		totalValue += a.Value
		if a.IsVerified {
			verifiedValue += a.Value
		}
		if a.Type != "" {
			types[a.Type] = true
		}
	}

	v[CollateralTotalValue] = totalValue
	v[CollateralDiversity] = float64(len(types))
	v[CollateralQuality] = data.CollateralQuality
	v[CollateralVolatility] = data.CollateralVolatility

	if totalValue > 0 {
		v[VerifiedCollateralRatio] = verifiedValue / totalValue
	} else {
		v[VerifiedCollateralRatio] = 0
	}

	outstanding := data.LendingHistory.TotalBorrowed - data.LendingHistory.TotalRepaid
	ratio := CollateralRatio(totalValue, outstanding)
	v[CollateralValueRatio] = ratio
	v[LiquidationRiskScore] = LiquidationRisk(ratio, data.CollateralVolatility)
}

// Regularity measures how evenly spaced transactions are in time.
// It is 1 - cv of inter-arrival deltas, clamped to [0,1], where
// cv = stddev/mean. Fewer than 2 transactions yields 0.
func Regularity(txs []chaindata.Transaction) float64 {
	if len(txs) < 2 {
		return 0
	}

	sorted := sortedByTime(txs)
	deltas := make([]float64, 0, len(sorted)-1)
	for i := 1; i < len(sorted); i++ {
		deltas = append(deltas, sorted[i].Timestamp.Sub(sorted[i-1].Timestamp).Seconds())
	}

	var sum float64
	for _, d := range deltas {
		sum += d
	}
	mean := sum / float64(len(deltas))
	if mean <= 0 {
		return 0
	}

	var variance float64
	for _, d := range deltas {
		diff := d - mean
		variance += diff * diff
	}
	variance /= float64(len(deltas))

	cv := math.Sqrt(variance) / mean
	return clamp(1-cv, 0, 1)
}

// GrowthRate compares summed transaction value between the first and second
// half of the time-sorted transactions: (second-first)/first when the first
// half is nonzero, 1 when only the second half has value, else 0.
func GrowthRate(txs []chaindata.Transaction) float64 {
	if len(txs) < 2 {
		return 0
	}

	sorted := sortedByTime(txs)
	mid := len(sorted) / 2

	var first, second float64
	for _, tx := range sorted[:mid] {
		first += tx.Value
	}
	for _, tx := range sorted[mid:] {
		second += tx.Value
	}

	if first > 0 {
		return (second - first) / first
	}
	if second > 0 {
		return 1
	}
	return 0
}

// Entropy is the Shannon entropy of the hex characters of an address
// (after stripping any 0x prefix), normalized by log2(16)=4 and clamped
// to [0,1]. A repeated-character address yields 0.
func Entropy(address string) float64 {
	s := strings.ToLower(strings.TrimPrefix(strings.TrimPrefix(address, "0x"), "0X"))
	if s == "" {
		return 0
	}

	counts := make(map[rune]int)
	for _, r := range s {
		counts[r]++
	}

	n := float64(len(s))
	var h float64
	for _, c := range counts {
		p := float64(c) / n
		h -= p * math.Log2(p)
	}

	return clamp(h/4, 0, 1)
}

// CollateralRatio is total collateral value over net outstanding borrow.
// With no outstanding borrow the position is treated as well collateralized
// and the ratio defaults to 3.
func CollateralRatio(collateralValue, outstanding float64) float64 {
	if outstanding <= 0 {
		return 3
	}
	return collateralValue / outstanding
}

// LiquidationRisk is clamp(100 - ratio*20 + volatility*200, 0, 100):
// more collateral lowers risk, more volatility raises it.
func LiquidationRisk(collateralRatio, volatility float64) float64 {
	return clamp(100-collateralRatio*20+volatility*200, 0, 100)
}

func sortedByTime(txs []chaindata.Transaction) []chaindata.Transaction {
	sorted := make([]chaindata.Transaction, len(txs))
	copy(sorted, txs)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})
	return sorted
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
