// Package chaindata defines the on-chain activity snapshot consumed by the
// risk engine, and the collaborators that produce it.
//
// A snapshot is immutable once built: it is produced externally (live fetch
// or synthetic generation) and consumed once per scoring call. Missing
// sub-objects are always safe — the feature extractor treats absent history
// as zero, never as an error.
package chaindata

import (
	"context"
	"errors"
	"time"
)

// ErrFetch indicates the blockchain data collaborator failed. Callers are
// expected to substitute synthetic data rather than surface this.
var ErrFetch = errors.New("chaindata: fetch failed")

// Transaction is a single transfer involving the borrower address.
type Transaction struct {
	Hash          string    `json:"hash"`
	From          string    `json:"from"`
	To            string    `json:"to"`
	Value         float64   `json:"value"`
	Timestamp     time.Time `json:"timestamp"`
	Confirmations int       `json:"confirmations"`
}

// BalancePoint is one sample of the wallet balance over time.
type BalancePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Balance   float64   `json:"balance"`
}

// LendingHistory aggregates the borrower's past loan activity.
type LendingHistory struct {
	LoanCount       int     `json:"loanCount"`
	TotalBorrowed   float64 `json:"totalBorrowed"`
	TotalRepaid     float64 `json:"totalRepaid"`
	DefaultCount    int     `json:"defaultCount"`
	AvgDuration     float64 `json:"avgDuration"` // days
	MaxAmount       float64 `json:"maxAmount"`
	EarlyRepayments int     `json:"earlyRepayments"`
	LatePayments    int     `json:"latePayments"`
}

// Transfer is a cross-chain movement of funds.
type Transfer struct {
	Chain     string    `json:"chain"`
	Hash      string    `json:"hash"`
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// CollateralAsset is a single asset pledged as collateral.
type CollateralAsset struct {
	ID         string  `json:"id"`
	Type       string  `json:"type"`
	Value      float64 `json:"value"`
	IsVerified bool    `json:"isVerified"`
}

// IdentityVerification describes the borrower's verification status.
type IdentityVerification struct {
	Level     int       `json:"level"`
	Verified  bool      `json:"verified"`
	Timestamp time.Time `json:"timestamp"`
}

// BlockchainData is the full snapshot of on-chain activity for one address.
type BlockchainData struct {
	Address              string               `json:"address"`
	Balance              float64              `json:"balance"`
	Transactions         []Transaction        `json:"transactions"`
	BalanceHistory       []BalancePoint       `json:"balanceHistory"`
	LendingHistory       LendingHistory       `json:"lendingHistory"`
	CrossChainActivity   []Transfer           `json:"crossChainActivity"`
	CollateralAssets     []CollateralAsset    `json:"collateralAssets"`
	CollateralQuality    float64              `json:"collateralQuality"`
	CollateralVolatility float64              `json:"collateralVolatility"`
	Identity             IdentityVerification `json:"identityVerification"`
	DeFiProtocols        []string             `json:"defiProtocols"`

	// Synthetic marks snapshots produced by the generator instead of a
	// live fetch. The engine surfaces this as a warning on the assessment.
	Synthetic bool `json:"synthetic,omitempty"`
}

// Fetcher produces a snapshot for an address. Implementations may fail;
// the scoring pipeline substitutes synthetic data on error.
type Fetcher interface {
	Fetch(ctx context.Context, address string) (*BlockchainData, error)
}
