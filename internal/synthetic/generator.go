package synthetic

import (
	"fmt"
	"time"

	"github.com/mbd888/lendrisk/internal/chaindata"
	"github.com/mbd888/lendrisk/internal/features"
)

// anchor is the fixed reference time for all synthetic timestamps. Using a
// constant instead of time.Now keeps repeated calls byte-identical.
var anchor = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

// defiProtocols is the pool synthetic borrowers are drawn from.
var defiProtocols = []string{"aave", "compound", "uniswap", "curve", "maker", "lido"}

// collateralTypes weights stable, verified assets toward the front so
// low-seed addresses look safer.
var collateralTypes = []string{"ETH", "WBTC", "USDC", "DAI", "LINK"}

// GenerateBlockchainData builds a full synthetic snapshot for an address.
// Two calls with the same address produce identical data.
func GenerateBlockchainData(address string) *chaindata.BlockchainData {
	s := SeedFrom(address)

	data := &chaindata.BlockchainData{
		Address:   address,
		Balance:   s.FloatInRange(0.1, 120),
		Synthetic: true,
	}

	genTransactions(s, data)
	genBalanceHistory(s, data)
	genLendingHistory(s, data)
	genCrossChain(s, data)
	genCollateral(s, data)
	genIdentity(s, data)

	protoCount := s.IntInRange(0, 4)
	for i := 0; i < protoCount; i++ {
		data.DeFiProtocols = append(data.DeFiProtocols, defiProtocols[s.IntInRange(0, len(defiProtocols)-1)])
	}

	return data
}

func genTransactions(s *Seed, data *chaindata.BlockchainData) {
	count := s.IntInRange(5, 60)
	counterparty := fmt.Sprintf("0x%040x", s.next())

	// Walk backwards from the anchor with seeded inter-arrival gaps.
	ts := anchor
	txs := make([]chaindata.Transaction, 0, count)
	for i := 0; i < count; i++ {
		gap := time.Duration(s.IntInRange(6, 96)) * time.Hour
		ts = ts.Add(-gap)

		tx := chaindata.Transaction{
			Hash:          fmt.Sprintf("0x%064x", s.next()),
			Value:         s.FloatInRange(0.01, 25),
			Timestamp:     ts,
			Confirmations: s.IntInRange(1, 500),
		}
		if s.IntInRange(0, 1) == 0 {
			tx.From, tx.To = data.Address, counterparty
		} else {
			tx.From, tx.To = counterparty, data.Address
		}
		txs = append(txs, tx)
	}

	// Oldest first.
	for i, j := 0, len(txs)-1; i < j; i, j = i+1, j-1 {
		txs[i], txs[j] = txs[j], txs[i]
	}
	data.Transactions = txs
}

func genBalanceHistory(s *Seed, data *chaindata.BlockchainData) {
	days := 30
	balance := data.Balance
	points := make([]chaindata.BalancePoint, 0, days)
	for i := days - 1; i >= 0; i-- {
		drift := s.FloatInRange(-0.15, 0.15)
		balance = balance * (1 + drift)
		if balance < 0.01 {
			balance = 0.01
		}
		points = append(points, chaindata.BalancePoint{
			Timestamp: anchor.Add(-time.Duration(i) * 24 * time.Hour),
			Balance:   balance,
		})
	}
	data.BalanceHistory = points
}

func genLendingHistory(s *Seed, data *chaindata.BlockchainData) {
	loanCount := s.IntInRange(0, 12)
	lh := chaindata.LendingHistory{LoanCount: loanCount}

	if loanCount > 0 {
		lh.TotalBorrowed = s.FloatInRange(1, 500)
		lh.TotalRepaid = lh.TotalBorrowed * s.FloatInRange(0.6, 1.0)
		lh.AvgDuration = s.FloatInRange(7, 180)
		lh.MaxAmount = lh.TotalBorrowed * s.FloatInRange(0.2, 0.8)
		lh.EarlyRepayments = s.IntInRange(0, loanCount)
		lh.LatePayments = s.IntInRange(0, loanCount/2)

		// Defaults are rare: only one borrower in five has any.
		if s.IntInRange(0, 4) == 0 {
			lh.DefaultCount = s.IntInRange(1, 2)
		}
	}

	data.LendingHistory = lh
}

func genCrossChain(s *Seed, data *chaindata.BlockchainData) {
	chains := []string{"arbitrum", "optimism", "polygon", "base"}
	count := s.IntInRange(0, 6)
	for i := 0; i < count; i++ {
		data.CrossChainActivity = append(data.CrossChainActivity, chaindata.Transfer{
			Chain:     chains[s.IntInRange(0, len(chains)-1)],
			Hash:      fmt.Sprintf("0x%064x", s.next()),
			Value:     s.FloatInRange(0.1, 50),
			Timestamp: anchor.Add(-time.Duration(s.IntInRange(1, 90)) * 24 * time.Hour),
		})
	}
}

func genCollateral(s *Seed, data *chaindata.BlockchainData) {
	count := s.IntInRange(0, 4)
	for i := 0; i < count; i++ {
		data.CollateralAssets = append(data.CollateralAssets, chaindata.CollateralAsset{
			ID:         fmt.Sprintf("col_%08x", s.next()&0xffffffff),
			Type:       collateralTypes[s.IntInRange(0, len(collateralTypes)-1)],
			Value:      s.FloatInRange(10, 400),
			IsVerified: s.IntInRange(0, 3) > 0,
		})
	}
	data.CollateralQuality = s.FloatInRange(0.4, 1.0)
	data.CollateralVolatility = s.FloatInRange(0.05, 0.45)
}

func genIdentity(s *Seed, data *chaindata.BlockchainData) {
	level := s.IntInRange(0, 3)
	data.Identity = chaindata.IdentityVerification{
		Level:    level,
		Verified: level >= 2,
	}
	if data.Identity.Verified {
		data.Identity.Timestamp = anchor.Add(-time.Duration(s.IntInRange(30, 365)) * 24 * time.Hour)
	}
}

// MockScore derives a deterministic risk score in [0,100] for an address.
// The base is seed % 100, then fixed deltas from feature thresholds adjust
// it: good repayment and collateral history pull it down, defaults and
// heavy utilization push it up. A nil vector leaves the base unadjusted.
func MockScore(address string, v features.Vector) float64 {
	score := float64(SeedFrom(address).Base() % 100)

	if v != nil {
		if v[features.RepaymentRatio] > 0.8 {
			score -= 10
		}
		if d := v[features.DefaultCount]; d > 0 {
			score += 15 * d
		} else {
			score -= 5
		}
		if v[features.UtilizationRatio] > 0.7 {
			score += 10
		}
		if v[features.CollateralValueRatio] >= 2 {
			score -= 10
		}
		if v[features.TransactionRegularity] > 0.7 {
			score -= 5
		}
		if v[features.LiquidationRiskScore] > 70 {
			score += 10
		}
		if v[features.IdentityVerified] > 0 {
			score -= 5
		}
		if v[features.LatePaymentRatio] > 0.3 {
			score += 5
		}
	}

	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
