package chaindata

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// weiPerEth converts wei balances to float ETH for feature math.
var weiPerEth = new(big.Float).SetFloat64(1e18)

// EthClient abstracts the go-ethereum client for testing.
type EthClient interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error)
	Close()
}

// EthFetcher builds best-effort snapshots from a JSON-RPC endpoint.
//
// Plain RPC exposes no historical transaction index, so the live snapshot
// carries only current balance and sent-transaction count; lending history
// and collateral come from the lending platform's own records, supplied by
// the caller through the scorer's Options.OnChainData. Any RPC failure
// yields ErrFetch.
type EthFetcher struct {
	client  EthClient
	timeout time.Duration
}

// NewEthFetcher connects to the given RPC endpoint.
func NewEthFetcher(rpcURL string, timeout time.Duration) (*EthFetcher, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC: %w", err)
	}
	return &EthFetcher{client: client, timeout: timeout}, nil
}

// NewEthFetcherWithClient creates a fetcher around an existing client (for testing).
func NewEthFetcherWithClient(client EthClient, timeout time.Duration) *EthFetcher {
	return &EthFetcher{client: client, timeout: timeout}
}

// Fetch returns a minimal live snapshot for the address.
func (f *EthFetcher) Fetch(ctx context.Context, address string) (*BlockchainData, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("%w: invalid address %q", ErrFetch, address)
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	addr := common.HexToAddress(address)

	balanceWei, err := f.client.BalanceAt(ctx, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: balance query: %v", ErrFetch, err)
	}

	nonce, err := f.client.NonceAt(ctx, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: nonce query: %v", ErrFetch, err)
	}

	balance, _ := new(big.Float).Quo(new(big.Float).SetInt(balanceWei), weiPerEth).Float64()

	data := &BlockchainData{
		Address: address,
		Balance: balance,
	}

	// The nonce is the count of sent transactions; represent them as value-less
	// placeholder entries so count-based features still carry signal.
	now := time.Now()
	for i := uint64(0); i < nonce && i < 200; i++ {
		data.Transactions = append(data.Transactions, Transaction{
			From:      address,
			Timestamp: now,
		})
	}

	return data, nil
}

// Close releases the underlying RPC connection.
func (f *EthFetcher) Close() {
	if f.client != nil {
		f.client.Close()
	}
}
