// Package daotest provides in-memory ledger and contract doubles for tests.
package daotest

import (
	"context"
	"math/big"
	"sync"

	"github.com/citizenwallet/boxdao/pkg/dao"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var _ dao.EVMRequester = (*EVM)(nil)

// EVM is an in-memory ledger. Logs are served from Logs, receipts are
// registered by the Governor double when it sends a transaction.
type EVM struct {
	mu sync.Mutex

	ID   *big.Int
	Head uint64
	// AutoAdvance mines one block per LatestBlock call
	AutoAdvance bool
	// TimeAt returns the timestamp of a block, 12s blocks by default
	TimeAt func(block uint64) uint64

	Logs      []types.Log
	Queries   []ethereum.FilterQuery
	FilterErr error
	LatestErr error

	Receipts map[common.Hash]*types.Receipt

	Heads chan uint64
}

func NewEVM(head uint64) *EVM {
	return &EVM{
		ID:       big.NewInt(1337),
		Head:     head,
		TimeAt:   func(block uint64) uint64 { return block * 12 },
		Receipts: map[common.Hash]*types.Receipt{},
		Heads:    make(chan uint64),
	}
}

func (e *EVM) SetHead(h uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Head = h
}

func (e *EVM) CurrentHead() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Head
}

func (e *EVM) AddLogs(logs ...types.Log) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Logs = append(e.Logs, logs...)
}

func (e *EVM) QueryCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.Queries)
}

func (e *EVM) Context() context.Context {
	return context.Background()
}

func (e *EVM) Backend() bind.ContractBackend {
	return nil
}

func (e *EVM) ChainID(ctx context.Context) (*big.Int, error) {
	return e.ID, nil
}

func (e *EVM) LatestBlock(ctx context.Context) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.LatestErr != nil {
		return nil, e.LatestErr
	}

	if e.AutoAdvance {
		e.Head++
	}

	return new(big.Int).SetUint64(e.Head), nil
}

func (e *EVM) BlockTime(ctx context.Context, number *big.Int) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.LatestErr != nil {
		return 0, e.LatestErr
	}

	n := e.Head
	if number != nil {
		n = number.Uint64()
	}

	return e.TimeAt(n), nil
}

func (e *EVM) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.Queries = append(e.Queries, q)

	if e.FilterErr != nil {
		return nil, e.FilterErr
	}

	logs := []types.Log{}
	for _, l := range e.Logs {
		if q.FromBlock != nil && l.BlockNumber < q.FromBlock.Uint64() {
			continue
		}
		if q.ToBlock != nil && l.BlockNumber > q.ToBlock.Uint64() {
			continue
		}
		if len(q.Addresses) > 0 && !containsAddress(q.Addresses, l.Address) {
			continue
		}
		if len(q.Topics) > 0 && len(q.Topics[0]) > 0 && (len(l.Topics) == 0 || !containsHash(q.Topics[0], l.Topics[0])) {
			continue
		}
		logs = append(logs, l)
	}

	return logs, nil
}

func (e *EVM) SubscribeBlocks(ctx context.Context, ch chan<- uint64) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case h := <-e.Heads:
			e.SetHead(h)
			select {
			case ch <- h:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

func (e *EVM) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, ok := e.Receipts[txHash]
	if !ok {
		return nil, ethereum.NotFound
	}

	return r, nil
}

func (e *EVM) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	return []byte{0x60}, nil
}

// Mine records a receipt for tx in the current head block
func (e *EVM) Mine(tx *types.Transaction, status uint64) *types.Receipt {
	e.mu.Lock()
	defer e.mu.Unlock()

	r := &types.Receipt{
		Status:      status,
		TxHash:      tx.Hash(),
		BlockNumber: new(big.Int).SetUint64(e.Head),
	}
	e.Receipts[tx.Hash()] = r

	return r
}

func (e *EVM) Close() {}

func containsAddress(addrs []common.Address, a common.Address) bool {
	for _, x := range addrs {
		if x == a {
			return true
		}
	}
	return false
}

func containsHash(hashes []common.Hash, h common.Hash) bool {
	for _, x := range hashes {
		if x == h {
			return true
		}
	}
	return false
}
