package governor

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// testBackend answers eth_call with canned outputs packed by the contract ABI
// and records every transaction sent through it.
type testBackend struct {
	mu sync.Mutex

	abi       *abi.ABI
	responses map[string][]interface{}
	callErr   error

	calls []string
	sent  []*types.Transaction
}

func newTestBackend(contractAbi *abi.ABI) *testBackend {
	return &testBackend{
		abi:       contractAbi,
		responses: map[string][]interface{}{},
	}
}

func (b *testBackend) respond(method string, out ...interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.responses[method] = out
}

func (b *testBackend) CodeAt(ctx context.Context, contract common.Address, blockNumber *big.Int) ([]byte, error) {
	return []byte{0x60}, nil
}

func (b *testBackend) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.callErr != nil {
		return nil, b.callErr
	}

	m, err := b.abi.MethodById(call.Data[:4])
	if err != nil {
		return nil, err
	}
	b.calls = append(b.calls, m.Name)

	out, ok := b.responses[m.Name]
	if !ok {
		return nil, errors.New("execution reverted: unexpected call to " + m.Name)
	}

	return m.Outputs.Pack(out...)
}

func (b *testBackend) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	return &types.Header{Number: big.NewInt(100), BaseFee: big.NewInt(1)}, nil
}

func (b *testBackend) PendingCodeAt(ctx context.Context, account common.Address) ([]byte, error) {
	return []byte{0x60}, nil
}

func (b *testBackend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return uint64(len(b.sent)), nil
}

func (b *testBackend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1), nil
}

func (b *testBackend) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1), nil
}

func (b *testBackend) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	return 100000, nil
}

func (b *testBackend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, tx)
	return nil
}

func (b *testBackend) FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error) {
	return nil, nil
}

func (b *testBackend) SubscribeFilterLogs(ctx context.Context, query ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	return nil, errors.New("subscriptions not supported")
}
