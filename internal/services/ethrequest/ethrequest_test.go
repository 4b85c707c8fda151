package ethrequest

import (
	"context"
	"math/big"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ethAPI struct {
	head atomic.Uint64
}

func (a *ethAPI) ChainId() hexutil.Big {
	return hexutil.Big(*big.NewInt(1337))
}

func (a *ethAPI) BlockNumber() hexutil.Uint64 {
	return hexutil.Uint64(a.head.Load())
}

func newTestService(t *testing.T) (*EthService, *ethAPI) {
	api := &ethAPI{}
	api.head.Store(10)

	srv := rpc.NewServer()
	require.NoError(t, srv.RegisterName("eth", api))
	t.Cleanup(srv.Stop)

	e := NewEthServiceFromClient(context.Background(), rpc.DialInProc(srv)).WithPollInterval(5 * time.Millisecond)
	t.Cleanup(e.Close)

	return e, api
}

func TestEthService(t *testing.T) {
	ctx := context.Background()
	e, api := newTestService(t)

	id, err := e.ChainID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1337), id.Int64())

	head, err := e.LatestBlock(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), head.Uint64())

	api.head.Store(11)
	head, err = e.LatestBlock(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(11), head.Uint64())
}

func TestPollHeads(t *testing.T) {
	e, api := newTestService(t)

	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan uint64)
	errc := make(chan error, 1)
	go func() {
		errc <- e.SubscribeBlocks(ctx, ch)
	}()

	assert.Equal(t, uint64(10), <-ch)

	api.head.Store(12)
	assert.Equal(t, uint64(12), <-ch)

	cancel()
	assert.NoError(t, <-errc)
}

func TestNewSigner(t *testing.T) {
	addr, auth, err := NewSigner("", big.NewInt(1337))
	require.NoError(t, err)
	assert.Nil(t, auth)
	assert.Equal(t, common.Address{}, addr)

	// hardhat account #0
	addr, auth, err = NewSigner("0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80", big.NewInt(1337))
	require.NoError(t, err)
	require.NotNil(t, auth)
	assert.Equal(t, common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"), addr)

	_, _, err = NewSigner("not a key", big.NewInt(1))
	assert.Error(t, err)
}

func TestStrip0x(t *testing.T) {
	assert.Equal(t, "539", strip0x("0x539"))
	assert.Equal(t, "539", strip0x("539"))
	assert.Equal(t, "0x", strip0x("0x"))
}
