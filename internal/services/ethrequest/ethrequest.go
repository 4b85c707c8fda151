package ethrequest

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/citizenwallet/boxdao/pkg/dao"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
)

const (
	ETHChainID = "eth_chainId"

	DefaultPollInterval = 5 * time.Second
)

var _ dao.EVMRequester = (*EthService)(nil)

type EthService struct {
	rpc    *rpc.Client
	client *ethclient.Client
	ctx    context.Context

	// ws is set when a websocket endpoint is configured, heads are then
	// pushed by the node instead of polled
	ws *ethclient.Client

	poll time.Duration
	log  *zap.Logger
}

func (e *EthService) Context() context.Context {
	return e.ctx
}

func NewEthService(ctx context.Context, endpoint string) (*EthService, error) {
	rpc, err := rpc.DialContext(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	return NewEthServiceFromClient(ctx, rpc), nil
}

func NewEthServiceFromClient(ctx context.Context, c *rpc.Client) *EthService {
	return &EthService{
		rpc:    c,
		client: ethclient.NewClient(c),
		ctx:    ctx,
		poll:   DefaultPollInterval,
		log:    zap.NewNop(),
	}
}

// WithWebsocket dials endpoint and uses it for head subscriptions
func (e *EthService) WithWebsocket(endpoint string) (*EthService, error) {
	ws, err := ethclient.DialContext(e.ctx, endpoint)
	if err != nil {
		return nil, err
	}

	e.ws = ws
	return e, nil
}

func (e *EthService) WithPollInterval(d time.Duration) *EthService {
	if d > 0 {
		e.poll = d
	}
	return e
}

func (e *EthService) WithLogger(l *zap.Logger) *EthService {
	if l != nil {
		e.log = l
	}
	return e
}

func (e *EthService) Close() {
	if e.ws != nil {
		e.ws.Close()
	}
	e.client.Close()
}

// BlockTime returns the timestamp of a block, the latest when number is nil
func (e *EthService) BlockTime(ctx context.Context, number *big.Int) (uint64, error) {
	h, err := e.client.HeaderByNumber(ctx, number)
	if err != nil {
		return 0, err
	}

	return h.Time, nil
}

func (e *EthService) Backend() bind.ContractBackend {
	return e.client
}

func (e *EthService) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	return e.client.CodeAt(ctx, account, blockNumber)
}

func (e *EthService) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	return e.client.TransactionReceipt(ctx, txHash)
}

func (e *EthService) LatestBlock(ctx context.Context) (*big.Int, error) {
	n, err := e.client.BlockNumber(ctx)
	if err != nil {
		return common.Big0, err
	}

	return new(big.Int).SetUint64(n), nil
}

func (e *EthService) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	return e.client.FilterLogs(ctx, q)
}

func (e *EthService) ChainID(ctx context.Context) (*big.Int, error) {
	var id string
	err := e.rpc.CallContext(ctx, &id, ETHChainID)
	if err != nil {
		return nil, err
	}

	chid, ok := big.NewInt(0).SetString(strip0x(id), 16)
	if !ok {
		return nil, errors.New("invalid chain id")
	}

	return chid, nil
}

// SubscribeBlocks sends the number of every new head to ch until ctx is
// done. Without a websocket endpoint the head is polled.
func (e *EthService) SubscribeBlocks(ctx context.Context, ch chan<- uint64) error {
	if e.ws != nil {
		return e.subscribeHeads(ctx, ch)
	}

	return e.pollHeads(ctx, ch)
}

func (e *EthService) subscribeHeads(ctx context.Context, ch chan<- uint64) error {
	headers := make(chan *types.Header)

	sub, err := e.ws.SubscribeNewHead(ctx, headers)
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-sub.Err():
			return err
		case h := <-headers:
			select {
			case ch <- h.Number.Uint64():
			case <-ctx.Done():
				return nil
			}
		}
	}
}

func (e *EthService) pollHeads(ctx context.Context, ch chan<- uint64) error {
	var last uint64

	ticker := time.NewTicker(e.poll)
	defer ticker.Stop()

	for {
		n, err := e.client.BlockNumber(ctx)
		if err != nil && ctx.Err() == nil {
			e.log.Warn("could not poll head", zap.Error(err))
		}

		if err == nil && n > last {
			last = n
			select {
			case ch <- n:
			case <-ctx.Done():
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func strip0x(h string) string {
	if len(h) > 2 && h[:2] == "0x" {
		return h[2:]
	}

	return h
}
