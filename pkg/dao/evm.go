package dao

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

type EVMType string

const (
	EVMTypeEthereum EVMType = "ethereum"
)

type BlockReader interface {
	LatestBlock(ctx context.Context) (*big.Int, error)
	BlockTime(ctx context.Context, number *big.Int) (uint64, error)
}

type LogFilterer interface {
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
}

// BlockNotifier delivers the height of every new head until ctx is done
type BlockNotifier interface {
	SubscribeBlocks(ctx context.Context, ch chan<- uint64) error
}

type EVMRequester interface {
	BlockReader
	LogFilterer
	BlockNotifier
	bind.DeployBackend

	Context() context.Context
	Backend() bind.ContractBackend

	ChainID(ctx context.Context) (*big.Int, error)

	Close()
}

// GovernorContract is the remote side of the Governor contract
type GovernorContract interface {
	Address() common.Address

	State(ctx context.Context, id *big.Int) (uint8, error)
	ProposalVotes(ctx context.Context, id *big.Int) (Votes, error)
	ProposalDeadline(ctx context.Context, id *big.Int) (*big.Int, error)
	ProposalEta(ctx context.Context, id *big.Int) (*big.Int, error)
	GetVotes(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)

	ParseProposalCreated(l types.Log) (*ProposalRecord, error)

	Propose(ctx context.Context, p *Payload) (*types.Transaction, error)
	CastVoteWithReason(ctx context.Context, id *big.Int, support VoteSupport, reason string) (*types.Transaction, error)
	Queue(ctx context.Context, p *Payload) (*types.Transaction, error)
	Execute(ctx context.Context, p *Payload) (*types.Transaction, error)
}

// BoxContract is the value store governed by the Governor
type BoxContract interface {
	Address() common.Address

	Retrieve(ctx context.Context) ([]string, error)
	EncodeStore(values []string) ([]byte, error)
}
