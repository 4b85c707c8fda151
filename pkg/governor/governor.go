package governor

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/citizenwallet/boxdao/pkg/dao"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
)

var (
	ErrNotProposalCreated = errors.New("not a ProposalCreated log")
	ErrMalformedProposal  = errors.New("malformed proposal")
)

type proposalCreated struct {
	ProposalId  *big.Int
	Proposer    common.Address
	Targets     []common.Address
	Values      []*big.Int
	Signatures  []string
	Calldatas   [][]byte
	VoteStart   *big.Int
	VoteEnd     *big.Int
	Description string
}

// Governor binds the Governor contract at a given address
type Governor struct {
	address  common.Address
	abi      *abi.ABI
	contract *bind.BoundContract
	auth     *bind.TransactOpts
}

// NewGovernor binds the built-in Governor ABI. auth may be nil for a read
// only binding.
func NewGovernor(address common.Address, backend bind.ContractBackend, auth *bind.TransactOpts) (*Governor, error) {
	parsed, err := GetGovernorABI()
	if err != nil {
		return nil, err
	}

	return NewGovernorWithABI(address, parsed, backend, auth), nil
}

// NewGovernorWithABI binds an ABI resolved from a deployment artifact
func NewGovernorWithABI(address common.Address, parsed *abi.ABI, backend bind.ContractBackend, auth *bind.TransactOpts) *Governor {
	return &Governor{
		address:  address,
		abi:      parsed,
		contract: bind.NewBoundContract(address, *parsed, backend, backend, backend),
		auth:     auth,
	}
}

func (g *Governor) Address() common.Address {
	return g.address
}

func (g *Governor) ABI() *abi.ABI {
	return g.abi
}

func (g *Governor) call(ctx context.Context, blockNumber *big.Int, method string, params ...interface{}) ([]interface{}, error) {
	var out []interface{}
	err := g.contract.Call(&bind.CallOpts{Context: ctx, BlockNumber: blockNumber}, &out, method, params...)
	if err != nil {
		return nil, err
	}

	return out, nil
}

func (g *Governor) callUint256(ctx context.Context, method string, params ...interface{}) (*big.Int, error) {
	out, err := g.call(ctx, nil, method, params...)
	if err != nil {
		return nil, err
	}

	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

func (g *Governor) transact(ctx context.Context, method string, params ...interface{}) (*types.Transaction, error) {
	if g.auth == nil {
		return nil, dao.ErrNoSigner
	}

	opts := *g.auth
	opts.Context = ctx

	return g.contract.Transact(&opts, method, params...)
}

// State returns the raw ProposalState ordinal
func (g *Governor) State(ctx context.Context, id *big.Int) (uint8, error) {
	out, err := g.call(ctx, nil, "state", id)
	if err != nil {
		return 0, err
	}

	return *abi.ConvertType(out[0], new(uint8)).(*uint8), nil
}

func (g *Governor) ProposalVotes(ctx context.Context, id *big.Int) (dao.Votes, error) {
	out, err := g.call(ctx, nil, "proposalVotes", id)
	if err != nil {
		return dao.Votes{}, err
	}

	return dao.Votes{
		Against: *abi.ConvertType(out[0], new(*big.Int)).(**big.Int),
		For:     *abi.ConvertType(out[1], new(*big.Int)).(**big.Int),
		Abstain: *abi.ConvertType(out[2], new(*big.Int)).(**big.Int),
	}, nil
}

func (g *Governor) ProposalDeadline(ctx context.Context, id *big.Int) (*big.Int, error) {
	return g.callUint256(ctx, "proposalDeadline", id)
}

// ProposalEta is zero until the proposal is queued
func (g *Governor) ProposalEta(ctx context.Context, id *big.Int) (*big.Int, error) {
	return g.callUint256(ctx, "proposalEta", id)
}

// GetVotes returns the voting weight of account at a past block. The
// contract reverts for blocks it has not checkpointed yet.
func (g *Governor) GetVotes(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	return g.callUint256(ctx, "getVotes", account, blockNumber)
}

// Name reads the name the Governor was deployed with
func (g *Governor) Name(ctx context.Context) (string, error) {
	out, err := g.call(ctx, nil, "name")
	if err != nil {
		return "", err
	}

	return *abi.ConvertType(out[0], new(string)).(*string), nil
}

func (g *Governor) ParseProposalCreated(l types.Log) (*dao.ProposalRecord, error) {
	return ParseProposalCreated(g.abi, l)
}

func (g *Governor) Propose(ctx context.Context, p *dao.Payload) (*types.Transaction, error) {
	return g.transact(ctx, "propose", p.Targets, p.Values, p.Calldatas, p.Description)
}

func (g *Governor) CastVoteWithReason(ctx context.Context, id *big.Int, support dao.VoteSupport, reason string) (*types.Transaction, error) {
	return g.transact(ctx, "castVoteWithReason", id, uint8(support), reason)
}

func (g *Governor) Queue(ctx context.Context, p *dao.Payload) (*types.Transaction, error) {
	return g.transact(ctx, "queue", p.Targets, p.Values, p.Calldatas, [32]byte(p.DescriptionHash))
}

func (g *Governor) Execute(ctx context.Context, p *dao.Payload) (*types.Transaction, error) {
	return g.transact(ctx, "execute", p.Targets, p.Values, p.Calldatas, [32]byte(p.DescriptionHash))
}

// ParseProposalCreated decodes a ProposalCreated log into a record
func ParseProposalCreated(contractAbi *abi.ABI, l types.Log) (*dao.ProposalRecord, error) {
	if len(l.Topics) == 0 || l.Topics[0] != GovProposalCreatedId {
		return nil, ErrNotProposalCreated
	}

	var ev proposalCreated
	err := contractAbi.UnpackIntoInterface(&ev, "ProposalCreated", l.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedProposal, err)
	}

	if ev.ProposalId == nil {
		return nil, fmt.Errorf("%w: missing proposal id", ErrMalformedProposal)
	}

	if len(ev.Targets) != len(ev.Values) || len(ev.Targets) != len(ev.Calldatas) {
		return nil, fmt.Errorf("%w: targets, values and calldatas length mismatch", ErrMalformedProposal)
	}

	calldatas := make([]hexutil.Bytes, len(ev.Calldatas))
	for i, c := range ev.Calldatas {
		calldatas[i] = c
	}

	return &dao.ProposalRecord{
		ID:              ev.ProposalId,
		Proposer:        ev.Proposer,
		Targets:         ev.Targets,
		Values:          ev.Values,
		Signatures:      ev.Signatures,
		Calldatas:       calldatas,
		VoteStart:       ev.VoteStart,
		VoteEnd:         ev.VoteEnd,
		Description:     ev.Description,
		DescriptionHash: dao.DescriptionHash(ev.Description),
		BlockNumber:     l.BlockNumber,
		TxHash:          l.TxHash,
		LogIndex:        l.Index,
	}, nil
}
