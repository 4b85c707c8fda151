package daotest

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/citizenwallet/boxdao/pkg/dao"
	"github.com/citizenwallet/boxdao/pkg/governor"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var _ dao.GovernorContract = (*Governor)(nil)

var GovernorAddress = common.HexToAddress("0xeEDbe595DDCFB5AfDbA7E16B3a36B885CbA81A4A")

// Write is a transaction submitted through the Governor double
type Write struct {
	Action  dao.Action
	ID      *big.Int
	Payload *dao.Payload
	Support dao.VoteSupport
	Tx      *types.Transaction
}

// Governor keeps proposal state in memory. Every write is recorded and
// mined on the EVM double with ReceiptStatus.
type Governor struct {
	mu sync.Mutex

	Addr common.Address
	EVM  *EVM
	// GovName answers name()
	GovName string

	States    map[string]uint8
	Votes     map[string]dao.Votes
	Deadlines map[string]*big.Int
	Etas      map[string]*big.Int
	// Weight answers getVotes
	Weight func(account common.Address, block uint64) (*big.Int, error)

	ReadErr  error
	WriteErr error
	// ReceiptStatus is the status of mined writes, successful by default
	ReceiptStatus uint64
	// OnWrite runs after a write was mined, with the lock released
	OnWrite func(w Write)
	// Gate, when set, blocks every write until it is closed
	Gate chan struct{}

	writes []Write
	nonce  uint64
}

func NewGovernor(evm *EVM) *Governor {
	return &Governor{
		Addr:          GovernorAddress,
		GovName:       "BoxGovernor",
		EVM:           evm,
		States:        map[string]uint8{},
		Votes:         map[string]dao.Votes{},
		Deadlines:     map[string]*big.Int{},
		Etas:          map[string]*big.Int{},
		ReceiptStatus: types.ReceiptStatusSuccessful,
	}
}

func (g *Governor) Address() common.Address {
	return g.Addr
}

func (g *Governor) Name(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.ReadErr != nil {
		return "", g.ReadErr
	}

	return g.GovName, nil
}

func (g *Governor) SetState(id *big.Int, s dao.ProposalState) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.States[dao.ProposalKey(id)] = uint8(s)
}

func (g *Governor) SetEta(id *big.Int, eta uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Etas[dao.ProposalKey(id)] = new(big.Int).SetUint64(eta)
}

func (g *Governor) SetVotes(id *big.Int, v dao.Votes) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Votes[dao.ProposalKey(id)] = v
}

func (g *Governor) SetReadErr(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ReadErr = err
}

// Writes returns a copy of every write submitted so far
func (g *Governor) Writes() []Write {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Write{}, g.writes...)
}

// WritesFor filters Writes by action
func (g *Governor) WritesFor(action dao.Action) []Write {
	ws := []Write{}
	for _, w := range g.Writes() {
		if w.Action == action {
			ws = append(ws, w)
		}
	}
	return ws
}

func (g *Governor) State(ctx context.Context, id *big.Int) (uint8, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.ReadErr != nil {
		return 0, g.ReadErr
	}

	s, ok := g.States[dao.ProposalKey(id)]
	if !ok {
		return 0, errors.New("execution reverted: Governor: unknown proposal id")
	}

	return s, nil
}

func (g *Governor) ProposalVotes(ctx context.Context, id *big.Int) (dao.Votes, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.ReadErr != nil {
		return dao.Votes{}, g.ReadErr
	}

	v, ok := g.Votes[dao.ProposalKey(id)]
	if !ok {
		return dao.NewVotes(), nil
	}

	return v, nil
}

func (g *Governor) ProposalDeadline(ctx context.Context, id *big.Int) (*big.Int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.ReadErr != nil {
		return nil, g.ReadErr
	}

	d, ok := g.Deadlines[dao.ProposalKey(id)]
	if !ok {
		return new(big.Int), nil
	}

	return d, nil
}

func (g *Governor) ProposalEta(ctx context.Context, id *big.Int) (*big.Int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.ReadErr != nil {
		return nil, g.ReadErr
	}

	e, ok := g.Etas[dao.ProposalKey(id)]
	if !ok {
		return new(big.Int), nil
	}

	return e, nil
}

func (g *Governor) GetVotes(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	if g.Weight == nil {
		return new(big.Int), nil
	}

	return g.Weight(account, blockNumber.Uint64())
}

func (g *Governor) ParseProposalCreated(l types.Log) (*dao.ProposalRecord, error) {
	parsed, err := governor.GetGovernorABI()
	if err != nil {
		return nil, err
	}

	return governor.ParseProposalCreated(parsed, l)
}

func (g *Governor) write(ctx context.Context, w Write) (*types.Transaction, error) {
	if g.Gate != nil {
		select {
		case <-g.Gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	g.mu.Lock()
	if g.WriteErr != nil {
		err := g.WriteErr
		g.mu.Unlock()
		return nil, err
	}

	g.nonce++
	to := g.Addr
	w.Tx = types.NewTx(&types.LegacyTx{Nonce: g.nonce, To: &to, Gas: 21000, GasPrice: big.NewInt(1), Data: []byte(w.Action)})
	g.writes = append(g.writes, w)
	status := g.ReceiptStatus
	onWrite := g.OnWrite
	g.mu.Unlock()

	if g.EVM != nil {
		g.EVM.Mine(w.Tx, status)
	}

	if onWrite != nil {
		onWrite(w)
	}

	return w.Tx, nil
}

func (g *Governor) Propose(ctx context.Context, p *dao.Payload) (*types.Transaction, error) {
	id, err := governor.HashPayload(p)
	if err != nil {
		return nil, err
	}

	return g.write(ctx, Write{Action: dao.ActionPropose, ID: id, Payload: p})
}

func (g *Governor) CastVoteWithReason(ctx context.Context, id *big.Int, support dao.VoteSupport, reason string) (*types.Transaction, error) {
	return g.write(ctx, Write{Action: dao.ActionVote, ID: id, Support: support})
}

func (g *Governor) Queue(ctx context.Context, p *dao.Payload) (*types.Transaction, error) {
	id, err := governor.HashPayload(p)
	if err != nil {
		return nil, err
	}

	return g.write(ctx, Write{Action: dao.ActionQueue, ID: id, Payload: p})
}

func (g *Governor) Execute(ctx context.Context, p *dao.Payload) (*types.Transaction, error) {
	id, err := governor.HashPayload(p)
	if err != nil {
		return nil, err
	}

	return g.write(ctx, Write{Action: dao.ActionExecute, ID: id, Payload: p})
}

// ProposalLog packs a ProposalCreated log for payload at block
func ProposalLog(t testing.TB, p *dao.Payload, block uint64, index uint) (types.Log, *big.Int) {
	t.Helper()

	parsed, err := governor.GetGovernorABI()
	if err != nil {
		t.Fatal(err)
	}

	id, err := governor.HashPayload(p)
	if err != nil {
		t.Fatal(err)
	}

	data, err := parsed.Events["ProposalCreated"].Inputs.NonIndexed().Pack(
		id,
		common.HexToAddress("0x29d755C17df3ED2eCAE6e42d694fb4F7E2ff6010"),
		p.Targets,
		p.Values,
		make([]string, len(p.Targets)),
		p.Calldatas,
		new(big.Int).SetUint64(block+1),
		new(big.Int).SetUint64(block+46),
		p.Description,
	)
	if err != nil {
		t.Fatal(err)
	}

	return types.Log{
		Address:     GovernorAddress,
		Topics:      []common.Hash{governor.GovProposalCreatedId},
		Data:        data,
		BlockNumber: block,
		TxHash:      common.BigToHash(new(big.Int).SetUint64(block*1000 + uint64(index))),
		Index:       index,
	}, id
}
