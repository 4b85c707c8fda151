package daotest

import (
	"context"
	"sync"

	"github.com/citizenwallet/boxdao/pkg/dao"
	"github.com/citizenwallet/boxdao/pkg/governor"
	"github.com/ethereum/go-ethereum/common"
)

var _ dao.BoxContract = (*Box)(nil)

var (
	BoxAddress = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	Account    = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
)

// Box stores the value in memory and encodes calldata with the real ABI
type Box struct {
	mu sync.Mutex

	Addr  common.Address
	Value []string
	Err   error
}

func NewBox(value ...string) *Box {
	return &Box{Addr: BoxAddress, Value: value}
}

func (b *Box) Address() common.Address {
	return b.Addr
}

func (b *Box) Retrieve(ctx context.Context) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.Err != nil {
		return nil, b.Err
	}

	return append([]string{}, b.Value...), nil
}

func (b *Box) Store(values []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Value = values
}

func (b *Box) EncodeStore(values []string) ([]byte, error) {
	parsed, err := governor.GetBoxABI()
	if err != nil {
		return nil, err
	}

	return parsed.Pack("store", values)
}

// Fixture wires the doubles into a session acting as Account
type Fixture struct {
	EVM      *EVM
	Governor *Governor
	Box      *Box
	Session  *dao.Session
}

func NewFixture(head uint64) *Fixture {
	evm := NewEVM(head)
	gov := NewGovernor(evm)
	box := NewBox()

	return &Fixture{
		EVM:      evm,
		Governor: gov,
		Box:      box,
		Session: &dao.Session{
			ChainID:  evm.ID,
			Account:  Account,
			EVM:      evm,
			Governor: gov,
			Box:      box,
		},
	}
}

// StorePayload builds the payload storing values in the fixture's box
func (f *Fixture) StorePayload(values []string, description string) *dao.Payload {
	p, err := governor.StorePayload(f.Box, values, description)
	if err != nil {
		panic(err)
	}

	return p
}
