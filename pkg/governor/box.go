package governor

import (
	"context"
	"math/big"

	"github.com/citizenwallet/boxdao/pkg/dao"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

const boxStoreMethod = "store"

type Box struct {
	address  common.Address
	abi      *abi.ABI
	contract *bind.BoundContract
}

func NewBox(address common.Address, backend bind.ContractBackend) (*Box, error) {
	parsed, err := GetBoxABI()
	if err != nil {
		return nil, err
	}

	return NewBoxWithABI(address, parsed, backend), nil
}

func NewBoxWithABI(address common.Address, parsed *abi.ABI, backend bind.ContractBackend) *Box {
	return &Box{
		address:  address,
		abi:      parsed,
		contract: bind.NewBoundContract(address, *parsed, backend, backend, backend),
	}
}

func (b *Box) Address() common.Address {
	return b.address
}

// Retrieve returns the stored value
func (b *Box) Retrieve(ctx context.Context) ([]string, error) {
	var out []interface{}
	err := b.contract.Call(&bind.CallOpts{Context: ctx}, &out, "retrieve")
	if err != nil {
		return nil, err
	}

	return *abi.ConvertType(out[0], new([]string)).(*[]string), nil
}

// EncodeStore encodes store(string[]) calldata
func (b *Box) EncodeStore(values []string) ([]byte, error) {
	return b.abi.Pack(boxStoreMethod, values)
}

// StorePayload builds the single-call payload that stores values in the box
func StorePayload(box dao.BoxContract, values []string, description string) (*dao.Payload, error) {
	calldata, err := box.EncodeStore(values)
	if err != nil {
		return nil, err
	}

	return dao.NewPayload(
		[]common.Address{box.Address()},
		[]*big.Int{big.NewInt(0)},
		[][]byte{calldata},
		description,
	), nil
}
