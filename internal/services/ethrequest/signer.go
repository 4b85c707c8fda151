package ethrequest

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// NewSigner builds transact options from a hex private key. It returns the
// zero address and nil options for an empty key, a read only identity.
func NewSigner(privateKey string, chainID *big.Int) (common.Address, *bind.TransactOpts, error) {
	if privateKey == "" {
		return common.Address{}, nil, nil
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKey, "0x"))
	if err != nil {
		return common.Address{}, nil, err
	}

	auth, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		return common.Address{}, nil, err
	}

	return auth.From, auth, nil
}
