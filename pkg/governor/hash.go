package governor

import (
	"math/big"

	"github.com/citizenwallet/boxdao/pkg/dao"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var proposalHashArgs = mustArguments("address[]", "uint256[]", "bytes[]", "bytes32")

func mustArguments(types ...string) abi.Arguments {
	args := make(abi.Arguments, 0, len(types))
	for _, t := range types {
		typ, err := abi.NewType(t, "", nil)
		if err != nil {
			panic(err)
		}
		args = append(args, abi.Argument{Type: typ})
	}

	return args
}

// HashProposal computes the proposal id the way Governor.hashProposal does:
// uint256(keccak256(abi.encode(targets, values, calldatas, descriptionHash)))
func HashProposal(targets []common.Address, values []*big.Int, calldatas [][]byte, descriptionHash common.Hash) (*big.Int, error) {
	b, err := proposalHashArgs.Pack(targets, values, calldatas, [32]byte(descriptionHash))
	if err != nil {
		return nil, err
	}

	return new(big.Int).SetBytes(crypto.Keccak256(b)), nil
}

func HashPayload(p *dao.Payload) (*big.Int, error) {
	return HashProposal(p.Targets, p.Values, p.Calldatas, p.DescriptionHash)
}
