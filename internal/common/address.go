package common

import (
	"github.com/ethereum/go-ethereum/common"
)

// SameAddress reports whether raw is a hex address equal to addr, in any
// casing
func SameAddress(raw string, addr common.Address) bool {
	if !common.IsHexAddress(raw) {
		return false
	}

	return common.HexToAddress(raw) == addr
}
