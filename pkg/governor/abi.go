package governor

import (
	"embed"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// GovProposalCreated emitted by propose()
const GovProposalCreated = "ProposalCreated(uint256,address,address[],uint256[],string[],bytes[],uint256,uint256,string)"

var GovProposalCreatedId = crypto.Keccak256Hash([]byte(GovProposalCreated))

//go:embed abi/*.json
var abiArtifacts embed.FS

var (
	govOnce sync.Once
	govABI  *abi.ABI
	govErr  error

	boxOnce sync.Once
	boxABI  *abi.ABI
	boxErr  error
)

// MakeProposalTopics filters for proposal creation only
func MakeProposalTopics() (topics [][]common.Hash) {
	topics = [][]common.Hash{
		{GovProposalCreatedId},
	}
	return
}

// ParseArtifactABI reads the "abi" key of a deployment artifact
func ParseArtifactABI(contractBytes []byte) (*abi.ABI, error) {
	var m map[string]interface{}
	if err := json.Unmarshal(contractBytes, &m); err != nil {
		return nil, err
	}

	ma, ok := m["abi"]
	if !ok || ma == nil {
		return nil, errors.New("artifact has no abi")
	}

	abiBytes, err := json.Marshal(ma)
	if err != nil {
		return nil, err
	}

	parsed, err := abi.JSON(strings.NewReader(string(abiBytes)))
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func extractContractABI(jsonFile string) (*abi.ABI, error) {
	contractBytes, err := abiArtifacts.ReadFile(jsonFile)
	if err != nil {
		return nil, err
	}

	return ParseArtifactABI(contractBytes)
}

func GetGovernorABI() (*abi.ABI, error) {
	govOnce.Do(func() {
		govABI, govErr = extractContractABI("abi/GovernorContract.json")
	})
	return govABI, govErr
}

func GetBoxABI() (*abi.ABI, error) {
	boxOnce.Do(func() {
		boxABI, boxErr = extractContractABI("abi/Box.json")
	})
	return boxABI, boxErr
}
