package registry

import (
	"encoding/json"
	"fmt"
	"math/big"
	"path/filepath"
	"strings"

	"github.com/citizenwallet/boxdao/internal/storage"
	"github.com/citizenwallet/boxdao/pkg/dao"
	"github.com/citizenwallet/boxdao/pkg/governor"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const (
	ContractGovernor = "GovernorContract"
	ContractBox      = "Box"

	mapFile = "map.json"
)

// Registry resolves contracts from a deployment directory:
//
//	<path>/map.json                  {"<chain>": {"<contract>": ["<address>", ...]}}
//	<path>/<chain>/<address>.json    {"abi": [...]}
//
// Addresses in map.json are listed newest first.
type Registry struct {
	path string
}

func New(path string) *Registry {
	return &Registry{path: path}
}

// ChainKey maps a chain id to its directory in the registry
func ChainKey(chainID *big.Int) (string, error) {
	if chainID == nil || chainID.Cmp(big.NewInt(4)) < 0 {
		return "", fmt.Errorf("%w: chain %v", dao.ErrUnsupportedChain, chainID)
	}

	if chainID.Cmp(big.NewInt(1337)) == 0 {
		return "dev", nil
	}

	return chainID.String(), nil
}

func (r *Registry) deployments() (map[string]map[string][]string, error) {
	b, err := storage.Read(filepath.Join(r.path, mapFile))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", dao.ErrArtifactUnavailable, err)
	}

	m := map[string]map[string][]string{}
	err = json.Unmarshal(b, &m)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", dao.ErrArtifactUnavailable, mapFile, err)
	}

	return m, nil
}

// ResolveAddress returns the most recent deployment of name on chainID
func (r *Registry) ResolveAddress(chainID *big.Int, name string) (common.Address, error) {
	chain, err := ChainKey(chainID)
	if err != nil {
		return common.Address{}, err
	}

	m, err := r.deployments()
	if err != nil {
		return common.Address{}, err
	}

	addrs := m[chain][name]
	if len(addrs) == 0 || !common.IsHexAddress(addrs[0]) {
		return common.Address{}, fmt.Errorf("%w: no %s deployed on chain %s", dao.ErrArtifactUnavailable, name, chain)
	}

	return common.HexToAddress(addrs[0]), nil
}

// ResolveABI reads the ABI of the artifact deployed at address
func (r *Registry) ResolveABI(chainID *big.Int, address common.Address) (*abi.ABI, error) {
	chain, err := ChainKey(chainID)
	if err != nil {
		return nil, err
	}

	// artifacts are named after the address as written in map.json, which
	// is usually checksummed
	path := filepath.Join(r.path, chain, address.Hex()+".json")
	if !storage.Exists(path) {
		path = filepath.Join(r.path, chain, strings.ToLower(address.Hex())+".json")
	}

	b, err := storage.Read(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", dao.ErrArtifactUnavailable, err)
	}

	parsed, err := governor.ParseArtifactABI(b)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", dao.ErrArtifactUnavailable, path, err)
	}

	return parsed, nil
}

// Contract resolves both the address and the ABI of name
func (r *Registry) Contract(chainID *big.Int, name string) (common.Address, *abi.ABI, error) {
	addr, err := r.ResolveAddress(chainID, name)
	if err != nil {
		return common.Address{}, nil, err
	}

	parsed, err := r.ResolveABI(chainID, addr)
	if err != nil {
		return common.Address{}, nil, err
	}

	return addr, parsed, nil
}
