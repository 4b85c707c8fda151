package registry

import (
	"encoding/json"
	"math/big"
	"path/filepath"
	"testing"

	"github.com/citizenwallet/boxdao/internal/storage"
	"github.com/citizenwallet/boxdao/pkg/dao"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	boxOld = "0x9fE46736679d2D9a65F0992F2272dE9f3c7fa6e0"
	boxNew = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
	gov    = "0xeEDbe595DDCFB5AfDbA7E16B3a36B885CbA81A4A"
)

const boxArtifact = `{
  "contractName": "Box",
  "abi": [
    {"inputs": [], "name": "retrieve", "outputs": [{"internalType": "string[]", "name": "", "type": "string[]"}], "stateMutability": "view", "type": "function"},
    {"inputs": [{"internalType": "string[]", "name": "newValue", "type": "string[]"}], "name": "store", "outputs": [], "stateMutability": "nonpayable", "type": "function"}
  ]
}`

func writeRegistry(t *testing.T) string {
	dir := t.TempDir()

	m := map[string]map[string][]string{
		"dev": {
			ContractBox:      {boxNew, boxOld},
			ContractGovernor: {gov},
		},
		"4": {
			ContractBox: {},
		},
	}
	b, err := json.Marshal(m)
	require.NoError(t, err)

	require.NoError(t, storage.Save(filepath.Join(dir, "map.json"), b))
	require.NoError(t, storage.Save(filepath.Join(dir, "dev", boxNew+".json"), []byte(boxArtifact)))
	// governor artifact written with a lowercase name
	require.NoError(t, storage.Save(filepath.Join(dir, "dev", "0xeedbe595ddcfb5afdba7e16b3a36b885cba81a4a.json"), []byte(`{"abi": []}`)))
	require.NoError(t, storage.Save(filepath.Join(dir, "dev", boxOld+".json"), []byte(`{"contractName": "Box"}`)))

	return dir
}

func TestChainKey(t *testing.T) {
	cases := []struct {
		id   int64
		key  string
		fail bool
	}{
		{1, "", true},
		{3, "", true},
		{4, "4", false},
		{1337, "dev", false},
		{137, "137", false},
		// chains without a named directory keep their own id, never key 0
		{31337, "31337", false},
		{100, "100", false},
	}

	for _, c := range cases {
		key, err := ChainKey(big.NewInt(c.id))
		if c.fail {
			assert.ErrorIs(t, err, dao.ErrUnsupportedChain, "chain %d", c.id)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, c.key, key)
	}

	_, err := ChainKey(nil)
	assert.ErrorIs(t, err, dao.ErrUnsupportedChain)
}

func TestResolve(t *testing.T) {
	r := New(writeRegistry(t))
	dev := big.NewInt(1337)

	t.Run("newest deployment", func(t *testing.T) {
		addr, parsed, err := r.Contract(dev, ContractBox)
		require.NoError(t, err)
		assert.Equal(t, common.HexToAddress(boxNew), addr)
		assert.Contains(t, parsed.Methods, "store")
	})

	t.Run("lowercase artifact", func(t *testing.T) {
		_, _, err := r.Contract(dev, ContractGovernor)
		assert.NoError(t, err)
	})

	t.Run("artifact without abi", func(t *testing.T) {
		_, err := r.ResolveABI(dev, common.HexToAddress(boxOld))
		assert.ErrorIs(t, err, dao.ErrArtifactUnavailable)
	})

	t.Run("unknown contract", func(t *testing.T) {
		_, err := r.ResolveAddress(dev, "Token")
		assert.ErrorIs(t, err, dao.ErrArtifactUnavailable)
	})

	t.Run("no deployments on chain", func(t *testing.T) {
		_, err := r.ResolveAddress(big.NewInt(4), ContractBox)
		assert.ErrorIs(t, err, dao.ErrArtifactUnavailable)
		_, err = r.ResolveAddress(big.NewInt(100), ContractBox)
		assert.ErrorIs(t, err, dao.ErrArtifactUnavailable)
	})

	t.Run("wrong network", func(t *testing.T) {
		_, err := r.ResolveAddress(big.NewInt(1), ContractBox)
		assert.ErrorIs(t, err, dao.ErrUnsupportedChain)
	})

	t.Run("missing registry", func(t *testing.T) {
		_, err := New(t.TempDir()).ResolveAddress(dev, ContractBox)
		assert.ErrorIs(t, err, dao.ErrArtifactUnavailable)
	})
}
