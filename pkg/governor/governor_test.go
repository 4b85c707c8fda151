package governor

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/citizenwallet/boxdao/pkg/dao"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

var (
	testGovernorAddr = common.HexToAddress("0xeEDbe595DDCFB5AfDbA7E16B3a36B885CbA81A4A")
	testBoxAddr      = common.HexToAddress("0x5815E61eF72c9E6107b5c5A05FD121F334f7a7f1")
)

func TestGovABI(t *testing.T) {
	govABI, err := GetGovernorABI()
	require.NoError(t, err)

	testTopics := MakeProposalTopics()
	require.Equal(t, 1, len(testTopics))

	evCreated := govABI.Events["ProposalCreated"]
	require.Equal(t, evCreated.ID, testTopics[0][0])
}

func makeProposalCreatedLog(t *testing.T, id *big.Int, targets []common.Address, values []*big.Int, calldatas [][]byte, description string) types.Log {
	govABI, err := GetGovernorABI()
	require.NoError(t, err)

	data, err := govABI.Events["ProposalCreated"].Inputs.NonIndexed().Pack(
		id,
		common.HexToAddress("0x29d755C17df3ED2eCAE6e42d694fb4F7E2ff6010"),
		targets,
		values,
		make([]string, len(targets)),
		calldatas,
		big.NewInt(11),
		big.NewInt(56),
		description,
	)
	require.NoError(t, err)

	return types.Log{
		Address:     testGovernorAddr,
		Topics:      []common.Hash{GovProposalCreatedId},
		Data:        data,
		BlockNumber: 10,
		TxHash:      common.HexToHash("0x01"),
		Index:       3,
	}
}

func TestParseProposalCreated(t *testing.T) {
	govABI, err := GetGovernorABI()
	require.NoError(t, err)

	calldata := []byte{0xde, 0xad, 0xbe, 0xef}
	l := makeProposalCreatedLog(t, big.NewInt(0xAB), []common.Address{testBoxAddr}, []*big.Int{big.NewInt(0)}, [][]byte{calldata}, "store caonima")

	rec, err := ParseProposalCreated(govABI, l)
	require.NoError(t, err)

	require.Equal(t, int64(0xAB), rec.ID.Int64())
	require.Equal(t, []common.Address{testBoxAddr}, rec.Targets)
	require.Equal(t, int64(0), rec.Values[0].Int64())
	require.Equal(t, calldata, []byte(rec.Calldatas[0]))
	require.Equal(t, "store caonima", rec.Description)
	require.Equal(t, crypto.Keccak256Hash([]byte("store caonima")), rec.DescriptionHash)
	require.Equal(t, int64(11), rec.VoteStart.Int64())
	require.Equal(t, int64(56), rec.VoteEnd.Int64())
	require.Equal(t, uint64(10), rec.BlockNumber)
	require.Equal(t, uint(3), rec.LogIndex)
}

func TestParseProposalCreatedMalformed(t *testing.T) {
	govABI, err := GetGovernorABI()
	require.NoError(t, err)

	t.Run("wrong topic", func(t *testing.T) {
		l := makeProposalCreatedLog(t, big.NewInt(1), nil, nil, nil, "x")
		l.Topics = []common.Hash{govABI.Events["ProposalQueued"].ID}

		_, err := ParseProposalCreated(govABI, l)
		require.True(t, errors.Is(err, ErrNotProposalCreated))
	})

	t.Run("no topics", func(t *testing.T) {
		_, err := ParseProposalCreated(govABI, types.Log{})
		require.True(t, errors.Is(err, ErrNotProposalCreated))
	})

	t.Run("truncated data", func(t *testing.T) {
		l := makeProposalCreatedLog(t, big.NewInt(1), nil, nil, nil, "x")
		l.Data = l.Data[:40]

		_, err := ParseProposalCreated(govABI, l)
		require.True(t, errors.Is(err, ErrMalformedProposal))
	})

	t.Run("length mismatch", func(t *testing.T) {
		l := makeProposalCreatedLog(t, big.NewInt(1), []common.Address{testBoxAddr}, []*big.Int{}, [][]byte{{0x01}}, "x")

		_, err := ParseProposalCreated(govABI, l)
		require.True(t, errors.Is(err, ErrMalformedProposal))
	})
}

func TestHashProposal(t *testing.T) {
	govABI, err := GetGovernorABI()
	require.NoError(t, err)

	targets := []common.Address{testBoxAddr}
	values := []*big.Int{big.NewInt(0)}
	calldatas := [][]byte{{0x01, 0x02}}
	dh := dao.DescriptionHash("proposal #1")

	id, err := HashProposal(targets, values, calldatas, dh)
	require.NoError(t, err)

	// the contract's own hashProposal inputs must encode identically
	packed, err := govABI.Methods["hashProposal"].Inputs.Pack(targets, values, calldatas, [32]byte(dh))
	require.NoError(t, err)
	require.Equal(t, new(big.Int).SetBytes(crypto.Keccak256(packed)), id)

	again, err := HashPayload(dao.NewPayload(targets, values, calldatas, "proposal #1"))
	require.NoError(t, err)
	require.Equal(t, id, again)

	other, err := HashProposal(targets, values, calldatas, dao.DescriptionHash("proposal #2"))
	require.NoError(t, err)
	require.NotEqual(t, id, other)

	otherCalldata, err := HashProposal(targets, values, [][]byte{{0x01, 0x03}}, dh)
	require.NoError(t, err)
	require.NotEqual(t, id, otherCalldata)
}

func TestGovernorReads(t *testing.T) {
	govABI, err := GetGovernorABI()
	require.NoError(t, err)

	b := newTestBackend(govABI)
	b.respond("state", uint8(4))
	b.respond("proposalVotes", big.NewInt(1), big.NewInt(7), big.NewInt(2))
	b.respond("proposalDeadline", big.NewInt(120))
	b.respond("proposalEta", big.NewInt(0))
	b.respond("getVotes", big.NewInt(5))
	b.respond("name", "GovernorContract")

	g, err := NewGovernor(testGovernorAddr, b, nil)
	require.NoError(t, err)

	ctx := context.Background()
	id := big.NewInt(0xAB)

	st, err := g.State(ctx, id)
	require.NoError(t, err)
	require.Equal(t, uint8(4), st)

	v, err := g.ProposalVotes(ctx, id)
	require.NoError(t, err)
	require.Equal(t, int64(1), v.Against.Int64())
	require.Equal(t, int64(7), v.For.Int64())
	require.Equal(t, int64(2), v.Abstain.Int64())

	dl, err := g.ProposalDeadline(ctx, id)
	require.NoError(t, err)
	require.Equal(t, int64(120), dl.Int64())

	eta, err := g.ProposalEta(ctx, id)
	require.NoError(t, err)
	require.Equal(t, int64(0), eta.Int64())

	w, err := g.GetVotes(ctx, common.HexToAddress("0x01"), big.NewInt(99))
	require.NoError(t, err)
	require.Equal(t, int64(5), w.Int64())

	name, err := g.Name(ctx)
	require.NoError(t, err)
	require.Equal(t, "GovernorContract", name)

	b.callErr = errors.New("connection refused")
	_, err = g.State(ctx, id)
	require.Error(t, err)
}

func TestGovernorWrites(t *testing.T) {
	govABI, err := GetGovernorABI()
	require.NoError(t, err)

	b := newTestBackend(govABI)

	ro, err := NewGovernor(testGovernorAddr, b, nil)
	require.NoError(t, err)

	p := dao.NewPayload([]common.Address{testBoxAddr}, []*big.Int{big.NewInt(0)}, [][]byte{{0x01}}, "d")

	_, err = ro.Queue(context.Background(), p)
	require.True(t, errors.Is(err, dao.ErrNoSigner))
	require.Empty(t, b.sent)

	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	auth, err := bind.NewKeyedTransactorWithChainID(key, big.NewInt(1337))
	require.NoError(t, err)

	g, err := NewGovernor(testGovernorAddr, b, auth)
	require.NoError(t, err)

	tx, err := g.Queue(context.Background(), p)
	require.NoError(t, err)
	require.Len(t, b.sent, 1)
	require.Equal(t, testGovernorAddr, *tx.To())

	expected, err := govABI.Pack("queue", p.Targets, p.Values, p.Calldatas, [32]byte(p.DescriptionHash))
	require.NoError(t, err)
	require.Equal(t, expected, tx.Data())

	tx, err = g.CastVoteWithReason(context.Background(), big.NewInt(0xAB), dao.VoteFor, "just testing la")
	require.NoError(t, err)
	require.Len(t, b.sent, 2)

	m, err := govABI.MethodById(tx.Data()[:4])
	require.NoError(t, err)
	require.Equal(t, "castVoteWithReason", m.Name)
}

func TestBox(t *testing.T) {
	boxABI, err := GetBoxABI()
	require.NoError(t, err)

	b := newTestBackend(boxABI)
	b.respond("retrieve", []string{"caonima"})

	box, err := NewBox(testBoxAddr, b)
	require.NoError(t, err)

	v, err := box.Retrieve(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"caonima"}, v)

	p, err := StorePayload(box, []string{"caonima"}, "store caonima")
	require.NoError(t, err)
	require.Equal(t, []common.Address{testBoxAddr}, p.Targets)
	require.Equal(t, int64(0), p.Values[0].Int64())

	args, err := boxABI.Methods["store"].Inputs.Unpack(p.Calldatas[0][4:])
	require.NoError(t, err)
	require.Equal(t, []string{"caonima"}, args[0])
	require.Equal(t, dao.DescriptionHash("store caonima"), p.DescriptionHash)
}
