package dao

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

/**
 * @dev Emitted when a proposal is created.
 */
//event ProposalCreated(
//	uint256 proposalId,
//	address proposer,
//	address[] targets,
//	uint256[] values,
//	string[] signatures,
//	bytes[] calldatas,
//	uint256 voteStart,
//	uint256 voteEnd,
//	string description
//);

// ProposalRecord is decoded once from a ProposalCreated log and never mutated
type ProposalRecord struct {
	ID         *big.Int         `json:"proposal_id"`
	Proposer   common.Address   `json:"proposer"`
	Targets    []common.Address `json:"targets"`
	Values     []*big.Int       `json:"values"`
	Signatures []string         `json:"signatures"`
	Calldatas  []hexutil.Bytes  `json:"calldatas"`

	VoteStart *big.Int `json:"vote_start"`
	VoteEnd   *big.Int `json:"vote_end"`

	Description     string      `json:"description"`
	DescriptionHash common.Hash `json:"description_hash"`

	BlockNumber uint64      `json:"block_number"`
	TxHash      common.Hash `json:"tx_hash"`
	LogIndex    uint        `json:"log_index"`
}

// Key is the map key used for a proposal id
func (r *ProposalRecord) Key() string {
	return ProposalKey(r.ID)
}

func ProposalKey(id *big.Int) string {
	return hexutil.EncodeBig(id)
}

// CalldataBytes returns the calldatas as plain byte slices
func (r *ProposalRecord) CalldataBytes() [][]byte {
	cd := make([][]byte, len(r.Calldatas))
	for i, c := range r.Calldatas {
		cd[i] = c
	}

	return cd
}

type Votes struct {
	Against *big.Int `json:"against"`
	For     *big.Int `json:"for"`
	Abstain *big.Int `json:"abstain"`
}

func NewVotes() Votes {
	return Votes{Against: new(big.Int), For: new(big.Int), Abstain: new(big.Int)}
}

// Total is the sum of all three tallies
func (v Votes) Total() *big.Int {
	t := new(big.Int)
	for _, n := range []*big.Int{v.Against, v.For, v.Abstain} {
		if n != nil {
			t.Add(t, n)
		}
	}

	return t
}

// ProposalSnapshot is a point in time view of a proposal. A new snapshot is
// derived on every reconciliation and replaces the previous one.
type ProposalSnapshot struct {
	Record *ProposalRecord `json:"proposal"`
	State  ProposalState   `json:"state"`
	Votes  Votes           `json:"votes"`

	// DeadlineBlock is the absolute block at which voting closes
	DeadlineBlock uint64 `json:"deadline_block"`
	// VotingDeadline is DeadlineBlock minus the height at resolution time,
	// zero or negative once voting has closed
	VotingDeadline int64 `json:"voting_deadline"`
	// ExecutionEta is the timelock eta in seconds, zero until queued
	ExecutionEta uint64 `json:"execution_eta"`

	AsOfBlock  uint64    `json:"as_of_block"`
	ResolvedAt time.Time `json:"resolved_at"`
}

func (s *ProposalSnapshot) VotingEnded() bool {
	return s.VotingDeadline <= 0
}

// EtaPassed reports whether execution is permitted at the given block time
func (s *ProposalSnapshot) EtaPassed(blockTime uint64) bool {
	return s.ExecutionEta != 0 && blockTime >= s.ExecutionEta
}

// CanVote reports whether the proposal currently accepts votes
func (s *ProposalSnapshot) CanVote() bool {
	return s.State == StateActive
}

type MembershipStatus struct {
	Account   common.Address `json:"account"`
	IsMember  bool           `json:"is_member"`
	Weight    *big.Int       `json:"weight"`
	AsOfBlock uint64         `json:"as_of_block"`
}

// Payload holds the arguments shared by propose, queue and execute
type Payload struct {
	Targets         []common.Address `json:"targets"`
	Values          []*big.Int       `json:"values"`
	Calldatas       [][]byte         `json:"calldatas"`
	Description     string           `json:"description"`
	DescriptionHash common.Hash      `json:"description_hash"`
}

func NewPayload(targets []common.Address, values []*big.Int, calldatas [][]byte, description string) *Payload {
	return &Payload{
		Targets:         targets,
		Values:          values,
		Calldatas:       calldatas,
		Description:     description,
		DescriptionHash: DescriptionHash(description),
	}
}

// DescriptionHash matches ethers.utils.id and the Governor's keccak256(bytes(description))
func DescriptionHash(description string) common.Hash {
	return crypto.Keccak256Hash([]byte(description))
}
