package govdb

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"
	"time"

	"github.com/citizenwallet/boxdao/pkg/dao"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/lib/pq"
)

type ProposalDB struct {
	p *DB
}

// Proposal is the stored view of a proposal and its latest state
type Proposal struct {
	ID          string
	Proposer    string
	Targets     []string
	Values      []string
	Calldatas   []string
	Description string
	State       dao.ProposalState
	BlockNumber uint64
	TxHash      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (pdb *ProposalDB) Create(ctx context.Context) error {
	_, err := pdb.p.db.ExecContext(ctx, fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s(
		proposal_id text NOT NULL,
		proposer varchar(42) NOT NULL,
		state smallint NOT NULL,

		targets text ARRAY,
		valuez text ARRAY,
		calldatas text ARRAY,

		description text NOT NULL,
		block_number bigint NOT NULL,
		tx_hash varchar(66) NOT NULL,

		created_at timestamp NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at timestamp NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (proposal_id)
	);
	`, pdb.p.proposalsTableName()))

	return err
}

func (pdb *ProposalDB) drop() error {
	_, err := pdb.p.db.Exec(fmt.Sprintf(`DROP TABLE IF EXISTS %s;`, pdb.p.proposalsTableName()))
	return err
}

func (pdb *ProposalDB) ensureExists(ctx context.Context) error {
	return pdb.Create(ctx)
}

func (pdb *ProposalDB) upsert(ctx context.Context, tx *sql.Tx, snap dao.ProposalSnapshot) error {
	r := snap.Record

	targets := make([]string, len(r.Targets))
	for i, t := range r.Targets {
		targets[i] = t.Hex()
	}

	values := make([]string, len(r.Values))
	for i, v := range r.Values {
		values[i] = v.String()
	}

	calldatas := make([]string, len(r.Calldatas))
	for i, c := range r.Calldatas {
		calldatas[i] = c.String()
	}

	_, err := tx.ExecContext(ctx, fmt.Sprintf(`
	INSERT INTO %s (proposal_id, proposer, state, targets, valuez, calldatas, description, block_number, tx_hash)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (proposal_id) DO UPDATE SET
		state = EXCLUDED.state,
		updated_at = CURRENT_TIMESTAMP
	`, pdb.p.proposalsTableName()),
		r.Key(), r.Proposer.Hex(), int(snap.State),
		pq.Array(targets), pq.Array(values), pq.Array(calldatas),
		r.Description, int64(r.BlockNumber), r.TxHash.Hex())

	return err
}

// Get returns a stored proposal, nil if unknown
func (pdb *ProposalDB) Get(ctx context.Context, id *big.Int) (*Proposal, error) {
	p := &Proposal{}
	var state int
	var block int64

	err := pdb.p.db.QueryRowContext(ctx, fmt.Sprintf(`
	SELECT proposal_id, proposer, state, targets, valuez, calldatas, description, block_number, tx_hash, created_at, updated_at
	FROM %s WHERE proposal_id = $1
	`, pdb.p.proposalsTableName()), dao.ProposalKey(id)).Scan(
		&p.ID, &p.Proposer, &state,
		pq.Array(&p.Targets), pq.Array(&p.Values), pq.Array(&p.Calldatas),
		&p.Description, &block, &p.TxHash, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	p.State = dao.ProposalState(state)
	p.BlockNumber = uint64(block)

	return p, nil
}

// Record rebuilds the proposal record from its stored columns
func (p *Proposal) Record() (*dao.ProposalRecord, error) {
	id, err := hexutil.DecodeBig(p.ID)
	if err != nil {
		return nil, err
	}

	r := &dao.ProposalRecord{
		ID:              id,
		Proposer:        common.HexToAddress(p.Proposer),
		Description:     p.Description,
		DescriptionHash: dao.DescriptionHash(p.Description),
		BlockNumber:     p.BlockNumber,
		TxHash:          common.HexToHash(p.TxHash),
	}

	for _, t := range p.Targets {
		r.Targets = append(r.Targets, common.HexToAddress(t))
	}
	for _, v := range p.Values {
		n, ok := new(big.Int).SetString(v, 10)
		if !ok {
			return nil, fmt.Errorf("invalid value %q", v)
		}
		r.Values = append(r.Values, n)
	}
	for _, c := range p.Calldatas {
		b, err := hexutil.Decode(c)
		if err != nil {
			return nil, err
		}
		r.Calldatas = append(r.Calldatas, b)
	}

	return r, nil
}
