package govdb

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"
	"time"

	"github.com/citizenwallet/boxdao/pkg/dao"
)

type SnapshotDB struct {
	p *DB
}

// SnapshotRow is one resolution of a proposal
type SnapshotRow struct {
	ProposalID    string            `json:"proposal_id"`
	State         dao.ProposalState `json:"state"`
	Against       string            `json:"against"`
	For           string            `json:"for"`
	Abstain       string            `json:"abstain"`
	DeadlineBlock uint64            `json:"deadline_block"`
	ExecutionEta  uint64            `json:"execution_eta"`
	AsOfBlock     uint64            `json:"as_of_block"`
	ResolvedAt    time.Time         `json:"resolved_at"`
}

func (sdb *SnapshotDB) Create(ctx context.Context) error {
	_, err := sdb.p.db.ExecContext(ctx, fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %[1]s(
		proposal_id text NOT NULL,
		state smallint NOT NULL,
		votes_against numeric NOT NULL,
		votes_for numeric NOT NULL,
		votes_abstain numeric NOT NULL,
		deadline_block bigint NOT NULL,
		execution_eta bigint NOT NULL,
		as_of_block bigint NOT NULL,
		resolved_at timestamp NOT NULL,
		UNIQUE (proposal_id, as_of_block)
	);
	CREATE INDEX IF NOT EXISTS idx_%[1]s_proposal ON %[1]s (proposal_id, as_of_block DESC);
	`, sdb.p.snapshotsTableName()))

	return err
}

func (sdb *SnapshotDB) drop() error {
	_, err := sdb.p.db.Exec(fmt.Sprintf(`DROP TABLE IF EXISTS %s;`, sdb.p.snapshotsTableName()))
	return err
}

func (sdb *SnapshotDB) ensureExists(ctx context.Context) error {
	return sdb.Create(ctx)
}

func (sdb *SnapshotDB) add(ctx context.Context, tx *sql.Tx, snap dao.ProposalSnapshot) error {
	_, err := tx.ExecContext(ctx, fmt.Sprintf(`
	INSERT INTO %s (proposal_id, state, votes_against, votes_for, votes_abstain, deadline_block, execution_eta, as_of_block, resolved_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (proposal_id, as_of_block) DO NOTHING
	`, sdb.p.snapshotsTableName()),
		snap.Record.Key(), int(snap.State),
		bigString(snap.Votes.Against), bigString(snap.Votes.For), bigString(snap.Votes.Abstain),
		int64(snap.DeadlineBlock), int64(snap.ExecutionEta), int64(snap.AsOfBlock), snap.ResolvedAt.UTC())

	return err
}

// History returns the latest snapshots of a proposal, newest first
func (sdb *SnapshotDB) History(ctx context.Context, id *big.Int, limit int) ([]SnapshotRow, error) {
	rows, err := sdb.p.db.QueryContext(ctx, fmt.Sprintf(`
	SELECT proposal_id, state, votes_against::text, votes_for::text, votes_abstain::text, deadline_block, execution_eta, as_of_block, resolved_at
	FROM %s WHERE proposal_id = $1
	ORDER BY as_of_block DESC
	LIMIT $2
	`, sdb.p.snapshotsTableName()), dao.ProposalKey(id), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	history := []SnapshotRow{}
	for rows.Next() {
		var r SnapshotRow
		var state int
		var deadline, eta, asOf int64

		err := rows.Scan(&r.ProposalID, &state, &r.Against, &r.For, &r.Abstain, &deadline, &eta, &asOf, &r.ResolvedAt)
		if err != nil {
			return nil, err
		}

		r.State = dao.ProposalState(state)
		r.DeadlineBlock = uint64(deadline)
		r.ExecutionEta = uint64(eta)
		r.AsOfBlock = uint64(asOf)

		history = append(history, r)
	}

	return history, rows.Err()
}

func bigString(n *big.Int) string {
	if n == nil {
		return "0"
	}
	return n.String()
}
