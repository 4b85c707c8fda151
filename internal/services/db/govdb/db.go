package govdb

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"
	"strings"

	"github.com/citizenwallet/boxdao/pkg/dao"
	"github.com/ethereum/go-ethereum/common"
	_ "github.com/lib/pq"
)

// DB keeps the snapshot history of one Governor on one chain
type DB struct {
	chainID  *big.Int
	governor common.Address
	db       *sql.DB

	ProposalsDB *ProposalDB
	SnapshotsDB *SnapshotDB

	testing bool
}

func NewDB(ctx context.Context, chainID *big.Int, governor common.Address, dsn string) (*DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	err = db.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	gdb := &DB{
		chainID:  chainID,
		governor: governor,
		db:       db,
	}
	gdb.ProposalsDB = &ProposalDB{p: gdb}
	gdb.SnapshotsDB = &SnapshotDB{p: gdb}

	if err = gdb.ProposalsDB.ensureExists(ctx); err != nil {
		return nil, err
	}

	if err = gdb.SnapshotsDB.ensureExists(ctx); err != nil {
		return nil, err
	}

	return gdb, nil
}

// SetTesting drops the tables on Close
func (gdb *DB) SetTesting() {
	gdb.testing = true
}

func (gdb *DB) Close() error {
	if gdb.testing {
		gdb.SnapshotsDB.drop()
		gdb.ProposalsDB.drop()
	}

	return gdb.db.Close()
}

func (gdb *DB) tableSuffix() string {
	return fmt.Sprintf("%s_%s", gdb.chainID.String(), strings.ToLower(gdb.governor.Hex()[2:]))
}

func (gdb *DB) proposalsTableName() string {
	return "t_proposals_" + gdb.tableSuffix()
}

func (gdb *DB) snapshotsTableName() string {
	return "t_proposal_snapshots_" + gdb.tableSuffix()
}

// SaveSnapshot records the proposal and appends the snapshot to its history
func (gdb *DB) SaveSnapshot(ctx context.Context, chainID *big.Int, snap dao.ProposalSnapshot) error {
	if chainID.Cmp(gdb.chainID) != 0 {
		return fmt.Errorf("snapshot for chain %s stored in chain %s history", chainID, gdb.chainID)
	}

	tx, err := gdb.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	err = gdb.ProposalsDB.upsert(ctx, tx, snap)
	if err != nil {
		return err
	}

	err = gdb.SnapshotsDB.add(ctx, tx, snap)
	if err != nil {
		return err
	}

	return tx.Commit()
}
