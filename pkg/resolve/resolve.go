package resolve

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/citizenwallet/boxdao/pkg/dao"
	"go.uber.org/zap"
)

// Resolver derives proposal snapshots from the Governor's view functions
type Resolver struct {
	log *zap.Logger
	now func() time.Time
}

func New(logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Resolver{
		log: logger,
		now: time.Now,
	}
}

// Resolve reads the current height, the tallies, the state and the
// deadline/eta of a proposal. The reads are independent and may observe
// different heights.
func (r *Resolver) Resolve(ctx context.Context, sess *dao.Session, record *dao.ProposalRecord) (dao.ProposalSnapshot, error) {
	head, err := sess.EVM.LatestBlock(ctx)
	if err != nil {
		return dao.ProposalSnapshot{}, fmt.Errorf("%w: latest block: %v", dao.ErrRemoteUnavailable, err)
	}

	votes, err := sess.Governor.ProposalVotes(ctx, record.ID)
	if err != nil {
		return dao.ProposalSnapshot{}, fmt.Errorf("%w: proposal votes: %v", dao.ErrRemoteUnavailable, err)
	}

	raw, err := sess.Governor.State(ctx, record.ID)
	if err != nil {
		return dao.ProposalSnapshot{}, fmt.Errorf("%w: state: %v", dao.ErrRemoteUnavailable, err)
	}

	state, err := dao.ProposalStateFromUint8(raw)
	if err != nil {
		return dao.ProposalSnapshot{}, err
	}

	deadline, err := sess.Governor.ProposalDeadline(ctx, record.ID)
	if err != nil {
		return dao.ProposalSnapshot{}, fmt.Errorf("%w: proposal deadline: %v", dao.ErrRemoteUnavailable, err)
	}

	eta, err := sess.Governor.ProposalEta(ctx, record.ID)
	if err != nil {
		return dao.ProposalSnapshot{}, fmt.Errorf("%w: proposal eta: %v", dao.ErrRemoteUnavailable, err)
	}

	return dao.ProposalSnapshot{
		Record:         record,
		State:          state,
		Votes:          votes,
		DeadlineBlock:  deadline.Uint64(),
		VotingDeadline: relative(deadline, head),
		ExecutionEta:   eta.Uint64(),
		AsOfBlock:      head.Uint64(),
		ResolvedAt:     r.now(),
	}, nil
}

// ResolveAll resolves every record on its own. Records that fail are logged
// and left out of the result.
func (r *Resolver) ResolveAll(ctx context.Context, sess *dao.Session, records []*dao.ProposalRecord) []dao.ProposalSnapshot {
	snaps := make([]dao.ProposalSnapshot, 0, len(records))
	for _, rec := range records {
		snap, err := r.Resolve(ctx, sess, rec)
		if err != nil {
			r.log.Warn("could not resolve proposal", zap.String("proposal", rec.Key()), zap.Error(err))
			continue
		}

		snaps = append(snaps, snap)
	}

	return snaps
}

// relative returns deadline - head, saturating at the int64 bounds
func relative(deadline, head *big.Int) int64 {
	d := new(big.Int).Sub(deadline, head)
	if !d.IsInt64() {
		if d.Sign() < 0 {
			return -1 << 63
		}
		return 1<<63 - 1
	}

	return d.Int64()
}
