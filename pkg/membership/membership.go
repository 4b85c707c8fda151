package membership

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/citizenwallet/boxdao/pkg/dao"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

const DefaultMaxProbes = 64

// Prober looks up the voting weight of an account at a past block. The
// Governor only answers for checkpointed blocks, so the lookup walks back
// from the current height until a call succeeds.
type Prober struct {
	maxProbes int
	log       *zap.Logger
}

func NewProber(maxProbes int, logger *zap.Logger) *Prober {
	if maxProbes <= 0 {
		maxProbes = DefaultMaxProbes
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Prober{
		maxProbes: maxProbes,
		log:       logger,
	}
}

// Resolve probes getVotes at currentHeight-k for k in [0, maxProbes). A zero
// weight is a definite answer; only failing calls move the probe back.
func (p *Prober) Resolve(ctx context.Context, sess *dao.Session, account common.Address, currentHeight uint64) (dao.MembershipStatus, error) {
	var lastErr error

	for k := 0; k < p.maxProbes; k++ {
		if uint64(k) > currentHeight {
			break
		}

		if err := ctx.Err(); err != nil {
			return dao.MembershipStatus{}, err
		}

		height := currentHeight - uint64(k)

		weight, err := sess.Governor.GetVotes(ctx, account, new(big.Int).SetUint64(height))
		if err != nil {
			p.log.Debug("weight probe failed", zap.Uint64("block", height), zap.Error(err))
			lastErr = err
			continue
		}

		return dao.MembershipStatus{
			Account:   account,
			IsMember:  weight.Sign() > 0,
			Weight:    weight,
			AsOfBlock: height,
		}, nil
	}

	return dao.MembershipStatus{}, fmt.Errorf("%w: %s from block %d: %v", dao.ErrExhausted, account.Hex(), currentHeight, lastErr)
}

type result struct {
	sess   *dao.Session
	status dao.MembershipStatus
	err    error
	done   chan struct{}
}

// Gate holds the membership of the current session's account. It resolves
// once per session identity; concurrent callers wait for the same lookup.
type Gate struct {
	mu     sync.Mutex
	prober *Prober
	store  *dao.SessionStore
	cur    *result
}

func NewGate(prober *Prober, store *dao.SessionStore) *Gate {
	return &Gate{
		prober: prober,
		store:  store,
	}
}

// Status returns the membership of the current session's account
func (g *Gate) Status(ctx context.Context) (dao.MembershipStatus, error) {
	sess := g.store.Load()
	if sess == nil {
		return dao.MembershipStatus{}, dao.ErrUnsupportedChain
	}

	g.mu.Lock()
	r := g.cur
	if r == nil || !r.sess.SameIdentity(sess) {
		r = &result{sess: sess, done: make(chan struct{})}
		g.cur = r
		g.mu.Unlock()

		r.status, r.err = g.resolve(ctx, sess)
		close(r.done)

		if r.err != nil {
			// failures are not cached, the next caller probes again
			g.mu.Lock()
			if g.cur == r {
				g.cur = nil
			}
			g.mu.Unlock()
		}

		return r.status, r.err
	}
	g.mu.Unlock()

	select {
	case <-r.done:
	case <-ctx.Done():
		return dao.MembershipStatus{}, ctx.Err()
	}

	return r.status, r.err
}

func (g *Gate) resolve(ctx context.Context, sess *dao.Session) (dao.MembershipStatus, error) {
	head, err := sess.EVM.LatestBlock(ctx)
	if err != nil {
		return dao.MembershipStatus{}, fmt.Errorf("%w: latest block: %v", dao.ErrRemoteUnavailable, err)
	}

	return g.prober.Resolve(ctx, sess, sess.Account, head.Uint64())
}
