package automation

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/citizenwallet/boxdao/pkg/dao"
	"github.com/citizenwallet/boxdao/pkg/governor"
	"github.com/citizenwallet/boxdao/pkg/govindex"
	"github.com/citizenwallet/boxdao/pkg/resolve"
	"github.com/citizenwallet/boxdao/pkg/submit"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultMaxInFlight = 8
	// DefaultResubscribeDelay is the wait before a dropped head subscription
	// is opened again
	DefaultResubscribeDelay = 2 * time.Second
)

// SnapshotStore keeps a history of resolved snapshots
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, chainID *big.Int, snap dao.ProposalSnapshot) error
}

// Notifier accepts notifications without blocking
type Notifier interface {
	Enqueue(n *dao.Notification)
}

type Options struct {
	MaxInFlight      int
	ResubscribeDelay time.Duration
	Store            SnapshotStore
	Notifier         Notifier
	Logger           *zap.Logger
}

// Driver runs reconciliation passes: discover, resolve and advance every
// tracked proposal. Only one pass runs at a time.
type Driver struct {
	sessions  *dao.SessionStore
	indexer   *govindex.Indexer
	resolver  *resolve.Resolver
	submitter *submit.Submitter
	payloads  PayloadSource
	tracked   *TrackedSet

	waiting          atomic.Bool
	maxInFlight      int
	resubscribeDelay time.Duration

	store    SnapshotStore
	notifier Notifier
	log      *zap.Logger
}

func NewDriver(sessions *dao.SessionStore, indexer *govindex.Indexer, resolver *resolve.Resolver, submitter *submit.Submitter, payloads PayloadSource, opts Options) *Driver {
	if opts.MaxInFlight <= 0 {
		opts.MaxInFlight = DefaultMaxInFlight
	}
	if opts.ResubscribeDelay <= 0 {
		opts.ResubscribeDelay = DefaultResubscribeDelay
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return &Driver{
		sessions:         sessions,
		indexer:          indexer,
		resolver:         resolver,
		submitter:        submitter,
		payloads:         payloads,
		tracked:          NewTrackedSet(),
		maxInFlight:      opts.MaxInFlight,
		resubscribeDelay: opts.ResubscribeDelay,
		store:            opts.Store,
		notifier:         opts.Notifier,
		log:              opts.Logger,
	}
}

func (d *Driver) Tracked() *TrackedSet {
	return d.tracked
}

// InFlight reports whether a pass is running
func (d *Driver) InFlight() bool {
	return d.waiting.Load()
}

// Trigger runs one pass unless a pass is already in flight, in which case
// the trigger is dropped and false is returned.
func (d *Driver) Trigger(ctx context.Context) bool {
	if !d.waiting.CompareAndSwap(false, true) {
		droppedTriggers.Inc()
		d.log.Debug("pass in flight, trigger dropped")
		return false
	}
	defer d.waiting.Store(false)

	d.pass(ctx)
	return true
}

// Run triggers a pass now and on every new head until ctx is done. A
// dropped head subscription is opened again after a delay, passes keep
// running on the heads of the new one. Run returns once the passes it
// started have ended.
func (d *Driver) Run(ctx context.Context) error {
	if d.sessions.Load() == nil {
		return dao.ErrUnsupportedChain
	}

	heads := make(chan uint64)
	subErr := make(chan error, 1)

	sctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	defer wg.Wait()

	subscribe := func() bool {
		sess := d.sessions.Load()
		if sess == nil {
			return false
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			subErr <- sess.EVM.SubscribeBlocks(sctx, heads)
		}()

		return true
	}

	trigger := func() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.Trigger(ctx)
		}()
	}

	var retry <-chan time.Time
	if !subscribe() {
		retry = time.After(d.resubscribeDelay)
	}

	trigger()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-subErr:
			if ctx.Err() != nil {
				return nil
			}

			subscriptionErrors.Inc()
			d.log.Warn("head subscription dropped, resubscribing",
				zap.Duration("delay", d.resubscribeDelay),
				zap.Error(err),
			)
			retry = time.After(d.resubscribeDelay)
		case <-retry:
			if !subscribe() {
				d.log.Debug("no session, not subscribing")
				retry = time.After(d.resubscribeDelay)
				continue
			}
			retry = nil

			// heads may have been missed while unsubscribed
			trigger()
		case h := <-heads:
			d.log.Debug("new head", zap.Uint64("block", h))
			trigger()
		}
	}
}

func (d *Driver) pass(ctx context.Context) {
	sess, gen := d.sessions.LoadWithGeneration()
	if sess == nil {
		d.log.Debug("no session, idle")
		return
	}

	start := time.Now()
	passesTotal.Inc()
	defer func() {
		passDuration.Observe(time.Since(start).Seconds())
	}()

	head, err := sess.EVM.LatestBlock(ctx)
	if err != nil {
		d.log.Warn("could not read head", zap.Error(err))
		return
	}

	records, err := d.indexer.Discover(ctx, sess, sess.StartBlock, head.Uint64())
	if err != nil {
		d.log.Warn("discovery failed", zap.Uint64("block", head.Uint64()), zap.Error(err))
		return
	}

	if added := d.tracked.Track(gen, records); added > 0 {
		d.log.Info("tracking new proposals", zap.Int("count", added), zap.Uint64("block", head.Uint64()))
	}
	trackedProposals.Set(float64(d.tracked.Len()))

	g := new(errgroup.Group)
	g.SetLimit(d.maxInFlight)

	for _, rec := range d.tracked.Records() {
		if snap, ok := d.tracked.Get(rec.Key()); ok && snap.State.IsFinal() {
			continue
		}

		rec := rec
		g.Go(func() error {
			d.reconcile(ctx, sess, gen, rec)
			return nil
		})
	}

	g.Wait()
}

// reconcile refreshes one proposal and advances it when its state allows.
// Every failure stays local to the proposal.
func (d *Driver) reconcile(ctx context.Context, sess *dao.Session, gen uint64, rec *dao.ProposalRecord) {
	log := d.log.With(zap.String("proposal", rec.Key()))

	snap, ok := d.refresh(ctx, sess, gen, rec)
	if !ok {
		return
	}

	action, ok := nextAction(snap.State)
	if !ok {
		return
	}
	log = log.With(zap.String("state", snap.State.String()), zap.String("action", string(action)))

	p, err := d.payloads.Payload(ctx, sess, rec)
	if err != nil {
		log.Debug("no payload", zap.Error(err))
		return
	}

	id, err := governor.HashPayload(p)
	if err != nil {
		log.Warn("could not hash payload", zap.Error(err))
		return
	}

	if id.Cmp(rec.ID) != 0 {
		mismatchesTotal.Inc()
		log.Info("proposal changed, skipping", zap.String("computed", dao.ProposalKey(id)))
		d.notify(dao.NewNotification(dao.NotifyWarning, rec.Key(), action, "skipped", dao.ErrMismatch))
		return
	}

	if action == dao.ActionExecute {
		now, err := sess.EVM.BlockTime(ctx, nil)
		if err != nil {
			log.Warn("could not read block time", zap.Error(err))
			return
		}

		if !snap.EtaPassed(now) {
			log.Debug("timelock pending", zap.Uint64("eta", snap.ExecutionEta), zap.Uint64("now", now))
			return
		}
	}

	if !sess.HasSigner() {
		log.Debug("read only session, not acting")
		return
	}

	tx, err := d.submitter.Submit(ctx, sess, action, submit.Request{Payload: p})
	if err != nil {
		actionsTotal.WithLabelValues(string(action), outcomeFailed).Inc()
		log.Error("submit failed", zap.Error(err))
		d.notify(dao.NewNotification(dao.NotifyError, rec.Key(), action, "submit failed", err))
		return
	}
	log = log.With(zap.String("tx", tx.Hash().Hex()))

	rcpt, err := d.submitter.AwaitConfirmations(ctx, sess.EVM, tx, d.submitter.Depth(action))
	if err != nil {
		actionsTotal.WithLabelValues(string(action), outcome(err)).Inc()
		log.Error("confirmation failed", zap.Error(err))
		d.notify(dao.NewNotification(dao.NotifyError, rec.Key(), action, "not confirmed", err))
		return
	}

	actionsTotal.WithLabelValues(string(action), outcomeConfirmed).Inc()
	log.Info("confirmed", zap.Uint64("block", rcpt.BlockNumber.Uint64()))
	d.notify(dao.NewNotification(dao.NotifyInfo, rec.Key(), action, "confirmed in tx "+tx.Hash().Hex(), nil))

	d.refresh(ctx, sess, gen, rec)
}

func (d *Driver) refresh(ctx context.Context, sess *dao.Session, gen uint64, rec *dao.ProposalRecord) (dao.ProposalSnapshot, bool) {
	snap, err := d.resolver.Resolve(ctx, sess, rec)
	if err != nil {
		resolveErrors.Inc()
		d.log.Warn("could not resolve proposal", zap.String("proposal", rec.Key()), zap.Error(err))
		return dao.ProposalSnapshot{}, false
	}

	if !d.tracked.Replace(gen, snap) {
		// the session was replaced while resolving
		return dao.ProposalSnapshot{}, false
	}

	if d.store != nil {
		err := d.store.SaveSnapshot(ctx, sess.ChainID, snap)
		if err != nil {
			d.log.Warn("could not save snapshot", zap.String("proposal", rec.Key()), zap.Error(err))
		}
	}

	return snap, true
}

func (d *Driver) notify(n *dao.Notification) {
	if d.notifier == nil {
		return
	}

	d.notifier.Enqueue(n)
}

// nextAction maps a state to the write that advances it
func nextAction(s dao.ProposalState) (dao.Action, bool) {
	switch s {
	case dao.StateSucceeded:
		return dao.ActionQueue, true
	case dao.StateQueued:
		return dao.ActionExecute, true
	}

	return "", false
}

func outcome(err error) string {
	switch {
	case errors.Is(err, dao.ErrReverted):
		return outcomeReverted
	case errors.Is(err, dao.ErrTimeout):
		return outcomeTimeout
	}

	return outcomeFailed
}
