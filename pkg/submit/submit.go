package submit

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/citizenwallet/boxdao/pkg/dao"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

const (
	DefaultTimeout      = 5 * time.Minute
	DefaultPollInterval = time.Second
)

// Confirmations is the depth awaited after each kind of write
type Confirmations map[dao.Action]uint64

func DefaultConfirmations() Confirmations {
	return Confirmations{
		dao.ActionPropose: 1,
		dao.ActionVote:    1,
		dao.ActionQueue:   2,
		dao.ActionExecute: 2,
	}
}

// Request carries the arguments of a write. Propose, queue and execute use
// Payload; vote uses ProposalID, Support and Reason.
type Request struct {
	Payload    *dao.Payload
	ProposalID *big.Int
	Support    dao.VoteSupport
	Reason     string
}

// Submitter sends Governor writes once and waits for their confirmation. It
// never retries; the next reconciliation pass re-derives what to do.
type Submitter struct {
	confirmations Confirmations
	timeout       time.Duration
	poll          time.Duration
	log           *zap.Logger
}

func New(confirmations Confirmations, timeout time.Duration, logger *zap.Logger) *Submitter {
	if confirmations == nil {
		confirmations = DefaultConfirmations()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Submitter{
		confirmations: confirmations,
		timeout:       timeout,
		poll:          DefaultPollInterval,
		log:           logger,
	}
}

// WithPollInterval sets how often the head is polled while waiting
func (s *Submitter) WithPollInterval(d time.Duration) *Submitter {
	s.poll = d
	return s
}

// Depth returns the confirmations awaited for action, at least 1
func (s *Submitter) Depth(action dao.Action) uint64 {
	n := s.confirmations[action]
	if n == 0 {
		return 1
	}

	return n
}

func (s *Submitter) Propose(ctx context.Context, sess *dao.Session, p *dao.Payload) (*types.Transaction, error) {
	return s.Submit(ctx, sess, dao.ActionPropose, Request{Payload: p})
}

func (s *Submitter) Vote(ctx context.Context, sess *dao.Session, id *big.Int, support dao.VoteSupport, reason string) (*types.Transaction, error) {
	return s.Submit(ctx, sess, dao.ActionVote, Request{ProposalID: id, Support: support, Reason: reason})
}

func (s *Submitter) Queue(ctx context.Context, sess *dao.Session, p *dao.Payload) (*types.Transaction, error) {
	return s.Submit(ctx, sess, dao.ActionQueue, Request{Payload: p})
}

func (s *Submitter) Execute(ctx context.Context, sess *dao.Session, p *dao.Payload) (*types.Transaction, error) {
	return s.Submit(ctx, sess, dao.ActionExecute, Request{Payload: p})
}

// Submit sends a single write and returns the pending transaction
func (s *Submitter) Submit(ctx context.Context, sess *dao.Session, action dao.Action, req Request) (*types.Transaction, error) {
	if !sess.HasSigner() {
		return nil, dao.ErrNoSigner
	}

	var (
		tx  *types.Transaction
		err error
	)

	switch action {
	case dao.ActionPropose, dao.ActionQueue, dao.ActionExecute:
		if req.Payload == nil {
			return nil, fmt.Errorf("%s: missing payload", action)
		}
	case dao.ActionVote:
		if req.ProposalID == nil {
			return nil, fmt.Errorf("%s: missing proposal id", action)
		}
	default:
		return nil, fmt.Errorf("unknown action %q", action)
	}

	switch action {
	case dao.ActionPropose:
		tx, err = sess.Governor.Propose(ctx, req.Payload)
	case dao.ActionVote:
		tx, err = sess.Governor.CastVoteWithReason(ctx, req.ProposalID, req.Support, req.Reason)
	case dao.ActionQueue:
		tx, err = sess.Governor.Queue(ctx, req.Payload)
	case dao.ActionExecute:
		tx, err = sess.Governor.Execute(ctx, req.Payload)
	}
	if err != nil {
		return nil, err
	}

	s.log.Info("submitted", zap.String("action", string(action)), zap.String("tx", tx.Hash().Hex()))

	return tx, nil
}

// SubmitAndWait submits and awaits the depth configured for action
func (s *Submitter) SubmitAndWait(ctx context.Context, sess *dao.Session, action dao.Action, req Request) (*types.Receipt, error) {
	tx, err := s.Submit(ctx, sess, action, req)
	if err != nil {
		return nil, err
	}

	return s.AwaitConfirmations(ctx, sess.EVM, tx, s.Depth(action))
}

// AwaitConfirmations waits until tx is mined and n blocks, counting its own,
// have been observed. A failed receipt yields ErrReverted, running out of
// time ErrTimeout.
func (s *Submitter) AwaitConfirmations(ctx context.Context, evm dao.EVMRequester, tx *types.Transaction, n uint64) (*types.Receipt, error) {
	wctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rcpt, err := bind.WaitMined(wctx, evm, tx)
	if err != nil {
		return nil, s.waitErr(ctx, tx, err)
	}

	if rcpt.Status != types.ReceiptStatusSuccessful {
		return rcpt, fmt.Errorf("%w: %s", dao.ErrReverted, tx.Hash().Hex())
	}

	mined := rcpt.BlockNumber.Uint64()

	for {
		head, err := evm.LatestBlock(wctx)
		if err == nil && head.Uint64() >= mined && head.Uint64()-mined+1 >= n {
			s.log.Debug("confirmed", zap.String("tx", tx.Hash().Hex()), zap.Uint64("block", mined), zap.Uint64("confirmations", n))
			return rcpt, nil
		}
		if err != nil && wctx.Err() == nil {
			s.log.Debug("could not read head while confirming", zap.String("tx", tx.Hash().Hex()), zap.Error(err))
		}

		select {
		case <-wctx.Done():
			return rcpt, s.waitErr(ctx, tx, wctx.Err())
		case <-time.After(s.poll):
		}
	}
}

func (s *Submitter) waitErr(ctx context.Context, tx *types.Transaction, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", dao.ErrTimeout, tx.Hash().Hex())
	}

	return err
}
