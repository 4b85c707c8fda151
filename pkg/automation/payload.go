package automation

import (
	"context"
	"errors"
	"sync"

	"github.com/citizenwallet/boxdao/pkg/dao"
	"github.com/citizenwallet/boxdao/pkg/governor"
)

var ErrNoPayload = errors.New("no box value to propose")

// PayloadSource rebuilds the canonical action arguments of a proposal from
// the inputs currently held by the operator
type PayloadSource interface {
	Payload(ctx context.Context, sess *dao.Session, record *dao.ProposalRecord) (*dao.Payload, error)
}

// BoxValue holds the value the operator wants stored in the Box. Every
// proposal is assumed to call store(value) with its own description.
type BoxValue struct {
	mu     sync.RWMutex
	values []string
}

func NewBoxValue(values []string) *BoxValue {
	return &BoxValue{values: values}
}

func (b *BoxValue) Set(values []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.values = values
}

func (b *BoxValue) Values() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]string{}, b.values...)
}

func (b *BoxValue) Payload(ctx context.Context, sess *dao.Session, record *dao.ProposalRecord) (*dao.Payload, error) {
	values := b.Values()
	if len(values) == 0 {
		return nil, ErrNoPayload
	}

	return governor.StorePayload(sess.Box, values, record.Description)
}
