package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/citizenwallet/boxdao/pkg/dao"
	"go.uber.org/zap"
)

// Service delivers notifications in the background. Enqueue never blocks:
// when the buffer is full the notification is dropped.
type Service struct {
	name       string
	queue      chan *dao.Notification
	quit       chan struct{}
	closeOnce  sync.Once
	maxRetries int
	backoff    time.Duration

	ctx context.Context
	wm  dao.WebhookMessager
	log *zap.Logger
}

type Processor interface {
	Process(ctx context.Context, n *dao.Notification) error
}

func NewService(ctx context.Context, name string, maxRetries, bufferSize int, wm dao.WebhookMessager, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		name:       name,
		queue:      make(chan *dao.Notification, bufferSize),
		quit:       make(chan struct{}),
		maxRetries: maxRetries,
		backoff:    time.Second,
		ctx:        ctx,
		wm:         wm,
		log:        logger,
	}
}

// WithBackoff sets the wait between a failure and its retry
func (s *Service) WithBackoff(d time.Duration) *Service {
	s.backoff = d
	return s
}

func (s *Service) Enqueue(n *dao.Notification) {
	select {
	case s.queue <- n:
	default:
		s.log.Warn("queue is full, dropping notification", zap.String("queue", s.name), zap.String("notification", n.String()))
	}
}

func (s *Service) Close() {
	s.closeOnce.Do(func() {
		close(s.quit)
	})
}

// Start processes notifications until Close is called or the context ends
func (s *Service) Start(p Processor) error {
	for {
		select {
		case n := <-s.queue:
			err := p.Process(s.ctx, n)
			if err == nil {
				continue
			}

			if n.RetryCount < s.maxRetries {
				n.RetryCount++
				go s.retry(n)
				continue
			}

			s.log.Error("notification failed", zap.String("queue", s.name), zap.Int("retries", n.RetryCount), zap.Error(err))
			if s.wm != nil {
				s.wm.NotifyError(s.ctx, fmt.Errorf("%s queue: %w", s.name, err))
			}
		case <-s.quit:
			return nil
		case <-s.ctx.Done():
			return nil
		}
	}
}

func (s *Service) retry(n *dao.Notification) {
	select {
	case <-time.After(time.Duration(n.RetryCount) * s.backoff):
		s.Enqueue(n)
	case <-s.quit:
	case <-s.ctx.Done():
	}
}
