package webhook

import (
	"context"
	"errors"

	"github.com/citizenwallet/boxdao/pkg/dao"
	"github.com/getsentry/sentry-go"
)

// SentryMessager reports warnings and errors to Sentry. Plain messages are
// breadcrumbs so they show up next to the next reported error.
type SentryMessager struct {
	hub *sentry.Hub
}

func NewSentryMessager(hub *sentry.Hub) *SentryMessager {
	if hub == nil {
		hub = sentry.CurrentHub()
	}

	return &SentryMessager{hub: hub}
}

func (s *SentryMessager) Notify(ctx context.Context, message string) error {
	s.hub.AddBreadcrumb(&sentry.Breadcrumb{Category: "governance", Message: message, Level: sentry.LevelInfo}, nil)
	return nil
}

func (s *SentryMessager) NotifyWarning(ctx context.Context, errorMessage error) error {
	s.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(sentry.LevelWarning)
		s.hub.CaptureException(errorMessage)
	})
	return nil
}

func (s *SentryMessager) NotifyError(ctx context.Context, errorMessage error) error {
	s.hub.CaptureException(errorMessage)
	return nil
}

// Multi fans a message out to every messager
type Multi []dao.WebhookMessager

func (m Multi) Notify(ctx context.Context, message string) error {
	errs := []error{}
	for _, wm := range m {
		errs = append(errs, wm.Notify(ctx, message))
	}
	return errors.Join(errs...)
}

func (m Multi) NotifyWarning(ctx context.Context, errorMessage error) error {
	errs := []error{}
	for _, wm := range m {
		errs = append(errs, wm.NotifyWarning(ctx, errorMessage))
	}
	return errors.Join(errs...)
}

func (m Multi) NotifyError(ctx context.Context, errorMessage error) error {
	errs := []error{}
	for _, wm := range m {
		errs = append(errs, wm.NotifyError(ctx, errorMessage))
	}
	return errors.Join(errs...)
}
