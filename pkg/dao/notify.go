package dao

import (
	"context"
	"fmt"
	"time"
)

type NotificationKind string

const (
	NotifyInfo    NotificationKind = "info"
	NotifyWarning NotificationKind = "warning"
	NotifyError   NotificationKind = "error"
)

// Notification reports a lifecycle event of a proposal to operators
type Notification struct {
	Kind       NotificationKind
	Proposal   string
	Action     Action
	Text       string
	Err        error
	CreatedAt  time.Time
	RetryCount int
}

func NewNotification(kind NotificationKind, proposal string, action Action, text string, err error) *Notification {
	return &Notification{
		Kind:      kind,
		Proposal:  proposal,
		Action:    action,
		Text:      text,
		Err:       err,
		CreatedAt: time.Now(),
	}
}

func (n *Notification) String() string {
	s := n.Text
	if n.Action != "" {
		s = fmt.Sprintf("%s: %s", n.Action, s)
	}
	if n.Proposal != "" {
		s = fmt.Sprintf("proposal %s %s", n.Proposal, s)
	}
	if n.Err != nil {
		s = fmt.Sprintf("%s: %v", s, n.Err)
	}

	return s
}

// WebhookMessager delivers messages to an operator channel
type WebhookMessager interface {
	Notify(ctx context.Context, message string) error
	NotifyWarning(ctx context.Context, errorMessage error) error
	NotifyError(ctx context.Context, errorMessage error) error
}
