package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/citizenwallet/boxdao/pkg/dao"
)

// DefaultTimeout bounds one webhook post, including reading the response
const DefaultTimeout = 10 * time.Second

type Message struct {
	Content string `json:"content"`
}

// Messager posts messages to a Discord compatible webhook
type Messager struct {
	BaseURL   string
	ChainName string

	client *http.Client
	notify bool
}

func NewMessager(baseURL, chainName string, notify bool) *Messager {
	return &Messager{
		BaseURL:   baseURL,
		ChainName: chainName,
		client:    &http.Client{Timeout: DefaultTimeout},
		notify:    notify && baseURL != "",
	}
}

// WithTimeout bounds every post by d
func (b *Messager) WithTimeout(d time.Duration) *Messager {
	if d > 0 {
		b.client = &http.Client{Timeout: d}
	}
	return b
}

func (b *Messager) post(ctx context.Context, content string) error {
	if !b.notify {
		return nil
	}

	data, err := json.Marshal(Message{Content: fmt.Sprintf("[%s] %s", b.ChainName, content)})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.BaseURL, bytes.NewReader(data))
	if err != nil {
		return err
	}

	req.Header.Add("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}

	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("error sending message: status %d", resp.StatusCode)
	}

	return nil
}

func (b *Messager) Notify(ctx context.Context, message string) error {
	return b.post(ctx, message)
}

func (b *Messager) NotifyWarning(ctx context.Context, errorMessage error) error {
	return b.post(ctx, "warning: "+errorMessage.Error())
}

func (b *Messager) NotifyError(ctx context.Context, errorMessage error) error {
	return b.post(ctx, "error: "+errorMessage.Error())
}

// Processor delivers queued notifications through a messager
type Processor struct {
	wm dao.WebhookMessager
}

func NewProcessor(wm dao.WebhookMessager) *Processor {
	return &Processor{wm: wm}
}

func (p *Processor) Process(ctx context.Context, n *dao.Notification) error {
	switch n.Kind {
	case dao.NotifyWarning:
		return p.wm.NotifyWarning(ctx, fmt.Errorf("%s", n))
	case dao.NotifyError:
		return p.wm.NotifyError(ctx, fmt.Errorf("%s", n))
	}

	return p.wm.Notify(ctx, n.String())
}
