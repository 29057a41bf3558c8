package notify

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/mkurosawa/kaiji/internal/cluster"
	"github.com/mkurosawa/kaiji/internal/event"
)

// maxAlertTitleLen is the notification display limit. Tighter than the
// normalizer's title cap, which only bounds storage.
const maxAlertTitleLen = 120

// Sender delivers a formatted alert. Push mechanics (APNs, Telegram,
// whatever) live behind this interface, outside the pipeline.
type Sender interface {
	Send(ctx context.Context, text string) error
}

// LogSender writes alerts to the process log. The default when no real
// push channel is wired up.
type LogSender struct{}

func (LogSender) Send(_ context.Context, text string) error {
	log.Printf("ALERT %s", text)
	return nil
}

// Store is the idempotency store consulted before alerting.
type Store interface {
	HasBeenDelivered(key string) (bool, error)
	MarkDelivered(key string) error
}

// Result holds the results of a delivery run.
type Result struct {
	Eligible   int
	Sent       int
	Suppressed int
	Errors     int
}

// Notifier gates clusters through the delivery rule and the
// idempotency store and hands eligible ones to the sender.
type Notifier struct {
	store   Store
	sender  Sender
	version int
}

// New creates a Notifier. A nil sender logs alerts instead.
func New(store Store, sender Sender, version int) *Notifier {
	if sender == nil {
		sender = LogSender{}
	}
	return &Notifier{store: store, sender: sender, version: version}
}

// Deliver sends alerts for deliverable clusters that have not been
// delivered under their current idempotency key. An impact upgrade
// changes the key, so the same cluster alerts again after escalating.
func (n *Notifier) Deliver(ctx context.Context, clusters []event.ClusteredEvent) *Result {
	r := &Result{}
	for _, c := range clusters {
		if !cluster.ShouldDeliver(c) {
			continue
		}
		r.Eligible++

		key := cluster.IdempotencyKey(c, n.version)
		delivered, err := n.store.HasBeenDelivered(key)
		if err != nil {
			log.Printf("Error checking delivery key %s: %v", key, err)
			r.Errors++
			continue
		}
		if delivered {
			r.Suppressed++
			continue
		}

		if err := n.sendWithRetry(ctx, FormatAlert(c), 3); err != nil {
			log.Printf("Error sending alert for cluster %s: %v", c.ID, err)
			r.Errors++
			continue
		}
		if err := n.store.MarkDelivered(key); err != nil {
			log.Printf("Error marking delivery key %s: %v", key, err)
			r.Errors++
			continue
		}
		r.Sent++
	}

	log.Printf("Delivery complete: %d eligible, %d sent, %d suppressed", r.Eligible, r.Sent, r.Suppressed)
	return r
}

func (n *Notifier) sendWithRetry(ctx context.Context, text string, attempts int) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = n.sender.Send(ctx, text); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(i+1) * time.Second):
		}
	}
	return err
}

// FormatAlert renders a one-line alert for a cluster, with the title
// capped at the notification display limit.
func FormatAlert(c event.ClusteredEvent) string {
	title := c.Title
	runes := []rune(title)
	if len(runes) > maxAlertTitleLen {
		title = string(runes[:maxAlertTitleLen-1]) + "…"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s]", strings.ToUpper(string(c.Impact)))
	if c.PrimaryTicker != "" {
		fmt.Fprintf(&b, " %s", c.PrimaryTicker)
	}
	fmt.Fprintf(&b, " %s", title)
	if len(c.Sources) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(c.Sources, ", "))
	}
	return b.String()
}
