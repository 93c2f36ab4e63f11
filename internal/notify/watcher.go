package notify

import (
	"context"
	"log"
	"time"

	"github.com/cuedeck/cuedeck/internal/store"
)

// lastSeenKey is the settings row holding the watcher's high-water mark.
const lastSeenKey = "notify_last_seen"

// Watcher polls for requests created after its high-water mark and pushes
// a created event per request. The mark persists in settings so restarts
// do not re-announce old requests.
type Watcher struct {
	store     *store.Store
	notifiers []Notifier
	interval  time.Duration
}

func NewWatcher(s *store.Store, notifiers []Notifier, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Watcher{store: s, notifiers: notifiers, interval: interval}
}

// Run polls until ctx is cancelled. On first run against a fresh database
// the mark initializes to now, so pre-existing requests stay quiet.
func (w *Watcher) Run(ctx context.Context) {
	if len(w.notifiers) == 0 {
		return
	}
	if _, err := w.store.GetSetting(lastSeenKey); err != nil {
		_ = w.store.SetSetting(lastSeenKey, time.Now().UTC().Format(store.TimeFormat))
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

func (w *Watcher) poll(ctx context.Context) {
	since, _ := w.store.GetSetting(lastSeenKey)
	pending, err := w.store.PendingSince(since)
	if err != nil {
		log.Printf("notify: poll failed: %v", err)
		return
	}

	for _, r := range pending {
		ev := Event{
			Type:      EventCreated,
			RequestID: r.RequestID,
			AgentID:   r.AgentID,
			Prompt:    r.Prompt,
			At:        r.CreatedAt,
		}
		w.Publish(ctx, ev)
		if r.CreatedAt > since {
			since = r.CreatedAt
		}
	}
	if len(pending) > 0 {
		_ = w.store.SetSetting(lastSeenKey, since)
	}
}

// Publish sends an event to every notifier; a failing channel is logged
// and does not block the others.
func (w *Watcher) Publish(ctx context.Context, ev Event) {
	for _, n := range w.notifiers {
		if err := n.Notify(ctx, ev); err != nil {
			log.Printf("notify: %v", err)
		}
	}
}
