// Package watcher polls the doorbot history and hands every new event to
// the MQTT publisher, optionally saving its recording first.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"time"

	ring "github.com/tj-smith47/ring-go"
	"github.com/tj-smith47/ring-go/internal/metrics"
	"github.com/tj-smith47/ring-go/internal/mqtt"
	"github.com/tj-smith47/ring-go/internal/seen"
)

// Options controls a Watcher.
type Options struct {
	Interval time.Duration
	// SkipBacklog marks the events present on the first poll as seen
	// without publishing them.
	SkipBacklog bool
	// Download saves ready recordings into Dir as <ding-id>.mp4 before the
	// event is published.
	Download bool
	Dir      string
	// Auth is used to open a new session when the API rejects the token.
	// Nil means ring.DefaultAuthOptions.
	Auth *ring.AuthOptions
}

// Watcher turns the polled history into a stream of published events.
type Watcher struct {
	api     ring.API
	store   seen.Store
	pub     mqtt.Publisher
	metrics *metrics.Metrics
	log     *slog.Logger
	opts    Options

	primed bool
}

// New creates a Watcher. The API client is expected to be authenticated.
func New(api ring.API, store seen.Store, pub mqtt.Publisher, m *metrics.Metrics, log *slog.Logger, opts Options) *Watcher {
	return &Watcher{
		api:     api,
		store:   store,
		pub:     pub,
		metrics: m,
		log:     log,
		opts:    opts,
	}
}

// Run polls immediately and then every Interval until ctx is cancelled.
// Poll failures are logged and retried on the next tick.
func (w *Watcher) Run(ctx context.Context) error {
	if w.opts.Interval <= 0 {
		return fmt.Errorf("watcher: interval must be positive, got %s", w.opts.Interval)
	}

	ticker := time.NewTicker(w.opts.Interval)
	defer ticker.Stop()

	for {
		if _, err := w.Poll(ctx); err != nil && ctx.Err() == nil {
			w.log.Warn("history poll failed", "error", err)
		}

		select {
		case <-ctx.Done():
			w.log.Info("watcher stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Poll fetches the history once and handles every event not seen before,
// oldest first. It returns the number of events published.
func (w *Watcher) Poll(ctx context.Context) (int, error) {
	events, err := w.api.GetDoorbotsHistory(ctx)
	if err != nil {
		w.metrics.IncError("history", reason(err))
		if ring.IsUnauthorized(err) || ring.IsNotAuthenticated(err) {
			if _, authErr := w.api.Authenticate(ctx, w.opts.Auth); authErr != nil {
				w.metrics.IncError("authenticate", reason(authErr))
				return 0, fmt.Errorf("watcher: re-authenticate: %w", errors.Join(err, authErr))
			}
			w.log.Info("session renewed")
		}
		return 0, fmt.Errorf("watcher: history: %w", err)
	}

	backlog := !w.primed && w.opts.SkipBacklog
	published := 0

	// the API lists newest first
	for _, evt := range slices.Backward(events) {
		id := evt.DingID()
		done, err := w.store.Seen(ctx, id)
		if err != nil {
			w.metrics.IncError("store", "seen")
			return published, fmt.Errorf("watcher: %w", err)
		}
		if done {
			continue
		}

		if backlog {
			if err := w.store.Mark(ctx, id); err != nil {
				w.metrics.IncError("store", "mark")
				return published, fmt.Errorf("watcher: %w", err)
			}
			w.metrics.IncEvent(evt.Kind, "skipped")
			continue
		}

		if err := w.handle(ctx, evt); err != nil {
			w.metrics.IncEvent(evt.Kind, "error")
			w.log.Warn("event not published, will retry", "id", id, "kind", evt.Kind, "error", err)
			continue
		}
		published++
	}

	w.primed = true
	w.metrics.SetLastPoll(time.Now())
	w.log.Debug("history polled", "events", len(events), "published", published)
	return published, nil
}

// handle saves the recording when wanted, publishes the event and marks it
// seen. An event is only marked once it has been published.
func (w *Watcher) handle(ctx context.Context, evt ring.DoorbotHistoryEvent) error {
	id := evt.DingID()

	var file string
	if w.opts.Download && evt.HasRecording() {
		file = filepath.Join(w.opts.Dir, id+".mp4")
		if err := w.api.SaveEventRecording(ctx, evt, file); err != nil {
			w.metrics.IncError("download", reason(err))
			return fmt.Errorf("save recording: %w", err)
		}
		w.metrics.RecordingsSaved.Inc()
		w.log.Info("recording saved", "id", id, "path", file)
	}

	if err := w.pub.PublishEvent(ctx, mqtt.EventFromHistory(evt, file)); err != nil {
		w.metrics.IncError("mqtt", "publish")
		return err
	}
	if err := w.store.Mark(ctx, id); err != nil {
		w.metrics.IncError("store", "mark")
		return err
	}

	w.metrics.IncEvent(evt.Kind, "published")
	w.log.Info("event published", "id", id, "kind", evt.Kind, "doorbot", evt.Doorbot.Description)
	return nil
}

// reason reduces an error to a bounded metric label.
func reason(err error) string {
	switch {
	case ring.IsUnauthorized(err):
		return "unauthorized"
	case ring.IsNotAuthenticated(err):
		return "not_authenticated"
	case ring.IsNotFound(err):
		return "not_found"
	case ring.IsTimeout(err):
		return "timeout"
	case ring.IsInvalidArgument(err):
		return "invalid_argument"
	default:
		var apiErr *ring.APIError
		if errors.As(err, &apiErr) {
			return "status"
		}
		return "other"
	}
}
