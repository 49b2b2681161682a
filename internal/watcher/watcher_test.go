package watcher

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ring "github.com/tj-smith47/ring-go"
	"github.com/tj-smith47/ring-go/internal/metrics"
	"github.com/tj-smith47/ring-go/internal/mqtt"
	"github.com/tj-smith47/ring-go/internal/seen"
)

// fakeAPI serves a fixed history and writes recordings from memory.
type fakeAPI struct {
	mu         sync.Mutex
	history    []ring.DoorbotHistoryEvent
	historyErr error
	authErr    error
	saveErr    map[string]error
	recordings map[string]string
	authCalls  int
	saved      []string
}

var _ ring.API = (*fakeAPI)(nil)

func (f *fakeAPI) Authenticate(context.Context, *ring.AuthOptions) (*ring.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.authCalls++
	if f.authErr != nil {
		return nil, f.authErr
	}
	f.historyErr = nil
	return &ring.Session{}, nil
}

func (f *fakeAPI) IsAuthenticated() bool       { return true }
func (f *fakeAPI) AuthenticationToken() string { return "token" }
func (f *fakeAPI) CredentialsEncoded() string  { return "" }

func (f *fakeAPI) GetRingDevices(context.Context) (*ring.Devices, error) {
	return &ring.Devices{}, nil
}

func (f *fakeAPI) GetDoorbotsHistory(context.Context) ([]ring.DoorbotHistoryEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	return slices.Clone(f.history), nil
}

func (f *fakeAPI) GetDoorbotHistoryRecording(_ context.Context, dingID string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(f.recordings[dingID])), nil
}

func (f *fakeAPI) GetEventRecording(ctx context.Context, evt ring.DoorbotHistoryEvent) (io.ReadCloser, error) {
	return f.GetDoorbotHistoryRecording(ctx, evt.DingID())
}

func (f *fakeAPI) GetDoorbotHistoryRecordingURI(dingID string) *url.URL {
	return &url.URL{Path: dingID}
}

func (f *fakeAPI) GetDoorbotHistoryRecordingAndCreateFile(_ context.Context, dingID, path string) error {
	f.mu.Lock()
	err := f.saveErr[dingID]
	f.mu.Unlock()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(f.recordings[dingID]), 0o600); err != nil {
		return err
	}
	f.mu.Lock()
	f.saved = append(f.saved, dingID)
	f.mu.Unlock()
	return nil
}

func (f *fakeAPI) SaveEventRecording(ctx context.Context, evt ring.DoorbotHistoryEvent, path string) error {
	return f.GetDoorbotHistoryRecordingAndCreateFile(ctx, evt.DingID(), path)
}

// recordingPublisher collects published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []mqtt.Event
	err    error
}

func (p *recordingPublisher) Start(context.Context) error { return nil }
func (p *recordingPublisher) Stop(context.Context) error  { return nil }

func (p *recordingPublisher) PublishEvent(_ context.Context, evt mqtt.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, evt)
	return nil
}

func (p *recordingPublisher) ids() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]string, len(p.events))
	for i, e := range p.events {
		ids[i] = e.ID
	}
	return ids
}

func historyEvent(id int64, kind, recording string) ring.DoorbotHistoryEvent {
	evt := ring.DoorbotHistoryEvent{
		ID:        id,
		Kind:      kind,
		CreatedAt: time.Unix(id, 0).UTC(),
		Doorbot:   ring.HistoryDoorbot{ID: 2731654, Description: "Front Door"},
	}
	if recording != "" {
		evt.Recording = &ring.DoorbotHistoryEventRecording{Status: recording}
	}
	return evt
}

type harness struct {
	api   *fakeAPI
	store *seen.MemoryStore
	pub   *recordingPublisher
	w     *Watcher
}

func newHarness(opts Options, history ...ring.DoorbotHistoryEvent) *harness {
	h := &harness{
		api:   &fakeAPI{history: history, recordings: map[string]string{}, saveErr: map[string]error{}},
		store: seen.NewMemory(),
		pub:   &recordingPublisher{},
	}
	if opts.Interval == 0 {
		opts.Interval = time.Hour
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	h.w = New(h.api, h.store, h.pub, metrics.New(), log, opts)
	return h
}

func TestPoll_PublishesOldestFirst(t *testing.T) {
	// newest first, as the API returns it
	h := newHarness(Options{},
		historyEvent(3, ring.KindOnDemand, ""),
		historyEvent(2, ring.KindMotion, ring.RecordingReady),
		historyEvent(1, ring.KindDing, ring.RecordingReady),
	)

	n, err := h.w.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []string{"1", "2", "3"}, h.pub.ids())
	assert.Equal(t, 3, h.store.Len())

	n, err = h.w.Poll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n, "seen events are not republished")
	assert.Len(t, h.pub.ids(), 3)
}

func TestPoll_SkipBacklog(t *testing.T) {
	h := newHarness(Options{SkipBacklog: true},
		historyEvent(2, ring.KindMotion, ""),
		historyEvent(1, ring.KindDing, ""),
	)

	n, err := h.w.Poll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, h.pub.ids())
	assert.Equal(t, 2, h.store.Len())

	h.api.mu.Lock()
	h.api.history = append([]ring.DoorbotHistoryEvent{historyEvent(4, ring.KindDing, "")}, h.api.history...)
	h.api.mu.Unlock()

	n, err = h.w.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"4"}, h.pub.ids())
}

func TestPoll_DownloadsReadyRecordings(t *testing.T) {
	dir := t.TempDir()
	h := newHarness(Options{Download: true, Dir: dir},
		historyEvent(2, ring.KindMotion, "processing"),
		historyEvent(1, ring.KindDing, ring.RecordingReady),
	)
	h.api.recordings["1"] = "clip-one"

	_, err := h.w.Poll(context.Background())
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(dir, "1.mp4"))
	require.NoError(t, err)
	assert.Equal(t, "clip-one", string(got))
	assert.Equal(t, []string{"1"}, h.api.saved)

	require.Len(t, h.pub.events, 2)
	assert.Equal(t, filepath.Join(dir, "1.mp4"), h.pub.events[0].RecordingFile)
	assert.Empty(t, h.pub.events[1].RecordingFile)
}

func TestPoll_FailedDownloadIsRetried(t *testing.T) {
	dir := t.TempDir()
	h := newHarness(Options{Download: true, Dir: dir}, historyEvent(1, ring.KindDing, ring.RecordingReady))
	h.api.recordings["1"] = "clip"
	h.api.saveErr["1"] = errors.New("connection reset")

	n, err := h.w.Poll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, h.pub.ids())
	assert.Zero(t, h.store.Len())

	h.api.mu.Lock()
	delete(h.api.saveErr, "1")
	h.api.mu.Unlock()

	n, err = h.w.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPoll_PublishFailureIsRetried(t *testing.T) {
	h := newHarness(Options{}, historyEvent(1, ring.KindDing, ""))
	h.pub.err = errors.New("broker down")

	n, err := h.w.Poll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, h.store.Len())

	h.pub.err = nil
	n, err = h.w.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPoll_ReauthenticatesOnUnauthorized(t *testing.T) {
	h := newHarness(Options{}, historyEvent(1, ring.KindDing, ""))
	h.api.historyErr = ring.ErrUnauthorized

	_, err := h.w.Poll(context.Background())
	require.Error(t, err)
	assert.True(t, ring.IsUnauthorized(err))
	assert.Equal(t, 1, h.api.authCalls)

	n, err := h.w.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPoll_ReauthenticationFails(t *testing.T) {
	h := newHarness(Options{})
	h.api.historyErr = ring.ErrUnauthorized
	h.api.authErr = errors.New("bad password")

	_, err := h.w.Poll(context.Background())
	assert.ErrorContains(t, err, "re-authenticate")
	assert.ErrorContains(t, err, "bad password")
}

func TestPoll_HistoryError(t *testing.T) {
	h := newHarness(Options{})
	h.api.historyErr = &ring.APIError{StatusCode: 503, Message: "maintenance"}

	_, err := h.w.Poll(context.Background())
	assert.ErrorContains(t, err, "maintenance")
	assert.Zero(t, h.api.authCalls)
}

func TestRun(t *testing.T) {
	h := newHarness(Options{Interval: 10 * time.Millisecond}, historyEvent(1, ring.KindDing, ""))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.w.Run(ctx) }()

	require.Eventually(t, func() bool { return len(h.pub.ids()) == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestRun_InvalidInterval(t *testing.T) {
	h := newHarness(Options{})
	h.w.opts.Interval = 0
	assert.Error(t, h.w.Run(context.Background()))
}

func TestReason(t *testing.T) {
	assert.Equal(t, "unauthorized", reason(ring.ErrUnauthorized))
	assert.Equal(t, "not_authenticated", reason(ring.ErrNotAuthenticated))
	assert.Equal(t, "not_found", reason(&ring.APIError{StatusCode: 404}))
	assert.Equal(t, "timeout", reason(context.DeadlineExceeded))
	assert.Equal(t, "invalid_argument", reason(ring.ErrEmptyDingID))
	assert.Equal(t, "status", reason(&ring.APIError{StatusCode: 500}))
	assert.Equal(t, "other", reason(errors.New("boom")))
}
