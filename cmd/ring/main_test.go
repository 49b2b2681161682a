package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ring "github.com/tj-smith47/ring-go"
	"github.com/tj-smith47/ring-go/internal/config"
	"github.com/tj-smith47/ring-go/internal/metrics"
	"github.com/tj-smith47/ring-go/internal/seen"
)

func TestRun_Usage(t *testing.T) {
	var out bytes.Buffer

	require.NoError(t, run(context.Background(), []string{"help"}, &out))
	assert.Contains(t, out.String(), "Commands:")

	assert.ErrorIs(t, run(context.Background(), nil, &out), errUsage)
	assert.ErrorIs(t, run(context.Background(), []string{"reboot"}, &out), errUsage)
	assert.ErrorIs(t, run(context.Background(), []string{"devices", "-nope"}, &out), errUsage)
	assert.NoError(t, run(context.Background(), []string{"devices", "-help"}, &out))
}

func TestRun_MissingArgument(t *testing.T) {
	var out bytes.Buffer
	assert.ErrorIs(t, run(context.Background(), []string{"url"}, &out), errUsage)
	assert.ErrorIs(t, run(context.Background(), []string{"download", "-o", "x.mp4"}, &out), errUsage)
}

func TestRun_RequiresCredentials(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("RING_USERNAME", "")
	t.Setenv("RING_PASSWORD", "")

	var out bytes.Buffer
	err := run(context.Background(), []string{"devices", "-config", filepath.Join(t.TempDir(), "none.yaml")}, &out)
	assert.ErrorContains(t, err, "ring.username is required")
	assert.Empty(t, out.String())
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer

	newLogger(config.LogConfig{Level: "debug", Format: "json"}, &buf).Debug("hello")
	assert.True(t, strings.HasPrefix(buf.String(), "{"))

	buf.Reset()
	newLogger(config.LogConfig{Level: "warn", Format: "text"}, &buf).Info("hidden")
	assert.Empty(t, buf.String())

	buf.Reset()
	newLogger(config.LogConfig{Level: "bogus"}, &buf).Info("shown")
	assert.Contains(t, buf.String(), "msg=shown")
}

func TestPrintDevices(t *testing.T) {
	devices := &ring.Devices{
		Doorbots: []ring.Doorbot{{ID: 2731654, Description: "Front Door", FirmwareVersion: "1.9.3", BatteryLife: "87"}},
		Chimes:   []ring.Chime{{ID: 918273, Description: "Hallway Chime", FirmwareVersion: "1.2.1"}},
	}

	var out bytes.Buffer
	require.NoError(t, printDevices(&out, devices))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "Front Door")
	assert.Contains(t, lines[1], "87%")
	assert.True(t, strings.HasPrefix(lines[2], "chime"))
}

func TestPrintDevices_leavesDecodedSlicesIntact(t *testing.T) {
	backing := make([]ring.Doorbot, 1, 2)
	backing[0] = ring.Doorbot{ID: 1, Description: "Front Door"}
	devices := &ring.Devices{
		Doorbots:           backing,
		AuthorizedDoorbots: []ring.Doorbot{{ID: 2, Description: "Shared Door"}},
	}

	var out bytes.Buffer
	require.NoError(t, printDevices(&out, devices))
	assert.Contains(t, out.String(), "Shared Door")
	assert.Zero(t, backing[:2][1].ID)
}

func TestPrintHistory(t *testing.T) {
	events := []ring.DoorbotHistoryEvent{{
		ID:        6500907085284961754,
		CreatedAt: time.Date(2024, 5, 1, 18, 4, 12, 0, time.UTC),
		Kind:      ring.KindDing,
		Recording: &ring.DoorbotHistoryEventRecording{Status: ring.RecordingReady},
		Doorbot:   ring.HistoryDoorbot{Description: "Front Door"},
	}, {
		ID:   6500901122334455667,
		Kind: ring.KindOnDemand,
	}}

	var out bytes.Buffer
	require.NoError(t, printHistory(&out, events))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "6500907085284961754")
	assert.Contains(t, lines[1], "ready")
	assert.True(t, strings.HasSuffix(lines[2], "-"))
}

type unhealthyStore struct{ *seen.MemoryStore }

func (unhealthyStore) HealthCheck(context.Context) error { return errors.New("redis down") }

func TestMetricsServer(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		srv := httptest.NewServer(newMetricsServer(":0", metrics.New(), seen.NewMemory()).Handler)
		defer srv.Close()

		resp, err := http.Get(srv.URL + "/healthz")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		resp, err = http.Get(srv.URL + "/metrics")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("unhealthy store", func(t *testing.T) {
		srv := httptest.NewServer(newMetricsServer(":0", metrics.New(), unhealthyStore{seen.NewMemory()}).Handler)
		defer srv.Close()

		resp, err := http.Get(srv.URL + "/healthz")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	})
}

func TestNewStore(t *testing.T) {
	store, err := newStore(context.Background(), config.RedisConfig{})
	require.NoError(t, err)
	assert.IsType(t, &seen.MemoryStore{}, store)
}
