// Command ring is a command line client for the Ring doorbell cloud API.
//
// Usage:
//
//	ring <command> [flags] [args]
//
// Commands:
//
//	auth      Open a session and show the account profile
//	devices   List doorbots and chimes
//	history   List recent ding and motion events
//	url       Print the recording URL of an event
//	download  Save the recording of an event to a file
//	watch     Poll the history and publish new events over MQTT
//
// Settings come from a YAML file (-config), a .env file in the working
// directory and RING_* environment variables, in that order of precedence.
//
// Examples:
//
//	# List devices as JSON
//	RING_USERNAME=me@example.com RING_PASSWORD=secret ring devices -json
//
//	# Save a recording
//	ring download -o front-door.mp4 6500907085284961754
//
//	# Run the watch daemon
//	ring watch -config /etc/ring/ring.yaml
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	ring "github.com/tj-smith47/ring-go"
	"github.com/tj-smith47/ring-go/internal/config"
	"github.com/tj-smith47/ring-go/internal/metrics"
	"github.com/tj-smith47/ring-go/internal/mqtt"
	"github.com/tj-smith47/ring-go/internal/seen"
	"github.com/tj-smith47/ring-go/internal/watcher"
)

const usage = `ring - Ring doorbell API client

Usage:
  ring <command> [flags] [args]

Commands:
  auth      Open a session and show the account profile
  devices   List doorbots and chimes
  history   List recent ding and motion events
  url       Print the recording URL of an event
  download  Save the recording of an event to a file
  watch     Poll the history and publish new events over MQTT

Use "ring <command> -help" for more information about a command.
`

var errUsage = errors.New("invalid usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) < 1 {
		fmt.Fprint(os.Stderr, usage)
		return errUsage
	}

	err := dispatch(ctx, args[0], args[1:], out)
	if errors.Is(err, flag.ErrHelp) {
		return nil
	}
	return err
}

func dispatch(ctx context.Context, cmd string, args []string, out io.Writer) error {
	switch cmd {
	case "auth":
		return runAuth(ctx, args, out)
	case "devices":
		return runDevices(ctx, args, out)
	case "history":
		return runHistory(ctx, args, out)
	case "url":
		return runURL(ctx, args, out)
	case "download":
		return runDownload(ctx, args, out)
	case "watch":
		return runWatch(ctx, args)
	case "-h", "-help", "--help", "help":
		fmt.Fprint(out, usage)
		return nil
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		return errUsage
	}
}

// commonFlags registers the flags every command shares.
type commonFlags struct {
	config *string
}

func newFlagSet(name, synopsis string) (*flag.FlagSet, commonFlags) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "ring %s - %s\n\nUsage:\n  ring %s [flags]\n\nFlags:\n", name, synopsis, name)
		fs.PrintDefaults()
	}
	defaultConfig := os.Getenv("RING_CONFIG")
	if defaultConfig == "" {
		defaultConfig = "ring.yaml"
	}
	return fs, commonFlags{
		config: fs.String("config", defaultConfig, "Path to the YAML config file"),
	}
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return errUsage
	}
	return nil
}

// session loads the config, builds the client and authenticates it.
func session(ctx context.Context, flags commonFlags, m *metrics.Metrics) (*ring.Client, config.Config, *slog.Logger, error) {
	cfg, err := config.Load(*flags.config)
	if err != nil {
		return nil, cfg, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, cfg, nil, err
	}
	logger := newLogger(cfg.Log, os.Stderr)

	client := newClient(cfg, logger, m)
	opts := cfg.Ring.AuthOptions()
	if _, err := client.Authenticate(ctx, &opts); err != nil {
		return nil, cfg, logger, fmt.Errorf("authenticate: %w", err)
	}
	return client, cfg, logger, nil
}

func newClient(cfg config.Config, logger *slog.Logger, m *metrics.Metrics) *ring.Client {
	httpClient := &http.Client{}
	if m != nil {
		httpClient.Transport = &metrics.InstrumentedTransport{Base: http.DefaultTransport, Metrics: m}
	}
	return ring.NewClient(cfg.Ring.Username, cfg.Ring.Password,
		ring.WithHTTPClient(httpClient),
		ring.WithTimeout(cfg.Ring.Timeout),
		ring.WithLogger(logger),
	)
}

// newLogger builds the slog handler named by the log config.
func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runAuth(ctx context.Context, args []string, out io.Writer) error {
	fs, flags := newFlagSet("auth", "Open a session and show the account profile")
	showToken := fs.Bool("show-token", false, "Print the session token")
	if err := parse(fs, args); err != nil {
		return err
	}

	client, _, _, err := session(ctx, flags, nil)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Authenticated as %s\n", client.Username())
	if *showToken {
		fmt.Fprintln(out, client.AuthenticationToken())
	}
	return nil
}

func runDevices(ctx context.Context, args []string, out io.Writer) error {
	fs, flags := newFlagSet("devices", "List doorbots and chimes")
	asJSON := fs.Bool("json", false, "Print the raw device list as JSON")
	if err := parse(fs, args); err != nil {
		return err
	}

	client, _, _, err := session(ctx, flags, nil)
	if err != nil {
		return err
	}
	devices, err := client.GetRingDevices(ctx)
	if err != nil {
		return err
	}
	if *asJSON {
		return writeJSON(out, devices)
	}
	return printDevices(out, devices)
}

func printDevices(out io.Writer, devices *ring.Devices) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TYPE\tID\tDESCRIPTION\tFIRMWARE\tBATTERY")
	for _, d := range slices.Concat(devices.Doorbots, devices.AuthorizedDoorbots) {
		battery := "-"
		if pct, ok := d.BatteryLife.Percent(); ok {
			battery = fmt.Sprintf("%d%%", pct)
		}
		fmt.Fprintf(tw, "doorbot\t%d\t%s\t%s\t%s\n", d.ID, d.Description, d.FirmwareVersion, battery)
	}
	for _, d := range devices.StickupCams {
		fmt.Fprintf(tw, "stickup_cam\t%d\t%s\t%s\t-\n", d.ID, d.Description, d.FirmwareVersion)
	}
	for _, c := range devices.Chimes {
		fmt.Fprintf(tw, "chime\t%d\t%s\t%s\t-\n", c.ID, c.Description, c.FirmwareVersion)
	}
	return tw.Flush()
}

func runHistory(ctx context.Context, args []string, out io.Writer) error {
	fs, flags := newFlagSet("history", "List recent ding and motion events")
	asJSON := fs.Bool("json", false, "Print the raw history as JSON")
	limit := fs.Int("limit", 0, "Show at most this many events (0 = all)")
	if err := parse(fs, args); err != nil {
		return err
	}

	client, _, _, err := session(ctx, flags, nil)
	if err != nil {
		return err
	}
	events, err := client.GetDoorbotsHistory(ctx)
	if err != nil {
		return err
	}
	if *limit > 0 && len(events) > *limit {
		events = events[:*limit]
	}
	if *asJSON {
		return writeJSON(out, events)
	}
	return printHistory(out, events)
}

func printHistory(out io.Writer, events []ring.DoorbotHistoryEvent) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tKIND\tDOORBOT\tANSWERED\tRECORDING")
	for _, e := range events {
		recording := "-"
		if e.Recording != nil {
			recording = e.Recording.Status
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\t%s\n",
			e.DingID(), e.CreatedAt.Local().Format(time.DateTime), e.Kind, e.Doorbot.Description, e.Answered, recording)
	}
	return tw.Flush()
}

func runURL(ctx context.Context, args []string, out io.Writer) error {
	fs, flags := newFlagSet("url", "Print the recording URL of an event")
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: ding id required")
		fs.Usage()
		return errUsage
	}

	client, _, _, err := session(ctx, flags, nil)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, client.GetDoorbotHistoryRecordingURI(fs.Arg(0)).String())
	return nil
}

func runDownload(ctx context.Context, args []string, out io.Writer) error {
	fs, flags := newFlagSet("download", "Save the recording of an event to a file")
	output := fs.String("o", "", "Destination file (default <download.dir>/<ding-id>.mp4)")
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: ding id required")
		fs.Usage()
		return errUsage
	}
	dingID := fs.Arg(0)

	client, cfg, logger, err := session(ctx, flags, nil)
	if err != nil {
		return err
	}
	path := *output
	if path == "" {
		path = filepath.Join(cfg.Download.Dir, dingID+".mp4")
	}

	start := time.Now()
	if err := client.GetDoorbotHistoryRecordingAndCreateFile(ctx, dingID, path); err != nil {
		return err
	}
	logger.Info("recording saved", "id", dingID, "path", path, "duration", time.Since(start))
	fmt.Fprintln(out, path)
	return nil
}

func runWatch(ctx context.Context, args []string) error {
	fs, flags := newFlagSet("watch", "Poll the history and publish new events over MQTT")
	if err := parse(fs, args); err != nil {
		return err
	}

	m := metrics.New()
	client, cfg, logger, err := session(ctx, flags, m)
	if err != nil {
		return err
	}

	store, err := newStore(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer store.Close()

	var pub mqtt.Publisher = mqtt.NewStubPublisher(logger)
	if cfg.MQTT.Enabled {
		pub = mqtt.NewHAPublisher(mqtt.Config{
			Broker:      cfg.MQTT.Broker,
			Username:    cfg.MQTT.Username,
			Password:    cfg.MQTT.Password,
			TopicPrefix: cfg.MQTT.TopicPrefix,
			DeviceID:    cfg.MQTT.DeviceID,
		}, logger)
	}
	if err := pub.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		pub.Stop(stopCtx) //nolint:errcheck
	}()

	if cfg.Metrics.Enabled {
		srv := newMetricsServer(cfg.Metrics.Addr, m, store)
		go func() {
			logger.Info("metrics server listening", "addr", cfg.Metrics.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx) //nolint:errcheck
		}()
	}

	auth := cfg.Ring.AuthOptions()
	w := watcher.New(client, store, pub, m, logger, watcher.Options{
		Interval:    cfg.Watch.Interval,
		SkipBacklog: cfg.Watch.SkipBacklog,
		Download:    cfg.Watch.Download,
		Dir:         cfg.Download.Dir,
		Auth:        &auth,
	})
	logger.Info("watching history", "interval", cfg.Watch.Interval, "download", cfg.Watch.Download)
	return w.Run(ctx)
}

func newStore(ctx context.Context, cfg config.RedisConfig) (seen.Store, error) {
	if !cfg.Enabled {
		return seen.NewMemory(), nil
	}
	return seen.NewRedis(ctx, seen.RedisOptions{
		Addr:      cfg.Addr,
		Password:  cfg.Password,
		DB:        cfg.DB,
		KeyPrefix: cfg.KeyPrefix,
		TTL:       cfg.TTL,
	})
}

// newMetricsServer serves /metrics and a /healthz probe backed by the store.
func newMetricsServer(addr string, m *metrics.Metrics, store seen.Store) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := store.HealthCheck(r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	})
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
