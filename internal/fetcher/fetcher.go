// Package fetcher keeps the snapshot store fresh from the remote flag
// service. It runs beside evaluation, never on its path: evaluations read
// whatever snapshot is currently published while the fetcher retries,
// backs off and republishes in the background.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/TimurManjosov/flagship-go-sdk/internal/snapshot"
	"github.com/TimurManjosov/flagship-go-sdk/internal/telemetry"
)

// Mode selects how the fetcher learns about changes.
type Mode string

const (
	// ModePolling re-fetches the snapshot on a fixed interval.
	ModePolling Mode = "polling"
	// ModeStreaming holds a server-sent-events stream open and re-fetches
	// when the service announces a new version.
	ModeStreaming Mode = "streaming"
)

const (
	defaultInterval = 30 * time.Second
	defaultTimeout  = 10 * time.Second

	snapshotPath = "/v1/flags/snapshot"
	streamPath   = "/v1/flags/stream"

	// maxSnapshotBytes bounds how much of a response body is read; a
	// misbehaving server must not exhaust client memory.
	maxSnapshotBytes = 32 << 20
)

// FetchError describes a failed fetch attempt. It is recovered locally by
// the retry policy and never surfaced to evaluation callers.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Options configures a Fetcher.
type Options struct {
	URL         string
	Environment string
	Reference   string
	ClientToken string
	Interval    time.Duration
	Timeout     time.Duration
	Mode        Mode
	HTTPClient  *http.Client
	Logger      zerolog.Logger
	Metrics     *telemetry.Metrics
}

// Fetcher retrieves snapshot documents and publishes them to the store.
// All of its work happens on the goroutine running Run (plus explicit
// Refresh calls); it holds no locks across network I/O.
type Fetcher struct {
	opts    Options
	store   *snapshot.Store
	client  *http.Client
	stream  *http.Client
	log     zerolog.Logger
	metrics *telemetry.Metrics

	backoffInitial time.Duration
	backoffMax     time.Duration
	streamIdle     time.Duration
}

// New creates a Fetcher publishing into store.
func New(store *snapshot.Store, opts Options) *Fetcher {
	if opts.Interval <= 0 {
		opts.Interval = defaultInterval
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Mode == "" {
		opts.Mode = ModePolling
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	return &Fetcher{
		opts:   opts,
		store:  store,
		client: client,
		// The stream connection stays open indefinitely, so it cannot
		// share the fetch client's overall timeout. Connect and header
		// phases are still bounded; only the body read is open-ended,
		// guarded by the idle watchdog in consumeStream.
		stream: &http.Client{
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   opts.Timeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   opts.Timeout,
				ResponseHeaderTimeout: opts.Timeout,
			},
		},
		log:     opts.Logger,
		metrics: opts.Metrics,

		backoffInitial: defaultInitialBackoff,
		backoffMax:     defaultMaxBackoff,
		streamIdle:     defaultStreamIdleTimeout,
	}
}

// Refresh performs one fetch-validate-publish cycle. Polling, streaming
// notifications and manual refresh all converge here.
func (f *Fetcher) Refresh(ctx context.Context) error {
	_, err := f.fetchOnce(ctx)
	return err
}

// fetchOnce fetches the snapshot document, returning whether a new
// snapshot was published. A 304 or an unchanged etag is a successful
// no-op. Any failure leaves the currently published snapshot untouched.
func (f *Fetcher) fetchOnce(ctx context.Context) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
	defer cancel()

	endpoint, err := f.snapshotURL()
	if err != nil {
		return false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, &FetchError{URL: endpoint, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	f.authorize(req)
	if current := f.store.Current(); current != nil {
		req.Header.Set("If-None-Match", current.ETag())
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		f.metrics.ObserveFetch(telemetry.FetchError, time.Since(start))
		return false, &FetchError{URL: endpoint, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified:
		f.metrics.ObserveFetch(telemetry.FetchNotModified, time.Since(start))
		return false, nil

	case resp.StatusCode == http.StatusOK:
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxSnapshotBytes))
		if err != nil {
			f.metrics.ObserveFetch(telemetry.FetchError, time.Since(start))
			return false, &FetchError{URL: endpoint, Err: err}
		}
		updated, err := f.publish(body, resp.Header.Get("ETag"))
		if err != nil {
			f.metrics.ObserveFetch(telemetry.FetchError, time.Since(start))
			return false, &FetchError{URL: endpoint, Err: err}
		}
		if updated {
			f.metrics.ObserveFetch(telemetry.FetchSuccess, time.Since(start))
		} else {
			f.metrics.ObserveFetch(telemetry.FetchNotModified, time.Since(start))
		}
		return updated, nil

	default:
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096)) //nolint:errcheck
		f.metrics.ObserveFetch(telemetry.FetchError, time.Since(start))
		return false, &FetchError{URL: endpoint, StatusCode: resp.StatusCode}
	}
}

// publish parses and validates a payload and swaps it in. Unchanged etags
// are skipped to avoid a redundant rebuild notification.
func (f *Fetcher) publish(body []byte, etag string) (bool, error) {
	doc, err := snapshot.Parse(body)
	if err != nil {
		return false, err
	}
	snap, err := snapshot.New(doc, etag, time.Now())
	if err != nil {
		return false, err
	}

	if current := f.store.Current(); current != nil && current.ETag() == snap.ETag() {
		return false, nil
	}

	f.store.PublishFetched(snap)
	f.metrics.ObserveSnapshot(snap.FlagCount(), snap.FetchedAt())
	f.log.Info().
		Str("etag", snap.ETag()).
		Str("version", snap.Version()).
		Int("flags", snap.FlagCount()).
		Msg("snapshot published")
	return true, nil
}

func (f *Fetcher) snapshotURL() (string, error) {
	u, err := url.Parse(strings.TrimRight(f.opts.URL, "/") + snapshotPath)
	if err != nil {
		return "", &FetchError{URL: f.opts.URL, Err: err}
	}
	q := u.Query()
	if f.opts.Environment != "" {
		q.Set("env", f.opts.Environment)
	}
	if f.opts.Reference != "" {
		q.Set("reference", f.opts.Reference)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (f *Fetcher) authorize(req *http.Request) {
	if f.opts.ClientToken != "" {
		req.Header.Set("Authorization", "Bearer "+f.opts.ClientToken)
	}
}
