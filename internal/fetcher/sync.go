package fetcher

import (
	"bufio"
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	defaultInitialBackoff = time.Second
	defaultMaxBackoff     = 2 * time.Minute

	// defaultStreamIdleTimeout aborts a stream that delivers no bytes at
	// all, three missed server keepalives' worth. A half-dead connection
	// otherwise stalls updates with nothing to detect it.
	defaultStreamIdleTimeout = 90 * time.Second
)

// Run keeps the store fresh until ctx is cancelled. Failures are logged
// and retried with exponential backoff; Run itself never returns an error.
func (f *Fetcher) Run(ctx context.Context) {
	switch f.opts.Mode {
	case ModeStreaming:
		f.runStreaming(ctx)
	default:
		f.runPolling(ctx)
	}
}

func (f *Fetcher) newBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = f.backoffInitial
	b.MaxInterval = f.backoffMax
	return b
}

func (f *Fetcher) runPolling(ctx context.Context) {
	b := f.newBackoff()
	for {
		wait := f.opts.Interval
		if _, err := f.fetchOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			wait = b.NextBackOff()
			f.log.Warn().Err(err).Dur("retry_in", wait).Msg("snapshot fetch failed")
		} else {
			b.Reset()
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

func (f *Fetcher) runStreaming(ctx context.Context) {
	b := f.newBackoff()
	for {
		progress, err := f.consumeStream(ctx)
		if ctx.Err() != nil {
			return
		}
		// Reset only after a session that actually synced something;
		// repeated dead-on-arrival sessions must keep growing the wait.
		if progress {
			b.Reset()
		}
		wait := b.NextBackOff()
		f.log.Warn().Err(err).Dur("retry_in", wait).Msg("stream disconnected")

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// consumeStream syncs once, then holds a server-sent-events connection
// open and re-fetches whenever the service announces a new etag. Returns
// when the stream closes, errors, or goes silent past the idle timeout.
// The progress result reports whether the session synced at least once.
func (f *Fetcher) consumeStream(ctx context.Context) (progress bool, err error) {
	if _, err := f.fetchOnce(ctx); err != nil {
		return false, err
	}
	progress = true

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	endpoint := strings.TrimRight(f.opts.URL, "/") + streamPath
	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return progress, &FetchError{URL: endpoint, Err: err}
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	f.authorize(req)

	resp, err := f.stream.Do(req)
	if err != nil {
		return progress, &FetchError{URL: endpoint, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return progress, &FetchError{URL: endpoint, StatusCode: resp.StatusCode}
	}

	// The server keepalives every 30s; a connection that stays silent
	// past the idle timeout is treated as dead and redialed.
	watchdog := time.AfterFunc(f.streamIdle, cancel)
	defer watchdog.Stop()

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		watchdog.Reset(f.streamIdle)
		data, ok := strings.CutPrefix(scanner.Text(), "data:")
		if !ok {
			// Comments, event names and blank keep-alive lines.
			continue
		}
		announced := strings.TrimSpace(data)
		if current := f.store.Current(); current != nil && current.ETag() == announced {
			continue
		}
		if _, err := f.fetchOnce(ctx); err != nil {
			// The stream is still healthy; the next announcement retries.
			f.log.Warn().Err(err).Msg("fetch after stream event failed")
		} else {
			progress = true
		}
	}
	if streamCtx.Err() != nil && ctx.Err() == nil {
		return progress, errors.New("stream idle timeout exceeded")
	}
	if err := scanner.Err(); err != nil {
		return progress, &FetchError{URL: endpoint, Err: err}
	}
	return progress, errors.New("stream closed by server")
}
