// Package flagship is a client SDK for evaluating feature flags against
// a locally synced snapshot. Evaluations never touch the network: a
// background sync loop keeps an immutable snapshot fresh, and every
// evaluation reads a consistent frozen view of it.
package flagship

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/TimurManjosov/flagship-go-sdk/internal/bundle"
	"github.com/TimurManjosov/flagship-go-sdk/internal/engine"
	"github.com/TimurManjosov/flagship-go-sdk/internal/fetcher"
	"github.com/TimurManjosov/flagship-go-sdk/internal/rules"
	"github.com/TimurManjosov/flagship-go-sdk/internal/snapshot"
	"github.com/TimurManjosov/flagship-go-sdk/internal/telemetry"
)

// Client evaluates feature flags. It is safe for concurrent use; a
// single Client per process and environment is the intended shape.
type Client struct {
	id      string
	opts    Options
	store   *snapshot.Store
	fetcher *fetcher.Fetcher
	metrics *telemetry.Metrics
	log     zerolog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed atomic.Bool
}

// New builds a Client and starts its background sync. When a BundlePath
// is set the bundle is loaded (and watched) before any network fetch, so
// the client is ready immediately. With a URL, one synchronous fetch is
// attempted within ctx; if it fails the client starts unready and the
// background loop keeps retrying.
func New(ctx context.Context, opts Options) (*Client, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}

	c := &Client{
		id:      uuid.NewString(),
		opts:    opts,
		store:   snapshot.NewStore(),
		metrics: telemetry.New(opts.Registerer),
	}
	c.log = opts.Logger.With().Str("component", "flagship").Str("instance", c.id).Logger()

	runCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	if opts.BundlePath != "" {
		watcher, err := bundle.NewWatcher(opts.BundlePath, c.store, c.log)
		if err != nil {
			cancel()
			return nil, err
		}
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			watcher.Run(runCtx)
		}()
	}

	if opts.URL != "" {
		c.fetcher = fetcher.New(c.store, fetcher.Options{
			URL:         opts.URL,
			Environment: opts.Environment,
			Reference:   opts.Reference,
			ClientToken: opts.ClientToken,
			Interval:    opts.UpdateInterval,
			Timeout:     opts.RequestTimeout,
			Mode:        fetcher.Mode(opts.FetchMode),
			HTTPClient:  opts.HTTPClient,
			Logger:      c.log,
			Metrics:     c.metrics,
		})

		if err := c.fetcher.Refresh(ctx); err != nil {
			if ctx.Err() != nil {
				cancel()
				c.wg.Wait()
				return nil, ctx.Err()
			}
			c.log.Warn().Err(err).Msg("initial snapshot fetch failed, continuing unready")
		}

		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.fetcher.Run(runCtx)
		}()
	}

	return c, nil
}

// Ready reports whether a snapshot is available for evaluation.
func (c *Client) Ready() bool {
	return !c.closed.Load() && c.store.Ready()
}

// EvaluateVariant resolves a variant flag in the client's default
// namespace.
func (c *Client) EvaluateVariant(flagKey, entityID string, attrs map[string]any) (VariantResult, error) {
	return c.EvaluateVariantIn(c.opts.Namespace, flagKey, entityID, attrs)
}

// EvaluateVariantIn resolves a variant flag in an explicit namespace.
func (c *Client) EvaluateVariantIn(namespace, flagKey, entityID string, attrs map[string]any) (VariantResult, error) {
	if err := c.checkEvaluate(entityID); err != nil {
		return VariantResult{FlagKey: flagKey}, err
	}

	ectx := engine.Context{EntityID: entityID, Attributes: attrs}
	result := engine.EvaluateVariant(c.store.Current(), namespace, flagKey, ectx)
	c.metrics.ObserveEvaluation(namespace, string(result.Reason))

	out := variantResultFrom(result)
	if out.Reason == ReasonFlagNotFound && c.opts.FallbackVariant != "" {
		out.VariantKey = c.opts.FallbackVariant
	}
	return out, nil
}

// EvaluateBoolean resolves a boolean flag in the client's default
// namespace. Unknown, disabled and not-yet-synced flags all evaluate to
// false.
func (c *Client) EvaluateBoolean(flagKey, entityID string, attrs map[string]any) (BooleanResult, error) {
	return c.EvaluateBooleanIn(c.opts.Namespace, flagKey, entityID, attrs)
}

// EvaluateBooleanIn resolves a boolean flag in an explicit namespace.
func (c *Client) EvaluateBooleanIn(namespace, flagKey, entityID string, attrs map[string]any) (BooleanResult, error) {
	if err := c.checkEvaluate(entityID); err != nil {
		return BooleanResult{FlagKey: flagKey}, err
	}

	ectx := engine.Context{EntityID: entityID, Attributes: attrs}
	result := engine.EvaluateBoolean(c.store.Current(), namespace, flagKey, ectx)
	c.metrics.ObserveEvaluation(namespace, string(result.Reason))
	return booleanResultFrom(result), nil
}

// EvaluateBatch resolves several flags against one snapshot, so the
// results are mutually consistent even if a sync lands mid-batch.
// Results are returned in request order.
func (c *Client) EvaluateBatch(requests []BatchRequest) ([]BatchResult, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}
	for i := range requests {
		if requests[i].EntityID == "" {
			return nil, ErrInvalidContext
		}
	}

	snap := c.store.Current()
	namespace := c.opts.Namespace

	out := make([]BatchResult, 0, len(requests))
	for i := range requests {
		req := &requests[i]
		ectx := engine.Context{EntityID: req.EntityID, Attributes: req.Context}

		flagType := rules.FlagTypeVariant
		if snap != nil {
			if flag, err := snap.Flag(namespace, req.FlagKey); err == nil {
				flagType = flag.Type
			}
		}

		entry := BatchResult{FlagKey: req.FlagKey}
		if flagType == rules.FlagTypeBoolean {
			result := engine.EvaluateBoolean(snap, namespace, req.FlagKey, ectx)
			c.metrics.ObserveEvaluation(namespace, string(result.Reason))
			boolean := booleanResultFrom(result)
			entry.Boolean = &boolean
		} else {
			result := engine.EvaluateVariant(snap, namespace, req.FlagKey, ectx)
			c.metrics.ObserveEvaluation(namespace, string(result.Reason))
			variant := variantResultFrom(result)
			if variant.Reason == ReasonFlagNotFound && c.opts.FallbackVariant != "" {
				variant.VariantKey = c.opts.FallbackVariant
			}
			entry.Variant = &variant
		}
		out = append(out, entry)
	}
	return out, nil
}

// ListFlags returns the flags in the client's default namespace, sorted
// by key.
func (c *Client) ListFlags() ([]Flag, error) {
	return c.ListFlagsIn(c.opts.Namespace)
}

// ListFlagsIn returns the flags in an explicit namespace, sorted by key.
func (c *Client) ListFlagsIn(namespace string) ([]Flag, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}
	snap := c.store.Current()
	if snap == nil {
		return nil, ErrNotReady
	}
	flags, err := snap.Flags(namespace)
	if err != nil {
		return nil, err
	}
	out := make([]Flag, 0, len(flags))
	for _, f := range flags {
		out = append(out, flagFrom(f))
	}
	return out, nil
}

// Refresh forces one synchronous fetch-validate-publish cycle outside
// the background schedule.
func (c *Client) Refresh(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	if c.fetcher == nil {
		return ErrNoUpstream
	}
	if err := c.fetcher.Refresh(ctx); err != nil {
		var fe *fetcher.FetchError
		if errors.As(err, &fe) {
			return &FetchError{URL: fe.URL, StatusCode: fe.StatusCode, Err: fe.Err}
		}
		return err
	}
	return nil
}

// Subscribe returns a channel receiving a notification for each newly
// published snapshot, and a function to unsubscribe. A slow receiver
// misses intermediate updates rather than blocking the sync loop.
func (c *Client) Subscribe() (<-chan Update, func()) {
	updates, unsubscribe := c.store.Subscribe()

	out := make(chan Update, 1)
	done := make(chan struct{})
	go func() {
		defer close(out)
		for {
			select {
			case <-done:
				return
			case u, ok := <-updates:
				if !ok {
					return
				}
				select {
				case out <- updateFrom(u):
				default:
				}
			}
		}
	}()

	var once sync.Once
	return out, func() {
		once.Do(func() {
			unsubscribe()
			close(done)
		})
	}
}

// Close stops the background sync and releases resources. Evaluations
// after Close return ErrClientClosed. Close is idempotent.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.cancel()
	c.wg.Wait()
	c.log.Debug().Msg("client closed")
	return nil
}

func (c *Client) checkEvaluate(entityID string) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	if entityID == "" {
		return ErrInvalidContext
	}
	return nil
}
