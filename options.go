package flagship

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// FetchMode selects how the client stays in sync with the flag service.
type FetchMode string

const (
	// FetchModePolling re-fetches the snapshot on UpdateInterval.
	FetchModePolling FetchMode = "polling"
	// FetchModeStreaming keeps a server-sent-events connection open and
	// fetches when the service announces a change.
	FetchModeStreaming FetchMode = "streaming"
)

// Options configures a Client. URL is required unless BundlePath is set;
// everything else has a usable default.
type Options struct {
	// URL is the flag service base URL, e.g. "https://flags.example.com".
	URL string
	// Environment names the flag environment to evaluate against.
	Environment string
	// Namespace is the default namespace for evaluations; "default" when
	// empty. Per-call namespaces go through the *In variants.
	Namespace string
	// Reference optionally pins a ref/branch of the flag configuration.
	Reference string
	// ClientToken authenticates against the flag service.
	ClientToken string
	// UpdateInterval is the polling cadence. Ignored in streaming mode.
	UpdateInterval time.Duration
	// FetchMode selects polling or streaming sync.
	FetchMode FetchMode
	// RequestTimeout bounds each fetch attempt.
	RequestTimeout time.Duration
	// BundlePath loads flags from a local file instead of (or before) the
	// network. The file is watched and reloaded on change.
	BundlePath string
	// FallbackVariant, when non-empty, is returned as the variant key for
	// evaluations of flags missing from the snapshot.
	FallbackVariant string
	// HTTPClient overrides the client used for snapshot fetches.
	HTTPClient *http.Client
	// Logger receives the client's structured logs. Defaults to a nop
	// logger.
	Logger *zerolog.Logger
	// Registerer, when set, receives the client's Prometheus collectors.
	Registerer prometheus.Registerer
}

const (
	defaultNamespace      = "default"
	defaultUpdateInterval = 30 * time.Second
	defaultRequestTimeout = 10 * time.Second
)

var (
	// ErrNoSource indicates neither a URL nor a bundle path was given.
	ErrNoSource = errors.New("flagship: either URL or BundlePath is required")
	// ErrInvalidFetchMode indicates an unrecognized FetchMode value.
	ErrInvalidFetchMode = errors.New("flagship: invalid fetch mode")
)

// withDefaults validates opts and fills in defaults, returning the
// normalized copy.
func (o Options) withDefaults() (Options, error) {
	if strings.TrimSpace(o.URL) == "" && strings.TrimSpace(o.BundlePath) == "" {
		return o, ErrNoSource
	}
	switch o.FetchMode {
	case "", FetchModePolling, FetchModeStreaming:
	default:
		return o, ErrInvalidFetchMode
	}
	if o.FetchMode == "" {
		o.FetchMode = FetchModePolling
	}
	if o.Namespace == "" {
		o.Namespace = defaultNamespace
	}
	if o.UpdateInterval <= 0 {
		o.UpdateInterval = defaultUpdateInterval
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = defaultRequestTimeout
	}
	if o.Logger == nil {
		nop := zerolog.Nop()
		o.Logger = &nop
	}
	return o, nil
}
