package flagship

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/TimurManjosov/flagship-go-sdk/internal/testutil"
)

func flagServer(t *testing.T, version *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		doc := testutil.Document()
		v := int32(1)
		if version != nil {
			v = version.Load()
		}
		etag := `"v1"`
		if v != 1 {
			etag = `"v2"`
			doc.Version = "2"
		}
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", etag)
		_ = json.NewEncoder(w).Encode(doc)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T) *Client {
	t.Helper()
	srv := flagServer(t, nil)
	client, err := New(context.Background(), Options{URL: srv.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(context.Background(), Options{}); !errors.Is(err, ErrNoSource) {
		t.Errorf("New with no source = %v, want ErrNoSource", err)
	}
	if _, err := New(context.Background(), Options{URL: "http://x", FetchMode: "webhook"}); !errors.Is(err, ErrInvalidFetchMode) {
		t.Errorf("New with bad mode = %v, want ErrInvalidFetchMode", err)
	}
}

func TestClient_EvaluateVariant(t *testing.T) {
	client := newTestClient(t)

	if !client.Ready() {
		t.Fatal("client not ready after New")
	}

	got, err := client.EvaluateVariant("new-ui", "u1", map[string]any{"country": "US"})
	if err != nil {
		t.Fatalf("EvaluateVariant: %v", err)
	}
	if !got.Match || got.VariantKey != "on" || got.Reason != ReasonMatch {
		t.Errorf("result = %+v, want match on", got)
	}
	if got.Attachment["theme"] != "dark" {
		t.Errorf("Attachment = %v", got.Attachment)
	}

	got, err = client.EvaluateVariant("new-ui", "u2", map[string]any{"country": "DE"})
	if err != nil {
		t.Fatalf("EvaluateVariant: %v", err)
	}
	if got.Match || got.Reason != ReasonDefault || got.VariantKey != "off" {
		t.Errorf("result = %+v, want default off", got)
	}
}

func TestClient_EvaluateVariant_EmptyEntityID(t *testing.T) {
	client := newTestClient(t)

	_, err := client.EvaluateVariant("new-ui", "", nil)
	if !errors.Is(err, ErrInvalidContext) {
		t.Fatalf("err = %v, want ErrInvalidContext", err)
	}
}

func TestClient_FallbackVariant(t *testing.T) {
	srv := flagServer(t, nil)
	client, err := New(context.Background(), Options{URL: srv.URL, FallbackVariant: "control"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer client.Close()

	got, err := client.EvaluateVariant("ghost", "u1", nil)
	if err != nil {
		t.Fatalf("EvaluateVariant: %v", err)
	}
	if got.Reason != ReasonFlagNotFound {
		t.Fatalf("Reason = %q, want FLAG_NOT_FOUND", got.Reason)
	}
	if got.VariantKey != "control" {
		t.Errorf("VariantKey = %q, want fallback control", got.VariantKey)
	}
}

func TestClient_EvaluateBoolean(t *testing.T) {
	client := newTestClient(t)

	got, err := client.EvaluateBoolean("kill-switch", "u1", map[string]any{"role": "ops"})
	if err != nil {
		t.Fatalf("EvaluateBoolean: %v", err)
	}
	if !got.Enabled || got.Reason != ReasonMatch {
		t.Errorf("result = %+v, want enabled MATCH", got)
	}

	got, err = client.EvaluateBoolean("ghost", "u1", nil)
	if err != nil {
		t.Fatalf("EvaluateBoolean: %v", err)
	}
	if got.Enabled || got.Reason != ReasonFlagNotFound {
		t.Errorf("result = %+v, want disabled FLAG_NOT_FOUND", got)
	}
}

func TestClient_EvaluateBatch(t *testing.T) {
	client := newTestClient(t)

	results, err := client.EvaluateBatch([]BatchRequest{
		{FlagKey: "new-ui", EntityID: "u1", Context: map[string]any{"country": "US"}},
		{FlagKey: "kill-switch", EntityID: "u1", Context: map[string]any{"role": "ops"}},
		{FlagKey: "ghost", EntityID: "u1"},
	})
	if err != nil {
		t.Fatalf("EvaluateBatch: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}

	if results[0].Variant == nil || results[0].Variant.VariantKey != "on" {
		t.Errorf("results[0] = %+v, want variant on", results[0])
	}
	if results[1].Boolean == nil || !results[1].Boolean.Enabled {
		t.Errorf("results[1] = %+v, want boolean enabled", results[1])
	}
	if results[2].Variant == nil || results[2].Variant.Reason != ReasonFlagNotFound {
		t.Errorf("results[2] = %+v, want FLAG_NOT_FOUND", results[2])
	}

	if _, err := client.EvaluateBatch([]BatchRequest{{FlagKey: "new-ui"}}); !errors.Is(err, ErrInvalidContext) {
		t.Errorf("batch without entity id = %v, want ErrInvalidContext", err)
	}
}

func TestClient_ListFlags(t *testing.T) {
	client := newTestClient(t)

	flags, err := client.ListFlags()
	if err != nil {
		t.Fatalf("ListFlags: %v", err)
	}
	if len(flags) != 4 {
		t.Fatalf("got %d flags, want 4", len(flags))
	}
	if flags[0].Key != "dark-launch" {
		t.Errorf("flags[0] = %+v, want dark-launch first (sorted)", flags[0])
	}
}

func TestClient_RefreshAndSubscribe(t *testing.T) {
	var version atomic.Int32
	version.Store(1)
	srv := flagServer(t, &version)

	client, err := New(context.Background(), Options{
		URL: srv.URL,
		// Long interval: only explicit Refresh should fetch during the test.
		UpdateInterval: time.Hour,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer client.Close()

	updates, unsubscribe := client.Subscribe()
	defer unsubscribe()

	version.Store(2)
	if err := client.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	select {
	case u := <-updates:
		if u.ETag != `"v2"` {
			t.Errorf("update ETag = %q, want \"v2\"", u.ETag)
		}
		if u.Version != "2" {
			t.Errorf("update Version = %q, want 2", u.Version)
		}
	case <-time.After(time.Second):
		t.Fatal("no subscriber notification after Refresh")
	}
}

func TestClient_BundleOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flags.json")
	body, err := json.Marshal(testutil.Document())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatalf("write bundle: %v", err)
	}

	client, err := New(context.Background(), Options{BundlePath: path})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer client.Close()

	if !client.Ready() {
		t.Fatal("bundle-backed client not ready")
	}
	got, err := client.EvaluateVariant("new-ui", "u1", map[string]any{"country": "US"})
	if err != nil || got.VariantKey != "on" {
		t.Fatalf("EvaluateVariant = %+v, %v", got, err)
	}

	if err := client.Refresh(context.Background()); !errors.Is(err, ErrNoUpstream) {
		t.Errorf("Refresh on bundle-only client = %v, want ErrNoUpstream", err)
	}
}

func TestClient_UnreadyThenClosed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client, err := New(context.Background(), Options{URL: srv.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if client.Ready() {
		t.Error("client ready with no snapshot")
	}
	got, err := client.EvaluateVariant("new-ui", "u1", nil)
	if err != nil {
		t.Fatalf("EvaluateVariant: %v", err)
	}
	if got.Reason != ReasonNotReady {
		t.Errorf("Reason = %q, want CLIENT_NOT_READY", got.Reason)
	}
	if _, err := client.ListFlags(); !errors.Is(err, ErrNotReady) {
		t.Errorf("ListFlags = %v, want ErrNotReady", err)
	}

	if err := client.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	if _, err := client.EvaluateVariant("new-ui", "u1", nil); !errors.Is(err, ErrClientClosed) {
		t.Errorf("evaluate after close = %v, want ErrClientClosed", err)
	}
	if err := client.Refresh(context.Background()); !errors.Is(err, ErrClientClosed) {
		t.Errorf("refresh after close = %v, want ErrClientClosed", err)
	}
}

func TestClient_FetchErrorSurfacedByRefresh(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !healthy.Load() {
			http.Error(w, "down", http.StatusBadGateway)
			return
		}
		doc := testutil.Document()
		w.Header().Set("ETag", `"v1"`)
		_ = json.NewEncoder(w).Encode(doc)
	}))
	defer srv.Close()

	client, err := New(context.Background(), Options{URL: srv.URL, UpdateInterval: time.Hour})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer client.Close()

	healthy.Store(false)
	err = client.Refresh(context.Background())
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("Refresh = %v, want *FetchError", err)
	}
	if fe.StatusCode != http.StatusBadGateway {
		t.Errorf("StatusCode = %d, want 502", fe.StatusCode)
	}

	// The failed refresh must not disturb the live snapshot.
	got, err := client.EvaluateVariant("new-ui", "u1", map[string]any{"country": "US"})
	if err != nil || got.VariantKey != "on" {
		t.Fatalf("EvaluateVariant after failed refresh = %+v, %v", got, err)
	}
}
