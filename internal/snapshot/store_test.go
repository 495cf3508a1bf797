package snapshot

import (
	"strconv"
	"sync"
	"testing"
	"time"
)

func snapWithVersion(t *testing.T, version string) *Snapshot {
	t.Helper()
	doc := testDocument()
	doc.Version = version
	snap, err := New(doc, `W/"`+version+`"`, time.Now())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return snap
}

func TestStore_EmptyUntilPublish(t *testing.T) {
	store := NewStore()

	if store.Ready() {
		t.Error("new store must not be ready")
	}
	if store.Current() != nil {
		t.Error("Current() must be nil before first publish")
	}
	if store.LastKnownGood() != nil {
		t.Error("LastKnownGood() must be nil before first fetch")
	}
}

func TestStore_PublishSwapsCurrent(t *testing.T) {
	store := NewStore()
	first := snapWithVersion(t, "1")
	second := snapWithVersion(t, "2")

	store.PublishFetched(first)
	if got := store.Current(); got != first {
		t.Fatal("Current() did not return published snapshot")
	}

	store.PublishFetched(second)
	if got := store.Current(); got != second {
		t.Fatal("Current() did not return replacement snapshot")
	}
	if got := store.LastKnownGood(); got != second {
		t.Fatal("LastKnownGood() not updated on fetched publish")
	}

	// The old snapshot object stays fully usable for readers that loaded
	// it before the swap.
	if _, err := first.Flag("default", "new-ui"); err != nil {
		t.Fatalf("old snapshot unusable after swap: %v", err)
	}
}

func TestStore_BundlePublishIsNotLastKnownGood(t *testing.T) {
	store := NewStore()
	bundle := snapWithVersion(t, "bundled")

	store.Publish(bundle)
	if store.Current() != bundle {
		t.Fatal("bundle not published as current")
	}
	if store.LastKnownGood() != nil {
		t.Fatal("bundle publish must not set last-known-good")
	}
}

func TestStore_ConcurrentReadersDuringPublish(t *testing.T) {
	store := NewStore()
	store.PublishFetched(snapWithVersion(t, "0"))

	done := make(chan struct{})
	var wg sync.WaitGroup

	// Readers must always observe a complete snapshot: consistent etag and
	// working lookups, never a nil or half-updated value.
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				snap := store.Current()
				if snap == nil {
					t.Error("Current() returned nil after first publish")
					return
				}
				if _, err := snap.Flag("default", "new-ui"); err != nil {
					t.Errorf("lookup failed on published snapshot: %v", err)
					return
				}
			}
		}()
	}

	for i := 1; i <= 200; i++ {
		store.PublishFetched(snapWithVersion(t, strconv.Itoa(i)))
	}
	close(done)
	wg.Wait()
}

func TestStore_SubscribeNotifiesOnPublish(t *testing.T) {
	store := NewStore()
	ch, unsub := store.Subscribe()
	defer unsub()

	snap := snapWithVersion(t, "9")
	store.PublishFetched(snap)

	select {
	case update := <-ch:
		if update.ETag != snap.ETag() {
			t.Errorf("update etag = %q, want %q", update.ETag, snap.ETag())
		}
		if update.FlagCount != snap.FlagCount() {
			t.Errorf("update flag count = %d, want %d", update.FlagCount, snap.FlagCount())
		}
	case <-time.After(time.Second):
		t.Fatal("no update received")
	}
}

func TestStore_SlowSubscriberDoesNotBlockPublish(t *testing.T) {
	store := NewStore()
	_, unsub := store.Subscribe() // never drained
	defer unsub()

	publishDone := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			store.PublishFetched(snapWithVersion(t, strconv.Itoa(i)))
		}
		close(publishDone)
	}()

	select {
	case <-publishDone:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on slow subscriber")
	}
}

func TestStore_UnsubscribeIsIdempotent(t *testing.T) {
	store := NewStore()
	_, unsub := store.Subscribe()
	unsub()
	unsub() // second call must not panic on closed channel

	store.PublishFetched(snapWithVersion(t, "1"))
}

func TestStore_PublishNilIsNoop(t *testing.T) {
	store := NewStore()
	store.Publish(nil)
	store.PublishFetched(nil)
	if store.Ready() {
		t.Error("nil publish must not mark the store ready")
	}
}
