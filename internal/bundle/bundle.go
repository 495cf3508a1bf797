// Package bundle loads flag documents from local files, for air-gapped
// use and for seeding a client before its first fetch completes. Bundle
// snapshots are published as current but never recorded as last known
// good; only a successful remote fetch earns that.
package bundle

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/TimurManjosov/flagship-go-sdk/internal/rules"
	"github.com/TimurManjosov/flagship-go-sdk/internal/snapshot"
)

// Load reads and validates a flag document from path. The format is
// chosen by extension: .yaml/.yml is YAML, anything else is JSON.
func Load(path string) (*snapshot.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read bundle: %w", err)
	}

	var doc *rules.Document
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		doc = &rules.Document{}
		if err := yaml.Unmarshal(data, doc); err != nil {
			return nil, fmt.Errorf("parse bundle %s: %w", path, err)
		}
	default:
		doc, err = snapshot.Parse(data)
		if err != nil {
			return nil, fmt.Errorf("parse bundle %s: %w", path, err)
		}
	}

	snap, err := snapshot.New(doc, "", time.Now())
	if err != nil {
		return nil, fmt.Errorf("bundle %s: %w", path, err)
	}
	return snap, nil
}

// Watcher republishes a bundle file into the store whenever it changes
// on disk. A broken edit is logged and skipped; the previous snapshot
// stays live.
type Watcher struct {
	path  string
	store *snapshot.Store
	log   zerolog.Logger
	fsw   *fsnotify.Watcher
}

// NewWatcher loads path once, publishes it, and starts watching the
// file's directory. Watching the directory instead of the file survives
// the rename-based atomic writes editors and config systems do.
func NewWatcher(path string, store *snapshot.Store, log zerolog.Logger) (*Watcher, error) {
	snap, err := Load(path)
	if err != nil {
		return nil, err
	}
	store.Publish(snap)

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch bundle: %w", err)
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch bundle dir: %w", err)
	}

	return &Watcher{path: path, store: store, log: log, fsw: fsw}, nil
}

// Run processes file events until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	defer w.fsw.Close()
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			w.reload()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn().Err(err).Msg("bundle watcher error")
		}
	}
}

func (w *Watcher) reload() {
	snap, err := Load(w.path)
	if err != nil {
		w.log.Warn().Err(err).Str("path", w.path).Msg("bundle reload failed")
		return
	}
	w.store.Publish(snap)
	w.log.Info().Str("path", w.path).Int("flags", snap.FlagCount()).Msg("bundle reloaded")
}
