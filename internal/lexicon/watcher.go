package lexicon

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ReloadStatus is reported to the watcher's hook after each reload attempt.
type ReloadStatus string

const (
	ReloadApplied   ReloadStatus = "applied"
	ReloadRejected  ReloadStatus = "rejected"
	ReloadUnchanged ReloadStatus = "unchanged"
)

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce sets how long the file must be quiet before it is reloaded.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.debounce = d }
}

func WithLogger(l *slog.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = l }
}

// WithReloadHook is called after every reload attempt.
func WithReloadHook(fn func(ReloadStatus)) WatcherOption {
	return func(w *Watcher) { w.onReload = fn }
}

// Watcher reloads a lexicon file into a Holder when it changes on disk.
// It watches the parent directory so editor rename-over saves are seen.
// A file that fails validation is rejected and the previous tables stay live.
type Watcher struct {
	path     string
	holder   *Holder
	debounce time.Duration
	logger   *slog.Logger
	onReload func(ReloadStatus)

	lastHash string
}

func NewWatcher(path string, holder *Holder, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		path:     filepath.Clean(path),
		holder:   holder,
		debounce: 500 * time.Millisecond,
		logger:   slog.Default(),
		onReload: func(ReloadStatus) {},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run watches until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	hash, err := fileHash(w.path)
	if err != nil {
		return fmt.Errorf("lexicon watcher: initial hash: %w", err)
	}
	w.lastHash = hash

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("lexicon watcher: create fsnotify: %w", err)
	}
	defer fsw.Close()

	dir := filepath.Dir(w.path)
	if err := fsw.Add(dir); err != nil {
		return fmt.Errorf("lexicon watcher: watch %s: %w", dir, err)
	}
	w.logger.Info("watching lexicon", "path", w.path)

	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	var pendingSince time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if filepath.Clean(event.Name) != w.path && filepath.Base(event.Name) != "..data" {
				continue
			}
			pendingSince = time.Now()

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("lexicon watcher error", "error", err)

		case <-ticker.C:
			if pendingSince.IsZero() || time.Since(pendingSince) < w.debounce {
				continue
			}
			pendingSince = time.Time{}
			w.onReload(w.Reload())
		}
	}
}

// Reload re-reads the file now. It is what Run calls after the debounce.
func (w *Watcher) Reload() ReloadStatus {
	hash, err := fileHash(w.path)
	if err != nil {
		w.logger.Error("lexicon reload: hash failed", "path", w.path, "error", err)
		return ReloadRejected
	}
	if hash == w.lastHash {
		w.logger.Debug("lexicon reload: content unchanged", "path", w.path)
		return ReloadUnchanged
	}

	tables, err := LoadFile(w.path)
	if err != nil {
		w.logger.Error("lexicon reload rejected, keeping previous tables", "path", w.path, "error", err)
		return ReloadRejected
	}

	old := w.holder.Swap(tables)
	w.lastHash = hash
	oldVersion := ""
	if old != nil {
		oldVersion = old.Version
	}
	w.logger.Info("lexicon reloaded",
		"path", w.path,
		"old_version", oldVersion,
		"new_version", tables.Version,
		"hash", hash[:8],
	)
	return ReloadApplied
}

func fileHash(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
