// Package registry is the durable list of items under tracking, plus the
// history of removed items for later restore.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/robertmeta/pricewatch/logger"
	"github.com/robertmeta/pricewatch/model"
)

// Configuration errors carry the user-facing reason; the dashboard and CLI
// surface their messages verbatim.
var (
	ErrDuplicateURL = errors.New("URL already being tracked")
	ErrNotFound     = errors.New("item not found")
	ErrNotInHistory = errors.New("item not found in history")
)

// Registry persists the active item list and the removed-item history as two
// JSON files. Reads degrade to an empty list on failure; writes report their
// error to the caller. There is no locking: the registry is small and
// human-paced, so last writer wins and readers may see a slightly stale
// snapshot.
type Registry struct {
	itemsFile   string
	historyFile string
	log         logger.Logger

	// Now stamps removal timestamps. For testing; defaults to time.Now.
	Now func() time.Time
}

// New creates a Registry rooted in dataDir, creating empty backing files on
// first use.
func New(dataDir string, log logger.Logger) (*Registry, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	r := &Registry{
		itemsFile:   filepath.Join(dataDir, "items.json"),
		historyFile: filepath.Join(dataDir, "history.json"),
		log:         log,
		Now:         time.Now,
	}

	if _, err := os.Stat(r.itemsFile); errors.Is(err, fs.ErrNotExist) {
		if err := r.SaveItems([]model.TrackedItem{}); err != nil {
			return nil, err
		}
	}
	if _, err := os.Stat(r.historyFile); errors.Is(err, fs.ErrNotExist) {
		if err := r.SaveHistory([]model.HistoryEntry{}); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// Items returns the active tracked items, or an empty list if the file is
// missing or unreadable.
func (r *Registry) Items() []model.TrackedItem {
	var items []model.TrackedItem
	if err := readJSON(r.itemsFile, &items); err != nil {
		r.log.Error("failed to load items", logger.Error(err))
		return nil
	}
	return items
}

// SaveItems replaces the active item list.
func (r *Registry) SaveItems(items []model.TrackedItem) error {
	if err := writeJSON(r.itemsFile, items); err != nil {
		r.log.Error("failed to save items", logger.Error(err))
		return fmt.Errorf("failed to save items: %w", err)
	}
	return nil
}

// History returns the removed-item history, or an empty list on failure.
func (r *Registry) History() []model.HistoryEntry {
	var history []model.HistoryEntry
	if err := readJSON(r.historyFile, &history); err != nil {
		r.log.Error("failed to load history", logger.Error(err))
		return nil
	}
	return history
}

// SaveHistory replaces the removed-item history.
func (r *Registry) SaveHistory(history []model.HistoryEntry) error {
	if err := writeJSON(r.historyFile, history); err != nil {
		r.log.Error("failed to save history", logger.Error(err))
		return fmt.Errorf("failed to save history: %w", err)
	}
	return nil
}

// Add puts a new item under tracking. The URL must not already be tracked.
func (r *Registry) Add(name, url string) error {
	item := model.TrackedItem{Name: name, URL: url, Status: model.StatusChecking}
	if err := item.Validate(); err != nil {
		return err
	}

	items := r.Items()
	for _, existing := range items {
		if existing.URL == url {
			return ErrDuplicateURL
		}
	}

	items = append(items, item)
	return r.SaveItems(items)
}

// Remove moves an item from active tracking into history, stamped with the
// removal time.
func (r *Registry) Remove(url string) error {
	items := r.Items()

	var removed *model.TrackedItem
	kept := items[:0]
	for _, item := range items {
		if item.URL == url && removed == nil {
			it := item
			removed = &it
			continue
		}
		kept = append(kept, item)
	}
	if removed == nil {
		return ErrNotFound
	}

	history := append(r.History(), model.HistoryEntry{
		TrackedItem: *removed,
		RemovedAt:   r.Now(),
	})

	if err := r.SaveItems(kept); err != nil {
		return err
	}
	return r.SaveHistory(history)
}

// Restore moves an item from history back to active tracking, dropping the
// removal timestamp. Fails if the URL has been re-added in the meantime.
func (r *Registry) Restore(url string) error {
	history := r.History()

	var restored *model.HistoryEntry
	kept := history[:0]
	for _, entry := range history {
		if entry.URL == url && restored == nil {
			e := entry
			restored = &e
			continue
		}
		kept = append(kept, entry)
	}
	if restored == nil {
		return ErrNotInHistory
	}

	// Status does not carry over; the item starts a fresh checking cycle.
	if err := r.Add(restored.Name, restored.URL); err != nil {
		return err
	}
	return r.SaveHistory(kept)
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
