// Package tracker coordinates price fetching and persistence for the whole
// set of tracked items.
package tracker

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robertmeta/pricewatch/fetch"
	"github.com/robertmeta/pricewatch/ident"
	"github.com/robertmeta/pricewatch/logger"
	"github.com/robertmeta/pricewatch/model"
	"github.com/robertmeta/pricewatch/registry"
	"github.com/robertmeta/pricewatch/store"
)

var (
	// ErrUnknownItem distinguishes "identifier not tracked" from a swallowed
	// store read failure.
	ErrUnknownItem = errors.New("unknown item identifier")
	// ErrIdentifierCollision is returned when two distinct URLs derive the
	// same identifier; the new configuration is rejected rather than silently
	// merging their stores.
	ErrIdentifierCollision = errors.New("identifier collision between distinct URLs")
)

// binding ties an item identifier to its URL, display name and store.
// The whole binding set is rebuilt, never patched, on configuration change.
type binding struct {
	id    string
	url   string
	name  string
	store *store.ItemStore
}

// Tracker owns the live identifier -> binding map, drives the fetcher and
// the per-item stores, and writes status flags back to the registry.
//
// Batch updates are strictly sequential; the mutex only guards the swap of
// the binding map against concurrent readers, not overlapping update cycles
// (the scheduler is responsible for not overlapping invocations).
type Tracker struct {
	fetcher fetch.Fetcher
	reg     *registry.Registry
	dataDir string
	log     logger.Logger
	now     func() time.Time

	mu    sync.RWMutex
	items map[string]*binding
}

// Options configures a Tracker.
type Options struct {
	DataDir string
	Logger  logger.Logger
	Now     func() time.Time // for testing, defaults to time.Now
}

// New creates a Tracker with an empty binding set; call Rebuild with the
// registry's active list before updating.
func New(fetcher fetch.Fetcher, reg *registry.Registry, opts Options) *Tracker {
	if opts.DataDir == "" {
		opts.DataDir = "data"
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Tracker{
		fetcher: fetcher,
		reg:     reg,
		dataDir: opts.DataDir,
		log:     opts.Logger,
		now:     opts.Now,
		items:   make(map[string]*binding),
	}
}

// Rebuild derives an identifier per URL and replaces the entire binding map.
// Readers observe either the whole old set or the whole new set, never a
// mix. Duplicate URLs collapse to one binding; distinct URLs deriving the
// same identifier reject the whole new configuration.
func (t *Tracker) Rebuild(items []model.TrackedItem) error {
	next := make(map[string]*binding, len(items))

	for _, item := range items {
		id := ident.Derive(item.URL)
		if existing, ok := next[id]; ok {
			if existing.url == item.URL {
				continue
			}
			return fmt.Errorf("%w: %q and %q both derive %s",
				ErrIdentifierCollision, existing.url, item.URL, id)
		}

		st, err := store.New(t.dataDir, id, t.log)
		if err != nil {
			return fmt.Errorf("failed to open store for %s: %w", id, err)
		}
		st.Now = t.now

		name := item.Name
		if name == "" {
			name = "Unknown Item"
		}
		next[id] = &binding{id: id, url: item.URL, name: name, store: st}
	}

	t.mu.Lock()
	t.items = next
	t.mu.Unlock()

	t.log.Info("rebuilt item bindings", logger.Int("count", len(next)))
	return nil
}

// UpdateAll runs one batch pass over all bindings, sequentially. A failing
// item is logged, marked error in the registry snapshot and skipped; it
// never aborts the batch. The snapshot is persisted once after the full
// pass. The returned map holds the fetched result per identifier; failed
// items are simply absent.
func (t *Tracker) UpdateAll() map[string]*model.ItemResult {
	results := make(map[string]*model.ItemResult)
	items := t.reg.Items()

	for _, b := range t.bindings() {
		res, err := t.updateItem(b)
		if err != nil {
			t.log.Error("failed to update item",
				logger.String("item", b.id), logger.Error(err))
			setStatus(items, b.url, model.StatusError)
			continue
		}

		results[b.id] = res
		setStatus(items, b.url, model.StatusSuccess)
		t.log.Info("updated item", logger.String("item", b.id))
	}

	if err := t.reg.SaveItems(items); err != nil {
		t.log.Error("failed to persist item statuses", logger.Error(err))
	}
	return results
}

// UpdateOne runs the per-item update for a single identifier and writes the
// registry status for that item, same as a batch pass would.
func (t *Tracker) UpdateOne(id string) (*model.ItemResult, error) {
	b := t.binding(id)
	if b == nil {
		return nil, ErrUnknownItem
	}

	res, err := t.updateItem(b)

	items := t.reg.Items()
	if err != nil {
		setStatus(items, b.url, model.StatusError)
	} else {
		setStatus(items, b.url, model.StatusSuccess)
	}
	if saveErr := t.reg.SaveItems(items); saveErr != nil {
		t.log.Error("failed to persist item status", logger.Error(saveErr))
	}

	if err != nil {
		t.log.Error("failed to update item",
			logger.String("item", id), logger.Error(err))
		return nil, err
	}
	return res, nil
}

// updateItem fetches one item and persists its price and metadata.
func (t *Tracker) updateItem(b *binding) (*model.ItemResult, error) {
	res, err := t.fetcher.Fetch(b.url)
	if err != nil {
		return nil, err
	}

	b.store.SavePrice(&res.Price)
	b.store.SaveMetadata(res.Metadata(t.now()))
	return res, nil
}

// GetAll is a pure read projection over the current bindings' stores. Store
// read failures surface as empty metadata / empty history (logged inside the
// store), never as an error.
func (t *Tracker) GetAll() map[string]model.ItemData {
	results := make(map[string]model.ItemData)
	for _, b := range t.bindings() {
		results[b.id] = model.ItemData{
			Metadata:     b.store.LoadMetadata(),
			PriceHistory: b.store.LoadPriceHistory(),
			Name:         b.name,
		}
	}
	return results
}

// GetOne returns the projection for one identifier, or ErrUnknownItem when
// it is not currently tracked.
func (t *Tracker) GetOne(id string) (*model.ItemData, error) {
	b := t.binding(id)
	if b == nil {
		return nil, ErrUnknownItem
	}
	return &model.ItemData{
		Metadata:     b.store.LoadMetadata(),
		PriceHistory: b.store.LoadPriceHistory(),
		Name:         b.name,
	}, nil
}

// URL returns the tracking URL behind an identifier.
func (t *Tracker) URL(id string) (string, bool) {
	b := t.binding(id)
	if b == nil {
		return "", false
	}
	return b.url, true
}

// bindings returns the current bindings in stable identifier order, so one
// batch pass always processes items in the same sequence.
func (t *Tracker) bindings() []*binding {
	t.mu.RLock()
	bs := make([]*binding, 0, len(t.items))
	for _, b := range t.items {
		bs = append(bs, b)
	}
	t.mu.RUnlock()

	sort.Slice(bs, func(i, j int) bool { return bs[i].id < bs[j].id })
	return bs
}

func (t *Tracker) binding(id string) *binding {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.items[id]
}

// setStatus mutates the in-memory registry snapshot; the caller persists it.
func setStatus(items []model.TrackedItem, url string, status model.Status) {
	for i := range items {
		if items[i].URL == url {
			items[i].Status = status
		}
	}
}
