// Copyright (c) 2025 BVK Chaitanya

// Package watcher implements the watch state engine. It owns the collection
// of watch entries keyed by chat id and contract address, evaluates every
// entry against fresh price data once per poll cycle, and publishes alerts
// when a price enters an entry's target band.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/bvk/fibwatch/band"
	"github.com/bvk/fibwatch/state"
	"github.com/shopspring/decimal"
	"github.com/visvasity/topic"
)

// MaxAlerts is the number of alerts an entry can fire before it is retired
// automatically.
const MaxAlerts = 2

// ErrInvalidRange rejects Add calls whose low/high pair does not satisfy
// 0 <= low < high.
var ErrInvalidRange = fmt.Errorf("invalid price range: %w", os.ErrInvalid)

// Observation is one price source snapshot for a contract at fetch time.
type Observation struct {
	Price decimal.Decimal

	// Name is the price source's display name for the token, used to
	// default an entry's display name when the user supplied none.
	Name string

	Pair state.PairInfo
}

// PriceSource fetches the single best observation for a contract. Absence
// of a usable pair (or price) is reported as os.ErrNotExist.
type PriceSource interface {
	BestObservation(ctx context.Context, contract string) (*Observation, error)
}

// Store persists the full watch collection. Watcher calls it at most once
// per mutating operation and once per poll cycle.
type Store interface {
	Save(watches map[int64]map[string]*state.WatchEntry) error
}

type Options struct {
	// PollInterval is the wall-clock gap between poll cycles, measured
	// from the end of one cycle to the beginning of the next.
	PollInterval time.Duration

	// InitialDelay postpones the first cycle after startup.
	InitialDelay time.Duration
}

func (v *Options) setDefaults() {
	if v.PollInterval == 0 {
		v.PollInterval = 5 * time.Minute
	}
	if v.InitialDelay == 0 {
		v.InitialDelay = 2 * time.Second
	}
}

type Watcher struct {
	opts Options

	source PriceSource

	store Store

	alertTopic *topic.Topic[*Alert]

	mu sync.Mutex

	// watchMap is chat-id -> contract -> entry. Entries are never handed
	// out by reference; operations return clones.
	watchMap map[int64]map[string]*state.WatchEntry
}

// New creates a watch engine over the given collection, typically the result
// of a store Load. The watches map is owned by the engine afterwards.
func New(source PriceSource, store Store, watches map[int64]map[string]*state.WatchEntry, opts *Options) (*Watcher, error) {
	if source == nil || store == nil {
		return nil, os.ErrInvalid
	}
	if opts == nil {
		opts = new(Options)
	}
	opts.setDefaults()
	if watches == nil {
		watches = make(map[int64]map[string]*state.WatchEntry)
	}
	w := &Watcher{
		opts:       *opts,
		source:     source,
		store:      store,
		alertTopic: topic.New[*Alert](),
		watchMap:   watches,
	}
	return w, nil
}

func (w *Watcher) Close() {
	w.alertTopic.Close()
}

// Alerts subscribes the caller to alert events. Alerts for one chat are
// delivered in the order they fire.
func (w *Watcher) Alerts() (*topic.Receiver[*Alert], error) {
	return topic.Subscribe(w.alertTopic, 0, true)
}

// Add starts (or restarts) a watch for the contract under the given chat. A
// restart resets all progress, including the alert counter. The contract
// must resolve at the price source before it can be tracked.
func (w *Watcher) Add(ctx context.Context, chatID int64, contract string, low, high decimal.Decimal, name string) (*state.WatchEntry, error) {
	if len(contract) == 0 {
		return nil, os.ErrInvalid
	}
	if low.IsNegative() || low.GreaterThanOrEqual(high) {
		return nil, fmt.Errorf("want 0 <= low < high: %w", ErrInvalidRange)
	}

	obs, err := w.source.BestObservation(ctx, contract)
	if err != nil {
		return nil, fmt.Errorf("could not resolve contract %q: %w", contract, err)
	}

	b := band.Compute(low, high)
	if len(name) == 0 {
		name = obs.Name
	}
	pair := obs.Pair
	entry := &state.WatchEntry{
		Contract:    contract,
		Low:         low,
		High:        high,
		Level:       b.Level,
		BandMin:     b.Min,
		BandMax:     b.Max,
		Status:      state.Outside,
		FirstTick:   true,
		AlertsSent:  0,
		DisplayName: name,
		Pair:        &pair,
	}

	w.mu.Lock()
	if w.watchMap[chatID] == nil {
		w.watchMap[chatID] = make(map[string]*state.WatchEntry)
	}
	w.watchMap[chatID][contract] = entry
	// Clone while still holding the lock: the entry is live in the map now
	// and a poll cycle may mutate it.
	cloned := entry.Clone()
	snapshot := w.snapshotLocked()
	w.mu.Unlock()

	w.save(snapshot)
	return cloned, nil
}

// Remove stops the watch for the contract. Returns os.ErrNotExist (wrapped)
// if the contract is not tracked for the chat.
func (w *Watcher) Remove(ctx context.Context, chatID int64, contract string) (*state.WatchEntry, error) {
	w.mu.Lock()
	entry, ok := w.watchMap[chatID][contract]
	if !ok {
		w.mu.Unlock()
		return nil, fmt.Errorf("contract %q is not tracked: %w", contract, os.ErrNotExist)
	}
	delete(w.watchMap[chatID], contract)
	if len(w.watchMap[chatID]) == 0 {
		delete(w.watchMap, chatID)
	}
	snapshot := w.snapshotLocked()
	w.mu.Unlock()

	w.save(snapshot)
	return entry, nil
}

// Clear removes every watch for the chat and returns how many were dropped.
func (w *Watcher) Clear(ctx context.Context, chatID int64) (int, error) {
	w.mu.Lock()
	n := len(w.watchMap[chatID])
	delete(w.watchMap, chatID)
	var snapshot map[int64]map[string]*state.WatchEntry
	if n != 0 {
		snapshot = w.snapshotLocked()
	}
	w.mu.Unlock()

	if n != 0 {
		w.save(snapshot)
	}
	return n, nil
}

// List returns snapshots of the chat's entries ordered by contract address.
// Entries missing pair metadata are backfilled with one best-effort source
// call each; a fetch failure just leaves the field absent.
func (w *Watcher) List(ctx context.Context, chatID int64) []*state.WatchEntry {
	w.mu.Lock()
	var missing []string
	entries := make([]*state.WatchEntry, 0, len(w.watchMap[chatID]))
	for _, entry := range w.watchMap[chatID] {
		if entry.Pair == nil {
			missing = append(missing, entry.Contract)
		}
		entries = append(entries, entry.Clone())
	}
	w.mu.Unlock()

	changed := false
	for _, contract := range missing {
		obs, err := w.source.BestObservation(ctx, contract)
		if err != nil {
			slog.Info("could not backfill pair metadata (ignored)", "contract", contract, "err", err)
			continue
		}
		pair := obs.Pair
		w.mu.Lock()
		if entry, ok := w.watchMap[chatID][contract]; ok && entry.Pair == nil {
			entry.Pair = &pair
			changed = true
		}
		w.mu.Unlock()
		for _, entry := range entries {
			if entry.Contract == contract && entry.Pair == nil {
				entry.Pair = &pair
			}
		}
	}
	if changed {
		w.mu.Lock()
		snapshot := w.snapshotLocked()
		w.mu.Unlock()
		w.save(snapshot)
	}

	slices.SortFunc(entries, func(a, b *state.WatchEntry) int {
		return strings.Compare(a.Contract, b.Contract)
	})
	return entries
}

// NumWatches returns the total number of live entries across all chats.
func (w *Watcher) NumWatches() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	n := 0
	for _, contracts := range w.watchMap {
		n += len(contracts)
	}
	return n
}

// snapshotLocked deep-copies the collection so that saves can run without
// holding the lock across file i/o.
func (w *Watcher) snapshotLocked() map[int64]map[string]*state.WatchEntry {
	snapshot := make(map[int64]map[string]*state.WatchEntry, len(w.watchMap))
	for chatID, contracts := range w.watchMap {
		m := make(map[string]*state.WatchEntry, len(contracts))
		for contract, entry := range contracts {
			m[contract] = entry.Clone()
		}
		snapshot[chatID] = m
	}
	return snapshot
}

// save persists a collection snapshot. Persistence failures never fail the
// calling operation; the in-memory collection stays authoritative and the
// next state change retries the write.
func (w *Watcher) save(snapshot map[int64]map[string]*state.WatchEntry) {
	if err := w.store.Save(snapshot); err != nil {
		slog.Error("could not save watch snapshot (will retry on next change)", "err", err)
	}
}
