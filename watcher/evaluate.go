// Copyright (c) 2025 BVK Chaitanya

package watcher

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/bvk/fibwatch/state"
	"github.com/google/uuid"
)

type watchKey struct {
	chatID   int64
	contract string
}

// EvaluateAll runs one poll cycle over every entry and returns the alerts
// that fired. Entries are evaluated sequentially in a stable order, so
// alerts for one chat always fire in evaluation order. A fetch failure for
// one entry never affects the others. The snapshot is saved at most once
// per cycle, and only when something changed.
func (w *Watcher) EvaluateAll(ctx context.Context) []*Alert {
	// Iterate over a stable key snapshot: fetches below suspend without
	// the lock, so the live collection can mutate under us.
	w.mu.Lock()
	keys := make([]watchKey, 0, len(w.watchMap))
	for chatID, contracts := range w.watchMap {
		for contract := range contracts {
			keys = append(keys, watchKey{chatID, contract})
		}
	}
	w.mu.Unlock()

	slices.SortFunc(keys, func(a, b watchKey) int {
		if a.chatID != b.chatID {
			if a.chatID < b.chatID {
				return -1
			}
			return 1
		}
		return strings.Compare(a.contract, b.contract)
	})

	var alerts []*Alert
	changed := false
	for _, k := range keys {
		alert, dirty := w.evaluateOne(ctx, k)
		changed = changed || dirty
		if alert != nil {
			alerts = append(alerts, alert)
			w.alertTopic.Send(alert)
		}
	}

	if changed {
		w.mu.Lock()
		snapshot := w.snapshotLocked()
		w.mu.Unlock()
		w.save(snapshot)
	}
	return alerts
}

// evaluateOne advances the state machine for a single entry. The returned
// dirty flag reports whether anything persisted-worthy changed.
func (w *Watcher) evaluateOne(ctx context.Context, k watchKey) (*Alert, bool) {
	w.mu.Lock()
	entry, ok := w.watchMap[k.chatID][k.contract]
	if !ok {
		// Removed while this cycle was in flight.
		w.mu.Unlock()
		return nil, false
	}
	if entry.AlertsSent >= MaxAlerts {
		// Normally unreachable: retirement happens inline when the
		// second alert fires.
		w.retireLocked(k)
		w.mu.Unlock()
		return nil, true
	}
	w.mu.Unlock()

	obs, err := w.source.BestObservation(ctx, k.contract)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			slog.Info("no usable pair for contract this cycle", "contract", k.contract)
		} else {
			slog.Warn("could not fetch price (will retry next cycle)", "contract", k.contract, "err", err)
		}
		return nil, false
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	entry, ok = w.watchMap[k.chatID][k.contract]
	if !ok {
		// Removed during the fetch; do not resurrect it.
		return nil, false
	}

	dirty := false
	if entry.Pair == nil || *entry.Pair != obs.Pair {
		pair := obs.Pair
		entry.Pair = &pair
		dirty = true
	}
	if len(entry.DisplayName) == 0 && len(obs.Name) != 0 {
		entry.DisplayName = obs.Name
		dirty = true
	}
	if entry.LastPrice == nil || !entry.LastPrice.Equal(obs.Price) {
		price := obs.Price.Copy()
		entry.LastPrice = &price
		dirty = true
	}

	inside := obs.Price.GreaterThanOrEqual(entry.BandMin) && obs.Price.LessThanOrEqual(entry.BandMax)

	if inside && (entry.Status == state.Outside || entry.FirstTick) {
		entry.Status = state.Inside
		entry.FirstTick = false
		entry.AlertsSent++
		alert := &Alert{
			UID:      uuid.New().String(),
			ChatID:   k.chatID,
			At:       time.Now(),
			Contract: entry.Contract,
			Name:     entry.DisplayName,
			Level:    entry.Level,
			BandMin:  entry.BandMin,
			BandMax:  entry.BandMax,
			Price:    obs.Price,
			NumSent:  entry.AlertsSent,
		}
		if entry.Pair != nil {
			alert.URL = entry.Pair.URL
		}
		if entry.AlertsSent >= MaxAlerts {
			w.retireLocked(k)
		}
		return alert, true
	}

	status := state.Outside
	if inside {
		status = state.Inside
	}
	if entry.Status != status {
		entry.Status = status
		dirty = true
	}
	if entry.FirstTick {
		entry.FirstTick = false
		dirty = true
	}
	return nil, dirty
}

func (w *Watcher) retireLocked(k watchKey) {
	delete(w.watchMap[k.chatID], k.contract)
	if len(w.watchMap[k.chatID]) == 0 {
		delete(w.watchMap, k.chatID)
	}
	slog.Info("watch entry retired", "chat", k.chatID, "contract", k.contract)
}
