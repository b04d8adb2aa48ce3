// Copyright (c) 2025 BVK Chaitanya

package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/bvk/fibwatch/state"
	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

type fakeSource struct {
	mu sync.Mutex

	ncalls int

	fetch func(contract string) (*Observation, error)
}

func (s *fakeSource) BestObservation(ctx context.Context, contract string) (*Observation, error) {
	s.mu.Lock()
	s.ncalls++
	s.mu.Unlock()
	return s.fetch(contract)
}

func (s *fakeSource) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ncalls
}

func priced(price string) func(string) (*Observation, error) {
	return func(contract string) (*Observation, error) {
		return &Observation{
			Price: d(price),
			Name:  "TKN/SOL",
			Pair: state.PairInfo{
				URL:         "https://dexscreener.com/solana/" + contract,
				VenueID:     contract,
				BaseSymbol:  "TKN",
				QuoteSymbol: "SOL",
			},
		}, nil
	}
}

type fakeStore struct {
	mu sync.Mutex

	nsaves int
	last   map[int64]map[string]*state.WatchEntry
	err    error
}

func (s *fakeStore) Save(watches map[int64]map[string]*state.WatchEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nsaves++
	s.last = watches
	return s.err
}

func (s *fakeStore) saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nsaves
}

func newTestWatcher(t *testing.T, source *fakeSource, store *fakeStore) *Watcher {
	t.Helper()
	w, err := New(source, store, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(w.Close)
	return w
}

func TestAddInvalidRange(t *testing.T) {
	ctx := context.Background()
	source := &fakeSource{fetch: priced("1.30")}
	store := new(fakeStore)
	w := newTestWatcher(t, source, store)

	cases := [][2]string{
		{"2.00", "1.00"},
		{"1.00", "1.00"},
		{"-0.5", "1.00"},
	}
	for _, c := range cases {
		if _, err := w.Add(ctx, 1, "TKN", d(c[0]), d(c[1]), ""); !errors.Is(err, ErrInvalidRange) {
			t.Fatalf("wanted ErrInvalidRange for [%s, %s], got %v", c[0], c[1], err)
		}
	}
	if n := w.NumWatches(); n != 0 {
		t.Fatalf("wanted empty collection, got %d entries", n)
	}
	if n := store.saves(); n != 0 {
		t.Fatalf("wanted no saves, got %d", n)
	}
}

func TestAddUnresolvedContract(t *testing.T) {
	ctx := context.Background()
	source := &fakeSource{fetch: func(string) (*Observation, error) {
		return nil, fmt.Errorf("no pair: %w", os.ErrNotExist)
	}}
	w := newTestWatcher(t, source, new(fakeStore))

	if _, err := w.Add(ctx, 1, "TKN", d("1.00"), d("2.00"), ""); err == nil {
		t.Fatalf("wanted non-nil error for unresolved contract")
	}
	if n := w.NumWatches(); n != 0 {
		t.Fatalf("wanted empty collection, got %d entries", n)
	}
}

func TestAddComputesBand(t *testing.T) {
	ctx := context.Background()
	source := &fakeSource{fetch: priced("1.30")}
	store := new(fakeStore)
	w := newTestWatcher(t, source, store)

	entry, err := w.Add(ctx, 1, "TKN", d("1.00"), d("2.00"), "")
	if err != nil {
		t.Fatal(err)
	}
	if !entry.Level.Equal(d("1.25")) || !entry.BandMin.Equal(d("1.225")) || !entry.BandMax.Equal(d("1.275")) {
		t.Fatalf("wanted band 1.25/1.225/1.275, got %s/%s/%s", entry.Level, entry.BandMin, entry.BandMax)
	}
	if entry.Status != state.Outside || !entry.FirstTick || entry.AlertsSent != 0 {
		t.Fatalf("wanted fresh entry state, got %+v", entry)
	}
	if entry.DisplayName != "TKN/SOL" {
		t.Fatalf("wanted display name from the source, got %q", entry.DisplayName)
	}
	if entry.Pair == nil || entry.Pair.VenueID != "TKN" {
		t.Fatalf("wanted pair metadata from the source, got %+v", entry.Pair)
	}
	if n := store.saves(); n != 1 {
		t.Fatalf("wanted one save, got %d", n)
	}
}

func TestScenario(t *testing.T) {
	ctx := context.Background()
	source := &fakeSource{fetch: priced("1.30")}
	store := new(fakeStore)
	w := newTestWatcher(t, source, store)

	if _, err := w.Add(ctx, 1, "TKN", d("1.00"), d("2.00"), ""); err != nil {
		t.Fatal(err)
	}

	// First observed price 1.30: outside the band, no alert.
	if alerts := w.EvaluateAll(ctx); len(alerts) != 0 {
		t.Fatalf("wanted no alerts at 1.30, got %d", len(alerts))
	}
	entries := w.List(ctx, 1)
	if len(entries) != 1 || entries[0].Status != state.Outside || entries[0].FirstTick {
		t.Fatalf("wanted outside entry with first tick consumed, got %+v", entries[0])
	}
	if !entries[0].LastPrice.Equal(d("1.30")) {
		t.Fatalf("wanted last price 1.30, got %s", entries[0].LastPrice)
	}

	// Price 1.26 enters the band: alert #1.
	source.fetch = priced("1.26")
	alerts := w.EvaluateAll(ctx)
	if len(alerts) != 1 {
		t.Fatalf("wanted one alert at 1.26, got %d", len(alerts))
	}
	a := alerts[0]
	if a.ChatID != 1 || a.Contract != "TKN" || a.NumSent != 1 {
		t.Fatalf("unexpected alert %+v", a)
	}
	if !a.Level.Equal(d("1.25")) || !a.Price.Equal(d("1.26")) {
		t.Fatalf("unexpected alert band/price %s/%s", a.Level, a.Price)
	}
	if entries := w.List(ctx, 1); entries[0].Status != state.Inside || entries[0].AlertsSent != 1 {
		t.Fatalf("wanted inside entry with one alert, got %+v", entries[0])
	}

	// Still 1.26: continuously inside, no re-alert.
	if alerts := w.EvaluateAll(ctx); len(alerts) != 0 {
		t.Fatalf("wanted no alerts while staying inside, got %d", len(alerts))
	}

	// Back to 1.30: leaves the band silently.
	source.fetch = priced("1.30")
	if alerts := w.EvaluateAll(ctx); len(alerts) != 0 {
		t.Fatalf("wanted no alerts on leaving the band, got %d", len(alerts))
	}
	if entries := w.List(ctx, 1); entries[0].Status != state.Outside {
		t.Fatalf("wanted outside entry, got %+v", entries[0])
	}

	// Re-entry at 1.25: alert #2 and automatic retirement.
	source.fetch = priced("1.25")
	alerts = w.EvaluateAll(ctx)
	if len(alerts) != 1 {
		t.Fatalf("wanted one alert at 1.25, got %d", len(alerts))
	}
	if alerts[0].NumSent != 2 {
		t.Fatalf("wanted second alert, got %d", alerts[0].NumSent)
	}
	if n := w.NumWatches(); n != 0 {
		t.Fatalf("wanted entry retired after second alert, got %d entries", n)
	}
}

func TestFirstTickInsideAlerts(t *testing.T) {
	ctx := context.Background()
	source := &fakeSource{fetch: priced("1.25")}
	w := newTestWatcher(t, source, new(fakeStore))

	if _, err := w.Add(ctx, 1, "TKN", d("1.00"), d("2.00"), ""); err != nil {
		t.Fatal(err)
	}
	alerts := w.EvaluateAll(ctx)
	if len(alerts) != 1 {
		t.Fatalf("wanted one alert on first tick inside the band, got %d", len(alerts))
	}
	for i := 0; i < 5; i++ {
		if alerts := w.EvaluateAll(ctx); len(alerts) != 0 {
			t.Fatalf("wanted no re-alert while continuously inside, got %d", len(alerts))
		}
	}
}

func TestRetireStaleEntryWithoutFetch(t *testing.T) {
	ctx := context.Background()
	source := &fakeSource{fetch: priced("1.25")}
	store := new(fakeStore)
	watches := map[int64]map[string]*state.WatchEntry{
		1: {
			"TKN": {
				Contract:   "TKN",
				Low:        d("1.00"),
				High:       d("2.00"),
				Level:      d("1.25"),
				BandMin:    d("1.225"),
				BandMax:    d("1.275"),
				Status:     state.Inside,
				AlertsSent: MaxAlerts,
			},
		},
	}
	w, err := New(source, store, watches, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if alerts := w.EvaluateAll(ctx); len(alerts) != 0 {
		t.Fatalf("wanted no alerts, got %d", len(alerts))
	}
	if n := w.NumWatches(); n != 0 {
		t.Fatalf("wanted stale entry retired, got %d entries", n)
	}
	if n := source.calls(); n != 0 {
		t.Fatalf("wanted no source calls for a stale entry, got %d", n)
	}
	if n := store.saves(); n != 1 {
		t.Fatalf("wanted one save for the retirement, got %d", n)
	}
}

func TestFetchFailureIsolation(t *testing.T) {
	ctx := context.Background()
	source := &fakeSource{fetch: priced("9.99")}
	w := newTestWatcher(t, source, new(fakeStore))

	if _, err := w.Add(ctx, 1, "BAD", d("1.00"), d("2.00"), ""); err != nil {
		t.Fatal(err)
	}
	if _, err := w.Add(ctx, 1, "TKN", d("1.00"), d("2.00"), ""); err != nil {
		t.Fatal(err)
	}

	source.fetch = func(contract string) (*Observation, error) {
		if contract == "BAD" {
			return nil, fmt.Errorf("boom")
		}
		return priced("1.25")(contract)
	}
	alerts := w.EvaluateAll(ctx)
	if len(alerts) != 1 || alerts[0].Contract != "TKN" {
		t.Fatalf("wanted the healthy entry to alert, got %+v", alerts)
	}
	// The failed entry is untouched and still tracked.
	entries := w.List(ctx, 1)
	if len(entries) != 2 {
		t.Fatalf("wanted both entries tracked, got %d", len(entries))
	}
	if entries[0].Contract != "BAD" || !entries[0].FirstTick {
		t.Fatalf("wanted failed entry unchanged, got %+v", entries[0])
	}
}

func TestSaveBatchingPerCycle(t *testing.T) {
	ctx := context.Background()
	source := &fakeSource{fetch: priced("1.30")}
	store := new(fakeStore)
	w := newTestWatcher(t, source, store)

	if _, err := w.Add(ctx, 1, "AAA", d("1.00"), d("2.00"), ""); err != nil {
		t.Fatal(err)
	}
	if _, err := w.Add(ctx, 1, "BBB", d("1.00"), d("2.00"), ""); err != nil {
		t.Fatal(err)
	}
	nsaves := store.saves()

	// Both entries mutate (first tick, last price) but the cycle saves once.
	w.EvaluateAll(ctx)
	if n := store.saves(); n != nsaves+1 {
		t.Fatalf("wanted one save for the cycle, got %d", n-nsaves)
	}

	// Nothing changes on a repeat cycle at the same price.
	w.EvaluateAll(ctx)
	if n := store.saves(); n != nsaves+1 {
		t.Fatalf("wanted no save for an unchanged cycle, got %d extra", n-nsaves-1)
	}
}

func TestRemoveAndClear(t *testing.T) {
	ctx := context.Background()
	source := &fakeSource{fetch: priced("1.30")}
	w := newTestWatcher(t, source, new(fakeStore))

	if _, err := w.Remove(ctx, 1, "TKN"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("wanted ErrNotExist, got %v", err)
	}

	for _, c := range []string{"AAA", "BBB", "CCC"} {
		if _, err := w.Add(ctx, 1, c, d("1.00"), d("2.00"), ""); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := w.Add(ctx, 2, "DDD", d("1.00"), d("2.00"), ""); err != nil {
		t.Fatal(err)
	}

	if removed, err := w.Remove(ctx, 1, "BBB"); err != nil {
		t.Fatal(err)
	} else if removed.Contract != "BBB" {
		t.Fatalf("wanted removed entry BBB, got %q", removed.Contract)
	}

	if n, err := w.Clear(ctx, 1); err != nil {
		t.Fatal(err)
	} else if n != 2 {
		t.Fatalf("wanted 2 entries cleared, got %d", n)
	}
	if n, err := w.Clear(ctx, 1); err != nil {
		t.Fatal(err)
	} else if n != 0 {
		t.Fatalf("wanted 0 entries cleared, got %d", n)
	}

	// Chat 2 is isolated from chat 1 operations.
	if entries := w.List(ctx, 2); len(entries) != 1 || entries[0].Contract != "DDD" {
		t.Fatalf("wanted chat 2 untouched, got %+v", entries)
	}
}

func TestAddOverwriteResetsProgress(t *testing.T) {
	ctx := context.Background()
	source := &fakeSource{fetch: priced("1.25")}
	w := newTestWatcher(t, source, new(fakeStore))

	if _, err := w.Add(ctx, 1, "TKN", d("1.00"), d("2.00"), ""); err != nil {
		t.Fatal(err)
	}
	if alerts := w.EvaluateAll(ctx); len(alerts) != 1 {
		t.Fatalf("wanted one alert, got %d", len(alerts))
	}

	entry, err := w.Add(ctx, 1, "TKN", d("1.00"), d("2.00"), "")
	if err != nil {
		t.Fatal(err)
	}
	if entry.AlertsSent != 0 || !entry.FirstTick || entry.Status != state.Outside {
		t.Fatalf("wanted overwrite to reset all progress, got %+v", entry)
	}
	// The reset entry alerts again on its next first tick inside the band.
	if alerts := w.EvaluateAll(ctx); len(alerts) != 1 {
		t.Fatalf("wanted one alert after the reset, got %d", len(alerts))
	}
}

func TestRemoveDuringCycleIsNotResurrected(t *testing.T) {
	ctx := context.Background()
	store := new(fakeStore)
	source := &fakeSource{}
	var w *Watcher
	source.fetch = priced("1.30")

	w = newTestWatcher(t, source, store)
	if _, err := w.Add(ctx, 1, "TKN", d("1.00"), d("2.00"), ""); err != nil {
		t.Fatal(err)
	}

	// Remove the entry while its own fetch is suspended.
	source.fetch = func(contract string) (*Observation, error) {
		if _, err := w.Remove(ctx, 1, "TKN"); err != nil {
			t.Errorf("could not remove entry mid-cycle: %v", err)
		}
		return priced("1.25")(contract)
	}
	if alerts := w.EvaluateAll(ctx); len(alerts) != 0 {
		t.Fatalf("wanted no alerts for an entry removed mid-cycle, got %d", len(alerts))
	}
	if n := w.NumWatches(); n != 0 {
		t.Fatalf("wanted entry to stay removed, got %d entries", n)
	}
}

func TestAlertSubscription(t *testing.T) {
	ctx := context.Background()
	source := &fakeSource{fetch: priced("1.25")}
	w := newTestWatcher(t, source, new(fakeStore))

	receiver, err := w.Alerts()
	if err != nil {
		t.Fatal(err)
	}
	defer receiver.Close()

	if _, err := w.Add(ctx, 1, "TKN", d("1.00"), d("2.00"), ""); err != nil {
		t.Fatal(err)
	}
	if alerts := w.EvaluateAll(ctx); len(alerts) != 1 {
		t.Fatalf("wanted one alert, got %d", len(alerts))
	}

	alert, err := receiver.Receive()
	if err != nil {
		t.Fatal(err)
	}
	if alert.ChatID != 1 || alert.Contract != "TKN" {
		t.Fatalf("unexpected alert %+v", alert)
	}
	if len(alert.Text()) == 0 {
		t.Fatalf("wanted non-empty alert text")
	}
}

func TestConcurrentAddAndEvaluate(t *testing.T) {
	ctx := context.Background()
	source := &fakeSource{fetch: priced("1.26")}
	store := new(fakeStore)
	w := newTestWatcher(t, source, store)

	// Entries returned by Add must be detached copies: a poll cycle running
	// alongside mutates the live entry. The race detector flags any sharing.
	var wg sync.WaitGroup
	done := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
				w.EvaluateAll(ctx)
			}
		}
	}()

	for i := 0; i < 50; i++ {
		entry, err := w.Add(ctx, 1, "TKN", d("1.00"), d("2.00"), "")
		if err != nil {
			t.Errorf("could not add watch: %v", err)
			break
		}
		if !entry.Level.Equal(d("1.25")) {
			t.Errorf("wanted level 1.25, got %s", entry.Level)
			break
		}
	}
	close(done)
	wg.Wait()
}
