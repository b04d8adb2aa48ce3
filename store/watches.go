// Copyright (c) 2025 BVK Chaitanya

package store

import (
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"strconv"
	"sync"

	"github.com/bvk/fibwatch/state"
	"github.com/shopspring/decimal"
)

// Store persists the watch collection snapshot at a fixed file path. The
// in-memory collection remains authoritative; a failed save is reported and
// retried on the next state change.
type Store struct {
	mu sync.Mutex

	fpath string
}

func New(fpath string) *Store {
	return &Store{fpath: fpath}
}

func (s *Store) Path() string {
	return s.fpath
}

// Save replaces the snapshot with the given collection. The whole collection
// is written every time; callers are expected to batch, not call per-entry.
func (s *Store) Save(watches map[int64]map[string]*state.WatchEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Write(s.fpath, &watches)
}

// entryRecord mirrors state.WatchEntry with lenient field types so that one
// damaged field doesn't take the whole snapshot down on load.
type entryRecord struct {
	Contract string

	Low     json.RawMessage
	High    json.RawMessage
	Level   json.RawMessage
	BandMin json.RawMessage
	BandMax json.RawMessage

	Status      string
	FirstTick   *bool
	AlertsSent  int
	DisplayName string

	Pair *state.PairInfo

	LastPrice json.RawMessage
}

func looseDecimal(raw json.RawMessage) decimal.Decimal {
	if len(raw) == 0 {
		return decimal.Zero
	}
	var v decimal.Decimal
	if err := json.Unmarshal(raw, &v); err != nil {
		return decimal.Zero
	}
	return v
}

func (r *entryRecord) toEntry(contract string) *state.WatchEntry {
	e := &state.WatchEntry{
		Contract:    r.Contract,
		Low:         looseDecimal(r.Low),
		High:        looseDecimal(r.High),
		Level:       looseDecimal(r.Level),
		BandMin:     looseDecimal(r.BandMin),
		BandMax:     looseDecimal(r.BandMax),
		Status:      state.WatchStatus(r.Status),
		FirstTick:   true,
		DisplayName: r.DisplayName,
		Pair:        r.Pair,
	}
	if e.Contract == "" {
		e.Contract = contract
	}
	if e.Status != state.Inside {
		e.Status = state.Outside
	}
	if r.FirstTick != nil {
		e.FirstTick = *r.FirstTick
	}
	if r.AlertsSent > 0 {
		e.AlertsSent = r.AlertsSent
	}
	if len(r.LastPrice) != 0 && string(r.LastPrice) != "null" {
		p := looseDecimal(r.LastPrice)
		e.LastPrice = &p
	}
	return e
}

// Load reads the snapshot back into a watch collection. A missing snapshot
// file is an empty collection. Loading is tolerant: owners whose key is not
// a chat id are skipped, and damaged decimal fields come back as zero.
func (s *Store) Load() (map[int64]map[string]*state.WatchEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	watches := make(map[int64]map[string]*state.WatchEntry)

	raw, err := Read[map[string]map[string]json.RawMessage](s.fpath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return watches, nil
		}
		return nil, err
	}

	nentries := 0
	for owner, contracts := range *raw {
		chatID, err := strconv.ParseInt(owner, 10, 64)
		if err != nil {
			slog.Warn("skipping snapshot block with unusable owner key", "owner", owner, "err", err)
			continue
		}
		for contract, data := range contracts {
			r := new(entryRecord)
			if err := json.Unmarshal(data, r); err != nil {
				slog.Warn("skipping unusable snapshot entry", "owner", owner, "contract", contract, "err", err)
				continue
			}
			if watches[chatID] == nil {
				watches[chatID] = make(map[string]*state.WatchEntry)
			}
			watches[chatID][contract] = r.toEntry(contract)
			nentries++
		}
	}
	if nentries != 0 {
		slog.Info("restored watch entries from the snapshot", "file", s.fpath, "entries", nentries)
	}
	return watches, nil
}
