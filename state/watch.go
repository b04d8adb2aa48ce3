// Copyright (c) 2025 BVK Chaitanya

// Package state defines the value types that fibwatch persists in its JSON
// snapshot files. Decimal fields marshal as quoted decimal strings so that
// prices round-trip losslessly.
package state

import "github.com/shopspring/decimal"

type WatchStatus string

const (
	Outside WatchStatus = "OUTSIDE"
	Inside  WatchStatus = "INSIDE"
)

// PairInfo holds display metadata from the most recent successful price
// source fetch for a tracked contract.
type PairInfo struct {
	URL         string
	VenueID     string
	BaseSymbol  string
	QuoteSymbol string
}

// WatchEntry is one tracked contract for one chat. Low and High are the
// user-supplied price range; Level and the band bounds are derived once at
// creation and never recomputed.
type WatchEntry struct {
	Contract string

	Low  decimal.Decimal
	High decimal.Decimal

	Level   decimal.Decimal
	BandMin decimal.Decimal
	BandMax decimal.Decimal

	Status WatchStatus

	// FirstTick is true until the first successful price evaluation.
	FirstTick bool

	// AlertsSent never exceeds 2; the entry is retired when it gets there.
	AlertsSent int

	DisplayName string

	Pair *PairInfo `json:",omitempty"`

	LastPrice *decimal.Decimal `json:",omitempty"`
}

func (e *WatchEntry) Clone() *WatchEntry {
	x := *e
	if e.Pair != nil {
		p := *e.Pair
		x.Pair = &p
	}
	if e.LastPrice != nil {
		v := e.LastPrice.Copy()
		x.LastPrice = &v
	}
	return &x
}
