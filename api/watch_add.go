// Copyright (c) 2025 BVK Chaitanya

// Package api defines the request/response types for the daemon's http api.
package api

import (
	"github.com/bvk/fibwatch/state"
	"github.com/shopspring/decimal"
)

const WatchAddPath = "/watch/add"

type WatchAddRequest struct {
	ChatID int64

	Contract string

	Low  decimal.Decimal
	High decimal.Decimal

	// Name overrides the display name resolved from the price source.
	Name string
}

type WatchAddResponse struct {
	Entry *state.WatchEntry
}
