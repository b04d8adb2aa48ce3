// Copyright (c) 2025 BVK Chaitanya

package watcher

import (
	"fmt"
	"strings"
	"time"

	"github.com/bvk/fibwatch/band"
	"github.com/shopspring/decimal"
)

// Alert is the event emitted when a watched price enters its target band.
type Alert struct {
	UID string

	ChatID int64

	At time.Time

	Contract string
	Name     string

	Level   decimal.Decimal
	BandMin decimal.Decimal
	BandMax decimal.Decimal
	Price   decimal.Decimal

	// NumSent is the entry's alert count including this alert.
	NumSent int

	URL string
}

// Text renders the alert for delivery.
func (a *Alert) Text() string {
	name := a.Name
	if len(name) == 0 {
		name = a.Contract
	}
	url := a.URL
	if len(url) == 0 {
		url = "n/a"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "🚨 75%% Fib Retracement Alert! 🚨\n")
	fmt.Fprintf(&sb, "Token: %s\n", name)
	fmt.Fprintf(&sb, "Level Hit: %s USD\n", band.Format(a.Level))
	fmt.Fprintf(&sb, "Range: [%s – %s] USD\n", band.Format(a.BandMin), band.Format(a.BandMax))
	fmt.Fprintf(&sb, "Price: %s USD\n", band.Format(a.Price))
	fmt.Fprintf(&sb, "Dexscreener: %s", url)
	return sb.String()
}
