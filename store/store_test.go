// Copyright (c) 2025 BVK Chaitanya

package store

import (
	"os"
	"path/filepath"
	"reflect"
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

func TestSaveLoadRoundTrip(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "watchlist.json"))

	last := d("0.00001234")
	watches := map[int64]map[string]*state.WatchEntry{
		100: {
			"So1111Contract": {
				Contract:   "So1111Contract",
				Low:        d("0.0000100"),
				High:       d("0.0000300"),
				Level:      d("0.0000150"),
				BandMin:    d("0.0000147"),
				BandMax:    d("0.0000153"),
				Status:     state.Inside,
				FirstTick:  false,
				AlertsSent: 1,
				DisplayName: "TKN/SOL",
				Pair: &state.PairInfo{
					URL:         "https://dexscreener.com/solana/abc",
					VenueID:     "abc",
					BaseSymbol:  "TKN",
					QuoteSymbol: "SOL",
				},
				LastPrice: &last,
			},
		},
		200: {
			"So2222Contract": {
				Contract:  "So2222Contract",
				Low:       d("1.00"),
				High:      d("2.00"),
				Level:     d("1.25"),
				BandMin:   d("1.225"),
				BandMax:   d("1.275"),
				Status:    state.Outside,
				FirstTick: true,
			},
		},
	}

	if err := s.Save(watches); err != nil {
		t.Fatal(err)
	}
	loaded, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(watches, loaded) {
		t.Fatalf("round trip mismatch:\nwanted %+v\ngot    %+v", watches, loaded)
	}
}

func TestLoadMissingFile(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "no-such-file.json"))
	watches, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(watches) != 0 {
		t.Fatalf("wanted empty collection, got %d owners", len(watches))
	}
}

func TestLoadTolerance(t *testing.T) {
	fpath := filepath.Join(t.TempDir(), "watchlist.json")
	data := `{
  "not-a-chat-id": {
    "So3333Contract": {"Contract": "So3333Contract", "Low": "1", "High": "2"}
  },
  "300": {
    "So4444Contract": {
      "Contract": "So4444Contract",
      "Low": "garbage",
      "High": "2.00",
      "Level": "1.25",
      "BandMin": "1.225",
      "BandMax": "1.275"
    }
  }
}`
	if err := os.WriteFile(fpath, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}

	watches, err := New(fpath).Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(watches) != 1 {
		t.Fatalf("wanted one surviving owner, got %d", len(watches))
	}
	entry := watches[300]["So4444Contract"]
	if entry == nil {
		t.Fatalf("wanted entry for owner 300")
	}
	if !entry.Low.IsZero() {
		t.Fatalf("wanted damaged low to default to zero, got %s", entry.Low)
	}
	if !entry.High.Equal(d("2.00")) {
		t.Fatalf("wanted high 2.00, got %s", entry.High)
	}
	if entry.Status != state.Outside {
		t.Fatalf("wanted defaulted status OUTSIDE, got %s", entry.Status)
	}
	if !entry.FirstTick {
		t.Fatalf("wanted defaulted first-tick true")
	}
	if entry.AlertsSent != 0 {
		t.Fatalf("wanted defaulted alerts-sent 0, got %d", entry.AlertsSent)
	}
}

func TestWriteLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s := New(filepath.Join(dir, "watchlist.json"))
	if err := s.Save(map[int64]map[string]*state.WatchEntry{}); err != nil {
		t.Fatal(err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "watchlist.json" {
		t.Fatalf("wanted only the snapshot file, got %v", entries)
	}
}
