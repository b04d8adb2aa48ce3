// Copyright (c) 2025 BVK Chaitanya

package dexscreener

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	s := httptest.NewServer(handler)
	t.Cleanup(s.Close)
	c, err := New(&Options{BaseURL: s.URL, RequestsPerSecond: 1000})
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestBestPairPicksHighestVolume(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/latest/dex/tokens/CONTRACT" {
			t.Errorf("unexpected request path %q", r.URL.Path)
		}
		fmt.Fprint(w, `{"pairs": [
  {"chainId": "solana", "pairAddress": "low-volume", "priceUsd": "1.0",
   "volume": {"h24": 100}, "liquidity": {"usd": 9999}},
  {"chainId": "ethereum", "pairAddress": "wrong-chain", "priceUsd": "1.0",
   "volume": {"h24": 100000}, "liquidity": {"usd": 100000}},
  {"chainId": "Solana", "pairAddress": "best", "priceUsd": "1.0",
   "volume": {"h24": 5000}, "liquidity": {"usd": 10}}
]}`)
	})

	p, err := c.BestPair(ctx, "CONTRACT")
	if err != nil {
		t.Fatal(err)
	}
	if p.PairAddress != "best" {
		t.Fatalf("wanted highest-volume solana pair, got %q", p.PairAddress)
	}
}

func TestBestPairLiquidityTieBreak(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"pairs": [
  {"chainId": "solana", "pairAddress": "thin", "priceUsd": "1.0",
   "volume": {"h24": 5000}, "liquidity": {"usd": 10}},
  {"chainId": "solana", "pairAddress": "deep", "priceUsd": "1.0",
   "volume": {"h24": 5000}, "liquidity": {"usd": 90000}},
  {"chainId": "solana", "pairAddress": "no-liquidity", "priceUsd": "1.0",
   "volume": {"h24": 5000}}
]}`)
	})

	p, err := c.BestPair(ctx, "CONTRACT")
	if err != nil {
		t.Fatal(err)
	}
	if p.PairAddress != "deep" {
		t.Fatalf("wanted deepest pair on equal volume, got %q", p.PairAddress)
	}
}

func TestBestPairNoUsablePair(t *testing.T) {
	ctx := context.Background()

	// No pairs at all, or pairs only on other chains: both are ErrNotExist.
	for _, body := range []string{
		`{"pairs": null}`,
		`{"pairs": [{"chainId": "ethereum", "pairAddress": "x", "priceUsd": "1.0"}]}`,
	} {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, body)
		})
		if _, err := c.BestPair(ctx, "CONTRACT"); !errors.Is(err, os.ErrNotExist) {
			t.Fatalf("wanted ErrNotExist for %s, got %v", body, err)
		}
	}
}

func TestBestPairHTTPError(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "too many requests", http.StatusTooManyRequests)
	})
	if _, err := c.BestPair(ctx, "CONTRACT"); err == nil {
		t.Fatalf("wanted non-nil error for a http failure")
	}
}

func TestBestObservation(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"pairs": [
  {"chainId": "solana", "pairAddress": "PAIR", "priceUsd": "0.0000425",
   "url": "https://dexscreener.com/solana/PAIR",
   "baseToken": {"symbol": "TKN"}, "quoteToken": {"symbol": "SOL"},
   "volume": {"h24": 5000}, "liquidity": {"usd": 90000}}
]}`)
	})

	obs, err := c.BestObservation(ctx, "CONTRACT")
	if err != nil {
		t.Fatal(err)
	}
	if v := obs.Price.String(); v != "0.0000425" {
		t.Fatalf("wanted exact decimal price, got %s", v)
	}
	if obs.Name != "TKN/SOL" {
		t.Fatalf("wanted display name TKN/SOL, got %q", obs.Name)
	}
	if obs.Pair.VenueID != "PAIR" || obs.Pair.URL != "https://dexscreener.com/solana/PAIR" {
		t.Fatalf("unexpected pair metadata %+v", obs.Pair)
	}
}

func TestBestObservationUnusablePrice(t *testing.T) {
	ctx := context.Background()
	for _, price := range []string{``, `"priceUsd": "not-a-number",`} {
		body := fmt.Sprintf(`{"pairs": [{"chainId": "solana", "pairAddress": "PAIR", %s "volume": {"h24": 1}}]}`, price)
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, body)
		})
		if _, err := c.BestObservation(ctx, "CONTRACT"); !errors.Is(err, os.ErrNotExist) {
			t.Fatalf("wanted ErrNotExist for unusable price, got %v", err)
		}
	}
}

func TestDisplayNameFallback(t *testing.T) {
	p := &Pair{URL: "https://dexscreener.com/solana/8gk3mxv"}
	if v := displayName(p); v != "8gk3mxv" {
		t.Fatalf("wanted url tail as display name, got %q", v)
	}
}
