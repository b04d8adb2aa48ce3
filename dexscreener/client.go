// Copyright (c) 2025 BVK Chaitanya

// Package dexscreener implements the DexScreener price source for the watch
// engine. One call returns at most one observation: the highest-volume pair
// for the configured chain.
package dexscreener

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/bvk/fibwatch/state"
	"github.com/bvk/fibwatch/watcher"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

type Options struct {
	// BaseURL points to the DexScreener API endpoint.
	BaseURL string

	// ChainID selects the single chain whose pairs are considered.
	ChainID string

	// Timeout bounds every tokens query.
	Timeout time.Duration

	// RequestsPerSecond caps the request rate against the API.
	RequestsPerSecond float64
}

func (v *Options) setDefaults() {
	if len(v.BaseURL) == 0 {
		v.BaseURL = "https://api.dexscreener.com"
	}
	if len(v.ChainID) == 0 {
		v.ChainID = "solana"
	}
	if v.Timeout == 0 {
		v.Timeout = 10 * time.Second
	}
	if v.RequestsPerSecond == 0 {
		v.RequestsPerSecond = 5
	}
}

func (v *Options) Check() error {
	if _, err := url.Parse(v.BaseURL); err != nil {
		return fmt.Errorf("invalid base url: %w", err)
	}
	return nil
}

type Client struct {
	opts Options

	baseURL *url.URL

	limiter *rate.Limiter

	httpClient *http.Client
}

var _ watcher.PriceSource = &Client{}

func New(opts *Options) (*Client, error) {
	if opts == nil {
		opts = new(Options)
	}
	opts.setDefaults()
	if err := opts.Check(); err != nil {
		return nil, err
	}
	baseURL, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, err
	}
	c := &Client{
		opts:       *opts,
		baseURL:    baseURL,
		limiter:    rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1),
		httpClient: &http.Client{},
	}
	return c, nil
}

// BestPair returns the chain-filtered pair with the highest 24h volume for
// the contract, ties broken by higher liquidity. Returns os.ErrNotExist
// (wrapped) when no pair survives filtering.
func (c *Client) BestPair(ctx context.Context, contract string) (*Pair, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	u := *c.baseURL
	u.Path = path.Join("/latest/dex/tokens", contract)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("could not create tokens request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("could not perform tokens request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tokens query for %q returned http status %d", contract, resp.StatusCode)
	}
	r := new(tokenResponse)
	if err := json.NewDecoder(resp.Body).Decode(r); err != nil {
		return nil, fmt.Errorf("could not json-decode tokens response: %w", err)
	}

	var candidates []*Pair
	for _, p := range r.Pairs {
		if strings.EqualFold(p.ChainID, c.opts.ChainID) {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no %s pair for contract %q: %w", c.opts.ChainID, contract, os.ErrNotExist)
	}
	slices.SortFunc(candidates, func(a, b *Pair) int {
		if v := cmp.Compare(b.volumeH24(), a.volumeH24()); v != 0 {
			return v
		}
		return cmp.Compare(b.liquidityUSD(), a.liquidityUSD())
	})
	return candidates[0], nil
}

// BestObservation implements the watcher.PriceSource interface. A best pair
// with a missing or unusable price is reported as os.ErrNotExist for this
// cycle.
func (c *Client) BestObservation(ctx context.Context, contract string) (*watcher.Observation, error) {
	p, err := c.BestPair(ctx, contract)
	if err != nil {
		return nil, err
	}
	if len(p.PriceUSD) == 0 {
		return nil, fmt.Errorf("best pair for contract %q carries no usd price: %w", contract, os.ErrNotExist)
	}
	price, err := decimal.NewFromString(p.PriceUSD)
	if err != nil {
		return nil, fmt.Errorf("unusable usd price %q for contract %q: %w", p.PriceUSD, contract, os.ErrNotExist)
	}
	obs := &watcher.Observation{
		Price: price,
		Name:  displayName(p),
		Pair: state.PairInfo{
			URL:         p.URL,
			VenueID:     p.PairAddress,
			BaseSymbol:  p.BaseToken.Symbol,
			QuoteSymbol: p.QuoteToken.Symbol,
		},
	}
	return obs, nil
}

func displayName(p *Pair) string {
	if len(p.BaseToken.Symbol) != 0 && len(p.QuoteToken.Symbol) != 0 {
		return p.BaseToken.Symbol + "/" + p.QuoteToken.Symbol
	}
	if i := strings.LastIndexByte(p.URL, '/'); i != -1 {
		return p.URL[i+1:]
	}
	return ""
}
