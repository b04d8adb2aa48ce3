// Copyright (c) 2025 BVK Chaitanya

package dexscreener

// Wire types for the /latest/dex/tokens endpoint. Nested objects can be
// absent in responses, so they are pointers probed through accessors.

type Token struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
}

type Liquidity struct {
	USD float64 `json:"usd"`
}

type Volume struct {
	H24 float64 `json:"h24"`
}

type Pair struct {
	ChainID     string `json:"chainId"`
	DexID       string `json:"dexId"`
	URL         string `json:"url"`
	PairAddress string `json:"pairAddress"`

	BaseToken  Token `json:"baseToken"`
	QuoteToken Token `json:"quoteToken"`

	PriceUSD string `json:"priceUsd"`

	Liquidity *Liquidity `json:"liquidity"`
	Volume    *Volume    `json:"volume"`
}

func (p *Pair) volumeH24() float64 {
	if p.Volume == nil {
		return -1
	}
	return p.Volume.H24
}

func (p *Pair) liquidityUSD() float64 {
	if p.Liquidity == nil {
		return -1
	}
	return p.Liquidity.USD
}

type tokenResponse struct {
	Pairs []*Pair `json:"pairs"`
}
