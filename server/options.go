// Copyright (c) 2025 BVK Chaitanya

package server

import (
	"fmt"
	"time"
)

type Options struct {
	// PollInterval is the gap between price poll cycles.
	PollInterval time.Duration

	// InitialDelay postpones the first poll cycle after startup.
	InitialDelay time.Duration

	// FetchTimeout bounds individual price source queries.
	FetchTimeout time.Duration

	// ChainID selects the chain whose pairs are watched.
	ChainID string
}

func (v *Options) setDefaults() {
	if v.PollInterval == 0 {
		v.PollInterval = 5 * time.Minute
	}
	if v.InitialDelay == 0 {
		v.InitialDelay = 2 * time.Second
	}
	if v.FetchTimeout == 0 {
		v.FetchTimeout = 10 * time.Second
	}
	if len(v.ChainID) == 0 {
		v.ChainID = "solana"
	}
}

func (v *Options) Check() error {
	if v.PollInterval < time.Second {
		return fmt.Errorf("poll interval %s is too small", v.PollInterval)
	}
	return nil
}
