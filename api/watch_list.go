// Copyright (c) 2025 BVK Chaitanya

package api

import (
	"github.com/bvk/fibwatch/state"
)

const WatchListPath = "/watch/list"

type WatchListRequest struct {
	ChatID int64
}

type WatchListResponse struct {
	Entries []*state.WatchEntry
}
