// Copyright (c) 2025 BVK Chaitanya

package api

import (
	"github.com/bvk/fibwatch/state"
)

const WatchRemovePath = "/watch/remove"

type WatchRemoveRequest struct {
	ChatID int64

	Contract string
}

type WatchRemoveResponse struct {
	Entry *state.WatchEntry
}
