// Copyright (c) 2025 BVK Chaitanya

package api

const WatchClearPath = "/watch/clear"

type WatchClearRequest struct {
	ChatID int64
}

type WatchClearResponse struct {
	NumRemoved int
}
