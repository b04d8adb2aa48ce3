// Copyright (c) 2025 BVK Chaitanya

package api

const StatusPath = "/status"

type StatusRequest struct {
}

type StatusResponse struct {
	Uptime string

	NumWatches int

	PollInterval string

	SnapshotFile string
}
