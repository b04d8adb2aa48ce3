// Copyright (c) 2025 BVK Chaitanya

package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bvk/fibwatch/api"
	"github.com/bvk/fibwatch/httputil"
)

// HandlerMap returns the daemon's http api handlers keyed by url path.
func (s *Server) HandlerMap() map[string]http.Handler {
	return map[string]http.Handler{
		api.WatchAddPath:    httputil.PostJSONHandler(s.doWatchAdd),
		api.WatchRemovePath: httputil.PostJSONHandler(s.doWatchRemove),
		api.WatchListPath:   httputil.PostJSONHandler(s.doWatchList),
		api.WatchClearPath:  httputil.PostJSONHandler(s.doWatchClear),
		api.StatusPath:      httputil.PostJSONHandler(s.doStatus),
	}
}

func (s *Server) doWatchAdd(ctx context.Context, req *api.WatchAddRequest) (*api.WatchAddResponse, error) {
	if err := req.Check(); err != nil {
		return nil, err
	}
	entry, err := s.watcher.Add(ctx, req.ChatID, req.Contract, req.Low, req.High, req.Name)
	if err != nil {
		return nil, err
	}
	return &api.WatchAddResponse{Entry: entry}, nil
}

func (s *Server) doWatchRemove(ctx context.Context, req *api.WatchRemoveRequest) (*api.WatchRemoveResponse, error) {
	if err := req.Check(); err != nil {
		return nil, err
	}
	entry, err := s.watcher.Remove(ctx, req.ChatID, req.Contract)
	if err != nil {
		return nil, err
	}
	return &api.WatchRemoveResponse{Entry: entry}, nil
}

func (s *Server) doWatchList(ctx context.Context, req *api.WatchListRequest) (*api.WatchListResponse, error) {
	entries := s.watcher.List(ctx, req.ChatID)
	return &api.WatchListResponse{Entries: entries}, nil
}

func (s *Server) doWatchClear(ctx context.Context, req *api.WatchClearRequest) (*api.WatchClearResponse, error) {
	n, err := s.watcher.Clear(ctx, req.ChatID)
	if err != nil {
		return nil, err
	}
	return &api.WatchClearResponse{NumRemoved: n}, nil
}

func (s *Server) doStatus(ctx context.Context, req *api.StatusRequest) (*api.StatusResponse, error) {
	resp := &api.StatusResponse{
		Uptime:       time.Since(s.startedAt).Round(time.Second).String(),
		NumWatches:   s.watcher.NumWatches(),
		PollInterval: s.opts.PollInterval.String(),
		SnapshotFile: s.store.Path(),
	}
	return resp, nil
}
