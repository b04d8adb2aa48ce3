// Copyright (c) 2025 BVK Chaitanya

// Package server composes the fibwatch daemon: the snapshot store, the
// dexscreener price source, the watch engine and the alert sinks.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/bvk/fibwatch/ctxutil"
	"github.com/bvk/fibwatch/dexscreener"
	"github.com/bvk/fibwatch/pushover"
	"github.com/bvk/fibwatch/store"
	"github.com/bvk/fibwatch/telegram"
	"github.com/bvk/fibwatch/watcher"
)

type Server struct {
	cg ctxutil.CloseGroup

	opts Options

	startedAt time.Time

	store *store.Store

	watcher *watcher.Watcher

	telegramClient *telegram.Client

	pushoverClient *pushover.Client
}

// New creates the daemon services under the given data directory. Both alert
// sinks are optional: a nil telegram secret runs the engine headless with
// only the http api as the front end.
func New(ctx context.Context, dataDir string, secrets *Secrets, opts *Options) (_ *Server, status error) {
	if opts == nil {
		opts = new(Options)
	}
	opts.setDefaults()
	if err := opts.Check(); err != nil {
		return nil, err
	}
	if secrets == nil {
		secrets = new(Secrets)
	}
	if err := secrets.Check(); err != nil {
		return nil, err
	}

	s := &Server{
		opts:      *opts,
		startedAt: time.Now(),
	}
	defer func() {
		if status != nil {
			s.Close()
		}
	}()

	s.store = store.New(filepath.Join(dataDir, "watches.json"))
	watches, err := s.store.Load()
	if err != nil {
		return nil, fmt.Errorf("could not load watch snapshot: %w", err)
	}

	source, err := dexscreener.New(&dexscreener.Options{
		ChainID: opts.ChainID,
		Timeout: opts.FetchTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create dexscreener client: %w", err)
	}

	wopts := &watcher.Options{
		PollInterval: opts.PollInterval,
		InitialDelay: opts.InitialDelay,
	}
	w, err := watcher.New(source, s.store, watches, wopts)
	if err != nil {
		return nil, fmt.Errorf("could not create watch engine: %w", err)
	}
	s.watcher = w

	if secrets.Telegram != nil {
		stateFile := filepath.Join(dataDir, "telegram-state.json")
		tc, err := telegram.New(ctx, stateFile, secrets.Telegram)
		if err != nil {
			return nil, fmt.Errorf("could not create telegram client: %w", err)
		}
		s.telegramClient = tc
		if err := s.registerTelegramCommands(ctx); err != nil {
			return nil, fmt.Errorf("could not register telegram commands: %w", err)
		}
	}

	if secrets.Pushover != nil {
		pc, err := pushover.New(secrets.Pushover)
		if err != nil {
			return nil, fmt.Errorf("could not create pushover client: %w", err)
		}
		s.pushoverClient = pc
	}

	s.cg.Go(func(ctx context.Context) {
		if err := s.watcher.Run(ctx); err != nil && err != context.Canceled {
			slog.Error("watch poll loop has stopped", "err", err)
		}
	})
	s.cg.Go(s.notifyAlerts)
	return s, nil
}

func (s *Server) Close() error {
	s.cg.Close()
	if s.telegramClient != nil {
		s.telegramClient.Close()
	}
	if s.watcher != nil {
		s.watcher.Close()
	}
	return nil
}
