// Copyright (c) 2025 BVK Chaitanya

package server

import (
	"context"
	"log/slog"
	"time"
)

// notifyAlerts forwards watch alerts to the configured sinks. Delivery is
// at-most-once: a failed send is logged and dropped, never replayed.
func (s *Server) notifyAlerts(ctx context.Context) {
	receiver, err := s.watcher.Alerts()
	if err != nil {
		slog.Error("could not subscribe to alerts (unexpected)", "err", err)
		return
	}
	defer receiver.Close()

	stopf := context.AfterFunc(ctx, receiver.Close)
	defer stopf()

	for ctx.Err() == nil {
		alert, err := receiver.Receive()
		if err != nil {
			continue
		}

		text := alert.Text()
		slog.Info("delivering watch alert", "chat", alert.ChatID, "contract", alert.Contract, "price", alert.Price, "nsent", alert.NumSent)

		if s.telegramClient != nil {
			sctx, cancel := context.WithTimeout(ctx, 30*time.Second)
			if err := s.telegramClient.SendMessage(sctx, alert.ChatID, text); err != nil {
				slog.Error("could not deliver alert over telegram (ignored)", "chat", alert.ChatID, "err", err)
			}
			cancel()
		}
		if s.pushoverClient != nil {
			sctx, cancel := context.WithTimeout(ctx, 30*time.Second)
			if err := s.pushoverClient.SendMessage(sctx, alert.At, text); err != nil {
				slog.Error("could not deliver alert over pushover (ignored)", "err", err)
			}
			cancel()
		}
	}
}
