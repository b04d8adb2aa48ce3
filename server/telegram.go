// Copyright (c) 2025 BVK Chaitanya

package server

import (
	"context"
	"fmt"
	"strings"

	"github.com/bvk/fibwatch/band"
	"github.com/bvk/fibwatch/state"
	"github.com/bvk/fibwatch/telegram"
	"github.com/shopspring/decimal"
	"github.com/visvasity/cli"
)

func (s *Server) registerTelegramCommands(ctx context.Context) error {
	cmds := []struct {
		name    string
		purpose string
		handler telegram.CmdFunc
	}{
		{"add", "Watches a contract: /add <contract> <low> <high> [name]", s.addTelegramCmd},
		{"remove", "Stops watching a contract: /remove <contract>", s.removeTelegramCmd},
		{"list", "Lists your watches", s.listTelegramCmd},
		{"clear", "Removes all your watches", s.clearTelegramCmd},
	}
	for _, cmd := range cmds {
		if err := s.telegramClient.AddCommand(ctx, cmd.name, cmd.purpose, cmd.handler); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) addTelegramCmd(ctx context.Context, args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: /add <contract> <low> <high> [name]")
	}
	low, err := decimal.NewFromString(args[1])
	if err != nil {
		return fmt.Errorf("could not parse low price %q: %w", args[1], err)
	}
	high, err := decimal.NewFromString(args[2])
	if err != nil {
		return fmt.Errorf("could not parse high price %q: %w", args[2], err)
	}
	name := strings.Join(args[3:], " ")

	chatID := telegram.ChatID(ctx)
	entry, err := s.watcher.Add(ctx, chatID, args[0], low, high, name)
	if err != nil {
		return err
	}

	stdout := cli.Stdout(ctx)
	fmt.Fprintf(stdout, "Watching %s\n", entryName(entry))
	fmt.Fprintf(stdout, "Fib75: %s USD\n", band.Format(entry.Level))
	fmt.Fprintf(stdout, "Band: [%s – %s] USD\n", band.Format(entry.BandMin), band.Format(entry.BandMax))
	fmt.Fprintf(stdout, "Alerts: 0/2\n")
	return nil
}

func (s *Server) removeTelegramCmd(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: /remove <contract>")
	}
	chatID := telegram.ChatID(ctx)
	entry, err := s.watcher.Remove(ctx, chatID, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.Stdout(ctx), "Stopped watching %s\n", entryName(entry))
	return nil
}

func (s *Server) listTelegramCmd(ctx context.Context, args []string) error {
	stdout := cli.Stdout(ctx)

	chatID := telegram.ChatID(ctx)
	entries := s.watcher.List(ctx, chatID)
	if len(entries) == 0 {
		fmt.Fprintf(stdout, "No watches\n")
		return nil
	}

	for i, entry := range entries {
		if i != 0 {
			fmt.Fprintln(stdout)
		}
		url := "n/a"
		if entry.Pair != nil && len(entry.Pair.URL) != 0 {
			url = entry.Pair.URL
		}
		fmt.Fprintf(stdout, "%s (%s)\n", entryName(entry), entry.Contract)
		fmt.Fprintf(stdout, "Fib75: %s USD\n", band.Format(entry.Level))
		fmt.Fprintf(stdout, "Band: [%s – %s] USD\n", band.Format(entry.BandMin), band.Format(entry.BandMax))
		if entry.LastPrice != nil {
			fmt.Fprintf(stdout, "Last Price: %s USD\n", band.Format(*entry.LastPrice))
		}
		fmt.Fprintf(stdout, "Alerts: %d/2\n", entry.AlertsSent)
		fmt.Fprintf(stdout, "Dexscreener: %s\n", url)
	}
	return nil
}

func (s *Server) clearTelegramCmd(ctx context.Context, args []string) error {
	chatID := telegram.ChatID(ctx)
	n, err := s.watcher.Clear(ctx, chatID)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.Stdout(ctx), "Removed %d watches\n", n)
	return nil
}

func entryName(entry *state.WatchEntry) string {
	if len(entry.DisplayName) != 0 {
		return entry.DisplayName
	}
	return entry.Contract
}
