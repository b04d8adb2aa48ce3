// Copyright (c) 2025 BVK Chaitanya

package watch

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/bvk/fibwatch/api"
	"github.com/bvk/fibwatch/cli"
	"github.com/bvk/fibwatch/subcmds/cmdutil"
)

type Remove struct {
	cmdutil.ClientFlags

	chatID int64
}

func (c *Remove) Synopsis() string {
	return "Stops watching a contract address"
}

func (c *Remove) Command() (*flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("remove", flag.ContinueOnError)
	c.ClientFlags.SetFlags(fset)
	fset.Int64Var(&c.chatID, "chat-id", 0, "telegram chat id that owns the watch")
	return fset, cli.CmdFunc(c.run)
}

func (c *Remove) run(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("this command takes one contract argument")
	}
	req := &api.WatchRemoveRequest{
		ChatID:   c.chatID,
		Contract: strings.TrimSpace(args[0]),
	}
	if err := req.Check(); err != nil {
		return err
	}
	resp, err := cmdutil.Post[api.WatchRemoveResponse](ctx, &c.ClientFlags, api.WatchRemovePath, req)
	if err != nil {
		return err
	}
	fmt.Printf("Stopped watching %s (%s)\n", resp.Entry.DisplayName, resp.Entry.Contract)
	return nil
}
