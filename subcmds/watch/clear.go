// Copyright (c) 2025 BVK Chaitanya

package watch

import (
	"context"
	"flag"
	"fmt"

	"github.com/bvk/fibwatch/api"
	"github.com/bvk/fibwatch/cli"
	"github.com/bvk/fibwatch/subcmds/cmdutil"
)

type Clear struct {
	cmdutil.ClientFlags

	chatID int64
}

func (c *Clear) Synopsis() string {
	return "Removes all watches owned by a chat"
}

func (c *Clear) Command() (*flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("clear", flag.ContinueOnError)
	c.ClientFlags.SetFlags(fset)
	fset.Int64Var(&c.chatID, "chat-id", 0, "telegram chat id that owns the watches")
	return fset, cli.CmdFunc(c.run)
}

func (c *Clear) run(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("this command takes no arguments")
	}
	req := &api.WatchClearRequest{
		ChatID: c.chatID,
	}
	resp, err := cmdutil.Post[api.WatchClearResponse](ctx, &c.ClientFlags, api.WatchClearPath, req)
	if err != nil {
		return err
	}
	fmt.Printf("Removed %d watches\n", resp.NumRemoved)
	return nil
}
