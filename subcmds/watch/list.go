// Copyright (c) 2025 BVK Chaitanya

package watch

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/bvk/fibwatch/api"
	"github.com/bvk/fibwatch/cli"
	"github.com/bvk/fibwatch/subcmds/cmdutil"
)

type List struct {
	cmdutil.ClientFlags

	chatID int64
}

func (c *List) Synopsis() string {
	return "Lists watched contract addresses"
}

func (c *List) Command() (*flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("list", flag.ContinueOnError)
	c.ClientFlags.SetFlags(fset)
	fset.Int64Var(&c.chatID, "chat-id", 0, "telegram chat id that owns the watches")
	return fset, cli.CmdFunc(c.run)
}

func (c *List) run(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("this command takes no arguments")
	}
	req := &api.WatchListRequest{
		ChatID: c.chatID,
	}
	resp, err := cmdutil.Post[api.WatchListResponse](ctx, &c.ClientFlags, api.WatchListPath, req)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Contract\tName\tStatus\tFib75\tBandMin\tBandMax\tLastPrice\tAlerts\t\n")
	for _, e := range resp.Entries {
		lastPrice := ""
		if e.LastPrice != nil {
			lastPrice = e.LastPrice.String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%d/2\t\n", e.Contract, e.DisplayName, e.Status, e.Level, e.BandMin, e.BandMax, lastPrice, e.AlertsSent)
	}
	return tw.Flush()
}
