// Copyright (c) 2025 BVK Chaitanya

package subcmds

import (
	"context"
	"flag"
	"fmt"

	"github.com/bvk/fibwatch/api"
	"github.com/bvk/fibwatch/cli"
	"github.com/bvk/fibwatch/subcmds/cmdutil"
)

type Status struct {
	cmdutil.ClientFlags
}

func (c *Status) Synopsis() string {
	return "Status prints a summary of the running daemon"
}

func (c *Status) Command() (*flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("status", flag.ContinueOnError)
	c.ClientFlags.SetFlags(fset)
	return fset, cli.CmdFunc(c.run)
}

func (c *Status) run(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("this command takes no arguments")
	}
	req := new(api.StatusRequest)
	resp, err := cmdutil.Post[api.StatusResponse](ctx, &c.ClientFlags, api.StatusPath, req)
	if err != nil {
		return err
	}
	fmt.Printf("Uptime: %s\n", resp.Uptime)
	fmt.Printf("Num Watches: %d\n", resp.NumWatches)
	fmt.Printf("Poll Interval: %s\n", resp.PollInterval)
	fmt.Printf("Snapshot File: %s\n", resp.SnapshotFile)
	return nil
}
