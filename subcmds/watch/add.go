// Copyright (c) 2025 BVK Chaitanya

// Package watch implements subcommands that manage watch entries over the
// daemon's http api.
package watch

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/bvk/fibwatch/api"
	"github.com/bvk/fibwatch/band"
	"github.com/bvk/fibwatch/cli"
	"github.com/bvk/fibwatch/state"
	"github.com/bvk/fibwatch/subcmds/cmdutil"
	"github.com/shopspring/decimal"
)

type Add struct {
	cmdutil.ClientFlags

	chatID int64

	name string
}

func (c *Add) Synopsis() string {
	return "Starts watching a contract address"
}

func (c *Add) Command() (*flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("add", flag.ContinueOnError)
	c.ClientFlags.SetFlags(fset)
	fset.Int64Var(&c.chatID, "chat-id", 0, "telegram chat id that owns the watch")
	fset.StringVar(&c.name, "name", "", "display name for the token")
	return fset, cli.CmdFunc(c.run)
}

func (c *Add) CommandHelp() string {
	return `

Command "add" starts watching a token contract for the 75% fib retracement
level of the given price range, for example:

  $ fibwatch watch add CONTRACT-ADDRESS 1.00 2.00

`
}

func (c *Add) run(ctx context.Context, args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("this command takes contract, low and high arguments")
	}
	low, err := decimal.NewFromString(args[1])
	if err != nil {
		return fmt.Errorf("could not parse low price %q: %w", args[1], err)
	}
	high, err := decimal.NewFromString(args[2])
	if err != nil {
		return fmt.Errorf("could not parse high price %q: %w", args[2], err)
	}

	req := &api.WatchAddRequest{
		ChatID:   c.chatID,
		Contract: strings.TrimSpace(args[0]),
		Low:      low,
		High:     high,
		Name:     c.name,
	}
	if err := req.Check(); err != nil {
		return err
	}
	resp, err := cmdutil.Post[api.WatchAddResponse](ctx, &c.ClientFlags, api.WatchAddPath, req)
	if err != nil {
		return err
	}

	printAddReply(os.Stdout, resp.Entry)
	return nil
}

func printAddReply(w io.Writer, entry *state.WatchEntry) {
	fmt.Fprintf(w, "Watching %s (%s)\n", entry.DisplayName, entry.Contract)
	fmt.Fprintf(w, "Fib75: %s\n", band.Format(entry.Level))
	fmt.Fprintf(w, "Band: [%s – %s]\n", band.Format(entry.BandMin), band.Format(entry.BandMax))
}
