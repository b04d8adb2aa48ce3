// Copyright (c) 2025 BVK Chaitanya

package main

import (
	"context"
	"log"
	"os"

	"github.com/bvk/fibwatch/cli"
	"github.com/bvk/fibwatch/subcmds"
	"github.com/bvk/fibwatch/subcmds/setup"
	"github.com/bvk/fibwatch/subcmds/watch"
)

func main() {
	watchCmds := []cli.Command{
		new(watch.Add),
		new(watch.Remove),
		new(watch.List),
		new(watch.Clear),
	}

	setupCmds := []cli.Command{
		new(setup.Telegram),
		new(setup.PushOver),
	}

	cmds := []cli.Command{
		new(subcmds.Run),
		new(subcmds.Status),
		cli.CommandGroup("watch", watchCmds...),
		cli.CommandGroup("setup", setupCmds...),
	}
	if err := cli.Run(context.Background(), cmds, os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}
