// Copyright (c) 2025 BVK Chaitanya

package setup

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/bvk/fibwatch/cli"
	"github.com/bvk/fibwatch/ctxutil"
	"github.com/bvk/fibwatch/server"
	"github.com/bvk/fibwatch/telegram"
	"golang.org/x/term"
)

type Telegram struct {
	dataDir     string
	skipTesting bool

	botToken string
}

func (c *Telegram) Synopsis() string {
	return "Setup configures Telegram service API parameters"
}

func (c *Telegram) Command() (*flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("telegram", flag.ContinueOnError)
	fset.StringVar(&c.dataDir, "data-dir", "", "path to the data directory")
	fset.StringVar(&c.botToken, "bot-token", "", "Telegram bot's authentication token")
	fset.BoolVar(&c.skipTesting, "skip-testing", false, "don't test the parameters")
	return fset, cli.CmdFunc(c.run)
}

func (c *Telegram) CommandHelp() string {
	return `

Command "telegram" configures the Telegram bot that serves as the watch
service front end. Users create a bot with BotFather and pass its token
here:

  $ fibwatch setup telegram --bot-token=USCJS2...TVP4KV

`
}

func (c *Telegram) run(ctx context.Context, args []string) error {
	if len(c.dataDir) == 0 {
		c.dataDir = filepath.Join(os.Getenv("HOME"), ".fibwatch")
	}
	if _, err := os.Stat(c.dataDir); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("could not stat data directory %q: %w", c.dataDir, err)
		}
		if err := os.MkdirAll(c.dataDir, 0700); err != nil {
			return fmt.Errorf("could not create data directory %q: %w", c.dataDir, err)
		}
	}
	dataDir, err := filepath.Abs(c.dataDir)
	if err != nil {
		return fmt.Errorf("could not determine data-dir %q absolute path: %w", c.dataDir, err)
	}

	secretsPath := filepath.Join(dataDir, "secrets.json")
	secrets, err := server.SecretsFromFile(secretsPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}

	if secrets == nil {
		secrets = &server.Secrets{}
	}

	secrets.Telegram = &telegram.Secrets{
		BotToken: c.botToken,
	}
	if err := secrets.Check(); err != nil {
		return err
	}

	if !c.skipTesting {
		func() {
			fmt.Println("Start a chat with the telegram bot and then press any key")
			// switch stdin into 'raw' mode
			oldState, err := term.MakeRaw(int(os.Stdin.Fd()))
			if err != nil {
				log.Fatal(err)
			}
			defer term.Restore(int(os.Stdin.Fd()), oldState)

			b := make([]byte, 1)
			_, err = os.Stdin.Read(b)
			if err != nil {
				log.Fatal(err)
			}
		}()

		stateFile := filepath.Join(dataDir, "telegram-state.json")
		client, err := telegram.New(ctx, stateFile, secrets.Telegram)
		if err != nil {
			return err
		}
		defer client.Close()
		ctxutil.Sleep(ctx, time.Second)
		if err := client.Broadcast(ctx, time.Now(), "Test message from Telegram config setup; please ignore."); err != nil {
			return err
		}
	}

	js, err := json.MarshalIndent(secrets, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(secretsPath, js, os.FileMode(0600)); err != nil {
		return err
	}
	return nil
}
