// Copyright (c) 2025 BVK Chaitanya

// Package telegram implements the bot front end. It long-polls the Telegram
// API for commands, dispatches them to registered handlers and delivers
// watch alerts back to the chats that created them. Every chat that can
// reach the bot is trusted; there is no allowlist.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bvk/fibwatch/ctxutil"
	"github.com/bvk/fibwatch/state"
	"github.com/bvk/fibwatch/store"
	"github.com/bvk/fibwatch/syncmap"
	"github.com/visvasity/cli"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

type CmdFunc = cli.CmdFunc

type Command struct {
	Name    string
	Purpose string
	Handler CmdFunc
}

type Client struct {
	cg ctxutil.CloseGroup

	stateFile string

	mu sync.Mutex

	bot *bot.Bot

	self *models.User

	secrets *Secrets

	state *state.TelegramState

	commandMap syncmap.Map[string, *Command]
}

var start = time.Now()

func New(ctx context.Context, stateFile string, secrets *Secrets) (_ *Client, status error) {
	if err := secrets.Check(); err != nil {
		return nil, err
	}

	c := &Client{
		stateFile: stateFile,
		secrets:   secrets.Clone(),
	}

	opts := []bot.Option{
		bot.WithDefaultHandler(c.handler),
	}
	tb, err := bot.New(secrets.BotToken, opts...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if status != nil {
			tb.Close(ctx)
		}
	}()
	c.bot = tb

	self, err := tb.GetMe(ctx)
	if err != nil {
		return nil, err
	}
	c.self = self

	tstate, err := store.Read[state.TelegramState](stateFile)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		tstate = &state.TelegramState{
			UserChatIDMap: make(map[string]int64),
		}
	}
	if tstate.UserChatIDMap == nil {
		tstate.UserChatIDMap = make(map[string]int64)
	}
	c.state = tstate

	// Configure built-in commands.
	c.commandMap.Store("start", &Command{
		Purpose: "Prints a short introduction",
		Handler: c.help,
	})
	c.commandMap.Store("help", &Command{
		Purpose: "Prints available commands",
		Handler: c.help,
	})
	c.commandMap.Store("uptime", &Command{
		Purpose: "Prints fibwatch uptime",
		Handler: c.uptime,
	})
	c.commandMap.Store("version", &Command{
		Purpose: "Prints version information",
		Handler: c.version,
	})

	if ok, err := c.bot.SetMyCommands(ctx, c.commands()); err != nil {
		return nil, err
	} else if !ok {
		return nil, fmt.Errorf("could not set bot commands")
	}

	// Long polling conflicts with a leftover webhook, so remove it along
	// with any backlog of commands queued while the daemon was down.
	if _, err := c.bot.DeleteWebhook(ctx, &bot.DeleteWebhookParams{DropPendingUpdates: true}); err != nil {
		return nil, fmt.Errorf("could not delete webhook: %w", err)
	}

	c.cg.Go(func(ctx context.Context) {
		c.bot.Start(ctx)
	})
	return c, nil
}

func (c *Client) Close() error {
	c.cg.Close()
	return nil
}

func (c *Client) BotUserName() string {
	return c.self.Username
}

func (c *Client) AddCommand(ctx context.Context, name, purpose string, handler CmdFunc) error {
	if len(name) == 0 || len(purpose) == 0 || handler == nil {
		return os.ErrInvalid
	}
	if _, ok := c.commandMap.Load(name); ok {
		return os.ErrExist
	}
	cdata := &Command{
		Purpose: purpose,
		Handler: handler,
	}
	if _, loaded := c.commandMap.LoadOrStore(name, cdata); loaded {
		return os.ErrExist
	}
	if ok, err := c.bot.SetMyCommands(ctx, c.commands()); err != nil {
		return err
	} else if !ok {
		return fmt.Errorf("could not set bot commands")
	}
	return nil
}

func (c *Client) commands() *bot.SetMyCommandsParams {
	c.mu.Lock()
	defer c.mu.Unlock()

	var cmds []models.BotCommand
	for cmd, cdata := range c.commandMap.Range {
		cmds = append(cmds, models.BotCommand{
			Command:     cmd,
			Description: cdata.Purpose,
		})
	}
	p := &bot.SetMyCommandsParams{
		Commands: cmds,
	}
	return p
}

func (c *Client) getCommand(update *models.Update) (string, []string, CmdFunc, error) {
	if update.Message == nil {
		return "", nil, nil, os.ErrInvalid
	}
	if len(update.Message.Entities) == 0 {
		return "", nil, nil, os.ErrInvalid
	}
	entity := update.Message.Entities[0]
	if entity.Type != models.MessageEntityTypeBotCommand {
		return "", nil, nil, os.ErrInvalid
	}
	if entity.Offset != 0 {
		return "", nil, nil, os.ErrInvalid
	}
	if update.Message.Text[0] != '/' {
		return "", nil, nil, os.ErrInvalid
	}
	cmd := update.Message.Text[1:entity.Length]
	// Group chats address commands as /cmd@botname.
	cmd, _, _ = strings.Cut(cmd, "@")
	args := strings.Fields(strings.TrimSpace(update.Message.Text[entity.Length:]))
	cdata, ok := c.commandMap.Load(cmd)
	if !ok {
		return cmd, nil, nil, os.ErrNotExist
	}
	return cmd, args, cdata.Handler, nil
}

func (c *Client) saveState() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return store.Write(c.stateFile, c.state)
}

// SendMessage delivers text to a single chat. Link previews are disabled
// because alert messages carry dexscreener urls.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	True := true
	m := &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
		LinkPreviewOptions: &models.LinkPreviewOptions{
			IsDisabled: &True,
		},
	}
	if _, err := c.bot.SendMessage(ctx, m); err != nil {
		return fmt.Errorf("could not send message to chat %d: %w", chatID, err)
	}
	return nil
}

// Broadcast delivers text to every chat that has ever messaged the bot.
// Per-chat failures are logged and skipped.
func (c *Client) Broadcast(ctx context.Context, at time.Time, text string) error {
	c.mu.Lock()
	chatIDs := make(map[int64]struct{})
	for _, cid := range c.state.UserChatIDMap {
		chatIDs[cid] = struct{}{}
	}
	c.mu.Unlock()

	msg := at.Format("2006-01-02 15:04:05 MST") + " " + text
	for cid := range chatIDs {
		if err := c.SendMessage(ctx, cid, msg); err != nil {
			slog.Error("could not broadcast to chat (ignored)", "chat", cid, "err", err)
		}
	}
	return nil
}

func (c *Client) handler(ctx context.Context, bot *bot.Bot, update *models.Update) {
	if bot != c.bot {
		slog.Error("handler invoked with invalid bot value", "want", c.bot, "got", bot)
		return
	}
	if update.Message == nil || update.Message.From == nil {
		return
	}

	sender := update.Message.From.Username

	if err := c.updateChatIDs(ctx, update); err != nil {
		slog.Warn("could not update chat id values (ignored)", "err", err)
	}

	if err := c.respond(ctx, update); err != nil {
		slog.Error("could not respond to user command (ignored)", "user", sender, "err", err)
		return
	}
}

func (c *Client) respond(ctx context.Context, update *models.Update) (status error) {
	True := true

	var reply string
	defer func() {
		if len(reply) != 0 {
			p := &bot.SendMessageParams{
				ChatID: update.Message.Chat.ID,
				Text:   reply,
				ReplyParameters: &models.ReplyParameters{
					MessageID: update.Message.ID,
				},
				LinkPreviewOptions: &models.LinkPreviewOptions{
					IsDisabled: &True,
				},
			}
			if _, err := c.bot.SendMessage(ctx, p); err != nil {
				status = err
			}
		}
	}()

	defer func() {
		if status != nil {
			reply = status.Error()
			status = nil
		}
	}()

	cmd, args, handler, err := c.getCommand(update)
	if err != nil {
		return err
	}

	ctx = WithChatID(ctx, update.Message.Chat.ID)

	var sb strings.Builder
	if err := handler(cli.WithStdout(ctx, &sb), args); err != nil {
		sender := update.Message.From.Username
		slog.Error("could not handle user command (ignored)", "cmd", cmd, "user", sender, "err", err)
		return err
	}

	reply = sb.String()
	return nil
}

func (c *Client) updateChatIDs(ctx context.Context, update *models.Update) error {
	c.mu.Lock()
	sender := update.Message.From.Username
	id, ok := c.state.UserChatIDMap[sender]
	changed := !ok || id != update.Message.Chat.ID
	if changed {
		c.state.UserChatIDMap[sender] = update.Message.Chat.ID
		slog.Info("recording chat id for user", "user", sender, "chat-id", update.Message.Chat.ID)
	}
	c.mu.Unlock()

	if changed {
		if err := c.saveState(); err != nil {
			slog.Error("could not save telegram state", "err", err)
			return err
		}
	}
	return nil
}

func (c *Client) help(ctx context.Context, args []string) error {
	stdout := cli.Stdout(ctx)

	c.mu.Lock()
	var cmds []*Command
	for name, cdata := range c.commandMap.Range {
		cmds = append(cmds, &Command{Name: name, Purpose: cdata.Purpose})
	}
	c.mu.Unlock()
	sort.Slice(cmds, func(i, j int) bool { return cmds[i].Name < cmds[j].Name })

	fmt.Fprintf(stdout, "I watch token prices for 75%% fib retracement levels.\n\n")
	for _, cmd := range cmds {
		fmt.Fprintf(stdout, "/%s - %s\n", cmd.Name, cmd.Purpose)
	}
	return nil
}

func (c *Client) uptime(ctx context.Context, args []string) error {
	stdout := cli.Stdout(ctx)
	const day = 24 * time.Hour
	d := time.Since(start)
	if d < day {
		fmt.Fprintf(stdout, "%v", time.Since(start))
		return nil
	}
	days := d / day
	fmt.Fprintf(stdout, "%dd%v", days, d%day)
	return nil
}

func (c *Client) version(ctx context.Context, _ []string) error {
	stdout := cli.Stdout(ctx)
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return fmt.Errorf("could not read build information")
	}
	// Do not print version information for the dependencies. It can overflow the
	// Telegram size limits.
	fmt.Fprintln(stdout, "Go: ", info.GoVersion)
	fmt.Fprintln(stdout, "Binary Path: ", info.Path)
	fmt.Fprintln(stdout, "Main Module Path: ", info.Main.Path)
	fmt.Fprintln(stdout, "Main Module Version: ", info.Main.Version)
	fmt.Fprintln(stdout, "Main Module Checksum: ", info.Main.Sum)
	for _, s := range info.Settings {
		fmt.Fprintln(stdout, s.Key, ": ", s.Value)
	}
	return nil
}
