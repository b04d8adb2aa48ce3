// Copyright (c) 2025 BVK Chaitanya

// Package subcmds implements the fibwatch command-line subcommands.
package subcmds

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/bvk/fibwatch/cli"
	"github.com/bvk/fibwatch/ctxutil"
	"github.com/bvk/fibwatch/daemonize"
	"github.com/bvk/fibwatch/httputil"
	"github.com/bvk/fibwatch/server"
	"github.com/bvk/fibwatch/subcmds/cmdutil"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/nightlyone/lockfile"
)

// runEnv holds environment-variable configuration, all under the FIBWATCH_
// prefix. Command-line flags take precedence over these.
type runEnv struct {
	PollSeconds  int           `envconfig:"POLL_SECONDS"`
	FetchTimeout time.Duration `envconfig:"FETCH_TIMEOUT"`
	ChainID      string        `envconfig:"CHAIN_ID"`
	DataDir      string        `envconfig:"DATA_DIR"`
}

type Run struct {
	cmdutil.ServerFlags

	background bool

	restart         bool
	shutdownTimeout time.Duration

	noPprof bool

	secretsPath string
	dataDir     string

	pollInterval time.Duration
	fetchTimeout time.Duration
	chainID      string
}

func (c *Run) Command() (*flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("run", flag.ContinueOnError)
	c.ServerFlags.SetFlags(fset)
	fset.BoolVar(&c.background, "background", false, "runs the daemon in background")
	fset.BoolVar(&c.restart, "restart", false, "when true, kills any old instance")
	fset.DurationVar(&c.shutdownTimeout, "shutdown-timeout", 30*time.Second, "max timeout for shutdown when restarting")
	fset.BoolVar(&c.noPprof, "no-pprof", false, "when true net/http/pprof handler is not registered")
	fset.StringVar(&c.secretsPath, "secrets-file", "", "path to credentials file")
	fset.StringVar(&c.dataDir, "data-dir", "", "path to the data directory")
	fset.DurationVar(&c.pollInterval, "poll-interval", 0, "gap between price poll cycles (default=5m or FIBWATCH_POLL_SECONDS)")
	fset.DurationVar(&c.fetchTimeout, "fetch-timeout", 0, "timeout for price source queries (default=10s or FIBWATCH_FETCH_TIMEOUT)")
	fset.StringVar(&c.chainID, "chain-id", "", `chain whose pairs are watched (default="solana" or FIBWATCH_CHAIN_ID)`)
	return fset, cli.CmdFunc(c.run)
}

func (c *Run) Synopsis() string {
	return "Runs fibwatch in foreground or background"
}

func (c *Run) CommandHelp() string {
	return `

Command "run" starts the fibwatch service. The service restores watch entries
from the last snapshot in the data directory and resumes polling them.

SECRETS FILE

The Telegram front end and the optional Pushover alert sink require API
credentials. Users are expected to create a secrets file in JSON format. An
example secrets file is given below:

    {
        "telegram":{
            "token":"111111:22222222"
        }
    }

Without a secrets file the service still runs, but only the local http api is
available as a front end.

`
}

func (c *Run) run(ctx context.Context, args []string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Optional .env file, then FIBWATCH_* environment variables. Explicit
	// flags win over both.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("could not load .env file: %w", err)
	}
	env := new(runEnv)
	if err := envconfig.Process("fibwatch", env); err != nil {
		return fmt.Errorf("could not process environment config: %w", err)
	}
	if c.pollInterval == 0 && env.PollSeconds > 0 {
		c.pollInterval = time.Duration(env.PollSeconds) * time.Second
	}
	if c.fetchTimeout == 0 {
		c.fetchTimeout = env.FetchTimeout
	}
	if len(c.chainID) == 0 {
		c.chainID = env.ChainID
	}
	if len(c.dataDir) == 0 {
		c.dataDir = env.DataDir
	}

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

	if len(c.secretsPath) == 0 {
		c.secretsPath = filepath.Join(dataDir, "secrets.json")
	}
	secrets, err := server.SecretsFromFile(c.secretsPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		log.Printf("no secrets file at %s; running without telegram/pushover", c.secretsPath)
		secrets = new(server.Secrets)
	}

	if ip := net.ParseIP(c.IP); ip == nil {
		return fmt.Errorf("invalid ip address")
	}
	if c.Port <= 0 {
		return fmt.Errorf("invalid port number")
	}
	addr := &net.TCPAddr{
		IP:   net.ParseIP(c.IP),
		Port: c.Port,
	}

	// Health checker for the background process initialization. We need to
	// verify that the responding http server is really our child and not an
	// older instance.
	check := func(ctx context.Context) error {
		client := http.Client{Timeout: time.Second}
		resp, err := client.Get(fmt.Sprintf("http://%s/ppid", addr.String()))
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("http status: %d", resp.StatusCode)
		}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if ppid := string(data); ppid != fmt.Sprintf("%d", os.Getpid()) {
			return fmt.Errorf("is another instance already running? parent mismatch: want %d got %s", os.Getpid(), ppid)
		}
		return nil
	}

	if c.background {
		if err := daemonize.Daemonize(ctx, check); err != nil {
			return err
		}
	}

	log.SetFlags(log.Flags() | log.Lmicroseconds)
	log.Printf("using data directory %s and secrets file %s", dataDir, c.secretsPath)

	lockPath := filepath.Join(dataDir, "fibwatch.lock")
	flock, err := lockfile.New(lockPath)
	if err != nil {
		return fmt.Errorf("could not create lock file %q: %w", lockPath, err)
	}
	if err := flock.TryLock(); err != nil {
		if !c.restart {
			return fmt.Errorf("could not get lock on file %q: %w", lockPath, err)
		}
		owner, err := flock.GetOwner()
		if err != nil {
			return fmt.Errorf("could not get current owner of the lock file: %w", err)
		}
		if err := owner.Signal(os.Interrupt); err == nil {
			log.Printf("waiting for the previous instance to shutdown")
			if err := ctxutil.RetryTimeout(ctx, time.Second, c.shutdownTimeout, flock.TryLock); err != nil {
				if err := owner.Signal(os.Kill); err != nil {
					return fmt.Errorf("could not kill current owner of the lock file: %w", err)
				}
				ctxutil.Sleep(ctx, time.Millisecond)
			}
		}
		if err := flock.TryLock(); err != nil {
			return fmt.Errorf("could not get lock on file %q after killing previous instance: %w", lockPath, err)
		}
	}
	defer flock.Unlock()

	// Start HTTP server.
	s, err := httputil.New(nil /* opts */)
	if err != nil {
		return err
	}
	defer s.Close()

	tcpServer, err := s.StartTCP(ctx, addr)
	if err != nil {
		return fmt.Errorf("could not start http server on %s: %w", addr, err)
	}
	defer s.Stop(tcpServer)

	if !c.noPprof {
		s.AddHandler("/debug/pprof/heap", pprof.Handler("heap"))
		s.AddHandler("/debug/pprof/goroutine", pprof.Handler("goroutine"))
		s.AddHandler("/debug/pprof/allocs", pprof.Handler("allocs"))
		s.AddHandler("/debug/pprof/block", pprof.Handler("block"))
		s.AddHandler("/debug/pprof/mutex", pprof.Handler("mutex"))
	}

	// Start the watch service.
	sopts := &server.Options{
		PollInterval: c.pollInterval,
		FetchTimeout: c.fetchTimeout,
		ChainID:      c.chainID,
	}
	watchServer, err := server.New(ctx, dataDir, secrets, sopts)
	if err != nil {
		return err
	}
	defer watchServer.Close()

	// Add watch api handlers.
	watchAPIs := watchServer.HandlerMap()
	for k, v := range watchAPIs {
		s.AddHandler(k, v)
	}
	defer func() {
		for k := range watchAPIs {
			s.RemoveHandler(k)
		}
	}()

	log.Printf("started fibwatch server at %s", addr)
	s.AddHandler("/pid", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, fmt.Sprintf("%d", os.Getpid()))
	}))
	s.AddHandler("/ppid", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, fmt.Sprintf("%d", os.Getppid()))
	}))

	<-ctx.Done()
	log.Printf("fibwatch server is shutting down")
	return nil
}
