package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/jessevdk/go-flags"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"upchuk"
)

var opts struct {
	Dir     string        `short:"d" long:"dir" env:"UPCHUK_DIR" description:"base directory for the store (default: user config dir)"`
	Backend string        `short:"b" long:"backend" env:"UPCHUK_BACKEND" description:"store backend" choice:"file" choice:"sqlite" default:"file"`
	NodeId  int64         `short:"n" long:"node" env:"UPCHUK_NODE" description:"snowflake node id for the sqlite backend" default:"1"`
	Timeout time.Duration `long:"timeout" env:"UPCHUK_TIMEOUT" description:"per request timeout for check, 0 waits forever" default:"10s"`
	Verbose bool          `short:"v" long:"verbose" description:"debug logging"`
}

type addCommand struct {
	Tag  string `short:"t" long:"tag" description:"tag for the url, no whitespace"`
	Args struct {
		Url string `positional-arg-name:"url" required:"yes"`
	} `positional-args:"yes"`
}

type listCommand struct{}

type checkCommand struct{}

func (c *addCommand) Execute(_ []string) error {
	return withManager(func(mgr *upchuk.Manager, log *zap.Logger) error {
		var tag *string
		if opt := parser.Find("add").FindOptionByLongName("tag"); opt != nil && opt.IsSet() {
			tag = &c.Tag
		}
		err := mgr.Add(c.Args.Url, tag)
		switch {
		case errors.Is(err, upchuk.ErrDuplicateUrl), errors.Is(err, upchuk.ErrInvalidTag):
			_, _ = fmt.Fprintln(os.Stderr, err)
			return nil
		}
		return err
	})
}

func (c *listCommand) Execute(_ []string) error {
	return withManager(func(mgr *upchuk.Manager, log *zap.Logger) error {
		records, err := mgr.Records()
		if err != nil {
			return err
		}
		upchuk.ListAll(os.Stdout, records)
		return nil
	})
}

func (c *checkCommand) Execute(_ []string) error {
	return withManager(func(mgr *upchuk.Manager, log *zap.Logger) error {
		records, err := mgr.Records()
		if err != nil {
			return fmt.Errorf("loading urls: %w", err)
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		results := upchuk.NewChecker(opts.Timeout, os.Stdout).CheckAll(ctx, records)
		failed := 0
		for _, r := range results {
			if !r.Reachable() {
				failed++
			}
		}
		log.Debug("check finished", zap.Int("checked", len(results)), zap.Int("failed", failed))
		return nil
	})
}

func newLogger() (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if opts.Verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	cfg.DisableStacktrace = true
	return cfg.Build()
}

func openBackend() (upchuk.Backend, error) {
	if opts.Backend == "sqlite" {
		return upchuk.SqliteOpenDir(opts.Dir, opts.NodeId)
	}
	return upchuk.FileOpen(opts.Dir)
}

func withManager(fn func(mgr *upchuk.Manager, log *zap.Logger) error) error {
	log, err := newLogger()
	if err != nil {
		return err
	}
	defer func() {
		_ = log.Sync()
	}()
	bk, err := openBackend()
	if err != nil {
		return err
	}
	mgr, err := upchuk.NewManager(bk, upchuk.WithLogger(log), upchuk.WithOutput(os.Stdout))
	if err != nil {
		_ = bk.Close()
		return err
	}
	defer func(mgr *upchuk.Manager) {
		_ = mgr.Close()
	}(mgr)
	return fn(mgr, log)
}

var parser = flags.NewParser(&opts, flags.Default)

func main() {
	parser.SubcommandsOptional = false
	_, _ = parser.AddCommand("add", "Add an url", "Add an url with an optional tag.", &addCommand{})
	_, _ = parser.AddCommand("list", "List all added urls", "List all added urls.", &listCommand{})
	_, _ = parser.AddCommand("check", "Check added urls", "Send a GET to every added url and report the result.", &checkCommand{})
	if _, err := parser.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}
}
