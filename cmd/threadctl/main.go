package main

import (
	"flag"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/danmuck/threadctl/internal/config"
	"github.com/danmuck/threadctl/internal/logging"
	"github.com/danmuck/threadctl/internal/objectmodel"
	"github.com/danmuck/threadctl/internal/runtime"
	"github.com/danmuck/threadctl/internal/thread"
)

type options struct {
	configPath string
	workers    int
	workMS     int
	joinMS     int
}

func main() {
	opts := parseFlags()
	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "threadctl: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() options {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "path to threadctl.toml (optional)")
	flag.IntVar(&opts.workers, "workers", 4, "number of managed threads to start")
	flag.IntVar(&opts.workMS, "work-ms", 50, "per-thread simulated work in milliseconds")
	flag.IntVar(&opts.joinMS, "join-ms", 0, "join timeout in milliseconds (0 blocks untimed)")
	flag.Parse()
	return opts
}

// run drives one start/join/cleanup cycle through the lifecycle surface,
// standing in for an embedding managed runtime.
func run(opts options) error {
	cfg := config.DefaultConfig()
	if opts.configPath != "" {
		loaded, err := config.Load(opts.configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	applyLogConfig(cfg.Log)
	log := logging.Component("threadctl")

	model := objectmodel.NewModel()
	rcfg := runtime.DefaultConfig(model)
	rcfg.MainThreadClass = cfg.MainThreadClass
	rcfg.CleanupWarnings = cfg.CleanupWarnings
	rt := runtime.New(rcfg)
	if err := rt.Init(); err != nil {
		return err
	}
	defer rt.Cleanup()

	var completed atomic.Int32
	handles := make([]thread.Handle, 0, opts.workers)
	for i := 0; i < opts.workers; i++ {
		identity, err := model.Instantiate(cfg.MainThreadClass)
		if err != nil {
			return err
		}
		delegate := objectmodel.Delegate{
			Method: func(arg any) any {
				rt.Sleep(int32(opts.workMS))
				completed.Add(1)
				return arg
			},
			Target: i,
		}
		h, err := rt.Start(identity, delegate)
		if err != nil {
			return fmt.Errorf("start worker %d: %w", i, err)
		}
		handles = append(handles, h)
	}
	log.Info().Int("workers", len(handles)).Int("live", rt.Live()).Msg("workers started")

	var joined atomic.Int32
	var grp errgroup.Group
	for _, h := range handles {
		h := h
		grp.Go(func() error {
			if !rt.Join(int32(opts.joinMS), h) {
				// Timed out; fall back to an untimed join so the cycle
				// always drains.
				if !rt.Join(0, h) {
					return fmt.Errorf("join thread %d failed", h)
				}
			}
			joined.Add(1)
			return nil
		})
	}
	started := time.Now()
	if err := grp.Wait(); err != nil {
		return err
	}
	log.Info().
		Int32("joined", joined.Load()).
		Int32("completed", completed.Load()).
		Dur("join_wait", time.Since(started)).
		Int("live", rt.Live()).
		Msg("run complete")
	return nil
}

func applyLogConfig(lc config.LogConfig) {
	level, _ := logging.ParseLevel(lc.Level)
	logging.ConfigureWith(logging.Config{
		Level:     level,
		Timestamp: lc.Timestamp,
		NoColor:   lc.NoColor,
	})
}
