package main

import (
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"github.com/weft-dev/weft"
)

type benchConfig struct {
	Writers     int
	Writes      int
	Cells       int
	Subscribers int
	MaxPerTick  int
	Sync        bool
}

func benchCmd() *cobra.Command {
	cfg := benchConfig{}

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Measure in-process reactive throughput",
		Long: `Hammer the property store from concurrent writers and report
throughput and notification latency.

Writers update store-registered cells from their own goroutines while
the command goroutine drains the dispatch loop, so every notification
crosses the marshalling boundary. With --sync the loop is removed and
notifications run inline on the writing goroutine.

Examples:
  weft bench
  weft bench --writers=64 --writes=5000
  weft bench --sync`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBench(cfg)
		},
	}

	cmd.Flags().IntVar(&cfg.Writers, "writers", 16, "Concurrent writer goroutines")
	cmd.Flags().IntVar(&cfg.Writes, "writes", 2000, "Writes per writer")
	cmd.Flags().IntVar(&cfg.Cells, "cells", 8, "Distinct properties to write to")
	cmd.Flags().IntVar(&cfg.Subscribers, "subscribers", 4, "Subscribers per property")
	cmd.Flags().IntVar(&cfg.MaxPerTick, "max-per-tick", 1024, "Dispatch loop per-tick budget")
	cmd.Flags().BoolVar(&cfg.Sync, "sync", false, "Run without a dispatch loop")

	return cmd
}

func runBench(cfg benchConfig) error {
	if cfg.Writers <= 0 {
		return errors.New("--writers must be > 0")
	}
	if cfg.Writes <= 0 {
		return errors.New("--writes must be > 0")
	}
	if cfg.Cells <= 0 {
		return errors.New("--cells must be > 0")
	}
	if cfg.Subscribers < 0 {
		return errors.New("--subscribers must be >= 0")
	}

	printBanner()
	fmt.Println("  bench")
	fmt.Println()
	info("writers=%d writes=%d cells=%d subscribers=%d sync=%v",
		cfg.Writers, cfg.Writes, cfg.Cells, cfg.Subscribers, cfg.Sync)
	fmt.Println()

	opts := []weft.CoreOption{}
	if cfg.Sync {
		opts = append(opts, weft.Synchronous())
	} else {
		opts = append(opts, weft.WithMaxPerTick(cfg.MaxPerTick))
	}
	core := weft.New(opts...)
	defer core.Close()

	var delivered atomic.Uint64
	samplesCh := make(chan time.Duration, cfg.Writers*4)
	var samples []time.Duration
	collectorDone := make(chan struct{})
	go func() {
		defer close(collectorDone)
		for d := range samplesCh {
			samples = append(samples, d)
		}
	}()

	// Cell values carry the write timestamp so subscribers can measure the
	// write-to-notify delay. The sequence number keeps every write distinct;
	// two writers stamping the same nanosecond must still notify.
	type mark struct {
		seq   uint64
		stamp int64
	}
	var seq atomic.Uint64

	cells := make([]*weft.Cell[mark], cfg.Cells)
	for i := range cells {
		cell, err := weft.GetOrCreate(core, fmt.Sprintf("bench.cell.%d", i), mark{})
		if err != nil {
			return err
		}
		for s := 0; s < cfg.Subscribers; s++ {
			cell.Subscribe(func(m mark) {
				delivered.Add(1)
				samplesCh <- time.Duration(time.Now().UnixNano() - m.stamp)
			})
		}
		cells[i] = cell
	}

	expected := uint64(cfg.Writers * cfg.Writes * cfg.Subscribers)

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(cfg.Writers)
	for w := 0; w < cfg.Writers; w++ {
		writer := w
		go func() {
			defer wg.Done()
			for i := 0; i < cfg.Writes; i++ {
				cells[(writer+i)%len(cells)].Set(mark{
					seq:   seq.Add(1),
					stamp: time.Now().UnixNano(),
				})
			}
		}()
	}
	wg.Wait()
	writeElapsed := time.Since(start)

	// Drain until every queued notification has run.
	deadline := time.Now().Add(30 * time.Second)
	for delivered.Load() < expected {
		if time.Now().After(deadline) {
			return fmt.Errorf("timed out draining: delivered %d of %d", delivered.Load(), expected)
		}
		if core.Tick() == 0 {
			runtime.Gosched()
		}
	}
	elapsed := time.Since(start)

	close(samplesCh)
	<-collectorDone
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })

	writes := uint64(cfg.Writers * cfg.Writes)
	success("done in %s", elapsed.Round(time.Millisecond))
	fmt.Println()
	info("writes:          %d (%.0f/s)", writes, float64(writes)/writeElapsed.Seconds())
	info("notifications:   %d (%.0f/s)", delivered.Load(), float64(delivered.Load())/elapsed.Seconds())
	info("latency p50:     %s", percentile(samples, 0.50))
	info("latency p95:     %s", percentile(samples, 0.95))
	info("latency p99:     %s", percentile(samples, 0.99))

	if core.Loop != nil {
		stats := core.Loop.Stats()
		fmt.Println()
		info("loop executed:   %d", stats.Executed)
		info("loop deferred:   %d ticks over budget", stats.DeferredTicks)
		info("queue high water: %d", stats.HighWater)
	}

	bstats := core.Bus.Stats()
	fmt.Println()
	info("bus published:   %d", bstats.Published)
	info("bus delivered:   %d", bstats.Delivered)

	return nil
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted)-1) * p)
	return sorted[idx]
}
