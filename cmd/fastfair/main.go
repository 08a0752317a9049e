// Command fastfair drives the pmtree index the way the reference
// concurrent/src/test.cpp harness drives its btree: load a key file, insert
// half of it as a single-threaded warm-up, then run a concurrent search
// pass over that inserted half and a concurrent insert pass of the
// remaining half, each fanned out across -t goroutines, reporting
// wall-clock time for each.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nainya/fastfair/internal/logger"
	"github.com/nainya/fastfair/internal/metrics"
	"github.com/nainya/fastfair/pkg/crashlog"
	"github.com/nainya/fastfair/pkg/flush"
	"github.com/nainya/fastfair/pkg/pmtree"
	"github.com/nainya/fastfair/pkg/pool"
)

func main() {
	numData := flag.Int("n", 0, "number of keys to load")
	threads := flag.Int("t", 1, "number of worker goroutines for the concurrent phases")
	inputPath := flag.String("i", "sample_input.txt", "path to a newline-delimited file of int64 keys")
	poolPath := flag.String("p", "", "PM-backed pool file; empty uses an in-process volatile pool")
	writeLatencyNs := flag.Int64("w", 0, "emulated PM write latency per flushed cache line, in nanoseconds")
	journalPath := flag.String("j", "", "flush journal path for crash-injection runs; empty disables recording")
	flag.Parse()

	logger.InitGlobalLogger(logger.Config{Level: "info", Pretty: true})
	lg := logger.GetGlobalLogger()

	keys, err := loadKeys(*inputPath, *numData)
	if err != nil {
		lg.Fatal("load keys").Err(err).Str("path", *inputPath).Msg("")
	}
	if len(keys) < *numData {
		lg.Warn("input file shorter than -n").Int("have", len(keys)).Int("want", *numData).Msg("")
	}

	f := &flush.Flusher{WriteLatency: time.Duration(*writeLatencyNs) * time.Nanosecond}
	if *journalPath != "" {
		j, err := crashlog.Open(*journalPath)
		if err != nil {
			lg.Fatal("open journal").Err(err).Msg("")
		}
		defer j.Close()
		f.Recorder = j
	}

	p, closeFn, err := openPool(*poolPath, f)
	if err != nil {
		lg.Fatal("open pool").Err(err).Msg("")
	}
	defer closeFn()

	m := metrics.NewMetrics()
	tr := pmtree.New(p, pmtree.Config{Metrics: m, Logger: lg})

	half := len(keys) / 2

	start := time.Now()
	for i := 0; i < half; i++ {
		tr.Insert(keys[i], uint64(keys[i]))
	}
	lg.Info("warm-up insert complete").Int("count", half).Dur("elapsed", time.Since(start)).Msg("")

	clearCache()

	// Search phase times lookups over the half already inserted above, not
	// the half that's about to be inserted — otherwise every lookup is a
	// guaranteed miss and the timing measures nothing meaningful.
	warm := keys[:half]
	rest := keys[half:]
	warmPerThread := len(warm) / *threads

	start = time.Now()
	var g errgroup.Group
	for tid := 0; tid < *threads; tid++ {
		from, to := workerRange(tid, *threads, warmPerThread, len(warm))
		g.Go(func() error {
			for i := from; i < to; i++ {
				tr.Search(warm[i])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		lg.Error("concurrent search").Err(err).Msg("")
	}
	searchElapsed := time.Since(start)
	fmt.Printf("Concurrent searching with %d threads (usec): %d\n", *threads, searchElapsed.Microseconds())

	clearCache()

	perThread := len(rest) / *threads

	start = time.Now()
	var g2 errgroup.Group
	for tid := 0; tid < *threads; tid++ {
		from, to := workerRange(tid, *threads, perThread, len(rest))
		g2.Go(func() error {
			for i := from; i < to; i++ {
				tr.Insert(rest[i], uint64(rest[i]))
			}
			return nil
		})
	}
	if err := g2.Wait(); err != nil {
		lg.Error("concurrent insert").Err(err).Msg("")
	}
	insertElapsed := time.Since(start)
	fmt.Printf("Concurrent inserting with %d threads (usec): %d\n", *threads, insertElapsed.Microseconds())

	m.TreeHeight.Set(float64(p.Height()))
	lg.Info("run complete").Uint32("height", p.Height()).Msg("")
}

func workerRange(tid, threads, perThread, total int) (from, to int) {
	from = perThread * tid
	if tid == threads-1 {
		to = total
	} else {
		to = from + perThread
	}
	return from, to
}

func openPool(path string, f *flush.Flusher) (pool.Pool, func() error, error) {
	if path == "" {
		return pool.NewVolatile(f), func() error { return nil }, nil
	}
	p, err := pool.OpenPM(path, f)
	if err != nil {
		return nil, nil, err
	}
	return p, p.Close, nil
}

func loadKeys(path string, n int) ([]int64, error) {
	fd, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fd.Close()

	keys := make([]int64, 0, n)
	sc := bufio.NewScanner(fd)
	for sc.Scan() && len(keys) < n {
		line := sc.Text()
		if line == "" {
			continue
		}
		k, err := strconv.ParseInt(line, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse key %q: %w", line, err)
		}
		keys = append(keys, k)
	}
	return keys, sc.Err()
}

// clearCache evicts the CPU cache between phases, the same trick the
// reference harness uses before each timed section: touch enough memory
// that nothing from the tree lingers in L1/L2/L3.
func clearCache() {
	const size = 256 << 20
	garbage := make([]byte, size)
	for i := range garbage {
		garbage[i] = byte(i)
	}
	for i := 100; i < size; i++ {
		garbage[i] += garbage[i-100]
	}
}
