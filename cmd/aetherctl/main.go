// Command aetherctl boots a simulated AetherOS kernel against a device
// tree blob and drives its timer loop for a fixed tick count, the same
// flag-parse/construct/signal-wait shape as the teacher's cmd/ublk-mem,
// generalized from serving a block device to running a kernel.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/behrlich/aetheros/internal/boot"
	"github.com/behrlich/aetheros/internal/logging"
	"golang.org/x/sys/unix"
)

func main() {
	var (
		dtbPath      = flag.String("dtb", "", "Path to a device tree blob (.dtb); empty uses the static driver fallback")
		configPath   = flag.String("config", "", "Path to a YAML boot configuration file; empty uses built-in defaults")
		ticks        = flag.Uint64("ticks", 1000, "Number of simulated timer ticks to run before exiting")
		mmapScratch  = flag.String("mmap-scratch", "", "Path to a scratch file to mmap for the duration of the run (not wired to the memory engine)")
		verbose      = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	dtb, err := readDTB(*dtbPath)
	if err != nil {
		logger.Error("failed to read device tree", "error", err)
		os.Exit(1)
	}

	if *mmapScratch != "" {
		cleanup, err := mapScratchFile(*mmapScratch)
		if err != nil {
			logger.Error("failed to map scratch file", "error", err)
			os.Exit(1)
		}
		defer cleanup()
	}

	img := boot.NewImage(4096, 0x7FFFF000)
	k, err := boot.Start(img, dtb, *configPath)
	if err != nil {
		logger.Error("boot failed", "error", err)
		os.Exit(1)
	}

	logger.Info("kernel booted", "ticks", *ticks)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	// SIGUSR1 dumps scheduler and memory engine state to stderr, the same
	// on-demand diagnostic hook the teacher wires to a stack-trace dump.
	dumpCh := make(chan os.Signal, 1)
	signal.Notify(dumpCh, syscall.SIGUSR1)
	go func() {
		for range dumpCh {
			k.DumpDiagnostics(os.Stderr)
		}
	}()

	k.Run(ctx, *ticks)

	reserved, committed := k.MemoryStats()
	fmt.Printf("ticks run: %d\n", *ticks)
	fmt.Printf("memory: %d bytes reserved, %d bytes committed\n", reserved, committed)
	if k.Panicked() {
		fmt.Printf("kernel panicked: %s\n", k.PanicMessage())
		os.Exit(1)
	}
}

func readDTB(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	return os.ReadFile(path)
}

// mapScratchFile mmaps path for the duration of the run, the way a real
// board would back its L2 pool with a physically contiguous carve-out;
// here it just exercises the x/sys/unix mmap path the teacher's runner
// uses for CPU-affinity syscalls, generalized to memory mapping.
func mapScratchFile(path string) (func(), error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	const scratchSize = 16 * 1024 * 1024
	if err := f.Truncate(scratchSize); err != nil {
		return nil, err
	}

	data, err := unix.Mmap(int(f.Fd()), 0, scratchSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap: %w", err)
	}
	return func() { _ = unix.Munmap(data) }, nil
}
