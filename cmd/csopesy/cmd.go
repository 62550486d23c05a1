package main

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/joehannaC/csopesy-mco2/internal/config"
	"github.com/joehannaC/csopesy-mco2/internal/interp"
	"github.com/joehannaC/csopesy-mco2/internal/memmgr"
	"github.com/joehannaC/csopesy-mco2/internal/process"
	"github.com/joehannaC/csopesy-mco2/internal/registry"
	"github.com/joehannaC/csopesy-mco2/internal/scheduler"
	"github.com/joehannaC/csopesy-mco2/internal/telemetry"
)

var rootCmd = &cobra.Command{
	Use:   "csopesy",
	Short: "A teaching-grade scheduler, process execution engine, and paged memory manager.",
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("CSOPESY emulator core. Run `csopesy run --help` to start a session.")
	},
}

var (
	configPath string
	specsPath  string
	duration   time.Duration
	logPath    string
	debugLog   bool
	testMode   bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Boot the registry and scheduler from a config file and a process-specs file, then run to completion or until interrupted.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		logFile, log, err := openTelemetry(logPath, debugLog)
		if err != nil {
			return err
		}
		defer logFile.Close()

		fmt.Printf("CSOPESY emulator core -- %d CPUs, %s scheduler\n", cfg.NumCPU, cfg.Scheduler)

		mem := memmgr.New(cfg.MaxOverallMem / cfg.MemPerFrame)
		reg := registry.New()
		ticks := &tickSink{}
		ip := interp.New(mem, ticks)

		algo, err := scheduler.ParseAlgorithm(cfg.Scheduler)
		if err != nil {
			return err
		}
		sched := scheduler.New(scheduler.Config{
			NumCPUs:            cfg.NumCPU,
			Algorithm:          algo,
			QuantumCycles:      cfg.QuantumCycles,
			BatchProcessFreqMs: cfg.BatchProcessFreq,
			DelayPerExecMs:     cfg.DelayPerExec,
			MinInstructions:    cfg.MinIns,
			MaxInstructions:    cfg.MaxIns,
		}, reg, ip, log)
		ticks.sched = sched

		if specsPath != "" {
			if err := loadSpecs(specsPath, reg); err != nil {
				return err
			}
		}

		if testMode {
			sched.Test()
		} else {
			sched.Start()
		}

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		if duration > 0 {
			select {
			case <-time.After(duration):
			case <-sigCh:
			}
		} else {
			<-sigCh
		}

		sched.Stop()

		fmt.Printf("stopped: active ticks=%d idle ticks=%d total=%d\n",
			sched.ActiveTicks(), sched.IdleTicks(), sched.TotalTicks())
		for _, p := range reg.All() {
			fmt.Printf("  %-12s pid=%-4d state=%-8s core=%-3d lines=%d\n",
				p.Name(), p.PID(), p.State(), p.AssignedCore(), p.TotalLinesOfCode())
		}
		return nil
	},
}

var (
	createName  string
	createMem   int
	createInstr string
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Build one process, run it to completion on the calling goroutine, and print its logs.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		mem := memmgr.New(cfg.MaxOverallMem / cfg.MemPerFrame)
		reg := registry.New()
		ticks := &tickSink{}
		ip := interp.New(mem, ticks)

		p, err := reg.CreateProcess(createName, createMem, createInstr)
		if err != nil {
			return err
		}
		p.Run(process.UnassignedCore, cfg.DelayPerExec, func() bool { return false }, ip)

		for _, line := range p.Logs() {
			fmt.Println(line)
		}
		return nil
	},
}

var backingStorePath string

var dumpBackingStoreCmd = &cobra.Command{
	Use:   "dump-backing-store",
	Short: "Run every process in a specs file synchronously to completion, then snapshot the backing store to a text file.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		mem := memmgr.New(cfg.MaxOverallMem / cfg.MemPerFrame)
		reg := registry.New()
		ticks := &tickSink{}
		ip := interp.New(mem, ticks)

		if err := loadSpecs(specsPath, reg); err != nil {
			return err
		}
		for _, p := range reg.All() {
			p.Run(process.UnassignedCore, cfg.DelayPerExec, func() bool { return false }, ip)
		}

		if err := mem.DumpBackingStore(backingStorePath); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", backingStorePath)
		return nil
	},
}

// tickSink satisfies interp.Ticker so the interpreter can be built before
// the scheduler exists; it forwards each tick to the scheduler once one
// is attached and drops ticks while none is.
type tickSink struct {
	sched *scheduler.Scheduler
}

func (t *tickSink) IncrementActive() {
	if t.sched != nil {
		t.sched.IncrementActive()
	}
}

func openTelemetry(path string, debug bool) (*os.File, *slog.Logger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return f, telemetry.New(f, debug), nil
}

// loadSpecs reads a process-specs file: each line is
// "<name> <memKB> <instructions text>", where instructions text is the
// same semicolon-separated grammar CreateProcess parses. Blank lines and
// lines starting with # are skipped.
func loadSpecs(path string, reg *registry.Registry) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open specs file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.SplitN(line, " ", 3)
		if len(fields) != 3 {
			return fmt.Errorf("specs file line %d: expected \"name mem instructions\"", lineNo)
		}
		mem, err := strconv.Atoi(fields[1])
		if err != nil {
			return fmt.Errorf("specs file line %d: invalid memory size %q: %w", lineNo, fields[1], err)
		}
		if _, err := reg.CreateProcess(fields[0], mem, fields[2]); err != nil {
			return fmt.Errorf("specs file line %d: %w", lineNo, err)
		}
	}
	return scanner.Err()
}

// SetupCommands wires every subcommand under the root command and
// returns it, ready for Execute.
func SetupCommands() *cobra.Command {
	runCmd.Flags().StringVar(&configPath, "config", "config.txt", "path to config.txt")
	runCmd.Flags().StringVar(&specsPath, "specs", "", "path to a process-specs file to load at startup")
	runCmd.Flags().DurationVar(&duration, "duration", 0, "run for this long before stopping (0 = until interrupted)")
	runCmd.Flags().StringVar(&logPath, "log", "csopesy.log", "path to the operational log file")
	runCmd.Flags().BoolVar(&debugLog, "debug", false, "echo the operational log to stderr")
	runCmd.Flags().BoolVar(&testMode, "test", false, "start in scheduler-test mode (short batch frequency, visible per-instruction delay)")

	createCmd.Flags().StringVar(&configPath, "config", "config.txt", "path to config.txt")
	createCmd.Flags().StringVar(&createName, "name", "", "process name")
	createCmd.Flags().IntVar(&createMem, "mem", 64, "process memory size in KiB (power of two, 64-216)")
	createCmd.Flags().StringVar(&createInstr, "instructions", "", "semicolon-separated instruction text")
	createCmd.MarkFlagRequired("name")
	createCmd.MarkFlagRequired("instructions")

	dumpBackingStoreCmd.Flags().StringVar(&configPath, "config", "config.txt", "path to config.txt")
	dumpBackingStoreCmd.Flags().StringVar(&specsPath, "specs", "", "path to a process-specs file to load and run")
	dumpBackingStoreCmd.Flags().StringVar(&backingStorePath, "out", "backing_store.txt", "output path for the backing-store snapshot")
	dumpBackingStoreCmd.MarkFlagRequired("specs")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(dumpBackingStoreCmd)
	return rootCmd
}
