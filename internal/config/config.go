// Package config loads the emulator's tunables from a whitespace
// key/value config file, the way the source system's setConfig reads
// config.txt — a deliberately simple line-oriented format, since no
// example in the corpus grounds a richer scheme (no viper import
// anywhere; see DESIGN.md).
package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Config mirrors the keys spec.md §6 lists for config.txt, with the
// defaults the source system's main.cpp falls back to when no config
// file is found.
type Config struct {
	NumCPU            int
	Scheduler         string
	QuantumCycles     int
	BatchProcessFreq  int // ms
	MinIns            int
	MaxIns            int
	DelayPerExec      int // ms
	MaxOverallMem     int // bytes
	MemPerFrame       int // bytes
	MinMemPerProc     int
	MaxMemPerProc     int
}

// Default returns the configuration used when no config file is present
// or a key is left unset.
func Default() Config {
	return Config{
		NumCPU:           1,
		Scheduler:        "FCFS",
		QuantumCycles:    5,
		BatchProcessFreq: 1000,
		MinIns:           3,
		MaxIns:           10,
		DelayPerExec:     0,
		MaxOverallMem:    65536,
		MemPerFrame:      256,
		MinMemPerProc:    64,
		MaxMemPerProc:    4096,
	}
}

// Load reads a config.txt-shaped file from path, starting from Default
// and overriding whichever keys are present. A missing file is not an
// error: Load returns the defaults, matching setConfig's fall-through
// when config.txt does not exist.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return Config{}, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads config lines from r, starting from Default and overriding
// whichever keys are present.
func Parse(r io.Reader) (Config, error) {
	cfg := Default()
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		sep := strings.IndexAny(line, " \t")
		if sep < 0 {
			continue
		}
		key, value := line[:sep], line[sep+1:]
		value = strings.TrimSpace(value)
		value = strings.Trim(value, `"`)
		if err := apply(&cfg, key, value); err != nil {
			return Config{}, err
		}
	}
	if err := scanner.Err(); err != nil {
		return Config{}, fmt.Errorf("config: scan: %w", err)
	}
	return cfg, nil
}

func apply(cfg *Config, key, value string) error {
	asInt := func() (int, error) { return strconv.Atoi(value) }

	switch key {
	case "num-cpu":
		n, err := asInt()
		if err != nil {
			return fmt.Errorf("config: num-cpu: %w", err)
		}
		cfg.NumCPU = n
	case "scheduler":
		cfg.Scheduler = value
	case "quantum-cycles":
		n, err := asInt()
		if err != nil {
			return fmt.Errorf("config: quantum-cycles: %w", err)
		}
		cfg.QuantumCycles = n
	case "batch-process-freq":
		n, err := asInt()
		if err != nil {
			return fmt.Errorf("config: batch-process-freq: %w", err)
		}
		cfg.BatchProcessFreq = n
	case "min-ins":
		n, err := asInt()
		if err != nil {
			return fmt.Errorf("config: min-ins: %w", err)
		}
		cfg.MinIns = n
	case "max-ins":
		n, err := asInt()
		if err != nil {
			return fmt.Errorf("config: max-ins: %w", err)
		}
		cfg.MaxIns = n
	case "delay-per-exec":
		n, err := asInt()
		if err != nil {
			return fmt.Errorf("config: delay-per-exec: %w", err)
		}
		cfg.DelayPerExec = n
	case "max-overall-mem":
		n, err := asInt()
		if err != nil {
			return fmt.Errorf("config: max-overall-mem: %w", err)
		}
		cfg.MaxOverallMem = n
	case "mem-per-frame":
		n, err := asInt()
		if err != nil {
			return fmt.Errorf("config: mem-per-frame: %w", err)
		}
		cfg.MemPerFrame = n
	case "min-mem-per-proc":
		n, err := asInt()
		if err != nil {
			return fmt.Errorf("config: min-mem-per-proc: %w", err)
		}
		cfg.MinMemPerProc = n
	case "max-mem-per-proc":
		n, err := asInt()
		if err != nil {
			return fmt.Errorf("config: max-mem-per-proc: %w", err)
		}
		cfg.MaxMemPerProc = n
	default:
		// Unknown keys are ignored, matching setConfig's behavior of
		// only acting on the keys it recognizes.
	}
	return nil
}
