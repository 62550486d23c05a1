package config

import (
	"strings"
	"testing"
)

func TestDefaults(t *testing.T) {
	got := Default()
	want := Config{
		NumCPU: 1, Scheduler: "FCFS", QuantumCycles: 5, BatchProcessFreq: 1000,
		MinIns: 3, MaxIns: 10, DelayPerExec: 0, MaxOverallMem: 65536,
		MemPerFrame: 256, MinMemPerProc: 64, MaxMemPerProc: 4096,
	}
	if got != want {
		t.Errorf("Default() got: %+v expected: %+v", got, want)
	}
}

func TestParseOverridesSelectedKeys(t *testing.T) {
	text := `
num-cpu 4
scheduler "rr"
quantum-cycles 8
# a comment line
max-overall-mem 131072
`
	cfg, err := Parse(strings.NewReader(text))
	if err != nil {
		t.Fatalf("Parse unexpected error: %v", err)
	}
	if cfg.NumCPU != 4 {
		t.Errorf("NumCPU got: %d expected: %d", cfg.NumCPU, 4)
	}
	if cfg.Scheduler != "rr" {
		t.Errorf("Scheduler got: %q expected: %q", cfg.Scheduler, "rr")
	}
	if cfg.QuantumCycles != 8 {
		t.Errorf("QuantumCycles got: %d expected: %d", cfg.QuantumCycles, 8)
	}
	if cfg.MaxOverallMem != 131072 {
		t.Errorf("MaxOverallMem got: %d expected: %d", cfg.MaxOverallMem, 131072)
	}
	// Untouched keys keep their defaults.
	if cfg.MinIns != 3 {
		t.Errorf("MinIns got: %d expected: %d (unset key keeps default)", cfg.MinIns, 3)
	}
}

func TestParseRejectsBadInt(t *testing.T) {
	if _, err := Parse(strings.NewReader("num-cpu notanumber")); err == nil {
		t.Errorf("Parse(bad int) got nil error, expected one")
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.txt")
	if err != nil {
		t.Fatalf("Load(missing) unexpected error: %v", err)
	}
	if cfg != Default() {
		t.Errorf("Load(missing) got: %+v expected: %+v", cfg, Default())
	}
}
