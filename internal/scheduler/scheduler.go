// Package scheduler multiplexes ready processes onto a configurable pool
// of logical CPU cores under FCFS or round-robin, and drives a
// background generator that synthesizes random processes.
package scheduler

import (
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joehannaC/csopesy-mco2/internal/instr"
	"github.com/joehannaC/csopesy-mco2/internal/interp"
	"github.com/joehannaC/csopesy-mco2/internal/process"
	"github.com/joehannaC/csopesy-mco2/internal/registry"
)

// Algorithm selects how the scheduler picks the next Ready process.
type Algorithm int

const (
	FCFS Algorithm = iota
	RoundRobin
)

// ParseAlgorithm accepts "fcfs"/"rr" case-insensitively.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fcfs":
		return FCFS, nil
	case "rr":
		return RoundRobin, nil
	default:
		return FCFS, fmt.Errorf("scheduler: unknown algorithm %q", s)
	}
}

// Config holds the tunables injected at Start. Quantum is only enforced
// for RoundRobin; FCFS runs a process to completion or scheduler stop.
type Config struct {
	NumCPUs            int
	Algorithm          Algorithm
	QuantumCycles      int
	BatchProcessFreqMs int
	DelayPerExecMs     int
	MinInstructions    int
	MaxInstructions    int
}

// idleSleep is how long an idle worker sleeps between polls of the
// ready queue.
const idleSleep = 50 * time.Millisecond

// Scheduler owns the core worker pool and the background process
// generator. The zero value is not usable; construct with New.
type Scheduler struct {
	cfg Config
	reg *registry.Registry
	ip  *interp.Interpreter
	log *slog.Logger

	mu      sync.Mutex // guards rrIndex and selection-plus-transition
	rrIndex int

	genMu     sync.Mutex // guards genCount
	genCount  int
	cpuOn     atomic.Bool
	genOn     atomic.Bool
	stopCPU   chan struct{}
	stopGen   chan struct{}
	wg        sync.WaitGroup
	activeTix atomic.Int64
	idleTix   atomic.Int64
}

// New constructs a Scheduler bound to the given registry and
// interpreter (the interpreter already carries the memory manager).
func New(cfg Config, reg *registry.Registry, ip *interp.Interpreter, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{cfg: cfg, reg: reg, ip: ip, log: log}
}

// ActiveTicks returns the accumulated count of ticks spent executing
// instructions, across all cores, since the scheduler was created.
func (s *Scheduler) ActiveTicks() int64 { return s.activeTix.Load() }

// IdleTicks returns the accumulated count of idle polling ticks, across
// all cores, since the scheduler was created.
func (s *Scheduler) IdleTicks() int64 { return s.idleTix.Load() }

// TotalTicks is ActiveTicks plus IdleTicks.
func (s *Scheduler) TotalTicks() int64 { return s.ActiveTicks() + s.IdleTicks() }

// IncrementActive satisfies interp.Ticker. The interpreter bumps this on
// every executed instruction in addition to the worker loop's own
// increment below; the double count is deliberate.
func (s *Scheduler) IncrementActive() { s.activeTix.Add(1) }

// Start launches the core worker pool and the generator. Idempotent:
// calling Start while already running has no effect.
func (s *Scheduler) Start() {
	if s.cpuOn.CompareAndSwap(false, true) {
		s.stopCPU = make(chan struct{})
		for i := 0; i < s.cfg.NumCPUs; i++ {
			s.wg.Add(1)
			go s.workerLoop(i)
		}
		s.log.Info("cpu workers started", "num_cpu", s.cfg.NumCPUs, "algorithm", s.algoName())
	}
	if s.genOn.CompareAndSwap(false, true) {
		s.stopGen = make(chan struct{})
		s.wg.Add(1)
		go s.generatorLoop()
		s.log.Info("process generator started", "batch_process_freq_ms", s.cfg.BatchProcessFreqMs)
	}
}

// Test starts the scheduler with a short generation interval and a
// small per-instruction delay, for interactive demonstration of
// interleaving.
func (s *Scheduler) Test() {
	s.cfg.BatchProcessFreqMs = 100
	s.cfg.DelayPerExecMs = 300
	s.Start()
}

// StopGenerator halts only the background process generator; core
// workers keep draining whatever is already Ready or Running.
func (s *Scheduler) StopGenerator() {
	if s.genOn.CompareAndSwap(true, false) {
		close(s.stopGen)
	}
}

// Stop halts both the generator and the core workers and waits for all
// of them to return. Workers drain to the next instruction boundary;
// nothing is cut off mid-instruction.
func (s *Scheduler) Stop() {
	s.StopGenerator()
	if s.cpuOn.CompareAndSwap(true, false) {
		close(s.stopCPU)
	}
	s.wg.Wait()
	s.log.Info("scheduler fully stopped")
}

func (s *Scheduler) algoName() string {
	if s.cfg.Algorithm == RoundRobin {
		return "RR"
	}
	return "FCFS"
}

func (s *Scheduler) workerLoop(coreID int) {
	defer s.wg.Done()
	for s.cpuOn.Load() {
		p := s.selectNext()
		if p == nil {
			s.idleTix.Add(1)
			time.Sleep(idleSleep)
			continue
		}

		p.SetCore(coreID)
		executed := 0
		for p.State() == process.Running && s.cpuOn.Load() {
			p.ExecuteNextInstruction(coreID, !s.cpuOn.Load(), s.ip)
			s.activeTix.Add(1)
			executed++
			if s.cfg.DelayPerExecMs > 0 {
				time.Sleep(time.Duration(s.cfg.DelayPerExecMs) * time.Millisecond)
			}
			if s.cfg.Algorithm == RoundRobin && executed >= s.cfg.QuantumCycles {
				break
			}
		}

		if p.State() != process.Finished {
			p.SetState(process.Ready)
		}
	}
}

// selectNext picks the next Ready process under the scheduler mutex and
// transitions it to Running atomically with the selection, so two
// workers never grab the same process.
func (s *Scheduler) selectNext() *process.Process {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg.Algorithm == RoundRobin {
		return s.selectRRLocked()
	}
	return s.selectFCFSLocked()
}

func (s *Scheduler) selectFCFSLocked() *process.Process {
	for _, p := range s.reg.All() {
		if p.State() == process.Ready {
			p.SetState(process.Running)
			return p
		}
	}
	return nil
}

func (s *Scheduler) selectRRLocked() *process.Process {
	procs := s.reg.All()
	if len(procs) == 0 {
		return nil
	}
	for i := 0; i < len(procs); i++ {
		idx := (s.rrIndex + i) % len(procs)
		if procs[idx].State() == process.Ready {
			procs[idx].SetState(process.Running)
			s.rrIndex = (idx + 1) % len(procs)
			return procs[idx]
		}
	}
	return nil
}

func (s *Scheduler) generatorLoop() {
	defer s.wg.Done()
	for s.genOn.Load() {
		s.generateRandomProcess()
		select {
		case <-time.After(time.Duration(s.cfg.BatchProcessFreqMs) * time.Millisecond):
		case <-s.stopGen:
			return
		}
	}
}

// generateRandomProcess synthesizes a program in the shape the source
// system's generator used: a handful of DECLAREs, ADD/SUB pairs over
// them, WRITE/READ round trips to ascending addresses starting at
// 0x500, and a PRINT of every variable. It registers the process
// directly (bypassing CreateProcess's text-parsing path, since the
// program is already built as typed Instructions) under an
// auto-numbered name of shape "pNN".
func (s *Scheduler) generateRandomProcess() {
	min, max := s.cfg.MinInstructions, s.cfg.MaxInstructions
	if max < min {
		max = min
	}
	count := min
	if max > min {
		count = min + rand.Intn(max-min+1)
	}
	if count < 3 {
		count = 3
	}

	var program []instr.Instruction
	var vars []string

	for i := 0; i < count/3; i++ {
		name := fmt.Sprintf("x%d", i)
		program = append(program, instr.Instruction{Opcode: instr.OpDeclare, Params: name + " 0"})
		vars = append(vars, name)
	}

	for i := 0; i < count/3; i++ {
		if len(vars) >= 2 {
			params := vars[0] + " " + vars[0] + " " + vars[1]
			program = append(program, instr.Instruction{Opcode: instr.OpAdd, Params: params})
			program = append(program, instr.Instruction{Opcode: instr.OpSub, Params: params})
		} else if len(vars) >= 1 {
			program = append(program, instr.Instruction{Opcode: instr.OpAdd, Params: vars[0] + " " + vars[0] + " 1"})
		}
	}

	for i := 0; i < count/6; i++ {
		if len(vars) == 0 {
			break
		}
		v := vars[i%len(vars)]
		addr := fmt.Sprintf("0x%x", 0x500+i*2)
		program = append(program, instr.Instruction{Opcode: instr.OpWrite, Params: addr + " " + v})
		readVar := fmt.Sprintf("r%d", i)
		program = append(program, instr.Instruction{Opcode: instr.OpRead, Params: readVar + " " + addr})
		vars = append(vars, readVar)
	}

	for _, v := range vars {
		program = append(program, instr.Instruction{Opcode: instr.OpPrint, Params: v})
	}

	if len(program) == 0 {
		program = append(program, instr.Instruction{Opcode: instr.OpDeclare, Params: "x0 0"})
	}

	pid := s.reg.NextPID()
	s.genMu.Lock()
	s.genCount++
	name := fmt.Sprintf("p%02d", s.genCount)
	s.genMu.Unlock()

	p, err := process.New(pid, name, program, 64)
	if err != nil {
		s.log.Error("generator built an invalid process", "name", name, "err", err)
		return
	}
	s.reg.AddProcess(p)
	s.log.Info("generated process", "name", name, "instructions", len(program))
}
