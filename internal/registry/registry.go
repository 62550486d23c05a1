// Package registry holds the name-indexed collection of live processes
// and creates new ones from instruction text.
//
// Processes register here as pure passive state (Ready); the scheduler
// is the sole driver that advances them (see the registry entry in
// DESIGN.md — this package implements the recommended redesign,
// unifying what the source system split across a detached per-process
// goroutine and the scheduler worker pool).
package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/joehannaC/csopesy-mco2/internal/instr"
	"github.com/joehannaC/csopesy-mco2/internal/process"
)

// ErrDuplicateName is returned by CreateProcess when a process with the
// same name is already registered.
var ErrDuplicateName = errors.New("registry: duplicate process name")

// ErrProcessNotFound is returned by Find/FindByPID on a lookup miss.
var ErrProcessNotFound = errors.New("registry: process not found")

// Registry is an append-only collection of processes. Lookups are linear
// scans; the set is small by construction (tens to low hundreds).
type Registry struct {
	mu      sync.Mutex
	procs   []*process.Process
	nextPID int
}

// New returns an empty Registry with PIDs starting at 1.
func New() *Registry {
	return &Registry{nextPID: 1}
}

// AddProcess registers an already-built process. Unlike CreateProcess, a
// duplicate name is not an error: it is logged and the call is a no-op,
// matching the source system's warn-and-skip behavior for this entry
// point (as opposed to CreateProcess's hard failure).
func (r *Registry) AddProcess(p *process.Process) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.procs {
		if existing.Name() == p.Name() {
			slog.Warn("registry: duplicate process name, not added", "name", p.Name())
			return
		}
	}
	r.procs = append(r.procs, p)
}

// NextPID allocates and returns the next PID from the registry's single
// monotone counter, shared by every process-creation path (CreateProcess
// and the scheduler's generator) so that PIDs stay unique regardless of
// which path produced the process.
func (r *Registry) NextPID() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	pid := r.nextPID
	r.nextPID++
	return pid
}

// CreateProcess parses instructionsText (semicolon-separated, 1..50
// instructions), validates memorySize, assigns the next PID, and
// registers the new process in the Ready state. It does not start any
// goroutine of its own; the process becomes runnable once the scheduler
// is started.
func (r *Registry) CreateProcess(name string, memorySize int, instructionsText string) (*process.Process, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.procs {
		if existing.Name() == name {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateName, name)
		}
	}

	program, err := instr.ParseProgram(instructionsText)
	if err != nil {
		return nil, err
	}

	pid := r.nextPID
	r.nextPID++
	p, err := process.New(pid, name, program, memorySize)
	if err != nil {
		return nil, err
	}
	r.procs = append(r.procs, p)
	return p, nil
}

// Find looks up a process by name.
func (r *Registry) Find(name string) (*process.Process, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.procs {
		if p.Name() == name {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrProcessNotFound, name)
}

// FindByPID looks up a process by PID.
func (r *Registry) FindByPID(pid int) (*process.Process, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.procs {
		if p.PID() == pid {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: pid %d", ErrProcessNotFound, pid)
}

// All returns a snapshot slice of every registered process, in
// registration order.
func (r *Registry) All() []*process.Process {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*process.Process, len(r.procs))
	copy(out, r.procs)
	return out
}

// Len returns the number of registered processes.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.procs)
}
