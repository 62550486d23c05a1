// Package process implements the process execution engine: a process
// owns its instruction program, symbol table, logs, and per-process
// counters, and advances one instruction per call from the scheduler.
package process

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/joehannaC/csopesy-mco2/internal/instr"
	"github.com/joehannaC/csopesy-mco2/internal/interp"
)

// State is one of the three points in a process's lifecycle.
type State int

const (
	Ready State = iota
	Running
	Finished
)

func (s State) String() string {
	switch s {
	case Ready:
		return "READY"
	case Running:
		return "RUNNING"
	case Finished:
		return "FINISHED"
	default:
		return "UNKNOWN"
	}
}

// UnassignedCore is the sentinel core id reported while a process is not
// currently scheduled onto a core.
const UnassignedCore = -1

const (
	minMemorySize = 64
	maxMemorySize = 216
)

// Errors returned by New's validation.
var (
	ErrInvalidProgramLength = errors.New("process: program must have between 1 and 50 instructions")
	ErrInvalidMemorySize    = errors.New("process: memory size must be a power of two between 64 and 216 KiB")
)

// Process is the passive, mutable state of one emulated program. Its
// single non-trivial operation is ExecuteNextInstruction; the scheduler
// drives quantum boundaries externally by flipping State back to Ready.
type Process struct {
	mu sync.Mutex

	pid     int
	name    string
	program []instr.Instruction
	cursor  int

	symbols map[string]uint16

	memorySize        int
	memoryUsed        int
	peakMemoryUsed    int
	totalLinesOfCode  int
	pagedIn, pagedOut int

	state      State
	core       int
	isScreened bool
	logs       []string
}

// New constructs a Process in the Ready state. memorySize must be a
// power of two in [64, 216] KiB; program must have between 1 and 50
// instructions.
func New(pid int, name string, program []instr.Instruction, memorySize int) (*Process, error) {
	if !validMemorySize(memorySize) {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidMemorySize, memorySize)
	}
	if len(program) < 1 || len(program) > 50 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidProgramLength, len(program))
	}
	p := &Process{
		pid:        pid,
		name:       name,
		program:    program,
		symbols:    make(map[string]uint16, interp.SymbolTableCapacity),
		memorySize: memorySize,
		state:      Ready,
		core:       UnassignedCore,
	}
	p.totalLinesOfCode = computeTotalLines(program)
	p.logs = append(p.logs, fmt.Sprintf("%s Process created with memory %d KiB.", timestamp(), memorySize))
	return p, nil
}

func validMemorySize(n int) bool {
	if n < minMemorySize || n > maxMemorySize {
		return false
	}
	return n&(n-1) == 0
}

func computeTotalLines(program []instr.Instruction) int {
	total := 0
	for _, ins := range program {
		if ins.Opcode == instr.OpFor {
			n, err := parseForCount(ins.Params)
			if err != nil {
				total++
				continue
			}
			total += n
			continue
		}
		total++
	}
	return total
}

func parseForCount(params string) (int, error) {
	var n int
	_, err := fmt.Sscanf(params, "%d", &n)
	return n, err
}

func timestamp() string {
	return "[" + time.Now().Format("2006-01-02 15:04:05") + "]"
}

// PID returns the process's monotone identifier.
func (p *Process) PID() int { return p.pid }

// Name returns the process's unique textual name. Name also satisfies
// memmgr.Owner and interp.ProcessState.
func (p *Process) Name() string { return p.name }

// State returns the process's current lifecycle state.
func (p *Process) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// SetState transitions the process's lifecycle state. The scheduler uses
// this to move a preempted process back to Ready; FINISHED is terminal.
func (p *Process) SetState(s State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == Finished {
		return
	}
	p.state = s
}

// Cursor returns the index of the next instruction to execute.
func (p *Process) Cursor() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cursor
}

// ProgramLength returns the number of instructions in the process's
// program.
func (p *Process) ProgramLength() int {
	return len(p.program)
}

// TotalLinesOfCode returns the statistic computed at construction: one
// per instruction, except FOR instructions which contribute their
// parsed loop count.
func (p *Process) TotalLinesOfCode() int { return p.totalLinesOfCode }

// AssignedCore returns the id of the core currently running this
// process, or UnassignedCore.
func (p *Process) AssignedCore() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.core
}

// SetCore records the core assignment made by the scheduler.
func (p *Process) SetCore(core int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.core = core
}

// MarkScreened flags that the process has been opened in the
// interactive screen. Consulted only by the (out-of-scope) shell.
func (p *Process) MarkScreened() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.isScreened = true
}

// IsScreened reports the screened flag.
func (p *Process) IsScreened() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.isScreened
}

// Symbol looks up a variable in the symbol table.
func (p *Process) Symbol(name string) (uint16, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.symbols[name]
	return v, ok
}

// SetSymbol creates or overwrites a variable. DECLARE and ADD/SUB gate
// on capacity in the interpreter before this is called; READ does not,
// so for READ this is the only check. SetSymbol refuses a brand new name
// once the table is already full.
func (p *Process) SetSymbol(name string, value uint16) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.symbols[name]; !exists && len(p.symbols) >= interp.SymbolTableCapacity {
		return fmt.Errorf("%w: %s", interp.ErrSymbolTableFull, name)
	}
	p.symbols[name] = value
	return nil
}

// Symbols returns a snapshot copy of the symbol table.
func (p *Process) Symbols() map[string]uint16 {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]uint16, len(p.symbols))
	for k, v := range p.symbols {
		out[k] = v
	}
	return out
}

// AppendLog appends one human-readable line to the process's log.
func (p *Process) AppendLog(line string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logs = append(p.logs, line)
}

// Logs returns a snapshot copy of the process's log.
func (p *Process) Logs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.logs))
	copy(out, p.logs)
	return out
}

// MemoryUsed returns current memory usage in KiB.
func (p *Process) MemoryUsed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.memoryUsed
}

// PeakMemoryUsed returns the high-water mark of memory usage in KiB.
func (p *Process) PeakMemoryUsed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.peakMemoryUsed
}

// MemorySize returns the process's declared memory budget in KiB.
func (p *Process) MemorySize() int { return p.memorySize }

// AllocateMemory increases memoryUsed by kb KiB, clamped at memorySize,
// and updates the peak.
func (p *Process) AllocateMemory(kb int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.memoryUsed += kb
	if p.memoryUsed > p.memorySize {
		p.memoryUsed = p.memorySize
	}
	if p.memoryUsed > p.peakMemoryUsed {
		p.peakMemoryUsed = p.memoryUsed
	}
}

// FreeMemory decreases memoryUsed by kb KiB, clamped at zero. No
// instruction currently triggers this; it is kept as the symmetric
// counterpart to AllocateMemory.
func (p *Process) FreeMemory(kb int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.memoryUsed -= kb
	if p.memoryUsed < 0 {
		p.memoryUsed = 0
	}
}

// PagedIn returns the accumulated page-in count.
func (p *Process) PagedIn() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pagedIn
}

// PagedOut returns the accumulated page-out count.
func (p *Process) PagedOut() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pagedOut
}

// IncrementPagedIn bumps the page-in accumulator. Satisfies
// memmgr.Owner and interp.ProcessState.
func (p *Process) IncrementPagedIn() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pagedIn++
}

// IncrementPagedOut bumps the page-out accumulator. Satisfies
// memmgr.Owner and interp.ProcessState.
func (p *Process) IncrementPagedOut() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pagedOut++
}

// currentInstruction returns the instruction at the cursor and whether
// the cursor is still in range. Caller must hold p.mu.
func (p *Process) currentInstruction() (instr.Instruction, bool) {
	if p.cursor >= len(p.program) {
		return instr.Instruction{}, false
	}
	return p.program[p.cursor], true
}

// ExecuteNextInstruction runs exactly one instruction:
//
//  1. If stopped is true, transition to Finished and return.
//  2. If the cursor is at end, transition to Finished and return.
//  3. Append a log line recording the core and instruction.
//  4. For WRITE/DECLARE, allocate 1 KiB of memory.
//  5. Dispatch to the interpreter; a returned error is fatal: it is
//     logged and the process transitions to Finished.
//  6. Advance the cursor; transition to Finished if now past the end.
func (p *Process) ExecuteNextInstruction(coreID int, stopped bool, ip *interp.Interpreter) {
	p.mu.Lock()
	if stopped {
		p.state = Finished
		p.mu.Unlock()
		return
	}
	ins, ok := p.currentInstruction()
	if !ok {
		p.state = Finished
		p.mu.Unlock()
		return
	}
	p.logs = append(p.logs, fmt.Sprintf("%s Core [%d] %q from %s", timestamp(), coreID, ins.Params, p.name))
	p.mu.Unlock()

	if ins.Opcode == instr.OpWrite || ins.Opcode == instr.OpDeclare {
		p.AllocateMemory(1)
	}

	if err := ip.Execute(ins, p); err != nil {
		p.mu.Lock()
		p.logs = append(p.logs, fmt.Sprintf("Error: %s at: %s", err.Error(), ins.Params))
		p.state = Finished
		p.mu.Unlock()
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.cursor++
	if p.cursor >= len(p.program) {
		p.state = Finished
	}
}

// Run drives the process to completion on the calling goroutine,
// executing one instruction, sleeping delayMs, and repeating until
// Finished or stopped reports true. It backs the synchronous paths
// (the create and dump-backing-store commands); the scheduler's worker
// pool drives its processes one instruction at a time via
// ExecuteNextInstruction.
func (p *Process) Run(coreID int, delayMs int, stopped func() bool, ip *interp.Interpreter) {
	p.mu.Lock()
	p.state = Running
	p.mu.Unlock()

	for p.Cursor() < len(p.program) && p.State() != Finished && !stopped() {
		p.ExecuteNextInstruction(coreID, false, ip)
		if delayMs > 0 {
			time.Sleep(time.Duration(delayMs) * time.Millisecond)
		}
	}
	if stopped() {
		p.AppendLog(timestamp() + " Execution halted due to scheduler stop.")
	}
	p.mu.Lock()
	p.state = Finished
	p.mu.Unlock()
}
