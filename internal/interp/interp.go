// Package interp decodes and executes one Instruction against a process's
// state, reaching into the memory manager for READ/WRITE.
package interp

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/joehannaC/csopesy-mco2/internal/instr"
	"github.com/joehannaC/csopesy-mco2/internal/memmgr"
)

// Sentinel errors surfaced by Execute. All of them are caught by the
// caller (process.ExecuteNextInstruction) and turned into a terminal log
// entry plus a FINISHED transition; none of them propagate further.
var (
	ErrUndefinedVariable = errors.New("interp: undefined variable")
	ErrInvalidAddress    = errors.New("interp: invalid address")
	ErrSymbolTableFull   = errors.New("interp: symbol table full")
)

// SymbolTableCapacity is the maximum number of live symbols a process may
// hold at once; writes beyond capacity are rejected (DECLARE logs and
// no-ops; ADD/SUB fails) rather than silently evicting older symbols.
const SymbolTableCapacity = 32

// ProcessState is the slice of process state the interpreter needs. It is
// defined here, not in package process, so that process can depend on
// interp without interp depending back on process.
type ProcessState interface {
	memmgr.Owner

	// Symbol looks up a variable, reporting whether it exists.
	Symbol(name string) (uint16, bool)

	// SetSymbol creates or overwrites a variable. Overwriting an existing
	// name always succeeds; creating a new one fails with
	// ErrSymbolTableFull once SymbolTableCapacity is reached.
	SetSymbol(name string, value uint16) error

	// Symbols returns a snapshot of the current symbol table, used by
	// PRINT's whole-word substitution.
	Symbols() map[string]uint16

	// AppendLog appends one human-readable line to the process log.
	AppendLog(line string)
}

// Ticker receives the single activeTicks increment every executed
// instruction contributes, regardless of opcode.
type Ticker interface {
	IncrementActive()
}

// Interpreter executes instructions against process state, routing
// READ/WRITE through a shared Manager.
type Interpreter struct {
	Mem    *memmgr.Manager
	Ticker Ticker
}

// New builds an Interpreter bound to the given memory manager and tick
// sink.
func New(mem *memmgr.Manager, ticker Ticker) *Interpreter {
	return &Interpreter{Mem: mem, Ticker: ticker}
}

// Execute decodes and runs one instruction against ps. Every call
// increments the active tick count first, per spec: a tick is charged
// even if the instruction subsequently fails.
func (ip *Interpreter) Execute(ins instr.Instruction, ps ProcessState) error {
	ip.Ticker.IncrementActive()
	params := strings.TrimSpace(ins.Params)

	switch ins.Opcode {
	case instr.OpDeclare:
		return ip.execDeclare(params, ps)
	case instr.OpAdd:
		return ip.execAddSub(params, ps, true)
	case instr.OpSub:
		return ip.execAddSub(params, ps, false)
	case instr.OpRead:
		return ip.execRead(params, ps)
	case instr.OpWrite:
		return ip.execWrite(params, ps)
	case instr.OpPrint:
		return ip.execPrint(params, ps)
	case instr.OpSleep:
		return ip.execSleep(params)
	case instr.OpFor, instr.OpUnknown:
		return nil
	default:
		return nil
	}
}

func clamp16(v int64) uint16 {
	if v < 0 {
		return 0
	}
	if v > 0xFFFF {
		return 0xFFFF
	}
	return uint16(v)
}

func (ip *Interpreter) execDeclare(params string, ps ProcessState) error {
	fields := instr.Fields(params)
	if len(fields) < 2 {
		return fmt.Errorf("interp: DECLARE requires name and value, got %q", params)
	}
	name := fields[0]
	value, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return fmt.Errorf("interp: DECLARE invalid value %q: %w", fields[1], err)
	}
	if _, exists := ps.Symbol(name); !exists && len(ps.Symbols()) >= SymbolTableCapacity {
		ps.AppendLog("Symbol table full. DECLARE ignored.")
		return nil
	}
	return ps.SetSymbol(name, clamp16(value))
}

func (ip *Interpreter) execAddSub(params string, ps ProcessState, add bool) error {
	fields := instr.Fields(params)
	if len(fields) < 3 {
		return fmt.Errorf("interp: %s requires dst, src1, src2, got %q", opName(add), params)
	}
	dst, src1, src2 := fields[0], fields[1], fields[2]

	v1, ok1 := ps.Symbol(src1)
	v2, ok2 := ps.Symbol(src2)
	if !ok1 || !ok2 {
		return fmt.Errorf("%w: %s", ErrUndefinedVariable, params)
	}

	var result int64
	if add {
		result = int64(v1) + int64(v2)
	} else {
		result = int64(v1) - int64(v2)
	}

	if _, exists := ps.Symbol(dst); !exists && len(ps.Symbols()) >= SymbolTableCapacity {
		return fmt.Errorf("%w: %s", ErrSymbolTableFull, dst)
	}
	return ps.SetSymbol(dst, clamp16(result))
}

func opName(add bool) string {
	if add {
		return "ADD"
	}
	return "SUB"
}

func parseHexAddr(s string) (uint16, error) {
	s = strings.TrimSpace(s)
	trimmed := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	v, err := strconv.ParseUint(trimmed, 16, 32)
	if err != nil || !memmgr.ValidAddress(uint32(v)) {
		return 0, fmt.Errorf("%w: %s", ErrInvalidAddress, s)
	}
	return uint16(v), nil
}

func (ip *Interpreter) execRead(params string, ps ProcessState) error {
	fields := instr.Fields(params)
	if len(fields) < 2 {
		return fmt.Errorf("interp: READ requires var and addr, got %q", params)
	}
	varName := fields[0]
	addr, err := parseHexAddr(fields[1])
	if err != nil {
		return err
	}
	value, err := ip.Mem.Read(ps, addr)
	if err != nil {
		return err
	}
	if err := ps.SetSymbol(varName, value); err != nil {
		return err
	}
	ps.IncrementPagedIn()
	return nil
}

func (ip *Interpreter) execWrite(params string, ps ProcessState) error {
	fields := instr.Fields(params)
	if len(fields) < 2 {
		return fmt.Errorf("interp: WRITE requires addr and value, got %q", params)
	}
	addr, err := parseHexAddr(fields[0])
	if err != nil {
		return err
	}
	var value uint16
	if sym, ok := ps.Symbol(fields[1]); ok {
		value = sym
	} else {
		lit, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return fmt.Errorf("interp: WRITE invalid value %q: %w", fields[1], err)
		}
		value = clamp16(lit)
	}
	if err := ip.Mem.Write(ps, addr, value); err != nil {
		return err
	}
	ps.IncrementPagedOut()
	return nil
}

// wholeWordReplace substitutes every occurrence of name inside text with
// replacement, but only where the occurrence is delimited by a
// non-alphanumeric rune (or a string boundary) on each side.
func wholeWordReplace(text, name, replacement string) string {
	var b strings.Builder
	pos := 0
	for {
		idx := strings.Index(text[pos:], name)
		if idx < 0 {
			b.WriteString(text[pos:])
			break
		}
		idx += pos
		leftOK := idx == 0 || !isAlnum(rune(text[idx-1]))
		end := idx + len(name)
		rightOK := end >= len(text) || !isAlnum(rune(text[end]))
		if leftOK && rightOK {
			b.WriteString(text[pos:idx])
			b.WriteString(replacement)
			pos = end
		} else {
			b.WriteString(text[pos : idx+len(name)])
			pos = idx + len(name)
		}
	}
	return b.String()
}

func isAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

func (ip *Interpreter) execPrint(params string, ps ProcessState) error {
	output := params
	for name, value := range ps.Symbols() {
		output = wholeWordReplace(output, name, strconv.FormatUint(uint64(value), 10))
	}
	ps.AppendLog("PRINT: " + output)
	return nil
}

func (ip *Interpreter) execSleep(params string) error {
	ms, err := strconv.Atoi(strings.TrimSpace(params))
	if err != nil {
		return fmt.Errorf("interp: SLEEP invalid duration %q: %w", params, err)
	}
	sleep(ms)
	return nil
}
