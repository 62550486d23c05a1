package interp

import (
	"testing"

	"github.com/joehannaC/csopesy-mco2/internal/instr"
	"github.com/joehannaC/csopesy-mco2/internal/memmgr"
)

type fakeTicker struct{ n int }

func (t *fakeTicker) IncrementActive() { t.n++ }

type fakeProc struct {
	name     string
	symbols  map[string]uint16
	logs     []string
	pagedIn  int
	pagedOut int
}

func newFakeProc() *fakeProc {
	return &fakeProc{name: "p1", symbols: make(map[string]uint16)}
}

func (p *fakeProc) Name() string               { return p.name }
func (p *fakeProc) IncrementPagedIn()          { p.pagedIn++ }
func (p *fakeProc) IncrementPagedOut()         { p.pagedOut++ }
func (p *fakeProc) Symbol(n string) (uint16, bool) {
	v, ok := p.symbols[n]
	return v, ok
}
func (p *fakeProc) SetSymbol(n string, v uint16) error {
	if _, exists := p.symbols[n]; !exists && len(p.symbols) >= SymbolTableCapacity {
		return ErrSymbolTableFull
	}
	p.symbols[n] = v
	return nil
}
func (p *fakeProc) Symbols() map[string]uint16 {
	out := make(map[string]uint16, len(p.symbols))
	for k, v := range p.symbols {
		out[k] = v
	}
	return out
}
func (p *fakeProc) AppendLog(line string) { p.logs = append(p.logs, line) }

func newInterp() (*Interpreter, *fakeTicker) {
	ticker := &fakeTicker{}
	return New(memmgr.New(8), ticker), ticker
}

func TestDeclareAddPrint(t *testing.T) {
	ip, ticker := newInterp()
	proc := newFakeProc()

	program, err := instr.ParseProgram("DECLARE x 5; DECLARE y 10; ADD z x y; PRINT z")
	if err != nil {
		t.Fatalf("ParseProgram unexpected error: %v", err)
	}
	for _, ins := range program {
		if err := ip.Execute(ins, proc); err != nil {
			t.Fatalf("Execute(%v) unexpected error: %v", ins, err)
		}
	}
	if got := proc.symbols["z"]; got != 15 {
		t.Errorf("z got: %d expected: %d", got, 15)
	}
	if ticker.n != len(program) {
		t.Errorf("tick count got: %d expected: %d", ticker.n, len(program))
	}
	if len(proc.logs) != 1 || proc.logs[0] != "PRINT: 15" {
		t.Errorf("PRINT log got: %v expected: [%q]", proc.logs, "PRINT: 15")
	}
}

func TestAddSaturatesAt16Bit(t *testing.T) {
	ip, _ := newInterp()
	proc := newFakeProc()
	proc.symbols["x"] = 60000
	proc.symbols["y"] = 10000

	if err := ip.Execute(instr.Instruction{Opcode: instr.OpAdd, Params: "z x y"}, proc); err != nil {
		t.Fatalf("Execute unexpected error: %v", err)
	}
	if proc.symbols["z"] != 0xFFFF {
		t.Errorf("z got: %d expected: %d", proc.symbols["z"], 0xFFFF)
	}
}

func TestSubClampsAtZero(t *testing.T) {
	ip, _ := newInterp()
	proc := newFakeProc()
	proc.symbols["x"] = 5
	proc.symbols["y"] = 10

	if err := ip.Execute(instr.Instruction{Opcode: instr.OpSub, Params: "z x y"}, proc); err != nil {
		t.Fatalf("Execute unexpected error: %v", err)
	}
	if proc.symbols["z"] != 0 {
		t.Errorf("z got: %d expected: %d", proc.symbols["z"], 0)
	}
}

func TestWriteThenReadRoundTrip(t *testing.T) {
	ip, _ := newInterp()
	proc := newFakeProc()

	if err := ip.Execute(instr.Instruction{Opcode: instr.OpDeclare, Params: "v 99"}, proc); err != nil {
		t.Fatalf("DECLARE unexpected error: %v", err)
	}
	if err := ip.Execute(instr.Instruction{Opcode: instr.OpWrite, Params: "0x500 v"}, proc); err != nil {
		t.Fatalf("WRITE unexpected error: %v", err)
	}
	if err := ip.Execute(instr.Instruction{Opcode: instr.OpRead, Params: "w 0x500"}, proc); err != nil {
		t.Fatalf("READ unexpected error: %v", err)
	}
	if proc.symbols["w"] != 99 {
		t.Errorf("w got: %d expected: %d", proc.symbols["w"], 99)
	}
}

func TestReadInvalidAddressFails(t *testing.T) {
	ip, _ := newInterp()
	proc := newFakeProc()
	err := ip.Execute(instr.Instruction{Opcode: instr.OpRead, Params: "w 0x1FFFF"}, proc)
	if err == nil {
		t.Errorf("Execute(READ bad addr) got nil error, expected ErrInvalidAddress")
	}
}

func TestPrintWholeWordSubstitution(t *testing.T) {
	ip, _ := newInterp()
	proc := newFakeProc()
	proc.symbols["x1"] = 1
	proc.symbols["x10"] = 10

	if err := ip.Execute(instr.Instruction{Opcode: instr.OpPrint, Params: "x1 and x10"}, proc); err != nil {
		t.Fatalf("Execute unexpected error: %v", err)
	}
	want := "PRINT: 1 and 10"
	if proc.logs[0] != want {
		t.Errorf("PRINT log got: %q expected: %q", proc.logs[0], want)
	}
}

func TestAddUndefinedVariableFails(t *testing.T) {
	ip, _ := newInterp()
	proc := newFakeProc()
	err := ip.Execute(instr.Instruction{Opcode: instr.OpAdd, Params: "z x y"}, proc)
	if err == nil {
		t.Errorf("Execute(ADD undefined) got nil error, expected ErrUndefinedVariable")
	}
}

func TestSleepInvokesIndirection(t *testing.T) {
	orig := sleep
	defer func() { sleep = orig }()
	var got int
	sleep = func(ms int) { got = ms }

	ip, _ := newInterp()
	if err := ip.Execute(instr.Instruction{Opcode: instr.OpSleep, Params: "42"}, newFakeProc()); err != nil {
		t.Fatalf("Execute unexpected error: %v", err)
	}
	if got != 42 {
		t.Errorf("sleep arg got: %d expected: %d", got, 42)
	}
}
