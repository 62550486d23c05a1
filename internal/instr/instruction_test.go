package instr

import "testing"

func TestParseKnownOpcodes(t *testing.T) {
	cases := []struct {
		line   string
		opcode Opcode
		params string
	}{
		{"DECLARE x 10", OpDeclare, "x 10"},
		{"ADD z x y", OpAdd, "z x y"},
		{"SUB z x y", OpSub, "z x y"},
		{"READ v 0x500", OpRead, "v 0x500"},
		{"WRITE 0x500 v", OpWrite, "0x500 v"},
		{"PRINT hello", OpPrint, "hello"},
		{"SLEEP 100", OpSleep, "100"},
		{"FOR 3", OpFor, "3"},
		{"UNKNOWN foo", OpUnknown, "foo"},
	}
	for _, c := range cases {
		got, err := Parse(c.line)
		if err != nil {
			t.Errorf("Parse(%q) unexpected error: %v", c.line, err)
			continue
		}
		if got.Opcode != c.opcode || got.Params != c.params {
			t.Errorf("Parse(%q) got: %+v expected: {%v %v}", c.line, got, c.opcode, c.params)
		}
	}
}

func TestParseRejectsUnrecognizedOpcode(t *testing.T) {
	if _, err := Parse("FROB 1 2"); err == nil {
		t.Errorf("Parse(FROB ...) got nil error, expected ErrUnknownOpcode")
	}
}

func TestParseRejectsEmptyLine(t *testing.T) {
	if _, err := Parse("   "); err == nil {
		t.Errorf("Parse(whitespace) got nil error, expected an error")
	}
}

func TestParseProgramSkipsEmptySegments(t *testing.T) {
	program, err := ParseProgram("DECLARE x 1;; PRINT x ; ")
	if err != nil {
		t.Fatalf("ParseProgram unexpected error: %v", err)
	}
	if len(program) != 2 {
		t.Fatalf("ParseProgram got: %d instructions expected: %d", len(program), 2)
	}
	if program[0].Opcode != OpDeclare || program[1].Opcode != OpPrint {
		t.Errorf("ParseProgram got: %+v expected DECLARE then PRINT", program)
	}
}

func TestParseProgramPropagatesError(t *testing.T) {
	if _, err := ParseProgram("DECLARE x 1; BOGUS y"); err == nil {
		t.Errorf("ParseProgram(with bogus opcode) got nil error, expected an error")
	}
}

func TestFields(t *testing.T) {
	got := Fields("  a   b c  ")
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("Fields got: %v expected: %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Fields[%d] got: %q expected: %q", i, got[i], want[i])
		}
	}
}
