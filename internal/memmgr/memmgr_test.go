package memmgr

import (
	"os"
	"testing"
)

type fakeOwner struct {
	name     string
	pagedIn  int
	pagedOut int
}

func (o *fakeOwner) Name() string       { return o.name }
func (o *fakeOwner) IncrementPagedIn()  { o.pagedIn++ }
func (o *fakeOwner) IncrementPagedOut() { o.pagedOut++ }

func TestReadMissFaultsInZero(t *testing.T) {
	m := New(4)
	p := &fakeOwner{name: "p1"}
	v, err := m.Read(p, 0x10)
	if err != nil {
		t.Fatalf("Read unexpected error: %v", err)
	}
	if v != 0 {
		t.Errorf("Read got: %d expected: %d", v, 0)
	}
	if p.pagedIn != 1 {
		t.Errorf("pagedIn got: %d expected: %d", p.pagedIn, 1)
	}
}

func TestWriteThenReadRoundTrip(t *testing.T) {
	m := New(4)
	p := &fakeOwner{name: "p1"}
	if err := m.Write(p, 0x20, 42); err != nil {
		t.Fatalf("Write unexpected error: %v", err)
	}
	v, err := m.Read(p, 0x20)
	if err != nil {
		t.Fatalf("Read unexpected error: %v", err)
	}
	if v != 42 {
		t.Errorf("Read got: %d expected: %d", v, 42)
	}
}

func TestEvictionWritesBackingStore(t *testing.T) {
	m := New(2)
	p := &fakeOwner{name: "p1"}

	if err := m.Write(p, 0x1, 1); err != nil {
		t.Fatalf("Write(0x1) unexpected error: %v", err)
	}
	if err := m.Write(p, 0x2, 2); err != nil {
		t.Fatalf("Write(0x2) unexpected error: %v", err)
	}
	// Frame pool is now full (maxFrames=2); this third write evicts 0x1.
	if err := m.Write(p, 0x3, 3); err != nil {
		t.Fatalf("Write(0x3) unexpected error: %v", err)
	}
	if got := m.UsedFrames(); got != 2 {
		t.Errorf("UsedFrames got: %d expected: %d", got, 2)
	}

	// Reading the evicted page should still return its value, faulted
	// back in from the backing store.
	v, err := m.Read(p, 0x1)
	if err != nil {
		t.Fatalf("Read(evicted) unexpected error: %v", err)
	}
	if v != 1 {
		t.Errorf("Read(evicted) got: %d expected: %d", v, 1)
	}
}

func TestCanAllocate(t *testing.T) {
	m := New(2)
	p := &fakeOwner{name: "p1"}
	if !m.CanAllocate(2) {
		t.Errorf("CanAllocate(2) got: false expected: true")
	}
	if err := m.Write(p, 0x1, 1); err != nil {
		t.Fatalf("Write unexpected error: %v", err)
	}
	if err := m.Write(p, 0x2, 2); err != nil {
		t.Fatalf("Write unexpected error: %v", err)
	}
	if m.CanAllocate(1) {
		t.Errorf("CanAllocate(1) got: true expected: false, pool is at capacity")
	}
}

func TestValidAddress(t *testing.T) {
	if !ValidAddress(0xFFFF) {
		t.Errorf("ValidAddress(0xFFFF) got: false expected: true")
	}
	if ValidAddress(0x10000) {
		t.Errorf("ValidAddress(0x10000) got: true expected: false")
	}
}

func TestDumpBackingStore(t *testing.T) {
	m := New(1)
	p1 := &fakeOwner{name: "alpha"}
	p2 := &fakeOwner{name: "beta"}

	if err := m.Write(p1, 0x5, 5); err != nil {
		t.Fatalf("Write unexpected error: %v", err)
	}
	// Forces eviction of p1's 0x5 into the backing store.
	if err := m.Write(p2, 0x6, 6); err != nil {
		t.Fatalf("Write unexpected error: %v", err)
	}

	dir := t.TempDir()
	path := dir + "/backing_store.txt"
	if err := m.DumpBackingStore(path); err != nil {
		t.Fatalf("DumpBackingStore unexpected error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile unexpected error: %v", err)
	}
	if len(data) == 0 {
		t.Errorf("DumpBackingStore wrote an empty file, expected a process block")
	}
}
