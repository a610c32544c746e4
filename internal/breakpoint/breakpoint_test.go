package breakpoint

import "testing"

// fakeMemory is a map from address to 8-byte word standing in for tracee
// memory, in the spirit of golang-debug/program/server's in-memory
// breakpoint bookkeeping tests.
type fakeMemory struct {
	words map[uint64]uint64
}

func newFakeMemory() *fakeMemory {
	return &fakeMemory{words: make(map[uint64]uint64)}
}

func (f *fakeMemory) ReadWord(addr uint64) (uint64, error) {
	return f.words[addr], nil
}

func (f *fakeMemory) WriteWord(addr uint64, word uint64) error {
	f.words[addr] = word
	return nil
}

func TestEnableDisableIsIdentity(t *testing.T) {
	mem := newFakeMemory()
	const addr = 0x1150
	mem.words[addr] = 0x1122334455667788

	bp := New(addr)
	if err := bp.Enable(mem); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	if mem.words[addr]&0xff != int3 {
		t.Fatalf("low byte not patched: %#x", mem.words[addr])
	}
	if mem.words[addr]&^0xff != 0x1122334455667700 {
		t.Fatalf("non-low bytes mutated: %#x", mem.words[addr])
	}

	if err := bp.Disable(mem); err != nil {
		t.Fatalf("Disable: %v", err)
	}
	if mem.words[addr] != 0x1122334455667788 {
		t.Fatalf("word not restored: %#x", mem.words[addr])
	}
}

func TestEnableIdempotent(t *testing.T) {
	mem := newFakeMemory()
	const addr = 0x2000
	mem.words[addr] = 0xdeadbeefcafef00d

	bp := New(addr)
	if err := bp.Enable(mem); err != nil {
		t.Fatal(err)
	}
	word1 := mem.words[addr]
	if err := bp.Enable(mem); err != nil {
		t.Fatal(err)
	}
	if mem.words[addr] != word1 {
		t.Fatalf("second Enable mutated memory: %#x != %#x", mem.words[addr], word1)
	}
}

func TestDisableIdempotent(t *testing.T) {
	mem := newFakeMemory()
	const addr = 0x3000
	mem.words[addr] = 0xaabbccddeeff0011

	bp := New(addr)
	if err := bp.Disable(mem); err != nil {
		t.Fatal(err)
	}
	if mem.words[addr] != 0xaabbccddeeff0011 {
		t.Fatal("disable on never-enabled breakpoint must not touch memory")
	}
}

func TestRegistrySetReplacesExisting(t *testing.T) {
	mem := newFakeMemory()
	const addr = 0x1150
	mem.words[addr] = 0x1122334455667788

	r := NewRegistry()
	if _, err := r.Set(mem, addr); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Set(mem, addr); err != nil {
		t.Fatal(err)
	}
	bp, ok := r.Get(addr)
	if !ok || !bp.IsEnabled() {
		t.Fatal("expected a single enabled breakpoint after re-arming")
	}
	if mem.words[addr]&0xff != int3 {
		t.Fatal("replaced breakpoint must still be armed")
	}
}

func TestSetTransientReverseIsIdentity(t *testing.T) {
	mem := newFakeMemory()
	const addrNew = 0x1000
	const addrExisting = 0x2000
	mem.words[addrNew] = 0x1111111111111111
	mem.words[addrExisting] = 0x2222222222222222

	r := NewRegistry()

	// Case 1: no prior entry -> PostDelete.
	action, err := r.SetTransient(mem, addrNew)
	if err != nil {
		t.Fatal(err)
	}
	if action != PostDelete {
		t.Fatalf("want PostDelete, got %v", action)
	}
	if err := r.Reverse(mem, addrNew, action); err != nil {
		t.Fatal(err)
	}
	if _, ok := r.Get(addrNew); ok {
		t.Fatal("expected entry removed after reversing PostDelete")
	}
	if mem.words[addrNew] != 0x1111111111111111 {
		t.Fatal("memory not restored after reversing PostDelete")
	}

	// Case 2: existing disabled entry -> PostDisable.
	bp := New(addrExisting)
	r.entries[addrExisting] = bp
	action, err = r.SetTransient(mem, addrExisting)
	if err != nil {
		t.Fatal(err)
	}
	if action != PostDisable {
		t.Fatalf("want PostDisable, got %v", action)
	}
	if err := r.Reverse(mem, addrExisting, action); err != nil {
		t.Fatal(err)
	}
	if mem.words[addrExisting] != 0x2222222222222222 {
		t.Fatal("memory not restored after reversing PostDisable")
	}
	if bp.IsEnabled() {
		t.Fatal("breakpoint should be disabled, still registered")
	}

	// Case 3: existing enabled entry -> PostNothing.
	if err := bp.Enable(mem); err != nil {
		t.Fatal(err)
	}
	action, err = r.SetTransient(mem, addrExisting)
	if err != nil {
		t.Fatal(err)
	}
	if action != PostNothing {
		t.Fatalf("want PostNothing, got %v", action)
	}
	if err := r.Reverse(mem, addrExisting, action); err != nil {
		t.Fatal(err)
	}
	if !bp.IsEnabled() {
		t.Fatal("PostNothing reversal must not disable an untouched breakpoint")
	}
}
