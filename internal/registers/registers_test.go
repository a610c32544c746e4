package registers

import (
	"syscall"
	"testing"
)

func TestNameToRegRoundTrip(t *testing.T) {
	for r, name := range names {
		got, err := NameToReg(name)
		if err != nil {
			t.Fatalf("NameToReg(%q): %v", name, err)
		}
		if got != r {
			t.Fatalf("NameToReg(%q) = %v, want %v", name, got, r)
		}
	}
}

func TestNameToRegCaseInsensitive(t *testing.T) {
	got, err := NameToReg("RAX")
	if err != nil || got != Rax {
		t.Fatalf("NameToReg(%q) = %v, %v, want Rax, nil", "RAX", got, err)
	}
}

func TestNameToRegUnknown(t *testing.T) {
	if _, err := NameToReg("not_a_register"); err == nil {
		t.Fatal("expected UnknownRegisterError")
	}
}

func TestRipAndOrigRaxHaveNoDwarfNumber(t *testing.T) {
	if _, ok := RegToDwarf(Rip); ok {
		t.Fatal("rip must have no DWARF mapping")
	}
	if _, ok := RegToDwarf(OrigRax); ok {
		t.Fatal("orig_rax must have no DWARF mapping")
	}
}

func TestDwarfRoundTrip(t *testing.T) {
	for _, r := range All {
		d, ok := RegToDwarf(r)
		if !ok {
			continue
		}
		got, err := DwarfToReg(d)
		if err != nil {
			t.Fatalf("DwarfToReg(%d): %v", d, err)
		}
		if got != r {
			t.Fatalf("DwarfToReg(%d) = %v, want %v", d, got, r)
		}
	}
}

func TestDwarfMappingMatchesGlossary(t *testing.T) {
	cases := map[Register]uint8{
		Rax: 0, Rdx: 1, Rcx: 2, Rbx: 3, Rsi: 4, Rdi: 5, Rbp: 6, Rsp: 7,
		R8: 8, R9: 9, R10: 10, R11: 11, R12: 12, R13: 13, R14: 14, R15: 15,
		Es: 50, Rflags: 49, Cs: 51, Ss: 52, Ds: 53, Fs: 54, Gs: 55,
		FsBase: 58, GsBase: 59,
	}
	for r, want := range cases {
		got, ok := RegToDwarf(r)
		if !ok || got != want {
			t.Fatalf("RegToDwarf(%v) = %d, %v, want %d, true", r, got, ok, want)
		}
	}
}

func TestGetSetRoundTrip(t *testing.T) {
	var regs syscall.PtraceRegs
	for _, r := range All {
		Set(&regs, r, 0x41)
		if got := Get(&regs, r); got != 0x41 {
			t.Fatalf("register %v: got %#x after Set, want 0x41", r, got)
		}
	}
}
