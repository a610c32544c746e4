// Package registers provides the x86-64 register file abstraction: named
// general-purpose, segment, and flag registers, bidirectional lookup by
// name, and the fixed mapping to DWARF register numbers.
//
// Grounded on golang-debug/arch/arch.go's architecture-table idiom and
// original_source/src/registers.rs's Register enum and lookup tables (the
// DWARF numbering there is the authoritative source for RegToDwarf /
// DwarfToReg below).
package registers

import (
	"fmt"
	"strings"
	"syscall"
)

// Register names one of the x86-64 GPRs, segment registers, or flags that
// the kernel's GETREGS/SETREGS interface exposes.
type Register int

const (
	Rax Register = iota
	Rbx
	Rcx
	Rdx
	Rdi
	Rsi
	Rbp
	Rsp
	R8
	R9
	R10
	R11
	R12
	R13
	R14
	R15
	Rip
	Rflags
	Cs
	OrigRax
	FsBase
	GsBase
	Fs
	Gs
	Ss
	Ds
	Es
)

var names = map[Register]string{
	Rax: "rax", Rbx: "rbx", Rcx: "rcx", Rdx: "rdx",
	Rdi: "rdi", Rsi: "rsi", Rbp: "rbp", Rsp: "rsp",
	R8: "r8", R9: "r9", R10: "r10", R11: "r11",
	R12: "r12", R13: "r13", R14: "r14", R15: "r15",
	Rip: "rip", Rflags: "rflags", Cs: "cs",
	OrigRax: "orig_rax", FsBase: "fs_base", GsBase: "gs_base",
	Fs: "fs", Gs: "gs", Ss: "ss", Ds: "ds", Es: "es",
}

// All lists every register in the declaration order used by the glossary
// and by "registers dump".
var All = []Register{
	Rax, Rbx, Rcx, Rdx, Rdi, Rsi, Rbp, Rsp,
	R8, R9, R10, R11, R12, R13, R14, R15,
	Rip, Rflags, Cs, OrigRax, FsBase, GsBase,
	Fs, Gs, Ss, Ds, Es,
}

// UnknownRegisterError is returned by NameToReg and DwarfToReg for a name
// or DWARF number that has no register mapping.
type UnknownRegisterError struct {
	What string
}

func (e UnknownRegisterError) Error() string {
	return fmt.Sprintf("unknown register: %s", e.What)
}

// String returns the register's canonical lowercase name.
func (r Register) String() string {
	if n, ok := names[r]; ok {
		return n
	}
	return "invalid"
}

// NameToReg performs case-insensitive lookup of a register by name.
func NameToReg(name string) (Register, error) {
	name = strings.ToLower(name)
	for r, n := range names {
		if n == name {
			return r, nil
		}
	}
	return 0, UnknownRegisterError{What: name}
}

// RegToDwarf returns the DWARF register number for r, or false if r has no
// DWARF mapping (rip and orig_rax, per the glossary).
func RegToDwarf(r Register) (uint8, bool) {
	switch r {
	case Rax:
		return 0, true
	case Rdx:
		return 1, true
	case Rcx:
		return 2, true
	case Rbx:
		return 3, true
	case Rsi:
		return 4, true
	case Rdi:
		return 5, true
	case Rbp:
		return 6, true
	case Rsp:
		return 7, true
	case R8:
		return 8, true
	case R9:
		return 9, true
	case R10:
		return 10, true
	case R11:
		return 11, true
	case R12:
		return 12, true
	case R13:
		return 13, true
	case R14:
		return 14, true
	case R15:
		return 15, true
	case Es:
		return 50, true
	case Rflags:
		return 49, true
	case Cs:
		return 51, true
	case Ss:
		return 52, true
	case Ds:
		return 53, true
	case Fs:
		return 54, true
	case Gs:
		return 55, true
	case FsBase:
		return 58, true
	case GsBase:
		return 59, true
	}
	return 0, false
}

// DwarfToReg is the inverse of RegToDwarf. It fails with UnknownRegisterError
// for any DWARF number outside the documented mapping.
func DwarfToReg(n uint8) (Register, error) {
	for _, r := range All {
		if d, ok := RegToDwarf(r); ok && d == n {
			return r, nil
		}
	}
	return 0, UnknownRegisterError{What: fmt.Sprintf("dwarf#%d", n)}
}

// Get reads the named field out of a kernel register bank snapshot.
func Get(regs *syscall.PtraceRegs, r Register) uint64 {
	switch r {
	case Rax:
		return regs.Rax
	case Rbx:
		return regs.Rbx
	case Rcx:
		return regs.Rcx
	case Rdx:
		return regs.Rdx
	case Rdi:
		return regs.Rdi
	case Rsi:
		return regs.Rsi
	case Rbp:
		return regs.Rbp
	case Rsp:
		return regs.Rsp
	case R8:
		return regs.R8
	case R9:
		return regs.R9
	case R10:
		return regs.R10
	case R11:
		return regs.R11
	case R12:
		return regs.R12
	case R13:
		return regs.R13
	case R14:
		return regs.R14
	case R15:
		return regs.R15
	case Rip:
		return regs.Rip
	case Rflags:
		return regs.Eflags
	case Cs:
		return regs.Cs
	case OrigRax:
		return regs.Orig_rax
	case FsBase:
		return regs.Fs_base
	case GsBase:
		return regs.Gs_base
	case Fs:
		return regs.Fs
	case Gs:
		return regs.Gs
	case Ss:
		return regs.Ss
	case Ds:
		return regs.Ds
	case Es:
		return regs.Es
	}
	return 0
}

// Set writes value into the named field of a kernel register bank snapshot.
func Set(regs *syscall.PtraceRegs, r Register, value uint64) {
	switch r {
	case Rax:
		regs.Rax = value
	case Rbx:
		regs.Rbx = value
	case Rcx:
		regs.Rcx = value
	case Rdx:
		regs.Rdx = value
	case Rdi:
		regs.Rdi = value
	case Rsi:
		regs.Rsi = value
	case Rbp:
		regs.Rbp = value
	case Rsp:
		regs.Rsp = value
	case R8:
		regs.R8 = value
	case R9:
		regs.R9 = value
	case R10:
		regs.R10 = value
	case R11:
		regs.R11 = value
	case R12:
		regs.R12 = value
	case R13:
		regs.R13 = value
	case R14:
		regs.R14 = value
	case R15:
		regs.R15 = value
	case Rip:
		regs.Rip = value
	case Rflags:
		regs.Eflags = value
	case Cs:
		regs.Cs = value
	case OrigRax:
		regs.Orig_rax = value
	case FsBase:
		regs.Fs_base = value
	case GsBase:
		regs.Gs_base = value
	case Fs:
		regs.Fs = value
	case Gs:
		regs.Gs = value
	case Ss:
		regs.Ss = value
	case Ds:
		regs.Ds = value
	case Es:
		regs.Es = value
	}
}
