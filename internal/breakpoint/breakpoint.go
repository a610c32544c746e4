// Package breakpoint implements software breakpoints: single-byte INT3
// instruction patching over a word-granularity peek/poke interface, the
// breakpoint registry, and the transient-breakpoint post-action bookkeeping
// used by the stepping planner.
//
// Grounded on golang-debug/program/server/server.go's breakpoint struct and
// setBreakpoints/liftBreakpoints methods (word-grained read-modify-write),
// jackc-delve/proctl/proctl_linux_amd64.go's Break/Clear (double-arm
// handling; here Registry.Set disables and replaces an existing entry
// rather than rejecting it),
// and original_source/src/breakpoint.rs (the exact enable/disable
// sequence: read the word, touch only the low byte, write the word back).
package breakpoint

import "fmt"

// int3 is the x86 single-byte breakpoint trap opcode.
const int3 = 0xCC

// Memory is the word-granularity tracee memory access the Breakpoint needs.
// internal/tracee.Tracee satisfies this.
type Memory interface {
	ReadWord(addr uint64) (uint64, error)
	WriteWord(addr uint64, word uint64) error
}

// TraceeIOError wraps a failed tracee memory access performed while
// arming or disarming a breakpoint.
type TraceeIOError struct {
	Op  string
	Err error
}

func (e TraceeIOError) Error() string {
	return fmt.Sprintf("breakpoint %s: %v", e.Op, e.Err)
}

func (e TraceeIOError) Unwrap() error { return e.Err }

// Breakpoint owns one patched address. It is constructed disabled; Enable
// and Disable are idempotent in their respective terminal states.
type Breakpoint struct {
	Address   uint64
	SavedByte byte
	armed     bool // SavedByte has been captured at least once
	enabled   bool
}

// New constructs a disabled breakpoint at addr. It does not touch tracee
// memory; call Enable to patch it in.
func New(addr uint64) *Breakpoint {
	return &Breakpoint{Address: addr}
}

// IsEnabled is a pure query of the breakpoint's current state.
func (b *Breakpoint) IsEnabled() bool { return b.enabled }

// Enable patches the INT3 byte into the tracee at b.Address, saving the
// original low byte first. It is a no-op if already enabled.
func (b *Breakpoint) Enable(mem Memory) error {
	if b.enabled {
		return nil
	}
	word, err := mem.ReadWord(b.Address)
	if err != nil {
		return TraceeIOError{Op: "enable: read", Err: err}
	}
	b.SavedByte = byte(word)
	b.armed = true
	patched := (word &^ 0xff) | int3
	if err := mem.WriteWord(b.Address, patched); err != nil {
		return TraceeIOError{Op: "enable: write", Err: err}
	}
	b.enabled = true
	return nil
}

// Disable restores the original byte at b.Address. It is a no-op if
// already disabled, or if the breakpoint was never armed (nothing to
// restore).
func (b *Breakpoint) Disable(mem Memory) error {
	if !b.enabled {
		return nil
	}
	if !b.armed {
		b.enabled = false
		return nil
	}
	word, err := mem.ReadWord(b.Address)
	if err != nil {
		return TraceeIOError{Op: "disable: read", Err: err}
	}
	restored := (word &^ 0xff) | uint64(b.SavedByte)
	if err := mem.WriteWord(b.Address, restored); err != nil {
		return TraceeIOError{Op: "disable: write", Err: err}
	}
	b.enabled = false
	return nil
}
