// Package tracee implements the tracee controller: child process lifecycle,
// wait/signal demultiplexing, PC rewind on a software-breakpoint trap,
// single-step discipline, memory/register peek-poke, and load-address
// resolution for position-independent executables (spec §4.4).
//
// Grounded on golang-debug/program/server/ptrace.go's ptraceRun
// dedicated-OS-thread pattern (and its startProcess/ptraceCont/ptraceGetRegs
// shims, which this package mirrors call-for-call against the standard
// library's syscall package) and golang-debug/demo/ptrace-linux-amd64/main.go's
// status decoding, with the child-lifecycle shape (PTRACE_TRACEME via
// SysProcAttr, ASLR disable, initial trap, /proc/<pid>/maps load base)
// ported from original_source/src/tracee.rs's Tracee::new and
// wait_for_signal.
package tracee

import (
	"bufio"
	"debug/elf"
	"encoding/binary"
	"fmt"
	"log"
	"os"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/gopherdbg/gopherdbg/internal/dwarfinfo"
)

// Signal-info codes distinguishing why a SIGTRAP stop happened (spec
// glossary).
const (
	trapBrkpt = 1
	siKernel  = 0x80
	trapTrace = 2
)

// TraceeIOError wraps any failed ptrace/wait/signal-info call (spec §7).
type TraceeIOError struct {
	Op  string
	Err error
}

func (e TraceeIOError) Error() string {
	return fmt.Sprintf("tracee %s: %v", e.Op, e.Err)
}

func (e TraceeIOError) Unwrap() error { return e.Err }

// Tracee is a single traced child process together with the debug
// information parsed from its on-disk object file once at construction
// (spec §3, Design Notes: the parsed object outlives every derived view).
type Tracee struct {
	Pid      int
	LoadBase uint64
	Endian   binary.ByteOrder

	object *elf.File
	file   *os.File // kept open for the life of the debugger; never closed.
	Reader *dwarfinfo.Reader

	proc *os.Process

	// fc/ec dispatch every ptrace/wait call through one dedicated,
	// OS-thread-locked goroutine: ptrace requires that all calls for a
	// tracee come from the thread that is its tracer.
	fc chan func() error
	ec chan error

	exited bool
}

// New spawns path as a traced child (PTRACE_TRACEME via SysProcAttr, ASLR
// disabled before the fork so the child inherits a fixed layout), parses
// its object file once, and resolves the PIE load base from
// /proc/<pid>/maps. It does not wait for the initial post-exec trap: the
// child is left stopped there, and the caller drains that stop with
// WaitForSignal.
func New(path string) (*Tracee, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open target: %v", err)
	}
	object, err := elf.NewFile(f)
	if err != nil {
		return nil, fmt.Errorf("parse object: %v", err)
	}
	dwarfData, err := object.DWARF()
	if err != nil {
		// Missing/unreadable debug sections: treat as stripped, not fatal.
		dwarfData = nil
	}

	t := &Tracee{
		object: object,
		file:   f,
		Endian: object.ByteOrder,
		Reader: dwarfinfo.NewReader(dwarfData),
		fc:     make(chan func() error),
		ec:     make(chan error),
	}
	go ptraceRun(t.fc, t.ec)

	if err := t.spawn(path); err != nil {
		return nil, err
	}

	if object.Type == elf.ET_DYN {
		base, err := loadBaseFromMaps(t.Pid)
		if err != nil {
			return nil, fmt.Errorf("resolve PIE load base: %v", err)
		}
		t.LoadBase = base
	}

	return t, nil
}

// ptraceRun services every ptrace-affecting closure from fc on one
// dedicated OS thread, ported from golang-debug/program/server/ptrace.go.
func ptraceRun(fc chan func() error, ec chan error) {
	runtime.LockOSThread()
	for f := range fc {
		ec <- f()
	}
}

func (t *Tracee) do(f func() error) error {
	t.fc <- f
	return <-t.ec
}

// spawn disables ASLR for the OS thread that is about to fork (personality
// is inherited across fork/exec, which is how a Go program achieves the
// pre-exec hook original_source/src/tracee.rs installs via
// Command::pre_exec — os/exec offers no equivalent hook), then starts the
// child with Ptrace: true so the runtime issues PTRACE_TRACEME before exec.
// golang.org/x/sys/unix is the only non-stdlib import here, used solely
// for Personality: the standard syscall package exposes no wrapper for it
// (see DESIGN.md).
func (t *Tracee) spawn(path string) error {
	return t.do(func() error {
		if _, err := unix.Personality(unix.ADDR_NO_RANDOMIZE); err != nil {
			return fmt.Errorf("disable ASLR: %v", err)
		}
		proc, err := os.StartProcess(path, []string{path}, &os.ProcAttr{
			Files: []*os.File{os.Stdin, os.Stdout, os.Stderr},
			Sys: &syscall.SysProcAttr{
				Ptrace:    true,
				Pdeathsig: syscall.SIGKILL,
			},
		})
		if err != nil {
			return fmt.Errorf("start process: %v", err)
		}
		t.proc = proc
		t.Pid = proc.Pid
		return nil
	})
}

// loadBaseFromMaps reads the first line of /proc/<pid>/maps and parses the
// low bound of the first mapping as a hexadecimal load base (spec §4.4
// step 3, §8 scenario F).
func loadBaseFromMaps(pid int) (uint64, error) {
	f, err := os.Open(fmt.Sprintf("/proc/%d/maps", pid))
	if err != nil {
		return 0, err
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		return 0, fmt.Errorf("empty maps file")
	}
	line := scanner.Text()
	dash := strings.IndexByte(line, '-')
	if dash < 0 {
		return 0, fmt.Errorf("malformed maps line: %q", line)
	}
	return strconv.ParseUint(line[:dash], 16, 64)
}

// Exited reports whether the last WaitForSignal observed tracee exit.
func (t *Tracee) Exited() bool { return t.exited }

// GetRegs fetches the tracee's whole register bank.
func (t *Tracee) GetRegs() (*syscall.PtraceRegs, error) {
	var regs syscall.PtraceRegs
	err := t.do(func() error {
		return syscall.PtraceGetRegs(t.Pid, &regs)
	})
	if err != nil {
		return nil, TraceeIOError{Op: "GetRegs", Err: err}
	}
	return &regs, nil
}

// SetRegs writes back the tracee's whole register bank.
func (t *Tracee) SetRegs(regs *syscall.PtraceRegs) error {
	err := t.do(func() error {
		return syscall.PtraceSetRegs(t.Pid, regs)
	})
	if err != nil {
		return TraceeIOError{Op: "SetRegs", Err: err}
	}
	return nil
}

// ReadWord reads the 8-byte word at addr (breakpoint.Memory).
func (t *Tracee) ReadWord(addr uint64) (uint64, error) {
	var buf [8]byte
	err := t.do(func() error {
		n, err := syscall.PtracePeekData(t.Pid, uintptr(addr), buf[:])
		if err != nil {
			return err
		}
		if n != len(buf) {
			return fmt.Errorf("peeked %d bytes, want %d", n, len(buf))
		}
		return nil
	})
	if err != nil {
		return 0, TraceeIOError{Op: "ReadWord", Err: err}
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// WriteWord writes the 8-byte word at addr (breakpoint.Memory).
func (t *Tracee) WriteWord(addr uint64, word uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], word)
	err := t.do(func() error {
		n, err := syscall.PtracePokeData(t.Pid, uintptr(addr), buf[:])
		if err != nil {
			return err
		}
		if n != len(buf) {
			return fmt.Errorf("poked %d bytes, want %d", n, len(buf))
		}
		return nil
	})
	if err != nil {
		return TraceeIOError{Op: "WriteWord", Err: err}
	}
	return nil
}

// SingleStep issues a single-instruction trace step and waits for the
// resulting trap.
func (t *Tracee) SingleStep() error {
	err := t.do(func() error {
		return syscall.PtraceSingleStep(t.Pid)
	})
	if err != nil {
		return TraceeIOError{Op: "SingleStep", Err: err}
	}
	if _, err := t.WaitForSignal(); err != nil {
		return err
	}
	return nil
}

// ContinueExec issues PTRACE_CONT without waiting; callers wait separately
// via WaitForSignal so the planner can interleave the step-over-breakpoint
// dance first.
func (t *Tracee) ContinueExec() error {
	err := t.do(func() error {
		return syscall.PtraceCont(t.Pid, 0)
	})
	if err != nil {
		return TraceeIOError{Op: "ContinueExec", Err: err}
	}
	return nil
}

// WaitForSignal blocks on the tracee and returns true iff it has exited.
// Otherwise it classifies the stop (software breakpoint, single-step
// completion, segfault, other) and, for a breakpoint hit, rewinds PC by
// one byte exactly once (spec §4.4, §9).
func (t *Tracee) WaitForSignal() (bool, error) {
	var status syscall.WaitStatus
	err := t.do(func() error {
		_, err := syscall.Wait4(t.Pid, &status, 0, nil)
		return err
	})
	if err != nil {
		return false, TraceeIOError{Op: "WaitForSignal", Err: err}
	}
	if status.Exited() {
		t.exited = true
		return true, nil
	}

	signo, code, err := t.getSiginfo()
	if err != nil {
		// No siginfo (e.g. the tracee was stopped by job control, not a
		// signal ptrace reports siginfo for): nothing further to do.
		return false, nil
	}

	switch signo {
	case int32(syscall.SIGTRAP):
		if err := t.handleSigtrap(code); err != nil {
			return false, err
		}
	case int32(syscall.SIGSEGV):
		log.Printf("tracee %d received SIGSEGV, reason code %#x", t.Pid, code)
	default:
		log.Printf("tracee %d received signal %d, code %#x", t.Pid, signo, code)
	}
	return false, nil
}

func (t *Tracee) handleSigtrap(code int32) error {
	switch code {
	case trapBrkpt, siKernel:
		regs, err := t.GetRegs()
		if err != nil {
			return err
		}
		pc := regs.Rip - 1
		regs.Rip = pc
		if err := t.SetRegs(regs); err != nil {
			return err
		}
		log.Printf("hit breakpoint at %#x", pc)
	case trapTrace:
		// Single-step completion: nothing to do.
	default:
		log.Printf("tracee %d received unrecognized SIGTRAP code %#x", t.Pid, code)
	}
	return nil
}

// getSiginfo issues PTRACE_GETSIGINFO. The standard syscall package
// defines the request number but no typed wrapper, so this reads the
// leading si_signo/si_code fields of the kernel's siginfo_t directly via
// the raw ptrace syscall, in the same style as golang-debug's other
// unwrapped ptrace requests.
func (t *Tracee) getSiginfo() (signo int32, code int32, err error) {
	var raw [128]byte
	doErr := t.do(func() error {
		_, _, errno := syscall.Syscall6(syscall.SYS_PTRACE, syscall.PTRACE_GETSIGINFO, uintptr(t.Pid), 0, uintptr(unsafe.Pointer(&raw[0])), 0, 0)
		if errno != 0 {
			return errno
		}
		return nil
	})
	if doErr != nil {
		return 0, 0, doErr
	}
	signo = int32(binary.LittleEndian.Uint32(raw[0:4]))
	code = int32(binary.LittleEndian.Uint32(raw[8:12]))
	return signo, code, nil
}

// CurrentPCFileRelative returns rip - load_base (spec §4.4).
func (t *Tracee) CurrentPCFileRelative() (uint64, error) {
	regs, err := t.GetRegs()
	if err != nil {
		return 0, err
	}
	return regs.Rip - t.LoadBase, nil
}

// CurrentLineEntry composes CurrentPCFileRelative with LineEntryForPC.
func (t *Tracee) CurrentLineEntry() (*dwarfinfo.LineEntry, bool, error) {
	pc, err := t.CurrentPCFileRelative()
	if err != nil {
		return nil, false, err
	}
	return t.Reader.LineEntryForPC(pc)
}

// Kill terminates the tracee, releasing kernel resources. Safe to call
// after the tracee has already exited.
func (t *Tracee) Kill() error {
	if t.proc == nil {
		return nil
	}
	return t.proc.Kill()
}
