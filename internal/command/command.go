// Package command implements the REPL dispatch shim: it tokenizes a
// command line, resolves aliases, and drives the stepping planner,
// tracee, and register file accordingly (spec §4.6, §6).
//
// Grounded on original_source/src/debugger.rs::run's match over command
// tokens (the alias sets for break/continue/registers/memory, the
// subcommand dispatch for registers and memory) and
// jackc-delve/main.go's parseCommand token-splitting idiom. Hex parsing
// is ported from original_source/src/util.rs::parse_hex; source-context
// printing from original_source/src/util.rs::print_source.
package command

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/gopherdbg/gopherdbg/internal/planner"
	"github.com/gopherdbg/gopherdbg/internal/registers"
	"github.com/gopherdbg/gopherdbg/internal/tracee"
)

// Errors surfaced verbatim to the REPL (spec §7).
type (
	// UnknownCommandError is returned for a first token matching no
	// command or alias.
	UnknownCommandError struct{ Cmd string }
	// UnknownSubcommandError is returned for a registers/memory
	// subcommand that isn't read/write/dump.
	UnknownSubcommandError struct{ Sub string }
	// BadHexError is returned when an argument expected in 0x<hex> form
	// doesn't parse as one.
	BadHexError struct{ Value string }
	// MissingArgumentError is returned when a command needed more
	// tokens than the line supplied.
	MissingArgumentError struct{ What string }
)

func (e UnknownCommandError) Error() string    { return fmt.Sprintf("unknown command: %s", e.Cmd) }
func (e UnknownSubcommandError) Error() string { return fmt.Sprintf("unknown subcommand: %s", e.Sub) }
func (e BadHexError) Error() string {
	return fmt.Sprintf("expected a 0x-prefixed hexadecimal value, got %q", e.Value)
}
func (e MissingArgumentError) Error() string { return fmt.Sprintf("missing argument: %s", e.What) }

// ParseHex requires a "0x" prefix, matching util.rs::parse_hex.
func ParseHex(s string) (uint64, error) {
	if len(s) < 3 || s[:2] != "0x" {
		return 0, BadHexError{Value: s}
	}
	v, err := strconv.ParseUint(s[2:], 16, 64)
	if err != nil {
		return 0, BadHexError{Value: s}
	}
	return v, nil
}

// Dispatcher resolves REPL command lines against a tracee and its
// stepping planner.
type Dispatcher struct {
	Tracee  *tracee.Tracee
	Planner *planner.Planner
}

// New wraps tr and pl for command dispatch.
func New(tr *tracee.Tracee, pl *planner.Planner) *Dispatcher {
	return &Dispatcher{Tracee: tr, Planner: pl}
}

// nextArg pulls the token at idx from toks, reporting MissingArgumentError
// against what if there isn't one, and returns the remaining tokens after
// it so callers can thread further nextArg calls forward.
func nextArg(toks []string, idx int, what string) (string, []string, error) {
	if idx >= len(toks) || toks[idx] == "" {
		return "", toks, MissingArgumentError{What: what}
	}
	return toks[idx], toks[idx+1:], nil
}

// Dispatch tokenizes and executes one command line. exited reports
// whether the tracee has exited as a result (spec's TraceeExited, which
// terminates the REPL loop).
func (d *Dispatcher) Dispatch(line string) (exited bool, err error) {
	toks := strings.Split(strings.TrimRight(line, "\n"), " ")
	cmd := toks[0]
	rest := toks[1:]

	switch cmd {
	case "b", "break":
		addrTok, _, err := nextArg(rest, 0, "address")
		if err != nil {
			return false, err
		}
		addr, err := ParseHex(addrTok)
		if err != nil {
			return false, err
		}
		return false, d.Planner.SetBreakpoint(addr + d.Tracee.LoadBase)

	case "c", "cont", "continue":
		exited, err := d.Planner.ContinueExecution()
		return exited, err

	case "si", "stepi":
		return false, d.Planner.SingleStepWithBPCheck()

	case "step":
		return false, d.Planner.StepIn()

	case "next":
		return false, d.Planner.StepOver()

	case "finish":
		return false, d.Planner.StepOut()

	case "r", "reg", "registers":
		return false, d.dispatchRegisters(rest)

	case "m", "mem", "memory":
		return false, d.dispatchMemory(rest)

	case "l", "lines":
		return false, d.printLines()

	default:
		return false, UnknownCommandError{Cmd: cmd}
	}
}

func (d *Dispatcher) dispatchRegisters(rest []string) error {
	sub, rest, err := nextArg(rest, 0, "registers subcommand")
	if err != nil {
		return err
	}
	switch sub {
	case "d", "dump":
		regs, err := d.Tracee.GetRegs()
		if err != nil {
			return err
		}
		for _, r := range registers.All {
			fmt.Printf("%-8s = %#016x\n", r.String(), registers.Get(regs, r))
		}
		return nil

	case "r", "read":
		nameTok, _, err := nextArg(rest, 0, "register name")
		if err != nil {
			return err
		}
		reg, err := registers.NameToReg(nameTok)
		if err != nil {
			return err
		}
		regs, err := d.Tracee.GetRegs()
		if err != nil {
			return err
		}
		fmt.Printf("%#x\n", registers.Get(regs, reg))
		return nil

	case "w", "write":
		nameTok, rest, err := nextArg(rest, 0, "register name")
		if err != nil {
			return err
		}
		valTok, _, err := nextArg(rest, 0, "value")
		if err != nil {
			return err
		}
		reg, err := registers.NameToReg(nameTok)
		if err != nil {
			return err
		}
		val, err := ParseHex(valTok)
		if err != nil {
			return err
		}
		regs, err := d.Tracee.GetRegs()
		if err != nil {
			return err
		}
		registers.Set(regs, reg, val)
		return d.Tracee.SetRegs(regs)

	default:
		return UnknownSubcommandError{Sub: sub}
	}
}

func (d *Dispatcher) dispatchMemory(rest []string) error {
	sub, rest, err := nextArg(rest, 0, "memory subcommand")
	if err != nil {
		return err
	}
	switch sub {
	case "r", "read":
		addrTok, _, err := nextArg(rest, 0, "address")
		if err != nil {
			return err
		}
		addr, err := ParseHex(addrTok)
		if err != nil {
			return err
		}
		val, err := d.Tracee.ReadWord(addr)
		if err != nil {
			return err
		}
		fmt.Printf("%#x\n", val)
		return nil

	case "w", "write":
		addrTok, rest, err := nextArg(rest, 0, "address")
		if err != nil {
			return err
		}
		valTok, _, err := nextArg(rest, 0, "value")
		if err != nil {
			return err
		}
		addr, err := ParseHex(addrTok)
		if err != nil {
			return err
		}
		val, err := ParseHex(valTok)
		if err != nil {
			return err
		}
		return d.Tracee.WriteWord(addr, val)

	default:
		return UnknownSubcommandError{Sub: sub}
	}
}

// lineContext is the number of lines of source printed on either side of
// the current line, matching original_source/src/util.rs::print_source's
// n_lines_context.
const lineContext = 2

func (d *Dispatcher) printLines() error {
	entry, ok, err := d.Tracee.CurrentLineEntry()
	if err != nil {
		return err
	}
	if !ok || entry.SourcePath == "" {
		fmt.Println("no line information for the current position")
		return nil
	}
	return printSource(entry.SourcePath, entry.LineNumber, lineContext)
}

// printSource prints a window of source lines around n with the current
// line marked, in the style of original_source/src/util.rs::print_source.
func printSource(path string, n, context int) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	start := n - context
	if start < 1 {
		start = 1
	}
	end := n + context

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if lineNo < start {
			continue
		}
		if lineNo > end {
			break
		}
		marker := "  "
		if lineNo == n {
			marker = "> "
		}
		fmt.Printf("%s%4d %s\n", marker, lineNo, scanner.Text())
	}
	return scanner.Err()
}
