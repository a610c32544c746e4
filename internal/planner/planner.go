// Package planner implements the stepping planner: breakpoint placement
// including the step-over-breakpoint dance, and the step-in/step-over/
// step-out algorithms built on top of it (spec §4.5).
//
// Ported near-verbatim from original_source/src/debugger.rs's Debugger
// methods (set_breakpoint_at, set_temp_breakpoint_at,
// step_over_breakpoint, continue_execution, step_in, step_out, step_over,
// reverse_breakpoint), translated into explicit Go error returns in the
// style of golang-debug/program/server/server.go's method-per-operation
// shape and jackc-delve/proctl's Next/Step/Continue.
package planner

import (
	"fmt"

	"github.com/gopherdbg/gopherdbg/internal/breakpoint"
	"github.com/gopherdbg/gopherdbg/internal/dwarfinfo"
	"github.com/gopherdbg/gopherdbg/internal/registers"
	"github.com/gopherdbg/gopherdbg/internal/tracee"
)

// NoCurrentFunctionError is returned by StepOver when the program counter
// does not fall inside any subprogram the binary's debug info describes.
type NoCurrentFunctionError struct{}

func (NoCurrentFunctionError) Error() string {
	return "currently not in a function defined in the binary"
}

// NoLineInfoError is returned when a stepping operation needs a line-table
// row (the function's bounds, or the current position) that debug info
// doesn't supply.
type NoLineInfoError struct {
	What string
}

func (e NoLineInfoError) Error() string {
	return fmt.Sprintf("no line info: %s", e.What)
}

// Planner drives a Tracee through breakpoint placement and stepping,
// owning the sole Registry of persistent and transient breakpoints.
type Planner struct {
	tr  *tracee.Tracee
	reg *breakpoint.Registry
}

// New wraps tr with an empty breakpoint registry.
func New(tr *tracee.Tracee) *Planner {
	return &Planner{tr: tr, reg: breakpoint.NewRegistry()}
}

// SetBreakpoint arms a persistent breakpoint at a runtime address (spec
// §4.5.1). addr is already load-base-adjusted.
func (p *Planner) SetBreakpoint(addr uint64) error {
	_, err := p.reg.Set(p.tr, addr)
	return err
}

// SetTransientBreakpoint arms a one-shot breakpoint and reports how to
// undo it (spec §4.5.2).
func (p *Planner) SetTransientBreakpoint(addr uint64) (breakpoint.PostAction, error) {
	return p.reg.SetTransient(p.tr, addr)
}

// ReverseBreakpoint undoes a transient breakpoint per the action
// SetTransientBreakpoint reported.
func (p *Planner) ReverseBreakpoint(addr uint64, action breakpoint.PostAction) error {
	return p.reg.Reverse(p.tr, addr, action)
}

// StepOverBreakpoint steps past a registered, currently-enabled breakpoint
// sitting exactly at the current PC: disable it, single-step the one
// instruction underneath it, then re-enable it so later passes still trap.
// Reports whether a breakpoint was actually there to step over (spec
// §4.5.3).
func (p *Planner) StepOverBreakpoint() (bool, error) {
	regs, err := p.tr.GetRegs()
	if err != nil {
		return false, err
	}
	pc := registers.Get(regs, registers.Rip)
	bp, ok := p.reg.Get(pc)
	if !ok || !bp.IsEnabled() {
		return false, nil
	}
	if err := bp.Disable(p.tr); err != nil {
		return false, err
	}
	if err := p.tr.SingleStep(); err != nil {
		return false, err
	}
	if err := bp.Enable(p.tr); err != nil {
		return false, err
	}
	return true, nil
}

// SingleStepWithBPCheck single-steps one instruction, first stepping past
// a breakpoint at the current PC if one is there (spec §4.5.4).
func (p *Planner) SingleStepWithBPCheck() error {
	steppedOverBP, err := p.StepOverBreakpoint()
	if err != nil {
		return err
	}
	if steppedOverBP {
		return nil
	}
	return p.tr.SingleStep()
}

// ContinueExecution resumes the tracee, first stepping over any enabled
// breakpoint sitting at the current PC (it stays registered and enabled)
// so the tracee doesn't immediately retrap on its own instruction, and
// waits for the next stop. Reports whether the
// tracee has exited (spec §4.5.5).
func (p *Planner) ContinueExecution() (bool, error) {
	if _, err := p.StepOverBreakpoint(); err != nil {
		return false, err
	}
	if err := p.tr.ContinueExec(); err != nil {
		return false, err
	}
	return p.tr.WaitForSignal()
}

func lineEntryEqual(a, b *dwarfinfo.LineEntry) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// StepIn single-steps (honoring breakpoints) until the active source line
// changes, i.e. it steps into callees rather than over them (spec §4.5.6).
func (p *Planner) StepIn() error {
	start, _, err := p.tr.CurrentLineEntry()
	if err != nil {
		return err
	}
	for {
		if err := p.SingleStepWithBPCheck(); err != nil {
			return err
		}
		if p.tr.Exited() {
			return nil
		}
		cur, _, err := p.tr.CurrentLineEntry()
		if err != nil {
			return err
		}
		if !lineEntryEqual(start, cur) {
			return nil
		}
	}
}

// StepOut runs the tracee until the current function returns: it reads
// the return address from the stack slot just above the frame pointer,
// plants a transient breakpoint there, continues, and reverses the
// breakpoint once it's hit (spec §4.5.7).
func (p *Planner) StepOut() (err error) {
	regs, err := p.tr.GetRegs()
	if err != nil {
		return err
	}
	fp := registers.Get(regs, registers.Rbp)
	retAddr, err := p.tr.ReadWord(fp + 8)
	if err != nil {
		return err
	}
	action, err := p.SetTransientBreakpoint(retAddr)
	if err != nil {
		return err
	}
	defer func() {
		if revErr := p.ReverseBreakpoint(retAddr, action); err == nil {
			err = revErr
		}
	}()

	_, err = p.ContinueExecution()
	return err
}

// StepOver runs the tracee until it reaches a different line within the
// current function without descending into callees: breakpoints are
// planted on every other line of the enclosing function plus the return
// address, execution is resumed once, and whichever breakpoint lands is
// subsequently hit; all of them are then reversed (spec §4.5.8).
//
// Planting one breakpoint per candidate line (rather than computing which
// line a call actually returns to) is quadratic in function size but
// requires no branch analysis; kept as the original implementation does
// it rather than redesigned, per the open question in DESIGN.md.
func (p *Planner) StepOver() (err error) {
	pc, err := p.tr.CurrentPCFileRelative()
	if err != nil {
		return err
	}
	cu, offset, ok, err := p.tr.Reader.SubprogramForPC(pc)
	if err != nil {
		return err
	}
	if !ok {
		return NoCurrentFunctionError{}
	}
	funcLow, funcHigh, err := p.tr.Reader.SubprogramRange(cu, offset)
	if err != nil {
		return err
	}
	funcStartLine, ok, err := p.tr.Reader.LineEntryForPC(funcLow)
	if err != nil {
		return err
	}
	if !ok {
		return NoLineInfoError{What: "function start"}
	}
	funcEndLine, ok, err := p.tr.Reader.LineEntryForPC(funcHigh)
	if err != nil {
		return err
	}
	if !ok {
		return NoLineInfoError{What: "function end"}
	}
	startLine, ok, err := p.tr.CurrentLineEntry()
	if err != nil {
		return err
	}
	if !ok {
		return NoLineInfoError{What: "current position"}
	}

	lines, err := p.tr.Reader.LineMapForUnit(cu)
	if err != nil {
		return err
	}

	type planted struct {
		addr   uint64
		action breakpoint.PostAction
	}
	var addrs []planted
	// Reverse whatever got planted regardless of how this function returns,
	// so a failure partway through planting or continuing never leaves a
	// stray 0xCC byte or registry entry behind.
	defer func() {
		for _, pl := range addrs {
			if revErr := p.ReverseBreakpoint(pl.addr, pl.action); err == nil {
				err = revErr
			}
		}
	}()

	for line := funcStartLine.LineNumber; line <= funcEndLine.LineNumber; line++ {
		if line == startLine.LineNumber {
			continue
		}
		fileAddr, ok := lines[line]
		if !ok {
			continue
		}
		addr := fileAddr + p.tr.LoadBase
		action, err := p.SetTransientBreakpoint(addr)
		if err != nil {
			return err
		}
		addrs = append(addrs, planted{addr: addr, action: action})
	}

	regs, err := p.tr.GetRegs()
	if err != nil {
		return err
	}
	fp := registers.Get(regs, registers.Rbp)
	retAddr, err := p.tr.ReadWord(fp + 8)
	if err != nil {
		return err
	}
	retAction, err := p.SetTransientBreakpoint(retAddr)
	if err != nil {
		return err
	}
	addrs = append(addrs, planted{addr: retAddr, action: retAction})

	_, err = p.ContinueExecution()
	return err
}
