package breakpoint

// PostAction records what must be done to an address after the next stop
// in order to restore the registry to its pre-call state. Four states are
// genuinely distinct: merging any two (e.g. treating Delete and Disable as
// one "undo" case) creates either a leaked registry entry or a double
// disable on a breakpoint the caller still owns.
//
// Ported from original_source/src/breakpoint.rs's BreakpointLaterAction.
type PostAction int

const (
	// PostNothing means the address already had an enabled breakpoint;
	// the transient set was a no-op and nothing needs undoing.
	PostNothing PostAction = iota
	// PostDelete means the registry had no entry for the address; the
	// transient set constructed, enabled, and inserted one, and the undo
	// must disable and remove it.
	PostDelete
	// PostDisable means the registry had a disabled entry; the transient
	// set enabled it in place, and the undo must disable it again (but
	// leave it registered).
	PostDisable
	// PostEnable is reserved for callers that re-arm a breakpoint the
	// transient set found already disabled and want it left enabled
	// afterwards; ReverseBreakpoint treats it as "enable in place".
	PostEnable
)

// Registry is the sole owner of the tracee's breakpoints, keyed by runtime
// address.
//
// Grounded on golang-debug/program/server/server.go's
// map[uint64]breakpoint field and original_source/src/debugger.rs's
// HashMap<ptrace::AddressType, Breakpoint>.
type Registry struct {
	entries map[uint64]*Breakpoint
}

// NewRegistry returns an empty breakpoint registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[uint64]*Breakpoint)}
}

// Get returns the breakpoint at addr, if any.
func (r *Registry) Get(addr uint64) (*Breakpoint, bool) {
	bp, ok := r.entries[addr]
	return bp, ok
}

// Set installs a persistent, enabled breakpoint at addr (spec §4.5.1).
// Inserting at an existing key disables the prior record first, so
// duplicate arming can never leave two INT3s layered over one byte.
func (r *Registry) Set(mem Memory, addr uint64) (*Breakpoint, error) {
	if prior, ok := r.entries[addr]; ok {
		if err := prior.Disable(mem); err != nil {
			return nil, err
		}
	}
	bp := New(addr)
	if err := bp.Enable(mem); err != nil {
		return nil, err
	}
	r.entries[addr] = bp
	return bp, nil
}

// SetTransient arms addr for one-shot use by the stepping planner and
// reports how to undo it afterwards (spec §4.5.2).
func (r *Registry) SetTransient(mem Memory, addr uint64) (PostAction, error) {
	if bp, ok := r.entries[addr]; ok {
		if bp.IsEnabled() {
			return PostNothing, nil
		}
		if err := bp.Enable(mem); err != nil {
			return PostNothing, err
		}
		return PostDisable, nil
	}
	bp := New(addr)
	if err := bp.Enable(mem); err != nil {
		return PostNothing, err
	}
	r.entries[addr] = bp
	return PostDelete, nil
}

// Reverse undoes a transient set, restoring the registry to the state
// SetTransient found it in.
func (r *Registry) Reverse(mem Memory, addr uint64, action PostAction) error {
	switch action {
	case PostNothing:
		return nil
	case PostDelete:
		bp, ok := r.entries[addr]
		if !ok {
			return nil
		}
		delete(r.entries, addr)
		return bp.Disable(mem)
	case PostDisable:
		bp, ok := r.entries[addr]
		if !ok {
			return nil
		}
		return bp.Disable(mem)
	case PostEnable:
		bp, ok := r.entries[addr]
		if !ok {
			return nil
		}
		return bp.Enable(mem)
	}
	return nil
}

// Delete disables and removes the breakpoint at addr, if any.
func (r *Registry) Delete(mem Memory, addr uint64) error {
	bp, ok := r.entries[addr]
	if !ok {
		return nil
	}
	if err := bp.Disable(mem); err != nil {
		return err
	}
	delete(r.entries, addr)
	return nil
}
