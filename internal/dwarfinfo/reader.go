// Package dwarfinfo extracts compile units, subprograms, and line-table
// rows from a target's embedded DWARF debug sections, translating between
// program counters and (file, line, column) triples (spec §4.3).
//
// Grounded on golang-debug/program/server/dwarf.go's lookupSym/lookupPC
// reader-loop idiom and golang-debug/debug/dwarf/symbol.go's LookupFunction,
// with the line-table walk and the "directory index 0 means the
// compilation-unit directory" rule ported from
// original_source/src/dwarf.rs (get_compile_unit_for_pc,
// get_line_entry_from_pc, get_die_addr_range).
//
// golang-debug's own DWARF parser is an import of the no-longer-fetchable
// code.google.com/p/ogle/debug/dwarf fork; this package uses the standard
// library's debug/dwarf instead, which descends directly from that fork
// and exposes the same Reader/Entry/LineReader shapes (see DESIGN.md).
package dwarfinfo

import (
	"debug/dwarf"
	"fmt"
	"io"
)

// MalformedDebugInfoError is returned when debug sections are present but
// violate the encoding this reader assumes (spec §4.3, §7).
type MalformedDebugInfoError struct {
	Reason string
}

func (e MalformedDebugInfoError) Error() string {
	return fmt.Sprintf("malformed debug info: %s", e.Reason)
}

// LineEntry is a source position resolved from the line table. Both counts
// are 1-based; 0 means unknown.
type LineEntry struct {
	SourcePath   string
	LineNumber   int
	ColumnNumber int
}

// CompileUnit wraps the DW_TAG_compile_unit entry that roots one unit's DIE
// tree and line program.
type CompileUnit struct {
	entry *dwarf.Entry
}

// Reader resolves PC-indexed debug info queries against a parsed object's
// DWARF data. It is safe to share across goroutines for reads; the
// embedded *dwarf.Data is immutable once loaded.
type Reader struct {
	data *dwarf.Data
}

// NewReader wraps data for PC/line/subprogram queries. data may be nil,
// which models a stripped binary: every lookup then reports "not found"
// rather than erroring (spec §4.3).
func NewReader(data *dwarf.Data) *Reader {
	return &Reader{data: data}
}

// CompileUnitForPC finds the compile unit whose [low_pc, low_pc+high_pc)
// range contains a file-relative pc.
func (r *Reader) CompileUnitForPC(pc uint64) (*CompileUnit, bool, error) {
	if r.data == nil {
		return nil, false, nil
	}
	reader := r.data.Reader()
	for {
		entry, err := reader.Next()
		if err != nil {
			return nil, false, err
		}
		if entry == nil {
			return nil, false, nil
		}
		if entry.Tag != dwarf.TagCompileUnit {
			reader.SkipChildren()
			continue
		}
		low, high, err := r.DieAddressRange(entry)
		if err != nil {
			// A compile unit with no address range (e.g. one holding
			// only type information) just doesn't cover any PC.
			reader.SkipChildren()
			continue
		}
		if pc >= low && pc < high {
			return &CompileUnit{entry: entry}, true, nil
		}
		reader.SkipChildren()
	}
}

// SubprogramForPC walks the matching compile unit's DIE tree depth-first
// and returns the first DW_TAG_subprogram whose address range contains pc,
// identified by the opaque (compile_unit, offset_within_unit) pair spec §3
// names a Subprogram DIE handle.
func (r *Reader) SubprogramForPC(pc uint64) (*CompileUnit, dwarf.Offset, bool, error) {
	cu, ok, err := r.CompileUnitForPC(pc)
	if err != nil || !ok {
		return nil, 0, false, err
	}
	reader := r.data.Reader()
	reader.Seek(cu.entry.Offset)
	// Consume the compile unit's own entry before walking its children.
	if _, err := reader.Next(); err != nil {
		return nil, 0, false, err
	}
	for {
		entry, err := reader.Next()
		if err != nil {
			return nil, 0, false, err
		}
		if entry == nil || entry.Tag == dwarf.TagCompileUnit {
			return nil, 0, false, nil
		}
		if entry.Tag != dwarf.TagSubprogram {
			continue
		}
		low, high, err := r.DieAddressRange(entry)
		if err != nil {
			continue
		}
		if pc >= low && pc < high {
			return cu, entry.Offset, true, nil
		}
	}
}

// LineEntryForPC returns the active source position at a file-relative pc:
// the entry of the last row whose address is strictly less than pc.
func (r *Reader) LineEntryForPC(pc uint64) (*LineEntry, bool, error) {
	cu, ok, err := r.CompileUnitForPC(pc)
	if err != nil || !ok {
		return nil, false, err
	}
	lr, err := r.data.LineReader(cu.entry)
	if err != nil {
		return nil, false, err
	}
	if lr == nil {
		return nil, false, nil
	}
	var found *LineEntry
	var row dwarf.LineEntry
	for {
		if err := lr.Next(&row); err != nil {
			if err == io.EOF {
				break
			}
			return nil, false, err
		}
		if row.EndSequence {
			continue
		}
		if row.Address >= pc {
			break
		}
		entry := &LineEntry{LineNumber: row.Line, ColumnNumber: row.Column}
		if row.File != nil {
			entry.SourcePath = row.File.Name
		}
		found = entry
	}
	if found == nil {
		return nil, false, nil
	}
	return found, true, nil
}

// SubprogramRange resolves the [low_pc, high_pc) address range of the
// subprogram DIE at offset within cu, as returned by SubprogramForPC.
func (r *Reader) SubprogramRange(cu *CompileUnit, offset dwarf.Offset) (uint64, uint64, error) {
	reader := r.data.Reader()
	reader.Seek(offset)
	entry, err := reader.Next()
	if err != nil {
		return 0, 0, err
	}
	if entry == nil {
		return 0, 0, MalformedDebugInfoError{Reason: "subprogram offset has no entry"}
	}
	return r.DieAddressRange(entry)
}

// LineMapForUnit produces a table associating source line numbers with
// their first-encountered starting file-relative PC. When multiple rows
// share a line, the first one seen while walking the program in order is
// kept, which is deterministic.
func (r *Reader) LineMapForUnit(cu *CompileUnit) (map[int]uint64, error) {
	result := make(map[int]uint64)
	lr, err := r.data.LineReader(cu.entry)
	if err != nil {
		return nil, err
	}
	if lr == nil {
		return result, nil
	}
	var row dwarf.LineEntry
	for {
		if err := lr.Next(&row); err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}
		if row.EndSequence {
			continue
		}
		if _, ok := result[row.Line]; !ok {
			result[row.Line] = row.Address
		}
	}
	return result, nil
}

// DieAddressRange extracts [low_pc, high_pc) from entry. DW_AT_high_pc is
// assumed to be stored as an unsigned offset from low_pc, the common form;
// an absolute-address encoding is reported as MalformedDebugInfoError
// rather than silently misread.
func (r *Reader) DieAddressRange(entry *dwarf.Entry) (uint64, uint64, error) {
	lowVal := entry.Val(dwarf.AttrLowpc)
	low, ok := lowVal.(uint64)
	if !ok {
		return 0, 0, MalformedDebugInfoError{Reason: "DW_AT_low_pc missing or not an address"}
	}
	highVal := entry.Val(dwarf.AttrHighpc)
	switch h := highVal.(type) {
	case int64:
		return low, low + uint64(h), nil
	case uint64:
		// DW_AT_high_pc encoded as an absolute address rather than an
		// offset from low_pc; spec requires the offset form.
		return 0, 0, MalformedDebugInfoError{Reason: "DW_AT_high_pc encoded as absolute address, not offset"}
	default:
		return 0, 0, MalformedDebugInfoError{Reason: "DW_AT_high_pc missing"}
	}
}
