package dwarfinfo

import (
	"debug/dwarf"
	"testing"
)

func entryWith(fields ...dwarf.Field) *dwarf.Entry {
	return &dwarf.Entry{Field: fields}
}

func TestDieAddressRangeOffsetForm(t *testing.T) {
	r := NewReader(nil)
	e := entryWith(
		dwarf.Field{Attr: dwarf.AttrLowpc, Val: uint64(0x1000)},
		dwarf.Field{Attr: dwarf.AttrHighpc, Val: int64(0x50)},
	)
	low, high, err := r.DieAddressRange(e)
	if err != nil {
		t.Fatal(err)
	}
	if low != 0x1000 || high != 0x1050 {
		t.Fatalf("got [%#x, %#x)", low, high)
	}
}

func TestDieAddressRangeAbsoluteFormIsMalformed(t *testing.T) {
	r := NewReader(nil)
	e := entryWith(
		dwarf.Field{Attr: dwarf.AttrLowpc, Val: uint64(0x1000)},
		dwarf.Field{Attr: dwarf.AttrHighpc, Val: uint64(0x1050)},
	)
	_, _, err := r.DieAddressRange(e)
	if _, ok := err.(MalformedDebugInfoError); !ok {
		t.Fatalf("want MalformedDebugInfoError, got %v", err)
	}
}

func TestDieAddressRangeMissingLowPC(t *testing.T) {
	r := NewReader(nil)
	e := entryWith(dwarf.Field{Attr: dwarf.AttrHighpc, Val: int64(0x50)})
	if _, _, err := r.DieAddressRange(e); err == nil {
		t.Fatal("expected error for missing low_pc")
	}
}

func TestNilDataIsEmptyNotError(t *testing.T) {
	r := NewReader(nil)
	if _, ok, err := r.CompileUnitForPC(0x1000); ok || err != nil {
		t.Fatalf("stripped binary should report not-found without error, got ok=%v err=%v", ok, err)
	}
}
