package planner

import (
	"testing"

	"github.com/gopherdbg/gopherdbg/internal/dwarfinfo"
)

func TestLineEntryEqualBothNil(t *testing.T) {
	if !lineEntryEqual(nil, nil) {
		t.Fatal("two nil line entries must compare equal")
	}
}

func TestLineEntryEqualOneNil(t *testing.T) {
	e := &dwarfinfo.LineEntry{SourcePath: "main.c", LineNumber: 3}
	if lineEntryEqual(e, nil) || lineEntryEqual(nil, e) {
		t.Fatal("a nil and a non-nil line entry must never compare equal")
	}
}

func TestLineEntryEqualSameLineDifferentColumn(t *testing.T) {
	a := &dwarfinfo.LineEntry{SourcePath: "main.c", LineNumber: 10, ColumnNumber: 1}
	b := &dwarfinfo.LineEntry{SourcePath: "main.c", LineNumber: 10, ColumnNumber: 2}
	if lineEntryEqual(a, b) {
		t.Fatal("step_in must treat a column change within the same line as a new position")
	}
}

func TestLineEntryEqualIdentical(t *testing.T) {
	a := &dwarfinfo.LineEntry{SourcePath: "main.c", LineNumber: 10, ColumnNumber: 1}
	b := &dwarfinfo.LineEntry{SourcePath: "main.c", LineNumber: 10, ColumnNumber: 1}
	if !lineEntryEqual(a, b) {
		t.Fatal("identical line entries must compare equal")
	}
}

func TestErrorMessages(t *testing.T) {
	var noFunc error = NoCurrentFunctionError{}
	if noFunc.Error() == "" {
		t.Fatal("NoCurrentFunctionError must have a message")
	}
	noLine := NoLineInfoError{What: "current position"}
	if noLine.Error() == "" {
		t.Fatal("NoLineInfoError must have a message")
	}
}
