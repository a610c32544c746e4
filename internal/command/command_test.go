package command

import "testing"

func TestParseHexRequiresPrefix(t *testing.T) {
	_, err := ParseHex("1150")
	if _, ok := err.(BadHexError); !ok {
		t.Fatalf("expected BadHexError for a value without 0x prefix, got %v", err)
	}
}

func TestParseHexValid(t *testing.T) {
	v, err := ParseHex("0x1150")
	if err != nil {
		t.Fatal(err)
	}
	if v != 0x1150 {
		t.Fatalf("got %#x, want 0x1150", v)
	}
}

func TestParseHexRejectsGarbageAfterPrefix(t *testing.T) {
	if _, err := ParseHex("0xzz"); err == nil {
		t.Fatal("expected BadHexError for non-hex digits")
	}
}

func TestDispatchUnknownCommand(t *testing.T) {
	d := New(nil, nil)
	_, err := d.Dispatch("frobnicate")
	if _, ok := err.(UnknownCommandError); !ok {
		t.Fatalf("expected UnknownCommandError, got %v", err)
	}
}

func TestDispatchBreakMissingAddress(t *testing.T) {
	d := New(nil, nil)
	_, err := d.Dispatch("break")
	if _, ok := err.(MissingArgumentError); !ok {
		t.Fatalf("expected MissingArgumentError, got %v", err)
	}
}

func TestDispatchRegistersUnknownSubcommand(t *testing.T) {
	d := New(nil, nil)
	_, err := d.Dispatch("registers bogus")
	if _, ok := err.(UnknownSubcommandError); !ok {
		t.Fatalf("expected UnknownSubcommandError, got %v", err)
	}
}

func TestDispatchMemoryMissingSubcommand(t *testing.T) {
	d := New(nil, nil)
	_, err := d.Dispatch("memory")
	if _, ok := err.(MissingArgumentError); !ok {
		t.Fatalf("expected MissingArgumentError, got %v", err)
	}
}
