package tracee

import (
	"os"
	"testing"
)

// TestLoadBaseFromMapsOwnProcess exercises the /proc/<pid>/maps parsing
// against the test binary's own process, which is always running and
// needs no ptrace privileges at all.
func TestLoadBaseFromMapsOwnProcess(t *testing.T) {
	base, err := loadBaseFromMaps(os.Getpid())
	if err != nil {
		t.Fatalf("loadBaseFromMaps: %v", err)
	}
	if base == 0 {
		t.Fatal("expected a nonzero load base for the running test process")
	}
}

// TestNewAttachesAndWaitsForExit spawns a real traced child and drives it
// to completion, in the style of jackc-delve/proctl/proctl_test.go's
// WithTestProcess helper. It is skipped under -short since it requires
// CAP_SYS_PTRACE and a real fork/exec.
func TestNewAttachesAndWaitsForExit(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping ptrace integration test in -short mode")
	}
	const target = "/bin/true"
	if _, err := os.Stat(target); err != nil {
		t.Skipf("%s not available: %v", target, err)
	}

	tr, err := New(target)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer tr.Kill()

	// The Go runtime's Ptrace:true SysProcAttr stops the child at the
	// post-exec trap; drain that stop before resuming it to completion.
	exited, err := tr.WaitForSignal()
	if err != nil {
		t.Fatalf("initial WaitForSignal: %v", err)
	}
	if exited {
		t.Fatal("child exited before the initial trap was observed")
	}

	if err := tr.ContinueExec(); err != nil {
		t.Fatalf("ContinueExec: %v", err)
	}
	for {
		exited, err := tr.WaitForSignal()
		if err != nil {
			t.Fatalf("WaitForSignal: %v", err)
		}
		if exited {
			break
		}
		if err := tr.ContinueExec(); err != nil {
			t.Fatalf("ContinueExec: %v", err)
		}
	}
	if !tr.Exited() {
		t.Fatal("expected Exited() to report true once the wait loop observed exit")
	}
}
