// Command gopherdbg is an interactive, source-level debugger for x86-64
// Linux native executables: it launches a target, attaches via ptrace,
// and exposes a line-oriented REPL over registers, memory, software
// breakpoints, and source-level stepping.
//
// Grounded on golang-debug/cmd/viewcore/main.go's cobra root-command
// wiring and jackc-delve/main.go's history-file-backed prompt loop,
// adapted to spec's single-positional-argument invocation and clean exit
// on tracee completion.
package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/gopherdbg/gopherdbg/internal/command"
	"github.com/gopherdbg/gopherdbg/internal/planner"
	"github.com/gopherdbg/gopherdbg/internal/tracee"
)

const historyFileName = ".gopherdbg_history"

func main() {
	log.SetPrefix("gopherdbg: ")
	log.SetFlags(0)

	root := &cobra.Command{
		Use:   "gopherdbg <executable>",
		Short: "An interactive source-level debugger for x86-64 Linux executables",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args[0])
		},
		SilenceUsage: true,
	}

	if err := root.Execute(); err != nil {
		log.Fatal(err)
	}
}

func run(path string) error {
	tr, err := tracee.New(path)
	if err != nil {
		return fmt.Errorf("launch %s: %v", path, err)
	}
	defer tr.Kill()

	// The traced child is stopped at the post-exec trap the moment it is
	// spawned; drain that stop before accepting REPL commands.
	exited, err := tr.WaitForSignal()
	if err != nil {
		return err
	}
	if exited {
		return nil
	}

	pl := planner.New(tr)
	disp := command.New(tr, pl)

	historyPath := historyFilePath()
	rl, err := readline.NewEx(&readline.Config{
		Prompt:      "gopherdbg> ",
		HistoryFile: historyPath,
	})
	if err != nil {
		return fmt.Errorf("init REPL: %v", err)
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		exited, err := disp.Dispatch(line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "gopherdbg: %v\n", err)
			continue
		}
		if exited {
			fmt.Println("tracee exited")
			return nil
		}
	}
}

// historyFilePath puts the REPL history file in the user's home directory,
// falling back to the current directory if it can't be determined.
func historyFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return historyFileName
	}
	return filepath.Join(home, historyFileName)
}
