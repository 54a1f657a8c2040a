// Package dashboard provides the live Bubble Tea progress view for a run.
// It shows a progress bar, per-state counts and a scrollable host list that
// updates as executors move through their phases.
package dashboard

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rileyhilliard/scatter/internal/target"
)

// Dashboard runs the progress program in the background for the length of
// a run.
type Dashboard struct {
	program *tea.Program
	bridge  *Bridge
	done    chan struct{}
	err     error
}

// Start launches the program. cancel is invoked when the user quits with q
// or ctrl+c, since the terminal is in raw mode and no SIGINT arrives.
func Start(targets []target.Target, limit int, cancel context.CancelFunc, opts ...tea.ProgramOption) *Dashboard {
	program := tea.NewProgram(NewModel(targets, limit, cancel), opts...)
	d := &Dashboard{
		program: program,
		bridge:  NewBridge(program),
		done:    make(chan struct{}),
	}

	go func() {
		defer close(d.done)
		_, d.err = program.Run()
	}()

	return d
}

// Bridge returns the observer/sink that feeds the program.
func (d *Dashboard) Bridge() *Bridge {
	return d.bridge
}

// Wait blocks until the program has exited and restored the terminal.
func (d *Dashboard) Wait() error {
	<-d.done
	return d.err
}
