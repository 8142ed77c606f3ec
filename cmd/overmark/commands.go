package main

import (
	"fmt"
	"time"

	"github.com/overmark/overmark/internal/dispatcher"
	"github.com/overmark/overmark/internal/engine"
	"github.com/overmark/overmark/internal/script"
	"github.com/overmark/overmark/internal/scripts"
	"github.com/overmark/overmark/pkg/streaming"
)

// defaultFreeze is how long "freeze" pins elements when no duration is given.
const defaultFreeze = 5 * time.Second

// registerCommands binds the viewer control commands to the engine. now
// reports the clock reading of the frame being processed.
func registerCommands(d *dispatcher.Dispatcher, e *engine.Engine, now func() int64) {
	d.Register("enable", func(c dispatcher.Command) error {
		return e.Enable(c.Args[0])
	}, dispatcher.MinArgs(1), dispatcher.Logged())

	d.Register("disable", func(c dispatcher.Command) error {
		return e.Disable(c.Args[0])
	}, dispatcher.MinArgs(1), dispatcher.Logged())

	d.Register("save_override", func(c dispatcher.Command) error {
		return e.SaveElementOverride(c.Args[0], c.Args[1])
	}, dispatcher.MinArgs(2), dispatcher.Logged())

	d.Register("reset_override", func(c dispatcher.Command) error {
		return e.ResetElementOverride(c.Args[0], c.Args[1])
	}, dispatcher.MinArgs(2), dispatcher.Logged())

	d.Register("reload", func(c dispatcher.Command) error {
		s := builtinScript(c.Args[0])
		if s == nil {
			return fmt.Errorf("%s: %w", c.Args[0], engine.ErrScriptNotFound)
		}
		return e.Reload(s)
	}, dispatcher.MinArgs(1), dispatcher.Logged())

	d.Register("freeze", func(c dispatcher.Command) error {
		duration := defaultFreeze
		if len(c.Args) > 1 {
			parsed, err := time.ParseDuration(c.Args[1])
			if err != nil || parsed <= 0 {
				return fmt.Errorf("freeze: invalid duration %q", c.Args[1])
			}
			duration = parsed
		}
		_, err := e.FreezeScript(c.Args[0], now(), duration)
		return err
	}, dispatcher.MinArgs(1), dispatcher.Logged())
}

// builtinScript returns a fresh instance of the named built-in script.
func builtinScript(name string) script.Script {
	for _, s := range scripts.Builtin() {
		if s.Name() == name {
			return s
		}
	}
	return nil
}

func enqueueCommand(d *dispatcher.Dispatcher) func(streaming.CommandPayload) {
	return func(c streaming.CommandPayload) {
		d.Enqueue(dispatcher.Command{Name: c.Name, Args: c.Args})
	}
}
