// Package debugconsole is a minimal textual stand-in for the out-of-scope
// GUI debugger: a readline-driven stepping console that satisfies the VM's
// debug-hook contract (falsy return = pause, "quit" = halt, anything else =
// continue). Each prompt shows the branch about to execute and accepts a
// handful of one-word commands.
package debugconsole

import (
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"

	"github.com/wudi/mcfn/vm"
)

// Console wraps a readline instance and tracks whether the user has asked
// to run freely with a "continue" command; once set, that stays in effect
// for the rest of the run.
type Console struct {
	rl      *readline.Instance
	out     io.Writer
	running bool
}

// New opens a console prompting on the controlling terminal (stdin/stdout),
// the shape the CLI's "run" action wires up when invoked with -debug.
func New(out io.Writer) (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "mcfn-debug> ",
		HistoryFile:     "",
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		return nil, fmt.Errorf("debugconsole: %w", err)
	}
	return &Console{rl: rl, out: out}, nil
}

// Close releases the underlying terminal line discipline.
func (c *Console) Close() error {
	return c.rl.Close()
}

// Hook returns a vm.DebugHook bound to this console. It is polled once per
// scheduler step; after a "continue" command it stops prompting and answers
// "continue" to every later step of the run, so stepping cannot be resumed.
func (c *Console) Hook() vm.DebugHook {
	return func(branch *vm.Branch) string {
		if c.running {
			return "continue"
		}
		cur := branch.Current()
		if cur == nil {
			fmt.Fprintf(c.out, "branch %d: <end of program %s>\n", branch.ID, branch.Function)
		} else {
			fmt.Fprintf(c.out, "branch %d [%s pc=%d]: %s %s\n", branch.ID, branch.Function, branch.PC, cur.Opcode, strings.Join(cur.ArgStrings(), " "))
		}

		line, err := c.rl.Readline()
		if err != nil {
			return "quit"
		}
		switch strings.TrimSpace(strings.ToLower(line)) {
		case "", "step", "s":
			return "step"
		case "continue", "c":
			c.running = true
			return "continue"
		case "quit", "q":
			return "quit"
		case "where", "w":
			fmt.Fprintf(c.out, "executor=%s position=%v\n", branch.Executor.ID, branch.Position)
			return ""
		default:
			fmt.Fprintf(c.out, "unknown command %q (step/continue/quit/where)\n", line)
			return ""
		}
	}
}
