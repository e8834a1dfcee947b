package vm

import (
	"github.com/wudi/mcfn/instr"
)

// PendingStore describes an `execute store result|success score <t> <o>`
// clause a branch is currently carrying: the next value-producing
// instruction it executes commits its result (or success flag) into this
// scoreboard slot instead of only updating LastValue.
type PendingStore struct {
	Success   bool // true = "store success", false = "store result"
	Target    string
	Objective string
}

// Branch is one forked execution context. `execute as`/`at`/`positioned`
// clauses each fork a new Branch that shares the caller's program but moves
// independently; the fork tree is flattened back into the ready set, which
// the scheduler round-robins until every branch kills itself.
type Branch struct {
	ID int

	Executor *Entity
	Position [3]float64
	Facing   [2]float64 // yaw, pitch, degrees

	Function string
	Program  []*instr.Instruction
	PC       int

	// PendingStore is non-nil while an `execute store ...` clause is active
	// for this branch's current command; it is consumed (and cleared) by
	// the next value-producing instruction the branch executes.
	PendingStore *PendingStore

	// LastValue is the most recent value a value-producing instruction
	// computed on this branch — what `return run`/bare `return` propagate.
	LastValue int64

	// Caller is the branch that invoked run_func to create this one, nil
	// for a function invoked directly by the scheduler's top-level queue.
	// It is a non-owning reference: killing a callee never kills its
	// caller.
	Caller *Branch

	// CallerPendingStore is the caller's PendingStore, captured at the
	// moment of the call — run_func transfers the callee's eventual return
	// value into this slot rather than the callee's own, since the callee's
	// branch is gone by the time the caller resumes.
	CallerPendingStore *PendingStore

	Vars map[int]string

	// AfterReturnRun is set while executing the single inlined subcommand a
	// `return run` compiles to; the instruction immediately following it
	// ends the branch's top-level lineage instead of falling through to
	// whatever comes next in the program.
	AfterReturnRun bool

	dead bool
}

// NewBranch starts a fresh top-level branch (no caller) executing program
// under namespace-qualified function name fn.
func NewBranch(id int, fn string, program []*instr.Instruction, executor *Entity, position [3]float64) *Branch {
	return &Branch{
		ID:       id,
		Executor: executor,
		Position: position,
		Function: fn,
		Program:  program,
		Vars:     make(map[int]string),
	}
}

// Fork produces a new Branch that starts execution at the same program
// counter, sharing the remaining program slice and the caller chain, but
// free to diverge in executor/position/facing — the shape `execute
// as`/`at`/`positioned` clauses need: each selected entity (or moved
// position) gets an independent continuation of the same command tail.
func (b *Branch) Fork(id int) *Branch {
	clone := *b
	clone.ID = id
	clone.Vars = make(map[int]string, len(b.Vars))
	for k, v := range b.Vars {
		clone.Vars[k] = v
	}
	if b.PendingStore != nil {
		ps := *b.PendingStore
		clone.PendingStore = &ps
	}
	clone.dead = false
	return &clone
}

func (b *Branch) Current() *instr.Instruction {
	if b.PC < 0 || b.PC >= len(b.Program) {
		return nil
	}
	return b.Program[b.PC]
}

func (b *Branch) Advance() {
	b.PC++
}

// Done reports whether the branch has run off the end of its program —
// falling off the end behaves like an implicit kill_branch.
func (b *Branch) Done() bool {
	return b.dead || b.PC >= len(b.Program)
}

// Kill marks the branch dead. Callers that reach kill_branch with a
// PendingStore still active are expected to have already committed
// LastValue via CommitValue — kill_branch itself is the fallback commit
// point for a clause chain that forked but never produced a value of its
// own (e.g. `execute store result score @s r run say hi`).
func (b *Branch) Kill() {
	b.dead = true
}

// SkipTo sets PC to the absolute instruction index pc, passing over the
// instructions in between without executing them.
func (b *Branch) SkipTo(pc int) {
	b.PC = pc
}

// CommitValue records v as LastValue and, if a PendingStore clause is
// active, writes it into the target scoreboard slot and clears the
// pending store — a store clause only ever fires once, for the very next
// value-producing instruction after it.
func (b *Branch) CommitValue(w *World, v int64, success bool) {
	b.LastValue = v
	if b.PendingStore == nil {
		return
	}
	stored := v
	if b.PendingStore.Success {
		if success {
			stored = 1
		} else {
			stored = 0
		}
	}
	w.SetScore(b.PendingStore.Objective, b.PendingStore.Target, stored)
	b.PendingStore = nil
}
