// Package opcodes defines the bytecode instruction set executed by the mcfn
// virtual machine.
package opcodes

import "fmt"

// Opcode identifies a single bytecode instruction. The wire value is the
// exact, consecutive ordering given in the format specification; it must
// never be renumbered without bumping the container format version.
type Opcode byte

const (
	_ Opcode = iota // zero is reserved; no instruction encodes as 0

	// Execution-context mutation, emitted while lowering an `execute` prefix chain.
	ExecuteAs
	ExecuteAt
	ExecuteStore
	Positioned
	IfBlock
	IfEntity
	IfScore
	UnlessBlock
	UnlessEntity
	UnlessScore

	// Scoreboard operations.
	Add
	Remove
	ListScores
	ListObjectives
	SetScore
	Get
	Operation
	Reset

	// Output.
	Say
	Tellraw

	// Blocks.
	Setblock
	Fill
	Clone

	// Data.
	GetBlock
	GetEntity
	MergeBlock
	MergeEntity

	// Random.
	Random

	// Entities.
	Summon
	Kill

	// Tags.
	TagAdd
	TagRemove

	// Control flow / returns.
	Return
	ReturnFail
	ReturnRun
	KillBranch
	RunFunc
)

// names mirrors the enumeration order above; an earlier version of this
// enumeration (format version 3) assigned Setblock and ListScores the same
// wire value 12. Format version 4 is this corrected, consecutive assignment;
// loaders must reject any executable that declares a version older than 4.
var names = [...]string{
	ExecuteAs:      "execute_as",
	ExecuteAt:      "execute_at",
	ExecuteStore:   "execute_store",
	Positioned:     "positioned",
	IfBlock:        "if_block",
	IfEntity:       "if_entity",
	IfScore:        "if_score",
	UnlessBlock:    "unless_block",
	UnlessEntity:   "unless_entity",
	UnlessScore:    "unless_score",
	Add:            "add",
	Remove:         "remove",
	ListScores:     "list_scores",
	ListObjectives: "list_objectives",
	SetScore:       "set_score",
	Get:            "get",
	Operation:      "operation",
	Reset:          "reset",
	Say:            "say",
	Tellraw:        "tellraw",
	Setblock:       "setblock",
	Fill:           "fill",
	Clone:          "clone",
	GetBlock:       "get_block",
	GetEntity:      "get_entity",
	MergeBlock:     "merge_block",
	MergeEntity:    "merge_entity",
	Random:         "random",
	Summon:         "summon",
	Kill:           "kill",
	TagAdd:         "tag_add",
	TagRemove:      "tag_remove",
	Return:         "return_",
	ReturnFail:     "return_fail",
	ReturnRun:      "return_run",
	KillBranch:     "kill_branch",
	RunFunc:        "run_func",
}

var byName map[string]Opcode

func init() {
	byName = make(map[string]Opcode, len(names))
	for op, name := range names {
		if name != "" {
			byName[name] = Opcode(op)
		}
	}
}

// String returns the lowercase mnemonic used both by the compiler's
// verbatim-opcode fallback and by the disassembler.
func (op Opcode) String() string {
	if int(op) < len(names) && names[op] != "" {
		return names[op]
	}
	return fmt.Sprintf("UNKNOWN(%d)", byte(op))
}

// Lookup resolves a lowercase mnemonic (e.g. "run_func") to its Opcode. The
// compiler's verbatim fallback goes through this; an unknown mnemonic
// reports ok=false so the caller can drop the instruction per the
// compile-syntax error policy.
func Lookup(name string) (Opcode, bool) {
	op, ok := byName[name]
	return op, ok
}

// Known reports whether op is part of the enumeration above.
func (op Opcode) Known() bool {
	return int(op) > 0 && int(op) < len(names) && names[op] != ""
}
