// Package disasm renders a compiled container.Executable back into the
// human-readable textual form the CLI's "disassemble" action prints,
// grounded on the original tool's disassembler: a header section followed
// by one "## Function: name ##" block per function, each instruction on
// its own line with tellraw arguments reparsed into rich-text dump form
// rather than printed as a raw encoded blob.
package disasm

import (
	"fmt"
	"sort"
	"strings"

	"github.com/wudi/mcfn/container"
	"github.com/wudi/mcfn/instr"
	"github.com/wudi/mcfn/opcodes"
	"github.com/wudi/mcfn/richtext"
)

// Executable renders exe, including its container header, in the order
// function names sort (the original's function table has no stable
// iteration order of its own; sorting keeps output deterministic).
func Executable(exe *container.Executable) string {
	var b strings.Builder
	b.WriteString("####### Executable Disassembly #######\n\n")
	b.WriteString("### Executable Header ###\n")
	fmt.Fprintf(&b, "Magic: %s\n", string(container.Magic[:]))
	fmt.Fprintf(&b, "Version: %d\n", container.Version)
	fmt.Fprintf(&b, "Namespace: %s\n", exe.Namespace)
	fmt.Fprintf(&b, "Function Count: %d\n", len(exe.Functions))
	b.WriteString("\n### Functions ###\n")

	names := make([]string, 0, len(exe.Functions))
	for name := range exe.Functions {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		block := exe.Functions[name]
		fmt.Fprintf(&b, "## Function: %s ##\n", name)
		fmt.Fprintf(&b, "  Length: %d bytes\n", len(block))
		b.WriteString("  Disassembly:\n")
		body, err := Block(block)
		if err != nil {
			fmt.Fprintf(&b, "    ;; %v\n", err)
			continue
		}
		for _, line := range strings.Split(body, "\n") {
			b.WriteString("    ")
			b.WriteString(line)
			b.WriteString("\n")
		}
	}
	return b.String()
}

// Block renders one function's packed instruction block as one "opcode
// arg1 arg2 ..." line per instruction.
func Block(block []byte) (string, error) {
	instrs, err := instr.DecodeBlock(block)
	if err != nil {
		return "", err
	}
	lines := make([]string, 0, len(instrs))
	for _, in := range instrs {
		lines = append(lines, Instruction(in))
	}
	return strings.Join(lines, "\n"), nil
}

// Instruction renders a single instruction, substituting the rich-text
// dump form for a tellraw payload argument instead of its raw bytes.
func Instruction(in *instr.Instruction) string {
	s := in.Opcode.String()
	args := in.ArgStrings()
	for i, a := range args {
		if in.Opcode == opcodes.Tellraw && i == len(args)-1 {
			if comp, err := richtext.Decode([]byte(a)); err == nil {
				s += " " + comp.Dump()
				continue
			}
		}
		s += " " + a
	}
	return s
}
