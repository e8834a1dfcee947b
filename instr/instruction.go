// Package instr implements the length-prefixed wire encoding of a single
// bytecode instruction, the "packed instruction" grammar of the container
// format: an argument count, an opcode byte, and that many length-prefixed
// argument byte strings.
package instr

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/wudi/mcfn/opcodes"
)

// MaxArgLen and MaxArgs are the compile-budget ceilings from the format
// specification: a one-byte length prefix bounds both the argument count
// and the length of any single argument.
const (
	MaxArgLen = 255
	MaxArgs   = 255
)

var (
	// ErrTooManyArgs is returned by Encode when an instruction carries more
	// than MaxArgs arguments.
	ErrTooManyArgs = errors.New("instr: too many arguments")
	// ErrArgTooLong is returned by Encode when a single argument exceeds
	// MaxArgLen bytes.
	ErrArgTooLong = errors.New("instr: argument too long")
	// ErrTruncated is returned by Decode when the stream ends in the middle
	// of an instruction.
	ErrTruncated = errors.New("instr: truncated instruction stream")
)

// Instruction is the decoded form of one packed instruction: an opcode plus
// its ordered, opaque byte-string arguments. Most arguments are UTF-8 text;
// the tellraw payload argument is a structured rich-text blob reparsed by
// the richtext package.
type Instruction struct {
	Opcode opcodes.Opcode
	Args   [][]byte
}

// New builds an Instruction from string arguments, the common case for the
// compiler's lowering passes.
func New(op opcodes.Opcode, args ...string) *Instruction {
	raw := make([][]byte, len(args))
	for i, a := range args {
		raw[i] = []byte(a)
	}
	return &Instruction{Opcode: op, Args: raw}
}

// NewRaw builds an Instruction from already-encoded byte arguments, used for
// the tellraw rich-text payload which is binary, not UTF-8 text.
func NewRaw(op opcodes.Opcode, args ...[]byte) *Instruction {
	return &Instruction{Opcode: op, Args: args}
}

// ArgStrings returns each argument's bytes converted directly to a string;
// an argument that is not valid UTF-8 (such as a binary tellraw payload) is
// carried through byte for byte, with no re-encoding.
func (in *Instruction) ArgStrings() []string {
	out := make([]string, len(in.Args))
	for i, a := range in.Args {
		out[i] = string(a)
	}
	return out
}

// Encode appends the wire form of in to buf and returns the extended slice.
func (in *Instruction) Encode(buf []byte) ([]byte, error) {
	if len(in.Args) > MaxArgs {
		return nil, fmt.Errorf("%w: %d", ErrTooManyArgs, len(in.Args))
	}
	buf = append(buf, byte(len(in.Args)), byte(in.Opcode))
	for _, arg := range in.Args {
		if len(arg) > MaxArgLen {
			return nil, fmt.Errorf("%w: %d bytes", ErrArgTooLong, len(arg))
		}
		buf = append(buf, byte(len(arg)))
		buf = append(buf, arg...)
	}
	return buf, nil
}

// EncodeBlock encodes an ordered sequence of instructions into one function
// instruction block, in source order.
func EncodeBlock(instrs []*Instruction) ([]byte, error) {
	var buf []byte
	for _, in := range instrs {
		var err error
		buf, err = in.Encode(buf)
		if err != nil {
			return nil, err
		}
	}
	return buf, nil
}

// Decode reads one packed instruction from r. It returns io.EOF (unwrapped)
// only when the stream ends cleanly between instructions; any other
// truncation is reported as ErrTruncated.
func Decode(r *bytes.Reader) (*Instruction, error) {
	argCount, err := r.ReadByte()
	if err != nil {
		return nil, io.EOF
	}
	opByte, err := r.ReadByte()
	if err != nil {
		return nil, ErrTruncated
	}

	in := &Instruction{Opcode: opcodes.Opcode(opByte), Args: make([][]byte, 0, argCount)}
	for i := 0; i < int(argCount); i++ {
		argLen, err := r.ReadByte()
		if err != nil {
			return nil, ErrTruncated
		}
		arg := make([]byte, argLen)
		if _, err := io.ReadFull(r, arg); err != nil {
			return nil, ErrTruncated
		}
		in.Args = append(in.Args, arg)
	}
	return in, nil
}

// DecodeBlock decodes a full function instruction block back into its
// instruction sequence.
func DecodeBlock(data []byte) ([]*Instruction, error) {
	r := bytes.NewReader(data)
	var out []*Instruction
	for {
		in, err := Decode(r)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, in)
	}
}

// String renders an instruction for disassembly in "opcode arg1 arg2 …"
// form; tellraw arguments keep their raw encoded form here — the disasm
// package substitutes the reparsed rich-text rendering.
func (in *Instruction) String() string {
	s := in.Opcode.String()
	for _, a := range in.ArgStrings() {
		s += " " + a
	}
	return s
}
