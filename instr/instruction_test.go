package instr_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/wudi/mcfn/instr"
	"github.com/wudi/mcfn/opcodes"
)

func TestRoundTrip(t *testing.T) {
	in := []*instr.Instruction{
		instr.New(opcodes.SetScore, "@s", "n", "7"),
		instr.New(opcodes.Add, "@s", "n", "5"),
		instr.New(opcodes.KillBranch),
	}

	block, err := instr.EncodeBlock(in)
	require.NoError(t, err)

	out, err := instr.DecodeBlock(block)
	require.NoError(t, err)
	require.Len(t, out, len(in))

	for i := range in {
		if diff := cmp.Diff(in[i].Opcode, out[i].Opcode); diff != "" {
			t.Errorf("opcode mismatch at %d (-want +got):\n%s", i, diff)
		}
		if diff := cmp.Diff(in[i].ArgStrings(), out[i].ArgStrings()); diff != "" {
			t.Errorf("args mismatch at %d (-want +got):\n%s", i, diff)
		}
	}
}

func TestEncodeRejectsOversizedArg(t *testing.T) {
	big := make([]byte, 256)
	in := instr.NewRaw(opcodes.Say, big)
	_, err := in.Encode(nil)
	require.ErrorIs(t, err, instr.ErrArgTooLong)
}

func TestEncodeRejectsTooManyArgs(t *testing.T) {
	args := make([]string, 256)
	for i := range args {
		args[i] = "x"
	}
	in := instr.New(opcodes.Say, args...)
	_, err := in.Encode(nil)
	require.ErrorIs(t, err, instr.ErrTooManyArgs)
}

func TestDecodeTruncated(t *testing.T) {
	_, err := instr.DecodeBlock([]byte{1, byte(opcodes.Say)}) // claims 1 arg, has none
	require.ErrorIs(t, err, instr.ErrTruncated)
}

func TestDecodeEmptyBlock(t *testing.T) {
	out, err := instr.DecodeBlock(nil)
	require.NoError(t, err)
	require.Empty(t, out)
}
