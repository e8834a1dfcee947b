package preprocess_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wudi/mcfn/preprocess"
)

func TestDefineAndSubstitution(t *testing.T) {
	src := "@define GREETING: say hello\nfunction ?GREETING"
	out, err := preprocess.Preprocess(src)
	require.NoError(t, err)
	require.Equal(t, "function say hello", strings.TrimSpace(out))
}

func TestRepeatExpandsRange(t *testing.T) {
	src := "@repeat 3: say tick <i>"
	out, err := preprocess.Preprocess(src)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Equal(t, []string{"say tick 0", "say tick 1", "say tick 2"}, lines)
}

func TestRepeatWithStartStopStep(t *testing.T) {
	src := "@repeat 2,8,3: say n <i>"
	out, err := preprocess.Preprocess(src)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Equal(t, []string{"say n 2", "say n 5"}, lines)
}

func TestDoubleHashIsLiteral(t *testing.T) {
	out, err := preprocess.Preprocess(`say ##not a comment`)
	require.NoError(t, err)
	require.Equal(t, "say #not a comment", strings.TrimSpace(out))
}

func TestRealCommentIsStripped(t *testing.T) {
	out, err := preprocess.Preprocess(`say hi # trailing note`)
	require.NoError(t, err)
	require.Equal(t, "say hi", strings.TrimSpace(out))
}

func TestBackslashContinuation(t *testing.T) {
	out, err := preprocess.Preprocess("say part one \\\npart two")
	require.NoError(t, err)
	require.Equal(t, "say part one part two", strings.TrimSpace(out))
}

func TestIndentChainFlattensIntoOneLine(t *testing.T) {
	src := "execute as @a\n    at @s\n        run say hi"
	out, err := preprocess.Preprocess(src)
	require.NoError(t, err)
	require.Equal(t, "execute as @a at @s run say hi", strings.TrimSpace(out))
}

func TestIndentChainEmitsEachCompleteBranch(t *testing.T) {
	src := "execute as @a\n    run say one\nexecute as @a\n    run say two"
	out, err := preprocess.Preprocess(src)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Equal(t, []string{"execute as @a run say one", "execute as @a run say two"}, lines)
}

func TestBlankAndCommentOnlyLinesDropped(t *testing.T) {
	src := "say hi\n\n# a whole comment line\nsay bye"
	out, err := preprocess.Preprocess(src)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Equal(t, []string{"say hi", "say bye"}, lines)
}
