package compiler_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wudi/mcfn/compiler"
	"github.com/wudi/mcfn/instr"
	"github.com/wudi/mcfn/opcodes"
)

func TestCompileExecuteChain(t *testing.T) {
	out, err := compiler.CompileFunction("execute as @a at @s run say hi")
	require.NoError(t, err)
	require.Len(t, out, 4)
	require.Equal(t, opcodes.ExecuteAs, out[0].Opcode)
	require.Equal(t, opcodes.ExecuteAt, out[1].Opcode)
	require.Equal(t, opcodes.Say, out[2].Opcode)
	require.Equal(t, opcodes.KillBranch, out[3].Opcode)
}

func TestCompileIfScoreMatches(t *testing.T) {
	out, err := compiler.CompileFunction("execute if score @s health matches 1..10 run say low")
	require.NoError(t, err)
	require.Equal(t, opcodes.IfScore, out[0].Opcode)
	// Trailing argument is the precomputed skip count to land past kill_branch.
	require.Equal(t, []string{"@s", "health", "matches", "1..10", "3"}, out[0].ArgStrings())
}

func TestCompileIfScoreRelational(t *testing.T) {
	out, err := compiler.CompileFunction("execute if score @s a > @s b run say more")
	require.NoError(t, err)
	require.Equal(t, []string{"@s", "a", ">", "@s", "b", "3"}, out[0].ArgStrings())
}

func TestCompileScoreboardPlayersSet(t *testing.T) {
	out, err := compiler.CompileFunction("scoreboard players set @s health 20")
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, opcodes.SetScore, out[0].Opcode)
	require.Equal(t, []string{"@s", "health", "20"}, out[0].ArgStrings())
}

func TestCompileTellraw(t *testing.T) {
	out, err := compiler.CompileFunction(`tellraw @a {"text":"hi"}`)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, opcodes.Tellraw, out[0].Opcode)
}

func TestCompileReturnRunNestsSubcommand(t *testing.T) {
	out, err := compiler.CompileFunction("return run scoreboard players get @s health")
	require.NoError(t, err)
	require.Equal(t, opcodes.ReturnRun, out[0].Opcode)
	require.Equal(t, opcodes.Get, out[1].Opcode)
}

func TestCompileFunctionCall(t *testing.T) {
	out, err := compiler.CompileFunction("function demo:tick $(a) $(b)")
	require.NoError(t, err)
	require.Equal(t, opcodes.RunFunc, out[0].Opcode)
	require.Equal(t, []string{"demo:tick", "$(a)", "$(b)"}, out[0].ArgStrings())
}

func TestCompileExecuteStoreResultScore(t *testing.T) {
	out, err := compiler.CompileFunction("execute store result score @s health run scoreboard players get @s health")
	require.NoError(t, err)
	require.Equal(t, opcodes.ExecuteStore, out[0].Opcode)
	require.Equal(t, []string{"result", "@s", "health", "3"}, out[0].ArgStrings())
	require.Equal(t, opcodes.Get, out[1].Opcode)
	require.Equal(t, opcodes.KillBranch, out[2].Opcode)
}

func TestCompileNamedFunctionCallReordersToCanonicalOrder(t *testing.T) {
	sources := map[string]string{
		"main": `function demo:add {"count": 3, "dist": "$(x)"}`,
		"add":  "$scoreboard players set @s sum $(dist)\n$scoreboard players add @s sum $(count)",
	}
	loader := func(name string) (string, error) {
		src, ok := sources[name]
		if !ok {
			return "", fmt.Errorf("no such function %s", name)
		}
		return src, nil
	}

	exe, err := compiler.CompileNamespace("demo", loader)
	require.NoError(t, err)

	mainBody, err := instr.DecodeBlock(exe.Functions["main"])
	require.NoError(t, err)
	require.Equal(t, opcodes.RunFunc, mainBody[0].Opcode)
	require.Equal(t, []string{"demo:add", "$(x)", "3"}, mainBody[0].ArgStrings())

	addBody, err := instr.DecodeBlock(exe.Functions["add"])
	require.NoError(t, err)
	require.Equal(t, []string{"@s", "sum", "$(a)"}, addBody[0].ArgStrings())
	require.Equal(t, []string{"@s", "sum", "$(b)"}, addBody[1].ArgStrings())
}

func TestCompileVerbatimDropsUnknownCommand(t *testing.T) {
	out, err := compiler.CompileFunction("gamerule doDaylightCycle false")
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestCompileNamespaceBuildsContainer(t *testing.T) {
	sources := map[string]string{
		"main": "say hello\nfunction demo:tick",
		"tick": "say tock",
	}
	loader := func(name string) (string, error) {
		src, ok := sources[name]
		if !ok {
			return "", fmt.Errorf("no such function %s", name)
		}
		return src, nil
	}

	exe, err := compiler.CompileNamespace("demo", loader)
	require.NoError(t, err)
	require.Equal(t, "demo", exe.Namespace)
	require.Contains(t, exe.Functions, "main")
	require.Contains(t, exe.Functions, "tick")
	require.NotEmpty(t, exe.Functions["tick"])
}

func TestCompileNamespaceRecordsDroppedInstructionDiagnostics(t *testing.T) {
	sources := map[string]string{
		"main": "say hi\ngamerule doDaylightCycle false",
	}
	loader := func(name string) (string, error) {
		src, ok := sources[name]
		if !ok {
			return "", fmt.Errorf("no such function %s", name)
		}
		return src, nil
	}

	sink := &compiler.CollectingSink{}
	exe, err := compiler.CompileNamespaceWithDiagnostics("demo", loader, sink)
	require.NoError(t, err)
	require.NotEmpty(t, exe.Functions["main"])

	require.Len(t, sink.Diagnostics, 1)
	require.Equal(t, compiler.SeveritySyntax, sink.Diagnostics[0].Severity)
	require.Equal(t, "main", sink.Diagnostics[0].Function)
}

func TestCompileNamespaceMissingFunctionIsFatal(t *testing.T) {
	loader := func(name string) (string, error) {
		return "", fmt.Errorf("not found")
	}
	_, err := compiler.CompileNamespace("demo", loader)
	require.Error(t, err)
}
