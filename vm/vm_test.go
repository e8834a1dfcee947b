package vm_test

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wudi/mcfn/compiler"
	"github.com/wudi/mcfn/vm"
)

func buildMachine(t *testing.T, sources map[string]string) (*vm.Machine, *bytes.Buffer) {
	t.Helper()
	loader := func(name string) (string, error) {
		src, ok := sources[name]
		if !ok {
			return "", fmt.Errorf("no such function %s", name)
		}
		return src, nil
	}
	exe, err := compiler.CompileNamespace("demo", loader)
	require.NoError(t, err)

	var out bytes.Buffer
	m := vm.NewMachine(exe.Functions, 1, &out)
	return m, &out
}

func TestScoreboardArithmeticRoundTrip(t *testing.T) {
	m, _ := buildMachine(t, map[string]string{
		"main": "scoreboard players set @s n 7\nscoreboard players add @s n 5",
	})
	require.NoError(t, m.Run())
	require.Equal(t, int64(12), m.World.Score("n", "@s"))
}

func TestExecuteAsFanout(t *testing.T) {
	m, _ := buildMachine(t, map[string]string{
		"main": "execute as @e[type=zombie] run scoreboard players set @s k 1",
	})
	m.World.Entities = []*vm.Entity{
		{ID: "a", Type: "zombie", Position: [3]float64{0, 0, 0}},
		{ID: "b", Type: "zombie", Position: [3]float64{0, 0, 0}},
	}
	require.NoError(t, m.Run())
	require.Equal(t, int64(1), m.World.Score("k", "a"))
	require.Equal(t, int64(1), m.World.Score("k", "b"))
}

func TestNestedFunctionReturnValueCapturedByStore(t *testing.T) {
	m, _ := buildMachine(t, map[string]string{
		"main": `execute store result score @s r run function demo:add {"x":"3","y":"4"}`,
		"add": "$scoreboard players set p tmp $(x)\n" +
			"$scoreboard players add p tmp $(y)\n" +
			"return run scoreboard players get p tmp",
	})
	require.NoError(t, m.Run())
	require.Equal(t, int64(7), m.World.Score("r", "@s"))
}

func TestExecuteStoreCommitsZeroForNonValueProducingSubcommand(t *testing.T) {
	m, out := buildMachine(t, map[string]string{
		"main": `execute store result score @s r run say hi`,
	})
	require.NoError(t, m.Run())
	require.Contains(t, out.String(), "hi")
	require.Equal(t, int64(0), m.World.Score("r", "@s"))
}

func TestExecuteStoreCommitsScoreCountForListScores(t *testing.T) {
	m, _ := buildMachine(t, map[string]string{
		"main": "scoreboard players set @s x 1\n" +
			"scoreboard players set a x 2\n" +
			"execute store result score @s r run scoreboard players list @s",
	})
	require.NoError(t, m.Run())
	require.Equal(t, int64(1), m.World.Score("r", "@s"))
}

func TestExecuteStoreCommitsObjectiveCountForListObjectives(t *testing.T) {
	m, _ := buildMachine(t, map[string]string{
		"main": "scoreboard players set @s x 1\n" +
			"scoreboard players set @s y 2\n" +
			"execute store result score @s r run scoreboard objectives list",
	})
	require.NoError(t, m.Run())
	require.Equal(t, int64(2), m.World.Score("r", "@s"))
}

func TestSetScoreAddRemoveOperationDoNotProduceAValue(t *testing.T) {
	m, _ := buildMachine(t, map[string]string{
		"main": "execute store result score @s r run scoreboard players set @s x 5",
	})
	require.NoError(t, m.Run())
	require.Equal(t, int64(5), m.World.Score("x", "@s"))
	require.Equal(t, int64(0), m.World.Score("r", "@s"))
}

func TestConditionalSkip(t *testing.T) {
	sources := map[string]string{
		"main": "execute if score @s h matches 10..20 run say hi",
	}

	m, out := buildMachine(t, sources)
	m.World.SetScore("h", "@s", 15)
	require.NoError(t, m.Run())
	require.Contains(t, out.String(), "hi")

	m2, out2 := buildMachine(t, sources)
	m2.World.SetScore("h", "@s", 5)
	require.NoError(t, m2.Run())
	require.NotContains(t, out2.String(), "hi")
}

func TestTellrawRichText(t *testing.T) {
	payload := `[{"text":"v=","color":"yellow"},{"score":{"name":"@s","objective":"v"},"bold":true}]`
	m, out := buildMachine(t, map[string]string{
		"main": "tellraw @a " + payload,
	})
	m.World.SetScore("v", "@s", 42)
	require.NoError(t, m.Run())
	require.Contains(t, out.String(), "v=42")
	require.Contains(t, out.String(), "color=yellow")
	require.Contains(t, out.String(), "bold")
}

func TestUnlessScoreInvertsCondition(t *testing.T) {
	sources := map[string]string{
		"main": "execute unless score @s h matches 10..20 run say outside",
	}

	m, out := buildMachine(t, sources)
	m.World.SetScore("h", "@s", 5)
	require.NoError(t, m.Run())
	require.Contains(t, out.String(), "outside")

	m2, out2 := buildMachine(t, sources)
	m2.World.SetScore("h", "@s", 15)
	require.NoError(t, m2.Run())
	require.NotContains(t, out2.String(), "outside")
}

func TestScoreboardOperationSwap(t *testing.T) {
	m, _ := buildMachine(t, map[string]string{
		"main": "scoreboard players set a n 1\n" +
			"scoreboard players set b n 2\n" +
			"scoreboard players operation a n >< b n",
	})
	require.NoError(t, m.Run())
	require.Equal(t, int64(2), m.World.Score("n", "a"))
	require.Equal(t, int64(1), m.World.Score("n", "b"))
}

func TestSequentialTopLevelStatementsAfterExecute(t *testing.T) {
	m, _ := buildMachine(t, map[string]string{
		"main": "execute if score @s h matches 1.. run say first\n" +
			"scoreboard players set @s done 1",
	})
	m.World.SetScore("h", "@s", 1)
	require.NoError(t, m.Run())
	require.Equal(t, int64(1), m.World.Score("done", "@s"))
}
