// Package vm executes the compiled instruction blocks a container.Executable
// carries: a cooperative, round-robin scheduler over independently forking
// Branch contexts, the shape `execute as`/`at` selector fanout needs.
package vm

import (
	"fmt"
	"io"
	"math/rand"
	"strconv"
	"strings"

	"github.com/wudi/mcfn/instr"
	"github.com/wudi/mcfn/opcodes"
	"github.com/wudi/mcfn/richtext"
	"github.com/wudi/mcfn/varname"
)

// DebugHook is polled once per scheduler step, before the branch's current
// instruction executes. An empty return busy-waits (the hook is invoked
// again without the VM making progress) — the shape an attached interactive
// debugger's single-step gate needs. "quit" lets the current instruction run
// once more and then halts the whole machine; any other non-empty string
// just lets execution continue.
type DebugHook func(branch *Branch) string

// Machine is one executing namespace: its shared World plus the ready set of
// independently scheduled branches.
type Machine struct {
	World     *World
	Functions map[string][]byte

	decoded map[string][]*instr.Instruction

	ready    []*Branch
	nextID   int
	Out      io.Writer
	Debug    DebugHook
	quitting bool
}

// NewMachine builds a Machine over the given namespace functions, with a
// fresh random source seeded explicitly (not time-based) so scheduling and
// the `random` opcode stay reproducible across runs, the same determinism
// the scheduling model itself relies on.
func NewMachine(functions map[string][]byte, seed int64, out io.Writer) *Machine {
	return &Machine{
		Functions: functions,
		World:     NewWorld(rand.New(rand.NewSource(seed))),
		decoded:   make(map[string][]*instr.Instruction),
		Out:       out,
	}
}

func (m *Machine) program(name string) ([]*instr.Instruction, error) {
	if p, ok := m.decoded[name]; ok {
		return p, nil
	}
	raw, ok := m.Functions[name]
	if !ok {
		return nil, &RuntimeError{Type: ErrFunctionNotFound, Function: name}
	}
	decoded, err := instr.DecodeBlock(raw)
	if err != nil {
		return nil, fmt.Errorf("vm: decoding function %q: %w", name, err)
	}
	m.decoded[name] = decoded
	return decoded, nil
}

func (m *Machine) newBranch(fn string, program []*instr.Instruction, executor *Entity, position [3]float64) *Branch {
	b := NewBranch(m.nextID, fn, program, executor, position)
	m.nextID++
	return b
}

// Run starts "main" as the server's own branch and drains the ready set.
func (m *Machine) Run() error {
	// The server's own scoreboard identity is conventionally "@s": nothing
	// ever selects the server as a distinct entity, so its target token and
	// its resolved id are the same string.
	server := &Entity{ID: "@s", Type: "minecraft:command_block"}
	program, err := m.program("main")
	if err != nil {
		return err
	}
	branch := m.newBranch("main", program, server, [3]float64{})
	m.ready = append(m.ready, branch)
	return m.drain()
}

func (m *Machine) drain() error {
	for len(m.ready) > 0 && !m.quitting {
		branch := m.ready[0]
		m.ready = m.ready[1:]

		if m.Debug != nil {
			for {
				verdict := m.Debug(branch)
				if verdict == "" {
					continue
				}
				if verdict == "quit" {
					m.quitting = true
				}
				break
			}
		}

		cont, err := m.step(branch)
		if err != nil {
			return err
		}
		if cont {
			m.ready = append(m.ready, branch)
		}
	}
	return nil
}

// step executes exactly one instruction on branch. It returns whether the
// branch should be rescheduled.
func (m *Machine) step(branch *Branch) (bool, error) {
	if branch.PC >= len(branch.Program) {
		m.finishTopLevel(branch, 0, true)
		return false, nil
	}

	in := branch.Current()
	args := m.substitute(branch, in.ArgStrings())
	wasReturnRun := branch.AfterReturnRun

	switch in.Opcode {
	case opcodes.ExecuteAs, opcodes.ExecuteAt:
		if err := m.execClause(branch, in.Opcode, args); err != nil {
			return false, err
		}
		return true, nil

	case opcodes.Positioned:
		if err := m.execPositioned(branch, args); err != nil {
			return false, err
		}
		return true, nil

	case opcodes.IfBlock, opcodes.IfEntity, opcodes.IfScore, opcodes.UnlessBlock, opcodes.UnlessEntity, opcodes.UnlessScore:
		if err := m.execCondition(branch, in.Opcode, args); err != nil {
			return false, err
		}
		return true, nil

	case opcodes.ExecuteStore:
		if err := m.execStore(branch, args); err != nil {
			return false, err
		}
		return true, nil

	case opcodes.KillBranch:
		branch.CommitValue(m.World, branch.LastValue, true)
		branch.Kill()
		return false, nil

	case opcodes.RunFunc:
		return m.execRunFunc(branch, args)

	case opcodes.Return:
		value := int64(0)
		if len(args) > 0 {
			if v, err := strconv.ParseInt(args[0], 10, 64); err == nil {
				value = v
			}
		}
		m.finishTopLevel(branch, value, true)
		return false, nil

	case opcodes.ReturnFail:
		// Per the executable format's return_fail contract: always commits
		// 0 with success=false to any pending store, regardless of the
		// fail-status argument's own value.
		m.finishTopLevel(branch, 0, false)
		return false, nil

	case opcodes.ReturnRun:
		branch.AfterReturnRun = true
		branch.Advance()
		return true, nil

	default:
		if err := m.execSimple(branch, in.Opcode, args); err != nil {
			return false, err
		}
	}

	if wasReturnRun {
		branch.AfterReturnRun = false
		m.finishTopLevel(branch, branch.LastValue, true)
		return false, nil
	}

	branch.Advance()
	return true, nil
}

// finishTopLevel ends branch's top-level lineage (natural end-of-program,
// an explicit return, or a return_run's inline subcommand), committing
// value/success to whatever the caller's pending store captured at call
// time, and reactivates the caller.
func (m *Machine) finishTopLevel(branch *Branch, value int64, success bool) {
	branch.CommitValue(m.World, value, success)
	branch.Kill()
	if branch.Caller == nil {
		return
	}
	if branch.CallerPendingStore != nil {
		stored := value
		if branch.CallerPendingStore.Success {
			stored = 0
			if success {
				stored = 1
			}
		}
		m.World.SetScore(branch.CallerPendingStore.Objective, branch.CallerPendingStore.Target, stored)
	}
	branch.Caller.LastValue = value
	branch.Caller.Advance()
	m.ready = append(m.ready, branch.Caller)
}

// substitute replaces every `$(name)` reference in args with the branch's
// bound variable value.
func (m *Machine) substitute(branch *Branch, args []string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = substituteOne(branch, a)
	}
	return out
}

func substituteOne(branch *Branch, s string) string {
	if !strings.Contains(s, "$(") {
		return s
	}
	var buf strings.Builder
	for {
		start := strings.Index(s, "$(")
		if start < 0 {
			buf.WriteString(s)
			break
		}
		end := strings.Index(s[start:], ")")
		if end < 0 {
			buf.WriteString(s)
			break
		}
		end += start
		buf.WriteString(s[:start])
		name := s[start+2 : end]
		if idx, err := varname.ToIndex(name); err == nil {
			if v, ok := branch.Vars[idx]; ok {
				buf.WriteString(v)
			}
		}
		s = s[end+1:]
	}
	return buf.String()
}

func (m *Machine) execClause(branch *Branch, op opcodes.Opcode, args []string) error {
	if len(args) < 2 {
		return &RuntimeError{Type: ErrInvalidRange, Function: branch.Function, BranchID: branch.ID, Opcode: op, Message: "missing clause arguments"}
	}
	selector := args[0]
	skip, err := strconv.Atoi(args[len(args)-1])
	if err != nil {
		return err
	}

	entities, err := m.World.EvalTargetSelector(branch, selector)
	if err != nil {
		return err
	}
	for _, e := range entities {
		fork := branch.Fork(m.nextID)
		m.nextID++
		fork.PC = branch.PC + 1
		if op == opcodes.ExecuteAs {
			fork.Executor = e
		} else {
			fork.Position = e.Position
		}
		m.ready = append(m.ready, fork)
	}
	branch.PC += skip
	return nil
}

func (m *Machine) execPositioned(branch *Branch, args []string) error {
	if len(args) < 4 {
		return fmt.Errorf("vm: positioned requires x y z and a skip count")
	}
	skip, err := strconv.Atoi(args[3])
	if err != nil {
		return err
	}
	pos, err := EvalPosition(branch, args[0], args[1], args[2])
	if err != nil {
		return err
	}
	fork := branch.Fork(m.nextID)
	m.nextID++
	fork.PC = branch.PC + 1
	fork.Position = pos
	m.ready = append(m.ready, fork)
	branch.PC += skip
	return nil
}

func (m *Machine) execStore(branch *Branch, args []string) error {
	if len(args) < 4 {
		return fmt.Errorf("vm: execute_store requires kind target objective and a skip count")
	}
	skip, err := strconv.Atoi(args[3])
	if err != nil {
		return err
	}
	target, err := m.resolveTarget(branch, args[1])
	if err != nil {
		return err
	}
	fork := branch.Fork(m.nextID)
	m.nextID++
	fork.PC = branch.PC + 1
	fork.PendingStore = &PendingStore{Success: args[0] == "success", Target: target, Objective: args[2]}
	m.ready = append(m.ready, fork)
	branch.PC += skip
	return nil
}

// execCondition evaluates an if/unless clause. The "if" family forks (and
// continues) only when its condition is TRUE; the "unless" family forks
// only when its condition is FALSE — both deferring to the same skip-ahead
// mechanics as every other clause for the failing case.
func (m *Machine) execCondition(branch *Branch, op opcodes.Opcode, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("vm: condition clause missing arguments")
	}
	skip, err := strconv.Atoi(args[len(args)-1])
	if err != nil {
		return err
	}
	body := args[:len(args)-1]

	var holds bool
	switch op {
	case opcodes.IfBlock, opcodes.UnlessBlock:
		holds, err = m.evalBlockCondition(branch, body)
	case opcodes.IfEntity, opcodes.UnlessEntity:
		holds, err = m.evalEntityCondition(branch, body)
	case opcodes.IfScore, opcodes.UnlessScore:
		holds, err = m.evalScoreCondition(branch, body)
	}
	if err != nil {
		return err
	}

	wantTrue := op == opcodes.IfBlock || op == opcodes.IfEntity || op == opcodes.IfScore
	if holds == wantTrue {
		fork := branch.Fork(m.nextID)
		m.nextID++
		fork.PC = branch.PC + 1
		m.ready = append(m.ready, fork)
	}
	branch.PC += skip
	return nil
}

func (m *Machine) evalBlockCondition(branch *Branch, args []string) (bool, error) {
	if len(args) < 4 {
		return false, fmt.Errorf("vm: if_block requires x y z block")
	}
	pos, err := EvalPosition(branch, args[0], args[1], args[2])
	if err != nil {
		return false, err
	}
	key := [3]int{int(pos[0]), int(pos[1]), int(pos[2])}
	return m.World.Blocks[key] == args[3], nil
}

func (m *Machine) evalEntityCondition(branch *Branch, args []string) (bool, error) {
	if len(args) < 1 {
		return false, fmt.Errorf("vm: if_entity requires a selector")
	}
	entities, err := m.World.EvalTargetSelector(branch, args[0])
	if err != nil {
		return false, err
	}
	return len(entities) > 0, nil
}

func (m *Machine) evalScoreCondition(branch *Branch, args []string) (bool, error) {
	if len(args) < 4 {
		return false, fmt.Errorf("vm: if_score requires at least 4 arguments")
	}
	target, err := m.resolveTarget(branch, args[0])
	if err != nil {
		return false, err
	}
	left := m.World.Score(args[1], target)
	if args[2] == "matches" {
		return MatchesRange(args[3], left)
	}
	if len(args) < 5 {
		return false, fmt.Errorf("vm: if_score relational form requires a right-hand selector and objective")
	}
	rhsTarget, err := m.resolveTarget(branch, args[3])
	if err != nil {
		return false, err
	}
	right := m.World.Score(args[4], rhsTarget)
	switch args[2] {
	case ">":
		return left > right, nil
	case "<":
		return left < right, nil
	case ">=":
		return left >= right, nil
	case "<=":
		return left <= right, nil
	case "==":
		return left == right, nil
	case "!=":
		return left != right, nil
	default:
		return false, fmt.Errorf("vm: unsupported score comparison operator %q", args[2])
	}
}

func (m *Machine) execRunFunc(branch *Branch, args []string) (bool, error) {
	if len(args) < 1 {
		return false, fmt.Errorf("vm: run_func requires a function name")
	}
	name := strings.TrimPrefix(args[0], namespacePrefixOf(args[0]))
	program, err := m.program(name)
	if err != nil {
		return false, err
	}

	callee := m.newBranch(name, program, branch.Executor, branch.Position)
	callee.Caller = branch
	callee.CallerPendingStore = branch.PendingStore
	branch.PendingStore = nil
	for i, v := range args[1:] {
		callee.Vars[i] = v
	}
	m.ready = append(m.ready, callee)
	return false, nil // caller is suspended until the callee finishes
}

func namespacePrefixOf(name string) string {
	if idx := strings.IndexByte(name, ':'); idx >= 0 {
		return name[:idx+1]
	}
	return ""
}

// resolveTarget resolves a scoreboard target token through the same
// selector pipeline `execute as`/`at` use, taking the first match's id —
// the thing that lets `@s` mean "whichever entity is currently executing"
// after an `execute as` fanout, while still reading back as the literal
// token for the server's own top-level context (whose id is "@s").
func (m *Machine) resolveTarget(branch *Branch, token string) (string, error) {
	entities, err := m.World.EvalTargetSelector(branch, token)
	if err != nil {
		return "", err
	}
	if len(entities) == 0 {
		return "", fmt.Errorf("%w: %s", ErrSelectorEmpty, token)
	}
	return entities[0].ID, nil
}

// execSimple handles every opcode with no control-flow effect: it always
// just advances the program counter by one afterward.
func (m *Machine) execSimple(branch *Branch, op opcodes.Opcode, args []string) error {
	w := m.World
	switch op {
	case opcodes.Add:
		return m.scoreArith(branch, args, func(cur, delta int64) int64 { return cur + delta })
	case opcodes.Remove:
		return m.scoreArith(branch, args, func(cur, delta int64) int64 { return cur - delta })
	case opcodes.SetScore:
		if len(args) < 3 {
			return fmt.Errorf("vm: set_score requires target objective value")
		}
		target, err := m.resolveTarget(branch, args[0])
		if err != nil {
			return err
		}
		v, err := strconv.ParseInt(args[2], 10, 64)
		if err != nil {
			return err
		}
		w.SetScore(args[1], target, v)
		return nil
	case opcodes.Get:
		if len(args) < 2 {
			return fmt.Errorf("vm: get requires target objective")
		}
		target, err := m.resolveTarget(branch, args[0])
		if err != nil {
			return err
		}
		v := w.Score(args[1], target)
		branch.CommitValue(w, v, true)
		return nil
	case opcodes.Reset:
		if len(args) < 1 {
			return fmt.Errorf("vm: reset requires a target")
		}
		for obj := range w.Scoreboards {
			if len(args) >= 2 && obj != args[1] {
				continue
			}
			delete(w.Scoreboards[obj], args[0])
		}
		return nil
	case opcodes.ListScores:
		if len(args) < 1 {
			return fmt.Errorf("vm: list_scores requires a target")
		}
		target, err := m.resolveTarget(branch, args[0])
		if err != nil {
			return err
		}
		branch.CommitValue(w, w.ScoreCount(target), true)
		return nil
	case opcodes.ListObjectives:
		branch.CommitValue(w, int64(len(w.Scoreboards)), true)
		return nil
	case opcodes.Operation:
		return m.scoreOperation(branch, args)
	case opcodes.Say:
		fmt.Fprintln(m.Out, strings.Join(args, " "))
		return nil
	case opcodes.Tellraw:
		return m.tellraw(args)
	case opcodes.Setblock:
		return m.setblock(branch, args)
	case opcodes.Fill:
		return m.fill(branch, args)
	case opcodes.Clone:
		return m.clone(branch, args)
	case opcodes.GetBlock:
		if len(args) < 3 {
			return fmt.Errorf("vm: get_block requires x y z")
		}
		pos, err := EvalPosition(branch, args[0], args[1], args[2])
		if err != nil {
			return err
		}
		key := [3]int{int(pos[0]), int(pos[1]), int(pos[2])}
		_ = w.Blocks[key]
		return nil
	case opcodes.GetEntity, opcodes.MergeBlock, opcodes.MergeEntity:
		// NBT read/merge against the minimal world model: a no-op; the
		// selector/coordinate arguments are not evaluated.
		return nil
	case opcodes.Random:
		return m.random(branch, args)
	case opcodes.Summon:
		return m.summon(branch, args)
	case opcodes.Kill:
		return m.kill(args)
	case opcodes.TagAdd:
		return m.tagAdd(branch, args)
	case opcodes.TagRemove:
		return m.tagRemove(branch, args)
	default:
		return &RuntimeError{Type: ErrUnknownOpcode, Function: branch.Function, BranchID: branch.ID, Opcode: op}
	}
}

func (m *Machine) scoreArith(branch *Branch, args []string, apply func(cur, delta int64) int64) error {
	if len(args) < 3 {
		return fmt.Errorf("vm: scoreboard arithmetic requires target objective value")
	}
	target, err := m.resolveTarget(branch, args[0])
	if err != nil {
		return err
	}
	delta, err := strconv.ParseInt(args[2], 10, 64)
	if err != nil {
		return err
	}
	w := m.World
	cur := w.Score(args[1], target)
	next := apply(cur, delta)
	w.SetScore(args[1], target, next)
	return nil
}

// scoreOperation implements `scoreboard players operation <t> <o> <op> <s> <so>`.
// The `><` swap exchanges the two operands; a correct swap writes the
// original target value into the source, which requires reading the
// target's value before either side is overwritten.
func (m *Machine) scoreOperation(branch *Branch, args []string) error {
	if len(args) < 5 {
		return fmt.Errorf("vm: operation requires target objective op source sourceObjective")
	}
	w := m.World
	objective, op, sourceObj := args[1], args[2], args[4]
	target, err := m.resolveTarget(branch, args[0])
	if err != nil {
		return err
	}
	source, err := m.resolveTarget(branch, args[3])
	if err != nil {
		return err
	}
	t := w.Score(objective, target)
	s := w.Score(sourceObj, source)

	var result int64
	switch op {
	case "=":
		result = s
	case "+=":
		result = t + s
	case "-=":
		result = t - s
	case "*=":
		result = t * s
	case "/=":
		if s == 0 {
			return fmt.Errorf("vm: division by zero in scoreboard operation")
		}
		result = floorDiv(t, s)
	case "%=":
		if s == 0 {
			return fmt.Errorf("vm: modulo by zero in scoreboard operation")
		}
		result = floorMod(t, s)
	case "<":
		result = min64(t, s)
	case ">":
		result = max64(t, s)
	case "><":
		w.SetScore(objective, target, s)
		w.SetScore(sourceObj, source, t)
		return nil
	default:
		return fmt.Errorf("vm: unsupported scoreboard operation %q", op)
	}
	w.SetScore(objective, target, result)
	return nil
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func floorMod(a, b int64) int64 {
	r := a % b
	if r != 0 && ((r < 0) != (b < 0)) {
		r += b
	}
	return r
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func (m *Machine) tellraw(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("vm: tellraw requires an encoded payload")
	}
	comp, err := richtext.Decode([]byte(args[len(args)-1]))
	if err != nil {
		return fmt.Errorf("vm: tellraw: %w", err)
	}
	fmt.Fprintln(m.Out, m.renderComponent(comp))
	fmt.Fprintln(m.Out, comp.Dump())
	return nil
}

// renderComponent produces the plain-text rendering of a decoded tellraw
// payload, substituting each Score component's live scoreboard value — the
// formatted-text contract only fixes the boundary behavior (style resets at
// component edges), leaving the rendering mechanism itself
// implementation-defined; this one is plain text with no ANSI escapes.
func (m *Machine) renderComponent(c *richtext.Component) string {
	switch c.Kind {
	case richtext.Raw:
		return c.RawText
	case richtext.Score:
		return strconv.FormatInt(m.World.Score(c.Objective, c.Name), 10)
	case richtext.Text:
		return c.Text
	case richtext.Array:
		var b strings.Builder
		for i := range c.Children {
			b.WriteString(m.renderComponent(&c.Children[i]))
		}
		return b.String()
	default:
		return ""
	}
}

func (m *Machine) setblock(branch *Branch, args []string) error {
	if len(args) < 4 {
		return fmt.Errorf("vm: setblock requires x y z block")
	}
	pos, err := EvalPosition(branch, args[0], args[1], args[2])
	if err != nil {
		return err
	}
	m.World.Blocks[blockKey(pos)] = args[3]
	return nil
}

func (m *Machine) fill(branch *Branch, args []string) error {
	if len(args) < 7 {
		return fmt.Errorf("vm: fill requires x1 y1 z1 x2 y2 z2 block")
	}
	from, err := EvalPosition(branch, args[0], args[1], args[2])
	if err != nil {
		return err
	}
	to, err := EvalPosition(branch, args[3], args[4], args[5])
	if err != nil {
		return err
	}
	block := args[6]
	forEachBlockInBox(from, to, func(key [3]int) {
		m.World.Blocks[key] = block
	})
	return nil
}

func (m *Machine) clone(branch *Branch, args []string) error {
	if len(args) < 9 {
		return fmt.Errorf("vm: clone requires x1 y1 z1 x2 y2 z2 dx dy dz")
	}
	from, err := EvalPosition(branch, args[0], args[1], args[2])
	if err != nil {
		return err
	}
	to, err := EvalPosition(branch, args[3], args[4], args[5])
	if err != nil {
		return err
	}
	dest, err := EvalPosition(branch, args[6], args[7], args[8])
	if err != nil {
		return err
	}
	offset := [3]int{int(dest[0] - from[0]), int(dest[1] - from[1]), int(dest[2] - from[2])}
	var keys [][3]int
	forEachBlockInBox(from, to, func(key [3]int) { keys = append(keys, key) })
	blocks := make(map[[3]int]string, len(keys))
	for _, key := range keys {
		if v, ok := m.World.Blocks[key]; ok {
			blocks[key] = v
		}
	}
	for key, v := range blocks {
		dst := [3]int{key[0] + offset[0], key[1] + offset[1], key[2] + offset[2]}
		m.World.Blocks[dst] = v
	}
	return nil
}

func forEachBlockInBox(from, to [3]float64, fn func(key [3]int)) {
	minX, maxX := orderInt(int(from[0]), int(to[0]))
	minY, maxY := orderInt(int(from[1]), int(to[1]))
	minZ, maxZ := orderInt(int(from[2]), int(to[2]))
	for x := minX; x <= maxX; x++ {
		for y := minY; y <= maxY; y++ {
			for z := minZ; z <= maxZ; z++ {
				fn([3]int{x, y, z})
			}
		}
	}
}

func orderInt(a, b int) (int, int) {
	if a > b {
		return b, a
	}
	return a, b
}

func blockKey(pos [3]float64) [3]int {
	return [3]int{int(pos[0]), int(pos[1]), int(pos[2])}
}

// random implements `random <min> <max>`-shaped calls: a simple
// uniform draw over [min, max], stored as the branch's produced value —
// the original toolchain never implemented this opcode, so this is a
// minimal, concrete extension grounded in the world model's existing
// seeded PRNG.
func (m *Machine) random(branch *Branch, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("vm: random requires min max")
	}
	lo, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return err
	}
	hi, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return err
	}
	if hi < lo {
		lo, hi = hi, lo
	}
	v := lo + m.World.Rand.Int63n(hi-lo+1)
	branch.CommitValue(m.World, v, true)
	return nil
}

// summon creates an entity of the given type at the given position — a
// minimal extension of the world model covering an opcode the original
// toolchain left unimplemented.
func (m *Machine) summon(branch *Branch, args []string) error {
	if len(args) < 4 {
		return fmt.Errorf("vm: summon requires type x y z")
	}
	pos, err := EvalPosition(branch, args[1], args[2], args[3])
	if err != nil {
		return err
	}
	m.World.Entities = append(m.World.Entities, &Entity{
		ID:       fmt.Sprintf("entity-%d", len(m.World.Entities)),
		Type:     args[0],
		Position: pos,
		NBT:      make(map[string]any),
	})
	return nil
}

func (m *Machine) kill(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("vm: kill requires a selector")
	}
	target := args[0]
	var remaining []*Entity
	for _, e := range m.World.Entities {
		if e.ID != target {
			remaining = append(remaining, e)
		}
	}
	m.World.Entities = remaining
	return nil
}

func (m *Machine) tagAdd(branch *Branch, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("vm: tag add requires a selector and a tag")
	}
	entities, err := m.World.EvalTargetSelector(branch, args[0])
	if err != nil {
		return err
	}
	for _, e := range entities {
		if !e.HasTag(args[1]) {
			e.Tags = append(e.Tags, args[1])
		}
	}
	return nil
}

func (m *Machine) tagRemove(branch *Branch, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("vm: tag remove requires a selector and a tag")
	}
	entities, err := m.World.EvalTargetSelector(branch, args[0])
	if err != nil {
		return err
	}
	for _, e := range entities {
		var kept []string
		for _, t := range e.Tags {
			if t != args[1] {
				kept = append(kept, t)
			}
		}
		e.Tags = kept
	}
	return nil
}
