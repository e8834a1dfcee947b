// Package compiler lowers preprocessed .mcfunction source lines into the
// packed instruction blocks the container format stores, one per function.
package compiler

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/wudi/mcfn/container"
	"github.com/wudi/mcfn/instr"
	"github.com/wudi/mcfn/opcodes"
	"github.com/wudi/mcfn/preprocess"
	"github.com/wudi/mcfn/richtext"
	"github.com/wudi/mcfn/varname"
)

var conditionOperators = map[string]bool{
	"matches": true, ">": true, "<": true, ">=": true, "<=": true, "==": true, "!=": true,
}

// CompileFunction lowers one already-preprocessed function body into its
// instruction sequence. It has no namespace context, so a `function <name>
// {...}` named-argument call site cannot be resolved through it — only the
// plain positional call form is accepted. Namespace compilation goes through
// CompileNamespace instead.
func CompileFunction(source string) ([]*instr.Instruction, error) {
	c := &Compiler{}
	return c.compileSource(source)
}

// Loader fetches and returns the preprocessed-eligible raw source of the
// named function (e.g. reading "<path>/<name>.mcfunction"). A missing
// function is a fatal compile error; Loader should return a descriptive
// error in that case, which CompileNamespace returns wrapped with the
// function's name.
type Loader func(name string) (string, error)

// Compiler holds the per-namespace state named-argument function calls need:
// a lazily-populated cache of each function's preprocessed source and its
// canonical macro-argument order (the order its own `$(name)` references
// first appear in, top to bottom).
type Compiler struct {
	loader      Loader
	sourceCache map[string]string
	macroOrder  map[string][]string

	// Diagnostics, if set, receives one Diagnostic for every instruction
	// this Compiler drops instead of failing the build outright (the
	// verbatim fallback's unrecognized-command case). Left nil, dropped
	// instructions simply vanish, matching the original toolchain's
	// default behavior.
	Diagnostics Sink

	currentFunction string
}

// NewCompiler builds a Compiler that resolves function sources through
// loader.
func NewCompiler(loader Loader) *Compiler {
	return &Compiler{loader: loader}
}

func (c *Compiler) rawSource(name string) (string, error) {
	if c.sourceCache == nil {
		c.sourceCache = make(map[string]string)
	}
	if src, ok := c.sourceCache[name]; ok {
		return src, nil
	}
	if c.loader == nil {
		return "", fmt.Errorf("compiler: no source loader configured for function %q", name)
	}
	raw, err := c.loader(name)
	if err != nil {
		return "", fmt.Errorf("compiler: function %q not found: %w", name, err)
	}
	expanded, err := preprocess.Preprocess(raw)
	if err != nil {
		return "", fmt.Errorf("compiler: %s: %w", name, err)
	}
	c.sourceCache[name] = expanded
	return expanded, nil
}

var macroRefPattern = regexp.MustCompile(`\$\(([a-zA-Z_][a-zA-Z0-9_]*)\)`)

// macroOrderFor scans name's preprocessed source for the canonical order its
// `$(argname)` macro references first appear in, restricted to vanilla
// macro lines (first non-whitespace character `$`). That order is the
// positional contract callers bind named arguments against.
func (c *Compiler) macroOrderFor(name string) ([]string, error) {
	if c.macroOrder == nil {
		c.macroOrder = make(map[string][]string)
	}
	if order, ok := c.macroOrder[name]; ok {
		return order, nil
	}
	src, err := c.rawSource(name)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var order []string
	for _, line := range strings.Split(src, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "$") {
			continue
		}
		for _, m := range macroRefPattern.FindAllStringSubmatch(trimmed, -1) {
			if argName := m[1]; !seen[argName] {
				seen[argName] = true
				order = append(order, argName)
			}
		}
	}
	c.macroOrder[name] = order
	return order, nil
}

// rewriteMacroLines replaces every `$(argname)` reference on a vanilla macro
// line with its positional letter per order, so the compiled body only ever
// references variables by position.
func rewriteMacroLines(source string, order []string) string {
	if len(order) == 0 {
		return source
	}
	letterOf := make(map[string]string, len(order))
	for i, name := range order {
		letter, err := varname.FromIndex(i)
		if err != nil {
			continue
		}
		letterOf[name] = letter
	}
	lines := strings.Split(source, "\n")
	for i, line := range lines {
		if !strings.HasPrefix(strings.TrimSpace(line), "$") {
			continue
		}
		lines[i] = macroRefPattern.ReplaceAllStringFunc(line, func(ref string) string {
			m := macroRefPattern.FindStringSubmatch(ref)
			if letter, ok := letterOf[m[1]]; ok {
				return "$(" + letter + ")"
			}
			return ref
		})
	}
	return strings.Join(lines, "\n")
}

// CompileNamedFunction compiles the named function's body after rewriting
// its macro argument names to their canonical positional letters.
func (c *Compiler) CompileNamedFunction(name string) ([]*instr.Instruction, error) {
	src, err := c.rawSource(name)
	if err != nil {
		return nil, err
	}
	order, err := c.macroOrderFor(name)
	if err != nil {
		return nil, err
	}
	c.currentFunction = name
	return c.compileSource(rewriteMacroLines(src, order))
}

func (c *Compiler) compileSource(source string) ([]*instr.Instruction, error) {
	var out []*instr.Instruction
	for _, line := range strings.Split(source, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		// A vanilla macro line's leading `$` only marks it for `$(name)`
		// rewriting; the command itself starts after it.
		if strings.HasPrefix(line, "$") && !strings.HasPrefix(line, "$(") {
			line = strings.TrimSpace(line[1:])
		}
		lowered, err := c.compileLine(line)
		if err != nil {
			return nil, fmt.Errorf("compiler: %q: %w", line, err)
		}
		out = append(out, lowered...)
	}
	return out, nil
}

func (c *Compiler) compileLine(line string) ([]*instr.Instruction, error) {
	tokens := strings.Fields(line)
	if len(tokens) == 0 {
		return nil, nil
	}

	switch strings.ToLower(tokens[0]) {
	case "execute":
		return c.compileExecute(tokens)
	case "scoreboard":
		return compileScoreboard(tokens)
	case "tellraw":
		return compileTellraw(line, tokens)
	case "data":
		return compileData(tokens)
	case "return":
		return c.compileReturn(tokens)
	case "tag":
		return compileTag(tokens)
	case "function":
		return c.compileFunctionCall(line, tokens)
	default:
		return c.compileVerbatim(line, tokens)
	}
}

// compileExecute lowers an `execute <clause>... run <subcommand>` chain into
// the clause instructions, followed by the recursively compiled subcommand,
// followed by a kill_branch sentinel that unwinds the forked execution
// contexts the clauses created.
//
// Every clause instruction carries one extra trailing argument: the number
// of instructions from itself (exclusive) to the position right after this
// chain's kill_branch. At runtime, the branch sitting at a clause always
// forks off whatever continuations the clause produces (zero if the
// condition is false or the selector matched nothing, one for a true
// if/unless/positioned/store, one per matched entity for as/at) to continue
// at the next instruction, then immediately jumps itself past the skip
// count — so a function's top-level flow resumes exactly once per execute
// statement, regardless of how many entities it fanned out over, and only
// the forked continuations ever reach (and die at) the real kill_branch.
func (c *Compiler) compileExecute(tokens []string) ([]*instr.Instruction, error) {
	var clauses []*instr.Instruction
	i := 1
	for i < len(tokens) && strings.ToLower(tokens[i]) != "run" {
		token := strings.ToLower(tokens[i])
		switch token {
		case "as":
			if i+1 >= len(tokens) {
				return nil, fmt.Errorf("missing selector after 'as'")
			}
			clauses = append(clauses, instr.New(opcodes.ExecuteAs, tokens[i+1]))
			i += 2
		case "at":
			if i+1 >= len(tokens) {
				return nil, fmt.Errorf("missing selector after 'at'")
			}
			clauses = append(clauses, instr.New(opcodes.ExecuteAt, tokens[i+1]))
			i += 2
		case "positioned":
			if i+3 >= len(tokens) {
				return nil, fmt.Errorf("missing coordinates after 'positioned'")
			}
			clauses = append(clauses, instr.New(opcodes.Positioned, tokens[i+1], tokens[i+2], tokens[i+3]))
			i += 4
		case "if":
			ins, consumed, err := compileCondition(opcodes.IfBlock, opcodes.IfEntity, opcodes.IfScore, tokens, i+1)
			if err != nil {
				return nil, err
			}
			clauses = append(clauses, ins)
			i = consumed
		case "unless":
			ins, consumed, err := compileCondition(opcodes.UnlessBlock, opcodes.UnlessEntity, opcodes.UnlessScore, tokens, i+1)
			if err != nil {
				return nil, err
			}
			clauses = append(clauses, ins)
			i = consumed
		case "store":
			if i+4 >= len(tokens) {
				return nil, fmt.Errorf("incomplete 'store' clause")
			}
			kind := strings.ToLower(tokens[i+1])
			if kind != "result" && kind != "success" {
				return nil, fmt.Errorf("unsupported 'store' clause, expected 'store {result|success} score <target> <objective>'")
			}
			if strings.ToLower(tokens[i+2]) != "score" {
				return nil, fmt.Errorf("only 'store ... score' is supported")
			}
			clauses = append(clauses, instr.New(opcodes.ExecuteStore, kind, tokens[i+3], tokens[i+4]))
			i += 5
		default:
			return nil, fmt.Errorf("unexpected token in execute clause: %s", tokens[i])
		}
	}

	if i >= len(tokens) || strings.ToLower(tokens[i]) != "run" {
		return nil, fmt.Errorf("missing 'run' keyword in execute command")
	}
	i++

	subLine := strings.Join(tokens[i:], " ")
	sub, err := c.compileLine(subLine)
	if err != nil {
		return nil, err
	}

	total := len(clauses) + len(sub) + 1 // + the trailing kill_branch
	for idx, clause := range clauses {
		clause.Args = append(clause.Args, []byte(strconv.Itoa(total-idx)))
	}

	out := append(clauses, sub...)
	out = append(out, instr.New(opcodes.KillBranch))
	return out, nil
}

// compileCondition lowers the `block`/`entity`/`score` condition grammar
// shared by `if` and `unless`, starting at tokens[start] (the condition
// type). It returns the consumed index, one past the last token read.
func compileCondition(blockOp, entityOp, scoreOp opcodes.Opcode, tokens []string, start int) (*instr.Instruction, int, error) {
	if start >= len(tokens) {
		return nil, 0, fmt.Errorf("missing condition type")
	}
	condition := strings.ToLower(tokens[start])
	i := start + 1

	switch condition {
	case "block":
		if i+3 >= len(tokens) {
			return nil, 0, fmt.Errorf("incomplete 'block' condition")
		}
		return instr.New(blockOp, tokens[i], tokens[i+1], tokens[i+2], tokens[i+3]), i + 4, nil

	case "entity":
		if i >= len(tokens) {
			return nil, 0, fmt.Errorf("missing selector after 'entity'")
		}
		return instr.New(entityOp, tokens[i]), i + 1, nil

	case "score":
		if i+3 >= len(tokens) {
			return nil, 0, fmt.Errorf("incomplete 'score' condition")
		}
		selector, objective, operator := tokens[i], tokens[i+1], strings.ToLower(tokens[i+2])
		if !conditionOperators[operator] {
			return nil, 0, fmt.Errorf("expected comparison operator in 'score' condition, got %s", tokens[i+2])
		}
		if operator == "matches" {
			return instr.New(scoreOp, selector, objective, "matches", tokens[i+3]), i + 4, nil
		}
		if i+4 >= len(tokens) {
			return nil, 0, fmt.Errorf("incomplete 'score' condition for operator")
		}
		return instr.New(scoreOp, selector, objective, operator, tokens[i+3], tokens[i+4]), i + 5, nil

	default:
		return nil, 0, fmt.Errorf("unsupported condition type: %s", condition)
	}
}

func compileScoreboard(tokens []string) ([]*instr.Instruction, error) {
	if len(tokens) < 2 {
		return nil, fmt.Errorf("unsupported scoreboard command")
	}
	switch strings.ToLower(tokens[1]) {
	case "objectives":
		if len(tokens) >= 3 && strings.ToLower(tokens[2]) == "list" {
			return []*instr.Instruction{instr.New(opcodes.ListObjectives)}, nil
		}
		// Objectives are implicitly created on first use; every other
		// `scoreboard objectives ...` subcommand is a no-op.
		return nil, nil

	case "players":
		if len(tokens) < 3 {
			return nil, fmt.Errorf("unsupported scoreboard players command")
		}
		args := tokens[3:]
		switch strings.ToLower(tokens[2]) {
		case "set":
			return []*instr.Instruction{instr.New(opcodes.SetScore, args...)}, nil
		case "add":
			return []*instr.Instruction{instr.New(opcodes.Add, args...)}, nil
		case "remove":
			return []*instr.Instruction{instr.New(opcodes.Remove, args...)}, nil
		case "list":
			return []*instr.Instruction{instr.New(opcodes.ListScores, args...)}, nil
		case "get":
			return []*instr.Instruction{instr.New(opcodes.Get, args...)}, nil
		case "operation":
			return []*instr.Instruction{instr.New(opcodes.Operation, args...)}, nil
		case "reset":
			return []*instr.Instruction{instr.New(opcodes.Reset, args...)}, nil
		default:
			return nil, fmt.Errorf("unsupported scoreboard players command")
		}

	default:
		return nil, fmt.Errorf("unsupported scoreboard command")
	}
}

// compileTellraw compiles the JSON payload to its binary rich-text form. A
// payload that richtext.Encode rejects (malformed JSON, or a raw fallback
// over the length budget) is returned as a compile error.
func compileTellraw(line string, tokens []string) ([]*instr.Instruction, error) {
	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 3 {
		return nil, fmt.Errorf("tellraw command requires a target and a JSON argument")
	}
	payload := strings.TrimSpace(parts[2])
	encoded, err := richtext.Encode(payload)
	if err != nil {
		// A malformed JSON payload is a compile error, not a silent drop —
		// richtext.Encode already reserves its internal fallback for
		// recoverable shape mismatches.
		return nil, fmt.Errorf("tellraw: %w", err)
	}
	return []*instr.Instruction{instr.NewRaw(opcodes.Tellraw, encoded)}, nil
}

func compileData(tokens []string) ([]*instr.Instruction, error) {
	if len(tokens) < 3 {
		return nil, fmt.Errorf("invalid data command syntax")
	}
	sub, typ := strings.ToLower(tokens[1]), strings.ToLower(tokens[2])
	args := tokens[3:]
	switch {
	case sub == "get" && (typ == "block" || typ == "entity"):
		op := opcodes.GetBlock
		if typ == "entity" {
			op = opcodes.GetEntity
		}
		return []*instr.Instruction{instr.New(op, args...)}, nil
	case sub == "merge" && (typ == "block" || typ == "entity"):
		op := opcodes.MergeBlock
		if typ == "entity" {
			op = opcodes.MergeEntity
		}
		return []*instr.Instruction{instr.New(op, args...)}, nil
	default:
		return nil, fmt.Errorf("invalid data command syntax")
	}
}

// compileReturn lowers `return`/`return fail <status>`/`return run
// <command>`. `return run`'s subcommand is compiled recursively and emitted
// immediately after the bare return_run marker: the VM resumes execution at
// the instruction following return_run to obtain the value it propagates to
// the caller, so the subcommand's compiled form must actually be present
// there rather than carried as a string argument.
func (c *Compiler) compileReturn(tokens []string) ([]*instr.Instruction, error) {
	if len(tokens) < 2 {
		return nil, fmt.Errorf("return command requires at least one argument")
	}
	switch strings.ToLower(tokens[1]) {
	case "fail":
		if len(tokens) != 3 {
			return nil, fmt.Errorf("usage: return fail <fail status>")
		}
		return []*instr.Instruction{instr.New(opcodes.ReturnFail, tokens[2])}, nil

	case "run":
		if len(tokens) < 3 {
			return nil, fmt.Errorf("usage: return run <command>")
		}
		sub, err := c.compileLine(strings.Join(tokens[2:], " "))
		if err != nil {
			return nil, err
		}
		out := []*instr.Instruction{instr.New(opcodes.ReturnRun)}
		return append(out, sub...), nil

	default:
		return []*instr.Instruction{instr.New(opcodes.Return, tokens[1:]...)}, nil
	}
}

func compileTag(tokens []string) ([]*instr.Instruction, error) {
	if len(tokens) < 3 {
		return nil, fmt.Errorf("invalid tag command syntax")
	}
	switch strings.ToLower(tokens[1]) {
	case "add":
		return []*instr.Instruction{instr.New(opcodes.TagAdd, tokens[2:]...)}, nil
	case "remove":
		return []*instr.Instruction{instr.New(opcodes.TagRemove, tokens[2:]...)}, nil
	default:
		return nil, fmt.Errorf("invalid tag command syntax")
	}
}

// compileFunctionCall lowers both call syntaxes: plain positional macro
// arguments (`function ns:f $(a) $(b)`), passed straight through, and the
// named-argument object form (`function ns:f {"dist": "$(x)", "count": 3}`),
// which is reordered against the callee's canonical macro-argument order and
// lowered to the same positional run_func form the runtime expects.
func (c *Compiler) compileFunctionCall(line string, tokens []string) ([]*instr.Instruction, error) {
	if len(tokens) < 2 {
		return nil, fmt.Errorf("function command requires a function name")
	}
	name := tokens[1]
	if len(tokens) == 2 {
		return []*instr.Instruction{instr.New(opcodes.RunFunc, name)}, nil
	}

	parts := strings.SplitN(line, " ", 3)
	rest := strings.TrimSpace(parts[2])
	if !strings.HasPrefix(rest, "{") {
		return []*instr.Instruction{instr.New(opcodes.RunFunc, tokens[1:]...)}, nil
	}

	var values map[string]json.RawMessage
	if err := json.Unmarshal([]byte(rest), &values); err != nil {
		return nil, fmt.Errorf("function %s: invalid named-argument object: %w", name, err)
	}

	calleeName := strings.TrimPrefix(name, namespacePrefix(name))
	order, err := c.macroOrderFor(calleeName)
	if err != nil {
		return nil, fmt.Errorf("function %s: %w", name, err)
	}

	args := make([]string, 0, len(order)+1)
	args = append(args, name)
	for _, argName := range order {
		raw, ok := values[argName]
		if !ok {
			return nil, fmt.Errorf("function %s: call is missing named argument %q", name, argName)
		}
		value, err := jsonScalarToArg(raw)
		if err != nil {
			return nil, fmt.Errorf("function %s: argument %q: %w", name, argName, err)
		}
		args = append(args, value)
	}
	return []*instr.Instruction{instr.New(opcodes.RunFunc, args...)}, nil
}

// namespacePrefix returns "ns:" if name carries a namespace qualifier, else
// "".
func namespacePrefix(name string) string {
	if idx := strings.IndexByte(name, ':'); idx >= 0 {
		return name[:idx+1]
	}
	return ""
}

// jsonScalarToArg renders a decoded JSON value back to the textual
// instruction-argument form: a quoted string becomes its unquoted text (so
// `"$(x)"` passes through as the macro reference `$(x)` itself), a number
// renders without an unnecessary trailing ".0", and anything else renders
// via its JSON text.
func jsonScalarToArg(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		if f == float64(int64(f)) {
			return strconv.FormatInt(int64(f), 10), nil
		}
		return strconv.FormatFloat(f, 'f', -1, 64), nil
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return strconv.FormatBool(b), nil
	}
	return string(raw), nil
}

// compileVerbatim handles any command whose first token is itself a known
// opcode mnemonic, and drops unrecognized ones without an error (recording a
// Diagnostic when a Sink is attached) — matching the
// original toolchain's "unknown command is not an error" compile policy for
// this fallback path only (every dedicated syntax above reports real
// syntax errors).
func (c *Compiler) compileVerbatim(line string, tokens []string) ([]*instr.Instruction, error) {
	op, ok := opcodes.Lookup(strings.ToLower(tokens[0]))
	if !ok {
		c.diagnostic(SeveritySyntax, line, fmt.Sprintf("unrecognized command %q dropped", tokens[0]))
		return nil, nil
	}
	return []*instr.Instruction{instr.New(op, tokens[1:]...)}, nil
}

// CompileNamespace is the compilation driver: starting from "main", it pops
// a function name, loads and compiles its source through loader, then
// pushes every function it calls (via run_func) that hasn't been visited
// yet. A function the loader cannot find is a fatal compile error — there
// is no partial-namespace output.
func CompileNamespace(namespace string, loader Loader) (*container.Executable, error) {
	return CompileNamespaceWithDiagnostics(namespace, loader, nil)
}

// CompileNamespaceWithDiagnostics is CompileNamespace with an attached Sink
// that receives one Diagnostic per dropped instruction across every
// function in the namespace, for a caller (the CLI, a test) that wants to
// surface them instead of letting them vanish.
func CompileNamespaceWithDiagnostics(namespace string, loader Loader, sink Sink) (*container.Executable, error) {
	c := NewCompiler(loader)
	c.Diagnostics = sink
	functions := make(map[string][]byte)
	visited := map[string]bool{"main": true}
	queue := []string{"main"}

	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]

		instructions, err := c.CompileNamedFunction(name)
		if err != nil {
			return nil, fmt.Errorf("compiler: %s: %w", name, err)
		}
		block, err := instr.EncodeBlock(instructions)
		if err != nil {
			return nil, fmt.Errorf("compiler: %s: %w", name, err)
		}
		functions[name] = block

		for _, callee := range calleesOf(instructions) {
			local := strings.TrimPrefix(callee, namespace+":")
			if strings.Contains(local, ":") {
				// Cross-namespace call: nothing this loader can resolve.
				continue
			}
			if !visited[local] {
				visited[local] = true
				queue = append(queue, local)
			}
		}
	}
	return &container.Executable{Namespace: namespace, Functions: functions}, nil
}

// calleesOf collects the function names a compiled body invokes via
// run_func, in source order.
func calleesOf(instructions []*instr.Instruction) []string {
	var callees []string
	for _, in := range instructions {
		if in.Opcode == opcodes.RunFunc && len(in.Args) > 0 {
			callees = append(callees, string(in.Args[0]))
		}
	}
	return callees
}
