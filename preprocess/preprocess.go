// Package preprocess expands the textual macro layer that sits in front of
// the command parser: `@define`/`@repeat` directives and `?NAME`
// substitution, comment stripping that treats `##`/`###` as escaped literal
// hashes, backslash line continuation, and indentation-chain flattening of
// multi-line `execute`/`if`/`unless` command trees into single logical
// command lines.
package preprocess

import (
	"fmt"
	"strconv"
	"strings"
)

const indentWidth = 4

// Preprocess runs the full pipeline against source and returns the
// flattened, directive-free, comment-free command lines ready for the
// compiler's lexer.
func Preprocess(source string) (string, error) {
	definitions := map[string]string{}

	directiveExpanded, err := expandDirectives(strings.Split(source, "\n"), definitions)
	if err != nil {
		return "", err
	}

	joined := joinContinuations(directiveExpanded)

	flattened, err := flattenIndentChains(joined)
	if err != nil {
		return "", err
	}

	return strings.Join(flattened, "\n"), nil
}

func indentOf(line string) int {
	return len(line) - len(strings.TrimLeft(line, " "))
}

// expandDirectives substitutes `?NAME` macros and expands `@define`/`@repeat`
// directive lines. Directives may be commented out with a leading `#@`,
// which still expands them (used to keep a directive line visible in an
// editor without it also being read as a live command).
func expandDirectives(lines []string, definitions map[string]string) ([]string, error) {
	var out []string
	for _, line := range lines {
		for name, value := range definitions {
			line = strings.ReplaceAll(line, "?"+name, value)
		}

		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "@") && !strings.HasPrefix(trimmed, "#@") {
			out = append(out, line)
			continue
		}

		head, body, ok := strings.Cut(trimmed, ":")
		if !ok {
			return nil, fmt.Errorf("preprocess: malformed directive %q", line)
		}
		headParts := strings.SplitN(strings.TrimSpace(head), " ", 2)
		operation := strings.TrimPrefix(headParts[0], "#")
		var rawArgs string
		if len(headParts) > 1 {
			rawArgs = headParts[1]
		}
		args := splitArgs(rawArgs)
		indent := indentOf(line)
		command := strings.Repeat(" ", indent) + strings.TrimSpace(body)

		switch operation {
		case "@define":
			if len(args) < 1 {
				return nil, fmt.Errorf("preprocess: @define requires a name")
			}
			definitions[args[0]] = command

		case "@repeat":
			if len(args) < 1 {
				return nil, fmt.Errorf("preprocess: @repeat requires a count")
			}
			start, stop, step, err := repeatRange(args)
			if err != nil {
				return nil, err
			}
			for i := start; (step > 0 && i < stop) || (step < 0 && i > stop); i += step {
				out = append(out, strings.ReplaceAll(command, "<i>", strconv.Itoa(i)))
			}

		default:
			return nil, fmt.Errorf("preprocess: unknown directive %q", operation)
		}
	}
	return out, nil
}

func splitArgs(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = strings.TrimSpace(p)
	}
	return out
}

func repeatRange(args []string) (start, stop, step int, err error) {
	nums := make([]int, len(args))
	for i, a := range args {
		n, convErr := strconv.Atoi(a)
		if convErr != nil {
			return 0, 0, 0, fmt.Errorf("preprocess: @repeat argument %q is not an integer", a)
		}
		nums[i] = n
	}
	switch len(nums) {
	case 1:
		return 0, nums[0], 1, nil
	case 2:
		return nums[0], nums[1], 1, nil
	default:
		return nums[0], nums[1], nums[2], nil
	}
}

// joinContinuations concatenates lines ending in a trailing backslash onto
// the next line, stripping the backslash and the next line's leading
// whitespace.
func joinContinuations(lines []string) []string {
	var out []string
	var buffer strings.Builder
	continuing := false
	for _, line := range lines {
		if continuing {
			line = strings.TrimLeft(line, " \t")
		}
		if strings.HasSuffix(line, `\`) {
			buffer.WriteString(strings.TrimSuffix(line, `\`))
			continuing = true
			continue
		}
		continuing = false
		buffer.WriteString(line)
		out = append(out, buffer.String())
		buffer.Reset()
	}
	if buffer.Len() > 0 {
		out = append(out, buffer.String())
	}
	return out
}

// stripComment removes a real comment (introduced by "# ") from line while
// treating "##" and "###" as escaped literal hash characters, not comment
// markers.
func stripComment(line string) string {
	const (
		tripleEscape = "´´´"
		doubleEscape = "´´"
	)
	escaped := strings.ReplaceAll(line, "###", tripleEscape)
	escaped = strings.ReplaceAll(escaped, "##", doubleEscape)
	if idx := strings.Index(escaped, "# "); idx >= 0 {
		escaped = escaped[:idx]
	}
	escaped = strings.ReplaceAll(escaped, tripleEscape, "#")
	escaped = strings.ReplaceAll(escaped, doubleEscape, "#")
	return strings.TrimRight(escaped, `\`)
}

// flattenIndentChains folds a command and its indented continuation lines
// (an `execute ...` header followed by deeper-indented clauses, or a bare
// `if`/`unless` chain) into one logical command line per chain, dropping
// blank and pure-comment lines.
func flattenIndentChains(lines []string) ([]string, error) {
	type candidate struct {
		line  string
		level int
	}
	var kept []candidate
	for _, raw := range lines {
		if strings.TrimSpace(raw) == "" || strings.HasPrefix(strings.TrimSpace(raw), "#") {
			continue
		}
		stripped := stripComment(raw)
		if strings.TrimSpace(stripped) == "" {
			continue
		}
		kept = append(kept, candidate{line: stripped, level: indentOf(stripped) / indentWidth})
	}

	const maxLevels = 20
	slots := make([]string, maxLevels)
	var out []string
	for i, c := range kept {
		level := c.level
		if level >= maxLevels {
			return nil, fmt.Errorf("preprocess: indentation too deep (%d levels)", level)
		}
		slots[level] = c.line
		for j := level + 1; j < maxLevels; j++ {
			slots[j] = ""
		}

		nextLevel := -1
		if i+1 < len(kept) {
			nextLevel = kept[i+1].level
		}
		if nextLevel <= level {
			out = append(out, flattenChain(slots, level))
		}
	}
	return out, nil
}

func flattenChain(slots []string, level int) string {
	var parts []string
	for i := 0; i <= level; i++ {
		if s := strings.TrimSpace(slots[i]); s != "" {
			parts = append(parts, s)
		}
	}
	result := strings.Join(parts, " ")
	if strings.HasPrefix(strings.TrimSpace(result), "$") {
		result = "$" + strings.TrimLeft(strings.TrimSpace(result), "$")
	}
	return result
}
