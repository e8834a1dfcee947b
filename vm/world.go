package vm

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Entity is one live entity record. The SERVER pseudo-executor (ID "@s") and
// a bare (non-`@`) selector token are both represented as plain Entity
// records whose ID carries the literal string; a bare token is returned
// as-is, without any selector filtering.
type Entity struct {
	ID         string
	Type       string
	Position   [3]float64
	Tags       []string
	CustomName string
	NBT        map[string]any
}

func (e *Entity) HasTag(tag string) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// World is the process-wide shared state three structures mutate freely:
// scoreboards, entities, and blocks. Execution is single-threaded
// cooperative (§5), so no mutex guards these — only one branch ever
// executes at a time.
type World struct {
	Scoreboards map[string]map[string]int64
	Entities    []*Entity
	Blocks      map[[3]int]string
	Rand        randSource
}

// randSource is the minimal interface the `random` opcode needs; Machine
// supplies an explicitly seeded source so scenario tests are reproducible
// (§9 "Deterministic scheduling").
type randSource interface {
	Int63n(n int64) int64
	Shuffle(n int, swap func(i, j int))
}

func NewWorld(rnd randSource) *World {
	return &World{
		Scoreboards: make(map[string]map[string]int64),
		Blocks:      make(map[[3]int]string),
		Rand:        rnd,
	}
}

// Score reads (objective, target), auto-initializing to 0 per the
// runtime-recoverable error policy.
func (w *World) Score(objective, target string) int64 {
	if w.Scoreboards[objective] == nil {
		return 0
	}
	return w.Scoreboards[objective][target]
}

func (w *World) SetScore(objective, target string, value int64) {
	if w.Scoreboards[objective] == nil {
		w.Scoreboards[objective] = make(map[string]int64)
	}
	w.Scoreboards[objective][target] = value
}

func (w *World) ScoreCount(target string) int64 {
	var count int64
	for _, scores := range w.Scoreboards {
		if target == "*" {
			count += int64(len(scores))
			continue
		}
		if _, ok := scores[target]; ok {
			count++
		}
	}
	return count
}

func distance3D(a, b [3]float64) float64 {
	dx, dy, dz := a[0]-b[0], a[1]-b[1], a[2]-b[2]
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// bound is an inclusive-or-open endpoint: nil means unbounded.
type bound struct {
	set   bool
	value float64
}

func (b bound) below(v float64) bool { return b.set && v < b.value }
func (b bound) above(v float64) bool { return b.set && v > b.value }

// parseRange parses "X..Y", "X..", "..Y", "X", or "[X]..[Y]" (brackets
// accepted and stripped) into inclusive bounds.
func parseRange(spec string) (lower, upper bound, err error) {
	spec = strings.TrimSpace(spec)
	if !strings.Contains(spec, "..") {
		v, err := parseRangeNumber(spec)
		if err != nil {
			return bound{}, bound{}, err
		}
		return bound{true, v}, bound{true, v}, nil
	}
	parts := strings.SplitN(spec, "..", 2)
	if len(parts) != 2 {
		return bound{}, bound{}, fmt.Errorf("%w: %s", ErrInvalidRange, spec)
	}
	lowStr, highStr := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	if lowStr != "" {
		v, err := parseRangeNumber(lowStr)
		if err != nil {
			return bound{}, bound{}, err
		}
		lower = bound{true, v}
	}
	if highStr != "" {
		v, err := parseRangeNumber(highStr)
		if err != nil {
			return bound{}, bound{}, err
		}
		upper = bound{true, v}
	}
	return lower, upper, nil
}

func parseRangeNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrInvalidRange, s)
	}
	return v, nil
}

// MatchesRange reports whether value falls in a half-open [start, end)
// window, the `if_score matches` semantics; a missing start defaults to 0
// and a missing end defaults to 1,000,000.
func MatchesRange(spec string, value int64) (bool, error) {
	lower, upper, err := parseRange(spec)
	if err != nil {
		return false, err
	}
	start := int64(0)
	if lower.set {
		start = int64(lower.value)
	}
	end := int64(1_000_000)
	if upper.set {
		end = int64(upper.value)
	}
	return value >= start && value < end, nil
}

// EvalTargetSelector evaluates selector against the world, applying the
// filter pipeline in the exact order the format specifies. Only @s and @e
// selectors carry filters; a string not starting with "@" is a literal
// singleton, and any other "@" selector fails with ErrSelectorRestricted.
func (w *World) EvalTargetSelector(branch *Branch, selector string) ([]*Entity, error) {
	if !strings.HasPrefix(selector, "@") {
		return []*Entity{{ID: selector}}, nil
	}

	base, bracket, hasBracket := strings.Cut(selector, "[")
	if base != "@s" && base != "@e" {
		return nil, fmt.Errorf("%w: %s", ErrSelectorRestricted, selector)
	}

	var included []*Entity
	if base == "@s" {
		included = []*Entity{branch.Executor}
	} else {
		included = append([]*Entity(nil), w.Entities...)
	}

	if !hasBracket {
		return included, nil
	}
	bracket = strings.TrimSuffix(bracket, "]")

	args, err := parseSelectorArgs(bracket)
	if err != nil {
		return nil, err
	}

	if v, ok := args["type"]; ok {
		included = filterEntities(included, func(e *Entity) bool { return e.Type == v })
	}
	if v, ok := args["limit"]; ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("%w: limit=%s", ErrInvalidRange, v)
		}
		if n < len(included) {
			included = included[:n]
		}
	}
	if v, ok := args["distance"]; ok {
		lower, upper, err := parseRange(v)
		if err != nil {
			return nil, err
		}
		included = filterEntities(included, func(e *Entity) bool {
			d := distance3D(e.Position, branch.Position)
			return !lower.below(d) && !upper.above(d)
		})
	}
	if v, ok := args["scores"]; ok {
		included, err = filterByScores(w, included, v)
		if err != nil {
			return nil, err
		}
	}
	if v, ok := args["tag"]; ok {
		negate := strings.HasPrefix(v, "!")
		want := strings.TrimPrefix(v, "!")
		included = filterEntities(included, func(e *Entity) bool { return e.HasTag(want) != negate })
	}
	if v, ok := args["name"]; ok {
		negate := strings.HasPrefix(v, "!")
		want := strings.TrimPrefix(v, "!")
		included = filterEntities(included, func(e *Entity) bool { return (e.CustomName == want) != negate })
	}
	if v, ok := args["nbt"]; ok {
		negate := strings.HasPrefix(v, "!")
		want := strings.TrimPrefix(v, "!")
		filter, err := ParseNBTFilter(want)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidNBT, err)
		}
		included = filterEntities(included, func(e *Entity) bool {
			return MatchNBT(filter, e.NBT) != negate
		})
	}
	included, err = filterByRegion(included, args)
	if err != nil {
		return nil, err
	}
	if v, ok := args["sort"]; ok {
		included = sortEntities(included, v, branch.Position, w.Rand)
	}

	return included, nil
}

func filterEntities(in []*Entity, keep func(*Entity) bool) []*Entity {
	var out []*Entity
	for _, e := range in {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

func filterByScores(w *World, in []*Entity, scoresSpec string) ([]*Entity, error) {
	scoresSpec = strings.TrimSpace(scoresSpec)
	scoresSpec = strings.TrimPrefix(scoresSpec, "{")
	scoresSpec = strings.TrimSuffix(scoresSpec, "}")
	for _, spec := range strings.Split(scoresSpec, ",") {
		objective, valueStr, ok := strings.Cut(spec, "=")
		if !ok {
			return nil, fmt.Errorf("%w: invalid score specification %q", ErrInvalidRange, spec)
		}
		objective = strings.TrimSpace(objective)
		valueStr = strings.TrimSpace(valueStr)
		if strings.Contains(valueStr, "..") {
			lower, upper, err := parseRange(valueStr)
			if err != nil {
				return nil, err
			}
			in = filterEntities(in, func(e *Entity) bool {
				v := float64(w.Score(objective, e.ID))
				return !lower.below(v) && !upper.above(v)
			})
		} else {
			eq, err := strconv.ParseInt(valueStr, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: invalid score value for objective %q: %s", ErrInvalidRange, objective, valueStr)
			}
			in = filterEntities(in, func(e *Entity) bool { return w.Score(objective, e.ID) == eq })
		}
	}
	return in, nil
}

func filterByRegion(in []*Entity, args map[string]string) ([]*Entity, error) {
	axes := map[string]int{"x": 0, "y": 1, "z": 2}
	deltaKey := map[string]string{"x": "dx", "y": "dy", "z": "dz"}

	type window struct{ min, max float64 }
	windows := map[string]window{}
	any := false
	for axis, idx := range axes {
		_ = idx
		v, ok := args[axis]
		if !ok {
			continue
		}
		any = true
		base, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s=%s", ErrInvalidRange, axis, v)
		}
		delta := 0.0
		if dv, ok := args[deltaKey[axis]]; ok {
			delta, err = strconv.ParseFloat(dv, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: %s=%s", ErrInvalidRange, deltaKey[axis], dv)
			}
		}
		if delta >= 0 {
			windows[axis] = window{base, base + delta + 1}
		} else {
			windows[axis] = window{base + delta, base + 1}
		}
	}
	if !any {
		return in, nil
	}
	return filterEntities(in, func(e *Entity) bool {
		for axis, w := range windows {
			idx := axes[axis]
			if e.Position[idx] < w.min || e.Position[idx] >= w.max {
				return false
			}
		}
		return true
	}), nil
}

func sortEntities(in []*Entity, mode string, origin [3]float64, rnd randSource) []*Entity {
	out := append([]*Entity(nil), in...)
	switch mode {
	case "nearest":
		sort.SliceStable(out, func(i, j int) bool {
			return distance3D(out[i].Position, origin) < distance3D(out[j].Position, origin)
		})
	case "furthest":
		sort.SliceStable(out, func(i, j int) bool {
			return distance3D(out[i].Position, origin) > distance3D(out[j].Position, origin)
		})
	case "random":
		if rnd != nil {
			rnd.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
		}
	}
	return out
}

// splitTopLevel splits s on commas that are not nested inside [...] or {...}.
func splitTopLevel(s string) []string {
	var parts []string
	depth, start := 0, 0
	for i, r := range s {
		switch r {
		case '[', '{':
			depth++
		case ']', '}':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}

func parseSelectorArgs(bracket string) (map[string]string, error) {
	args := make(map[string]string)
	if strings.TrimSpace(bracket) == "" {
		return args, nil
	}
	for _, part := range splitTopLevel(bracket) {
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("%w: malformed selector argument %q", ErrInvalidRange, part)
		}
		args[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return args, nil
}

// EvalPosition interprets three coordinate strings: caret (camera-relative),
// tilde (position-relative), or absolute.
func EvalPosition(branch *Branch, x, y, z string) ([3]float64, error) {
	base := branch.Position
	if strings.HasPrefix(x, "^") || strings.HasPrefix(y, "^") || strings.HasPrefix(z, "^") {
		dx, err := caretOffset(x)
		if err != nil {
			return [3]float64{}, err
		}
		dy, err := caretOffset(y)
		if err != nil {
			return [3]float64{}, err
		}
		dz, err := caretOffset(z)
		if err != nil {
			return [3]float64{}, err
		}

		yaw := branch.Facing[0] * math.Pi / 180
		pitch := branch.Facing[1] * math.Pi / 180

		fx := -math.Sin(yaw) * math.Cos(pitch)
		fy := math.Sin(pitch)
		fz := math.Cos(yaw) * math.Cos(pitch)
		rx := math.Cos(yaw)
		ry := 0.0
		rz := math.Sin(yaw)
		ux := fy*rz - fz*ry
		uy := fz*rx - fx*rz
		uz := fx*ry - fy*rx

		return [3]float64{
			base[0] + dx*rx + dy*ux + dz*fx,
			base[1] + dx*ry + dy*uy + dz*fy,
			base[2] + dx*rz + dy*uz + dz*fz,
		}, nil
	}

	nx, err := tildeOrAbsolute(x, base[0])
	if err != nil {
		return [3]float64{}, err
	}
	ny, err := tildeOrAbsolute(y, base[1])
	if err != nil {
		return [3]float64{}, err
	}
	nz, err := tildeOrAbsolute(z, base[2])
	if err != nil {
		return [3]float64{}, err
	}
	return [3]float64{nx, ny, nz}, nil
}

func caretOffset(s string) (float64, error) {
	if !strings.HasPrefix(s, "^") {
		return 0, nil
	}
	if s == "^" {
		return 0, nil
	}
	return strconv.ParseFloat(s[1:], 64)
}

func tildeOrAbsolute(s string, base float64) (float64, error) {
	if strings.HasPrefix(s, "~") {
		if s == "~" {
			return base, nil
		}
		d, err := strconv.ParseFloat(s[1:], 64)
		if err != nil {
			return 0, err
		}
		return base + d, nil
	}
	return strconv.ParseFloat(s, 64)
}

// ParseNBTFilter is a deliberately small SNBT parser for target-selector NBT
// fragments: top-level `{key:value, ...}` with scalar or single-depth list
// values, numbers optionally suffixed `d` for double.
func ParseNBTFilter(s string) (map[string]any, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "{") || !strings.HasSuffix(s, "}") {
		return nil, fmt.Errorf("NBT filter must be enclosed in { }")
	}
	content := strings.TrimSpace(s[1 : len(s)-1])
	result := make(map[string]any)
	if content == "" {
		return result, nil
	}
	for _, part := range splitTopLevel(content) {
		k, v, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("invalid NBT fragment part: %s", part)
		}
		key := strings.TrimSpace(k)
		value := strings.TrimSpace(v)
		if strings.HasPrefix(value, "[") && strings.HasSuffix(value, "]") {
			listContent := strings.TrimSpace(value[1 : len(value)-1])
			if listContent == "" {
				result[key] = []any{}
				continue
			}
			var items []any
			for _, item := range strings.Split(listContent, ",") {
				items = append(items, parseNBTScalar(strings.TrimSpace(item)))
			}
			result[key] = items
		} else {
			result[key] = parseNBTScalar(value)
		}
	}
	return result, nil
}

func parseNBTScalar(item string) any {
	if strings.HasSuffix(item, "d") {
		if f, err := strconv.ParseFloat(item[:len(item)-1], 64); err == nil {
			return f
		}
	}
	if n, err := strconv.ParseInt(item, 10, 64); err == nil {
		return n
	}
	return item
}

// MatchNBT reports whether filter is a subset of target: every key/value in
// filter must be present (and matching) in target. Numeric-only lists
// require exact equality; other lists require every filter element to be
// present in target (order and extra elements ignored).
func MatchNBT(filter, target map[string]any) bool {
	for key, fVal := range filter {
		tVal, ok := target[key]
		if !ok {
			return false
		}
		switch fv := fVal.(type) {
		case map[string]any:
			tv, ok := tVal.(map[string]any)
			if !ok || !MatchNBT(fv, tv) {
				return false
			}
		case []any:
			tv, ok := tVal.([]any)
			if !ok {
				return false
			}
			if allInts(fv) {
				if !equalLists(fv, tv) {
					return false
				}
			} else {
				if len(fv) == 0 && len(tv) != 0 {
					return false
				}
				for _, item := range fv {
					if !containsValue(tv, item) {
						return false
					}
				}
			}
		default:
			if fVal != tVal {
				return false
			}
		}
	}
	return true
}

func allInts(items []any) bool {
	for _, i := range items {
		if _, ok := i.(int64); !ok {
			return false
		}
	}
	return true
}

func equalLists(a, b []any) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func containsValue(list []any, v any) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
