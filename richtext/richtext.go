// Package richtext implements the tellraw payload: a JSON surface syntax
// parsed into a small tagged component tree, then encoded into the binary
// layout of §4.3, with a strict inverse decoder.
package richtext

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Kind tags the four payload shapes. The numeric values are the wire tag
// bytes, not just Go-internal discriminants.
type Kind byte

const (
	Raw   Kind = 0
	Score Kind = 1
	Text  Kind = 2
	Array Kind = 3
)

// Style property ids, per §4.3: 0..3 are booleans, 4 is the color string.
const (
	propBold          = 0
	propItalic        = 1
	propStrikethrough = 2
	propUnderlined    = 3
	propColor         = 4
)

// Styles holds the non-default formatting of a Score or Text component.
// Color "" (unset) means the implicit default "white".
type Styles struct {
	Bold          bool
	Italic        bool
	Strikethrough bool
	Underlined    bool
	Color         string
}

func (s Styles) isDefault() bool {
	return !s.Bold && !s.Italic && !s.Strikethrough && !s.Underlined && (s.Color == "" || s.Color == "white")
}

// Component is the decoded/encodable form of one tellraw payload node.
type Component struct {
	Kind Kind

	// Score
	Name      string
	Objective string

	// Text
	Text string

	// Raw fallback: the original payload text, opaque-encoded.
	RawText string

	Styles Styles

	// Array
	Children []Component
}

type jsonComponent struct {
	Score *struct {
		Name      string `json:"name"`
		Objective string `json:"objective"`
	} `json:"score"`
	Text          string `json:"text"`
	HasText       bool   `json:"-"`
	Bold          bool   `json:"bold"`
	Italic        bool   `json:"italic"`
	Strikethrough bool   `json:"strikethrough"`
	Underlined    bool   `json:"underlined"`
	Color         string `json:"color"`
}

// Encode parses the tellraw surface syntax (payload) and compiles it to the
// binary layout of §4.3. A malformed-JSON payload is always surfaced as an
// error — it is never swallowed by the fallback. Any other encoding failure
// (unrecognized shape, a field over the 255-byte budget) falls back to a
// raw (tag 0) blob wrapping the original payload text.
func Encode(payload string) ([]byte, error) {
	var raw any
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, fmt.Errorf("richtext: invalid JSON: %w", err)
	}

	encoded, err := encodeValue(raw)
	if err != nil {
		return encodeRawFallback(payload)
	}
	return encoded, nil
}

func encodeValue(raw any) ([]byte, error) {
	switch v := raw.(type) {
	case []any:
		return encodeArray(v)
	case map[string]any:
		return encodeComponentMap(v)
	default:
		return nil, fmt.Errorf("richtext: invalid top-level payload shape")
	}
}

func encodeArray(items []any) ([]byte, error) {
	if len(items) > 255 {
		return nil, fmt.Errorf("richtext: array too long")
	}
	var out bytes.Buffer
	out.WriteByte(byte(Array))
	out.WriteByte(byte(len(items)))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("richtext: array element must be an object")
		}
		comp, err := encodeComponentMap(m)
		if err != nil {
			return nil, err
		}
		if len(comp) > 255 {
			return nil, fmt.Errorf("richtext: component too long")
		}
		out.WriteByte(byte(len(comp)))
		out.Write(comp)
	}
	return out.Bytes(), nil
}

func encodeComponentMap(m map[string]any) ([]byte, error) {
	styles := stylesFromMap(m)

	if scoreRaw, ok := m["score"]; ok {
		score, ok := scoreRaw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("richtext: score must be an object")
		}
		name, _ := score["name"].(string)
		objective, _ := score["objective"].(string)
		return encodeScore(name, objective, styles)
	}
	if text, ok := m["text"].(string); ok {
		return encodeText(text, styles)
	}
	return nil, fmt.Errorf("richtext: object must have a 'score' or 'text' key")
}

func stylesFromMap(m map[string]any) Styles {
	s := Styles{}
	if b, ok := m["bold"].(bool); ok {
		s.Bold = b
	}
	if b, ok := m["italic"].(bool); ok {
		s.Italic = b
	}
	if b, ok := m["strikethrough"].(bool); ok {
		s.Strikethrough = b
	}
	if b, ok := m["underlined"].(bool); ok {
		s.Underlined = b
	}
	if c, ok := m["color"].(string); ok {
		s.Color = c
	}
	return s
}

func encodeScore(name, objective string, styles Styles) ([]byte, error) {
	nameB := []byte(name)
	objB := []byte(objective)
	if len(nameB) > 255 || len(objB) > 255 {
		return nil, fmt.Errorf("richtext: score name/objective too long")
	}
	var out bytes.Buffer
	out.WriteByte(byte(Score))
	out.WriteByte(byte(len(nameB)))
	out.Write(nameB)
	out.WriteByte(byte(len(objB)))
	out.Write(objB)
	if err := writeProps(&out, styles); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func encodeText(text string, styles Styles) ([]byte, error) {
	textB := []byte(text)
	if len(textB) > 255 {
		return nil, fmt.Errorf("richtext: text too long")
	}
	var out bytes.Buffer
	out.WriteByte(byte(Text))
	out.WriteByte(byte(len(textB)))
	out.Write(textB)
	if err := writeProps(&out, styles); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func writeProps(out *bytes.Buffer, styles Styles) error {
	type prop struct {
		id    byte
		color string
		isSet bool
	}
	var props []prop
	if styles.Bold {
		props = append(props, prop{id: propBold, isSet: true})
	}
	if styles.Italic {
		props = append(props, prop{id: propItalic, isSet: true})
	}
	if styles.Strikethrough {
		props = append(props, prop{id: propStrikethrough, isSet: true})
	}
	if styles.Underlined {
		props = append(props, prop{id: propUnderlined, isSet: true})
	}
	if styles.Color != "" && styles.Color != "white" {
		props = append(props, prop{id: propColor, color: styles.Color})
	}
	if len(props) > 255 {
		return fmt.Errorf("richtext: too many style properties")
	}
	out.WriteByte(byte(len(props)))
	for _, p := range props {
		out.WriteByte(p.id)
		if p.id == propColor {
			colorB := []byte(p.color)
			if len(colorB) > 255 {
				return fmt.Errorf("richtext: color too long")
			}
			out.WriteByte(byte(len(colorB)))
			out.Write(colorB)
		} else {
			out.WriteByte(1)
		}
	}
	return nil
}

// encodeRawFallback wraps payload as an opaque tag-0 blob. The opaque codec
// is simply the UTF-8 bytes of the original text — there is no structural
// information to preserve once a payload falls off the fast path, only the
// original text for the decoder to hand back unchanged.
func encodeRawFallback(payload string) ([]byte, error) {
	b := []byte(payload)
	if len(b) > 255 {
		return nil, fmt.Errorf("richtext: fallback payload too long")
	}
	var out bytes.Buffer
	out.WriteByte(byte(Raw))
	out.WriteByte(byte(len(b)))
	out.Write(b)
	return out.Bytes(), nil
}

// Decode is the strict inverse of Encode's binary layout.
func Decode(data []byte) (*Component, error) {
	r := bytes.NewReader(data)
	return decodeFrom(r)
}

func decodeFrom(r *bytes.Reader) (*Component, error) {
	tagByte, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("richtext: empty payload")
	}
	switch Kind(tagByte) {
	case Raw:
		n, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("richtext: truncated raw blob")
		}
		buf := make([]byte, n)
		if _, err := readFull(r, buf); err != nil {
			return nil, err
		}
		return &Component{Kind: Raw, RawText: string(buf)}, nil

	case Score:
		nameLen, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("richtext: truncated score name length")
		}
		name := make([]byte, nameLen)
		if _, err := readFull(r, name); err != nil {
			return nil, err
		}
		objLen, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("richtext: truncated score objective length")
		}
		obj := make([]byte, objLen)
		if _, err := readFull(r, obj); err != nil {
			return nil, err
		}
		styles, err := readProps(r)
		if err != nil {
			return nil, err
		}
		return &Component{Kind: Score, Name: string(name), Objective: string(obj), Styles: styles}, nil

	case Text:
		textLen, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("richtext: truncated text length")
		}
		text := make([]byte, textLen)
		if _, err := readFull(r, text); err != nil {
			return nil, err
		}
		styles, err := readProps(r)
		if err != nil {
			return nil, err
		}
		return &Component{Kind: Text, Text: string(text), Styles: styles}, nil

	case Array:
		count, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("richtext: truncated array count")
		}
		children := make([]Component, 0, count)
		for i := 0; i < int(count); i++ {
			l, err := r.ReadByte()
			if err != nil {
				return nil, fmt.Errorf("richtext: truncated array element length")
			}
			buf := make([]byte, l)
			if _, err := readFull(r, buf); err != nil {
				return nil, err
			}
			child, err := Decode(buf)
			if err != nil {
				return nil, err
			}
			children = append(children, *child)
		}
		return &Component{Kind: Array, Children: children}, nil

	default:
		return nil, fmt.Errorf("richtext: unknown component tag %d", tagByte)
	}
}

func readProps(r *bytes.Reader) (Styles, error) {
	count, err := r.ReadByte()
	if err != nil {
		return Styles{}, fmt.Errorf("richtext: truncated property count")
	}
	var styles Styles
	for i := 0; i < int(count); i++ {
		id, err := r.ReadByte()
		if err != nil {
			return Styles{}, fmt.Errorf("richtext: truncated property id")
		}
		switch id {
		case propBold:
			r.ReadByte()
			styles.Bold = true
		case propItalic:
			r.ReadByte()
			styles.Italic = true
		case propStrikethrough:
			r.ReadByte()
			styles.Strikethrough = true
		case propUnderlined:
			r.ReadByte()
			styles.Underlined = true
		case propColor:
			l, err := r.ReadByte()
			if err != nil {
				return Styles{}, fmt.Errorf("richtext: truncated color length")
			}
			buf := make([]byte, l)
			if _, err := readFull(r, buf); err != nil {
				return Styles{}, err
			}
			styles.Color = string(buf)
		default:
			r.ReadByte() // unknown property, skip its single value byte
		}
	}
	return styles, nil
}

func readFull(r *bytes.Reader, buf []byte) (int, error) {
	n, err := r.Read(buf)
	if n != len(buf) || err != nil {
		return n, fmt.Errorf("richtext: unexpected end of payload")
	}
	return n, nil
}

// Dump renders the component tree as a one-line disassembly string, the
// textual form the decoder surfaces for debugging (e.g. "TEXT(\"v=\" color=yellow)").
func (c *Component) Dump() string {
	switch c.Kind {
	case Raw:
		return fmt.Sprintf("RAW_JSON(%s)", c.RawText)
	case Score:
		return fmt.Sprintf("SCORE(name=%s, objective=%s%s)", c.Name, c.Objective, c.Styles.dump())
	case Text:
		return fmt.Sprintf("TEXT(%q%s)", c.Text, c.Styles.dump())
	case Array:
		parts := make([]string, len(c.Children))
		for i := range c.Children {
			parts[i] = c.Children[i].Dump()
		}
		return "[" + join(parts, ", ") + "]"
	default:
		return "UNKNOWN"
	}
}

func (s Styles) dump() string {
	if s.isDefault() {
		return ""
	}
	var parts []string
	if s.Bold {
		parts = append(parts, "bold")
	}
	if s.Italic {
		parts = append(parts, "italic")
	}
	if s.Strikethrough {
		parts = append(parts, "strikethrough")
	}
	if s.Underlined {
		parts = append(parts, "underlined")
	}
	if s.Color != "" && s.Color != "white" {
		parts = append(parts, "color="+s.Color)
	}
	if len(parts) == 0 {
		return ""
	}
	return " " + join(parts, " ")
}

func join(parts []string, sep string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += sep
		}
		out += p
	}
	return out
}
