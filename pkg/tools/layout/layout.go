// Package layout provides the compile_layout tool: it turns a device layout
// (named slots wired to pins) into Arduino-style setup source.
package layout

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"text/template"
	"unicode"
)

// Slot is one peripheral attached to the board.
type Slot struct {
	Kind  string `json:"kind"`
	Pin   int    `json:"pin"`
	Label string `json:"label,omitempty"`
}

// Layout describes a board and its slots. Slot keys are free-form labels
// such as "1" or "front door"; they never reach the source unsanitized.
type Layout struct {
	Device string          `json:"device"`
	Slots  map[string]Slot `json:"slots"`
}

// Mode is the pinMode argument per slot kind.
var modes = map[string]string{
	"led":    "OUTPUT",
	"relay":  "OUTPUT",
	"buzzer": "OUTPUT",
	"button": "INPUT_PULLUP",
	"switch": "INPUT_PULLUP",
	"sensor": "INPUT",
}

// Kinds lists the supported slot kinds.
func Kinds() []string {
	out := make([]string, 0, len(modes))
	for k := range modes {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

type binding struct {
	Key   string
	Ident string
	Kind  string
	Mode  string
	Pin   int
	Label string
}

var source = template.Must(template.New("setup").Parse(`// Generated setup for {{.Device}}.
{{range .Bindings}}const int {{.Ident}} = {{.Pin}}; // {{.Kind}}{{if .Label}}: {{.Label}}{{end}} (slot "{{.Key}}")
{{end}}
void setup() {
{{- range .Bindings}}
  pinMode({{.Ident}}, {{.Mode}});
{{- end}}
}
`))

// Compile validates the layout and renders the setup source.
func Compile(l Layout) (string, error) {
	var problems []string
	if strings.TrimSpace(l.Device) == "" {
		problems = append(problems, "device is required")
	}
	if len(l.Slots) == 0 {
		problems = append(problems, "at least one slot is required")
	}

	keys := make([]string, 0, len(l.Slots))
	for k := range l.Slots {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	used := map[string]bool{}
	pins := map[int]string{}
	bindings := make([]binding, 0, len(keys))
	for _, key := range keys {
		slot := l.Slots[key]
		mode, ok := modes[strings.ToLower(slot.Kind)]
		if !ok {
			problems = append(problems, fmt.Sprintf("slot '%s': unknown kind '%s' (want one of %s)", key, slot.Kind, strings.Join(Kinds(), ", ")))
			continue
		}
		if slot.Pin < 0 {
			problems = append(problems, fmt.Sprintf("slot '%s': pin must not be negative", key))
			continue
		}
		if other, taken := pins[slot.Pin]; taken {
			problems = append(problems, fmt.Sprintf("slot '%s': pin %d already used by slot '%s'", key, slot.Pin, other))
			continue
		}
		pins[slot.Pin] = key

		bindings = append(bindings, binding{
			Key:   comment(key),
			Ident: uniqueIdent(Identifier(key)+"_PIN", used),
			Kind:  strings.ToLower(slot.Kind),
			Mode:  mode,
			Pin:   slot.Pin,
			Label: comment(slot.Label),
		})
	}
	if len(problems) > 0 {
		return "", fmt.Errorf("invalid layout: %s", strings.Join(problems, "; "))
	}

	var buf bytes.Buffer
	err := source.Execute(&buf, struct {
		Device   string
		Bindings []binding
	}{comment(l.Device), bindings})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Identifier derives a valid C identifier from a slot key: characters outside
// [A-Za-z0-9_] become underscores, keys starting with a digit get a SLOT_
// prefix, and reserved words are suffixed.
func Identifier(key string) string {
	var sb strings.Builder
	for _, r := range strings.TrimSpace(key) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_') {
			sb.WriteRune(unicode.ToUpper(r))
		} else {
			sb.WriteByte('_')
		}
	}
	id := strings.Trim(sb.String(), "_")
	switch {
	case id == "":
		id = "SLOT"
	case unicode.IsDigit(rune(id[0])):
		id = "SLOT_" + id
	}
	if reserved[strings.ToLower(id)] {
		id += "_"
	}
	return id
}

func uniqueIdent(id string, used map[string]bool) string {
	out := id
	for i := 2; used[out]; i++ {
		out = fmt.Sprintf("%s_%d", id, i)
	}
	used[out] = true
	return out
}

// comment keeps user text from breaking out of a line comment or string.
func comment(s string) string {
	return strings.NewReplacer("\n", " ", "\r", " ", "*/", "* /", `"`, `'`).Replace(s)
}

var reserved = map[string]bool{
	"auto": true, "break": true, "case": true, "char": true, "const": true, "continue": true,
	"default": true, "do": true, "double": true, "else": true, "enum": true, "extern": true,
	"float": true, "for": true, "goto": true, "if": true, "int": true, "long": true,
	"register": true, "return": true, "short": true, "signed": true, "sizeof": true, "static": true,
	"struct": true, "switch": true, "typedef": true, "union": true, "unsigned": true, "void": true,
	"volatile": true, "while": true, "high": true, "low": true, "input": true, "output": true,
}
