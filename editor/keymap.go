package editor

import (
	"fmt"
	"strings"
)

// Action names a user-triggerable editor action.
type Action string

const (
	ActionRun          Action = "run"
	ActionOpen         Action = "open"
	ActionToggleOutput Action = "toggle_output"
	ActionSave         Action = "save"
	ActionDownload     Action = "download"
	ActionShare        Action = "share"
	ActionShortcuts    Action = "shortcuts"
	ActionSettings     Action = "settings"
)

// Actions lists every action in menu order.
var Actions = []Action{
	ActionRun, ActionOpen, ActionToggleOutput, ActionSave,
	ActionDownload, ActionShare, ActionShortcuts, ActionSettings,
}

// Chord is a key combined with modifiers. Key is normalized by ParseChord
// and NewChord: letters upper case, named keys capitalized ("Enter").
type Chord struct {
	Ctrl  bool
	Shift bool
	Alt   bool
	Meta  bool
	Key   string
}

// NewChord builds a chord from a browser KeyboardEvent's modifier flags and
// key value.
func NewChord(ctrl, shift, alt, meta bool, key string) Chord {
	return Chord{Ctrl: ctrl, Shift: shift, Alt: alt, Meta: meta, Key: normalizeKey(key)}
}

// ParseChord parses the "Ctrl+Shift+O" notation used in the shortcuts help.
func ParseChord(s string) (Chord, error) {
	if s == "" {
		return Chord{}, fmt.Errorf("empty chord")
	}
	var c Chord
	rest := s
	for {
		mod, after, found := strings.Cut(rest, "+")
		// A trailing "+" is the plus key itself, as in "Ctrl++".
		if !found || after == "" {
			break
		}
		switch strings.ToLower(mod) {
		case "ctrl", "control":
			c.Ctrl = true
		case "shift":
			c.Shift = true
		case "alt", "option":
			c.Alt = true
		case "meta", "cmd", "super":
			c.Meta = true
		default:
			return Chord{}, fmt.Errorf("unknown modifier %q in chord %q", mod, s)
		}
		rest = after
	}
	if rest == "" || (len(rest) > 1 && strings.HasSuffix(rest, "+")) {
		return Chord{}, fmt.Errorf("chord %q has no key", s)
	}
	c.Key = normalizeKey(rest)
	return c, nil
}

// MustParseChord is ParseChord for constant chords.
func MustParseChord(s string) Chord {
	c, err := ParseChord(s)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Chord) String() string {
	var parts []string
	if c.Ctrl {
		parts = append(parts, "Ctrl")
	}
	if c.Alt {
		parts = append(parts, "Alt")
	}
	if c.Shift {
		parts = append(parts, "Shift")
	}
	if c.Meta {
		parts = append(parts, "Meta")
	}
	return strings.Join(append(parts, c.Key), "+")
}

func normalizeKey(key string) string {
	if len([]rune(key)) == 1 {
		return strings.ToUpper(key)
	}
	lower := strings.ToLower(key)
	switch lower {
	case "return":
		return "Enter"
	case "esc":
		return "Escape"
	case "comma":
		return ","
	}
	if key == "" {
		return ""
	}
	return strings.ToUpper(key[:1]) + key[1:]
}

// Binding attaches a chord to an action. Label is the name shown in the
// shortcuts help.
type Binding struct {
	Chord  Chord
	Action Action
	Label  string
}

// Keymap is a flat chord to action table. No two bindings share a chord.
type Keymap struct {
	bindings []Binding
	index    map[Chord]Action
}

// NewKeymap builds a keymap, rejecting duplicate chords.
func NewKeymap(bindings ...Binding) (*Keymap, error) {
	k := &Keymap{index: make(map[Chord]Action, len(bindings))}
	for _, b := range bindings {
		if prev, exists := k.index[b.Chord]; exists {
			return nil, fmt.Errorf("chord %s bound to both %s and %s", b.Chord, prev, b.Action)
		}
		k.index[b.Chord] = b.Action
		k.bindings = append(k.bindings, b)
	}
	return k, nil
}

// DefaultKeymap returns the standard shortcuts.
func DefaultKeymap() *Keymap {
	k, err := NewKeymap(
		Binding{MustParseChord("Ctrl+Enter"), ActionRun, "Run"},
		Binding{MustParseChord("Ctrl+Shift+O"), ActionOpen, "Open"},
		Binding{MustParseChord("Ctrl+Shift+E"), ActionToggleOutput, "Console"},
		Binding{MustParseChord("Ctrl+Shift+S"), ActionSave, "Save"},
		Binding{MustParseChord("Ctrl+Shift+D"), ActionDownload, "Download"},
		Binding{MustParseChord("Ctrl+Shift+A"), ActionShare, "Share"},
		Binding{MustParseChord("Ctrl+Shift+K"), ActionShortcuts, "Keyboard"},
		Binding{MustParseChord("Ctrl+,"), ActionSettings, "Settings"},
	)
	if err != nil {
		panic(err)
	}
	return k
}

// Lookup returns the action bound to chord.
func (k *Keymap) Lookup(c Chord) (Action, bool) {
	a, ok := k.index[c]
	return a, ok
}

// Bindings returns the table in definition order.
func (k *Keymap) Bindings() []Binding {
	return append([]Binding(nil), k.bindings...)
}

// Help renders the table as "Label : Chord" lines.
func (k *Keymap) Help() string {
	lines := make([]string, len(k.bindings))
	for i, b := range k.bindings {
		lines[i] = b.Label + " : " + b.Chord.String()
	}
	return strings.Join(lines, "\n")
}
