package editor

import (
	"strings"
	"testing"
)

func TestDefaultKeymapBindings(t *testing.T) {
	k := DefaultKeymap()
	tests := []struct {
		chord string
		want  Action
	}{
		{"Ctrl+Enter", ActionRun},
		{"Ctrl+Shift+O", ActionOpen},
		{"Ctrl+Shift+E", ActionToggleOutput},
		{"Ctrl+Shift+S", ActionSave},
		{"Ctrl+Shift+D", ActionDownload},
		{"Ctrl+Shift+A", ActionShare},
		{"Ctrl+Shift+K", ActionShortcuts},
		{"Ctrl+,", ActionSettings},
	}
	for _, tt := range tests {
		got, ok := k.Lookup(MustParseChord(tt.chord))
		if !ok || got != tt.want {
			t.Errorf("Lookup(%s) = %q, %v; want %q", tt.chord, got, ok, tt.want)
		}
	}

	seen := make(map[Action]bool)
	for _, b := range k.Bindings() {
		seen[b.Action] = true
	}
	for _, a := range Actions {
		if !seen[a] {
			t.Errorf("action %s has no chord", a)
		}
	}
}

func TestKeymapRejectsDuplicateChords(t *testing.T) {
	_, err := NewKeymap(
		Binding{MustParseChord("Ctrl+S"), ActionSave, "Save"},
		Binding{MustParseChord("ctrl+s"), ActionShare, "Share"},
	)
	if err == nil || !strings.Contains(err.Error(), "bound to both") {
		t.Errorf("expected duplicate chord error, got %v", err)
	}
}

func TestUnboundChords(t *testing.T) {
	k := DefaultKeymap()
	for _, c := range []string{"Ctrl+O", "Shift+Enter", "Ctrl+Alt+Enter", "Ctrl+Shift+Enter"} {
		if _, ok := k.Lookup(MustParseChord(c)); ok {
			t.Errorf("%s should not be bound", c)
		}
	}
}

func TestParseChord(t *testing.T) {
	tests := []struct {
		in   string
		want Chord
	}{
		{"Ctrl+Enter", Chord{Ctrl: true, Key: "Enter"}},
		{"ctrl+shift+o", Chord{Ctrl: true, Shift: true, Key: "O"}},
		{"Ctrl+,", Chord{Ctrl: true, Key: ","}},
		{"Ctrl++", Chord{Ctrl: true, Key: "+"}},
		{"Cmd+Return", Chord{Meta: true, Key: "Enter"}},
		{"Alt+Comma", Chord{Alt: true, Key: ","}},
	}
	for _, tt := range tests {
		got, err := ParseChord(tt.in)
		if err != nil {
			t.Errorf("ParseChord(%q) failed: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseChord(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}

	for _, bad := range []string{"", "Hyper+X", "Ctrl+"} {
		if _, err := ParseChord(bad); err == nil {
			t.Errorf("ParseChord(%q) should fail", bad)
		}
	}
}

func TestChordStringRoundTrip(t *testing.T) {
	for _, s := range []string{"Ctrl+Enter", "Ctrl+Shift+O", "Ctrl+,", "Ctrl+Alt+Shift+Meta+X"} {
		c := MustParseChord(s)
		if c.String() != s {
			t.Errorf("String() = %q, want %q", c.String(), s)
		}
	}
}

func TestNewChordNormalizesBrowserKeys(t *testing.T) {
	if NewChord(true, true, false, false, "o") != MustParseChord("Ctrl+Shift+O") {
		t.Error("lower-case key should match")
	}
	if NewChord(true, false, false, false, "Enter") != MustParseChord("Ctrl+Enter") {
		t.Error("Enter should match")
	}
}
