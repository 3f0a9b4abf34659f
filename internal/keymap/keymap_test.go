package keymap

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveNamedKeys(t *testing.T) {
	tests := []struct {
		spec string
		want string
	}{
		{"Enter", "\r"},
		{"Space", " "},
		{"Escape", "\x1b"},
		{"Tab", "\t"},
		{"Up", "\x1b[A"},
		{"Down", "\x1b[B"},
		{"Right", "\x1b[C"},
		{"Left", "\x1b[D"},
		{"Home", "\x1b[H"},
		{"End", "\x1b[F"},
		{"PageUp", "\x1b[5~"},
		{"PageDown", "\x1b[6~"},
		{"F1", "\x1bOP"},
		{"F4", "\x1bOS"},
		{"F5", "\x1b[15~"},
		{"F12", "\x1b[24~"},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			assert.Equal(t, []byte(tt.want), Resolve(tt.spec, false))
		})
	}
}

func TestResolveApplicationCursorMode(t *testing.T) {
	assert.Equal(t, []byte("\x1bOA"), Resolve("Up", true))
	assert.Equal(t, []byte("\x1bOD"), Resolve("Left", true))
	assert.Equal(t, []byte("\x1bOH"), Resolve("Home", true))
	// Non-cursor keys are unaffected by the mode
	assert.Equal(t, []byte("\x1b[5~"), Resolve("PageUp", true))
	assert.Equal(t, []byte("\r"), Resolve("Enter", true))
}

func TestResolveControlCharacters(t *testing.T) {
	tests := []struct {
		spec string
		want []byte
	}{
		{"^c", []byte{0x03}},
		{"C-c", []byte{0x03}},
		{"C-a", []byte{0x01}},
		{"C-A", []byte{0x01}},
		{"^Z", []byte{0x1a}},
		{"C-[", []byte{0x1b}},
		{"C-@", []byte{0x00}},
		{"C-\\", []byte{0x1c}},
		{"C-]", []byte{0x1d}},
		{"C-^", []byte{0x1e}},
		{"C-_", []byte{0x1f}},
		{"C-?", []byte{0x7f}},
		{"^?", []byte{0x7f}},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(tt.spec, false))
		})
	}
}

func TestResolveModifiedNamedKeys(t *testing.T) {
	// Ctrl is xterm modifier parameter 5, Shift is 2
	assert.Equal(t, []byte("\x1b[1;5A"), Resolve("C-Up", false))
	assert.Equal(t, []byte("\x1b[1;2C"), Resolve("S-Right", false))
	assert.Equal(t, []byte("\x1b[1;5H"), Resolve("C-Home", false))
	assert.Equal(t, []byte("\x1b[5;5~"), Resolve("C-PageUp", false))
	assert.Equal(t, []byte("\x1b[15;2~"), Resolve("S-F5", false))
	assert.Equal(t, []byte("\x1b[1;5P"), Resolve("C-F1", false))
}

func TestResolveAltPrefix(t *testing.T) {
	assert.Equal(t, []byte("\x1bx"), Resolve("A-x", false))
	assert.Equal(t, []byte("\x1b\x1b[A"), Resolve("A-Up", false))
	assert.Equal(t, []byte("\x1b\x1bOA"), Resolve("A-Up", true))
	// Alt+Ctrl on a character: ESC prefix plus control byte
	assert.Equal(t, []byte{0x1b, 0x03}, Resolve("A-C-c", false))
	assert.Equal(t, []byte{0x1b, 0x03}, Resolve("C-A-c", false))
}

func TestResolveCombinedArrowModifiers(t *testing.T) {
	// n = 1 + shift(1) + alt(2) + ctrl(4)
	assert.Equal(t, []byte("\x1b[1;6A"), Resolve("C-S-Up", false))
	assert.Equal(t, []byte("\x1b[1;7B"), Resolve("C-A-Down", false))
	assert.Equal(t, []byte("\x1b[1;8C"), Resolve("C-S-A-Right", false))
	assert.Equal(t, []byte("\x1b[1;4D"), Resolve("S-A-Left", false))
}

func TestResolveUnrecognizedVerbatim(t *testing.T) {
	tests := []string{
		"hello",
		"echo",
		" ",
		"-",
		"S-a",
		"C-",
		"C-Foo",
		"ä",
		"端末",
	}

	for _, spec := range tests {
		t.Run(spec, func(t *testing.T) {
			assert.Equal(t, []byte(spec), Resolve(spec, false))
		})
	}
}

func TestKeysConcatenation(t *testing.T) {
	got := Keys([]string{"echo", " ", "world", "Enter"}, false)
	assert.Equal(t, []byte("echo world\r"), got)

	got = Keys([]string{"^c"}, false)
	assert.Equal(t, []byte{0x03}, got)
}
