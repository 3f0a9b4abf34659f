// Package keymap translates symbolic key specifications like "C-x", "Enter"
// or "A-Up" into the byte sequences a real xterm transmits for them.
package keymap

import "fmt"

// namedKey describes the encodings of a key from the closed named set.
type namedKey struct {
	// plain is the unmodified sequence in normal cursor mode
	plain string
	// app is the unmodified sequence in application cursor mode, when it
	// differs from plain
	app string
	// letter keys take modifiers as ESC [ 1 ; <mod> <letter>,
	// tilde keys as ESC [ <code> ; <mod> ~
	letter byte
	code   int
}

var namedKeys = map[string]namedKey{
	"Enter":    {plain: "\r"},
	"Space":    {plain: " "},
	"Escape":   {plain: "\x1b"},
	"Tab":      {plain: "\t"},
	"Up":       {plain: "\x1b[A", app: "\x1bOA", letter: 'A'},
	"Down":     {plain: "\x1b[B", app: "\x1bOB", letter: 'B'},
	"Right":    {plain: "\x1b[C", app: "\x1bOC", letter: 'C'},
	"Left":     {plain: "\x1b[D", app: "\x1bOD", letter: 'D'},
	"Home":     {plain: "\x1b[H", app: "\x1bOH", letter: 'H'},
	"End":      {plain: "\x1b[F", app: "\x1bOF", letter: 'F'},
	"PageUp":   {plain: "\x1b[5~", code: 5},
	"PageDown": {plain: "\x1b[6~", code: 6},
	"F1":       {plain: "\x1bOP", letter: 'P'},
	"F2":       {plain: "\x1bOQ", letter: 'Q'},
	"F3":       {plain: "\x1bOR", letter: 'R'},
	"F4":       {plain: "\x1bOS", letter: 'S'},
	"F5":       {plain: "\x1b[15~", code: 15},
	"F6":       {plain: "\x1b[17~", code: 17},
	"F7":       {plain: "\x1b[18~", code: 18},
	"F8":       {plain: "\x1b[19~", code: 19},
	"F9":       {plain: "\x1b[20~", code: 20},
	"F10":      {plain: "\x1b[21~", code: 21},
	"F11":      {plain: "\x1b[23~", code: 23},
	"F12":      {plain: "\x1b[24~", code: 24},
}

// Resolve turns a key specification into the bytes to write to the child.
// appCursor selects normal vs application arrow encodings and must reflect
// the emulator's mode at the moment the key is applied. Specifications that
// match no rule are returned verbatim as UTF-8.
func Resolve(spec string, appCursor bool) []byte {
	if seq, ok := resolve(spec, appCursor); ok {
		return seq
	}
	return []byte(spec)
}

func resolve(spec string, appCursor bool) ([]byte, bool) {
	// ^X shorthand for control
	if len(spec) == 2 && spec[0] == '^' {
		if b, ok := ctrlByte(spec[1]); ok {
			return []byte{b}, true
		}
		return nil, false
	}

	rest := spec
	var ctrl, shift, alt bool
	for len(rest) > 2 && rest[1] == '-' {
		switch rest[0] {
		case 'C':
			ctrl = true
		case 'S':
			shift = true
		case 'A':
			alt = true
		default:
			return nil, false
		}
		rest = rest[2:]
	}

	if key, ok := namedKeys[rest]; ok {
		return resolveNamed(key, ctrl, shift, alt, appCursor)
	}

	// Single-character base
	runes := []rune(rest)
	if len(runes) != 1 || shift {
		return nil, false
	}

	var out []byte
	if alt {
		out = append(out, 0x1b)
	}
	if ctrl {
		b, ok := ctrlByte(rest[0])
		if !ok {
			return nil, false
		}
		return append(out, b), true
	}
	if alt {
		return append(out, []byte(rest)...), true
	}
	return nil, false
}

func resolveNamed(key namedKey, ctrl, shift, alt bool, appCursor bool) ([]byte, bool) {
	if !ctrl && !shift && !alt {
		if appCursor && key.app != "" {
			return []byte(key.app), true
		}
		return []byte(key.plain), true
	}

	// Alt alone is the ESC prefix, like on any other key.
	if alt && !ctrl && !shift {
		seq := key.plain
		if appCursor && key.app != "" {
			seq = key.app
		}
		return append([]byte{0x1b}, seq...), true
	}

	mod := 1
	if shift {
		mod++
	}
	if alt {
		mod += 2
	}
	if ctrl {
		mod += 4
	}

	switch {
	case key.letter != 0:
		return []byte(fmt.Sprintf("\x1b[1;%d%c", mod, key.letter)), true
	case key.code != 0:
		return []byte(fmt.Sprintf("\x1b[%d;%d~", key.code, mod)), true
	default:
		// Enter, Space, Escape, Tab carry no xterm modifier encoding
		return nil, false
	}
}

// ctrlByte maps a character to its C0 control byte: letters fold to
// upper-case before masking, and the @..Z[\]^_ column plus ? are accepted.
func ctrlByte(c byte) (byte, bool) {
	switch {
	case c >= 'a' && c <= 'z':
		c = c - 'a' + 'A'
	case c == '?':
		return 0x7f, true
	}
	if c >= '@' && c <= '_' {
		return c & 0x1f, true
	}
	return 0, false
}

// Keys resolves a list of key specifications and concatenates the results.
func Keys(specs []string, appCursor bool) []byte {
	var out []byte
	for _, s := range specs {
		out = append(out, Resolve(s, appCursor)...)
	}
	return out
}
