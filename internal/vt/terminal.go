package vt

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/hinshun/vt10x"
)

// Attribute mode bits from vt10x glyph state
const (
	attrReverse   = 1 << 0
	attrUnderline = 1 << 1
	attrBold      = 1 << 2
	attrItalic    = 1 << 4
)

// Terminal maintains an in-memory xterm-compatible screen from an arbitrary
// byte stream. It wraps a vt10x emulator and is not safe for concurrent use;
// the session loop is its only caller.
type Terminal struct {
	term vt10x.Terminal
	cols int
	rows int
}

// New creates a terminal of the given size.
func New(cols, rows int) *Terminal {
	return &Terminal{
		term: vt10x.New(vt10x.WithSize(cols, rows)),
		cols: cols,
		rows: rows,
	}
}

// Feed consumes child output bytes, advancing the screen state.
func (t *Terminal) Feed(p []byte) {
	_, _ = t.term.Write(p)
}

// Resize changes the terminal dimensions. Content is preserved top-left and
// the cursor is clamped into the new bounds.
func (t *Terminal) Resize(cols, rows int) {
	t.cols = cols
	t.rows = rows
	t.term.Resize(cols, rows)
}

// Size returns the current dimensions.
func (t *Terminal) Size() (cols, rows int) {
	return t.cols, t.rows
}

// Cursor returns the cursor position as (row, col).
func (t *Terminal) Cursor() (row, col int) {
	c := t.term.Cursor()
	return c.Y, c.X
}

// CursorVisible reports whether the cursor is currently shown.
func (t *Terminal) CursorVisible() bool {
	return t.term.CursorVisible()
}

// AppCursor reports whether application cursor mode (DECCKM) is active.
// Arrow key encoding depends on it, so the keymap reads this at the moment
// a key is resolved.
func (t *Terminal) AppCursor() bool {
	return t.term.Mode()&vt10x.ModeAppCursor != 0
}

// AppKeypad reports whether application keypad mode (DECKPAM) is active.
func (t *Terminal) AppKeypad() bool {
	return t.term.Mode()&vt10x.ModeAppKeypad != 0
}

// AltScreen reports whether the alternate screen (DECSET 1049) is active.
func (t *Terminal) AltScreen() bool {
	return t.term.Mode()&vt10x.ModeAltScreen != 0
}

// Text returns the visible screen as plain text: exactly rows lines joined
// with \n, trailing blanks trimmed per line.
func (t *Terminal) Text() string {
	lines := make([]string, t.rows)
	var sb strings.Builder
	for row := 0; row < t.rows; row++ {
		sb.Reset()
		for col := 0; col < t.cols; col++ {
			cell := t.term.Cell(col, row)
			if cell.Char == 0 {
				sb.WriteRune(' ')
			} else {
				sb.WriteRune(cell.Char)
			}
		}
		lines[row] = strings.TrimRight(sb.String(), " ")
	}
	return strings.Join(lines, "\n")
}

// ReplaySeq returns a byte sequence that, fed to a blank terminal of the
// same size, reproduces the visible screen, attributes, cursor position and
// input modes. The sequence is rebuilt from the grid, not recorded, so it is
// deterministic for a given screen state.
func (t *Terminal) ReplaySeq() string {
	var buf bytes.Buffer

	buf.WriteString("\x1b[0m\x1b[2J\x1b[H")

	var lastFG, lastBG vt10x.Color = vt10x.DefaultFG, vt10x.DefaultBG
	var lastMode int16
	dirty := false

	for row := 0; row < t.rows; row++ {
		fmt.Fprintf(&buf, "\x1b[%d;1H", row+1)

		for col := 0; col < t.cols; col++ {
			cell := t.term.Cell(col, row)

			if cell.FG != lastFG || cell.BG != lastBG || cell.Mode != lastMode {
				if dirty {
					buf.WriteString("\x1b[0m")
				}

				if cell.Mode&attrBold != 0 {
					buf.WriteString("\x1b[1m")
				}
				if cell.Mode&attrItalic != 0 {
					buf.WriteString("\x1b[3m")
				}
				if cell.Mode&attrUnderline != 0 {
					buf.WriteString("\x1b[4m")
				}
				if cell.Mode&attrReverse != 0 {
					buf.WriteString("\x1b[7m")
				}

				writeColor(&buf, cell.FG, vt10x.DefaultFG, 30, 90, 38)
				writeColor(&buf, cell.BG, vt10x.DefaultBG, 40, 100, 48)

				lastFG = cell.FG
				lastBG = cell.BG
				lastMode = cell.Mode
				dirty = true
			}

			if cell.Char == 0 {
				buf.WriteRune(' ')
			} else {
				buf.WriteRune(cell.Char)
			}
		}
	}

	if dirty {
		buf.WriteString("\x1b[0m")
	}

	if t.AppCursor() {
		buf.WriteString("\x1b[?1h")
	}
	if t.AppKeypad() {
		buf.WriteString("\x1b=")
	}

	row, col := t.Cursor()
	fmt.Fprintf(&buf, "\x1b[%d;%dH", row+1, col+1)

	if !t.CursorVisible() {
		buf.WriteString("\x1b[?25l")
	}

	return buf.String()
}

// writeColor emits the SGR run for one color channel. base/bright/extended
// are the xterm parameter bases for the channel (30/90/38 fg, 40/100/48 bg).
func writeColor(buf *bytes.Buffer, c, def vt10x.Color, base, bright, extended int) {
	if c == def {
		return
	}
	switch {
	case c < 8:
		fmt.Fprintf(buf, "\x1b[%dm", base+int(c))
	case c < 16:
		fmt.Fprintf(buf, "\x1b[%dm", bright+int(c-8))
	case c < 256:
		fmt.Fprintf(buf, "\x1b[%d;5;%dm", extended, c)
	default:
		r := (c >> 16) & 0xFF
		g := (c >> 8) & 0xFF
		b := c & 0xFF
		fmt.Fprintf(buf, "\x1b[%d;2;%d;%d;%dm", extended, r, g, b)
	}
}
