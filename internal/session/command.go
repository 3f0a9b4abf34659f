package session

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Command is one client request applied by the session loop.
type Command interface {
	isCommand()
}

// InputCommand writes raw bytes to the child's terminal.
type InputCommand struct {
	Payload string
}

// SendKeysCommand resolves each key specification against the current
// terminal mode and writes the concatenated bytes to the child.
type SendKeysCommand struct {
	Keys []string
}

// ResizeCommand changes the terminal window size.
type ResizeCommand struct {
	Cols int
	Rows int
}

// SnapshotCommand requests a snapshot event of the current screen.
type SnapshotCommand struct{}

func (InputCommand) isCommand()    {}
func (SendKeysCommand) isCommand() {}
func (ResizeCommand) isCommand()   {}
func (SnapshotCommand) isCommand() {}

// ErrMissingType marks a command object without a type tag.
var ErrMissingType = errors.New("command has no type")

// ParseCommand decodes one line of the command protocol. Unknown fields are
// ignored; an unknown or missing type is an error the caller reports once on
// stderr.
func ParseCommand(line []byte) (Command, error) {
	var raw struct {
		Type    string   `json:"type"`
		Payload string   `json:"payload"`
		Keys    []string `json:"keys"`
		Cols    int      `json:"cols"`
		Rows    int      `json:"rows"`
	}
	if err := json.Unmarshal(line, &raw); err != nil {
		return nil, fmt.Errorf("malformed command: %w", err)
	}

	switch raw.Type {
	case "input":
		return InputCommand{Payload: raw.Payload}, nil
	case "sendKeys":
		return SendKeysCommand{Keys: raw.Keys}, nil
	case "resize":
		return ResizeCommand{Cols: raw.Cols, Rows: raw.Rows}, nil
	case "takeSnapshot":
		return SnapshotCommand{}, nil
	case "":
		return nil, ErrMissingType
	default:
		return nil, fmt.Errorf("unknown command type %q", raw.Type)
	}
}
