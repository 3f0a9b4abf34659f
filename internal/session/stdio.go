package session

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/andyk/ht/internal/events"
	"github.com/andyk/ht/internal/logger"
)

// maxCommandLine bounds one command line; input payloads can be large.
const maxCommandLine = 1024 * 1024

// ReadCommands decodes one JSON command per line from r and enqueues each on
// the session, skipping blank lines and reporting malformed ones on stderr.
// It returns when r is exhausted or the session has closed; the caller
// decides whether EOF ends the session.
func ReadCommands(r io.Reader, s *Session) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxCommandLine)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		cmd, err := ParseCommand(line)
		if err != nil {
			logger.Errorf("%v", err)
			continue
		}
		if err := s.Enqueue(cmd); err != nil {
			return
		}
	}
	if err := scanner.Err(); err != nil {
		logger.Errorf("read commands: %v", err)
	}
}

// WriteEvents serializes each event from the subscriber as one JSON line.
// It returns when the subscriber's queue closes.
func WriteEvents(w io.Writer, sub *events.Subscriber) {
	for ev := range sub.Events() {
		data, err := ev.Marshal()
		if err != nil {
			logger.Errorf("encode event: %v", err)
			continue
		}
		if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
			logger.Errorf("write event: %v", err)
			return
		}
	}
}
