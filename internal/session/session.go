// Package session couples a PTY-backed child process with a VT emulator and
// drives both from a single loop that multiplexes child output, client
// commands, subscription requests and shutdown.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/andyk/ht/internal/events"
	"github.com/andyk/ht/internal/keymap"
	"github.com/andyk/ht/internal/logger"
	"github.com/andyk/ht/internal/pty"
	"github.com/andyk/ht/internal/vt"
)

// readChunkSize caps how much child output one loop iteration consumes.
const readChunkSize = 64 * 1024

// ErrSessionClosed is returned for commands and subscriptions arriving after
// shutdown.
var ErrSessionClosed = errors.New("session closed")

// Session owns the emulator, the PTY handle and the event bus. The emulator
// is only touched from the loop goroutine; a reader goroutine does the
// blocking PTY reads, and the bus guards itself with a lock. External
// callers send commands and subscription requests to the loop through
// channels.
type Session struct {
	term *vt.Terminal
	pty  *pty.Pty
	bus  *events.Bus

	cmds   chan Command
	subs   chan subscribeReq
	chunks chan []byte

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	exitCode int
}

type subscribeReq struct {
	filter map[events.Type]bool
	reply  chan *events.Subscriber
}

// New spawns the child on a fresh PTY sized cols x rows.
func New(argv []string, cols, rows int) (*Session, error) {
	p, err := pty.Spawn(argv, cols, rows)
	if err != nil {
		return nil, err
	}
	return &Session{
		term:   vt.New(cols, rows),
		pty:    p,
		bus:    events.NewBus(),
		cmds:   make(chan Command),
		subs:   make(chan subscribeReq),
		chunks: make(chan []byte),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}, nil
}

// Pid returns the child process id.
func (s *Session) Pid() int {
	return s.pty.Pid()
}

// Done is closed once the loop has fully shut down.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// ExitCode reports the child's exit code after Done is closed.
func (s *Session) ExitCode() int {
	return s.exitCode
}

// Shutdown asks the loop to stop. Safe to call from any goroutine, more
// than once, and before Run.
func (s *Session) Shutdown() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// Enqueue hands a command to the loop, blocking while the loop is busy. The
// blocking is deliberate: a full PTY write queue backpressures the command
// source instead of growing without bound.
func (s *Session) Enqueue(cmd Command) error {
	select {
	case s.cmds <- cmd:
		return nil
	case <-s.done:
		return ErrSessionClosed
	}
}

// Subscribe registers an event consumer, loop-ordered: when the filter
// admits init, the subscriber's first event is an init synthesized from the
// grid as the loop sees it, and every later event it receives was published
// after that point.
func (s *Session) Subscribe(filter map[events.Type]bool) (*events.Subscriber, error) {
	req := subscribeReq{filter: filter, reply: make(chan *events.Subscriber, 1)}
	select {
	case s.subs <- req:
		return <-req.reply, nil
	case <-s.done:
		return nil, ErrSessionClosed
	}
}

// SubscribeAtStart registers a consumer before Run so that not even the
// first child output chunk is missed. The STDOUT sink uses it; everyone
// connecting later goes through Subscribe. Must not be called once Run has
// started.
func (s *Session) SubscribeAtStart(filter map[events.Type]bool) *events.Subscriber {
	return s.subscribe(filter)
}

// Unsubscribe detaches an event consumer and closes its queue.
func (s *Session) Unsubscribe(sub *events.Subscriber) {
	s.bus.Unsubscribe(sub)
}

// Run drives the session until the child exits, the context is canceled or
// Shutdown is called. It blocks for the session's whole lifetime.
func (s *Session) Run(ctx context.Context) error {
	go s.readOutput()

	for {
		select {
		case chunk, ok := <-s.chunks:
			if !ok {
				// Child exited and all output is consumed.
				s.shutdown()
				return nil
			}
			s.handleChunk(chunk)
		case cmd := <-s.cmds:
			s.apply(cmd)
		case req := <-s.subs:
			req.reply <- s.subscribe(req.filter)
		case <-ctx.Done():
			s.drainAndShutdown()
			return nil
		case <-s.stop:
			s.drainAndShutdown()
			return nil
		}
	}
}

// drainAndShutdown unblocks the reader by closing the master, consumes
// whatever the child managed to write before that, then shuts down.
func (s *Session) drainAndShutdown() {
	_ = s.pty.Close()
	for chunk := range s.chunks {
		s.handleChunk(chunk)
	}
	s.shutdown()
}

// readOutput is the only goroutine doing blocking reads on the PTY master.
// It forwards chunks to the loop and closes the channel on EOF, which on
// Linux shows up as EIO once the child is gone.
func (s *Session) readOutput() {
	defer close(s.chunks)
	buf := make([]byte, readChunkSize)
	for {
		n, err := s.pty.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			s.chunks <- chunk
		}
		if err != nil {
			return
		}
	}
}

// handleChunk feeds one read chunk to the emulator in full, then publishes
// it. A resize command can never interleave inside the chunk because both
// run on the loop.
func (s *Session) handleChunk(chunk []byte) {
	s.term.Feed(chunk)
	s.bus.Publish(events.Event{
		Type: events.TypeOutput,
		Data: events.OutputData{Seq: strings.ToValidUTF8(string(chunk), "�")},
	})
}

func (s *Session) apply(cmd Command) {
	switch c := cmd.(type) {
	case InputCommand:
		s.writeChild([]byte(c.Payload))
	case SendKeysCommand:
		s.writeChild(keymap.Keys(c.Keys, s.term.AppCursor()))
	case ResizeCommand:
		s.applyResize(c)
	case SnapshotCommand:
		cols, rows := s.term.Size()
		s.bus.Publish(events.Event{
			Type: events.TypeSnapshot,
			Data: events.SnapshotData{
				Cols: cols,
				Rows: rows,
				Text: s.term.Text(),
				Seq:  s.term.ReplaySeq(),
			},
		})
	}
}

func (s *Session) applyResize(c ResizeCommand) {
	if c.Cols < 1 || c.Rows < 1 {
		logger.Errorf("invalid resize %dx%d: cols and rows must be at least 1", c.Cols, c.Rows)
		return
	}
	s.term.Resize(c.Cols, c.Rows)
	if err := s.pty.Resize(c.Cols, c.Rows); err != nil {
		logger.Warnf("pty resize: %v", err)
	}
	s.bus.Publish(events.Event{
		Type: events.TypeResize,
		Data: events.ResizeData{Cols: c.Cols, Rows: c.Rows},
	})
}

func (s *Session) writeChild(data []byte) {
	if len(data) == 0 {
		return
	}
	if err := s.pty.Write(data); err != nil {
		logger.Errorf("write to child: %v", err)
	}
}

func (s *Session) subscribe(filter map[events.Type]bool) *events.Subscriber {
	sub := s.bus.Subscribe(filter)
	s.bus.Seed(sub, s.initEvent())
	return sub
}

func (s *Session) initEvent() events.Event {
	cols, rows := s.term.Size()
	return events.Event{
		Type: events.TypeInit,
		Data: events.InitData{
			Cols: cols,
			Rows: rows,
			Pid:  s.pty.Pid(),
			Text: s.term.Text(),
			Seq:  s.term.ReplaySeq(),
		},
	}
}

// shutdown runs exactly once, after output is drained: close the master,
// reap the child, tear down the bus, release waiters.
func (s *Session) shutdown() {
	_ = s.pty.Close()
	code, err := s.pty.Wait()
	if err != nil {
		logger.Warnf("wait for child: %v", err)
	}
	s.exitCode = code
	s.bus.Close()
	close(s.done)
	logger.Debugf("session closed, child exit code %d", code)
}
