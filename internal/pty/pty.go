// Package pty owns the master side of a pseudoterminal pair with a child
// process spawned on the slave side.
package pty

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"

	"github.com/creack/pty"
)

// ErrWriteToClosedPty is returned by Write after the handle is closed.
var ErrWriteToClosedPty = errors.New("write to closed pty")

// Pty is a spawned child attached to a pseudoterminal. Read and Write act on
// the master descriptor; the child sees the slave as its controlling
// terminal.
type Pty struct {
	master *os.File
	cmd    *exec.Cmd

	mu     sync.Mutex
	closed bool
}

// Spawn opens a new PTY pair sized cols x rows and starts argv[0] on the
// slave side as session leader. The child inherits the parent environment
// plus TERM and COLORTERM.
func Spawn(argv []string, cols, rows int) (*Pty, error) {
	if len(argv) == 0 {
		return nil, errors.New("empty command")
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Env = append(os.Environ(),
		"TERM=xterm-256color",
		"COLORTERM=truecolor",
	)

	master, err := pty.StartWithSize(cmd, &pty.Winsize{
		Cols: uint16(cols),
		Rows: uint16(rows),
	})
	if err != nil {
		return nil, fmt.Errorf("spawn %s: %w", argv[0], err)
	}

	return &Pty{master: master, cmd: cmd}, nil
}

// Read blocks until child output is available and fills p with it. After the
// child exits and the slave side is gone, Read returns io.EOF or EIO
// depending on the platform; both mean the stream is done.
func (p *Pty) Read(buf []byte) (int, error) {
	return p.master.Read(buf)
}

// Write sends input bytes to the child, looping until the kernel accepted
// everything.
func (p *Pty) Write(data []byte) error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return ErrWriteToClosedPty
	}

	for len(data) > 0 {
		n, err := p.master.Write(data)
		if err != nil {
			return fmt.Errorf("pty write: %w", err)
		}
		data = data[n:]
	}
	return nil
}

// Resize sets the window size on the slave side. The kernel delivers
// SIGWINCH to the child's process group.
func (p *Pty) Resize(cols, rows int) error {
	return pty.Setsize(p.master, &pty.Winsize{
		Cols: uint16(cols),
		Rows: uint16(rows),
	})
}

// Pid returns the child process id.
func (p *Pty) Pid() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// Close closes the master descriptor. Pending Reads unblock with an error.
func (p *Pty) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.master.Close()
}

// Wait reaps the child and returns its exit code. A child killed by a
// signal reports -1; Wait itself only fails on wait errors, not on non-zero
// exits.
func (p *Pty) Wait() (int, error) {
	err := p.cmd.Wait()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		return -1, err
	}
	return p.cmd.ProcessState.ExitCode(), nil
}

// Kill sends SIGKILL to the child. Used on forced shutdown when the child
// ignores the closed terminal.
func (p *Pty) Kill() error {
	if p.cmd.Process == nil {
		return nil
	}
	return p.cmd.Process.Kill()
}
