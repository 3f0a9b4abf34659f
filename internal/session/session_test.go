package session

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andyk/ht/internal/events"
	"github.com/andyk/ht/internal/vt"
)

// startSession spawns cat on a PTY; the tty driver echoes everything we
// type, which is all these tests need to observe round trips.
func startSession(t *testing.T, cols, rows int) *Session {
	t.Helper()

	sess, err := New([]string{"cat"}, cols, rows)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		_ = sess.Run(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		select {
		case <-sess.Done():
		case <-time.After(5 * time.Second):
			t.Error("session did not shut down")
		}
	})

	return sess
}

func waitFor(t *testing.T, sub *events.Subscriber, typ events.Type) events.Event {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-sub.Events():
			require.True(t, ok, "subscriber closed while waiting for %s", typ)
			if ev.Type == typ {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s event", typ)
		}
	}
}

func waitForOutput(t *testing.T, sub *events.Subscriber, substr string) string {
	t.Helper()
	var all strings.Builder
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-sub.Events():
			require.True(t, ok, "subscriber closed while waiting for output %q", substr)
			if ev.Type != events.TypeOutput {
				continue
			}
			all.WriteString(ev.Data.(events.OutputData).Seq)
			if strings.Contains(all.String(), substr) {
				return all.String()
			}
		case <-deadline:
			t.Fatalf("timed out waiting for output containing %q, got %q", substr, all.String())
		}
	}
}

func TestSessionInitSeedsSubscriber(t *testing.T) {
	sess := startSession(t, 80, 24)

	sub, err := sess.Subscribe(map[events.Type]bool{events.TypeInit: true})
	require.NoError(t, err)

	ev := waitFor(t, sub, events.TypeInit)
	data := ev.Data.(events.InitData)
	assert.Equal(t, 80, data.Cols)
	assert.Equal(t, 24, data.Rows)
	assert.Greater(t, data.Pid, 0)
	assert.Len(t, strings.Split(data.Text, "\n"), 24)
}

func TestSessionInputAndSnapshot(t *testing.T) {
	sess := startSession(t, 80, 24)

	sub, err := sess.Subscribe(map[events.Type]bool{
		events.TypeOutput:   true,
		events.TypeSnapshot: true,
	})
	require.NoError(t, err)

	require.NoError(t, sess.Enqueue(InputCommand{Payload: "hello\r"}))
	waitForOutput(t, sub, "hello")

	require.NoError(t, sess.Enqueue(SnapshotCommand{}))
	ev := waitFor(t, sub, events.TypeSnapshot)
	data := ev.Data.(events.SnapshotData)

	assert.Equal(t, 80, data.Cols)
	assert.Equal(t, 24, data.Rows)
	lines := strings.Split(data.Text, "\n")
	require.Len(t, lines, 24)
	assert.True(t, strings.HasPrefix(lines[0], "hello"), "line 0 = %q", lines[0])
	for _, line := range lines {
		assert.LessOrEqual(t, len([]rune(line)), 80)
	}
}

func TestSessionSendKeysMatchesInput(t *testing.T) {
	sess := startSession(t, 80, 24)

	sub, err := sess.Subscribe(map[events.Type]bool{events.TypeOutput: true})
	require.NoError(t, err)

	require.NoError(t, sess.Enqueue(SendKeysCommand{Keys: []string{"echo", " ", "world", "Enter"}}))
	out := waitForOutput(t, sub, "echo world")
	assert.Contains(t, out, "echo world")
}

func TestSessionCtrlCTerminatesChild(t *testing.T) {
	sess := startSession(t, 80, 24)

	// ^c resolves to 0x03; the tty turns it into SIGINT for cat
	require.NoError(t, sess.Enqueue(SendKeysCommand{Keys: []string{"^c"}}))

	select {
	case <-sess.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("child did not terminate on ^c")
	}
}

func TestSessionResize(t *testing.T) {
	sess := startSession(t, 80, 24)

	sub, err := sess.Subscribe(map[events.Type]bool{
		events.TypeResize:   true,
		events.TypeSnapshot: true,
	})
	require.NoError(t, err)

	require.NoError(t, sess.Enqueue(ResizeCommand{Cols: 10, Rows: 3}))
	ev := waitFor(t, sub, events.TypeResize)
	assert.Equal(t, events.ResizeData{Cols: 10, Rows: 3}, ev.Data)

	require.NoError(t, sess.Enqueue(SnapshotCommand{}))
	snap := waitFor(t, sub, events.TypeSnapshot).Data.(events.SnapshotData)
	assert.Equal(t, 10, snap.Cols)
	assert.Equal(t, 3, snap.Rows)
	lines := strings.Split(snap.Text, "\n")
	require.Len(t, lines, 3)
	for _, line := range lines {
		assert.LessOrEqual(t, len([]rune(line)), 10)
	}
}

func TestSessionInvalidResizeRejected(t *testing.T) {
	sess := startSession(t, 80, 24)

	sub, err := sess.Subscribe(map[events.Type]bool{
		events.TypeResize:   true,
		events.TypeSnapshot: true,
	})
	require.NoError(t, err)

	require.NoError(t, sess.Enqueue(ResizeCommand{Cols: 0, Rows: 3}))
	require.NoError(t, sess.Enqueue(SnapshotCommand{}))

	// no resize event fires; the snapshot arrives first and shows the
	// unchanged size
	ev := waitFor(t, sub, events.TypeSnapshot)
	snap := ev.Data.(events.SnapshotData)
	assert.Equal(t, 80, snap.Cols)
	assert.Equal(t, 24, snap.Rows)
}

func TestSessionResizeToSameSizeStillPublishes(t *testing.T) {
	sess := startSession(t, 80, 24)

	sub, err := sess.Subscribe(map[events.Type]bool{events.TypeResize: true})
	require.NoError(t, err)

	require.NoError(t, sess.Enqueue(ResizeCommand{Cols: 80, Rows: 24}))
	ev := waitFor(t, sub, events.TypeResize)
	assert.Equal(t, events.ResizeData{Cols: 80, Rows: 24}, ev.Data)
}

func TestSessionSnapshotReplayRoundTrip(t *testing.T) {
	sess := startSession(t, 80, 24)

	sub, err := sess.Subscribe(map[events.Type]bool{
		events.TypeOutput:   true,
		events.TypeSnapshot: true,
	})
	require.NoError(t, err)

	require.NoError(t, sess.Enqueue(InputCommand{Payload: "replay me\r"}))
	waitForOutput(t, sub, "replay me")

	require.NoError(t, sess.Enqueue(SnapshotCommand{}))
	snap := waitFor(t, sub, events.TypeSnapshot).Data.(events.SnapshotData)

	fresh := vt.New(snap.Cols, snap.Rows)
	fresh.Feed([]byte(snap.Seq))
	assert.Equal(t, snap.Text, fresh.Text())
}

func TestSessionShutdownOnCommandSourceEOF(t *testing.T) {
	sess := startSession(t, 80, 24)

	sub, err := sess.Subscribe(map[events.Type]bool{events.TypeOutput: true})
	require.NoError(t, err)

	input := `{"type":"input","payload":"hi\r"}` + "\n\n   \n"
	ReadCommands(strings.NewReader(input), sess)
	waitForOutput(t, sub, "hi")

	sess.Shutdown()
	select {
	case <-sess.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("session did not shut down after command source EOF")
	}
}

func TestSessionEnqueueAfterShutdown(t *testing.T) {
	sess, err := New([]string{"cat"}, 80, 24)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sess.Run(ctx) }()
	cancel()
	require.NoError(t, <-done)

	assert.ErrorIs(t, sess.Enqueue(SnapshotCommand{}), ErrSessionClosed)
	_, err = sess.Subscribe(map[events.Type]bool{events.TypeOutput: true})
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestSubscribeAtStartSeesFirstOutput(t *testing.T) {
	sess, err := New([]string{"echo", "first words"}, 80, 24)
	require.NoError(t, err)

	sub := sess.SubscribeAtStart(map[events.Type]bool{
		events.TypeInit:   true,
		events.TypeOutput: true,
	})

	go func() { _ = sess.Run(context.Background()) }()
	t.Cleanup(func() {
		sess.Shutdown()
		<-sess.Done()
	})

	ev := waitFor(t, sub, events.TypeInit)
	assert.Equal(t, 80, ev.Data.(events.InitData).Cols)

	waitForOutput(t, sub, "first words")
}
