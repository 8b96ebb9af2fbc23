package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// idleCollector wires the tracker's off-loop idle callback straight back in,
// the way the session loop does, and records emitted stops.
type idleCollector struct {
	tracker *TypingTracker
	stops   []string
}

func (c *idleCollector) onIdle(gen uint64) {
	if chatID, due := c.tracker.IdleFired(gen); due {
		c.stops = append(c.stops, chatID)
	}
}

func TestTypingFirstInputEmitsStart(t *testing.T) {
	clock := newFakeClock()
	tr := NewTypingTracker(clock, "me")
	col := &idleCollector{tracker: tr}

	assert.True(t, tr.Input("c1", col.onIdle), "first keystroke should emit typing_start")
	assert.False(t, tr.Input("c1", col.onIdle), "second keystroke should not re-emit")
	assert.False(t, tr.Input("c1", col.onIdle))
}

func TestTypingIdleStopFiresOnceAfterWindow(t *testing.T) {
	clock := newFakeClock()
	tr := NewTypingTracker(clock, "me")
	col := &idleCollector{tracker: tr}

	tr.Input("c1", col.onIdle)
	clock.Advance(1999 * time.Millisecond)
	assert.Empty(t, col.stops, "stop must not fire before the window elapses")

	clock.Advance(1 * time.Millisecond)
	require.Equal(t, []string{"c1"}, col.stops)

	clock.Advance(10 * time.Second)
	assert.Equal(t, []string{"c1"}, col.stops, "stop fires exactly once")
}

func TestTypingRearmOnEachKeystroke(t *testing.T) {
	clock := newFakeClock()
	tr := NewTypingTracker(clock, "me")
	col := &idleCollector{tracker: tr}

	tr.Input("c1", col.onIdle)
	clock.Advance(1500 * time.Millisecond)
	tr.Input("c1", col.onIdle) // rearms at t=1500
	clock.Advance(1500 * time.Millisecond)
	assert.Empty(t, col.stops, "window restarts on every keystroke")

	clock.Advance(500 * time.Millisecond)
	assert.Equal(t, []string{"c1"}, col.stops)
}

func TestTypingStaleTimerCallbackIgnored(t *testing.T) {
	clock := newFakeClock()
	tr := NewTypingTracker(clock, "me")
	col := &idleCollector{tracker: tr}

	tr.Input("c1", col.onIdle)
	// A callback with a superseded generation must be a no-op even if it
	// somehow runs after a rearm.
	col.onIdle(0)
	assert.Empty(t, col.stops)

	clock.Advance(2 * time.Second)
	assert.Equal(t, []string{"c1"}, col.stops)
}

func TestTypingSwitchAwayEmitsStopAndDisarms(t *testing.T) {
	clock := newFakeClock()
	tr := NewTypingTracker(clock, "me")
	col := &idleCollector{tracker: tr}

	tr.Input("c1", col.onIdle)
	chatID, due := tr.SwitchAway()
	require.True(t, due)
	assert.Equal(t, "c1", chatID)

	clock.Advance(5 * time.Second)
	assert.Empty(t, col.stops, "disarmed timer must not fire")

	_, due = tr.SwitchAway()
	assert.False(t, due, "nothing pending after a switch")
}

func TestTypingCustomIdleWindow(t *testing.T) {
	clock := newFakeClock()
	tr := NewTypingTracker(clock, "me")
	tr.SetIdleWindow(500 * time.Millisecond)
	col := &idleCollector{tracker: tr}

	tr.Input("c1", col.onIdle)
	clock.Advance(500 * time.Millisecond)
	assert.Equal(t, []string{"c1"}, col.stops)
}

func TestRemoteTypingSet(t *testing.T) {
	clock := newFakeClock()
	tr := NewTypingTracker(clock, "me")

	tr.ApplyRemote("c1", "alice", true)
	tr.ApplyRemote("c1", "bob", true)
	tr.ApplyRemote("c2", "carol", true)
	assert.Equal(t, []string{"alice", "bob"}, tr.TypingUsers("c1"))
	assert.Equal(t, []string{"carol"}, tr.TypingUsers("c2"))

	tr.ApplyRemote("c1", "alice", false)
	assert.Equal(t, []string{"bob"}, tr.TypingUsers("c1"))
}

func TestRemoteTypingRemovalIsUnconditional(t *testing.T) {
	clock := newFakeClock()
	tr := NewTypingTracker(clock, "me")

	// Removing someone never added must not panic or add them.
	tr.ApplyRemote("c1", "ghost", false)
	assert.Empty(t, tr.TypingUsers("c1"))
}

func TestRemoteTypingIgnoresSelfEcho(t *testing.T) {
	clock := newFakeClock()
	tr := NewTypingTracker(clock, "me")

	tr.ApplyRemote("c1", "me", true)
	assert.Empty(t, tr.TypingUsers("c1"), "own echo must not appear as remote typing")
}

func TestResetRemoteClearsChat(t *testing.T) {
	clock := newFakeClock()
	tr := NewTypingTracker(clock, "me")

	tr.ApplyRemote("c1", "alice", true)
	tr.ApplyRemote("c2", "bob", true)
	tr.ResetRemote("c1")
	assert.Empty(t, tr.TypingUsers("c1"))
	assert.Equal(t, []string{"bob"}, tr.TypingUsers("c2"), "other chats unaffected")
}
