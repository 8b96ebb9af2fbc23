package session

import (
	"sort"
	"time"
)

// DefaultTypingIdleWindow is how long after the last keystroke the client
// waits before signalling typing_stop.
const DefaultTypingIdleWindow = 2000 * time.Millisecond

// TypingTracker owns both halves of typing state.
//
// Local half: the first keystroke in the active chat should emit
// typing_start; every keystroke rearms a single idle timer; when the window
// elapses without input, typing_stop is due exactly once. Switching chats
// with the timer pending owes an immediate typing_stop for the old chat.
//
// Remote half: user_typing events maintain a per-chat set of user ids.
// The set for a chat is cleared when that chat loses selection.
//
// The tracker never talks to the wire itself. Its methods report which
// signal is due and the session loop emits it, keeping all socket writes on
// the loop goroutine. Not safe for concurrent use.
type TypingTracker struct {
	clock      Clock
	idleWindow time.Duration
	selfID     string

	activeChat string // chat the pending local-typing state belongs to
	timer      Timer
	armedGen   uint64 // invalidates late timer callbacks after a rearm

	remote map[string]map[string]struct{} // chat id -> set of typing user ids
}

// NewTypingTracker creates a tracker. selfID filters out the server echoing
// our own typing signals back at us.
func NewTypingTracker(clock Clock, selfID string) *TypingTracker {
	return &TypingTracker{
		clock:      clock,
		idleWindow: DefaultTypingIdleWindow,
		selfID:     selfID,
		remote:     make(map[string]map[string]struct{}),
	}
}

// SetIdleWindow overrides the debounce window.
func (t *TypingTracker) SetIdleWindow(d time.Duration) {
	if d > 0 {
		t.idleWindow = d
	}
}

// Input records a local keystroke in chatID. It reports whether typing_start
// is due (first keystroke of a burst) and (re)arms the idle timer; onIdle
// fires on the clock's goroutine when the window elapses, so callers must
// post it back to the loop before touching state.
func (t *TypingTracker) Input(chatID string, onIdle func(gen uint64)) (emitStart bool) {
	if chatID == "" {
		return false
	}
	emitStart = t.activeChat != chatID || t.timer == nil

	if t.timer != nil {
		t.timer.Stop()
	}
	t.activeChat = chatID
	t.armedGen++
	gen := t.armedGen
	t.timer = t.clock.AfterFunc(t.idleWindow, func() { onIdle(gen) })
	return emitStart
}

// IdleFired handles the idle timer callback once it is back on the loop
// goroutine. It reports whether typing_stop is due for chatID; a stale
// generation (the timer was rearmed or cancelled since) is a no-op.
func (t *TypingTracker) IdleFired(gen uint64) (chatID string, emitStop bool) {
	if gen != t.armedGen || t.timer == nil {
		return "", false
	}
	chatID = t.activeChat
	t.timer = nil
	t.activeChat = ""
	return chatID, chatID != ""
}

// SwitchAway cancels any pending local-typing state. It reports whether
// typing_stop is due for the chat that owned the pending timer.
func (t *TypingTracker) SwitchAway() (chatID string, emitStop bool) {
	if t.timer == nil {
		return "", false
	}
	t.timer.Stop()
	t.timer = nil
	t.armedGen++
	chatID = t.activeChat
	t.activeChat = ""
	return chatID, chatID != ""
}

// ApplyRemote applies a user_typing event. Our own echo is ignored.
// is_typing=false removes unconditionally, even if the user was never added.
func (t *TypingTracker) ApplyRemote(chatID, userID string, isTyping bool) {
	if userID == "" || userID == t.selfID {
		return
	}
	if isTyping {
		set, ok := t.remote[chatID]
		if !ok {
			set = make(map[string]struct{})
			t.remote[chatID] = set
		}
		set[userID] = struct{}{}
		return
	}
	if set, ok := t.remote[chatID]; ok {
		delete(set, userID)
		if len(set) == 0 {
			delete(t.remote, chatID)
		}
	}
}

// TypingUsers returns the ids currently typing in chatID, sorted for stable
// rendering.
func (t *TypingTracker) TypingUsers(chatID string) []string {
	set := t.remote[chatID]
	if len(set) == 0 {
		return nil
	}
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ResetRemote drops the remote typing set for a chat, called when the chat
// loses selection.
func (t *TypingTracker) ResetRemote(chatID string) {
	delete(t.remote, chatID)
}
