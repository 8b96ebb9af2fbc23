package session

import "context"

// Signaler emits room membership and typing signals. Satisfied by
// *ConnectionManager.
type Signaler interface {
	JoinChat(ctx context.Context, chatID string) error
	LeaveChat(ctx context.Context, chatID string) error
	TypingStart(ctx context.Context, chatID string) error
	TypingStop(ctx context.Context, chatID string) error
}

// RoomSubscription tracks which chat room this client has joined.
// At most one room is joined at a time: switching always leaves the old
// room before joining the new one. Not safe for concurrent use.
type RoomSubscription struct {
	signaler Signaler
	current  string // "" means unselected
}

// NewRoomSubscription creates an unselected subscription.
func NewRoomSubscription(signaler Signaler) *RoomSubscription {
	return &RoomSubscription{signaler: signaler}
}

// Current returns the selected chat id, or "" when unselected.
func (s *RoomSubscription) Current() string { return s.current }

// Select switches the subscription to chatID. Reselecting the current chat
// is a no-op and reports changed=false: no leave, no join, no refetch.
// Otherwise the old room (if any) is left first, then the new one joined.
// Signal errors don't block the local state transition; the server drops
// stale memberships on disconnect anyway.
func (s *RoomSubscription) Select(ctx context.Context, chatID string) (changed bool, err error) {
	if chatID == "" || chatID == s.current {
		return false, nil
	}
	if s.current != "" {
		if leaveErr := s.signaler.LeaveChat(ctx, s.current); leaveErr != nil {
			err = leaveErr
		}
	}
	if joinErr := s.signaler.JoinChat(ctx, chatID); joinErr != nil {
		err = joinErr
	}
	s.current = chatID
	return true, err
}

// Deselect leaves the current room and moves to unselected. Already
// unselected is a no-op.
func (s *RoomSubscription) Deselect(ctx context.Context) error {
	if s.current == "" {
		return nil
	}
	err := s.signaler.LeaveChat(ctx, s.current)
	s.current = ""
	return err
}
