package user

import "time"

// DeletedEvent is emitted after a user document has been removed so that the
// user's tokens and cart can be cleaned up.
type DeletedEvent struct {
	Email      string
	OccurredAt time.Time
}

func (DeletedEvent) EventName() string { return "user.deleted" }

func NewDeletedEvent(email string) DeletedEvent {
	return DeletedEvent{Email: email, OccurredAt: time.Now().UTC()}
}
