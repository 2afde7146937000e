package events

import "time"

const UserLifecycleTopic = "leave.user.lifecycle.v1"

const UserCreated = "user_created"

type UserCreatedEvent struct {
	EventType  string    `json:"event_type"`
	UserID     string    `json:"user_id"`
	Username   string    `json:"username"`
	Role       string    `json:"role"`
	OccurredAt time.Time `json:"occurred_at"`
}
