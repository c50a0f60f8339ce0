package services

import (
	"context"
	"encoding/json"
	"time"
)

// ActivityChannel is the event-bus channel carrying activity events.
const ActivityChannel = "activity-events"

// Activity event types.
const (
	EventPostCreated   = "post.created"
	EventPostLiked     = "post.liked"
	EventPostCommented = "post.commented"
	EventUserFollowed  = "user.followed"
)

// ActivityEvent is the payload published for every social action.
type ActivityEvent struct {
	Type         string    `json:"type"`
	ActorID      int       `json:"actorId"`
	TargetUserID int       `json:"targetUserId,omitempty"`
	PostID       int64     `json:"postId,omitempty"`
	OccurredAt   time.Time `json:"occurredAt"`
}

// EventPublisher is the publishing half of the event bus. *mq.MQ
// satisfies it.
type EventPublisher interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

// publishActivity sends an event best-effort: a nil bus or a broker
// failure never fails the originating request.
func publishActivity(ctx context.Context, bus EventPublisher, event ActivityEvent) {
	if bus == nil {
		return
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	_, _ = bus.Publish(ctx, ActivityChannel, data, map[string]string{"type": event.Type})
}
