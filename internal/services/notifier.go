package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/memories-social/apiserver/internal/mail"
	"github.com/memories-social/apiserver/internal/mq"
	"github.com/memories-social/apiserver/internal/store"
)

// Notifier consumes activity events and emails the affected user. It is
// run by the worker command, off the request path.
type Notifier struct {
	users  UserRepository
	mailer mail.Mailer
	from   string
}

func NewNotifier(users UserRepository, mailer mail.Mailer, from string) *Notifier {
	return &Notifier{
		users:  users,
		mailer: mailer,
		from:   from,
	}
}

// Handle processes one event. Unknown event types and events about
// deleted users are dropped; a mail failure is returned so the broker
// redelivers.
func (n *Notifier) Handle(ctx context.Context, msg mq.Message) error {
	var event ActivityEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		return nil
	}
	if event.Type != EventUserFollowed {
		return nil
	}

	target, err := n.users.GetByID(ctx, event.TargetUserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}
	actor, err := n.users.GetByID(ctx, event.ActorID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}

	body := fmt.Sprintf(`
	<h2>Hello %s %s</h2>
	<p>%s started following you.</p>
	<p>Regards</p>
	<p>The Memories Team</p>
	`, target.FirstName, target.LastName, actor.Username)

	return n.mailer.Send(ctx, "You have a new follower", body, target.Email, n.from)
}
