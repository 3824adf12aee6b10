package mailer

import (
	"context"
	"errors"
	"sync"

	"github.com/MrEthical07/phonebook"
)

// ErrOutboxClosed is returned by a closed Outbox.
var ErrOutboxClosed = errors.New("mailer: outbox closed")

// Outbox stores messages in memory.
type Outbox struct {
	mu       sync.Mutex
	messages []phonebook.Message
	failWith error
}

func NewOutbox() *Outbox {
	return &Outbox{}
}

func (o *Outbox) Send(ctx context.Context, msg phonebook.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.failWith != nil {
		return o.failWith
	}
	o.messages = append(o.messages, msg)
	return nil
}

// FailWith makes every later Send return err. Nil restores delivery.
func (o *Outbox) FailWith(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failWith = err
}

// Messages returns a copy of everything sent so far.
func (o *Outbox) Messages() []phonebook.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]phonebook.Message, len(o.messages))
	copy(out, o.messages)
	return out
}

// To returns the messages addressed to recipient, oldest first.
func (o *Outbox) To(recipient string) []phonebook.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []phonebook.Message
	for _, m := range o.messages {
		if m.To == recipient {
			out = append(out, m)
		}
	}
	return out
}

// Last returns the newest message to recipient.
func (o *Outbox) Last(recipient string) (phonebook.Message, bool) {
	msgs := o.To(recipient)
	if len(msgs) == 0 {
		return phonebook.Message{}, false
	}
	return msgs[len(msgs)-1], true
}
