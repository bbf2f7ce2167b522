// Package signal carries a best-effort out-of-band nudge between processes.
// It exists only to shorten reaction latency: the shared session document is
// the source of truth and every consumer must behave identically when this
// channel is absent or stale.
package signal

import (
	"context"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// DefaultSubject is the core NATS subject nudges are published on.
const DefaultSubject = "drawdeck.nudge"

// Channel publishes and subscribes advisory nudges over core NATS. A nil
// Channel is valid and does nothing, which is how processes run without NATS.
type Channel struct {
	nc      *nats.Conn
	subject string
}

// New wraps an existing NATS connection. Pass a nil connection to disable the
// side channel entirely.
func New(nc *nats.Conn, subject string) *Channel {
	if nc == nil {
		return nil
	}
	if subject == "" {
		subject = DefaultSubject
	}
	return &Channel{nc: nc, subject: subject}
}

// Nudge fires one advisory signal. Failures are logged and swallowed.
func (c *Channel) Nudge(reason string) {
	if c == nil {
		return
	}
	if err := c.nc.Publish(c.subject, []byte(reason)); err != nil {
		log.Debug().Err(err).Str("reason", reason).Msg("nudge publish failed")
	}
}

// Subscribe returns a channel of nudge reasons. The returned channel is nil
// on a nil Channel; selecting on a nil channel blocks, which is the intended
// no-op behavior for consumers running without the side channel.
func (c *Channel) Subscribe(ctx context.Context) (<-chan string, error) {
	if c == nil {
		return nil, nil
	}

	out := make(chan string, 1)
	sub, err := c.nc.Subscribe(c.subject, func(msg *nats.Msg) {
		select {
		case out <- string(msg.Data):
		default:
			// A pending nudge already wakes the consumer; drop extras.
		}
	})
	if err != nil {
		return nil, err
	}

	go func() {
		<-ctx.Done()
		if err := sub.Unsubscribe(); err != nil {
			log.Debug().Err(err).Msg("nudge unsubscribe failed")
		}
		close(out)
	}()
	return out, nil
}
