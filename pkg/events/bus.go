// Package events carries launch lifecycle events over an in-memory
// watermill pub/sub.
package events

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	gochannel "github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const TopicLaunch = "rlaunch.launch"

const (
	TypeRunStarted     = "run.started"
	TypeRunFinished    = "run.finished"
	TypeProcessStarted = "process.started"
	TypeProcessExited  = "process.exited"
)

type Bus struct {
	Router     *message.Router
	Publisher  message.Publisher
	Subscriber message.Subscriber

	runOnce sync.Once
}

func NewInMemoryBus() (*Bus, error) {
	logger := newZerologAdapter(log.Logger)
	pubsub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 256,
		// events published right before shutdown must reach the handlers
		// before the router is closed
		BlockPublishUntilSubscriberAck: true,
	}, logger)

	r, err := message.NewRouter(message.RouterConfig{}, logger)
	if err != nil {
		return nil, errors.Wrap(err, "new watermill router")
	}
	return &Bus{
		Router:     r,
		Publisher:  pubsub,
		Subscriber: pubsub,
	}, nil
}

func (b *Bus) AddHandler(name, topic string, handler func(*message.Message) error) {
	b.Router.AddConsumerHandler(name, topic, b.Subscriber, handler)
}

// Run blocks until ctx is done. Publishing before the router is running
// drops messages; wait on Running() first.
func (b *Bus) Run(ctx context.Context) error {
	var runErr error
	b.runOnce.Do(func() {
		go func() {
			<-ctx.Done()
			_ = b.Router.Close()
		}()
		runErr = b.Router.Run(ctx)
	})
	return runErr
}

func (b *Bus) Running() <-chan struct{} {
	return b.Router.Running()
}

// Publish wraps payload in an Envelope and publishes it on TopicLaunch. It
// returns once every subscriber has acked. A nil bus is a no-op so callers
// can leave events unconfigured.
func (b *Bus) Publish(typ string, payload any) error {
	if b == nil {
		return nil
	}
	env, err := NewEnvelope(typ, payload)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return errors.Wrap(err, "marshal envelope")
	}
	return b.Publisher.Publish(TopicLaunch, message.NewMessage(watermill.NewUUID(), raw))
}

// RegisterLogger logs every launch event at the given level.
func RegisterLogger(b *Bus, level zerolog.Level) {
	b.AddHandler("rlaunch-event-log", TopicLaunch, func(msg *message.Message) error {
		defer msg.Ack()

		var env Envelope
		if err := json.Unmarshal(msg.Payload, &env); err != nil {
			return errors.Wrap(err, "unmarshal launch envelope")
		}
		log.WithLevel(level).Str("event", env.Type).RawJSON("payload", nonEmpty(env.Payload)).Msg("launch event")
		return nil
	})
}

func nonEmpty(b json.RawMessage) []byte {
	if len(b) == 0 {
		return []byte("null")
	}
	return b
}
