// Package notify delivers organizer notifications through a fixed set of
// channels. The dispatcher picks one channel per notification from the
// recipient's preference and retries at most once on a different channel.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
)

// Notification is one message to deliver.
type Notification struct {
	Recipient string `json:"recipient"`
	Channel   string `json:"channel,omitempty"` // preferred channel name, empty for default
	Subject   string `json:"subject"`
	Body      string `json:"body"`
}

// Channel is a single delivery mechanism.
type Channel interface {
	Name() string
	Send(ctx context.Context, recipient, subject, body string) error
}

// SendFunc is the transport boundary a channel writes through. Real SMTP or
// push delivery plugs in here.
type SendFunc func(ctx context.Context, recipient, subject, body string) error

// EmailChannel delivers through an email transport.
type EmailChannel struct {
	send SendFunc
}

// NewEmailChannel creates an email channel. With a nil transport it logs the
// message instead, for local development.
func NewEmailChannel(send SendFunc) *EmailChannel {
	if send == nil {
		send = logDelivery("email")
	}
	return &EmailChannel{send: send}
}

func (c *EmailChannel) Name() string { return "email" }

func (c *EmailChannel) Send(ctx context.Context, recipient, subject, body string) error {
	return c.send(ctx, recipient, subject, body)
}

// PushChannel delivers through a push transport.
type PushChannel struct {
	send SendFunc
}

// NewPushChannel creates a push channel. With a nil transport it logs the
// message instead.
func NewPushChannel(send SendFunc) *PushChannel {
	if send == nil {
		send = logDelivery("push")
	}
	return &PushChannel{send: send}
}

func (c *PushChannel) Name() string { return "push" }

func (c *PushChannel) Send(ctx context.Context, recipient, subject, body string) error {
	return c.send(ctx, recipient, subject, body)
}

func logDelivery(channel string) SendFunc {
	return func(ctx context.Context, recipient, subject, body string) error {
		log.Printf("[%s] to=%s subject=%q body=%q", channel, recipient, subject, body)
		return nil
	}
}

// Dispatcher routes each notification to exactly one channel, with a single
// cross-channel failover. Every send is bounded by the configured timeout.
type Dispatcher struct {
	channels       []Channel
	defaultChannel string
	timeout        time.Duration
}

// NewDispatcher creates a dispatcher over the given channels. The first
// channel is the default when a notification has no usable preference.
func NewDispatcher(timeout time.Duration, channels ...Channel) *Dispatcher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	d := &Dispatcher{channels: channels, timeout: timeout}
	if len(channels) > 0 {
		d.defaultChannel = channels[0].Name()
	}
	return d
}

// Dispatch sends the notification on the preferred channel, falling back to
// one alternate channel on failure. It returns an error only when the
// failover attempt also fails.
func (d *Dispatcher) Dispatch(ctx context.Context, n Notification) error {
	if len(d.channels) == 0 {
		return errors.New("no notification channels configured")
	}
	primary := d.pick(n.Channel)
	if err := d.send(ctx, primary, n); err != nil {
		alt := d.alternate(primary)
		if alt == nil {
			return fmt.Errorf("send via %s: %w", primary.Name(), err)
		}
		log.Printf("channel %s failed for %s, retrying via %s: %v", primary.Name(), n.Recipient, alt.Name(), err)
		if err2 := d.send(ctx, alt, n); err2 != nil {
			return fmt.Errorf("send via %s then %s: %w", primary.Name(), alt.Name(), err2)
		}
	}
	return nil
}

func (d *Dispatcher) send(ctx context.Context, ch Channel, n Notification) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return ch.Send(ctx, n.Recipient, n.Subject, n.Body)
}

func (d *Dispatcher) pick(preferred string) Channel {
	if preferred == "" {
		preferred = d.defaultChannel
	}
	for _, ch := range d.channels {
		if ch.Name() == preferred {
			return ch
		}
	}
	return d.channels[0]
}

func (d *Dispatcher) alternate(used Channel) Channel {
	for _, ch := range d.channels {
		if ch.Name() != used.Name() {
			return ch
		}
	}
	return nil
}
