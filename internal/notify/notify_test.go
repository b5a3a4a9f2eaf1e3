package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingChannel struct {
	name  string
	fail  bool
	sent  []string
	block time.Duration
}

func (c *recordingChannel) Name() string { return c.name }

func (c *recordingChannel) Send(ctx context.Context, recipient, subject, body string) error {
	if c.block > 0 {
		select {
		case <-time.After(c.block):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if c.fail {
		return errors.New(c.name + " down")
	}
	c.sent = append(c.sent, recipient)
	return nil
}

func TestDispatchUsesPreferredChannel(t *testing.T) {
	email := &recordingChannel{name: "email"}
	push := &recordingChannel{name: "push"}
	d := NewDispatcher(time.Second, email, push)

	err := d.Dispatch(context.Background(), Notification{Recipient: "org-1", Channel: "push", Subject: "s", Body: "b"})
	require.NoError(t, err)
	assert.Empty(t, email.sent)
	assert.Equal(t, []string{"org-1"}, push.sent)
}

func TestDispatchDefaultsToFirstChannel(t *testing.T) {
	email := &recordingChannel{name: "email"}
	push := &recordingChannel{name: "push"}
	d := NewDispatcher(time.Second, email, push)

	err := d.Dispatch(context.Background(), Notification{Recipient: "org-1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"org-1"}, email.sent)
	assert.Empty(t, push.sent)
}

func TestDispatchFailsOverOnce(t *testing.T) {
	email := &recordingChannel{name: "email", fail: true}
	push := &recordingChannel{name: "push"}
	d := NewDispatcher(time.Second, email, push)

	err := d.Dispatch(context.Background(), Notification{Recipient: "org-1", Channel: "email"})
	require.NoError(t, err)
	assert.Equal(t, []string{"org-1"}, push.sent)
}

func TestDispatchReportsFailureWhenBothChannelsFail(t *testing.T) {
	email := &recordingChannel{name: "email", fail: true}
	push := &recordingChannel{name: "push", fail: true}
	d := NewDispatcher(time.Second, email, push)

	err := d.Dispatch(context.Background(), Notification{Recipient: "org-1"})
	assert.Error(t, err)
}

func TestDispatchSingleChannelNoFailover(t *testing.T) {
	email := &recordingChannel{name: "email", fail: true}
	d := NewDispatcher(time.Second, email)

	err := d.Dispatch(context.Background(), Notification{Recipient: "org-1"})
	assert.Error(t, err)
}

func TestDispatchBoundedByTimeout(t *testing.T) {
	slow := &recordingChannel{name: "email", block: 5 * time.Second}
	fast := &recordingChannel{name: "push"}
	d := NewDispatcher(50*time.Millisecond, slow, fast)

	start := time.Now()
	err := d.Dispatch(context.Background(), Notification{Recipient: "org-1", Channel: "email"})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, []string{"org-1"}, fast.sent)
}

func TestDispatchUnknownPreferenceFallsBack(t *testing.T) {
	email := &recordingChannel{name: "email"}
	d := NewDispatcher(time.Second, email)

	err := d.Dispatch(context.Background(), Notification{Recipient: "org-1", Channel: "carrier-pigeon"})
	require.NoError(t, err)
	assert.Equal(t, []string{"org-1"}, email.sent)
}

func TestDispatchNoChannels(t *testing.T) {
	d := NewDispatcher(time.Second)
	err := d.Dispatch(context.Background(), Notification{Recipient: "org-1"})
	assert.Error(t, err)
}
