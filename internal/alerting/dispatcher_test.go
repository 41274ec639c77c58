package alerting

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu      sync.Mutex
	got     []Message
	err     error
	release chan struct{}
}

func (n *recordingNotifier) Notify(ctx context.Context, msg Message) error {
	if n.release != nil {
		select {
		case <-n.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.got = append(n.got, msg)
	return n.err
}

func (n *recordingNotifier) messages() []Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Message(nil), n.got...)
}

func TestDispatcherDeliversInOrder(t *testing.T) {
	rec := &recordingNotifier{}
	d := NewDispatcher(rec, DispatcherOptions{QueueSize: 8}, testLogger())

	d.Send(Message{Kind: KindInfo, Text: "one"})
	d.Send(Message{Kind: KindTrade, Text: "two"})
	require.NoError(t, d.Close(context.Background()))

	got := rec.messages()
	require.Len(t, got, 2)
	assert.Equal(t, "one", got[0].Text)
	assert.Equal(t, "two", got[1].Text)
	assert.Zero(t, d.Dropped())
}

func TestDispatcherDoesNotRetry(t *testing.T) {
	rec := &recordingNotifier{err: errors.New("telegram down")}
	d := NewDispatcher(rec, DispatcherOptions{QueueSize: 4}, testLogger())

	d.Send(Message{Kind: KindInfo, Text: "once"})
	require.NoError(t, d.Close(context.Background()))

	assert.Len(t, rec.messages(), 1)
	assert.EqualValues(t, 1, d.Failed())
}

func TestDispatcherDropsWhenFullButKeepsCritical(t *testing.T) {
	rec := &recordingNotifier{release: make(chan struct{})}
	d := NewDispatcher(rec, DispatcherOptions{QueueSize: 1, SendTimeout: 5 * time.Second}, testLogger())

	// The worker picks up the first message and blocks; the second fills the queue.
	d.Send(Message{Kind: KindInfo, Text: "first"})
	require.Eventually(t, func() bool { return len(d.queue) == 0 }, time.Second, time.Millisecond)
	d.Send(Message{Kind: KindInfo, Text: "queued"})

	d.Send(Message{Kind: KindOpportunity, Text: "dropped"})
	d.Send(Message{Kind: KindCritical, Text: "critical"})
	assert.EqualValues(t, 1, d.Dropped())

	close(rec.release)
	require.NoError(t, d.Close(context.Background()))

	texts := make(map[string]bool)
	for _, m := range rec.messages() {
		texts[m.Text] = true
	}
	assert.True(t, texts["first"])
	assert.True(t, texts["queued"])
	assert.True(t, texts["critical"])
	assert.False(t, texts["dropped"])
}

func TestDispatcherSendAfterClose(t *testing.T) {
	rec := &recordingNotifier{}
	d := NewDispatcher(rec, DispatcherOptions{}, testLogger())
	require.NoError(t, d.Close(context.Background()))
	require.NoError(t, d.Close(context.Background()))

	d.Send(Message{Kind: KindInfo, Text: "late"})
	assert.Empty(t, rec.messages())
	assert.EqualValues(t, 1, d.Dropped())
}
