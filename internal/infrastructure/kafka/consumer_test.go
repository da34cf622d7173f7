package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/ec-fulfillment/internal/event"
)

// fakeFetcher feeds queued messages to the consume loop and records
// commits. Once the queue is empty it can either fail fetches or block
// until the context dies.
type fakeFetcher struct {
	mu        sync.Mutex
	queue     []kafkago.Message
	fetchErr  error
	Committed []kafkago.Message
}

func (f *fakeFetcher) FetchMessage(ctx context.Context) (kafkago.Message, error) {
	f.mu.Lock()
	if len(f.queue) > 0 {
		msg := f.queue[0]
		f.queue = f.queue[1:]
		f.mu.Unlock()
		return msg, nil
	}
	err := f.fetchErr
	f.mu.Unlock()
	if err != nil {
		return kafkago.Message{}, err
	}
	<-ctx.Done()
	return kafkago.Message{}, ctx.Err()
}

func (f *fakeFetcher) CommitMessages(ctx context.Context, msgs ...kafkago.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Committed = append(f.Committed, msgs...)
	return nil
}

func (f *fakeFetcher) Close() error { return nil }

func TestConsume_CommitsAfterHandlerError(t *testing.T) {
	f := &fakeFetcher{queue: []kafkago.Message{
		{Key: []byte("k1"), Value: []byte("v1")},
		{Key: []byte("k2"), Value: []byte("v2")},
	}}
	c := newConsumerWithReader(f, "payment_events")

	ctx, cancel := context.WithCancel(context.Background())
	var handled []string
	err := c.Consume(ctx, func(ctx context.Context, key, value []byte) error {
		handled = append(handled, string(key))
		if len(handled) == 2 {
			defer cancel()
			return errors.New("boom")
		}
		return nil
	})

	// Both messages were handled and committed; the handler error on the
	// second did not stop the commit.
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"k1", "k2"}, handled)
	require.Len(t, f.Committed, 2)
	assert.Equal(t, "k2", string(f.Committed[1].Key))
}

// Shutdown must not wait out the fetch-error backoff.
func TestConsume_ShutdownDuringFetchBackoff(t *testing.T) {
	f := &fakeFetcher{fetchErr: errors.New("broker unreachable")}
	c := newConsumerWithReader(f, "payment_events")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Consume(ctx, func(ctx context.Context, key, value []byte) error { return nil }) }()

	time.Sleep(20 * time.Millisecond) // let the loop reach the backoff
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("consumer did not stop promptly on cancel")
	}
}

func TestDecodeEnvelope_PassesThrough(t *testing.T) {
	env, err := event.New(event.TypePaymentSuccess, "payment-service", map[string]string{"orderId": "order-1"})
	require.NoError(t, err)
	value, err := json.Marshal(env)
	require.NoError(t, err)

	var gotKey string
	var gotType string
	handler := DecodeEnvelope(func(ctx context.Context, key string, env event.Envelope) error {
		gotKey = key
		gotType = env.Type
		return nil
	})

	require.NoError(t, handler(context.Background(), []byte("order-1"), value))
	assert.Equal(t, "order-1", gotKey)
	assert.Equal(t, event.TypePaymentSuccess, gotType)
}

func TestDecodeEnvelope_SkipsGarbage(t *testing.T) {
	called := false
	handler := DecodeEnvelope(func(ctx context.Context, key string, env event.Envelope) error {
		called = true
		return nil
	})

	// Undecodable messages are skipped without error so the offset still
	// commits and the consumer moves on.
	assert.NoError(t, handler(context.Background(), []byte("k"), []byte("{not json")))
	assert.False(t, called)
}

func TestDecodeEnvelope_PropagatesHandlerError(t *testing.T) {
	env, err := event.New(event.TypePaymentSuccess, "payment-service", map[string]string{})
	require.NoError(t, err)
	value, err := json.Marshal(env)
	require.NoError(t, err)

	boom := errors.New("boom")
	handler := DecodeEnvelope(func(ctx context.Context, key string, env event.Envelope) error {
		return boom
	})

	assert.ErrorIs(t, handler(context.Background(), []byte("k"), value), boom)
}
