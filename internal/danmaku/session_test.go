package danmaku

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/christian-lee/streamcast/internal/model"
)

type nopSink struct {
	events atomic.Int32
}

func (s *nopSink) Emit(eventName string, payload any) {}

func (s *nopSink) OnDanmaku(event model.DanmakuEvent) {
	s.events.Add(1)
}

type alwaysFailClient struct {
	connectAttempts atomic.Int32
}

func (c *alwaysFailClient) Connect(ctx context.Context) error {
	c.connectAttempts.Add(1)
	return errors.New("network: dial refused")
}

func (c *alwaysFailClient) Run(ctx context.Context, sink Sink) error { return nil }

func (c *alwaysFailClient) Close() error { return nil }

func TestRunSessionStopsPromptlyMidBackoff(t *testing.T) {
	client := &alwaysFailClient{}
	sink := &nopSink{}
	stop := make(chan struct{})

	done := make(chan struct{})
	go func() {
		RunSession(context.Background(), "test/room", client, sink, stop)
		close(done)
	}()

	// let the first Connect attempt fail and enter its 1s backoff window
	time.Sleep(50 * time.Millisecond)
	close(stop)

	select {
	case <-done:
	case <-time.After(1200 * time.Millisecond):
		t.Fatal("RunSession did not stop within the backoff + budget window")
	}

	assert.GreaterOrEqual(t, client.connectAttempts.Load(), int32(1))
}

func TestRunSessionStopsOnContextCancel(t *testing.T) {
	client := &alwaysFailClient{}
	sink := &nopSink{}
	stop := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		RunSession(ctx, "test/room", client, sink, stop)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(1200 * time.Millisecond):
		t.Fatal("RunSession did not stop on context cancellation")
	}
}

type succeedThenFailClient struct {
	runCalls atomic.Int32
}

func (c *succeedThenFailClient) Connect(ctx context.Context) error { return nil }

func (c *succeedThenFailClient) Run(ctx context.Context, sink Sink) error {
	c.runCalls.Add(1)
	sink.OnDanmaku(model.DanmakuEvent{RoomID: "74960", User: "u", Content: "hi"})
	return errors.New("network: connection reset")
}

func (c *succeedThenFailClient) Close() error { return nil }

func TestRunSessionEmitsEventsBeforeReconnecting(t *testing.T) {
	client := &succeedThenFailClient{}
	sink := &nopSink{}
	stop := make(chan struct{})

	done := make(chan struct{})
	go func() {
		RunSession(context.Background(), "test/room", client, sink, stop)
		close(done)
	}()

	assert.Eventually(t, func() bool { return sink.events.Load() >= 1 }, time.Second, 10*time.Millisecond)
	close(stop)

	select {
	case <-done:
	case <-time.After(1200 * time.Millisecond):
		t.Fatal("RunSession did not stop after close(stop)")
	}
}
