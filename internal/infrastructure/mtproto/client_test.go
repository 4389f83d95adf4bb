package mtproto

import (
	"context"
	"errors"
	"testing"
	"time"
)

// scriptedClient builds a Client whose run loop is driven by the test instead
// of a live connection.
func scriptedClient(run func(ctx context.Context, f func(context.Context) error) error) *Client {
	return &Client{
		storage: newStringSession(""),
		peers:   newPeerCache(),
		run:     run,
	}
}

func TestConnectReportsConnected(t *testing.T) {
	c := scriptedClient(func(ctx context.Context, f func(context.Context) error) error {
		return f(ctx)
	})

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if !c.IsConnected() {
		t.Fatal("client should report connected while the loop runs")
	}

	c.Disconnect()
	if c.IsConnected() {
		t.Error("client should report disconnected after Disconnect")
	}
}

func TestRunLoopExitClearsConnected(t *testing.T) {
	release := make(chan struct{})
	c := scriptedClient(func(ctx context.Context, f func(context.Context) error) error {
		fctx, cancel := context.WithCancel(ctx)
		defer cancel()
		done := make(chan error, 1)
		go func() { done <- f(fctx) }()
		select {
		case <-release:
			cancel()
			<-done
			return errors.New("connection dropped")
		case err := <-done:
			return err
		}
	})

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if !c.IsConnected() {
		t.Fatal("client should be connected after Connect")
	}

	// Simulate the provider dropping the connection out from under us.
	close(release)

	deadline := time.After(2 * time.Second)
	for c.IsConnected() {
		select {
		case <-deadline:
			t.Fatal("client still reports connected after the run loop exited")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestConnectFailurePropagates(t *testing.T) {
	c := scriptedClient(func(_ context.Context, _ func(context.Context) error) error {
		return errors.New("dc unreachable")
	})

	if err := c.Connect(context.Background()); err == nil {
		t.Fatal("a run loop that dies before ready must fail Connect")
	}
	if c.IsConnected() {
		t.Error("failed connect must not report connected")
	}
}
