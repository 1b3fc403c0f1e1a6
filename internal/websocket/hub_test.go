// Killstream - Killmail Ingestion and Enrichment Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/killstream

package websocket

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/killstream/internal/metrics"
	"github.com/tomtom215/killstream/internal/models"
)

// startHub runs a hub until the test ends.
func startHub(t *testing.T, total TotalFunc) *Hub {
	t.Helper()
	hub := NewHub(total)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = hub.Serve(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return hub
}

func testClient(hub *Hub, buffer int) *Client {
	return &Client{id: clientIDCounter.Add(1), hub: hub, send: make(chan Message, buffer)}
}

func receive(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case msg, ok := <-c.send:
		if !ok {
			t.Fatal("client channel closed")
		}
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
	return Message{}
}

func waitForCount(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for hub.ClientCount() != want {
		if time.Now().After(deadline) {
			t.Fatalf("ClientCount() = %d, want %d", hub.ClientCount(), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHubGreetsWithTotal(t *testing.T) {
	t.Parallel()

	hub := startHub(t, func() int64 { return 9001 })
	c := testClient(hub, 4)
	hub.Register <- c

	msg := receive(t, c)
	if msg.Type != MessageTypeStats {
		t.Fatalf("greeting type = %q", msg.Type)
	}
	if stats, ok := msg.Data.(models.ScanStats); !ok || stats.TotalScanned != 9001 {
		t.Errorf("greeting data = %#v", msg.Data)
	}
}

func TestHubNilTotalGreetsZero(t *testing.T) {
	t.Parallel()

	hub := startHub(t, nil)
	c := testClient(hub, 4)
	hub.Register <- c

	if stats := receive(t, c).Data.(models.ScanStats); stats.TotalScanned != 0 {
		t.Errorf("TotalScanned = %d", stats.TotalScanned)
	}
}

func TestHubDashboardMessages(t *testing.T) {
	t.Parallel()

	hub := startHub(t, nil)
	clients := []*Client{testClient(hub, 8), testClient(hub, 8)}
	for _, c := range clients {
		hub.Register <- c
		receive(t, c)
	}

	kill := &models.KillSummary{ID: 77, Ship: "Rifter"}
	hub.PushKill(kill)
	hub.PushStats(models.ScanStats{TotalScanned: 5})
	hub.PushPerf(models.PerfStats{KillID: 77, LatencyMS: 12.5})

	for i, c := range clients {
		want := []string{MessageTypeRawKill, MessageTypeStats, MessageTypePerf}
		for _, typ := range want {
			msg := receive(t, c)
			if msg.Type != typ {
				t.Fatalf("client %d got %q, want %q", i, msg.Type, typ)
			}
		}
	}
}

func TestHubUnregister(t *testing.T) {
	t.Parallel()

	hub := startHub(t, nil)
	c := testClient(hub, 4)
	hub.Register <- c
	waitForCount(t, hub, 1)

	hub.Unregister <- c
	waitForCount(t, hub, 0)

	receive(t, c) // greeting
	if _, ok := <-c.send; ok {
		t.Error("send channel should be closed after unregister")
	}

	// Unregistering twice must not panic on a closed channel.
	hub.Unregister <- c
	waitForCount(t, hub, 0)
}

func TestHubDropsSlowClient(t *testing.T) {
	t.Parallel()

	hub := startHub(t, nil)
	slow := testClient(hub, 1) // filled by the greeting
	fast := testClient(hub, 8)
	hub.Register <- slow
	hub.Register <- fast
	waitForCount(t, hub, 2)
	receive(t, fast)

	hub.PushStats(models.ScanStats{TotalScanned: 1})
	if msg := receive(t, fast); msg.Type != MessageTypeStats {
		t.Fatalf("fast client got %q", msg.Type)
	}
	waitForCount(t, hub, 1)
}

func TestHubServeClosesClientsOnShutdown(t *testing.T) {
	t.Parallel()

	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- hub.Serve(ctx) }()

	c := testClient(hub, 4)
	hub.Register <- c
	waitForCount(t, hub, 1)
	cancel()

	select {
	case err := <-errc:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Serve did not return")
	}
	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d after shutdown", hub.ClientCount())
	}
}

func TestHubBroadcastFullDrops(t *testing.T) {
	hub := NewHub(nil) // not serving, so the queue never drains
	before := testutil.ToFloat64(metrics.WSErrors.WithLabelValues("broadcast_full"))

	for i := 0; i < broadcastBuffer+3; i++ {
		hub.PushPerf(models.PerfStats{KillID: int64(i)})
	}

	if got := len(hub.broadcast); got != broadcastBuffer {
		t.Errorf("queued %d, want %d", got, broadcastBuffer)
	}
	if got := testutil.ToFloat64(metrics.WSErrors.WithLabelValues("broadcast_full")); got != before+3 {
		t.Errorf("broadcast_full = %v, want %v", got, before+3)
	}
}

func TestShutdownReason(t *testing.T) {
	t.Parallel()

	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	expired, cancel2 := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel2()

	if got := getShutdownReason(canceled); got != ShutdownReasonContextCanceled {
		t.Errorf("canceled -> %q", got)
	}
	if got := getShutdownReason(expired); got != ShutdownReasonContextDeadline {
		t.Errorf("deadline -> %q", got)
	}
}

func TestMarshalMessage(t *testing.T) {
	t.Parallel()

	data, err := MarshalMessage(Message{Type: MessageTypePerf, Data: models.PerfStats{KillID: 3, LatencyMS: 1.5}})
	if err != nil {
		t.Fatal(err)
	}
	if want := `{"type":"perf-stats","data":{"killID":3,"latency":1.5}}`; string(data) != want {
		t.Errorf("MarshalMessage() = %s, want %s", data, want)
	}
}

func TestClientQueueAfterDrop(t *testing.T) {
	t.Parallel()

	hub := startHub(t, nil)
	slow := testClient(hub, 1) // filled by the greeting
	hub.Register <- slow
	waitForCount(t, hub, 1)

	hub.PushStats(models.ScanStats{TotalScanned: 1})
	waitForCount(t, hub, 0)

	// A ping answered after the drop must not touch the closed channel.
	if slow.queue(Message{Type: MessageTypePong}) {
		t.Error("queue() = true for a dropped client")
	}
}

func TestClientQueueAfterShutdown(t *testing.T) {
	t.Parallel()

	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- hub.Serve(ctx) }()

	c := testClient(hub, 4)
	hub.Register <- c
	waitForCount(t, hub, 1)
	if !c.queue(Message{Type: MessageTypePong}) {
		t.Fatal("queue() = false for a live client")
	}

	cancel()
	<-errc
	if c.queue(Message{Type: MessageTypePong}) {
		t.Error("queue() = true after shutdown")
	}
}

func TestHubRegisterAfterStop(t *testing.T) {
	t.Parallel()

	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = hub.Serve(ctx)

	c := testClient(hub, 4)
	done := make(chan bool, 1)
	go func() {
		hub.unregister(c)
		done <- hub.register(c)
	}()

	select {
	case ok := <-done:
		if ok {
			t.Error("register() = true on a stopped hub")
		}
	case <-time.After(time.Second):
		t.Fatal("register/unregister blocked on a stopped hub")
	}
}
