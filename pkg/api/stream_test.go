package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cuemby/flowpulse/pkg/config"
	"github.com/cuemby/flowpulse/pkg/events"
	"github.com/cuemby/flowpulse/pkg/types"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// readBlock reads one SSE block, the lines up to the next blank line
func readBlock(t *testing.T, br *bufio.Reader) []string {
	t.Helper()
	var lines []string
	for {
		line, err := br.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		if line == "" {
			return lines
		}
		lines = append(lines, line)
	}
}

func openStream(t *testing.T, url string) (*http.Response, *bufio.Reader) {
	t.Helper()
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(url + "/stream")
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	return resp, bufio.NewReader(resp.Body)
}

func TestSSEBackfillThenLive(t *testing.T) {
	f := newFixture(t, Options{Heartbeat: time.Hour})
	f.seed()
	srv := httptest.NewServer(f.server.Handler())
	defer srv.Close()

	resp, br := openStream(t, srv.URL)

	assert.Equal(t, []string{": connected"}, readBlock(t, br))

	snapshot := readBlock(t, br)
	require.Len(t, snapshot, 2)
	assert.Equal(t, "event: snapshot", snapshot[0])
	require.True(t, strings.HasPrefix(snapshot[1], "data: "))

	var snap types.Snapshot
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(snapshot[1], "data: ")), &snap))
	assert.Len(t, snap.Events, 3)
	assert.Equal(t, 3, snap.Overview.TotalWorkflowsToday)

	f.publish(types.NewAnomaly("live", refNow.UnixMilli(), 5))

	live := readBlock(t, br)
	require.Len(t, live, 1)
	var evt types.Event
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(live[0], "data: ")), &evt))
	assert.Equal(t, "live", evt.ID)
	assert.Equal(t, 5, *evt.Severity)

	assert.Equal(t, 1, f.facade.Subscribers())
	resp.Body.Close()
	assert.Eventually(t, func() bool {
		// a write after the client left removes the subscriber if the
		// request context has not already done so
		f.publish(types.NewPending("after", refNow.UnixMilli()))
		return f.facade.Subscribers() == 0
	}, 5*time.Second, 20*time.Millisecond)
}

func TestSSEHeartbeat(t *testing.T) {
	f := newFixture(t, Options{Heartbeat: 20 * time.Millisecond})
	srv := httptest.NewServer(f.server.Handler())
	defer srv.Close()

	_, br := openStream(t, srv.URL)
	readBlock(t, br) // connected
	readBlock(t, br) // snapshot

	assert.Equal(t, []string{": heartbeat"}, readBlock(t, br))
}

func TestSSEShutdownClosesStreams(t *testing.T) {
	f := newFixture(t, Options{Heartbeat: time.Hour})
	srv := httptest.NewServer(f.server.Handler())
	defer srv.Close()

	_, br := openStream(t, srv.URL)
	readBlock(t, br)
	readBlock(t, br)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, f.server.Shutdown(ctx))

	_, err := io.ReadAll(br)
	assert.NoError(t, err)
	assert.Zero(t, f.facade.Subscribers())
}

func TestStreamsRefusedAfterShutdown(t *testing.T) {
	f := newFixture(t, Options{Heartbeat: time.Hour})
	h := f.server.Handler()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, f.server.Shutdown(ctx))

	for _, target := range []string{"/stream", "/ws"} {
		rec := get(t, h, target)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, target)
		assert.Contains(t, rec.Body.String(), "server shutting down", target)
	}
	assert.Zero(t, f.facade.Subscribers())

	// a second Shutdown has nothing left to wait for
	require.NoError(t, f.server.Shutdown(ctx))
}

func TestSSEChaosDrop(t *testing.T) {
	f := newFixture(t, Options{
		Heartbeat: time.Hour,
		Chaos: config.ChaosConfig{
			StreamDropRate:     0.05,
			StreamDropInterval: 10 * time.Millisecond,
		},
		Chance: func() float64 { return 0 },
	})
	srv := httptest.NewServer(f.server.Handler())
	defer srv.Close()

	_, br := openStream(t, srv.URL)
	readBlock(t, br)
	readBlock(t, br)

	// the server ends the response once the drop fires
	_, err := io.ReadAll(br)
	assert.NoError(t, err)
	assert.Eventually(t, func() bool { return f.facade.Subscribers() == 0 }, time.Second, 10*time.Millisecond)
}

func TestQueueChannelSlowConsumer(t *testing.T) {
	q := newQueueChannel(1)
	assert.True(t, q.IsOpen())
	assert.True(t, q.IsWritable())

	require.NoError(t, q.Write(events.Frame{Kind: events.FrameEvent, Data: []byte("{}")}))

	err := q.Write(events.Frame{Kind: events.FrameEvent, Data: []byte("{}")})
	assert.True(t, errors.Is(err, ErrSlowConsumer))
	assert.True(t, errors.Is(err, events.ErrBufferOverflow))
	assert.False(t, q.IsOpen())
	assert.False(t, q.IsWritable())

	err = q.Write(events.Frame{Kind: events.FrameEvent})
	assert.True(t, errors.Is(err, events.ErrChannelClosed))

	select {
	case <-q.Done():
	default:
		t.Fatal("done channel not closed")
	}
	q.Close()
}

func TestSlowConsumerRemovedFromHub(t *testing.T) {
	f := newFixture(t, Options{})
	q := newQueueChannel(1)

	// the backfill fills the only slot and nothing drains it
	_, err := f.facade.OnSubscribe(q)
	require.NoError(t, err)
	assert.Equal(t, 1, f.facade.Subscribers())

	f.publish(types.NewPending("p1", refNow.UnixMilli()))
	assert.Zero(t, f.facade.Subscribers())
	assert.False(t, q.IsOpen())
}

func TestDefaultQueueFitsFullBackfill(t *testing.T) {
	cfg := config.Default()
	hub := events.NewHub(cfg.HubConfig())
	defer hub.Close()

	q := newQueueChannel(cfg.Stream.QueueSize)
	sub := hub.SubscribePending(q)

	// fill the pending buffer to its limit while the backfill is in flight
	for i := 1; i <= cfg.Stream.MaxPending; i++ {
		evt := types.NewPending(fmt.Sprintf("p%d", i), refNow.UnixMilli())
		evt.Seq = uint64(i)
		hub.Broadcast(evt)
	}
	require.Equal(t, 1, hub.Count())

	require.NoError(t, sub.Send(events.Frame{Kind: events.FrameSnapshot, Data: []byte("{}")}))
	require.NoError(t, sub.Activate(0))

	assert.True(t, q.IsOpen())
	assert.Len(t, q.Frames(), cfg.Stream.MaxPending+1)
	assert.Equal(t, 1, hub.Count())
}

func TestWriteSSE(t *testing.T) {
	var sb strings.Builder
	require.NoError(t, writeSSE(&sb, events.Frame{Kind: events.FrameSnapshot, Data: []byte(`{"a":1}`)}))
	require.NoError(t, writeSSE(&sb, events.Frame{Kind: events.FrameEvent, Data: []byte(`{"b":2}`)}))
	assert.Equal(t, "event: snapshot\ndata: {\"a\":1}\n\ndata: {\"b\":2}\n\n", sb.String())
}

func TestWebSocketBackfillThenLive(t *testing.T) {
	f := newFixture(t, Options{Heartbeat: time.Hour})
	f.seed()
	srv := httptest.NewServer(f.server.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var msg wsMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "snapshot", msg.Type)

	var snap types.Snapshot
	require.NoError(t, json.Unmarshal(msg.Data, &snap))
	assert.Len(t, snap.Events, 3)

	f.publish(types.NewCompleted("live", refNow.UnixMilli(), 77))

	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "event", msg.Type)
	var evt types.Event
	require.NoError(t, json.Unmarshal(msg.Data, &evt))
	assert.Equal(t, "live", evt.ID)
	assert.Equal(t, 77, *evt.CycleTime)
	assert.Nil(t, evt.Severity)
}

func TestWebSocketShutdown(t *testing.T) {
	f := newFixture(t, Options{Heartbeat: time.Hour})
	srv := httptest.NewServer(f.server.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var msg wsMessage
	require.NoError(t, conn.ReadJSON(&msg))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, f.server.Shutdown(ctx))

	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}
