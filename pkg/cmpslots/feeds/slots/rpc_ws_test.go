package slots

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sugawarayuuta/sonnet"

	"solperf/internal/pkg/utils"
	"solperf/internal/pkg/ws"
)

func slotsUpdate(slot uint64, typ string) string {
	return fmt.Sprintf(`{"jsonrpc":"2.0","method":"slotsUpdatesNotification",`+
		`"params":{"result":{"parent":1,"slot":%d,"timestamp":1625081266243,"type":%q},"subscription":3}}`, slot, typ)
}

// rpcNode answers the first subscribe request and then writes notifications.
func rpcNode(t *testing.T, methods chan<- string, notifications ...string) string {
	t.Helper()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var req ws.Request
			if err := sonnet.Unmarshal(data, &req); err != nil {
				return
			}
			methods <- req.Method

			if strings.HasSuffix(req.Method, "Unsubscribe") {
				continue
			}
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"jsonrpc":"2.0","result":3,"id":1}`))
			for _, n := range notifications {
				_ = conn.WriteMessage(websocket.TextMessage, []byte(n))
			}
		}
	}))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestRPCWS_SlotsUpdates(t *testing.T) {
	methods := make(chan string, 4)
	uri := rpcNode(t, methods,
		slotsUpdate(100, "firstShredReceived"),
		slotsUpdate(100, "createdBank"),
		slotsUpdate(100, "completed"),
		slotsUpdate(101, "createdBank"),
	)

	src := NewRPCWS("B", uri, utils.NewHashSet[Milestone](), 5*time.Second, 5*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(chan Arrival, 8)
	done := make(chan error, 1)
	go func() { done <- src.Stream(ctx, out) }()

	assert.Equal(t, "slotsUpdatesSubscribe", <-methods)
	assert.Equal(t, "100-create-bank", receive(t, out).Key)
	assert.Equal(t, "101-create-bank", receive(t, out).Key)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not stop on cancel")
	}
	assert.Empty(t, out)
}

func TestRPCWS_Milestones(t *testing.T) {
	methods := make(chan string, 4)
	uri := rpcNode(t, methods,
		slotsUpdate(100, "firstShredReceived"),
		slotsUpdate(100, "createdBank"),
		slotsUpdate(100, "completed"),
	)

	set, err := ParseMilestones("firstShredReceived,completed")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(chan Arrival, 8)
	go func() { _ = NewRPCWS("B", uri, set, 5*time.Second, 5*time.Second).Stream(ctx, out) }()

	assert.Equal(t, "100-first-shred-received", receive(t, out).Key)
	assert.Equal(t, "100-completed", receive(t, out).Key)
}

func TestRPCWS_SlotSubscribe(t *testing.T) {
	methods := make(chan string, 4)
	uri := rpcNode(t, methods,
		`{"jsonrpc":"2.0","method":"slotNotification","params":{"result":{"parent":75,"root":44,"slot":76},"subscription":3}}`,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(chan Arrival, 1)
	go func() { _ = NewRPCWS("B", uri, utils.NewHashSet(MilestoneSlot), 5*time.Second, 5*time.Second).Stream(ctx, out) }()

	assert.Equal(t, "slotSubscribe", <-methods)
	assert.Equal(t, "76", receive(t, out).Key)
}

func TestRPCWS_MalformedMessage(t *testing.T) {
	methods := make(chan string, 4)
	uri := rpcNode(t, methods,
		slotsUpdate(100, "createdBank"),
		`{"jsonrpc":"2.0","method":"slotsUpdatesNotification","params":{"result":{"type":"createdBank"}}}`,
	)

	out := make(chan Arrival, 1)
	err := NewRPCWS("B", uri, nil, 5*time.Second, 5*time.Second).Stream(context.Background(), out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed")
	assert.False(t, IsPermanent(err))
	assert.Equal(t, "100-create-bank", (<-out).Key)

	// the session unsubscribes before closing
	<-methods
	select {
	case m := <-methods:
		assert.Equal(t, "slotsUpdatesUnsubscribe", m)
	case <-time.After(5 * time.Second):
		t.Fatal("no unsubscribe")
	}
}

func TestRPCWS_IdleSession(t *testing.T) {
	methods := make(chan string, 4)
	uri := rpcNode(t, methods, slotsUpdate(100, "createdBank"))

	out := make(chan Arrival, 1)
	done := make(chan error, 1)
	go func() { done <- NewRPCWS("B", uri, nil, 5*time.Second, 200*time.Millisecond).Stream(context.Background(), out) }()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrIdle)
		assert.False(t, IsPermanent(err))
	case <-time.After(5 * time.Second):
		t.Fatal("silent session was not ended")
	}
	assert.Equal(t, "100-create-bank", (<-out).Key)
}

func TestRPCWS_InvalidURL(t *testing.T) {
	err := NewRPCWS("B", "http://localhost:8900", nil, time.Second, time.Second).Stream(context.Background(), make(chan Arrival))
	assert.True(t, IsPermanent(err))
}

func TestRPCWS_ParseMessage(t *testing.T) {
	src := NewRPCWS("B", "ws://localhost", nil, time.Second, time.Second)

	key, ok, err := src.parseMessage([]byte(slotsUpdate(5, "createdBank")))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "5-create-bank", key)

	_, ok, err = src.parseMessage([]byte(slotsUpdate(5, "root")))
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = src.parseMessage([]byte(`not json`))
	assert.Error(t, err)

	_, _, err = src.parseMessage([]byte(`{"jsonrpc":"2.0","method":"accountNotification","params":{"result":{"slot":5}}}`))
	assert.Error(t, err)
}
