package debugserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

func dial(t *testing.T, addr string) *websocket.Conn {
	t.Helper()
	url := fmt.Sprintf("ws://%s/events", addr)
	var conn *websocket.Conn
	require.Eventually(t, func() bool {
		c, _, err := websocket.DefaultDialer.Dial(url, nil)
		if err != nil {
			return false
		}
		conn = c
		return true
	}, time.Second, 5*time.Millisecond)
	return conn
}

func TestPublishNetDataReachesConnectedClient(t *testing.T) {
	addr := freeAddr(t)
	s := New(addr)
	require.NoError(t, s.Start())
	defer s.Stop(context.Background())

	conn := dial(t, addr)
	defer conn.Close()

	// give handleEvents' registration goroutine a moment to record the
	// client before broadcasting.
	time.Sleep(20 * time.Millisecond)
	s.PublishNetData(7, 3)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var ev Event
	require.NoError(t, json.Unmarshal(payload, &ev))
	require.Equal(t, EventNetData, ev.Kind)
}

func TestDisconnectedClientIsDroppedOnBroadcast(t *testing.T) {
	addr := freeAddr(t)
	s := New(addr)
	require.NoError(t, s.Start())
	defer s.Stop(context.Background())

	conn := dial(t, addr)
	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool {
		s.PublishDhcp6Transition("fd00::/64", "SolicitReplied")
		s.mu.Lock()
		n := len(s.clients)
		s.mu.Unlock()
		return n == 0
	}, time.Second, 10*time.Millisecond)
}

func TestStopClosesListener(t *testing.T) {
	addr := freeAddr(t)
	s := New(addr)
	require.NoError(t, s.Start())
	require.NoError(t, s.Stop(context.Background()))

	_, err := net.Dial("tcp", addr)
	require.Error(t, err)
}
