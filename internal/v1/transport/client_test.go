package transport

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/nullboard/roomd/internal/v1/admission"
	"github.com/nullboard/roomd/internal/v1/chatroom"
	"github.com/nullboard/roomd/internal/v1/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCounter(t *testing.T) *admission.Counter {
	t.Helper()
	return admission.NewCounter(10)
}

func TestClient_JoinReceivesWelcome(t *testing.T) {
	actor, handle := chatroom.NewActor("room-1", nil, nil, nil, chatroom.Options{CoalesceWindow: 10 * time.Millisecond})
	done := make(chan struct{})
	go func() { actor.Run(); close(done) }()

	counter := newTestCounter(t)
	token, err := counter.Acquire()
	require.NoError(t, err)

	conn := newMockConn()
	client := NewClient(conn, handle, "room-1", "alice", "Alice", token, 8)

	go client.WritePump()
	readDone := make(chan struct{})
	go func() { client.ReadPump(); close(readDone) }()

	require.Eventually(t, func() bool { return conn.writeCount() >= 1 }, time.Second, 5*time.Millisecond)

	var frame types.OutboundFrame
	require.NoError(t, json.Unmarshal(conn.writes[0], &frame))
	assert.Equal(t, types.FrameWelcomeInfo, frame.Type)

	conn.Close()
	<-readDone

	close(handle.Normal)
	close(handle.High)
	close(handle.Control)
	close(handle.Stats)
	<-done
}
