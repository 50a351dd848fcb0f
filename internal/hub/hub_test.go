package hub

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialTestClient(t *testing.T, srv *httptest.Server, conversationID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	if conversationID != "" {
		url += "?conversation_id=" + conversationID
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() }) //nolint:errcheck
	return conn
}

func waitForClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d clients, have %d", n, h.ClientCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev Event
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func TestHub_RoomScopedDelivery(t *testing.T) {
	h := New(nil)
	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	defer srv.Close()

	inRoom := dialTestClient(t, srv, "conv-1")
	otherRoom := dialTestClient(t, srv, "conv-2")
	waitForClients(t, h, 2)

	h.NotifyRoom("conv-1", Event{Type: EventDocumentUploaded, Payload: map[string]string{"id": "doc-1"}})

	ev := readEvent(t, inRoom)
	assert.Equal(t, EventDocumentUploaded, ev.Type)
	assert.Equal(t, "conv-1", ev.ConversationID)

	// The other room must not receive it.
	require.NoError(t, otherRoom.SetReadDeadline(time.Now().Add(150*time.Millisecond)))
	var stray Event
	err := otherRoom.ReadJSON(&stray)
	assert.Error(t, err)
}

func TestHub_GlobalBroadcastReachesAllRooms(t *testing.T) {
	h := New(nil)
	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	defer srv.Close()

	a := dialTestClient(t, srv, "conv-1")
	b := dialTestClient(t, srv, "conv-2")
	c := dialTestClient(t, srv, "")
	waitForClients(t, h, 3)

	h.NotifyAll(Event{Type: EventNewMessage, ConversationID: "conv-1"})

	for _, conn := range []*websocket.Conn{a, b, c} {
		ev := readEvent(t, conn)
		assert.Equal(t, EventNewMessage, ev.Type)
		assert.Equal(t, "conv-1", ev.ConversationID)
	}
}

func TestHub_DisconnectUnregisters(t *testing.T) {
	h := New(nil)
	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	defer srv.Close()

	conn := dialTestClient(t, srv, "conv-1")
	waitForClients(t, h, 1)

	conn.Close() //nolint:errcheck
	waitForClients(t, h, 0)
}

func TestHub_NotifyRoomIgnoresEmptyConversation(t *testing.T) {
	h := New(nil)
	// No panic, no delivery.
	h.NotifyRoom("", Event{Type: EventFCSCompleted})
}
