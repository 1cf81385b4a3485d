package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"mimic-chat/backend/internal/models"
)

func dialTestServer(t *testing.T, hub *Hub, userID string) *websocket.Conn {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ws", func(c *gin.Context) {
		ServeWs(hub, c)
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?userId=" + userID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readWsEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var ev Event
	require.NoError(t, json.Unmarshal(data, &ev))
	return ev
}

func writeWsEvent(t *testing.T, conn *websocket.Conn, eventType string, content any) {
	t.Helper()
	raw, err := json.Marshal(content)
	require.NoError(t, err)
	data, err := json.Marshal(Event{Type: eventType, Content: raw})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
}

func TestWebsocketSendMessageRoundTrip(t *testing.T) {
	messages := new(mockMessageStore)
	chats := new(mockChatDirectory)
	hub := newTestHub(messages, chats)

	messages.On("SaveMessage", mock.Anything).Return(nil)
	chats.On("UpdateSnapshot", mock.Anything, mock.Anything).Return(nil)

	go hub.Run()

	conn := dialTestServer(t, hub, "user-a")

	writeWsEvent(t, conn, "join", "chat-1")
	writeWsEvent(t, conn, "sendMessage", models.SendMessageRequest{
		ChatID:     "chat-1",
		SenderID:   "user-a",
		ReceiverID: "user-b",
		Text:       "hello over the wire",
	})

	ev := readWsEvent(t, conn)
	require.Equal(t, "message", ev.Type)

	var msg models.Message
	require.NoError(t, json.Unmarshal(ev.Content, &msg))
	assert.Equal(t, "hello over the wire", msg.Text)
	assert.True(t, strings.HasPrefix(msg.ID, "msg-"))
	assert.Equal(t, models.MessageStatusSent, msg.Status)
}

func TestWebsocketJoinObjectPayload(t *testing.T) {
	messages := new(mockMessageStore)
	chats := new(mockChatDirectory)
	hub := newTestHub(messages, chats)
	chats.On("SetAutoReply", "chat-1", "user-a", true).Return(nil)

	go hub.Run()

	conn := dialTestServer(t, hub, "user-a")

	writeWsEvent(t, conn, "join", map[string]string{"chatId": "chat-1"})
	writeWsEvent(t, conn, "toggleAutoReply", AutoReplyStatus{ChatID: "chat-1", UserID: "user-a", Enabled: true})

	ev := readWsEvent(t, conn)
	assert.Equal(t, "autoReplyStatus", ev.Type)
}

func TestWebsocketRejectsIncompleteSendMessage(t *testing.T) {
	messages := new(mockMessageStore)
	chats := new(mockChatDirectory)
	hub := newTestHub(messages, chats)

	go hub.Run()

	conn := dialTestServer(t, hub, "user-a")

	writeWsEvent(t, conn, "sendMessage", map[string]string{"chatId": "chat-1"})

	ev := readWsEvent(t, conn)
	assert.Equal(t, "error", ev.Type)
	messages.AssertNotCalled(t, "SaveMessage", mock.Anything)
}

func TestWebsocketPingPong(t *testing.T) {
	hub := newTestHub(new(mockMessageStore), new(mockChatDirectory))
	go hub.Run()

	conn := dialTestServer(t, hub, "user-a")

	writeWsEvent(t, conn, "ping", nil)
	ev := readWsEvent(t, conn)
	assert.Equal(t, "pong", ev.Type)
}

func TestWebsocketRequiresUserID(t *testing.T) {
	hub := newTestHub(new(mockMessageStore), new(mockChatDirectory))
	go hub.Run()

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ws", func(c *gin.Context) {
		ServeWs(hub, c)
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	assert.Error(t, err)
	if resp != nil {
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	}
}
