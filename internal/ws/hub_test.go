package ws

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"mimic-chat/backend/internal/models"
	"mimic-chat/backend/pkg/logger"
)

type mockMessageStore struct {
	mock.Mock
}

func (m *mockMessageStore) SaveMessage(message *models.Message) error {
	args := m.Called(message)
	return args.Error(0)
}

type mockChatDirectory struct {
	mock.Mock
}

func (m *mockChatDirectory) UpdateSnapshot(chatID string, snap models.Snapshot) error {
	args := m.Called(chatID, snap)
	return args.Error(0)
}

func (m *mockChatDirectory) SetAutoReply(chatID, userID string, enabled bool) error {
	args := m.Called(chatID, userID, enabled)
	return args.Error(0)
}

func newTestHub(messages MessageStore, chats ChatDirectory) *Hub {
	return NewHub(messages, chats, logger.New(logger.DefaultConfig()))
}

func newTestClient(id, userID string) *Client {
	return &Client{ID: id, UserID: userID, Send: make(chan []byte, 16)}
}

func register(t *testing.T, h *Hub, c *Client, chatID string) {
	t.Helper()
	h.register <- c
	h.Join(c, chatID)
}

func recvEvent(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case data := <-c.Send:
		var ev Event
		require.NoError(t, json.Unmarshal(data, &ev))
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event received")
		return Event{}
	}
}

func TestRelayMessageAssignsIdentity(t *testing.T) {
	messages := new(mockMessageStore)
	chats := new(mockChatDirectory)
	hub := newTestHub(messages, chats)

	var saved *models.Message
	messages.On("SaveMessage", mock.AnythingOfType("*models.Message")).
		Run(func(args mock.Arguments) { saved = args.Get(0).(*models.Message) }).
		Return(nil)
	chats.On("UpdateSnapshot", "chat-1", mock.AnythingOfType("models.Snapshot")).Return(nil)

	before := time.Now().UnixMilli()
	msg, err := hub.RelayMessage(models.SendMessageRequest{
		ChatID:     "chat-1",
		SenderID:   "user-a",
		ReceiverID: "user-b",
		Text:       "hello",
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(msg.ID, "msg-"))
	assert.GreaterOrEqual(t, msg.Timestamp, before)
	assert.Equal(t, models.MessageStatusSent, msg.Status)
	assert.Equal(t, models.MessageTypeText, msg.Type)
	require.NotNil(t, saved)
	assert.Equal(t, msg.ID, saved.ID)
	chats.AssertCalled(t, "UpdateSnapshot", "chat-1", mock.AnythingOfType("models.Snapshot"))
}

func TestRelayMessageSaveFailure(t *testing.T) {
	messages := new(mockMessageStore)
	chats := new(mockChatDirectory)
	hub := newTestHub(messages, chats)

	messages.On("SaveMessage", mock.Anything).Return(assert.AnError)

	msg, err := hub.RelayMessage(models.SendMessageRequest{
		ChatID:   "chat-1",
		SenderID: "user-a",
		Text:     "hello",
	})
	assert.Error(t, err)
	assert.Nil(t, msg)

	// Nothing reaches the room when persistence fails
	assert.Empty(t, hub.broadcast)
	chats.AssertNotCalled(t, "UpdateSnapshot", mock.Anything, mock.Anything)
}

func TestBroadcastFanOut(t *testing.T) {
	messages := new(mockMessageStore)
	chats := new(mockChatDirectory)
	hub := newTestHub(messages, chats)

	messages.On("SaveMessage", mock.Anything).Return(nil)
	chats.On("UpdateSnapshot", mock.Anything, mock.Anything).Return(nil)

	go hub.Run()

	sender := newTestClient("c1", "user-a")
	receiver := newTestClient("c2", "user-b")
	bystander := newTestClient("c3", "user-c")

	register(t, hub, sender, "chat-1")
	register(t, hub, receiver, "chat-1")
	register(t, hub, bystander, "chat-other")

	msg, err := hub.RelayMessage(models.SendMessageRequest{
		ChatID:     "chat-1",
		SenderID:   "user-a",
		ReceiverID: "user-b",
		Text:       "hello",
	})
	require.NoError(t, err)

	// Both room members get the echo, the sender included
	for _, c := range []*Client{sender, receiver} {
		ev := recvEvent(t, c)
		assert.Equal(t, "message", ev.Type)

		var got models.Message
		require.NoError(t, json.Unmarshal(ev.Content, &got))
		assert.Equal(t, msg.ID, got.ID)
		assert.Equal(t, "hello", got.Text)
	}

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, bystander.Send, "other rooms must not receive the event")
}

func TestLateJoinerGetsNoBackfill(t *testing.T) {
	messages := new(mockMessageStore)
	chats := new(mockChatDirectory)
	hub := newTestHub(messages, chats)

	messages.On("SaveMessage", mock.Anything).Return(nil)
	chats.On("UpdateSnapshot", mock.Anything, mock.Anything).Return(nil)

	go hub.Run()

	early := newTestClient("c1", "user-a")
	register(t, hub, early, "chat-1")

	_, err := hub.RelayMessage(models.SendMessageRequest{
		ChatID: "chat-1", SenderID: "user-a", Text: "first",
	})
	require.NoError(t, err)
	recvEvent(t, early)

	late := newTestClient("c2", "user-b")
	register(t, hub, late, "chat-1")

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, late.Send, "joining must not replay earlier broadcasts")
}

func TestRelayAutoReplyToggle(t *testing.T) {
	messages := new(mockMessageStore)
	chats := new(mockChatDirectory)
	hub := newTestHub(messages, chats)

	chats.On("SetAutoReply", "chat-1", "user-b", true).Return(nil)

	go hub.Run()

	member := newTestClient("c1", "user-a")
	register(t, hub, member, "chat-1")

	require.NoError(t, hub.RelayAutoReplyToggle("chat-1", "user-b", true))

	ev := recvEvent(t, member)
	assert.Equal(t, "autoReplyStatus", ev.Type)

	var status AutoReplyStatus
	require.NoError(t, json.Unmarshal(ev.Content, &status))
	assert.Equal(t, "chat-1", status.ChatID)
	assert.Equal(t, "user-b", status.UserID)
	assert.True(t, status.Enabled)
}

func TestDroppedSlowSubscriberToleratesLateSends(t *testing.T) {
	messages := new(mockMessageStore)
	chats := new(mockChatDirectory)
	hub := newTestHub(messages, chats)

	go hub.Run()

	slow := &Client{ID: "c1", UserID: "user-a", Send: make(chan []byte, 1)}
	register(t, hub, slow, "chat-1")

	// Fill the buffer so the next broadcast triggers the drop
	slow.Send <- []byte("backlog")
	hub.Broadcast("chat-1", "message", map[string]string{"text": "overflow"})

	require.Eventually(t, func() bool {
		slow.mu.Lock()
		defer slow.mu.Unlock()
		return slow.closed
	}, time.Second, 10*time.Millisecond)

	// The read pump keeps answering pings until it notices the teardown;
	// those sends must be swallowed, not panic on the closed channel.
	assert.NotPanics(t, func() {
		slow.send("pong", nil)
		slow.sendError("late frame")
	})

	// Double close via the unregister path must be a no-op too
	assert.NotPanics(t, func() { slow.closeSend() })
}

func TestUnregisterLeavesAllRooms(t *testing.T) {
	messages := new(mockMessageStore)
	chats := new(mockChatDirectory)
	hub := newTestHub(messages, chats)

	go hub.Run()

	c := newTestClient("c1", "user-a")
	register(t, hub, c, "chat-1")
	hub.Join(c, "chat-2")

	hub.unregister <- c
	time.Sleep(50 * time.Millisecond)

	// The send channel is closed on unregister
	_, open := <-c.Send
	assert.False(t, open)
}
