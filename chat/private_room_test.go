package chat

import (
	"sync"
	"testing"

	"chatd/tools/ids"

	"github.com/stretchr/testify/assert"
)

func TestPrivateRoomPairIsOrderInsensitive(t *testing.T) {
	r := NewPrivateRoom(100, 1, 2, nil)
	assert.Equal(t, ids.NewUnorderedPair(1, 2), r.Pair())
	assert.Equal(t, ids.NewUnorderedPair(2, 1), r.Pair())
}

func TestPrivateRoomOtherReturnsCounterpart(t *testing.T) {
	r := NewPrivateRoom(100, 1, 2, nil)
	assert.Equal(t, UserID(2), r.Other(1))
	assert.Equal(t, UserID(1), r.Other(2))
}

func TestPrivateRoomSendMessageNotifiesBothMembers(t *testing.T) {
	var mu sync.Mutex
	notified := make(map[UserID]int)
	notify := func(u UserID, _ []byte) {
		mu.Lock()
		defer mu.Unlock()
		notified[u]++
	}
	r := NewPrivateRoom(100, 1, 2, notify)
	r.SendMessage(1, "hi")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, notified[UserID(1)])
	assert.Equal(t, 1, notified[UserID(2)])
}

func TestPrivateRoomGetMessagesHalfOpen(t *testing.T) {
	r := NewPrivateRoom(100, 1, 2, nil)
	r.SendMessage(1, "a")
	r.SendMessage(2, "b")
	all := r.GetMessages(0, 1<<62)
	assert.Len(t, all, 2)
	assert.Len(t, r.GetMessages(all[0].Timestamp, all[1].Timestamp), 1)
}
