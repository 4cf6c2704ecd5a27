package websocket

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPresenceRegisterAndQuery(t *testing.T) {
	p := NewPresence()
	assert.False(t, p.IsOnline(1))

	c := &Client{userID: 1}
	p.Register(1, c)

	assert.True(t, p.IsOnline(1))
	assert.False(t, p.IsOnline(2))
	assert.Equal(t, []*Client{c}, p.HandlesFor(1))
}

func TestPresenceMultipleConnections(t *testing.T) {
	p := NewPresence()
	phone := &Client{userID: 1}
	laptop := &Client{userID: 1}
	p.Register(1, phone)
	p.Register(1, laptop)

	assert.Len(t, p.HandlesFor(1), 2)

	// dropping one device keeps the user online
	assert.False(t, p.Unregister(phone))
	assert.True(t, p.IsOnline(1))

	assert.True(t, p.Unregister(laptop))
	assert.False(t, p.IsOnline(1))
	assert.Empty(t, p.HandlesFor(1))
}

func TestPresenceUnregisterUnknownClient(t *testing.T) {
	p := NewPresence()
	assert.False(t, p.Unregister(&Client{userID: 42}))
}

func TestPresenceRegisterIsIdempotentPerHandle(t *testing.T) {
	p := NewPresence()
	c := &Client{userID: 1}
	p.Register(1, c)
	p.Register(1, c)

	assert.Len(t, p.HandlesFor(1), 1)
	assert.True(t, p.Unregister(c))
}

func TestPresenceConcurrentChurn(t *testing.T) {
	p := NewPresence()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			c := &Client{userID: userID}
			p.Register(userID, c)
			p.IsOnline(userID)
			p.HandlesFor(userID)
			p.Unregister(c)
		}(int64(i % 5))
	}
	wg.Wait()

	for userID := int64(0); userID < 5; userID++ {
		assert.False(t, p.IsOnline(userID))
	}
}
