package dispatch

import (
	"sync"
	"time"
)

// DefaultCooldown bounds push volume to one notification per member per chat
// within the window, however fast messages arrive.
const DefaultCooldown = 5 * time.Second

// Throttle tracks the last push timestamp per (user, chat). A denied check
// does not refresh the stamp, so the window measures from the last push that
// actually went out.
type Throttle struct {
	mu     sync.Mutex
	window time.Duration
	last   map[int64]map[string]time.Time

	nowFn func() time.Time
}

func NewThrottle(window time.Duration) *Throttle {
	if window <= 0 {
		window = DefaultCooldown
	}
	return &Throttle{
		window: window,
		last:   make(map[int64]map[string]time.Time),
		nowFn:  time.Now,
	}
}

// ShouldThrottle reports whether a push for this (user, chat) pair must be
// skipped. When it returns false the stamp is advanced and the caller is
// expected to send.
func (t *Throttle) ShouldThrottle(userID int64, chatID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.nowFn()
	chats := t.last[userID]
	if chats == nil {
		chats = make(map[string]time.Time)
		t.last[userID] = chats
	}

	if last, ok := chats[chatID]; ok && now.Sub(last) < t.window {
		return true
	}
	chats[chatID] = now
	return false
}
