package dispatch

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"campushub/models"
	"campushub/push"
	"campushub/store"
)

type fakeRoster struct {
	members []models.Member
	err     error
}

func (f *fakeRoster) Roster(_ context.Context, _ primitive.ObjectID) ([]models.Member, error) {
	return f.members, f.err
}

type emitted struct {
	userID  int64
	event   string
	payload interface{}
}

type fakePresence struct {
	mu     sync.Mutex
	online map[int64]bool
	emits  []emitted
}

func (f *fakePresence) IsOnline(userID int64) bool { return f.online[userID] }

func (f *fakePresence) EmitToUser(userID int64, event string, payload interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emits = append(f.emits, emitted{userID, event, payload})
}

func (f *fakePresence) emitsTo(userID int64) []emitted {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []emitted
	for _, e := range f.emits {
		if e.userID == userID {
			out = append(out, e)
		}
	}
	return out
}

type sentPush struct {
	userID int64
	note   push.Notification
}

type fakePusher struct {
	mu   sync.Mutex
	sent []sentPush
}

func (f *fakePusher) SendToUser(_ context.Context, userID int64, note push.Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentPush{userID, note})
}

func (f *fakePusher) snapshot() []sentPush {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentPush(nil), f.sent...)
}

func member(userID int64, muted bool) models.Member {
	return models.Member{UserID: userID, UserName: "user", Role: models.RoleMember, Muted: muted}
}

func textMessage(chatID primitive.ObjectID, senderID int64, content string) *models.Message {
	return &models.Message{
		ID:         primitive.NewObjectID(),
		ChatID:     chatID,
		SenderID:   senderID,
		SenderName: "Alice",
		Type:       models.MessageTypeText,
		Content:    content,
		CreatedAt:  time.Now().UnixMilli(),
	}
}

func newTestDispatcher(roster *fakeRoster, presence *fakePresence, pusher *fakePusher) *Dispatcher {
	return NewDispatcher(roster, presence, pusher, NewThrottle(5*time.Second), zap.NewNop().Sugar())
}

func TestDispatchEmitsOncePerOnlineMember(t *testing.T) {
	chatID := primitive.NewObjectID()
	roster := &fakeRoster{members: []models.Member{member(1, false), member(2, false), member(3, true)}}
	presence := &fakePresence{online: map[int64]bool{1: true, 2: true, 3: true}}
	pusher := &fakePusher{}
	d := newTestDispatcher(roster, presence, pusher)

	msg := textMessage(chatID, 1, "hello")
	d.Dispatch(context.Background(), chatID, msg)

	for _, userID := range []int64{1, 2, 3} {
		emits := presence.emitsTo(userID)
		require.Len(t, emits, 1, "user %d", userID)
		assert.Equal(t, EventReceiveMessage, emits[0].event)
	}

	// each live copy carries the receiving member's own muted flag
	live2 := presence.emitsTo(2)[0].payload.(LiveMessage)
	assert.False(t, live2.Muted)
	assert.Equal(t, chatID.Hex(), live2.ChatID)
	assert.Equal(t, msg.ID, live2.Message.ID)

	live3 := presence.emitsTo(3)[0].payload.(LiveMessage)
	assert.True(t, live3.Muted)
}

func TestDispatchPushesOfflineUnmutedMembers(t *testing.T) {
	chatID := primitive.NewObjectID()
	roster := &fakeRoster{members: []models.Member{member(1, false), member(2, false)}}
	presence := &fakePresence{online: map[int64]bool{1: true}}
	pusher := &fakePusher{}
	d := newTestDispatcher(roster, presence, pusher)

	d.Dispatch(context.Background(), chatID, textMessage(chatID, 1, "hello"))

	require.Eventually(t, func() bool {
		return len(pusher.snapshot()) == 1
	}, time.Second, 10*time.Millisecond)

	got := pusher.snapshot()[0]
	assert.Equal(t, int64(2), got.userID)
	assert.Equal(t, chatID.Hex(), got.note.ChatID)
	assert.Equal(t, "Alice", got.note.SenderName)
	assert.Equal(t, "hello", got.note.Preview)
}

func TestDispatchNeverPushesSenderOrMuted(t *testing.T) {
	chatID := primitive.NewObjectID()
	roster := &fakeRoster{members: []models.Member{
		member(1, false), // sender
		member(2, true),  // muted
		member(3, false),
	}}
	presence := &fakePresence{online: map[int64]bool{}}
	pusher := &fakePusher{}
	d := newTestDispatcher(roster, presence, pusher)

	d.Dispatch(context.Background(), chatID, textMessage(chatID, 1, "hello"))

	require.Eventually(t, func() bool {
		return len(pusher.snapshot()) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(3), pusher.snapshot()[0].userID)
}

func TestDispatchThrottlesRepeatPushes(t *testing.T) {
	chatID := primitive.NewObjectID()
	roster := &fakeRoster{members: []models.Member{member(1, false), member(2, false)}}
	presence := &fakePresence{online: map[int64]bool{}}
	pusher := &fakePusher{}
	d := newTestDispatcher(roster, presence, pusher)

	for i := 0; i < 5; i++ {
		d.Dispatch(context.Background(), chatID, textMessage(chatID, 1, "spam"))
	}

	require.Eventually(t, func() bool {
		return len(pusher.snapshot()) == 1
	}, time.Second, 10*time.Millisecond)

	// give any stray goroutines a chance to land before asserting the count held
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, pusher.snapshot(), 1)
}

func TestDispatchAbortsWhenChatVanished(t *testing.T) {
	chatID := primitive.NewObjectID()
	roster := &fakeRoster{err: store.ErrChatNotFound}
	presence := &fakePresence{online: map[int64]bool{1: true}}
	pusher := &fakePusher{}
	d := newTestDispatcher(roster, presence, pusher)

	d.Dispatch(context.Background(), chatID, textMessage(chatID, 1, "hello"))

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, presence.emits)
	assert.Empty(t, pusher.snapshot())
}

func TestPreviewFor(t *testing.T) {
	tests := []struct {
		name string
		msg  models.Message
		want string
	}{
		{"text", models.Message{Type: models.MessageTypeText, Content: "hi there"}, "hi there"},
		{"image", models.Message{Type: models.MessageTypeImage, Content: "https://cdn/x.png"}, "📷 Photo"},
		{"file", models.Message{Type: models.MessageTypeFile, Content: "https://cdn/x.pdf"}, "📎 File"},
		{"link", models.Message{Type: models.MessageTypeLink, Content: "https://example.com"}, "https://example.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, previewFor(&tt.msg))
		})
	}

	t.Run("long text truncated", func(t *testing.T) {
		long := make([]byte, 150)
		for i := range long {
			long[i] = 'a'
		}
		got := previewFor(&models.Message{Type: models.MessageTypeText, Content: string(long)})
		assert.Len(t, got, 103)
		assert.Equal(t, "...", got[100:])
	})

	t.Run("truncation keeps runes whole", func(t *testing.T) {
		// 99 ASCII bytes followed by multi-byte runes straddling the cut
		content := strings.Repeat("a", 99) + "日本語"
		got := previewFor(&models.Message{Type: models.MessageTypeText, Content: content})
		assert.True(t, utf8.ValidString(got))
		assert.Equal(t, strings.Repeat("a", 99)+"...", got)
	})

	t.Run("all multibyte content stays valid", func(t *testing.T) {
		content := strings.Repeat("猫", 60) // 180 bytes, cut lands mid-rune
		got := previewFor(&models.Message{Type: models.MessageTypeText, Content: content})
		assert.True(t, utf8.ValidString(got))
		assert.True(t, strings.HasSuffix(got, "..."))
		assert.LessOrEqual(t, len(got), 103)
	})
}
