package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessageDisplayTombstone(t *testing.T) {
	msg := Message{Type: MessageTypeText, Content: "secret plans"}
	assert.Equal(t, "secret plans", msg.Display())

	msg.IsDeleted = true
	assert.Equal(t, DeletedPlaceholder, msg.Display())
}

func TestChatMemberOf(t *testing.T) {
	chat := Chat{Members: []Member{
		{UserID: 1, UserName: "Alice"},
		{UserID: 2, UserName: "Bob"},
	}}

	m, ok := chat.MemberOf(2)
	assert.True(t, ok)
	assert.Equal(t, "Bob", m.UserName)

	_, ok = chat.MemberOf(99)
	assert.False(t, ok)
}

func TestChatDisplayNameFor(t *testing.T) {
	private := Chat{Type: ChatTypePrivate, Members: []Member{
		{UserID: 1, UserName: "Alice"},
		{UserID: 2, UserName: "Bob"},
	}}
	assert.Equal(t, "Bob", private.DisplayNameFor(1))
	assert.Equal(t, "Alice", private.DisplayNameFor(2))

	group := Chat{Type: ChatTypeGroup, Name: "CS101 Section A", Members: []Member{
		{UserID: 1, UserName: "Alice"},
	}}
	assert.Equal(t, "CS101 Section A", group.DisplayNameFor(1))
}

func TestProfileChangesEmpty(t *testing.T) {
	assert.True(t, ProfileChanges{}.Empty())

	name := "Jane"
	assert.False(t, ProfileChanges{Name: &name}.Empty())
}
