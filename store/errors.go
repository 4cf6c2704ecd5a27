package store

import "errors"

var (
	ErrChatNotFound    = errors.New("chat not found")
	ErrMessageNotFound = errors.New("message not found")
	ErrNotMember       = errors.New("user is not a member of this chat")
)
