package models

// Profile is the slice of the relational user record the chat core consumes.
// The academic CRUD owns the rest of that table.
type Profile struct {
	UserID int64  `json:"userId"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
	Email  string `json:"email"`
	Phone  string `json:"phone"`
}

// ProfileChanges carries the mutated fields a profile update propagates into
// chat rosters. Nil pointers mean "unchanged".
type ProfileChanges struct {
	Name   *string `json:"name,omitempty"`
	Avatar *string `json:"avatar,omitempty"`
	Email  *string `json:"email,omitempty"`
	Phone  *string `json:"phone,omitempty"`
}

// Empty reports whether no field changed.
func (p ProfileChanges) Empty() bool {
	return p.Name == nil && p.Avatar == nil && p.Email == nil && p.Phone == nil
}
