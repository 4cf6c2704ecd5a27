// Package directory exposes the slice of the relational user store the chat
// core consumes: display names and contact fields for rosters, plus the
// profile update that triggers the sync relay. The academic services own the
// rest of the users table.
package directory

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"

	"campushub/models"
)

var ErrUserNotFound = errors.New("user not found")

type UserDirectory interface {
	GetProfile(ctx context.Context, userID int64) (*models.Profile, error)
	UpdateProfile(ctx context.Context, userID int64, changes models.ProfileChanges) (*models.Profile, error)
}

type userDirectory struct {
	db *sql.DB
}

func New(db *sql.DB) UserDirectory {
	return &userDirectory{db: db}
}

func (d *userDirectory) GetProfile(ctx context.Context, userID int64) (*models.Profile, error) {
	const q = `
		SELECT id, full_name, COALESCE(avatar_url, ''), COALESCE(email, ''), COALESCE(phone, '')
		FROM users
		WHERE id = $1
	`
	var p models.Profile
	err := d.db.QueryRowContext(ctx, q, userID).Scan(&p.UserID, &p.Name, &p.Avatar, &p.Email, &p.Phone)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateProfile writes the changed fields and returns the fresh profile.
// Only the columns the chat core denormalizes are writable here.
func (d *userDirectory) UpdateProfile(ctx context.Context, userID int64, changes models.ProfileChanges) (*models.Profile, error) {
	if changes.Empty() {
		return d.GetProfile(ctx, userID)
	}

	sets := make([]string, 0, 4)
	args := make([]interface{}, 0, 5)
	add := func(col string, val interface{}) {
		args = append(args, val)
		sets = append(sets, col+" = $"+strconv.Itoa(len(args)))
	}
	if changes.Name != nil {
		add("full_name", *changes.Name)
	}
	if changes.Avatar != nil {
		add("avatar_url", *changes.Avatar)
	}
	if changes.Email != nil {
		add("email", *changes.Email)
	}
	if changes.Phone != nil {
		add("phone", *changes.Phone)
	}

	args = append(args, userID)
	q := "UPDATE users SET " + strings.Join(sets, ", ") +
		", updated_at = NOW() WHERE id = $" + strconv.Itoa(len(args))

	res, err := d.db.ExecContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrUserNotFound
	}
	return d.GetProfile(ctx, userID)
}
