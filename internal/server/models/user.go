// Package models holds the records persisted by the server repositories.
package models

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/scanpass/internal/common"
)

// User is an account. PasswordHash is empty for visual-only accounts and
// ObjectVector is nil until an object is enrolled.
type User struct {
	ID           string
	UserName     string
	PasswordHash string
	ObjectVector []float32
	CreatedAt    time.Time
}

// HasPassword reports whether the user can log in with a password.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

// HasObject reports whether the user has an enrolled object vector.
func (u *User) HasObject() bool {
	return len(u.ObjectVector) > 0
}

// Validate rejects a user that holds no credential at all.
func (u *User) Validate() error {
	if u.UserName == "" {
		return fmt.Errorf("%w: username is required", common.ErrValidation)
	}
	if !u.HasPassword() && !u.HasObject() {
		return fmt.Errorf("%w: user needs a password or an enrolled object", common.ErrValidation)
	}
	return nil
}
