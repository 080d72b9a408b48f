package models

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// User is the identity anchor for a HealHub account. Accounts are created on
// first sign-in with Apple and are never deleted by this service.
type User struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	AppleUserID string    `gorm:"uniqueIndex;type:varchar(191);not null" json:"-" validate:"required,max=191"`
	Email       string    `gorm:"type:varchar(200) CHARACTER SET utf8 COLLATE utf8_bin" json:"email" validate:"omitempty,email,max=200"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (u *User) Validate() error {
	v := validator.New()

	return v.Struct(u)
}

// NewUser builds an unsaved user for the given Apple identity. Email may be
// empty: Apple only shares it on the very first authorization.
func NewUser(appleUserID, email string) (*User, error) {
	u := &User{
		AppleUserID: appleUserID,
		Email:       email,
	}

	if err := u.Validate(); err != nil {
		return nil, err
	}

	return u, nil
}
