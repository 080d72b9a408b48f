package repository

import (
	"errors"
	"strings"

	"github.com/healhub/healhub-auth/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// userRepository implements the UserRepository interface
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository instance
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// GetByAppleUserID retrieves a user by their Apple identity subject
func (r *userRepository) GetByAppleUserID(appleUserID string) (*models.User, error) {
	var user models.User
	err := r.db.Where("apple_user_id = ?", appleUserID).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// FindOrCreateByAppleUserID resolves an Apple identity subject to its local
// user, creating the row on first sight. Concurrent first sign-ins for the
// same subject race on the unique index; the loser joins the winner's row.
func (r *userRepository) FindOrCreateByAppleUserID(appleUserID, email string) (*models.User, error) {
	subject := strings.TrimSpace(appleUserID)
	if subject == "" {
		return nil, errors.New("apple user id is required")
	}
	mail := strings.TrimSpace(email)

	candidate, err := models.NewUser(subject, mail)
	if err != nil {
		return nil, err
	}
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "apple_user_id"},
		},
		DoNothing: true,
	}).Create(candidate).Error; err != nil {
		return nil, err
	}

	// Reload so ID and any previously stored email are populated after a
	// conflict no-op.
	user, err := r.GetByAppleUserID(subject)
	if err != nil {
		return nil, err
	}

	// Backfill only a previously-empty email; Apple withholds the address on
	// repeat sign-ins, and a stored value is never overwritten.
	if user.Email == "" && mail != "" {
		if err := r.db.Model(user).Update("email", mail).Error; err != nil {
			return nil, err
		}
		user.Email = mail
	}

	return user, nil
}
