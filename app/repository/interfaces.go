package repository

import (
	"time"

	"github.com/healhub/healhub-auth/app/models"
	"gorm.io/gorm"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	GetByAppleUserID(appleUserID string) (*models.User, error)
	FindOrCreateByAppleUserID(appleUserID, email string) (*models.User, error)
}

// SubscriptionRepository defines the interface for the subscription ledger
type SubscriptionRepository interface {
	Upsert(sub *models.Subscription) error
	ActiveForUser(userID uint, now time.Time) (*models.Subscription, error)
}

// Repositories struct holds all repository instances
type Repositories struct {
	User         UserRepository
	Subscription SubscriptionRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:         NewUserRepository(db),
		Subscription: NewSubscriptionRepository(db),
	}
}
