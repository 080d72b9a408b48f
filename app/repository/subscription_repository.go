package repository

import (
	"time"

	"github.com/healhub/healhub-auth/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// subscriptionRepository implements the SubscriptionRepository interface
type subscriptionRepository struct {
	db *gorm.DB
}

// NewSubscriptionRepository creates a new subscription repository instance
func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

// Upsert inserts the purchase outcome or overwrites the row carrying the same
// transaction id. Replayed receipts settle on the unique index rather than via
// read-modify-write, so concurrent replays cannot produce duplicates.
func (r *subscriptionRepository) Upsert(sub *models.Subscription) error {
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "transaction_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"user_id",
			"product_id",
			"status",
			"expires_at",
			"updated_at",
		}),
	}).Create(sub).Error; err != nil {
		return err
	}

	// Ensure ID is populated after upsert.
	return r.db.Where("transaction_id = ?", sub.TransactionID).First(sub).Error
}

// ActiveForUser returns the most recently expiring record for the user whose
// expiry lies strictly in the future, or gorm.ErrRecordNotFound when the user
// holds none. Expired rows are left untouched; they simply stop matching.
func (r *subscriptionRepository) ActiveForUser(userID uint, now time.Time) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Where("user_id = ? AND expires_at > ?", userID, now).
		Order("expires_at DESC").
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}
