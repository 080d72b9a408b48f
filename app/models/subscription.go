package models

import "time"

const (
	// SubscriptionStatusRecorded is the only status this service writes.
	// Expiry is never transitioned in place; readers compare ExpiresAt
	// against the clock instead (see Subscription.IsActiveAt).
	SubscriptionStatusRecorded = "recorded"
)

// Subscription mirrors one verified App Store purchase outcome. The Apple
// transaction id is the natural idempotency key: replaying a receipt
// overwrites the row instead of creating a new one.
type Subscription struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	UserID        uint      `gorm:"not null;index:idx_subscriptions_user_expiry,priority:1" json:"user_id"`
	TransactionID string    `gorm:"type:varchar(191);not null;uniqueIndex" json:"transaction_id"`
	ProductID     string    `gorm:"type:varchar(191);not null" json:"product_id"`
	Status        string    `gorm:"type:varchar(32);not null;default:'recorded'" json:"status"`
	ExpiresAt     time.Time `gorm:"not null;index:idx_subscriptions_user_expiry,priority:2" json:"expires_at"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsActiveAt reports whether the subscription is unexpired at t. The boundary
// is exclusive: a record expiring exactly at t no longer counts as active.
func (s *Subscription) IsActiveAt(t time.Time) bool {
	return s.ExpiresAt.After(t)
}
