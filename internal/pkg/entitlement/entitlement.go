package entitlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/healhub/healhub-auth/app/models"
	"github.com/healhub/healhub-auth/app/repository"
)

// Status is the answer to an entitlement query.
type Status struct {
	Active       bool
	Subscription *models.Subscription
}

// Service decides whether a user currently holds an unexpired subscription.
// There is no stored "active" flag and no background sweep: every query
// compares recorded expiry timestamps against the clock, so entitlement
// lapses the moment an expiry passes and revives when a newer record lands.
type Service struct {
	subscriptionRepo repository.SubscriptionRepository
}

// NewService creates the entitlement service on top of the subscription ledger.
func NewService(subscriptionRepo repository.SubscriptionRepository) *Service {
	return &Service{
		subscriptionRepo: subscriptionRepo,
	}
}

// StatusFor reports the user's entitlement at the given instant. A user with
// no unexpired record is simply inactive; only ledger failures surface as
// errors so callers can distinguish "not subscribed" from "cannot tell".
func (s *Service) StatusFor(ctx context.Context, userID uint, now time.Time) (*Status, error) {
	_ = ctx

	subscription, err := s.subscriptionRepo.ActiveForUser(userID, now)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &Status{Active: false}, nil
		}
		return nil, fmt.Errorf("failed to query subscription ledger: %w", err)
	}

	if subscription == nil || !subscription.IsActiveAt(now) {
		return &Status{Active: false}, nil
	}

	return &Status{
		Active:       true,
		Subscription: subscription,
	}, nil
}
