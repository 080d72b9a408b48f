package constants

// Static route constants
const (
	IndexRoute              = "/"
	HealthRoute             = "/health"
	AppleAuthRoute          = "/auth/apple"
	SubscriptionStatusRoute = "/subscription/status"
)
