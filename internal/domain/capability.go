package domain

import "context"

// Capabilities checked by the review workflow guards.
const (
	CapabilityReview   = "review"
	CapabilityFinalize = "finalize"
)

// CapabilityAuthorizer decides whether an actor may exercise a capability.
// Decisions come from the policy engine loaded at startup.
type CapabilityAuthorizer interface {
	Allow(ctx context.Context, actor Actor, capability string) (bool, error)
}
