package entitlement

import (
	"context"
	"time"
)

// ScopeFilter narrows UsersInScope to a subset of the managed landscape.
type ScopeFilter struct {
	Systems     []string
	Departments []string
}

// FirefighterStatus describes the availability of an emergency-access
// (firefighter) account at query time.
type FirefighterStatus struct {
	Available bool
	Locked    bool
	ValidTo   *time.Time
}

// Source is the external collaborator the core reads access data from.
// Implementations may be mocked, database-backed, or proxied to a remote
// GRC system; calls may fail with a transient or permanent apperrors.AppError.
type Source interface {
	UsersInScope(ctx context.Context, filter ScopeFilter) ([]string, error)
	EntitlementsOf(ctx context.Context, userID string) ([]Entitlement, error)
	RolesOf(ctx context.Context, userID string) ([]string, error)
	CheckFirefighterAvailability(ctx context.Context, firefighterID string) (FirefighterStatus, error)
}
