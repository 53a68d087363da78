// Package models defines server-side data models persisted in the database.
package models

import (
	"time"

	"framevault/internal/server/plan"
)

// User is an account that can own workspaces and hold memberships.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash []byte
	// Plan is the subscription tier quotas are resolved from. Workspace
	// quotas always follow the workspace owner's plan, not the acting
	// member's.
	Plan      plan.Tier
	CreatedAt time.Time
}
