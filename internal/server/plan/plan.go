// Package plan defines the closed set of subscription tiers and the
// per-tier resource limits consumed by admission checks.
package plan

import (
	"fmt"

	"framevault/internal/common"
)

// Tier is a subscription plan. The set is closed: code that switches on
// Tier handles every case, and unknown database values fail ParseTier
// instead of silently falling back to a default.
type Tier int

const (
	Free Tier = iota
	Pro
	Business
)

// Limits describes what a tier entitles a workspace owner to.
type Limits struct {
	// MaxWorkspaces caps how many workspaces the owner may create.
	MaxWorkspaces int
	// StoragePerWorkspace caps the storage counter of each workspace, in bytes.
	StoragePerWorkspace int64
	// MaxMembersPerWorkspace caps the member set of each workspace.
	MaxMembersPerWorkspace int
}

const gib = 1024 * 1024 * 1024

func (t Tier) String() string {
	switch t {
	case Free:
		return "free"
	case Pro:
		return "pro"
	case Business:
		return "business"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// ParseTier maps a stored tier name to a Tier. Unknown names are an
// ErrorInvalid, never a silent free fallback.
func ParseTier(s string) (Tier, error) {
	switch s {
	case "free":
		return Free, nil
	case "pro":
		return Pro, nil
	case "business":
		return Business, nil
	default:
		return 0, fmt.Errorf("%w: unknown plan tier %q", common.ErrorInvalid, s)
	}
}

// Limits returns the resource limits for the tier.
func (t Tier) Limits() (Limits, error) {
	switch t {
	case Free:
		return Limits{MaxWorkspaces: 1, StoragePerWorkspace: 2 * gib, MaxMembersPerWorkspace: 2}, nil
	case Pro:
		return Limits{MaxWorkspaces: 3, StoragePerWorkspace: 30 * gib, MaxMembersPerWorkspace: 5}, nil
	case Business:
		return Limits{MaxWorkspaces: 10, StoragePerWorkspace: 100 * gib, MaxMembersPerWorkspace: 10}, nil
	default:
		return Limits{}, fmt.Errorf("%w: unknown plan tier %q", common.ErrorInvalid, t)
	}
}
