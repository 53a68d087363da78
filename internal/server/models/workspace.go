package models

import "time"

// Workspace is a shared namespace of assets with an owner, a member set
// and a storage counter.
type Workspace struct {
	ID      string
	Name    string
	OwnerID string
	// StorageUsed is the authoritative byte counter. It equals the sum of
	// SizeBytes over the workspace's assets that are not soft-deleted;
	// soft-deleted assets have already had their bytes released.
	StorageUsed int64
	CreatedAt   time.Time
}

// Member is one row of a workspace's member set.
type Member struct {
	WorkspaceID string
	UserID      string
	AddedAt     time.Time
}
