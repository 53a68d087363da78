package models

import "time"

// Asset is a stored video. The bytes live in object storage under
// StorageKey; the record here is authoritative for accounting.
//
// Lifecycle: active → soft-deleted (Deleted=true, bytes already released
// from the workspace counter, title tagged) → purged (row and blob gone).
// The second transition happens asynchronously in the purge worker.
type Asset struct {
	ID          string
	WorkspaceID string
	UploaderID  string
	Title       string
	StorageKey  string
	URL         string
	SizeBytes   int64
	Deleted     bool
	CreatedAt   time.Time
}
