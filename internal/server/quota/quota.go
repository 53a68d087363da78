// Package quota holds the pure admission logic for workspace resources.
// It decides whether a mutation may proceed; applying the mutation
// atomically is the caller's job.
package quota

import (
	"fmt"

	"framevault/internal/common"
	"framevault/internal/server/plan"
)

// AdmitUpload decides whether candidateSize more bytes fit into a workspace
// currently holding used bytes under the given limits. Landing exactly on
// the limit is allowed. A non-positive candidate size is ErrorInvalid.
func AdmitUpload(limits plan.Limits, used, candidateSize int64) error {
	if candidateSize <= 0 {
		return fmt.Errorf("%w: file size must be positive, got %d", common.ErrorInvalid, candidateSize)
	}
	if used+candidateSize > limits.StoragePerWorkspace {
		return fmt.Errorf("%w: storage limit reached", common.ErrorQuotaExceeded)
	}
	return nil
}

// AdmitMember decides whether the workspace may take one more member.
func AdmitMember(limits plan.Limits, currentMembers int) error {
	if currentMembers >= limits.MaxMembersPerWorkspace {
		return fmt.Errorf("%w: member limit reached", common.ErrorQuotaExceeded)
	}
	return nil
}

// AdmitWorkspace decides whether the owner may create one more workspace.
func AdmitWorkspace(limits plan.Limits, currentWorkspaces int) error {
	if currentWorkspaces >= limits.MaxWorkspaces {
		return fmt.Errorf("%w: workspace limit reached", common.ErrorQuotaExceeded)
	}
	return nil
}
