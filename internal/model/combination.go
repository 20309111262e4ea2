package model

import (
	"sort"
	"strings"
)

// Combination is one fully-resolved set of asset choices for a single matrix
// row, ready to submit for rendering. Derived from the matrix on demand and
// snapshotted onto jobs at execution time.
type Combination struct {
	RowID       string                        `json:"rowId"`
	Platform    Platform                      `json:"platform"`
	Format      string                        `json:"format"`
	Assignments map[AssetType]*AssetReference `json:"assignments"`
}

// Fingerprint returns a stable identity for the assignment map. Two
// combinations with equal fingerprints are structural duplicates.
func (c Combination) Fingerprint() string {
	parts := make([]string, 0, len(c.Assignments))
	for t, ref := range c.Assignments {
		if ref == nil {
			continue
		}
		parts = append(parts, string(t)+"="+ref.ID)
	}
	sort.Strings(parts)
	return strings.Join(parts, "|")
}

// ValidationIssue reports a problem or warning found in a combination set.
// Missing required assets block execution; duplicate combinations are
// warnings only — a user may want the same creative on two rows.
type ValidationIssue struct {
	Code      string    `json:"code"`
	RowID     string    `json:"rowId,omitempty"`
	AssetType AssetType `json:"assetType,omitempty"`
	RowIDs    []string  `json:"rowIds,omitempty"`
	Message   string    `json:"message"`
}

// Blocking reports whether the issue must stop execution.
func (v ValidationIssue) Blocking() bool {
	return v.Code == IssueMissingRequiredAsset
}

// HasBlocking reports whether any issue in the list blocks execution.
func HasBlocking(issues []ValidationIssue) bool {
	for _, is := range issues {
		if is.Blocking() {
			return true
		}
	}
	return false
}
