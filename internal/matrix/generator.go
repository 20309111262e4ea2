package matrix

import (
	"fmt"

	"github.com/admatrix/api/internal/model"
)

// RequiredPolicy decides which asset types a row's platform must have
// assigned. Platforms without an explicit entry fall back to the baseline
// rule: at least one visual asset (image or video).
type RequiredPolicy struct {
	PerPlatform map[model.Platform][]model.AssetType
}

// DefaultPolicy requires only the baseline visual rule on every platform.
func DefaultPolicy() RequiredPolicy {
	return RequiredPolicy{PerPlatform: map[model.Platform][]model.AssetType{}}
}

// PolicyFromConfig builds a policy from the execution.required_types config
// map. Unknown asset types are dropped rather than failing startup.
func PolicyFromConfig(required map[string][]string) RequiredPolicy {
	policy := DefaultPolicy()
	for platform, types := range required {
		var reqs []model.AssetType
		for _, t := range types {
			at := model.AssetType(t)
			if model.IsValidAssetType(at) {
				reqs = append(reqs, at)
			}
		}
		if len(reqs) > 0 {
			policy.PerPlatform[model.Platform(platform)] = reqs
		}
	}
	return policy
}

// Generate expands the matrix into exactly one combination per row, in row
// order. The order is the basis of each job's variation index, so it must be
// identical on every call for the same matrix state.
func Generate(m *model.Matrix) []model.Combination {
	combos := make([]model.Combination, 0, len(m.Rows))
	for _, row := range m.Rows {
		assignments := make(map[model.AssetType]*model.AssetReference, len(model.AllAssetTypes))
		for _, t := range model.AllAssetTypes {
			cell := m.Cell(row.ID, t)
			if cell.Asset != nil {
				ref := *cell.Asset
				assignments[t] = &ref
			} else {
				assignments[t] = nil
			}
		}
		combos = append(combos, model.Combination{
			RowID:       row.ID,
			Platform:    row.Platform,
			Format:      row.Format,
			Assignments: assignments,
		})
	}
	return combos
}

// Validate reports blocking missing-asset issues and non-blocking duplicate
// warnings. Duplicates are never removed — rendering the same creative for
// two rows is a legitimate choice.
func Validate(combos []model.Combination, policy RequiredPolicy) []model.ValidationIssue {
	var issues []model.ValidationIssue

	for _, c := range combos {
		required, explicit := policy.PerPlatform[c.Platform]
		if explicit {
			for _, t := range required {
				if c.Assignments[t] == nil {
					issues = append(issues, model.ValidationIssue{
						Code:      model.IssueMissingRequiredAsset,
						RowID:     c.RowID,
						AssetType: t,
						Message:   fmt.Sprintf("row requires a %s asset for %s", t, c.Platform),
					})
				}
			}
			continue
		}
		if !hasVisual(c) {
			issues = append(issues, model.ValidationIssue{
				Code:    model.IssueMissingRequiredAsset,
				RowID:   c.RowID,
				Message: "row has no visual asset (image or video)",
			})
		}
	}

	seen := make(map[string][]string, len(combos))
	order := make([]string, 0, len(combos))
	for _, c := range combos {
		fp := c.Fingerprint()
		if _, ok := seen[fp]; !ok {
			order = append(order, fp)
		}
		seen[fp] = append(seen[fp], c.RowID)
	}
	for _, fp := range order {
		rows := seen[fp]
		if len(rows) > 1 {
			issues = append(issues, model.ValidationIssue{
				Code:    model.IssueDuplicateCombination,
				RowIDs:  rows,
				Message: fmt.Sprintf("%d rows share identical asset assignments", len(rows)),
			})
		}
	}

	return issues
}

func hasVisual(c model.Combination) bool {
	for _, t := range model.VisualAssetTypes {
		if c.Assignments[t] != nil {
			return true
		}
	}
	return false
}
