package matrix

import (
	"math/rand"
	"sort"

	"github.com/admatrix/api/internal/model"
)

// AutoFill assigns an asset to every unlocked cell, overwriting prior
// unlocked choices. Locked cells are never touched, whatever the strategy
// prefers. A type with no eligible assets leaves its cells empty; validation
// surfaces the gap later rather than failing the fill.
func AutoFill(m *model.Matrix, pool []model.AssetReference, strategy model.FillStrategy, rng *rand.Rand) {
	byType := make(map[model.AssetType][]model.AssetReference)
	for _, ref := range pool {
		byType[ref.Type] = append(byType[ref.Type], ref)
	}

	used := usedAssetIDs(m)

	for _, row := range m.Rows {
		for _, t := range model.AllAssetTypes {
			cell := m.Cell(row.ID, t)
			if cell.Locked {
				continue
			}
			eligible := byType[t]
			if len(eligible) == 0 {
				continue
			}

			var pick model.AssetReference
			switch strategy {
			case model.FillStrategySmart:
				pick = pickSmart(eligible, used)
			default:
				pick = eligible[rng.Intn(len(eligible))]
			}

			ref := pick
			cell.Asset = &ref
			m.SetCell(row.ID, t, cell)
			used[ref.ID]++
		}
	}
	touch(m)
}

// pickSmart ranks deterministically: fewest uses elsewhere in the matrix
// first (maximize variety), then higher catalog score, then asset id.
func pickSmart(eligible []model.AssetReference, used map[string]int) model.AssetReference {
	ranked := make([]model.AssetReference, len(eligible))
	copy(ranked, eligible)
	sort.SliceStable(ranked, func(i, j int) bool {
		ui, uj := used[ranked[i].ID], used[ranked[j].ID]
		if ui != uj {
			return ui < uj
		}
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].ID < ranked[j].ID
	})
	return ranked[0]
}

// usedAssetIDs seeds variety tracking with locked assignments only; unlocked
// cells are about to be overwritten and should not bias the ranking.
func usedAssetIDs(m *model.Matrix) map[string]int {
	used := make(map[string]int)
	for _, cell := range m.Cells {
		if cell.Locked && cell.Asset != nil {
			used[cell.Asset.ID]++
		}
	}
	return used
}
