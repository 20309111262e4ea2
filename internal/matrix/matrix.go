// Package matrix implements the campaign grid: row/column mutations with lock
// semantics, combination expansion, and auto-fill. Everything here is pure
// in-memory state; callers persist through the store at their own checkpoints.
package matrix

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/admatrix/api/internal/model"
)

// New creates an empty matrix for a campaign.
func New(campaignID, userID, name string) *model.Matrix {
	now := time.Now()
	return &model.Matrix{
		ID:         uuid.New().String(),
		CampaignID: campaignID,
		UserID:     userID,
		Name:       name,
		Rows:       []model.Row{},
		Cells:      make(map[string]model.Cell),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// AddRow appends a row with an empty cell for every asset type.
func AddRow(m *model.Matrix, platform model.Platform, format string) model.Row {
	row := model.Row{
		ID:       uuid.New().String(),
		Platform: platform,
		Format:   format,
	}
	m.Rows = append(m.Rows, row)
	for _, t := range model.AllAssetTypes {
		m.SetCell(row.ID, t, model.Cell{})
	}
	touch(m)
	return row
}

// RemoveRow deletes a row and its cells.
func RemoveRow(m *model.Matrix, rowID string) error {
	idx := rowIndex(m, rowID)
	if idx < 0 {
		return fmt.Errorf("row %s: %w", rowID, model.ErrNotFound)
	}
	m.Rows = append(m.Rows[:idx], m.Rows[idx+1:]...)
	for _, t := range model.AllAssetTypes {
		delete(m.Cells, model.CellKey(rowID, t))
	}
	touch(m)
	return nil
}

// DuplicateRow deep-copies a row's assignments, locks included, into a new
// row appended at the end.
func DuplicateRow(m *model.Matrix, rowID string) (model.Row, error) {
	idx := rowIndex(m, rowID)
	if idx < 0 {
		return model.Row{}, fmt.Errorf("row %s: %w", rowID, model.ErrNotFound)
	}
	src := m.Rows[idx]
	dup := AddRow(m, src.Platform, src.Format)
	for _, t := range model.AllAssetTypes {
		cell := m.Cell(rowID, t)
		if cell.Asset != nil {
			ref := *cell.Asset
			cell.Asset = &ref
		}
		m.SetCell(dup.ID, t, cell)
	}
	touch(m)
	return dup, nil
}

// AssignAsset overwrites a cell's asset reference. Locked cells reject the
// write.
func AssignAsset(m *model.Matrix, rowID string, t model.AssetType, ref model.AssetReference) error {
	cell, err := cellAt(m, rowID, t)
	if err != nil {
		return err
	}
	if cell.Locked {
		return fmt.Errorf("cell %s/%s: %w", rowID, t, model.ErrCellLocked)
	}
	cell.Asset = &ref
	m.SetCell(rowID, t, cell)
	touch(m)
	return nil
}

// RemoveAsset clears a cell. Locked cells reject the write.
func RemoveAsset(m *model.Matrix, rowID string, t model.AssetType) error {
	cell, err := cellAt(m, rowID, t)
	if err != nil {
		return err
	}
	if cell.Locked {
		return fmt.Errorf("cell %s/%s: %w", rowID, t, model.ErrCellLocked)
	}
	cell.Asset = nil
	m.SetCell(rowID, t, cell)
	touch(m)
	return nil
}

// Lock pins a cell so auto-fill and bulk edits cannot change it. An empty
// cell cannot be locked.
func Lock(m *model.Matrix, rowID string, t model.AssetType) error {
	cell, err := cellAt(m, rowID, t)
	if err != nil {
		return err
	}
	if cell.Asset == nil {
		return fmt.Errorf("cell %s/%s: %w", rowID, t, model.ErrEmptyCell)
	}
	cell.Locked = true
	m.SetCell(rowID, t, cell)
	touch(m)
	return nil
}

// Unlock clears the lock flag. Idempotent on unlocked cells.
func Unlock(m *model.Matrix, rowID string, t model.AssetType) error {
	cell, err := cellAt(m, rowID, t)
	if err != nil {
		return err
	}
	cell.Locked = false
	m.SetCell(rowID, t, cell)
	touch(m)
	return nil
}

func cellAt(m *model.Matrix, rowID string, t model.AssetType) (model.Cell, error) {
	if !model.IsValidAssetType(t) {
		return model.Cell{}, fmt.Errorf("asset type %q: %w", t, model.ErrNotFound)
	}
	if !m.HasRow(rowID) {
		return model.Cell{}, fmt.Errorf("row %s: %w", rowID, model.ErrNotFound)
	}
	return m.Cell(rowID, t), nil
}

func rowIndex(m *model.Matrix, rowID string) int {
	for i, r := range m.Rows {
		if r.ID == rowID {
			return i
		}
	}
	return -1
}

func touch(m *model.Matrix) {
	m.UpdatedAt = time.Now()
}
