package model

import (
	"fmt"
	"time"
)

// AssetReference points at a record in the asset catalog. The engine never
// touches the media itself, only the reference.
type AssetReference struct {
	ID    string    `json:"id"`
	Type  AssetType `json:"type"`
	URL   string    `json:"url"`
	Name  string    `json:"name,omitempty"`
	Tags  []string  `json:"tags,omitempty"`
	Score float64   `json:"score,omitempty"` // catalog relevance, 0 when unscored
}

// Cell is one slot of the matrix grid. A locked cell always has an asset:
// locking an empty cell is rejected.
type Cell struct {
	Asset  *AssetReference `json:"asset,omitempty"`
	Locked bool            `json:"locked"`
}

// Row is one platform/format variant. Row order is significant — it fixes the
// combination order and therefore each job's variation index.
type Row struct {
	ID       string   `json:"id"`
	Platform Platform `json:"platform"`
	Format   string   `json:"format"`
}

// Matrix is the editable grid of rows against asset-type columns. Columns are
// implicit: every row has one cell per asset type.
type Matrix struct {
	ID         string          `json:"id"`
	CampaignID string          `json:"campaignId"`
	UserID     string          `json:"userId"`
	Name       string          `json:"name"`
	Rows       []Row           `json:"rows"`
	Cells      map[string]Cell `json:"cells"` // keyed by CellKey(rowID, type)
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// CellKey builds the map key for a row/column slot.
func CellKey(rowID string, t AssetType) string {
	return fmt.Sprintf("%s:%s", rowID, t)
}

// Cell returns the cell at (rowID, t), defaulting to an empty unlocked cell.
func (m *Matrix) Cell(rowID string, t AssetType) Cell {
	return m.Cells[CellKey(rowID, t)]
}

// SetCell stores the cell at (rowID, t), allocating the map if needed.
func (m *Matrix) SetCell(rowID string, t AssetType, c Cell) {
	if m.Cells == nil {
		m.Cells = make(map[string]Cell)
	}
	m.Cells[CellKey(rowID, t)] = c
}

// HasRow reports whether rowID exists in the matrix.
func (m *Matrix) HasRow(rowID string) bool {
	for _, r := range m.Rows {
		if r.ID == rowID {
			return true
		}
	}
	return false
}
