package matrix

import (
	"errors"
	"testing"

	"github.com/admatrix/api/internal/model"
)

func imageRef(id string) model.AssetReference {
	return model.AssetReference{
		ID:   id,
		Type: model.AssetTypeImage,
		URL:  "https://cdn.example.com/" + id + ".png",
	}
}

func TestAddRow_CreatesEmptyCells(t *testing.T) {
	m := New("campaign-1", "user-1", "Summer Sale")

	row := AddRow(m, model.PlatformInstagram, "story")

	if len(m.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(m.Rows))
	}
	for _, at := range model.AllAssetTypes {
		cell := m.Cell(row.ID, at)
		if cell.Asset != nil {
			t.Errorf("expected empty cell for %s, got asset %v", at, cell.Asset)
		}
		if cell.Locked {
			t.Errorf("expected unlocked cell for %s", at)
		}
	}
}

func TestRemoveRow_DeletesCells(t *testing.T) {
	m := New("campaign-1", "user-1", "Summer Sale")
	row := AddRow(m, model.PlatformFacebook, "feed")
	if err := AssignAsset(m, row.ID, model.AssetTypeImage, imageRef("img-1")); err != nil {
		t.Fatalf("assign failed: %v", err)
	}

	if err := RemoveRow(m, row.ID); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if len(m.Rows) != 0 {
		t.Errorf("expected 0 rows, got %d", len(m.Rows))
	}
	if len(m.Cells) != 0 {
		t.Errorf("expected cells cleared, got %d entries", len(m.Cells))
	}
}

func TestRemoveRow_NotFound(t *testing.T) {
	m := New("campaign-1", "user-1", "Summer Sale")

	err := RemoveRow(m, "missing-row")
	if !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDuplicateRow_DeepCopiesAssignments(t *testing.T) {
	m := New("campaign-1", "user-1", "Summer Sale")
	row := AddRow(m, model.PlatformTiktok, "vertical")
	if err := AssignAsset(m, row.ID, model.AssetTypeImage, imageRef("img-1")); err != nil {
		t.Fatalf("assign failed: %v", err)
	}
	if err := Lock(m, row.ID, model.AssetTypeImage); err != nil {
		t.Fatalf("lock failed: %v", err)
	}

	dup, err := DuplicateRow(m, row.ID)
	if err != nil {
		t.Fatalf("duplicate failed: %v", err)
	}
	if len(m.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(m.Rows))
	}
	if m.Rows[1].ID != dup.ID {
		t.Error("expected duplicate appended at the end")
	}
	if dup.Platform != model.PlatformTiktok || dup.Format != "vertical" {
		t.Errorf("duplicate has wrong platform/format: %s/%s", dup.Platform, dup.Format)
	}

	cell := m.Cell(dup.ID, model.AssetTypeImage)
	if cell.Asset == nil || cell.Asset.ID != "img-1" {
		t.Fatalf("expected copied asset img-1, got %v", cell.Asset)
	}
	if !cell.Locked {
		t.Error("expected lock flag copied")
	}

	// The copy must be independent of the source cell.
	cell.Asset.ID = "mutated"
	src := m.Cell(row.ID, model.AssetTypeImage)
	if src.Asset.ID != "img-1" {
		t.Error("mutating the duplicate leaked into the source row")
	}
}

func TestAssignAsset_LockedCellRejected(t *testing.T) {
	m := New("campaign-1", "user-1", "Summer Sale")
	row := AddRow(m, model.PlatformYoutube, "pre-roll")
	if err := AssignAsset(m, row.ID, model.AssetTypeImage, imageRef("img-1")); err != nil {
		t.Fatalf("assign failed: %v", err)
	}
	if err := Lock(m, row.ID, model.AssetTypeImage); err != nil {
		t.Fatalf("lock failed: %v", err)
	}

	err := AssignAsset(m, row.ID, model.AssetTypeImage, imageRef("img-2"))
	if !errors.Is(err, model.ErrCellLocked) {
		t.Errorf("expected ErrCellLocked, got %v", err)
	}
	cell := m.Cell(row.ID, model.AssetTypeImage)
	if cell.Asset.ID != "img-1" {
		t.Errorf("locked cell was overwritten: %s", cell.Asset.ID)
	}
}

func TestRemoveAsset_LockedCellRejected(t *testing.T) {
	m := New("campaign-1", "user-1", "Summer Sale")
	row := AddRow(m, model.PlatformDisplay, "banner")
	if err := AssignAsset(m, row.ID, model.AssetTypeImage, imageRef("img-1")); err != nil {
		t.Fatalf("assign failed: %v", err)
	}
	if err := Lock(m, row.ID, model.AssetTypeImage); err != nil {
		t.Fatalf("lock failed: %v", err)
	}

	err := RemoveAsset(m, row.ID, model.AssetTypeImage)
	if !errors.Is(err, model.ErrCellLocked) {
		t.Errorf("expected ErrCellLocked, got %v", err)
	}
}

func TestLock_EmptyCellRejected(t *testing.T) {
	m := New("campaign-1", "user-1", "Summer Sale")
	row := AddRow(m, model.PlatformFacebook, "feed")

	err := Lock(m, row.ID, model.AssetTypeImage)
	if !errors.Is(err, model.ErrEmptyCell) {
		t.Errorf("expected ErrEmptyCell, got %v", err)
	}
}

func TestUnlock_Idempotent(t *testing.T) {
	m := New("campaign-1", "user-1", "Summer Sale")
	row := AddRow(m, model.PlatformFacebook, "feed")

	if err := Unlock(m, row.ID, model.AssetTypeImage); err != nil {
		t.Errorf("unlock of unlocked cell should succeed, got %v", err)
	}

	if err := AssignAsset(m, row.ID, model.AssetTypeImage, imageRef("img-1")); err != nil {
		t.Fatalf("assign failed: %v", err)
	}
	if err := Lock(m, row.ID, model.AssetTypeImage); err != nil {
		t.Fatalf("lock failed: %v", err)
	}
	if err := Unlock(m, row.ID, model.AssetTypeImage); err != nil {
		t.Fatalf("unlock failed: %v", err)
	}
	if err := AssignAsset(m, row.ID, model.AssetTypeImage, imageRef("img-2")); err != nil {
		t.Errorf("assign after unlock should succeed, got %v", err)
	}
}

func TestAssignAsset_UnknownRow(t *testing.T) {
	m := New("campaign-1", "user-1", "Summer Sale")

	err := AssignAsset(m, "missing-row", model.AssetTypeImage, imageRef("img-1"))
	if !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
