package service

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/admatrix/api/internal/client"
	"github.com/admatrix/api/internal/matrix"
	"github.com/admatrix/api/internal/model"
	"github.com/admatrix/api/internal/store"
)

// MatrixService orchestrates grid edits: every operation loads the matrix,
// checks ownership, applies the mutation, and persists the result. State is
// never held between calls.
type MatrixService struct {
	store   store.Store
	catalog client.AssetFinder
	policy  matrix.RequiredPolicy
}

func NewMatrixService(st store.Store, catalog client.AssetFinder, policy matrix.RequiredPolicy) *MatrixService {
	return &MatrixService{
		store:   st,
		catalog: catalog,
		policy:  policy,
	}
}

// Create opens a new empty matrix for a campaign.
func (s *MatrixService) Create(ctx context.Context, userID string, req *model.CreateMatrixRequest) (*model.Matrix, error) {
	m := matrix.New(req.CampaignID, userID, req.Name)
	if err := s.store.SaveMatrix(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to save matrix: %w", err)
	}
	return m, nil
}

// Get loads a matrix the user owns.
func (s *MatrixService) Get(ctx context.Context, userID, matrixID string) (*model.Matrix, error) {
	return s.loadOwned(ctx, userID, matrixID)
}

// Delete removes a matrix and its grid state.
func (s *MatrixService) Delete(ctx context.Context, userID, matrixID string) error {
	if _, err := s.loadOwned(ctx, userID, matrixID); err != nil {
		return err
	}
	return s.store.DeleteMatrix(ctx, matrixID)
}

// AddRow appends a platform/format row with empty cells.
func (s *MatrixService) AddRow(ctx context.Context, userID, matrixID string, req *model.AddRowRequest) (*model.Row, error) {
	m, err := s.loadOwned(ctx, userID, matrixID)
	if err != nil {
		return nil, err
	}
	row := matrix.AddRow(m, req.Platform, req.Format)
	if err := s.store.SaveMatrix(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to save matrix: %w", err)
	}
	return &row, nil
}

// RemoveRow deletes a row and its cells.
func (s *MatrixService) RemoveRow(ctx context.Context, userID, matrixID, rowID string) error {
	m, err := s.loadOwned(ctx, userID, matrixID)
	if err != nil {
		return err
	}
	if err := matrix.RemoveRow(m, rowID); err != nil {
		return err
	}
	return s.store.SaveMatrix(ctx, m)
}

// DuplicateRow deep-copies a row, locks included.
func (s *MatrixService) DuplicateRow(ctx context.Context, userID, matrixID, rowID string) (*model.Row, error) {
	m, err := s.loadOwned(ctx, userID, matrixID)
	if err != nil {
		return nil, err
	}
	row, err := matrix.DuplicateRow(m, rowID)
	if err != nil {
		return nil, err
	}
	if err := s.store.SaveMatrix(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to save matrix: %w", err)
	}
	return &row, nil
}

// AssignAsset sets a cell's asset reference.
func (s *MatrixService) AssignAsset(ctx context.Context, userID, matrixID, rowID string, t model.AssetType, ref model.AssetReference) (*model.Matrix, error) {
	m, err := s.loadOwned(ctx, userID, matrixID)
	if err != nil {
		return nil, err
	}
	if err := matrix.AssignAsset(m, rowID, t, ref); err != nil {
		return nil, err
	}
	if err := s.store.SaveMatrix(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to save matrix: %w", err)
	}
	return m, nil
}

// RemoveAsset clears a cell.
func (s *MatrixService) RemoveAsset(ctx context.Context, userID, matrixID, rowID string, t model.AssetType) (*model.Matrix, error) {
	m, err := s.loadOwned(ctx, userID, matrixID)
	if err != nil {
		return nil, err
	}
	if err := matrix.RemoveAsset(m, rowID, t); err != nil {
		return nil, err
	}
	if err := s.store.SaveMatrix(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to save matrix: %w", err)
	}
	return m, nil
}

// Lock pins a cell against auto-fill and bulk edits.
func (s *MatrixService) Lock(ctx context.Context, userID, matrixID, rowID string, t model.AssetType) (*model.Matrix, error) {
	m, err := s.loadOwned(ctx, userID, matrixID)
	if err != nil {
		return nil, err
	}
	if err := matrix.Lock(m, rowID, t); err != nil {
		return nil, err
	}
	if err := s.store.SaveMatrix(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to save matrix: %w", err)
	}
	return m, nil
}

// Unlock releases a cell.
func (s *MatrixService) Unlock(ctx context.Context, userID, matrixID, rowID string, t model.AssetType) (*model.Matrix, error) {
	m, err := s.loadOwned(ctx, userID, matrixID)
	if err != nil {
		return nil, err
	}
	if err := matrix.Unlock(m, rowID, t); err != nil {
		return nil, err
	}
	if err := s.store.SaveMatrix(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to save matrix: %w", err)
	}
	return m, nil
}

// AutoFill pulls eligible assets from the catalog and fills every unlocked
// cell. A type the catalog cannot serve leaves its cells empty; the gap shows
// up in the next validation rather than failing the fill.
func (s *MatrixService) AutoFill(ctx context.Context, userID, matrixID string, req *model.AutoFillRequest) (*model.Matrix, error) {
	m, err := s.loadOwned(ctx, userID, matrixID)
	if err != nil {
		return nil, err
	}

	var pool []model.AssetReference
	for _, t := range model.AllAssetTypes {
		assets, err := s.catalog.FindByType(ctx, t, req.Tag)
		if err != nil {
			log.Printf("Catalog lookup for %s failed: %v", t, err)
			continue
		}
		pool = append(pool, assets...)
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	matrix.AutoFill(m, pool, req.Strategy, rng)

	if err := s.store.SaveMatrix(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to save matrix: %w", err)
	}
	return m, nil
}

// Combinations expands the matrix and validates the result, for the
// pre-execution preview.
func (s *MatrixService) Combinations(ctx context.Context, userID, matrixID string) (*model.CombinationsResponse, error) {
	m, err := s.loadOwned(ctx, userID, matrixID)
	if err != nil {
		return nil, err
	}
	combos := matrix.Generate(m)
	issues := matrix.Validate(combos, s.policy)
	return &model.CombinationsResponse{
		MatrixID:     m.ID,
		Combinations: combos,
		Issues:       issues,
	}, nil
}

func (s *MatrixService) loadOwned(ctx context.Context, userID, matrixID string) (*model.Matrix, error) {
	m, err := s.store.LoadMatrix(ctx, matrixID)
	if err != nil {
		return nil, err
	}
	if m.UserID != userID {
		return nil, fmt.Errorf("matrix %s: %w", matrixID, model.ErrForbidden)
	}
	return m, nil
}
