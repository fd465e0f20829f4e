package repository

import (
	"context"
	"fmt"
	"time"

	"invencea-api/internal/model"
	"invencea-api/pkg/uid"
)

var branchNames = map[model.BranchCode]string{
	model.BranchACEIS: "Allied Computing and Electronics Inventory System",
	model.BranchECEIS: "Electronics and Communications Engineering Inventory System",
	model.BranchCPEIS: "Computer Engineering Publication Inventory System",
}

// BranchStore implements BranchRepository.
type BranchStore struct {
	db *DB
}

// NewBranchStore creates a new branch repository.
func NewBranchStore(db *DB) *BranchStore {
	return &BranchStore{db: db}
}

var _ BranchRepository = (*BranchStore)(nil)

func (s *BranchStore) GetByID(ctx context.Context, id string) (*model.Branch, error) {
	b := new(model.Branch)
	if err := s.db.NewSelect().Model(b).Where("id = ?", id).Limit(1).Scan(ctx); err != nil {
		return nil, notFound(err)
	}
	return b, nil
}

func (s *BranchStore) GetByCode(ctx context.Context, code model.BranchCode) (*model.Branch, error) {
	b := new(model.Branch)
	if err := s.db.NewSelect().Model(b).Where("code = ?", code).Limit(1).Scan(ctx); err != nil {
		return nil, notFound(err)
	}
	return b, nil
}

func (s *BranchStore) List(ctx context.Context) ([]model.Branch, error) {
	var branches []model.Branch
	if err := s.db.NewSelect().Model(&branches).Order("code ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}
	return branches, nil
}

func (s *BranchStore) EnsureDefaults(ctx context.Context) ([]model.Branch, error) {
	now := time.Now().UTC()
	for _, code := range model.BranchCodes {
		b := &model.Branch{ID: uid.New(), Code: code, Name: branchNames[code], CreatedAt: now}
		if _, err := s.db.NewInsert().Model(b).Ignore().Exec(ctx); err != nil {
			return nil, fmt.Errorf("ensure branch %s: %w", code, err)
		}
	}
	return s.List(ctx)
}
