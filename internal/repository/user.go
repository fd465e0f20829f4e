package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"invencea-api/internal/model"
)

// UserStore implements UserRepository.
type UserStore struct {
	db *DB
}

// NewUserStore creates a new user repository.
func NewUserStore(db *DB) *UserStore {
	return &UserStore{db: db}
}

var _ UserRepository = (*UserStore)(nil)

func (s *UserStore) GetByID(ctx context.Context, id string) (*model.User, error) {
	u := new(model.User)
	err := s.db.NewSelect().
		Model(u).
		Relation("Branch").
		Where("u.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err)
	}
	return u, nil
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	u := new(model.User)
	err := s.db.NewSelect().
		Model(u).
		Relation("Branch").
		Where("u.email = ?", normalizeEmail(email)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err)
	}
	return u, nil
}

func (s *UserStore) Upsert(ctx context.Context, u *model.User) error {
	u.Email = normalizeEmail(u.Email)
	now := time.Now().UTC()
	u.UpdatedAt = now

	existing, err := s.GetByEmail(ctx, u.Email)
	switch {
	case err == nil:
		u.ID = existing.ID
		u.CreatedAt = existing.CreatedAt
		_, err = s.db.NewUpdate().
			Model(u).
			Column("password_hash", "role", "branch_id", "full_name", "updated_at").
			WherePK().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("update user: %w", err)
		}
		return nil
	case errors.Is(err, ErrNotFound):
		u.CreatedAt = now
		if _, err := s.db.NewInsert().Model(u).Exec(ctx); err != nil {
			return fmt.Errorf("insert user: %w", err)
		}
		return nil
	default:
		return err
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
