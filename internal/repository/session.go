package repository

import (
	"context"
	"fmt"
	"time"

	"invencea-api/internal/model"
)

// SessionStore implements SessionRepository.
type SessionStore struct {
	db *DB
}

// NewSessionStore creates a new session repository.
func NewSessionStore(db *DB) *SessionStore {
	return &SessionStore{db: db}
}

var _ SessionRepository = (*SessionStore)(nil)

func (s *SessionStore) Get(ctx context.Context, userID string) (*model.ActiveSession, error) {
	sess := new(model.ActiveSession)
	if err := s.db.NewSelect().Model(sess).Where("user_id = ?", userID).Limit(1).Scan(ctx); err != nil {
		return nil, notFound(err)
	}
	return sess, nil
}

// Insert relies on the user_id primary key: a concurrent login that already
// inserted makes this a no-op, reported as ErrConflict.
func (s *SessionStore) Insert(ctx context.Context, sess *model.ActiveSession) error {
	res, err := s.db.NewInsert().Model(sess).Ignore().Exec(ctx)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	n, err := affected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

func (s *SessionStore) DeleteExpiredForUser(ctx context.Context, userID string, now time.Time) (int64, error) {
	res, err := s.db.NewDelete().
		Model((*model.ActiveSession)(nil)).
		Where("user_id = ?", userID).
		Where("expires_at <= ?", now.UTC()).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("delete expired session: %w", err)
	}
	return affected(res)
}

func (s *SessionStore) DeleteByToken(ctx context.Context, token string) ([]model.ActiveSession, error) {
	return s.deleteWhere(ctx, "token = ?", token)
}

func (s *SessionStore) DeleteByUser(ctx context.Context, userID string) ([]model.ActiveSession, error) {
	return s.deleteWhere(ctx, "user_id = ?", userID)
}

func (s *SessionStore) deleteWhere(ctx context.Context, cond string, arg interface{}) ([]model.ActiveSession, error) {
	var sessions []model.ActiveSession
	if err := s.db.NewSelect().Model(&sessions).Where(cond, arg).Scan(ctx); err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}
	if len(sessions) == 0 {
		return nil, nil
	}
	if _, err := s.db.NewDelete().Model((*model.ActiveSession)(nil)).Where(cond, arg).Exec(ctx); err != nil {
		return nil, fmt.Errorf("delete sessions: %w", err)
	}
	return sessions, nil
}

func (s *SessionStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.NewDelete().
		Model((*model.ActiveSession)(nil)).
		Where("expires_at <= ?", now.UTC()).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return affected(res)
}
