package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"invencea-api/internal/model"
)

// BorrowStore implements BorrowRepository.
type BorrowStore struct {
	db *DB
}

// NewBorrowStore creates a new borrow request repository.
func NewBorrowStore(db *DB) *BorrowStore {
	return &BorrowStore{db: db}
}

var _ BorrowRepository = (*BorrowStore)(nil)

func (s *BorrowStore) Create(ctx context.Context, req *model.BorrowRequest) error {
	if _, err := s.db.NewInsert().Model(req).Exec(ctx); err != nil {
		return fmt.Errorf("insert borrow request: %w", err)
	}
	return nil
}

func (s *BorrowStore) Get(ctx context.Context, id string) (*model.BorrowRequest, error) {
	req := new(model.BorrowRequest)
	if err := s.db.NewSelect().Model(req).Where("id = ?", id).Limit(1).Scan(ctx); err != nil {
		return nil, notFound(err)
	}
	return req, nil
}

func (s *BorrowStore) ListMine(ctx context.Context, f MineFilter) ([]model.BorrowRequest, error) {
	var rows []model.BorrowRequest
	q := s.db.NewSelect().Model(&rows).Where("branch_id = ?", f.BranchID)
	if f.KioskID != "" {
		q = q.Where("kiosk_id = ?", f.KioskID)
	} else {
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			if f.RequesterID != "" {
				q = q.WhereOr("requester_id = ?", f.RequesterID)
			}
			return q.WhereOr("requester_name = ?", f.RequesterName)
		})
	}
	if err := q.Order("created_at DESC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list own borrow requests: %w", err)
	}
	return rows, nil
}

func (s *BorrowStore) List(ctx context.Context, f ListFilter) ([]model.BorrowRequest, int, error) {
	var rows []model.BorrowRequest
	q := s.db.NewSelect().Model(&rows).Where("branch_id = ?", f.BranchID)
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", f.From.UTC())
	}
	if f.To != nil {
		q = q.Where("created_at <= ?", f.To.UTC())
	}
	if term := strings.ToLower(strings.TrimSpace(f.Search)); term != "" {
		like := containsPattern(term)
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("LOWER(requester_name) LIKE ? ESCAPE '!'", like).
				WhereOr("LOWER(requester_id) LIKE ? ESCAPE '!'", like)
		})
	}
	q = q.Order("created_at DESC")
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}

	total, err := q.ScanAndCount(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("list borrow requests: %w", err)
	}
	return rows, total, nil
}

func (s *BorrowStore) CountByStatus(ctx context.Context, branchID string, status model.BorrowStatus) (int, error) {
	n, err := s.db.NewSelect().
		Model((*model.BorrowRequest)(nil)).
		Where("branch_id = ?", branchID).
		Where("status = ?", status).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count borrow requests: %w", err)
	}
	return n, nil
}

func (s *BorrowStore) ListIssued(ctx context.Context, branchID string) ([]model.BorrowRequest, error) {
	var rows []model.BorrowRequest
	err := s.db.NewSelect().
		Model(&rows).
		Where("branch_id = ?", branchID).
		Where("status = ?", model.StatusIssued).
		Order("issued_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list issued requests: %w", err)
	}
	return rows, nil
}

func (s *BorrowStore) Mutate(ctx context.Context, id string, fn MutateFunc) (*model.BorrowRequest, error) {
	var out *model.BorrowRequest
	err := s.db.WithTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		req, err := mutateInTx(ctx, tx, id, fn)
		out = req
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ApplyReturn inserts ev first. The client_event_id primary key turns a
// replay, concurrent or not, into a no-op insert and nothing else runs.
func (s *BorrowStore) ApplyReturn(ctx context.Context, ev *model.ReturnEvent, fn MutateFunc) (bool, error) {
	applied := false
	err := s.db.WithTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewInsert().Model(ev).Ignore().Exec(ctx)
		if err != nil {
			return fmt.Errorf("insert return event: %w", err)
		}
		n, err := affected(res)
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		if _, err := mutateInTx(ctx, tx, ev.BorrowRequestID, fn); err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

func (s *BorrowStore) ReturnEvent(ctx context.Context, clientEventID string) (*model.ReturnEvent, error) {
	ev := new(model.ReturnEvent)
	err := s.db.NewSelect().Model(ev).Where("client_event_id = ?", clientEventID).Limit(1).Scan(ctx)
	if err != nil {
		return nil, notFound(err)
	}
	return ev, nil
}

func mutateInTx(ctx context.Context, tx bun.Tx, id string, fn MutateFunc) (*model.BorrowRequest, error) {
	req := new(model.BorrowRequest)
	q := lockForUpdate(tx.NewSelect().Model(req).Where("id = ?", id).Limit(1))
	if err := q.Scan(ctx); err != nil {
		return nil, notFound(err)
	}

	if err := fn(ctx, req, &txLedger{tx: tx}); err != nil {
		return nil, err
	}

	req.UpdatedAt = time.Now().UTC()
	if _, err := tx.NewUpdate().Model(req).WherePK().Exec(ctx); err != nil {
		return nil, fmt.Errorf("update borrow request: %w", err)
	}
	return req, nil
}

// reportScope is shared by the report listing and the purge so both always
// select the same rows.
func reportScope(f ReportFilter) func(bun.QueryBuilder) bun.QueryBuilder {
	return func(q bun.QueryBuilder) bun.QueryBuilder {
		q = q.Where("branch_id = ?", f.BranchID)
		if f.AdminID != "" {
			q = q.WhereGroup(" AND ", func(q bun.QueryBuilder) bun.QueryBuilder {
				return q.Where("approved_by = ?", f.AdminID).WhereOr("approved_by IS NULL")
			})
		}
		if f.From != nil {
			q = q.Where("created_at >= ?", f.From.UTC())
		}
		if f.To != nil {
			q = q.Where("created_at <= ?", f.To.UTC())
		}
		return q
	}
}

func (s *BorrowStore) ListForReport(ctx context.Context, f ReportFilter) ([]model.BorrowRequest, error) {
	var rows []model.BorrowRequest
	err := s.db.NewSelect().
		Model(&rows).
		ApplyQueryBuilder(reportScope(f)).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list report rows: %w", err)
	}
	return rows, nil
}

// DeleteForReport never removes ISSUED requests; their stock is still out.
func (s *BorrowStore) DeleteForReport(ctx context.Context, f ReportFilter) (int64, error) {
	res, err := s.db.NewDelete().
		Model((*model.BorrowRequest)(nil)).
		ApplyQueryBuilder(reportScope(f)).
		Where("status <> ?", model.StatusIssued).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("delete report rows: %w", err)
	}
	return affected(res)
}
