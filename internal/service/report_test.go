package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invencea-api/internal/model"
)

func today(t *testing.T) string {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Manila")
	require.NoError(t, err)
	return time.Now().In(loc).Format(time.DateOnly)
}

func TestReportRowsScopedToApprover(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	item := h.addItem(t, "Oscilloscope", 5)
	colleague := h.addUser(t, "admin2@aceis.test", model.RoleAdmin, model.BranchACEIS, "Second Admin")

	mine := h.newRequest(t, line(item.ID, 2))
	h.advance(t, mine.ID, model.StatusApproved)
	theirs := h.newRequest(t, line(item.ID, 1))
	_, err := h.borrow.Transition(ctx, colleague, theirs.ID, "APPROVED")
	require.NoError(t, err)
	pending := h.newRequest(t, line(item.ID, 1))

	rows, err := h.reports.Rows(ctx, h.admin, ReportRange{From: today(t), To: today(t)})
	require.NoError(t, err)

	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	assert.ElementsMatch(t, []string{mine.ID, pending.ID}, ids)

	for _, r := range rows {
		require.Len(t, r.Items, 1)
		assert.Equal(t, "Oscilloscope", r.Items[0].ItemName)
	}
}

func TestReportRangeValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.reports.Rows(ctx, h.admin, ReportRange{From: "31/01/2025"})
	requireCode(t, err, "BAD_REQUEST")

	_, err = h.reports.Rows(ctx, h.admin, ReportRange{From: "2025-02-01", To: "2025-01-01"})
	requireCode(t, err, "BAD_REQUEST")

	rows, err := h.reports.Rows(ctx, h.admin, ReportRange{From: "2001-01-01", To: "2001-01-31"})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestReportDeleteKeepsIssued(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	item := h.addItem(t, "Oscilloscope", 5)

	issued := h.newRequest(t, line(item.ID, 1))
	h.advance(t, issued.ID, model.StatusApproved, model.StatusIssued)
	denied := h.newRequest(t, line(item.ID, 1))
	h.advance(t, denied.ID, model.StatusDenied)
	h.newRequest(t, line(item.ID, 1))

	_, err := h.reports.Delete(ctx, h.admin, ReportRange{})
	requireCode(t, err, "BAD_REQUEST")

	n, err := h.reports.Delete(ctx, h.admin, ReportRange{From: today(t)})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	rows, err := h.reports.Rows(ctx, h.admin, ReportRange{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, issued.ID, rows[0].ID)
	assert.Equal(t, 1, h.stock(t, item.ID).BorrowedQuantity)
}

func TestReportExport(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	item := h.addItem(t, "Oscilloscope", 5)
	h.newRequest(t, line(item.ID, 1))

	xlsx, name, err := h.reports.Export(ctx, h.admin, ReportRange{From: today(t)}, "xlsx")
	require.NoError(t, err)
	assert.Equal(t, "PK", string(xlsx[:2]))
	assert.Contains(t, name, ".xlsx")

	pdf, name, err := h.reports.Export(ctx, h.admin, ReportRange{}, "pdf")
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(pdf[:4]))
	assert.Contains(t, name, ".pdf")

	_, _, err = h.reports.Export(ctx, h.admin, ReportRange{}, "csv")
	requireCode(t, err, "BAD_REQUEST")
}

func TestUnknownReportTimezone(t *testing.T) {
	_, err := NewReportService(nil, nil, "Mars/Olympus")
	assert.Error(t, err)
}

func TestDashboardAndAuditList(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	item := h.addItem(t, "Oscilloscope", 5)
	latest := h.addItem(t, "Logic Analyzer", 1)
	for i := 0; i < 7; i++ {
		h.newRequest(t, line(item.ID, 1))
	}

	d, err := NewDashboardService(h.audits, h.items, h.requests).Build(ctx, h.admin)
	require.NoError(t, err)
	assert.Equal(t, h.admin.ID, d.CurrentUser.ID)
	assert.Equal(t, 7, d.PendingBorrowCount)
	assert.Len(t, d.PendingBorrows, 6)
	assert.Len(t, d.Activities, 5)
	require.NotNil(t, d.LatestItem)
	assert.Equal(t, latest.ID, d.LatestItem.ID)

	logs, err := h.audit.List(ctx, h.admin, 3)
	require.NoError(t, err)
	assert.Len(t, logs, 3)

	logs, err = h.audit.List(ctx, h.admin, 0)
	require.NoError(t, err)
	assert.Len(t, logs, 9)
}
