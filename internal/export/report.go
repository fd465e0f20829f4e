package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"invencea-api/internal/model"
)

// ReportMeta describes a rendered report.
type ReportMeta struct {
	Branch      string
	From        string
	To          string
	GeneratedAt time.Time
	Location    *time.Location
}

var reportColumns = []string{
	"Borrower", "Borrower ID", "Items", "Status",
	"Requested At", "Approved At", "Issued At", "Returned At",
}

// ReportCells flattens rows into the cell text shared by every format.
func ReportCells(rows []model.ReportRow, loc *time.Location) [][]string {
	if loc == nil {
		loc = time.UTC
	}
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, []string{
			r.RequesterName,
			derefOr(r.RequesterID, "-"),
			itemsText(r.Items),
			string(r.Status),
			formatTime(&r.RequestedAt, loc),
			formatTime(r.ApprovedAt, loc),
			formatTime(r.IssuedAt, loc),
			formatTime(r.ReturnedAt, loc),
		})
	}
	return out
}

func itemsText(items []model.ReportItem) string {
	parts := make([]string, 0, len(items))
	for _, it := range items {
		parts = append(parts, fmt.Sprintf("%s (%d)", it.ItemName, it.Quantity))
	}
	return strings.Join(parts, ", ")
}

func formatTime(t *time.Time, loc *time.Location) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.In(loc).Format("2006-01-02 15:04")
}

func derefOr(s *string, def string) string {
	if s == nil || *s == "" {
		return def
	}
	return *s
}

func (m ReportMeta) title() string {
	period := "All dates"
	switch {
	case m.From != "" && m.To != "":
		period = m.From + " to " + m.To
	case m.From != "":
		period = "From " + m.From
	case m.To != "":
		period = "Until " + m.To
	}
	return fmt.Sprintf("%s Borrow Report (%s)", m.Branch, period)
}

// ReportExcel renders rows as a single-sheet workbook.
func ReportExcel(rows []model.ReportRow, meta ReportMeta) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Report"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	if err := f.SetCellValue(sheet, "A1", meta.title()); err != nil {
		return nil, err
	}
	header := make([]interface{}, len(reportColumns))
	for i, c := range reportColumns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheet, "A3", &header); err != nil {
		return nil, err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(sheet, "A1", "A1", bold); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(sheet, "A3", "H3", bold); err != nil {
		return nil, err
	}

	for i, cells := range ReportCells(rows, meta.Location) {
		row := make([]interface{}, len(cells))
		for j, c := range cells {
			row[j] = c
		}
		cell, err := excelize.CoordinatesToCellName(1, i+4)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, err
		}
	}

	widths := []float64{28, 16, 48, 12, 18, 18, 18, 18}
	for i, w := range widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetColWidth(sheet, col, col, w); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ReportPDF renders rows as a landscape table.
func ReportPDF(rows []model.ReportRow, meta ReportMeta) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetTitle(meta.title(), false)
	pdf.SetMargins(10, 12, 10)
	pdf.SetAutoPageBreak(true, 12)

	widths := []float64{40, 26, 72, 22, 29, 29, 29, 29}
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	header := func() {
		pdf.SetFont("Helvetica", "B", 8)
		pdf.SetFillColor(230, 230, 230)
		for i, c := range reportColumns {
			pdf.CellFormat(widths[i], 7, c, "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Helvetica", "", 8)
	}

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 8, tr(meta.title()), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	generated := meta.GeneratedAt
	if meta.Location != nil {
		generated = generated.In(meta.Location)
	}
	pdf.CellFormat(0, 6, "Generated "+generated.Format("2006-01-02 15:04"), "", 1, "L", false, 0, "")
	pdf.Ln(2)
	header()

	cells := ReportCells(rows, meta.Location)
	if len(cells) == 0 {
		pdf.CellFormat(0, 8, "No borrow requests in this period.", "1", 1, "C", false, 0, "")
	}

	_, pageH := pdf.GetPageSize()
	_, _, _, bottom := pdf.GetMargins()
	for _, row := range cells {
		// Items wrap, so the row height follows the tallest cell.
		lines := pdf.SplitLines([]byte(tr(row[2])), widths[2]-2)
		h := 6.0 * float64(max(len(lines), 1))
		if pdf.GetY()+h > pageH-bottom {
			pdf.AddPage()
			header()
		}

		x, y := pdf.GetXY()
		for i, c := range row {
			pdf.Rect(x, y, widths[i], h, "D")
			pdf.SetXY(x+1, y)
			if i == 2 {
				pdf.MultiCell(widths[i]-2, 6, tr(c), "", "L", false)
			} else {
				pdf.CellFormat(widths[i]-2, 6, tr(c), "", 0, "L", false, 0, "")
			}
			x += widths[i]
		}
		pdf.SetXY(10, y+h)
	}

	pdf.SetFont("Helvetica", "I", 8)
	pdf.Ln(2)
	pdf.CellFormat(0, 6, fmt.Sprintf("%d request(s)", len(rows)), "", 1, "R", false, 0, "")

	return output(pdf)
}

// Filename returns the attachment name of a report export.
func Filename(meta ReportMeta, ext string) string {
	stamp := meta.GeneratedAt.Format("20060102-150405")
	return fmt.Sprintf("borrow-report-%s-%s.%s", strings.ToLower(meta.Branch), stamp, ext)
}
