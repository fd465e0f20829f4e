package handler

import (
	"net/http"

	"invencea-api/internal/service"
	"invencea-api/pkg/response"
)

// ReportHandler handles report HTTP requests.
type ReportHandler struct {
	reportService *service.ReportService
}

// NewReportHandler creates a new report handler.
func NewReportHandler(reportService *service.ReportService) *ReportHandler {
	return &ReportHandler{reportService: reportService}
}

func reportRange(r *http.Request) service.ReportRange {
	q := r.URL.Query()
	return service.ReportRange{From: q.Get("from"), To: q.Get("to")}
}

// List handles GET /api/reports?from=&to=
func (h *ReportHandler) List(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		response.Error(w, err)
		return
	}

	rows, err := h.reportService.Rows(r.Context(), p, reportRange(r))
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, rows)
}

// ExportExcel handles GET /api/reports/export/excel
func (h *ReportHandler) ExportExcel(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, "xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
}

// ExportPDF handles GET /api/reports/export/pdf
func (h *ReportHandler) ExportPDF(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, "pdf", "application/pdf")
}

func (h *ReportHandler) export(w http.ResponseWriter, r *http.Request, format, contentType string) {
	p, err := principal(r)
	if err != nil {
		response.Error(w, err)
		return
	}

	data, filename, err := h.reportService.Export(r.Context(), p, reportRange(r), format)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.Attachment(w, filename, contentType, data)
}

// Delete handles DELETE /api/reports?from=&to=
func (h *ReportHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		response.Error(w, err)
		return
	}

	n, err := h.reportService.Delete(r.Context(), p, reportRange(r))
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSONWithMessage(w, http.StatusOK, "Report rows deleted", map[string]int64{"deleted": n})
}
