package handler

import (
	"net/http"

	"invencea-api/internal/service"
	"invencea-api/pkg/response"
)

// DashboardHandler serves the admin landing data and the audit trail.
type DashboardHandler struct {
	dashboardService *service.DashboardService
	auditService     *service.AuditService
}

// NewDashboardHandler creates a new dashboard handler.
func NewDashboardHandler(dashboardService *service.DashboardService, auditService *service.AuditService) *DashboardHandler {
	return &DashboardHandler{
		dashboardService: dashboardService,
		auditService:     auditService,
	}
}

// Dashboard handles GET /api/dashboard
func (h *DashboardHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		response.Error(w, err)
		return
	}

	d, err := h.dashboardService.Build(r.Context(), p)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, d)
}

// AuditLogs handles GET /api/audit-logs?limit=
func (h *DashboardHandler) AuditLogs(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		response.Error(w, err)
		return
	}

	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		response.Error(w, err)
		return
	}

	logs, err := h.auditService.List(r.Context(), p, limit)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, logs)
}
