package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mobilehr/bpm-bridge/internal/lifecycle"
	"github.com/mobilehr/bpm-bridge/internal/models"
	"github.com/mobilehr/bpm-bridge/internal/repository"
	"github.com/mobilehr/bpm-bridge/internal/sync"
)

// SyncService is the pull path the handlers expose.
type SyncService interface {
	PullForm(ctx context.Context, processSerialNo, formCode string) (sync.PullOutcome, error)
	PullWorkItems(ctx context.Context, uid string) ([]sync.WorkItemResult, error)
}

// LifecycleService drives the remote-mutating operations.
type LifecycleService interface {
	Submit(ctx context.Context, req lifecycle.SubmitRequest) lifecycle.Outcome
	Withdraw(ctx context.Context, uid, formID, comment string) lifecycle.Outcome
	CancelLeave(ctx context.Context, uid, originalFormID, reason string) lifecycle.Outcome
}

// Exporter renders the mirror into a spreadsheet.
type Exporter interface {
	ExportForms(filter repository.ListFilter) ([]byte, error)
	ExportDriftReport() ([]byte, error)
}

// response is the uniform envelope: 200 success, 203 business rejection,
// 500 timeout or unexpected error.
type response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Handlers holds the HTTP handlers and their collaborators.
type Handlers struct {
	store     *repository.Store
	syncSvc   SyncService
	lifecycle LifecycleService
	exporter  Exporter
	logger    *zap.Logger
}

// NewHandlers creates the handler set.
func NewHandlers(store *repository.Store, syncSvc SyncService, lifecycleSvc LifecycleService,
	exporter Exporter, logger *zap.Logger) *Handlers {
	return &Handlers{
		store:     store,
		syncSvc:   syncSvc,
		lifecycle: lifecycleSvc,
		exporter:  exporter,
		logger:    logger,
	}
}

func ok(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, response{Code: lifecycle.CodeOK, Message: message, Data: data})
}

func rejected(c *gin.Context, message string) {
	c.JSON(http.StatusOK, response{Code: lifecycle.CodeRejected, Message: message})
}

func failed(c *gin.Context, message string) {
	c.JSON(http.StatusOK, response{Code: lifecycle.CodeError, Message: message})
}

func outcome(c *gin.Context, out lifecycle.Outcome) {
	c.JSON(http.StatusOK, response{Code: out.Code, Message: out.Message, Data: out})
}

// HealthCheck reports liveness.
func (h *Handlers) HealthCheck(c *gin.Context) {
	ok(c, "ok", nil)
}

type submitRequest struct {
	UserID         string            `json:"user_id" binding:"required"`
	CompanyID      string            `json:"company_id"`
	FormType       string            `json:"form_type" binding:"required"`
	Subject        string            `json:"subject"`
	Fields         map[string]string `json:"fields"`
	HasAttachments bool              `json:"has_attachments"`
}

// SubmitForm starts a new process on the BPM side.
func (h *Handlers) SubmitForm(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		rejected(c, "invalid request: "+err.Error())
		return
	}

	out := h.lifecycle.Submit(c.Request.Context(), lifecycle.SubmitRequest{
		UserID:         req.UserID,
		CompanyID:      req.CompanyID,
		FormType:       models.FormType(req.FormType),
		Subject:        req.Subject,
		Fields:         req.Fields,
		HasAttachments: req.HasAttachments,
	})
	outcome(c, out)
}

type syncRequest struct {
	ProcessSerialNo string `json:"process_serial_no" binding:"required"`
	FormCode        string `json:"form_code" binding:"required"`
}

// SyncForm pulls one remote process into the mirror on demand.
func (h *Handlers) SyncForm(c *gin.Context) {
	var req syncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		rejected(c, "invalid request: "+err.Error())
		return
	}

	result, err := h.syncSvc.PullForm(c.Request.Context(), req.ProcessSerialNo, req.FormCode)
	if err != nil {
		failed(c, err.Error())
		return
	}
	if result == sync.OutcomeNotFound {
		rejected(c, "process not found on BPM")
		return
	}
	ok(c, "form synchronized", gin.H{"form_id": req.ProcessSerialNo})
}

type withdrawRequest struct {
	UserID  string `json:"user_id" binding:"required"`
	Comment string `json:"comment"`
}

// WithdrawForm aborts a running process and updates the mirror.
func (h *Handlers) WithdrawForm(c *gin.Context) {
	var req withdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		rejected(c, "invalid request: "+err.Error())
		return
	}

	out := h.lifecycle.Withdraw(c.Request.Context(), req.UserID, c.Param("id"), req.Comment)
	outcome(c, out)
}

type cancelLeaveRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Reason string `json:"reason"`
}

// CancelLeave submits a cancellation for an approved leave form.
func (h *Handlers) CancelLeave(c *gin.Context) {
	var req cancelLeaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		rejected(c, "invalid request: "+err.Error())
		return
	}

	out := h.lifecycle.CancelLeave(c.Request.Context(), req.UserID, c.Param("id"), req.Reason)
	outcome(c, out)
}

// GetForm reads one mirrored form with its detail record.
func (h *Handlers) GetForm(c *gin.Context) {
	formID := c.Param("id")
	form, err := h.store.GetForm(formID)
	if err != nil {
		failed(c, err.Error())
		return
	}
	if form == nil {
		rejected(c, "form not found")
		return
	}

	detail, err := h.store.Forms.GetSubForm(form)
	if err != nil {
		failed(c, err.Error())
		return
	}
	ok(c, "ok", gin.H{"form": form, "detail": detail})
}

// ListForms reads mirrored form headers with optional filters.
func (h *Handlers) ListForms(c *gin.Context) {
	filter := repository.ListFilter{
		ApplicantID: c.Query("applicant_id"),
		CompanyID:   c.Query("company_id"),
		FormType:    models.FormType(c.Query("form_type")),
		Status:      c.Query("status"),
	}
	if v := c.Query("cancelled"); v != "" {
		cancelled := v == "true" || v == "1"
		filter.Cancelled = &cancelled
	}

	forms, err := h.store.Forms.List(filter)
	if err != nil {
		failed(c, err.Error())
		return
	}
	ok(c, "ok", forms)
}

// GetHistory reads a form's approval history.
func (h *Handlers) GetHistory(c *gin.Context) {
	entries, err := h.store.History.GetByFormID(c.Param("id"))
	if err != nil {
		failed(c, err.Error())
		return
	}
	ok(c, "ok", entries)
}

// GetSyncLogs reads a form's synchronization trail.
func (h *Handlers) GetSyncLogs(c *gin.Context) {
	logs, err := h.store.SyncLogs.ListByFormID(c.Param("id"))
	if err != nil {
		failed(c, err.Error())
		return
	}
	ok(c, "ok", logs)
}

// GetWorkItems refreshes and returns the user's pending work items.
func (h *Handlers) GetWorkItems(c *gin.Context) {
	results, err := h.syncSvc.PullWorkItems(c.Request.Context(), c.Param("uid"))
	if err != nil {
		failed(c, err.Error())
		return
	}
	ok(c, "ok", results)
}

// RefreshWorkItems is the manual reconcile entry point: same fan-out pull as
// GetWorkItems, kept as a separate POST so clients can trigger it explicitly.
func (h *Handlers) RefreshWorkItems(c *gin.Context) {
	results, err := h.syncSvc.PullWorkItems(c.Request.Context(), c.Param("uid"))
	if err != nil {
		failed(c, err.Error())
		return
	}
	ok(c, "mirror refreshed", results)
}

// ExportForms streams the mirror as an Excel workbook.
func (h *Handlers) ExportForms(c *gin.Context) {
	filter := repository.ListFilter{
		ApplicantID: c.Query("applicant_id"),
		CompanyID:   c.Query("company_id"),
		FormType:    models.FormType(c.Query("form_type")),
		Status:      c.Query("status"),
	}

	data, err := h.exporter.ExportForms(filter)
	if err != nil {
		failed(c, err.Error())
		return
	}

	c.Header("Content-Disposition", `attachment; filename="forms.xlsx"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

// ExportDriftReport streams the forms whose latest sync attempt failed.
func (h *Handlers) ExportDriftReport(c *gin.Context) {
	data, err := h.exporter.ExportDriftReport()
	if err != nil {
		failed(c, err.Error())
		return
	}

	c.Header("Content-Disposition", `attachment; filename="drift.xlsx"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}
