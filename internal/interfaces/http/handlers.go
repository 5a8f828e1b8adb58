package http

import (
	"bytes"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/garyjia/invoice-desk/internal/archive"
	"github.com/garyjia/invoice-desk/internal/builder"
	"github.com/garyjia/invoice-desk/internal/domain/entity"
	"github.com/garyjia/invoice-desk/internal/export"
	"github.com/garyjia/invoice-desk/internal/gate"
	"github.com/garyjia/invoice-desk/internal/kvstore"
	"github.com/garyjia/invoice-desk/internal/render"
)

// Notice levels
const (
	NoticeSuccess = "success"
	NoticeWarning = "warning"
	NoticeError   = "error"
)

// Handlers contains all HTTP request handlers. mu guards the draft held by
// the builder; every handler touching it holds mu for the whole operation.
type Handlers struct {
	mu       sync.Mutex
	gate     *gate.Gate
	builder  *builder.Builder
	archive  *archive.Store
	renderer *render.Renderer
	capturer *render.Capturer
	printer  *render.PDFPrinter
	exporter *export.Exporter
	sessions *kvstore.Sessions
	logger   *zap.Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(deps Dependencies, logger *zap.Logger) *Handlers {
	return &Handlers{
		gate:     deps.Gate,
		builder:  deps.Builder,
		archive:  deps.Archive,
		renderer: deps.Renderer,
		capturer: deps.Capturer,
		printer:  deps.Printer,
		exporter: deps.Exporter,
		sessions: deps.Sessions,
		logger:   logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Notices []Notice    `json:"notices,omitempty"`
}

// Notice is a short message meant to be shown to the user
type Notice struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// UnlockRequest is the body of POST /session/unlock
type UnlockRequest struct {
	Code string `json:"code"`
}

// DraftResponse is the editable invoice with its derived figures
type DraftResponse struct {
	Record     entity.InvoiceRecord `json:"record"`
	Totals     entity.Totals        `json:"totals"`
	Valid      bool                 `json:"valid"`
	Violations builder.Violations   `json:"violations"`
}

// UpdateDraftRequest replaces the draft's editable fields. Items is optional;
// when omitted the current rows are kept.
type UpdateDraftRequest struct {
	builder.Header
	DiscountType  entity.DiscountType `json:"discountType"`
	DiscountValue float64             `json:"discountValue"`
	Items         []entity.LineItem   `json:"items"`
}

// ItemResponse is returned by item mutations
type ItemResponse struct {
	Item  entity.LineItem `json:"item"`
	Draft DraftResponse   `json:"draft"`
}

// ExportResponse describes an exported invoice image
type ExportResponse struct {
	FileName    string               `json:"fileName"`
	Path        string               `json:"path,omitempty"`
	ContentType string               `json:"contentType"`
	Content     []byte               `json:"content"`
	Invoice     entity.InvoiceRecord `json:"invoice"`
	Saved       bool                 `json:"saved"`
	Draft       DraftResponse        `json:"draft"`
}

// InvoicesResponse is the saved-invoices listing
type InvoicesResponse struct {
	Invoices []entity.InvoiceSummary `json:"invoices"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   "1.0.0",
		},
	})
}

// GetSession handles GET /api/v1/session
func (h *Handlers) GetSession(c *gin.Context) {
	status, err := h.gate.Status(sessionStore(c))
	if err != nil {
		h.logger.Error("Failed to read access state", zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{
			Success: false,
			Error:   "failed to read access state",
		})
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: status})
}

// Unlock handles POST /api/v1/session/unlock
func (h *Handlers) Unlock(c *gin.Context) {
	var req UnlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	select {
	case outcome := <-h.gate.SubmitAsync(sessionStore(c), req.Code):
		if outcome.Err != nil {
			h.logger.Error("Access check failed", zap.Error(outcome.Err))
			c.JSON(http.StatusInternalServerError, Response{
				Success: false,
				Error:   "failed to verify access code",
				Notices: []Notice{{Level: NoticeError, Message: "Could not store access state"}},
			})
			return
		}

		result := outcome.Result
		switch result.Outcome {
		case entity.AccessUnlocked:
			c.JSON(http.StatusOK, Response{
				Success: true,
				Data:    result,
				Notices: []Notice{{Level: NoticeSuccess, Message: result.Message}},
			})
		case entity.AccessLockedOut:
			c.JSON(http.StatusLocked, Response{
				Success: false,
				Data:    result,
				Error:   result.Message,
			})
		default:
			c.JSON(http.StatusUnauthorized, Response{
				Success: false,
				Data:    result,
				Error:   result.Message,
			})
		}
	case <-c.Request.Context().Done():
		h.logger.Debug("Unlock request abandoned before verification completed")
	}
}

// EndSession handles DELETE /api/v1/session
func (h *Handlers) EndSession(c *gin.Context) {
	h.sessions.End(c.GetString(sessionIDKey))
	c.SetCookie(SessionCookie, "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, Response{Success: true})
}

// GetDraft handles GET /api/v1/draft
func (h *Handlers) GetDraft(c *gin.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c.JSON(http.StatusOK, Response{Success: true, Data: h.draft()})
}

// UpdateDraft handles PUT /api/v1/draft
func (h *Handlers) UpdateDraft(c *gin.Context) {
	var req UpdateDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}
	if req.DiscountType == "" {
		req.DiscountType = entity.DiscountNone
	}
	if !req.DiscountType.Valid() {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: builder.ErrUnknownDiscountType.Error()})
		return
	}
	if req.Items != nil && len(req.Items) == 0 {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: builder.ErrLastItem.Error()})
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.builder.UpdateHeader(req.Header); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
		return
	}
	if err := h.builder.SetDiscountType(req.DiscountType); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
		return
	}
	h.builder.SetDiscountValue(req.DiscountValue)
	if req.Items != nil {
		if err := h.builder.ReplaceItems(req.Items); err != nil {
			c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
			return
		}
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: h.draft()})
}

// ResetDraft handles POST /api/v1/draft/reset
func (h *Handlers) ResetDraft(c *gin.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var notices []Notice
	if err := h.builder.Reset(); err != nil {
		notices = append(notices, h.readNotice(err))
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: h.draft(), Notices: notices})
}

// AddItem handles POST /api/v1/draft/items
func (h *Handlers) AddItem(c *gin.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()

	item := h.builder.AddItem()
	c.JSON(http.StatusCreated, Response{
		Success: true,
		Data:    ItemResponse{Item: item, Draft: h.draft()},
	})
}

// UpdateItem handles PUT /api/v1/draft/items/:id
func (h *Handlers) UpdateItem(c *gin.Context) {
	var item entity.LineItem
	if err := c.ShouldBindJSON(&item); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}
	item.ID = c.Param("id")

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.builder.UpdateItem(item); err != nil {
		c.JSON(statusFor(err), Response{Success: false, Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    ItemResponse{Item: item, Draft: h.draft()},
	})
}

// RemoveItem handles DELETE /api/v1/draft/items/:id
func (h *Handlers) RemoveItem(c *gin.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.builder.RemoveItem(c.Param("id")); err != nil {
		c.JSON(statusFor(err), Response{Success: false, Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: h.draft()})
}

// PreviewImage handles GET /api/v1/draft/preview.png
func (h *Handlers) PreviewImage(c *gin.Context) {
	h.mu.Lock()
	view := h.renderer.Render(h.builder.Record(), h.builder.Totals())
	h.mu.Unlock()

	content, err := h.capturer.Capture(view)
	if err != nil {
		h.logger.Error("Failed to render preview", zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "failed to render preview"})
		return
	}
	c.Data(http.StatusOK, "image/png", content)
}

// PrintPDF handles GET /api/v1/draft/print.pdf
func (h *Handlers) PrintPDF(c *gin.Context) {
	h.mu.Lock()
	record := h.builder.Record()
	view := h.renderer.Render(record, h.builder.Totals())
	h.mu.Unlock()

	content, err := h.printer.Print(view)
	if err != nil {
		h.logger.Error("Failed to print invoice", zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "failed to print invoice"})
		return
	}
	c.Header("Content-Disposition", `inline; filename="`+record.InvoiceNumber+`.pdf"`)
	c.Data(http.StatusOK, "application/pdf", content)
}

// SaveDraft handles POST /api/v1/draft/save
func (h *Handlers) SaveDraft(c *gin.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if v := h.builder.Violations(); !v.Empty() {
		c.JSON(http.StatusUnprocessableEntity, Response{
			Success: false,
			Data:    h.draft(),
			Error:   builder.ErrInvalidRecord.Error(),
		})
		return
	}

	saved, err := h.builder.Save()
	if err != nil {
		c.JSON(http.StatusInternalServerError, Response{
			Success: false,
			Error:   "failed to save invoice",
			Notices: []Notice{h.writeNotice(err)},
		})
		return
	}
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    gin.H{"invoice": saved, "draft": h.draft()},
		Notices: []Notice{{Level: NoticeSuccess, Message: "Invoice saved"}},
	})
}

// ExportDraft handles POST /api/v1/draft/export. The draft stays locked until
// the export resolves, even if the caller gives up waiting.
func (h *Handlers) ExportDraft(c *gin.Context) {
	h.mu.Lock()

	if v := h.builder.Violations(); !v.Empty() {
		defer h.mu.Unlock()
		c.JSON(http.StatusUnprocessableEntity, Response{
			Success: false,
			Data:    h.draft(),
			Error:   export.ErrNotReady.Error(),
		})
		return
	}

	results := h.exporter.ExportAsync(h.builder)
	select {
	case res := <-results:
		defer h.mu.Unlock()
		h.respondExport(c, res)
	case <-c.Request.Context().Done():
		go func() {
			<-results
			h.mu.Unlock()
		}()
		h.logger.Warn("Export request abandoned before completion")
	}
}

func (h *Handlers) respondExport(c *gin.Context, res export.Result) {
	artifact := res.Artifact
	switch {
	case res.Err == nil:
		c.JSON(http.StatusOK, Response{
			Success: true,
			Data:    h.exportResponse(artifact, true),
			Notices: []Notice{{Level: NoticeSuccess, Message: "Invoice downloaded and saved"}},
		})
	case errors.Is(res.Err, export.ErrSaveFailed):
		c.JSON(http.StatusOK, Response{
			Success: true,
			Data:    h.exportResponse(artifact, false),
			Error:   res.Err.Error(),
			Notices: []Notice{h.writeNotice(res.Err)},
		})
	case errors.Is(res.Err, export.ErrNotReady):
		c.JSON(http.StatusUnprocessableEntity, Response{
			Success: false,
			Data:    h.draft(),
			Error:   res.Err.Error(),
		})
	default:
		c.JSON(http.StatusInternalServerError, Response{
			Success: false,
			Error:   res.Err.Error(),
			Notices: []Notice{{Level: NoticeError, Message: "Failed to generate invoice image"}},
		})
	}
}

func (h *Handlers) exportResponse(artifact export.Artifact, saved bool) ExportResponse {
	return ExportResponse{
		FileName:    artifact.FileName,
		Path:        artifact.Path,
		ContentType: artifact.ContentType,
		Content:     artifact.Content,
		Invoice:     artifact.Invoice,
		Saved:       saved,
		Draft:       h.draft(),
	}
}

// ListInvoices handles GET /api/v1/invoices
func (h *Handlers) ListInvoices(c *gin.Context) {
	records, err := h.archive.List()
	if err != nil && !errors.Is(err, archive.ErrCorrupted) {
		c.JSON(http.StatusInternalServerError, Response{
			Success: false,
			Error:   "failed to read saved invoices",
			Notices: []Notice{h.readNotice(err)},
		})
		return
	}

	var notices []Notice
	if err != nil {
		notices = append(notices, h.readNotice(err))
	}
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    InvoicesResponse{Invoices: builder.Summarize(records)},
		Notices: notices,
	})
}

// LoadInvoice handles POST /api/v1/invoices/:number/load
func (h *Handlers) LoadInvoice(c *gin.Context) {
	number := c.Param("number")

	record, ok, err := h.archive.Find(number)
	if err != nil {
		c.JSON(http.StatusInternalServerError, Response{
			Success: false,
			Error:   "failed to read saved invoices",
			Notices: []Notice{h.readNotice(err)},
		})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, Response{Success: false, Error: "invoice not found"})
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.builder.Load(record)
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    h.draft(),
		Notices: []Notice{{Level: NoticeSuccess, Message: "Invoice " + number + " loaded"}},
	})
}

// DeleteInvoice handles DELETE /api/v1/invoices/:number
func (h *Handlers) DeleteInvoice(c *gin.Context) {
	removed, err := h.archive.Remove(c.Param("number"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, Response{
			Success: false,
			Error:   "failed to delete invoice",
			Notices: []Notice{h.writeNotice(err)},
		})
		return
	}
	if removed == 0 {
		c.JSON(http.StatusNotFound, Response{Success: false, Error: "invoice not found"})
		return
	}
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    gin.H{"removed": removed},
		Notices: []Notice{{Level: NoticeSuccess, Message: "Invoice deleted"}},
	})
}

// ClearInvoices handles DELETE /api/v1/invoices
func (h *Handlers) ClearInvoices(c *gin.Context) {
	if err := h.archive.Clear(); err != nil {
		c.JSON(http.StatusInternalServerError, Response{
			Success: false,
			Error:   "failed to delete invoices",
			Notices: []Notice{h.writeNotice(err)},
		})
		return
	}
	c.JSON(http.StatusOK, Response{
		Success: true,
		Notices: []Notice{{Level: NoticeSuccess, Message: "All invoices deleted"}},
	})
}

// DownloadWorkbook handles GET /api/v1/invoices/export.xlsx
func (h *Handlers) DownloadWorkbook(c *gin.Context) {
	records, err := h.archive.List()
	if err != nil && !errors.Is(err, archive.ErrCorrupted) {
		c.JSON(http.StatusInternalServerError, Response{
			Success: false,
			Error:   "failed to read saved invoices",
			Notices: []Notice{h.readNotice(err)},
		})
		return
	}

	var buf bytes.Buffer
	if err := export.WriteWorkbook(&buf, records, h.logger); err != nil {
		h.logger.Error("Failed to build workbook", zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "failed to build workbook"})
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+export.WorkbookFileName+`"`)
	c.Data(http.StatusOK, export.WorkbookContentType, buf.Bytes())
}

// draft must be called with mu held
func (h *Handlers) draft() DraftResponse {
	v := h.builder.Violations()
	return DraftResponse{
		Record:     h.builder.Record(),
		Totals:     h.builder.Totals(),
		Valid:      v.Empty(),
		Violations: v,
	}
}

func (h *Handlers) readNotice(err error) Notice {
	if errors.Is(err, archive.ErrCorrupted) {
		h.logger.Warn("Saved invoices could not be read", zap.Error(err))
		return Notice{Level: NoticeWarning, Message: "Saved invoices are unreadable and were ignored"}
	}
	h.logger.Error("Failed to read saved invoices", zap.Error(err))
	return Notice{Level: NoticeError, Message: "Failed to read saved invoices"}
}

func (h *Handlers) writeNotice(err error) Notice {
	h.logger.Error("Failed to write saved invoices", zap.Error(err))
	if errors.Is(err, archive.ErrCorrupted) {
		return Notice{Level: NoticeError, Message: "Saved invoices are unreadable; clear them before saving"}
	}
	return Notice{Level: NoticeError, Message: "Failed to save invoice"}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, builder.ErrItemNotFound):
		return http.StatusNotFound
	case errors.Is(err, builder.ErrLastItem):
		return http.StatusConflict
	case errors.Is(err, builder.ErrInvalidDate), errors.Is(err, builder.ErrUnknownDiscountType):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
