package api

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"receiptbook/internal"
	"receiptbook/internal/document"
	"receiptbook/internal/logger"
	"receiptbook/internal/pipeline"
)

const maxUploadBytes = 20 << 20

type Handler struct {
	svc Service
	log zerolog.Logger
}

type AppendRequest struct {
	Item          string                   `json:"item"`
	Cost          string                   `json:"cost"`
	Date          string                   `json:"date"`
	Source        string                   `json:"source"`
	ReceiptNumber string                   `json:"receipt_number" binding:"required"`
	PaymentType   string                   `json:"payment_type"`
	Category      string                   `json:"category"`
	Notes         string                   `json:"notes"`
	Sender        *internal.SenderIdentity `json:"sender"`
	MessageID     string                   `json:"message_id"`
}

func fail(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

func ok(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

// Extract handles POST /api/extract with a multipart "file" field.
func (h *Handler) Extract(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		fail(c, http.StatusBadRequest, "INVALID_REQUEST", "multipart field \"file\" is required")
		return
	}
	if header.Size > maxUploadBytes {
		fail(c, http.StatusRequestEntityTooLarge, "TOO_LARGE", "file exceeds upload limit")
		return
	}

	f, err := header.Open()
	if err != nil {
		fail(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	defer f.Close()
	content, err := io.ReadAll(io.LimitReader(f, maxUploadBytes))
	if err != nil {
		fail(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	doc := internal.Document{
		Name:        header.Filename,
		Ext:         document.NormalizeExt(filepath.Ext(header.Filename)),
		ContentType: header.Header.Get("Content-Type"),
		Content:     content,
	}
	rec, err := h.svc.Extract(c.Request.Context(), doc)
	if err != nil {
		fail(c, http.StatusUnprocessableEntity, "EXTRACTION_FAILED", err.Error())
		return
	}
	ok(c, http.StatusOK, rec)
}

// Append handles POST /api/ledger.
func (h *Handler) Append(c *gin.Context) {
	var req AppendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	rec := internal.Record{
		Item:          req.Item,
		Cost:          req.Cost,
		Date:          req.Date,
		Source:        req.Source,
		ReceiptNumber: strings.TrimSpace(req.ReceiptNumber),
		Notes:         req.Notes,
		Sender:        req.Sender,
	}
	if req.Category != "" {
		category, known := pipeline.ParseCategory(req.Category)
		if !known {
			fail(c, http.StatusBadRequest, "INVALID_CATEGORY", "unknown category: "+req.Category)
			return
		}
		rec.Category = category
	}
	if req.PaymentType != "" {
		payment, known := pipeline.ParsePaymentType(req.PaymentType)
		if !known {
			fail(c, http.StatusBadRequest, "INVALID_PAYMENT_TYPE", "unknown payment type: "+req.PaymentType)
			return
		}
		rec.PaymentType = payment
	}

	result, err := h.svc.Append(c.Request.Context(), rec, req.MessageID)
	if errors.Is(err, pipeline.ErrInvalidRecord) {
		fail(c, http.StatusBadRequest, "INVALID_RECORD", err.Error())
		return
	}
	if err != nil {
		h.requestLog(c).Error().Err(err).Msg("api.ledger.error")
		fail(c, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	switch result.Status {
	case internal.AppendSuccess:
		ok(c, http.StatusCreated, result)
	case internal.AppendDuplicate:
		c.JSON(http.StatusConflict, gin.H{"success": false, "data": result})
	default:
		c.JSON(http.StatusBadGateway, gin.H{"success": false, "data": result})
	}
}

// EnsureHeader handles POST /api/ledger/header.
func (h *Handler) EnsureHeader(c *gin.Context) {
	if err := h.svc.EnsureHeader(c.Request.Context()); err != nil {
		h.requestLog(c).Warn().Err(err).Msg("api.ledger.header_failed")
		fail(c, http.StatusBadGateway, "LEDGER_UNAVAILABLE", err.Error())
		return
	}
	ok(c, http.StatusOK, gin.H{"header": "ok"})
}

// CheckDuplicate handles GET /api/ledger/receipts/:number.
func (h *Handler) CheckDuplicate(c *gin.Context) {
	number := c.Param("number")
	dup, err := h.svc.CheckDuplicate(c.Request.Context(), number)
	if err != nil {
		fail(c, http.StatusBadGateway, "LEDGER_UNAVAILABLE", err.Error())
		return
	}
	ok(c, http.StatusOK, gin.H{"receipt_number": number, "exists": dup})
}

func (h *Handler) ListUnread(c *gin.Context) {
	msgs, err := h.svc.ListUnread(c.Request.Context())
	if err != nil {
		h.mailError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"messages": msgs, "total": len(msgs)})
}

func (h *Handler) MarkRead(c *gin.Context) {
	id := c.Param("id")
	done, err := h.svc.MarkRead(c.Request.Context(), id)
	if err != nil {
		h.mailError(c, err)
		return
	}
	if !done {
		fail(c, http.StatusBadGateway, "MAIL_UNAVAILABLE", "could not mark message "+id+" read")
		return
	}
	ok(c, http.StatusOK, gin.H{"message_id": id, "read": true})
}

func (h *Handler) ProcessMail(c *gin.Context) {
	summary, err := h.svc.ProcessMail(c.Request.Context())
	if err != nil {
		h.mailError(c, err)
		return
	}
	ok(c, http.StatusOK, summary)
}

// requestLog returns the request-scoped logger set by requestLogger.
func (h *Handler) requestLog(c *gin.Context) *zerolog.Logger {
	log := logger.FromContext(c.Request.Context(), h.log).With().Str("component", "api").Logger()
	return &log
}

func (h *Handler) mailError(c *gin.Context, err error) {
	if errors.Is(err, pipeline.ErrNoMailbox) {
		fail(c, http.StatusServiceUnavailable, "MAIL_DISABLED", err.Error())
		return
	}
	h.requestLog(c).Error().Err(err).Msg("api.mail.error")
	fail(c, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
}
