package api

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"receiptbook/internal"
	"receiptbook/internal/logger"
	"receiptbook/internal/pipeline"
)

// Service is what the HTTP layer needs from the processing pipeline.
type Service interface {
	Extract(ctx context.Context, doc internal.Document) (*internal.Record, error)
	Append(ctx context.Context, rec internal.Record, messageID string) (internal.AppendResult, error)
	CheckDuplicate(ctx context.Context, receiptNumber string) (bool, error)
	EnsureHeader(ctx context.Context) error
	ListUnread(ctx context.Context) ([]internal.MailMessage, error)
	MarkRead(ctx context.Context, id string) (bool, error)
	ProcessMail(ctx context.Context) (pipeline.MailSummary, error)
}

// SetupRouter builds the gin engine serving the collaborator API.
func SetupRouter(svc Service, log zerolog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(log))

	h := &Handler{svc: svc, log: log}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	{
		api.POST("/extract", h.Extract)

		ledger := api.Group("/ledger")
		{
			ledger.POST("", h.Append)
			ledger.POST("/header", h.EnsureHeader)
			ledger.GET("/receipts/:number", h.CheckDuplicate)
		}

		mail := api.Group("/mail")
		{
			mail.GET("/unread", h.ListUnread)
			mail.POST("/process", h.ProcessMail)
			mail.POST("/:id/read", h.MarkRead)
		}
	}

	return router
}

// requestLogger tags each request with an id and stores the tagged logger in
// the request context, where handlers and the pipeline pick it up.
func requestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header("X-Request-ID", requestID)
		reqLog := log.With().Str("request_id", requestID).Logger()
		c.Request = c.Request.WithContext(logger.WithContext(c.Request.Context(), reqLog))

		c.Next()
		reqLog.Info().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Int64("elapsed_ms", time.Since(start).Milliseconds()).
			Msg("http.request")
	}
}
