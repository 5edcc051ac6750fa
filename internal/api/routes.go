package api

import (
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"textcleaner_go_backend/internal/auth"
	apperrors "textcleaner_go_backend/internal/errors"
	"textcleaner_go_backend/internal/models"
	"textcleaner_go_backend/internal/services"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(
	r *gin.Engine,
	registry *services.SessionRegistry,
	ingestionService *services.IngestionService,
	paymentService *services.PaymentService,
	fileFetcher services.FileFetcher,
	jwtSecret string,
	maxFileSize int64,
) {
	authMW := auth.AuthMiddleware(registry, jwtSecret)

	api := r.Group("/api")
	{
		api.POST("/submit/text", authMW, submitTextHandler(ingestionService))
		api.POST("/submit/file", authMW, submitFileHandler(ingestionService, maxFileSize))
		api.POST("/submit/remote", authMW, submitRemoteHandler(ingestionService, fileFetcher, maxFileSize))
		api.PUT("/session/language", authMW, setLanguageHandler(registry))
		api.GET("/transaction", authMW, getTransactionHandler(registry))
		api.POST("/transaction/cancel", authMW, cancelTransactionHandler(paymentService))
		api.POST("/pay", authMW, payHandler(paymentService))
		api.POST("/donate", authMW, donateHandler(paymentService))
		// The payment gateway authenticates itself with a signature header,
		// not a session token.
		api.POST("/payments/webhook", paymentWebhookHandler(paymentService))
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

func contextSession(c *gin.Context) (models.Session, bool) {
	v, exists := c.Get("session")
	if !exists {
		return models.Session{}, false
	}
	session, ok := v.(models.Session)
	return session, ok
}

// respondOutcome maps a submission outcome onto an HTTP response. Failures
// carry the status of their error type; queued acknowledgements are 202
// because the real result arrives over the websocket.
func respondOutcome(c *gin.Context, outcome models.Outcome) {
	status := http.StatusOK
	switch outcome.Kind {
	case models.OutcomeQueued:
		status = http.StatusAccepted
	case models.OutcomeFailure:
		status = statusForErrorType(outcome.ErrorType)
	}
	c.JSON(status, outcome)
}

func statusForErrorType(errorType string) int {
	switch apperrors.ErrorType(errorType) {
	case apperrors.ErrorTypeUnsupportedFormat:
		return http.StatusBadRequest
	case apperrors.ErrorTypeExtractionFailed:
		return http.StatusUnprocessableEntity
	case apperrors.ErrorTypeDownloadFailed:
		return http.StatusBadGateway
	case apperrors.ErrorTypeFileTooLarge:
		return http.StatusRequestEntityTooLarge
	case apperrors.ErrorTypeNoPendingTransaction:
		return http.StatusConflict
	case apperrors.ErrorTypePaymentRejected:
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}

func submitTextHandler(ingestionService *services.IngestionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var request struct {
			Text string `json:"text" binding:"required"`
		}
		if err := c.ShouldBindJSON(&request); err != nil {
			apperrors.HandleError(c, apperrors.New400Error("text is required"))
			return
		}

		session, ok := contextSession(c)
		if !ok {
			apperrors.HandleError(c, apperrors.New401Error())
			return
		}

		respondOutcome(c, ingestionService.SubmitText(session.ID, request.Text))
	}
}

func submitFileHandler(ingestionService *services.IngestionService, maxFileSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, ok := contextSession(c)
		if !ok {
			apperrors.HandleError(c, apperrors.New401Error())
			return
		}

		fileHeader, err := c.FormFile("file")
		if err != nil {
			apperrors.HandleError(c, apperrors.New400Error("a file field is required"))
			return
		}

		// Reject before spooling anything to disk.
		if fileHeader.Size > maxFileSize {
			apperrors.HandleError(c, apperrors.ErrFileTooLarge)
			return
		}

		tmp, err := os.CreateTemp("", "upload-*"+filepath.Ext(fileHeader.Filename))
		if err != nil {
			apperrors.HandleError(c, apperrors.New500Error(err))
			return
		}
		tmp.Close()
		if err := c.SaveUploadedFile(fileHeader, tmp.Name()); err != nil {
			os.Remove(tmp.Name())
			apperrors.HandleError(c, apperrors.New500Error(err))
			return
		}

		outcome := ingestionService.SubmitFile(
			c.Request.Context(), session.ID, fileHeader.Filename, fileHeader.Size, tmp.Name())
		respondOutcome(c, outcome)
	}
}

func submitRemoteHandler(ingestionService *services.IngestionService, fileFetcher services.FileFetcher, maxFileSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		var request struct {
			URL          string `json:"url" binding:"required"`
			FileName     string `json:"file_name" binding:"required"`
			DeclaredSize int64  `json:"declared_size"`
		}
		if err := c.ShouldBindJSON(&request); err != nil {
			apperrors.HandleError(c, apperrors.New400Error("url and file_name are required"))
			return
		}

		session, ok := contextSession(c)
		if !ok {
			apperrors.HandleError(c, apperrors.New401Error())
			return
		}

		// A declared size over the cap saves the download entirely; the real
		// size is enforced again after fetching.
		if request.DeclaredSize > maxFileSize {
			apperrors.HandleError(c, apperrors.ErrFileTooLarge)
			return
		}

		path, size, err := fileFetcher.FetchToTemp(c.Request.Context(), request.URL, request.FileName)
		if err != nil {
			apperrors.HandleError(c, err)
			return
		}

		outcome := ingestionService.SubmitFile(c.Request.Context(), session.ID, request.FileName, size, path)
		respondOutcome(c, outcome)
	}
}

func setLanguageHandler(registry *services.SessionRegistry) gin.HandlerFunc {
	return func(c *gin.Context) {
		var request struct {
			Language string `json:"language" binding:"required"`
		}
		if err := c.ShouldBindJSON(&request); err != nil {
			apperrors.HandleError(c, apperrors.New400Error("language is required"))
			return
		}

		session, ok := contextSession(c)
		if !ok {
			apperrors.HandleError(c, apperrors.New401Error())
			return
		}

		if err := registry.SetLanguage(session.ID, request.Language); err != nil {
			apperrors.HandleError(c, apperrors.New404Error("session not found"))
			return
		}

		c.JSON(http.StatusOK, gin.H{"language": request.Language})
	}
}

func getTransactionHandler(registry *services.SessionRegistry) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, ok := contextSession(c)
		if !ok {
			apperrors.HandleError(c, apperrors.New401Error())
			return
		}

		tx, ok := registry.Transaction(session.ID)
		if !ok {
			apperrors.HandleError(c, apperrors.New404Error("no pending cleaning offer"))
			return
		}

		// Only the offer preview is echoed back before settlement, never the
		// full stored text.
		preview, truncated := services.OfferPreview(tx.OriginalText)
		c.JSON(http.StatusOK, gin.H{
			"state":        tx.State,
			"hidden_count": tx.HiddenCount,
			"length":       tx.Length,
			"price":        tx.Price,
			"currency":     tx.Currency,
			"preview":      preview,
			"truncated":    truncated,
			"created_at":   tx.CreatedAt.Format(time.RFC3339),
		})
	}
}

func cancelTransactionHandler(paymentService *services.PaymentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, ok := contextSession(c)
		if !ok {
			apperrors.HandleError(c, apperrors.New401Error())
			return
		}

		if err := paymentService.Cancel(session.ID); err != nil {
			apperrors.HandleError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"cancelled": true})
	}
}

func payHandler(paymentService *services.PaymentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, ok := contextSession(c)
		if !ok {
			apperrors.HandleError(c, apperrors.New401Error())
			return
		}

		invoiceID, err := paymentService.RequestPayment(c.Request.Context(), session.ID)
		if err != nil {
			apperrors.HandleError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"invoice_id": invoiceID})
	}
}

func donateHandler(paymentService *services.PaymentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var request struct {
			Amount int64 `json:"amount" binding:"required"`
		}
		if err := c.ShouldBindJSON(&request); err != nil {
			apperrors.HandleError(c, apperrors.New400Error("amount is required"))
			return
		}

		session, ok := contextSession(c)
		if !ok {
			apperrors.HandleError(c, apperrors.New401Error())
			return
		}

		invoiceID, err := paymentService.Donate(c.Request.Context(), session.ID, request.Amount)
		if err != nil {
			apperrors.HandleError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"invoice_id": invoiceID})
	}
}

func paymentWebhookHandler(paymentService *services.PaymentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const MaxBodyBytes = int64(65536)
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxBodyBytes)

		payload, err := io.ReadAll(c.Request.Body)
		if err != nil {
			apperrors.HandleError(c, apperrors.New400Error("failed to read webhook body"))
			return
		}

		_, err = paymentService.HandleNotification(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
		if err != nil {
			// A settlement against a vanished offer was already reported to
			// the session; acknowledging stops the gateway from retrying a
			// payment that can never be applied.
			if errors.Is(err, apperrors.ErrNoPendingTransaction) {
				c.JSON(http.StatusOK, gin.H{"received": true})
				return
			}
			apperrors.HandleError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"received": true})
	}
}
