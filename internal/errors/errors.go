package errors

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// ErrorType represents the type of error
type ErrorType string

const (
	ErrorTypeUnsupportedFormat    ErrorType = "UNSUPPORTED_FORMAT"
	ErrorTypeExtractionFailed     ErrorType = "EXTRACTION_FAILED"
	ErrorTypeDownloadFailed       ErrorType = "DOWNLOAD_FAILED"
	ErrorTypeFileTooLarge         ErrorType = "FILE_TOO_LARGE"
	ErrorTypeNoPendingTransaction ErrorType = "NO_PENDING_TRANSACTION"
	ErrorTypePaymentRejected      ErrorType = "PAYMENT_REJECTED"
	ErrorTypeBadRequest           ErrorType = "BAD_REQUEST"
	ErrorTypeUnauthorized         ErrorType = "UNAUTHORIZED"
	ErrorTypeNotFound             ErrorType = "NOT_FOUND"
	ErrorTypeInternalServerError  ErrorType = "INTERNAL_SERVER_ERROR"
)

// CustomError represents a custom error with associated HTTP status code and type
type CustomError struct {
	Type       ErrorType
	Message    string
	StatusCode int
	Internal   error
}

// Error implements the error interface
func (e *CustomError) Error() string {
	return e.Message
}

// Unwrap exposes the wrapped internal error to errors.Is/As chains.
func (e *CustomError) Unwrap() error {
	return e.Internal
}

func newError(errType ErrorType, message string, statusCode int, internal error) *CustomError {
	return &CustomError{
		Type:       errType,
		Message:    message,
		StatusCode: statusCode,
		Internal:   internal,
	}
}

// Sentinel errors for the user-recoverable failure taxonomy. Services
// return these directly; every one leaves the session usable for a fresh
// submission.
var (
	ErrUnsupportedFormat = newError(ErrorTypeUnsupportedFormat,
		"only TXT, DOCX and PDF files are supported", http.StatusBadRequest, nil)
	ErrExtractionFailed = newError(ErrorTypeExtractionFailed,
		"failed to extract text from the file", http.StatusUnprocessableEntity, nil)
	ErrDownloadFailed = newError(ErrorTypeDownloadFailed,
		"failed to download the file", http.StatusBadGateway, nil)
	ErrFileTooLarge = newError(ErrorTypeFileTooLarge,
		"file is too large (maximum 20 MiB)", http.StatusRequestEntityTooLarge, nil)
	ErrNoPendingTransaction = newError(ErrorTypeNoPendingTransaction,
		"no pending cleaning offer for this session; please resubmit your text or file", http.StatusConflict, nil)
	ErrPaymentRejected = newError(ErrorTypePaymentRejected,
		"payment could not be authorized for this offer", http.StatusPaymentRequired, nil)
)

// New400Error creates a new bad request error
func New400Error(message string) *CustomError {
	return newError(ErrorTypeBadRequest, message, http.StatusBadRequest, nil)
}

// New401Error creates a new unauthorized error
func New401Error() *CustomError {
	return newError(ErrorTypeUnauthorized, "Unauthorized access", http.StatusUnauthorized, nil)
}

// New404Error creates a new not found error
func New404Error(message string) *CustomError {
	return newError(ErrorTypeNotFound, message, http.StatusNotFound, nil)
}

// New500Error creates a new internal server error
func New500Error(internal error) *CustomError {
	return newError(ErrorTypeInternalServerError, "An unexpected error occurred", http.StatusInternalServerError, internal)
}

// HandleError handles the custom error and sends an appropriate JSON response
func HandleError(c *gin.Context, err error) {
	var customErr *CustomError
	var ok bool

	if customErr, ok = err.(*CustomError); !ok {
		customErr = New500Error(err)
	}

	// Log internal server errors
	if customErr.Type == ErrorTypeInternalServerError {
		log.Error().
			Err(customErr.Internal).
			Str("url", c.Request.URL.String()).
			Msg("Internal Server Error")
	}

	c.JSON(customErr.StatusCode, gin.H{
		"error": gin.H{
			"type":    customErr.Type,
			"message": customErr.Message,
		},
	})
}
