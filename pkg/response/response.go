// Package response writes the JSON envelopes every API route answers with.
package response

import (
	"errors"
	"net/http"
	"time"

	"zimba-booking/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// requestIDKey matches the key the RequestID middleware stores under.
const requestIDKey = "request_id"

type SuccessResponse struct {
	Data      any    `json:"data"`
	RequestID string `json:"request_id"`
	Timestamp string `json:"timestamp"`
}

type ErrorResponse struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Timestamp string `json:"timestamp"`
}

// Page is one slice of a booking listing. TotalPages is 0 for an empty result.
type Page struct {
	Items      any   `json:"items"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

var internalError = apperror.New("SYS_000", "Internal server error", http.StatusInternalServerError)

func OK(c *gin.Context, data any) { success(c, http.StatusOK, data) }

func Created(c *gin.Context, data any) { success(c, http.StatusCreated, data) }

func Paginated(c *gin.Context, items any, total int64, page, pageSize int) {
	p := Page{Items: items, Total: total, Page: page, PageSize: pageSize}
	if pageSize > 0 {
		p.TotalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	OK(c, p)
}

// Error writes err's code and status when it wraps an *apperror.AppError.
// Anything else is reported as SYS_000 without leaking its text.
func Error(c *gin.Context, err error) {
	appErr := internalError
	var target *apperror.AppError
	if errors.As(err, &target) {
		appErr = target
	}
	c.JSON(appErr.HTTPStatus, ErrorResponse{
		ErrorCode: appErr.Code,
		Message:   appErr.Message,
		RequestID: requestID(c),
		Timestamp: timestamp(),
	})
}

func success(c *gin.Context, status int, data any) {
	c.JSON(status, SuccessResponse{Data: data, RequestID: requestID(c), Timestamp: timestamp()})
}

func timestamp() string { return time.Now().UTC().Format(time.RFC3339) }

func requestID(c *gin.Context) string {
	if id := c.GetString(requestIDKey); id != "" {
		return id
	}
	return uuid.NewString()
}
