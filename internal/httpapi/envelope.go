package httpapi

import (
	"net/http"

	"ledger-platform/internal/apperror"
	"ledger-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Every response is an envelope. Success:
//
//	{ "success": true, "data": ..., "pagination"?: ... }
//
// Failure:
//
//	{ "success": false, "error": {code, message, details?}, "requestId": ... }

type successEnvelope struct {
	Success    bool        `json:"success"`
	Data       any         `json:"data"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

type errorEnvelope struct {
	Success   bool      `json:"success"`
	Error     errorBody `json:"error"`
	RequestID string    `json:"requestId"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

func NewPagination(page, limit, total int) Pagination {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return Pagination{Page: page, Limit: limit, Total: total, TotalPages: pages}
}

// ExposeInternal controls whether unclassified error messages leak to
// clients. Enabled outside production at wiring time.
var ExposeInternal = false

func OK(c *gin.Context, status int, data any) {
	c.JSON(status, successEnvelope{Success: true, Data: data})
}

func OKPaginated(c *gin.Context, data any, p Pagination) {
	c.JSON(http.StatusOK, successEnvelope{Success: true, Data: data, Pagination: &p})
}

// Fail serializes any error into the error envelope. Operational
// faults keep their stable code and status; everything else becomes
// INTERNAL_ERROR/500 with the cause logged against the request id.
func Fail(c *gin.Context, err error) {
	rid := logger.RequestID(c)

	if e, ok := apperror.As(err); ok && e.Kind != apperror.KindInternal {
		c.JSON(e.HTTPStatus(), errorEnvelope{
			Error:     errorBody{Code: e.Code(), Message: e.Message, Details: e.Details},
			RequestID: rid,
		})
		return
	}

	logger.FromGin(c).Error("internal error", "err", err)
	msg := "internal error"
	if ExposeInternal && err != nil {
		msg = err.Error()
	}
	c.JSON(http.StatusInternalServerError, errorEnvelope{
		Error:     errorBody{Code: "INTERNAL_ERROR", Message: msg},
		RequestID: rid,
	})
}
