// Package respond writes the JSON envelope shared by every endpoint:
//
//	{"success": true,  "message": "...", "data": {...}}
//	{"success": false, "message": "...", "data": {"field": "message"}}
//
// It lives apart from package api so middleware can render errors in the
// same shape without importing the router.
package respond

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/projecthub/projecthub/internal/apierr"
)

// RequestIDKey is the gin.Context key holding the request id.
const RequestIDKey = "request_id"

// Envelope is the body of every JSON response.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// OK writes a 200 success envelope.
func OK(c *gin.Context, message string, data any) {
	c.JSON(http.StatusOK, Envelope{Success: true, Message: message, Data: data})
}

// Created writes a 201 success envelope.
func Created(c *gin.Context, message string, data any) {
	c.JSON(http.StatusCreated, Envelope{Success: true, Message: message, Data: data})
}

// Fail writes an error envelope with an explicit status.
func Fail(c *gin.Context, status int, message string) {
	c.JSON(status, Envelope{Success: false, Message: message})
}

// Abort is Fail for middleware: it also stops the handler chain.
func Abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, Envelope{Success: false, Message: message})
}

// Error classifies err and writes the matching status and envelope. Internal
// errors are logged with the request id and rendered with a generic message.
func Error(c *gin.Context, err error) {
	e := apierr.From(err)
	if e == nil {
		return
	}

	if e.Kind == apierr.KindInternal {
		slog.ErrorContext(c.Request.Context(), "request failed",
			"error", err,
			"method", c.Request.Method,
			"path", c.FullPath(),
			"request_id", c.GetString(RequestIDKey),
		)
		c.JSON(http.StatusInternalServerError, Envelope{Success: false, Message: apierr.InternalMessage})
		return
	}

	body := Envelope{Success: false, Message: e.Message}
	if len(e.Fields) > 0 {
		body.Data = e.Fields
	}
	c.JSON(e.Kind.Status(), body)
}
