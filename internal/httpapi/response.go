package httpapi

import (
	"errors"
	"net/http"

	"callcenter/internal/agents"
	"callcenter/internal/apperr"
	"callcenter/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Success bodies are {success: true, message, data}. Failures are
// {success: false, status, message[, code]} where status is "fail" for 4xx and
// "error" for 5xx.

type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type failure struct {
	Success bool   `json:"success"`
	Status  string `json:"status"`
	Message string `json:"message"`
	Code    int    `json:"code,omitempty"`
}

const internalMessage = "Internal Server Error"

func respond(c *gin.Context, status int, message string, data any) {
	c.JSON(status, envelope{Success: true, Message: message, Data: data})
}

func fail(c *gin.Context, status int, message string) {
	st := "fail"
	if status >= http.StatusInternalServerError {
		st = "error"
	}
	c.AbortWithStatusJSON(status, failure{Status: st, Message: message})
}

// respondError maps a domain error to its HTTP status. Unclassified errors are
// logged and reported as a generic 500.
func respondError(c *gin.Context, err error) {
	if errors.Is(err, agents.ErrInvalidCredentials) {
		fail(c, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	e, ok := apperr.As(err)
	if !ok || e.Kind == apperr.KindInternal {
		_ = c.Error(err)
		logger.FromGin(c).Error("request failed", "err", err)
		fail(c, http.StatusInternalServerError, internalMessage)
		return
	}

	switch e.Kind {
	case apperr.KindNotFound:
		fail(c, http.StatusNotFound, e.Message)
	case apperr.KindInvalidInput:
		fail(c, http.StatusBadRequest, e.Message)
	case apperr.KindProvider:
		logger.FromGin(c).Warn("provider rejected request", "err", err, "code", e.Code)
		c.AbortWithStatusJSON(http.StatusBadRequest, failure{Status: "fail", Message: e.Message, Code: e.Code})
	}
}
