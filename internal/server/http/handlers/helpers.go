package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	domainErrors "github.com/polkiloo/payledger/internal/domain/errors"
	"github.com/polkiloo/payledger/internal/server/http/dto"
)

// StatusFor maps a classified domain error onto an HTTP status.
func StatusFor(err error) int {
	switch domainErrors.KindOf(err) {
	case domainErrors.ErrValidation:
		return http.StatusUnprocessableEntity
	case domainErrors.ErrBadRequest:
		return http.StatusBadRequest
	case domainErrors.ErrNotFound:
		return http.StatusNotFound
	case domainErrors.ErrInsufficientFunds:
		return http.StatusPaymentRequired
	case domainErrors.ErrBusinessLogic:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// abortWithError writes the error body. Internal causes are not echoed back.
func abortWithError(c *gin.Context, err error) {
	status := StatusFor(err)
	msg := http.StatusText(status)
	var de *domainErrors.Error
	if status != http.StatusInternalServerError {
		msg = err.Error()
		if errors.As(err, &de) && de.Message != "" {
			msg = de.Message
		}
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, dto.ErrorResponse{Error: msg, Code: domainErrors.CodeOf(err)})
}
