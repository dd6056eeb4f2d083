package helpers

import (
	"errors"
	"net/http"

	"github.com/farellandr/aquapark/internal/logger"
	"github.com/farellandr/aquapark/internal/models"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func HTTPStatusText(code int) string {
	return http.StatusText(code)
}

func RespondWithError(c *gin.Context, statusCode int, customMessage string) {
	c.JSON(statusCode, ErrorResponse{
		Error:   HTTPStatusText(statusCode),
		Message: customMessage,
	})
}

var errorStatus = []struct {
	err    error
	status int
}{
	{models.ErrDateNotFound, http.StatusNotFound},
	{models.ErrOrderNotFound, http.StatusNotFound},
	{models.ErrTicketNotIssued, http.StatusNotFound},
	{models.ErrDateExists, http.StatusConflict},
	{models.ErrDateInUse, http.StatusConflict},
	{models.ErrCapacityBelowSold, http.StatusConflict},
	{models.ErrCapacityExceeded, http.StatusConflict},
	{models.ErrDateUnavailable, http.StatusConflict},
	{models.ErrInvalidTransition, http.StatusConflict},
	{models.ErrTicketAlreadyUsed, http.StatusConflict},
	{models.ErrTicketTypeExists, http.StatusConflict},
	{models.ErrStaffExists, http.StatusConflict},
	{models.ErrInvalidDate, http.StatusBadRequest},
	{models.ErrInvalidQuantity, http.StatusBadRequest},
	{models.ErrInvalidCapacity, http.StatusBadRequest},
	{models.ErrEmptyOrder, http.StatusBadRequest},
	{models.ErrInvalidCustomer, http.StatusBadRequest},
	{models.ErrUnknownTicketType, http.StatusBadRequest},
	{models.ErrAmountMismatch, http.StatusUnprocessableEntity},
	{models.ErrPaymentProvider, http.StatusBadGateway},
	{models.ErrInvalidLogin, http.StatusUnauthorized},
	{models.ErrAccountDisabled, http.StatusForbidden},
}

// StatusForError maps domain errors to HTTP statuses. Unknown errors are 500.
func StatusForError(err error) int {
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			return e.status
		}
	}
	return http.StatusInternalServerError
}

// RespondWithServiceError writes a domain error. Internal failures are logged
// and reported with a generic message.
func RespondWithServiceError(c *gin.Context, err error, fallback string) {
	status := StatusForError(err)
	if status == http.StatusInternalServerError {
		logger.WithContext(c.Request.Context()).Error(fallback,
			zap.String("path", c.FullPath()),
			zap.Error(err))
		RespondWithError(c, status, fallback)
		return
	}
	RespondWithError(c, status, err.Error())
}
