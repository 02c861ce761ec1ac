package httpx

import (
	"errors"
	"net/http"

	"github.com/vendaflow/vendaflow/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrInsufficientStock):
		Problem(w, http.StatusConflict, "Insufficient Stock", err.Error())
	case errors.Is(err, shared.ErrOverpayment):
		Problem(w, http.StatusConflict, "Overpayment", err.Error())
	case errors.Is(err, shared.ErrPersistence):
		Problem(w, http.StatusBadGateway, "Storage Failure", "the operation was rolled back, retry the whole request")
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
