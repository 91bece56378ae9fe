// Package apperr defines the error kinds the workflows raise. Each value
// carries a fixed user-facing message and the HTTP status a transport layer
// should map it to; the workflows themselves never format responses.
package apperr

import "net/http"

type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

var (
	ErrProductNotFound      = &Error{Status: http.StatusNotFound, Message: "Product not found"}
	ErrProductAlreadyExists = &Error{Status: http.StatusConflict, Message: "The product already exists"}
	ErrEmptyProductStock    = &Error{Status: http.StatusConflict, Message: "Product stock is empty"}
	ErrLowProductStock      = &Error{Status: http.StatusConflict, Message: "Product stock cannot satisfy the requested quantity"}

	ErrCartNotFound     = &Error{Status: http.StatusNotFound, Message: "Cart not found"}
	ErrProductNotInCart = &Error{Status: http.StatusNotFound, Message: "Product not in cart"}
	ErrEmptyCart        = &Error{Status: http.StatusBadRequest, Message: "Cart is empty"}

	ErrExistingReview  = &Error{Status: http.StatusConflict, Message: "You have already reviewed this product"}
	ErrNoReviewProduct = &Error{Status: http.StatusNotFound, Message: "You have not reviewed this product"}

	ErrChangeDateBeforeArrivalDate = &Error{Status: http.StatusBadRequest, Message: "Change date cannot be before the arrival date"}
	ErrDateAfterCurrentDate        = &Error{Status: http.StatusBadRequest, Message: "Date cannot be after the current date"}

	ErrValidation = &Error{Status: http.StatusUnprocessableEntity, Message: "Invalid input"}
)
