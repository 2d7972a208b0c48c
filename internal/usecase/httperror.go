package usecase

import (
	"errors"
	"fmt"
)

// 機械可読コード。クライアントはメッセージでなくこちらで分岐する。
const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeInvalidQuantity    = "INVALID_QUANTITY"
	CodeInsufficientStock  = "INSUFFICIENT_STOCK"
	CodeEmptyCart          = "EMPTY_CART"
	CodeProductUnavailable = "PRODUCT_UNAVAILABLE"
	CodeProductNotFound    = "PRODUCT_NOT_FOUND"
	CodeNotFound           = "NOT_FOUND"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeForbidden          = "FORBIDDEN"
	CodeConflict           = "CONFLICT"
	CodeInternal           = "INTERNAL"
)

type HTTPError struct {
	Status  int
	Code    string
	Message string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

func NewHTTPError(status int, code string, message string) error {
	return &HTTPError{
		Status:  status,
		Code:    code,
		Message: message,
	}
}

func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	ok := errors.As(err, &he)
	return he, ok
}
