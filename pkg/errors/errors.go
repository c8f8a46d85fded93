package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation         Code = "VALIDATION_ERROR"
	CodeInvalidTransition  Code = "INVALID_TRANSITION"
	CodeOrderFinal         Code = "ORDER_ALREADY_FINAL"
	CodeNotFound           Code = "NOT_FOUND"
	CodeNotSettleable      Code = "ORDER_NOT_SETTLEABLE"
	CodeSettlementConflict Code = "SETTLEMENT_CONFLICT"
	CodeStateConflict      Code = "STATE_CONFLICT"
	CodeConflict           Code = "CONFLICT"
	CodeIdempotency        Code = "IDEMPOTENCY_VIOLATION"
	CodeConfigMissing      Code = "CONFIGURATION_MISSING"
	CodeInternal           Code = "INTERNAL_ERROR"
	CodeDependency         Code = "DEPENDENCY_ERROR"
)

type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

var metadataByCode = map[Code]Metadata{
	CodeValidation: {
		HTTPStatus:     http.StatusBadRequest,
		Retryable:      false,
		PublicMessage:  "validation failed",
		DetailsAllowed: true,
	},
	CodeInvalidTransition: {
		HTTPStatus:     http.StatusUnprocessableEntity,
		Retryable:      false,
		PublicMessage:  "status transition not allowed",
		DetailsAllowed: true,
	},
	CodeOrderFinal: {
		HTTPStatus:     http.StatusUnprocessableEntity,
		Retryable:      false,
		PublicMessage:  "order already in a terminal status",
		DetailsAllowed: true,
	},
	CodeNotFound: {
		HTTPStatus:     http.StatusNotFound,
		Retryable:      false,
		PublicMessage:  "resource not found",
		DetailsAllowed: false,
	},
	CodeNotSettleable: {
		HTTPStatus:     http.StatusUnprocessableEntity,
		Retryable:      false,
		PublicMessage:  "order is not settleable",
		DetailsAllowed: true,
	},
	CodeSettlementConflict: {
		HTTPStatus:     http.StatusConflict,
		Retryable:      true,
		PublicMessage:  "settlement conflicted, retry",
		DetailsAllowed: true,
	},
	CodeStateConflict: {
		HTTPStatus:     http.StatusConflict,
		Retryable:      true,
		PublicMessage:  "state changed concurrently",
		DetailsAllowed: true,
	},
	CodeConflict: {
		HTTPStatus:     http.StatusConflict,
		Retryable:      false,
		PublicMessage:  "conflict detected",
		DetailsAllowed: false,
	},
	CodeIdempotency: {
		HTTPStatus:     http.StatusConflict,
		Retryable:      false,
		PublicMessage:  "idempotency key conflict",
		DetailsAllowed: true,
	},
	CodeConfigMissing: {
		HTTPStatus:     http.StatusInternalServerError,
		Retryable:      false,
		PublicMessage:  "service misconfigured",
		DetailsAllowed: false,
	},
	CodeInternal: {
		HTTPStatus:     http.StatusInternalServerError,
		Retryable:      true,
		PublicMessage:  "internal server error",
		DetailsAllowed: false,
	},
	CodeDependency: {
		HTTPStatus:     http.StatusBadGateway,
		Retryable:      true,
		PublicMessage:  "upstream dependency failed",
		DetailsAllowed: false,
	},
}

// MetadataFor returns the response metadata for the code, defaulting to the
// internal error metadata for unknown codes.
func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Wrap(code Code, err error, message string) *Error {
	if err == nil {
		return New(code, message)
	}
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	e.details = details
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.Code() == code
}

// CodeOf extracts the code from err, defaulting to CodeInternal for
// untyped errors.
func CodeOf(err error) Code {
	if typed := As(err); typed != nil {
		return typed.Code()
	}
	return CodeInternal
}

// IsRetryable reports whether err is marked transient by its code metadata.
func IsRetryable(err error) bool {
	typed := As(err)
	if typed == nil {
		return false
	}
	return MetadataFor(typed.Code()).Retryable
}
