package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeIdempotency   Code = "IDEMPOTENCY_KEY_REUSED"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"

	// Fulfillment engine codes.
	CodeInsufficientStock   Code = "INSUFFICIENT_STOCK"
	CodeInvalidAssignee     Code = "INVALID_ASSIGNEE"
	CodeAlreadyAssigned     Code = "ALREADY_ASSIGNED"
	CodeOrderNotAssigned    Code = "ORDER_NOT_ASSIGNED"
	CodePermissionDenied    Code = "PERMISSION_DENIED"
	CodeEmptyOrderViolation Code = "EMPTY_ORDER_VIOLATION"
)

// Metadata is how a code surfaces over HTTP.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

func public(status int, msg string) Metadata {
	return Metadata{HTTPStatus: status, PublicMessage: msg}
}

func (m Metadata) withDetails() Metadata { m.DetailsAllowed = true; return m }
func (m Metadata) retryable() Metadata { m.Retryable = true; return m }

// PERMISSION_DENIED and INVALID_ASSIGNEE carry no details so a caller cannot
// probe which orders or staff exist.
var metadataByCode = map[Code]Metadata{
	CodeValidation:    public(http.StatusBadRequest, "validation failed").withDetails(),
	CodeUnauthorized:  public(http.StatusUnauthorized, "authentication required"),
	CodeForbidden:     public(http.StatusForbidden, "access denied"),
	CodeNotFound:      public(http.StatusNotFound, "resource not found"),
	CodeConflict:      public(http.StatusConflict, "conflict detected"),
	CodeStateConflict: public(http.StatusUnprocessableEntity, "state transition disallowed").withDetails(),
	CodeIdempotency:   public(http.StatusConflict, "idempotency key reused").withDetails(),
	CodeInternal:      public(http.StatusInternalServerError, "internal server error").retryable(),
	CodeDependency:    public(http.StatusServiceUnavailable, "dependency unavailable").retryable().withDetails(),

	CodeInsufficientStock:   public(http.StatusConflict, "insufficient stock").withDetails(),
	CodeInvalidAssignee:     public(http.StatusUnprocessableEntity, "staff member cannot handle orders"),
	CodeAlreadyAssigned:     public(http.StatusConflict, "order already assigned").withDetails(),
	CodeOrderNotAssigned:    public(http.StatusUnprocessableEntity, "order is not assigned"),
	CodePermissionDenied:    public(http.StatusForbidden, "permission denied"),
	CodeEmptyOrderViolation: public(http.StatusUnprocessableEntity, "order must keep at least one item").withDetails(),
}

// MetadataFor treats unknown codes as INTERNAL_ERROR.
func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

// Error is a coded failure. The message is for logs and, when the code
// allows details, for clients; the cause never leaves the process.
type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap with a nil err is New.
func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

// Code is INTERNAL_ERROR on a nil receiver.
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

// WithDetails returns a copy carrying details.
func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	clone := *e
	clone.details = details
	return &clone
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := string(e.code) + ": " + e.message
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Is matches another *Error by code, so errors.Is(err, New(CodeNotFound, ""))
// works through wrapping.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	return ok && e != nil && other != nil && e.code == other.code
}

// As returns the outermost *Error in err's chain, or nil.
func As(err error) *Error {
	var typed *Error
	if err != nil && stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// HasCode reports whether any *Error in err's chain carries code.
func HasCode(err error, code Code) bool {
	return err != nil && stdErrors.Is(err, &Error{code: code})
}
