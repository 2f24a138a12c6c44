package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an error by who has to act on it.
type Kind string

const (
	// KindValidation means the caller sent something unusable.
	KindValidation Kind = "validation"
	// KindNotFound means the requested state does not exist yet.
	KindNotFound Kind = "not_found"
	// KindUpstream means the external forecaster misbehaved.
	KindUpstream Kind = "upstream"
	// KindInternal covers storage and other infrastructure failures.
	KindInternal Kind = "internal"
)

// Error codes surfaced to API callers.
const (
	CodeUnknownProduct    = "UNKNOWN_PRODUCT"
	CodeMissingColumns    = "MISSING_COLUMNS"
	CodeInvalidInput      = "INVALID_INPUT"
	CodeMissingDateColumn = "MISSING_DATE_COLUMN"
	CodeNoThreshold       = "NO_THRESHOLD"
	CodeNotFound          = "NOT_FOUND"
	CodeForecastFailed    = "FORECAST_FAILED"
	CodeForecastTimeout   = "FORECAST_TIMEOUT"
	CodeResultNotFound    = "RESULT_NOT_FOUND"
	CodeResultAmbiguous   = "RESULT_AMBIGUOUS"
	CodeInternal          = "INTERNAL"
)

// Sentinels for errors.Is matching. Every *Error with the same code matches
// the corresponding sentinel.
var (
	ErrUnknownProduct    = &Error{Kind: KindValidation, Code: CodeUnknownProduct, Message: "unknown product"}
	ErrMissingColumns    = &Error{Kind: KindValidation, Code: CodeMissingColumns, Message: "missing required columns"}
	ErrInvalidInput      = &Error{Kind: KindValidation, Code: CodeInvalidInput, Message: "invalid input"}
	ErrMissingDateColumn = &Error{Kind: KindValidation, Code: CodeMissingDateColumn, Message: "missing date column"}
	ErrNoThreshold       = &Error{Kind: KindValidation, Code: CodeNoThreshold, Message: "no threshold available"}
	ErrNotFound          = &Error{Kind: KindNotFound, Code: CodeNotFound, Message: "not found"}
	ErrForecastFailed    = &Error{Kind: KindUpstream, Code: CodeForecastFailed, Message: "forecast failed"}
	ErrForecastTimeout   = &Error{Kind: KindUpstream, Code: CodeForecastTimeout, Message: "forecast timed out"}
	ErrResultNotFound    = &Error{Kind: KindUpstream, Code: CodeResultNotFound, Message: "forecast result not found"}
	ErrResultAmbiguous   = &Error{Kind: KindUpstream, Code: CodeResultAmbiguous, Message: "forecast result ambiguous"}
)

// Error is the domain error carried across layers.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	// Details holds diagnostic text, e.g. collaborator stderr.
	Details string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Details != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Details)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Is matches on code so wrapped instances compare equal to sentinels.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

func newf(kind Kind, code, format string, a ...interface{}) *Error {
	return &Error{Kind: kind, Code: code, Message: fmt.Sprintf(format, a...)}
}

// UnknownProduct reports a product id that has no records in the log.
func UnknownProduct(id string, available []string) *Error {
	e := newf(KindValidation, CodeUnknownProduct, "product %q not found", id)
	if len(available) > 0 {
		e.Details = fmt.Sprintf("available: %v", available)
	}
	return e
}

// MissingColumns names every required column absent from an input header.
func MissingColumns(cols []string) *Error {
	return newf(KindValidation, CodeMissingColumns, "missing required columns: %s", joinComma(cols))
}

// Invalid builds a validation error.
func Invalid(format string, a ...interface{}) *Error {
	return newf(KindValidation, CodeInvalidInput, format, a...)
}

// MissingDateColumn reports historical data without a date axis.
func MissingDateColumn(msg string) *Error {
	return newf(KindValidation, CodeMissingDateColumn, "%s", msg)
}

// NoThreshold reports that no threshold is stored and none can be derived.
func NoThreshold(productID string) *Error {
	return newf(KindValidation, CodeNoThreshold, "no threshold for product %q and no history to derive one", productID)
}

// NotFound reports missing stored state.
func NotFound(format string, a ...interface{}) *Error {
	return newf(KindNotFound, CodeNotFound, format, a...)
}

// ForecastFailed carries the collaborator's diagnostic output verbatim.
func ForecastFailed(details string, err error) *Error {
	return &Error{Kind: KindUpstream, Code: CodeForecastFailed, Message: "forecast failed", Details: details, Err: err}
}

// ForecastTimeout reports a collaborator that exceeded its deadline.
func ForecastTimeout(err error) *Error {
	return &Error{Kind: KindUpstream, Code: CodeForecastTimeout, Message: "forecast timed out", Err: err}
}

// ResultNotFound reports an invocation that produced no result artifact.
func ResultNotFound(where string) *Error {
	return &Error{Kind: KindUpstream, Code: CodeResultNotFound, Message: "forecast result not found", Details: where}
}

// ResultAmbiguous reports an invocation that produced several candidate artifacts.
func ResultAmbiguous(paths []string) *Error {
	return &Error{Kind: KindUpstream, Code: CodeResultAmbiguous, Message: "forecast result ambiguous", Details: joinComma(paths)}
}

// Internal wraps an infrastructure failure.
func Internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Code: CodeInternal, Message: msg, Err: err}
}

// KindOf returns the kind of err, KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// CodeOf returns the code of err, CodeInternal for foreign errors.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

func joinComma(s []string) string { return strings.Join(s, ", ") }
