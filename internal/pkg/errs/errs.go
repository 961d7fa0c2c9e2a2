package errs

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"chatr/internal/pkg/logx"
)

// CustomError carries a business code, a client-facing message and the HTTP status.
type CustomError struct {
	Code    int
	Message string
	Status  int
}

// Error implements the error interface.
func (e CustomError) Error() string {
	return fmt.Sprintf("Error Code %d (HTTP %d): %s", e.Code, e.Status, e.Message)
}

// NewError builds a *CustomError from a registered code.
// details fill printf verbs in the message template; for ErrUnknown and
// ErrStoreUnavailable an error detail is logged instead of shown to the client.
// Unregistered codes degrade to ErrUnknown.
func NewError(code int, details ...any) *CustomError {
	tmpl, ok := errorMap[code]
	if !ok {
		logx.Error(errors.New("unregistered error code"), "Unknown error code requested", "requested_code", code)
		tmpl = errorMap[ErrUnknown]
	}

	e := tmpl
	if e.Status == 0 {
		e.Status = http.StatusOK
	}

	if len(details) == 0 {
		return &e
	}

	if cause, isErr := details[0].(error); isErr && (code == ErrUnknown || code == ErrStoreUnavailable) {
		logx.Error(cause, "Internal error behind client response", "code", code)
		return &e
	}

	if strings.Contains(e.Message, "%") {
		e.Message = fmt.Sprintf(e.Message, details...)
	} else {
		logx.Warn("Error details ignored, message template has no placeholders", "code", code)
	}

	return &e
}
