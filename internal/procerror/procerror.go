package procerror

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

type ErrorCode string

// Error taxonomy for a processing cycle. TRANSIENT and PROJECTION are
// recovered locally; the rest terminate the cycle and are recorded on the
// master row whenever the cycle still owns it.
const (
	ErrTransient         ErrorCode = "TRANSIENT"
	ErrStreamInterrupted ErrorCode = "STREAM_INTERRUPTED"
	ErrProjection        ErrorCode = "PROJECTION"
	ErrSink              ErrorCode = "SINK"
	ErrOwnershipLost     ErrorCode = "OWNERSHIP_LOST"
	ErrIntegrity         ErrorCode = "INTEGRITY"
	ErrNotFound          ErrorCode = "NOT_FOUND"
	ErrInternal          ErrorCode = "INTERNAL"
)

type ProcError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details error     `json:"details,omitempty"`
}

func (e ProcError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e ProcError) Unwrap() error {
	return e.Details
}

func NewProcError(code ErrorCode, message string, details error) ProcError {
	if details != nil {
		logrus.Error(details)
	}
	return ProcError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// CodeOf extracts the taxonomy code from an error, defaulting to INTERNAL
// for errors raised outside this package.
func CodeOf(err error) ErrorCode {
	if procErr, ok := err.(ProcError); ok {
		return procErr.Code
	}
	return ErrInternal
}

// IsTransient reports whether the caller should back off and retry rather
// than fail the master.
func IsTransient(err error) bool {
	return CodeOf(err) == ErrTransient
}
