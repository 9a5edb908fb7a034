package vector

import "fmt"

// OperationErrorCode classifies vector store failures.
type OperationErrorCode string

const (
	ErrCodeValidation OperationErrorCode = "validation_failed"
	ErrCodeEncode     OperationErrorCode = "encode_failed"
	ErrCodeDecode     OperationErrorCode = "decode_failed"
	ErrCodeTransport  OperationErrorCode = "transport_failed"
	ErrCodeTimeout    OperationErrorCode = "timeout"
	ErrCodeQuery      OperationErrorCode = "query_failed"
)

// OperationError carries the failed operation, a code, and the HTTP status
// when one was observed.
type OperationError struct {
	Code       OperationErrorCode
	Operation  string
	StatusCode int
	Message    string
	Cause      error
}

func (e *OperationError) Error() string {
	if e == nil {
		return "vector store operation failed"
	}
	if e.Message != "" {
		return fmt.Sprintf("vector store operation failed (op=%s code=%s status=%d): %s",
			e.Operation, e.Code, e.StatusCode, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("vector store operation failed (op=%s code=%s status=%d): %v",
			e.Operation, e.Code, e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("vector store operation failed (op=%s code=%s status=%d)",
		e.Operation, e.Code, e.StatusCode)
}

func (e *OperationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func opErr(op string, code OperationErrorCode, msg string, cause error) error {
	return &OperationError{Code: code, Operation: op, Message: msg, Cause: cause}
}
