package objectstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
)

const (
	CodeEndpointUnreachable = "E_ENDPOINT_UNREACHABLE"
	CodeAuthInvalid         = "E_AUTH_INVALID"
	CodeBucketNotFound      = "E_BUCKET_NOT_FOUND"
	CodeObjectNotFound      = "E_OBJECT_NOT_FOUND"
	CodePermissionDenied    = "E_PERMISSION_DENIED"
	CodeTimeout             = "E_TIMEOUT"
	CodeListFailed          = "E_LIST_FAILED"
	CodeInvalidConfig       = "E_INVALID_CONFIG"
)

// Error is an object-store failure with a stable code and a retry hint.
type Error struct {
	Code      string
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return e.Code
}

func (e *Error) Unwrap() error { return e.Err }

func wrapError(code string, retryable bool, err error) *Error {
	return &Error{Code: code, Retryable: retryable, Err: err}
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// classify maps minio-go and transport errors onto codes. S3 error codes are
// checked first, then message fragments.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return wrapError(CodeTimeout, true, err)
	}

	switch minio.ToErrorResponse(err).Code {
	case "NoSuchBucket":
		return wrapError(CodeBucketNotFound, false, err)
	case "NoSuchKey":
		return wrapError(CodeObjectNotFound, false, err)
	case "AccessDenied":
		return wrapError(CodePermissionDenied, false, err)
	case "InvalidAccessKeyId", "SignatureDoesNotMatch":
		return wrapError(CodeAuthInvalid, false, err)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "no such bucket"):
		return wrapError(CodeBucketNotFound, false, err)
	case strings.Contains(msg, "access denied"), strings.Contains(msg, "permission"):
		return wrapError(CodePermissionDenied, false, err)
	case strings.Contains(msg, "invalid access key"), strings.Contains(msg, "signature"):
		return wrapError(CodeAuthInvalid, false, err)
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline"):
		return wrapError(CodeTimeout, true, err)
	case strings.Contains(msg, "connection refused"), strings.Contains(msg, "no such host"), strings.Contains(msg, "unreachable"):
		return wrapError(CodeEndpointUnreachable, true, err)
	}
	return wrapError(CodeListFailed, true, err)
}
