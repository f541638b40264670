package errors

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"syscall"
)

// Wrap wraps an error with additional context, creating a StasisError if the input is not already one
func Wrap(err error, errType ErrorType, code, message string) *StasisError {
	if err == nil {
		return nil
	}

	var se *StasisError
	if errors.As(err, &se) {
		return &StasisError{
			Type:     errType,
			Code:     code,
			Message:  message,
			Cause:    se,
			FilePath: se.FilePath,
		}
	}

	return &StasisError{
		Type:    errType,
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// WrapIO wraps an error as an I/O error, keeping its POSIX-style code.
func WrapIO(err error, message string) *StasisError {
	if err == nil {
		return nil
	}
	n := Normalize(err)
	return &StasisError{
		Type:     ErrorTypeIO,
		Code:     n.Code,
		Message:  message,
		Cause:    err,
		FilePath: n.FilePath,
	}
}

// Normalize converts an arbitrary value (typically a recovered panic or an
// error from the filesystem) into a StasisError. Filesystem errors carry a
// POSIX-style code such as ENOENT; everything else is an internal error.
func Normalize(v any) *StasisError {
	switch e := v.(type) {
	case nil:
		return nil
	case *StasisError:
		return e
	case error:
		out := &StasisError{
			Type:  ErrorTypeInternal,
			Code:  ErrCodeInternalError,
			Cause: e,
		}
		if code := posixCode(e); code != "" {
			out.Type = ErrorTypeIO
			out.Code = code
		}
		var pe *fs.PathError
		if errors.As(e, &pe) {
			out.FilePath = pe.Path
		}
		return out
	case string:
		return &StasisError{Type: ErrorTypeInternal, Code: ErrCodeInternalError, Message: e}
	default:
		return &StasisError{Type: ErrorTypeInternal, Code: ErrCodeInternalError, Message: fmt.Sprint(e)}
	}
}

func posixCode(err error) string {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return CodeNotFound
	case errors.Is(err, fs.ErrPermission):
		return CodePermissionDenied
	case errors.Is(err, fs.ErrExist):
		return CodeExists
	case errors.Is(err, syscall.EISDIR):
		return CodeIsDirectory
	case errors.Is(err, syscall.ENOTDIR):
		return CodeNotDirectory
	}
	return ""
}

// IsNotFound reports whether err is in the "not found" class. A path whose
// parent is not a directory is treated the same way.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	if os.IsNotExist(err) {
		return true
	}
	var se *StasisError
	if errors.As(err, &se) && se.Code == CodeNotFound {
		return true
	}
	code := posixCode(err)
	return code == CodeNotFound || code == CodeNotDirectory
}
