package camera

import (
	"errors"
	"fmt"
)

// Error is the structured error returned by every camera operation. Code,
// Message and Details form the triple reported to callers.
type Error struct {
	Code    string
	Message string
	Details string
	Cause   error
}

func (e *Error) Error() string {
	msg := e.Code
	if e.Message != "" {
		msg = fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	if e.Details != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Details)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error with the same code, so the sentinels below work with
// errors.Is regardless of message or cause.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Error codes
const (
	CodeNotInitialized             = "CAMERA_MUST_BE_INIT"
	CodeMissingPermission          = "MISSING_PERMISSION"
	CodeDeviceUnavailable          = "DEVICE_UNAVAILABLE"
	CodePermissionDenied           = "PERMISSION_DENIED"
	CodeAlreadyOpen                = "DEVICE_ALREADY_OPEN"
	CodeInvalidSurfaceSet          = "INVALID_SURFACE_SET"
	CodeDeviceNotOpen              = "DEVICE_NOT_OPEN"
	CodeSessionConfigurationFailed = "SESSION_CONFIGURATION_FAILED"
	CodeSessionNotActive           = "SESSION_NOT_ACTIVE"
	CodeZoomOutOfRange             = "ZOOM_OUT_OF_RANGE"
	CodeCaptureBusy                = "CAPTURE_BUSY"
	CodeCaptureFailed              = "CAPTURE_FAILED"
	CodeNotFocusing                = "NOT_FOCUSING"
	CodeSwitchFailed               = "SWITCH_CAMERA_SENSOR_ERROR"
	CodeTextureNotFound            = "TEXTURE_NOT_FOUND"
	CodePermissionCheckFailed      = "FAILED_TO_CHECK_PERMISSIONS"

	// Argument errors raised by the dispatch surface.
	CodeSensorError    = "SENSOR_ERROR"
	CodeNoSizeSet      = "NO_SIZE_SET"
	CodePathNotSet     = "PATH_NOT_SET"
	CodeModeNotSet     = "MODE_NOT_SET"
	CodeZoomNotSet     = "ZOOM_NOT_SET"
	CodeNotImplemented = "NOT_IMPLEMENTED"
)

// Sentinels for errors.Is.
var (
	ErrNotInitialized             = &Error{Code: CodeNotInitialized, Message: "init must be called before this operation"}
	ErrMissingPermission          = &Error{Code: CodeMissingPermission, Message: "all permissions must be granted before init"}
	ErrDeviceUnavailable          = &Error{Code: CodeDeviceUnavailable, Message: "camera device unavailable"}
	ErrPermissionDenied           = &Error{Code: CodePermissionDenied, Message: "camera access denied"}
	ErrAlreadyOpen                = &Error{Code: CodeAlreadyOpen, Message: "a camera device is already open"}
	ErrInvalidSurfaceSet          = &Error{Code: CodeInvalidSurfaceSet, Message: "at least one target surface is required"}
	ErrDeviceNotOpen              = &Error{Code: CodeDeviceNotOpen, Message: "camera device is not open"}
	ErrSessionConfigurationFailed = &Error{Code: CodeSessionConfigurationFailed, Message: "capture session configuration failed"}
	ErrSessionNotActive           = &Error{Code: CodeSessionNotActive, Message: "capture session is not active"}
	ErrZoomOutOfRange             = &Error{Code: CodeZoomOutOfRange, Message: "zoom ratio out of range"}
	ErrCaptureBusy                = &Error{Code: CodeCaptureBusy, Message: "a photo capture is already in progress"}
	ErrCaptureFailed              = &Error{Code: CodeCaptureFailed, Message: "photo capture failed"}
	ErrNotFocusing                = &Error{Code: CodeNotFocusing, Message: "not in focus"}
	ErrSwitchFailed               = &Error{Code: CodeSwitchFailed, Message: "sensor switch failed"}
	ErrTextureNotFound            = &Error{Code: CodeTextureNotFound, Message: "cannot find texture"}
)

// NewError creates an error with the given code.
func NewError(code, message, details string, cause error) *Error {
	return &Error{Code: code, Message: message, Details: details, Cause: cause}
}

// CodeOf returns the camera error code carried by err, or "" if none.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// with copies a sentinel, attaching details and a cause.
func (e *Error) with(details string, cause error) *Error {
	return &Error{Code: e.Code, Message: e.Message, Details: details, Cause: cause}
}
