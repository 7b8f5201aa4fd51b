package api

import (
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/camcore/internal/camera"
)

// CameraError is the body written for failed camera operations. It carries
// the code, message and details triple callers switch on.
type CameraError struct {
	Status  int    `json:"-"`
	Code    string `json:"code" example:"ZOOM_OUT_OF_RANGE" doc:"Stable error code"`
	Message string `json:"message" example:"zoom ratio out of range" doc:"Human-readable message"`
	Details string `json:"details,omitempty" example:"10.00 not in [1.00, 4.00]" doc:"Additional detail"`
}

func (e *CameraError) Error() string {
	if e.Details != "" {
		return e.Code + ": " + e.Message + " (" + e.Details + ")"
	}
	return e.Code + ": " + e.Message
}

// GetStatus implements huma.StatusError.
func (e *CameraError) GetStatus() int {
	return e.Status
}

var statusByCode = map[string]int{
	camera.CodeSensorError:                http.StatusBadRequest,
	camera.CodeNoSizeSet:                  http.StatusBadRequest,
	camera.CodePathNotSet:                 http.StatusBadRequest,
	camera.CodeModeNotSet:                 http.StatusBadRequest,
	camera.CodeZoomNotSet:                 http.StatusBadRequest,
	camera.CodeZoomOutOfRange:             http.StatusBadRequest,
	camera.CodeInvalidSurfaceSet:          http.StatusBadRequest,
	camera.CodeMissingPermission:          http.StatusForbidden,
	camera.CodePermissionDenied:           http.StatusForbidden,
	camera.CodeTextureNotFound:            http.StatusNotFound,
	camera.CodeNotInitialized:             http.StatusConflict,
	camera.CodeCaptureBusy:                http.StatusConflict,
	camera.CodeSessionNotActive:           http.StatusConflict,
	camera.CodeNotFocusing:                http.StatusConflict,
	camera.CodeDeviceNotOpen:              http.StatusConflict,
	camera.CodeAlreadyOpen:                http.StatusConflict,
	camera.CodeDeviceUnavailable:          http.StatusServiceUnavailable,
	camera.CodeSessionConfigurationFailed: http.StatusServiceUnavailable,
	camera.CodeSwitchFailed:               http.StatusServiceUnavailable,
	camera.CodeCaptureFailed:              http.StatusBadGateway,
	camera.CodeNotImplemented:             http.StatusNotImplemented,
	camera.CodePermissionCheckFailed:      http.StatusInternalServerError,
}

// mapCameraError converts a camera error into an HTTP error with the
// matching status. Errors without a camera code become 500s.
func mapCameraError(err error) error {
	if err == nil {
		return nil
	}
	var ce *camera.Error
	if !errors.As(err, &ce) {
		return huma.Error500InternalServerError("camera operation failed", err)
	}

	status, ok := statusByCode[ce.Code]
	if !ok {
		status = http.StatusInternalServerError
	}
	details := ce.Details
	if details == "" && ce.Cause != nil {
		details = ce.Cause.Error()
	}
	return &CameraError{
		Status:  status,
		Code:    ce.Code,
		Message: ce.Message,
		Details: details,
	}
}
