package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/smazurov/camcore/internal/api/models"
	"github.com/smazurov/camcore/internal/camera"
	"github.com/smazurov/camcore/internal/dispatch"
)

// registerCameraRoutes registers one endpoint per camera operation.
func (s *Server) registerCameraRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "check-permissions",
		Method:      http.MethodGet,
		Path:        "/api/camera/permissions",
		Summary:     "Check Permissions",
		Description: "Report which required permissions are missing. Must succeed before the camera can be initialized.",
		Tags:        []string{"camera"},
		Errors:      []int{401, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.PermissionsResponse, error) {
		missing, err := s.camera.CheckPermissions()
		if err != nil {
			return nil, mapCameraError(err)
		}
		if missing == nil {
			missing = []string{}
		}
		return &models.PermissionsResponse{
			Body: models.PermissionsData{Missing: missing, Granted: len(missing) == 0},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID:   "request-permissions",
		Method:        http.MethodPost,
		Path:          "/api/camera/permissions",
		Summary:       "Request Permissions",
		Description:   "Ask the platform to grant the missing permissions. The result is observed by checking again.",
		Tags:          []string{"camera"},
		DefaultStatus: http.StatusAccepted,
		Errors:        []int{401},
		Security:      withAuth(),
	}, func(ctx context.Context, input *struct{}) (*struct{}, error) {
		s.camera.RequestPermissions()
		return &struct{}{}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "init-camera",
		Method:      http.MethodPost,
		Path:        "/api/camera/init",
		Summary:     "Initialize Camera",
		Description: "Select a sensor and open its device, replacing any previous initialization",
		Tags:        []string{"camera"},
		Errors:      []int{400, 401, 403, 503},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.SensorRequest) (*struct{}, error) {
		sensor, err := camera.ParseSensor(input.Body.Sensor)
		if err != nil {
			return nil, mapCameraError(err)
		}
		if err := s.camera.Init(ctx, sensor); err != nil {
			return nil, mapCameraError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-sensor",
		Method:      http.MethodPut,
		Path:        "/api/camera/sensor",
		Summary:     "Switch Sensor",
		Description: "Switch to the other sensor, restarting capture if it was running",
		Tags:        []string{"camera"},
		Errors:      []int{400, 401, 409, 503},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.SensorRequest) (*struct{}, error) {
		sensor, err := camera.ParseSensor(input.Body.Sensor)
		if err != nil {
			return nil, mapCameraError(err)
		}
		if err := s.camera.SetSensor(ctx, sensor); err != nil {
			return nil, mapCameraError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-preview-texture",
		Method:      http.MethodGet,
		Path:        "/api/camera/texture",
		Summary:     "Preview Texture",
		Description: "Get the handle of the preview surface, creating it on first use",
		Tags:        []string{"camera"},
		Errors:      []int{401, 404, 409},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.TextureResponse, error) {
		texture, err := s.camera.PreviewTexture()
		if err != nil {
			return nil, mapCameraError(err)
		}
		return &models.TextureResponse{Body: models.TextureData{Texture: texture}}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "list-sizes",
		Method:      http.MethodGet,
		Path:        "/api/camera/sizes",
		Summary:     "Available Sizes",
		Description: "List the output sizes the active sensor supports",
		Tags:        []string{"camera"},
		Errors:      []int{401, 409},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.SizeListResponse, error) {
		sizes, err := s.camera.AvailableSizes()
		if err != nil {
			return nil, mapCameraError(err)
		}
		out := make([]models.SizeData, len(sizes))
		for i, size := range sizes {
			out[i] = models.FromSize(size)
		}
		return &models.SizeListResponse{Body: models.SizeListData{Sizes: out, Count: len(out)}}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-preview-size",
		Method:      http.MethodPut,
		Path:        "/api/camera/preview-size",
		Summary:     "Set Preview Size",
		Description: "Request a preview size. The closest supported size is used.",
		Tags:        []string{"camera"},
		Errors:      []int{400, 401, 409},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.SizeRequest) (*struct{}, error) {
		if err := s.camera.SetPreviewSize(input.Body.ToSize()); err != nil {
			return nil, mapCameraError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-preview-size",
		Method:      http.MethodGet,
		Path:        "/api/camera/preview-size",
		Summary:     "Effective Preview Size",
		Description: "Get the preview size actually delivered by the sensor",
		Tags:        []string{"camera"},
		Errors:      []int{401, 409},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.SizeResponse, error) {
		size, err := s.camera.EffectivePreviewSize()
		if err != nil {
			return nil, mapCameraError(err)
		}
		return &models.SizeResponse{Body: models.FromSize(size)}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-photo-size",
		Method:      http.MethodPut,
		Path:        "/api/camera/photo-size",
		Summary:     "Set Photo Size",
		Description: "Request a still capture size. The closest supported size is used.",
		Tags:        []string{"camera"},
		Errors:      []int{400, 401, 409},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.SizeRequest) (*struct{}, error) {
		if err := s.camera.SetPhotoSize(input.Body.ToSize()); err != nil {
			return nil, mapCameraError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "start-camera",
		Method:      http.MethodPost,
		Path:        "/api/camera/start",
		Summary:     "Start Capture",
		Description: "Open a capture session and begin the preview. Returns once the session is requested, not when it is active.",
		Tags:        []string{"camera"},
		Errors:      []int{401, 409, 503},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*struct{}, error) {
		if err := s.camera.Start(ctx); err != nil {
			return nil, mapCameraError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "stop-camera",
		Method:      http.MethodPost,
		Path:        "/api/camera/stop",
		Summary:     "Stop Capture",
		Description: "Close the capture session and device. A pending photo fails.",
		Tags:        []string{"camera"},
		Errors:      []int{401, 409},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*struct{}, error) {
		if err := s.camera.Stop(ctx); err != nil {
			return nil, mapCameraError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "take-photo",
		Method:      http.MethodPost,
		Path:        "/api/camera/photo",
		Summary:     "Take Photo",
		Description: "Capture a JPEG still and wait until it is written",
		Tags:        []string{"camera"},
		Errors:      []int{400, 401, 409, 500, 502, 504},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.PhotoRequest) (*models.PhotoResponse, error) {
		path := s.photoPath(input.Body.Path)
		results, err := s.camera.TakePhoto(path)
		if err != nil {
			return nil, mapCameraError(err)
		}
		select {
		case res := <-results:
			if res.Err != nil {
				return nil, mapCameraError(res.Err)
			}
			return &models.PhotoResponse{Body: models.PhotoData{JobID: res.JobID, Path: res.Path}}, nil
		case <-ctx.Done():
			return nil, huma.Error504GatewayTimeout(fmt.Sprintf("photo %s not written before the request ended", path), ctx.Err())
		}
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-flash-mode",
		Method:      http.MethodPut,
		Path:        "/api/camera/flash",
		Summary:     "Set Flash Mode",
		Description: "Set the flash mode for preview and still capture: NONE, ON, AUTO or ALWAYS",
		Tags:        []string{"camera"},
		Errors:      []int{400, 401, 409},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.FlashRequest) (*struct{}, error) {
		mode, err := camera.ParseFlashMode(input.Body.Mode)
		if err != nil {
			return nil, mapCameraError(err)
		}
		if err := s.camera.SetFlashMode(mode); err != nil {
			return nil, mapCameraError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "auto-focus",
		Method:      http.MethodPost,
		Path:        "/api/camera/focus",
		Summary:     "Lock Focus",
		Description: "Trigger autofocus and lock it on the current frame",
		Tags:        []string{"camera"},
		Errors:      []int{401, 409},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*struct{}, error) {
		if err := s.camera.HandleAutoFocus(); err != nil {
			return nil, mapCameraError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-max-zoom",
		Method:      http.MethodGet,
		Path:        "/api/camera/zoom",
		Summary:     "Maximum Zoom",
		Description: "Get the largest zoom ratio of the active sensor",
		Tags:        []string{"camera"},
		Errors:      []int{401, 409},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.ZoomResponse, error) {
		maxZoom, err := s.camera.MaxZoom()
		if err != nil {
			return nil, mapCameraError(err)
		}
		return &models.ZoomResponse{Body: models.ZoomData{MaxZoom: maxZoom}}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-zoom",
		Method:      http.MethodPut,
		Path:        "/api/camera/zoom",
		Summary:     "Set Zoom",
		Description: "Set the zoom ratio. The most recent value wins when requests race.",
		Tags:        []string{"camera"},
		Errors:      []int{400, 401, 409},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.ZoomRequest) (*struct{}, error) {
		if err := s.camera.SetZoom(input.Body.Zoom); err != nil {
			return nil, mapCameraError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-device-orientation",
		Method:      http.MethodPut,
		Path:        "/api/camera/orientation",
		Summary:     "Set Device Orientation",
		Description: "Report the device rotation used to orient captured JPEGs",
		Tags:        []string{"camera"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.OrientationRequest) (*struct{}, error) {
		s.camera.SetDeviceOrientation(input.Body.Degrees)
		return &struct{}{}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-camera-status",
		Method:      http.MethodGet,
		Path:        "/api/camera",
		Summary:     "Camera Status",
		Description: "Get a snapshot of the camera, its device and its capture session",
		Tags:        []string{"camera"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.StatusResponse, error) {
		return &models.StatusResponse{Body: s.camera.Status()}, nil
	})
}

// photoPath resolves the output file for a photo request. An empty path gets
// a generated name.
func (s *Server) photoPath(path string) string {
	if path == "" {
		path = uuid.NewString() + ".jpg"
	}
	return dispatch.ResolvePath(s.options.PhotoDir, path)
}
