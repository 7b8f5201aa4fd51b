package models

import (
	"github.com/smazurov/camcore/internal/camera"
	"github.com/smazurov/camcore/internal/version"
)

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

// VersionResponse reports build metadata.
type VersionResponse struct {
	Body version.Info
}

// Permission models
type PermissionsData struct {
	Missing []string `json:"missing" doc:"Permissions still missing, empty when all are granted"`
	Granted bool     `json:"granted" doc:"Whether every required permission is granted"`
}

type PermissionsResponse struct {
	Body PermissionsData
}

// Sensor models
type SensorRequest struct {
	Body struct {
		Sensor string `json:"sensor" example:"BACK" doc:"Logical sensor role, FRONT or BACK"`
	}
}

// Size models
type SizeData struct {
	Width  int `json:"width" example:"1920" doc:"Width in pixels"`
	Height int `json:"height" example:"1080" doc:"Height in pixels"`
}

type SizeRequest struct {
	Body SizeData
}

type SizeResponse struct {
	Body SizeData
}

type SizeListData struct {
	Sizes []SizeData `json:"sizes" doc:"Output sizes supported by the active sensor"`
	Count int        `json:"count" example:"4" doc:"Number of sizes"`
}

type SizeListResponse struct {
	Body SizeListData
}

// FromSize converts a camera size.
func FromSize(s camera.Size) SizeData {
	return SizeData{Width: s.Width, Height: s.Height}
}

// ToSize converts back to a camera size.
func (s SizeData) ToSize() camera.Size {
	return camera.Size{Width: s.Width, Height: s.Height}
}

// Texture models
type TextureData struct {
	Texture int64 `json:"texture" example:"1" doc:"Preview texture handle"`
}

type TextureResponse struct {
	Body TextureData
}

// Photo models
type PhotoRequest struct {
	Body struct {
		Path string `json:"path,omitempty" example:"/tmp/a.jpg" doc:"Output file, a generated name in the photo directory when empty"`
	} `required:"false"`
}

type PhotoData struct {
	JobID string `json:"job_id" doc:"Still capture job identifier"`
	Path  string `json:"path" example:"/tmp/a.jpg" doc:"Written JPEG file"`
}

type PhotoResponse struct {
	Body PhotoData
}

// Flash models
type FlashRequest struct {
	Body struct {
		Mode string `json:"mode" example:"AUTO" doc:"Flash mode"`
	}
}

// Zoom models
type ZoomRequest struct {
	Body struct {
		Zoom float64 `json:"zoom" example:"2.0" doc:"Zoom ratio, 1.0 is no zoom"`
	}
}

type ZoomData struct {
	MaxZoom float64 `json:"max_zoom" example:"4.0" doc:"Largest zoom ratio of the active sensor"`
}

type ZoomResponse struct {
	Body ZoomData
}

// Orientation models
type OrientationRequest struct {
	Body struct {
		Degrees int `json:"degrees" example:"90" doc:"Device rotation in degrees from natural orientation"`
	}
}

// Status models
type StatusResponse struct {
	Body camera.Status
}

// Command models
type CommandRequest struct {
	Method string `path:"method" example:"setZoom" doc:"Operation name"`
	Body   struct {
		Args map[string]any `json:"args,omitempty" doc:"Named arguments"`
	} `required:"false"`
}

type CommandData struct {
	Method string `json:"method" example:"setZoom" doc:"Operation name"`
	Result any    `json:"result,omitempty" doc:"Operation result, absent for operations without one"`
}

type CommandResponse struct {
	Body CommandData
}

type MethodListData struct {
	Methods []string `json:"methods" doc:"Supported operation names"`
}

type MethodListResponse struct {
	Body MethodListData
}

// Log models
type LogListData struct {
	Entries []LogEntryData `json:"entries" doc:"Recent log entries, oldest first"`
	Count   int            `json:"count" example:"100" doc:"Number of entries"`
}

type LogEntryData struct {
	Seq        uint64         `json:"seq" example:"42" doc:"Monotonic sequence number"`
	Timestamp  string         `json:"timestamp" example:"2025-01-09T10:30:00.123Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"camera" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured log attributes"`
}

type LogListResponse struct {
	Body LogListData
}

type LogLevelRequest struct {
	Body struct {
		Module string `json:"module,omitempty" example:"camera" doc:"Module name, empty for the global level"`
		Level  string `json:"level" example:"debug" doc:"New log level"`
	}
}
