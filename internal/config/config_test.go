package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/spf13/cobra"
)

// testOptions mirrors the shape of the main Options struct.
type testOptions struct {
	Config string `help:"Config file path"`

	Port          string        `toml:"server.port" env:"SERVER_PORT"`
	SensorsFile   string        `toml:"camera.sensors_file" env:"CAMERA_SENSORS_FILE"`
	GrantAll      bool          `toml:"camera.grant_permissions" env:"CAMERA_GRANT_PERMISSIONS"`
	MaxPhotos     int           `toml:"camera.max_photos" env:"CAMERA_MAX_PHOTOS"`
	DefaultZoom   float64       `toml:"camera.default_zoom" env:"CAMERA_DEFAULT_ZOOM"`
	StartWait     time.Duration `toml:"api.start_wait" env:"API_START_WAIT"`
	LoggingLevel  string        `toml:"logging.level" env:"LOGGING_LEVEL"`
	AllowedTokens []string      `toml:"auth.tokens" env:"AUTH_TOKENS"`
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoadConfigFromTOML(t *testing.T) {
	path := writeConfig(t, `
[server]
port = ":9000"

[camera]
sensors_file = "/etc/camcore/sensors.toml"
grant_permissions = true
max_photos = 12
default_zoom = 1.5

[api]
start_wait = "3s"

[auth]
tokens = ["a", "b"]
`)

	opts := &testOptions{Config: path}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if opts.Port != ":9000" {
		t.Errorf("Port = %q, want :9000", opts.Port)
	}
	if opts.SensorsFile != "/etc/camcore/sensors.toml" {
		t.Errorf("SensorsFile = %q", opts.SensorsFile)
	}
	if !opts.GrantAll {
		t.Error("GrantAll = false, want true")
	}
	if opts.MaxPhotos != 12 {
		t.Errorf("MaxPhotos = %d, want 12", opts.MaxPhotos)
	}
	if opts.DefaultZoom != 1.5 {
		t.Errorf("DefaultZoom = %v, want 1.5", opts.DefaultZoom)
	}
	if opts.StartWait != 3*time.Second {
		t.Errorf("StartWait = %v, want 3s", opts.StartWait)
	}
	if !reflect.DeepEqual(opts.AllowedTokens, []string{"a", "b"}) {
		t.Errorf("AllowedTokens = %v", opts.AllowedTokens)
	}
}

func TestLoadConfigFromEnvVars(t *testing.T) {
	t.Setenv("CAMCORE_SERVER_PORT", ":7000")
	t.Setenv("CAMCORE_CAMERA_GRANT_PERMISSIONS", "true")
	t.Setenv("CAMCORE_CAMERA_MAX_PHOTOS", "3")
	t.Setenv("CAMCORE_CAMERA_DEFAULT_ZOOM", "2.5")
	t.Setenv("CAMCORE_API_START_WAIT", "250ms")
	t.Setenv("CAMCORE_AUTH_TOKENS", " x , y ")

	opts := &testOptions{}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if opts.Port != ":7000" {
		t.Errorf("Port = %q, want :7000", opts.Port)
	}
	if !opts.GrantAll {
		t.Error("GrantAll = false, want true")
	}
	if opts.MaxPhotos != 3 {
		t.Errorf("MaxPhotos = %d, want 3", opts.MaxPhotos)
	}
	if opts.DefaultZoom != 2.5 {
		t.Errorf("DefaultZoom = %v, want 2.5", opts.DefaultZoom)
	}
	if opts.StartWait != 250*time.Millisecond {
		t.Errorf("StartWait = %v, want 250ms", opts.StartWait)
	}
	if !reflect.DeepEqual(opts.AllowedTokens, []string{"x", "y"}) {
		t.Errorf("AllowedTokens = %v", opts.AllowedTokens)
	}
}

func TestLoadConfigPrecedence(t *testing.T) {
	path := writeConfig(t, `
[server]
port = ":9000"

[logging]
level = "debug"

[camera]
max_photos = 5
`)
	t.Setenv("CAMCORE_LOGGING_LEVEL", "warn")
	t.Setenv("CAMCORE_SERVER_PORT", ":7000")

	var port string
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().StringVar(&port, "port", ":8090", "port")
	if err := cmd.Flags().Set("port", ":6000"); err != nil {
		t.Fatalf("Failed to set flag: %v", err)
	}

	opts := &testOptions{Config: path, Port: ":6000"}
	if err := LoadConfig(opts, cmd); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if opts.Port != ":6000" {
		t.Errorf("Port = %q, want CLI value :6000", opts.Port)
	}
	if opts.LoggingLevel != "warn" {
		t.Errorf("LoggingLevel = %q, want env value warn", opts.LoggingLevel)
	}
	if opts.MaxPhotos != 5 {
		t.Errorf("MaxPhotos = %d, want TOML value 5", opts.MaxPhotos)
	}
}

func TestGetNestedValue(t *testing.T) {
	data := map[string]any{
		"level1": map[string]any{
			"level2": map[string]any{
				"value": "nested_value",
			},
			"simple": "simple_value",
		},
		"root": "root_value",
	}

	tests := []struct {
		path     string
		expected any
	}{
		{"root", "root_value"},
		{"level1.simple", "simple_value"},
		{"level1.level2.value", "nested_value"},
		{"nonexistent", nil},
		{"level1.nonexistent", nil},
		{"root.deeper", nil},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if result := getNestedValue(data, tt.path); result != tt.expected {
				t.Errorf("getNestedValue(%q) = %v, expected %v", tt.path, result, tt.expected)
			}
		})
	}
}

func TestSetFieldValue_IgnoresMismatchedTypes(t *testing.T) {
	type target struct {
		Count int
		Zoom  float64
		Wait  time.Duration
	}
	s := &target{Count: 1, Zoom: 1.0, Wait: time.Second}
	v := reflect.ValueOf(s).Elem()

	setFieldValue(v.FieldByName("Count"), "not a number")
	setFieldValue(v.FieldByName("Zoom"), "wide")
	setFieldValue(v.FieldByName("Wait"), "soon")

	if s.Count != 1 || s.Zoom != 1.0 || s.Wait != time.Second {
		t.Errorf("fields changed on mismatched input: %+v", s)
	}

	setFieldValue(v.FieldByName("Zoom"), int64(3))
	if s.Zoom != 3.0 {
		t.Errorf("Zoom = %v, want 3 from integer TOML value", s.Zoom)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	opts := &testOptions{Config: filepath.Join(t.TempDir(), "missing.toml")}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig should not fail for missing file: %v", err)
	}
}

func TestLoadConfigInvalidTOML(t *testing.T) {
	path := writeConfig(t, "[server\ninvalid toml syntax\n")
	if err := LoadConfig(&testOptions{Config: path}, nil); err == nil {
		t.Fatal("LoadConfig should fail for invalid TOML")
	}
}

func TestLoadLoggingConfig(t *testing.T) {
	path := writeConfig(t, `
[logging]
level = "warn"
format = "json"
session = "debug"
api = "error"
`)

	cfg := LoadLoggingConfig(path)
	if cfg.Level != "warn" {
		t.Errorf("Level = %q, want warn", cfg.Level)
	}
	if cfg.Format != "json" {
		t.Errorf("Format = %q, want json", cfg.Format)
	}
	if cfg.Modules["session"] != "debug" || cfg.Modules["api"] != "error" {
		t.Errorf("Modules = %v", cfg.Modules)
	}
}

func TestLoadLoggingConfig_Defaults(t *testing.T) {
	cfg := LoadLoggingConfig("")
	if cfg.Level != "info" || cfg.Format != "text" || len(cfg.Modules) != 0 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadConfigRejectsNonPointer(t *testing.T) {
	if err := LoadConfig(testOptions{}, nil); err == nil {
		t.Fatal("LoadConfig accepted a struct value")
	}
}

func TestSetFieldValue_StringsFromTOML(t *testing.T) {
	type target struct {
		Wait  time.Duration
		Grant bool
	}
	s := &target{}
	v := reflect.ValueOf(s).Elem()

	setFieldValue(v.FieldByName("Wait"), "2s")
	setFieldValue(v.FieldByName("Grant"), "true")

	if s.Wait != 2*time.Second || !s.Grant {
		t.Errorf("string values not parsed: %+v", s)
	}
}

func TestFieldNameToFlag(t *testing.T) {
	for name, want := range map[string]string{
		"Port":         "port",
		"LoggingLevel": "logging-level",
		"NATSToken":    "nats-token",
		"CORSOrigin":   "cors-origin",
	} {
		if got := fieldNameToFlag(name); got != want {
			t.Errorf("fieldNameToFlag(%q) = %q, want %q", name, got, want)
		}
	}
}
