package led

import (
	"log/slog"
	"os"
	"strings"
)

const deviceTreeModelPath = "/proc/device-tree/model"

// IndicatorLED is the logical name of the camera-active LED.
const IndicatorLED = "indicator"

// New returns a controller with one LED named IndicatorLED. sysfsName picks
// the LED under /sys/class/leds; when empty the board is detected from the
// device tree. Boards without a known LED get a no-op controller.
func New(sysfsName string, logger *slog.Logger) Controller {
	if sysfsName == "" {
		sysfsName = boardIndicator(detectBoard())
	}
	if sysfsName == "" {
		logger.Info("No indicator LED detected, using no-op controller")
		return newLogOnly(logger)
	}
	logger.Info("Using sysfs indicator LED", "led", sysfsName)
	return newSysfs(sysfsLEDPath, map[string]string{IndicatorLED: sysfsName})
}

// boardIndicator maps a device tree model to the LED best suited as a
// camera-active light.
func boardIndicator(model string) string {
	switch {
	case strings.Contains(model, "NanoPC-T6"):
		return "usr_led"
	case strings.Contains(model, "Orange Pi"):
		return "blue_led"
	case strings.Contains(model, "Raspberry Pi"):
		return "ACT"
	default:
		return ""
	}
}

// detectBoard reads the device tree model to identify the board.
func detectBoard() string {
	data, err := os.ReadFile(deviceTreeModelPath)
	if err != nil {
		return "unknown"
	}
	// Device tree strings are NUL terminated
	return strings.TrimRight(string(data), "\x00")
}
