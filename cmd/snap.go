package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/smazurov/camcore/internal/camera"
	"github.com/smazurov/camcore/internal/logging"
	"github.com/smazurov/camcore/internal/sim"
)

// SnapOptions configures a one-shot capture.
type SnapOptions struct {
	SensorsFile string
	Sensor      string
	Size        string
	Zoom        float64
	Flash       string
	Orientation int
	Timeout     time.Duration
}

// CreateSnapCmd creates the snap command.
func CreateSnapCmd() *cobra.Command {
	opts := SnapOptions{}
	var logJSON bool

	cmd := &cobra.Command{
		Use:   "snap [path]",
		Short: "Take one photo with a local camera",
		Long: `Runs the full camera lifecycle in process: permission check, init, start, ` +
			`optional zoom and flash, one still capture, stop. Prints the written file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loggingConfig := logging.Config{Level: "warn", Format: "text"}
			if logJSON {
				loggingConfig.Format = "json"
			}
			logging.Initialize(loggingConfig)

			ctx, cancel := context.WithTimeout(cmd.Context(), opts.Timeout)
			defer cancel()

			path, err := Snap(ctx, args[0], opts)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.SensorsFile, "sensors", "sensors.toml", "Path to sensor catalog file")
	cmd.Flags().StringVar(&opts.Sensor, "sensor", "BACK", "Sensor to use (FRONT, BACK)")
	cmd.Flags().StringVar(&opts.Size, "size", "", "Photo size as WIDTHxHEIGHT, largest when empty")
	cmd.Flags().Float64Var(&opts.Zoom, "zoom", 1.0, "Zoom ratio")
	cmd.Flags().StringVar(&opts.Flash, "flash", "NONE", "Flash mode (NONE, ON, AUTO, ALWAYS)")
	cmd.Flags().IntVar(&opts.Orientation, "orientation", 0, "Device rotation in degrees")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 10*time.Second, "Overall timeout")
	cmd.Flags().BoolVar(&logJSON, "log-json", false, "Use JSON log format")

	return cmd
}

// Snap captures one photo to path on a simulated platform and returns the
// written file.
func Snap(ctx context.Context, path string, opts SnapOptions) (string, error) {
	logger := logging.GetLogger("snap")

	sensor, err := camera.ParseSensor(opts.Sensor)
	if err != nil {
		return "", err
	}
	flash, err := camera.ParseFlashMode(opts.Flash)
	if err != nil {
		return "", err
	}

	catalog, err := sim.LoadCatalog(opts.SensorsFile)
	if err != nil {
		return "", err
	}
	platform := sim.NewPlatform(catalog)
	defer platform.Close()

	cam := camera.New(platform.CameraOptions(nil))
	defer func() {
		if closeErr := cam.Close(context.Background()); closeErr != nil {
			logger.Warn("Error closing camera", "error", closeErr)
		}
	}()

	missing, err := cam.CheckPermissions()
	if err != nil {
		return "", err
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("permissions missing: %v", missing)
	}
	if err := cam.Init(ctx, sensor); err != nil {
		return "", err
	}
	if opts.Size != "" {
		size, err := camera.ParseSize(opts.Size)
		if err != nil {
			return "", err
		}
		if err := cam.SetPhotoSize(size); err != nil {
			return "", err
		}
	}
	cam.SetDeviceOrientation(opts.Orientation)

	if err := cam.Start(ctx); err != nil {
		return "", err
	}
	if err := cam.AwaitActive(ctx); err != nil {
		return "", err
	}
	if err := cam.SetZoom(opts.Zoom); err != nil {
		return "", err
	}
	if err := cam.SetFlashMode(flash); err != nil {
		return "", err
	}

	results, err := cam.TakePhoto(path)
	if err != nil {
		return "", err
	}
	select {
	case res := <-results:
		if res.Err != nil {
			return "", res.Err
		}
		logger.Info("Photo written", "path", res.Path, "job_id", res.JobID)
		return res.Path, nil
	case <-ctx.Done():
		return "", fmt.Errorf("waiting for photo: %w", ctx.Err())
	}
}
