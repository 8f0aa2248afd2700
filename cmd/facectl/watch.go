package main

import (
	"context"
	"fmt"

	"github.com/RudraShekhare/face-attendance-system/internal/capture/webcam"
	"github.com/RudraShekhare/face-attendance-system/internal/domain"
	"github.com/RudraShekhare/face-attendance-system/internal/service"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Recognize faces from the camera and mark attendance",
	Long: `Recognize faces from the camera and mark attendance once per person per day.

A window shows each frame with green boxes for recognized people and red
boxes for unknown faces. Press q in the window or Ctrl+C to stop.

Examples:
  facectl watch
  facectl watch --device 1 --headless`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().String("device", "", "Camera index or stream URL (default from config)")
	watchCmd.Flags().Bool("headless", false, "Do not open a preview window")
}

func runWatch(cmd *cobra.Command, args []string) error {
	device := mustGetString(cmd, "device")
	headless := mustGetBool(cmd, "headless")

	ctx, cancel := signalContext()
	defer cancel()

	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.Recognition.GallerySize() == 0 {
		fmt.Println("Gallery is empty; every face will be reported as Unknown. Run facectl encode first.")
	}
	if device == "" {
		device = a.Config.Capture.Device
	}

	cam, err := webcam.Open(device)
	if err != nil {
		return err
	}
	defer cam.Close()

	var window *webcam.Preview
	if !headless {
		window = webcam.NewPreview("Attendance")
		defer window.Close()
	}

	err = a.Recognition.Watch(ctx, cam, func(_ context.Context, outcomes []service.CheckInOutcome) error {
		for _, o := range outcomes {
			if o.Mark == domain.Marked {
				fmt.Printf("%s marked present at %s %s\n", o.Identity, o.Record.Date, o.Record.Time)
			}
		}
		if window != nil && window.Show(cam.Frame(), outcomes) {
			return service.ErrStopWatch
		}
		return nil
	})
	if err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
