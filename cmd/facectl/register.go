package main

import (
	"fmt"

	"github.com/RudraShekhare/face-attendance-system/internal/capture"
	"github.com/RudraShekhare/face-attendance-system/internal/capture/webcam"
	"github.com/RudraShekhare/face-attendance-system/internal/source"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Capture reference photos of a person from the camera",
	Long: `Capture reference photos of a person and store them in the dataset
folder <dataset>/<name>/1.jpg, 2.jpg, ...

Run "facectl encode --name <name>" afterwards to add the photos to the gallery.

Examples:
  facectl register --name "Ada Lovelace"
  facectl register --name ada --count 30 --device rtsp://cam.local/stream`,
	RunE: runRegister,
}

func init() {
	rootCmd.AddCommand(registerCmd)

	registerCmd.Flags().String("name", "", "Identity to register")
	registerCmd.Flags().Int("count", 0, "Number of photos to take (default from config)")
	registerCmd.Flags().String("device", "", "Camera index or stream URL (default from config)")
	registerCmd.Flags().Bool("preview", true, "Show the camera feed while capturing")
	registerCmd.MarkFlagRequired("name")
}

func runRegister(cmd *cobra.Command, args []string) error {
	name := mustGetString(cmd, "name")
	count := mustGetInt(cmd, "count")
	device := mustGetString(cmd, "device")
	preview := mustGetBool(cmd, "preview")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if count <= 0 {
		count = cfg.Capture.RegisterSize
	}
	if device == "" {
		device = cfg.Capture.Device
	}

	ctx, cancel := signalContext()
	defer cancel()

	cam, err := webcam.Open(device)
	if err != nil {
		return err
	}
	defer cam.Close()

	var window *webcam.Preview
	if preview {
		window = webcam.NewPreview("Register: " + name)
		defer window.Close()
	}

	bar := progressbar.NewOptions(count,
		progressbar.OptionSetDescription("Capturing"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetItsString("photos"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionFullWidth(),
	)

	saved, err := capture.Register(ctx, cam, source.NewDataset(cfg.Dataset.Dir), name, capture.Options{
		Count:    count,
		Interval: cfg.Capture.Interval,
		Progress: func(int, string) {
			bar.Add(1)
			if window != nil && window.ShowRaw(cam.Frame()) {
				cancel()
			}
		},
	})
	bar.Finish()
	fmt.Println()
	if err != nil {
		return fmt.Errorf("registration failed after %d photos: %w", len(saved), err)
	}

	fmt.Printf("Saved %d photos for %s\n", len(saved), name)
	if len(saved) > 0 {
		fmt.Printf("Run: facectl encode --name %q\n", name)
	}
	return nil
}
