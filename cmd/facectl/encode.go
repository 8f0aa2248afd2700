package main

import (
	"fmt"
	"time"

	"github.com/RudraShekhare/face-attendance-system/internal/service"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var encodeCmd = &cobra.Command{
	Use:   "encode",
	Short: "Encode dataset images into the face gallery",
	Long: `Encode dataset images into the face gallery.

Without --name the gallery is rebuilt from every image in the dataset and
replaced only when the whole run succeeds. With --name only that person's
folder is encoded and appended to the existing gallery.

Examples:
  facectl encode
  facectl encode --name ada`,
	RunE: runEncode,
}

func init() {
	rootCmd.AddCommand(encodeCmd)

	encodeCmd.Flags().String("name", "", "Encode only this identity's folder")
}

func runEncode(cmd *cobra.Command, args []string) error {
	name := mustGetString(cmd, "name")

	ctx, cancel := signalContext()
	defer cancel()

	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if name != "" {
		stats, err := a.Enrollment.EnrollDataset(ctx, name)
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", name, err)
		}
		printStats(stats.Total, stats.Encoded, stats.Skipped, stats.Failed, stats.Faces, stats.End.Sub(stats.Start))
		return nil
	}

	var bar *progressbar.ProgressBar
	progress := func(done, total int64) {
		if bar == nil {
			bar = progressbar.NewOptions64(total,
				progressbar.OptionSetDescription("Encoding"),
				progressbar.OptionShowCount(),
				progressbar.OptionShowIts(),
				progressbar.OptionSetItsString("images"),
				progressbar.OptionShowElapsedTimeOnFinish(),
				progressbar.OptionSetPredictTime(true),
				progressbar.OptionFullWidth(),
			)
		}
		bar.ChangeMax64(total)
		bar.Set64(done)
	}

	job, err := a.Rebuilds.Run(ctx, "cli", service.RebuildProgress(progress))
	if bar != nil {
		bar.Finish()
		fmt.Println()
	}
	if err != nil {
		return fmt.Errorf("rebuild failed, previous gallery kept: %w", err)
	}

	var elapsed time.Duration
	if job.CompletedAt != nil {
		elapsed = job.CompletedAt.Sub(job.StartedAt)
	}
	printStats(job.Total, job.Encoded, job.Skipped, job.Failed, job.Faces, elapsed)
	fmt.Printf("Gallery size: %d\n", a.Recognition.GallerySize())
	return nil
}

func printStats(total, encoded, skipped, failed, faces int64, elapsed time.Duration) {
	fmt.Printf("Images: %d  encoded: %d  skipped: %d  failed: %d  faces: %d  (%s)\n",
		total, encoded, skipped, failed, faces, elapsed.Round(time.Millisecond))
}
