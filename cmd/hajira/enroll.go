package main

import (
	"context"
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ayusman/hajira/internal/app"
	"github.com/ayusman/hajira/internal/detector"
	"github.com/ayusman/hajira/internal/enroll"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll --id ID photo...",
	Short: "Add face samples for a subject from photos",
	Long: `Crop the largest face in each photo and store it as a training sample.
A running kiosk picks the samples up on its next recognizer reload.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)
	enrollCmd.Flags().String("id", "", "Subject register number (required)")
}

func runEnroll(cmd *cobra.Command, args []string) error {
	id, _ := cmd.Flags().GetString("id")
	if id == "" {
		return fmt.Errorf("%w: --id", errMissingFlag)
	}

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx := context.Background()
	st, err := app.OpenStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	if _, err := st.Subjects().GetByID(ctx, id); err != nil {
		return fmt.Errorf("subject %s: %w", id, err)
	}

	samples, err := app.NewSampleStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	faces, err := detector.NewCascadeDetector(cfg.CascadePath)
	if err != nil {
		return err
	}
	defer faces.Close()

	enroller := enroll.NewEnroller(faces, samples, st, cfg.Tuning.FaceSize, logger.Named("enroll"))

	bar := progressbar.NewOptions(len(args),
		progressbar.OptionSetDescription("Enrolling "+id),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("photos"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionFullWidth(),
	)

	var stored, failed int
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err == nil {
			_, err = enroller.Enroll(ctx, id, data)
		}
		if err != nil {
			failed++
			logger.Warn("photo skipped", zap.String("photo", path), zap.Error(err))
		} else {
			stored++
		}
		bar.Add(1)
	}
	bar.Finish()

	fmt.Printf("\nStored %d samples for %s (%d skipped)\n", stored, id, failed)
	if stored == 0 {
		return fmt.Errorf("no usable faces in %d photos", len(args))
	}
	return nil
}
