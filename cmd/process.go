package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/camden-git/facesys/services"
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Detect and identify faces in every unprocessed image",
	Long: `Run one recognition batch over all images that are not marked processed.
Each detected face is matched against the known identities and stored with
its label. Interrupting the command stops between images; finished images
stay processed.`,
	Args: cobra.NoArgs,
	RunE: runProcess,
}

func init() {
	rootCmd.AddCommand(processCmd)
	processCmd.Flags().Int("yield-every", 0, "Report progress every N images (defaults to PROCESS_YIELD_EVERY)")
	processCmd.Flags().Bool("quiet", false, "Do not show a progress bar")
}

func runProcess(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := processWithProgress(ctx, a.service, mustGetInt(cmd, "yield-every"), mustGetBool(cmd, "quiet"))
	if errors.Is(err, context.Canceled) {
		fmt.Printf("\nInterrupted: %d images processed, %d faces detected\n", result.Processed, result.Detected)
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Printf("\nProcessed %d images, detected %d faces\n", result.Processed, result.Detected)
	return nil
}

// processWithProgress runs a batch, advancing a progress bar at every yield.
func processWithProgress(ctx context.Context, svc *services.FaceRecognitionService, yieldEvery int, quiet bool) (services.RunResult, error) {
	var bar *progressbar.ProgressBar
	opts := services.ProcessOptions{YieldEvery: yieldEvery}
	if !quiet {
		opts.OnYield = func(p services.Progress) {
			if bar == nil {
				bar = progressbar.NewOptions(p.Total,
					progressbar.OptionSetDescription("Detecting faces"),
					progressbar.OptionShowCount(),
					progressbar.OptionShowIts(),
					progressbar.OptionSetItsString("images"),
					progressbar.OptionShowElapsedTimeOnFinish(),
					progressbar.OptionSetPredictTime(true),
					progressbar.OptionFullWidth(),
				)
			}
			_ = bar.Set(p.Visited)
		}
	}

	result, err := svc.ProcessImages(ctx, opts)
	if bar != nil && err == nil {
		_ = bar.Finish()
	}
	return result, err
}
