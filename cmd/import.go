package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/camden-git/facesys/ingest"
)

var importCmd = &cobra.Command{
	Use:   "import <dir>...",
	Short: "Register the images and videos found in folders",
	Long: `Add every supported media file in the given folders to the library.
Files already known by path are left untouched. Capture time and GPS
location are read from EXIF when available. New files go to the album
named by --album, or the default album. Use --process to run a
recognition batch right after the import.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().BoolP("recursive", "r", false, "Descend into subfolders")
	importCmd.Flags().Bool("process", false, "Process new images after importing")
	importCmd.Flags().String("album", "", "Album for new images (default album when empty)")
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	scanner := ingest.NewScanner(a.store, a.log)
	res, err := scanner.Import(ctx, args, ingest.Options{
		Recursive: mustGetBool(cmd, "recursive"),
		Album:     mustGetString(cmd, "album"),
	})
	if err != nil {
		return fmt.Errorf("import interrupted: %w", err)
	}
	fmt.Printf("Found %d files, added %d new", res.Seen, res.Added)
	if res.Failed > 0 {
		fmt.Printf(", %d failed", res.Failed)
	}
	fmt.Println()

	if !mustGetBool(cmd, "process") || res.Added == 0 {
		return nil
	}
	result, err := processWithProgress(ctx, a.service, 0, false)
	if err != nil {
		return err
	}
	fmt.Printf("\nProcessed %d images, detected %d faces\n", result.Processed, result.Detected)
	return nil
}
