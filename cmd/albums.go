package cmd

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/camden-git/facesys/repository"
)

var albumsCmd = &cobra.Command{
	Use:   "albums",
	Short: "List albums and their images",
}

var albumsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List albums with their image counts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		albums, err := a.store.ListAlbums(cmd.Context())
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tIMAGES")
		for _, album := range albums {
			fmt.Fprintf(tw, "%d\t%s\t%d\n", album.ID, album.Name, album.ImageCount)
		}
		return tw.Flush()
	},
}

var albumsImagesCmd = &cobra.Command{
	Use:   "images <name>",
	Short: "List the images of an album",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		album, err := a.store.GetAlbumByName(cmd.Context(), args[0])
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("album %q does not exist", args[0])
		}
		if err != nil {
			return err
		}

		images, err := a.store.ListAlbumImages(cmd.Context(), album.ID, mustGetInt(cmd, "limit"))
		if err != nil {
			return err
		}
		for _, img := range images {
			status := "pending"
			if img.Processed {
				status = fmt.Sprintf("%d faces", img.FaceCount)
			}
			fmt.Printf("%s\t%s\n", img.FilePath, status)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(albumsCmd)
	albumsCmd.AddCommand(albumsListCmd, albumsImagesCmd)
	albumsImagesCmd.Flags().Int("limit", repository.DefaultAlbumImageLimit, "Maximum number of images")
}
