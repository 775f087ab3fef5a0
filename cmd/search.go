package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/camden-git/facesys/faces"
)

var searchCmd = &cobra.Command{
	Use:   "search <image>",
	Short: "Find the closest known identity for each face in an image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		img, err := faces.DecodeImageFile(args[0])
		if err != nil {
			return err
		}
		results, err := a.service.SearchByImage(cmd.Context(), img)
		if err != nil {
			return err
		}
		if len(results) == 0 {
			fmt.Println("No faces found.")
			return nil
		}

		for i, r := range results {
			box := fmt.Sprintf("[%d,%d,%d,%d]", r.Box.X1, r.Box.Y1, r.Box.X2, r.Box.Y2)
			switch {
			case r.Label == "":
				fmt.Printf("%d. %s no known identities\n", i+1, box)
			case r.Matched:
				fmt.Printf("%d. %s %s (%.1f%%, distance %.3f)\n", i+1, box, r.Label, r.Confidence, r.Distance)
			default:
				fmt.Printf("%d. %s no match, closest %s (distance %.3f)\n", i+1, box, r.Label, r.Distance)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)
}
