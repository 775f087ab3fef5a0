package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/camden-git/facesys/faces"
	"github.com/camden-git/facesys/repository"
)

var peopleCmd = &cobra.Command{
	Use:   "people",
	Short: "List, rename and merge identities",
}

var peopleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List identities with their face counts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		people, err := a.service.ListPeople(cmd.Context())
		if err != nil {
			return err
		}
		if len(people) == 0 {
			fmt.Println("No faces stored yet.")
			return nil
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tFACES")
		for _, p := range people {
			fmt.Fprintf(tw, "%s\t%d\n", p.Name, p.FaceCount)
		}
		return tw.Flush()
	},
}

var peopleRenameCmd = &cobra.Command{
	Use:   "rename <old-name> <new-name>",
	Short: "Rename an identity; renaming onto an existing name merges them",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.service.RenamePerson(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Printf("Renamed %s to %s (%d faces)\n", args[0], args[1], n)
		return nil
	},
}

var peopleMergeCmd = &cobra.Command{
	Use:   "merge <source> <target>",
	Short: "Fold every face of source into target",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.service.MergePeople(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Printf("Merged %s into %s (%d faces)\n", args[0], args[1], n)
		return nil
	},
}

var peopleAddCmd = &cobra.Command{
	Use:   "add <name> <image>",
	Short: "Check that a reference image yields a usable face for name",
	Long: `Embed the most confident face of a reference image under name.
The reference lives in memory only, so this command is mostly useful to
verify that an image is suitable before adding it through the API.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		img, err := faces.DecodeImageFile(args[1])
		if err != nil {
			return err
		}
		obs, err := a.service.AddPerson(cmd.Context(), args[0], img)
		if err != nil {
			return err
		}
		fmt.Printf("Face for %s at [%d,%d,%d,%d], %d-dimensional embedding\n",
			args[0], obs.Box.X1, obs.Box.Y1, obs.Box.X2, obs.Box.Y2, len(obs.Embedding))
		return nil
	},
}

var peopleImagesCmd = &cobra.Command{
	Use:   "images <name>",
	Short: "List images showing a person",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		images, err := a.service.ImagesByPerson(cmd.Context(), args[0], mustGetInt(cmd, "limit"))
		if err != nil {
			return err
		}
		for _, img := range images {
			fmt.Println(img.FilePath)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(peopleCmd)
	peopleCmd.AddCommand(peopleListCmd, peopleRenameCmd, peopleMergeCmd, peopleAddCmd, peopleImagesCmd)
	peopleImagesCmd.Flags().Int("limit", repository.DefaultPersonImageLimit, "Maximum number of images")
}
