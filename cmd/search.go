package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newSearchCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "search <folder>",
		Short: "List the images already uploaded to a folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			authProvider, remote, err := opts.backendServices()
			if err != nil {
				return err
			}
			id, err := authProvider.CurrentIdentity(cmd.Context())
			if err != nil {
				return err
			}

			files, err := remote.SearchFolderImages(cmd.Context(), id, args[0])
			if err != nil {
				return err
			}
			if len(files) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No images found in %s\n", args[0])
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tTYPE\tSIZE\tURL")
			for _, f := range files {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", f.Name, f.MimeType, humanize.Bytes(uint64(f.Size)), f.URL)
			}
			return w.Flush()
		},
	}
}
