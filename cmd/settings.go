package cmd

import (
	"fmt"

	"github.com/lehigh-university-libraries/scanfolders/internal/settings"
	"github.com/spf13/cobra"
)

func newSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change saved preferences",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "parent [name]",
		Short: "Show or set the parent folder new folders are created under",
		Example: `  # Create folders under "Scans" from now on
  scanfolders settings parent Scans

  # Create folders at the top of the drive
  scanfolders settings parent ""`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store := settings.New(settings.DefaultPath())
			if len(args) == 1 {
				if err := store.SetParentFolder(args[0]); err != nil {
					return err
				}
			}
			name, err := store.ParentFolder()
			if err != nil {
				return err
			}
			if name == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "(drive root)")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), name)
			return nil
		},
	})

	return cmd
}
