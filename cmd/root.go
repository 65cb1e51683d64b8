package cmd

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "scanfolders",
		Short: "Bucket scanned photos into barcode-named folders and upload them to Google Drive",
		Long: `Scanfolders groups photos into folders named after a scanned barcode and uploads
every pending folder to Google Drive, tracking per-image progress.

Folders are created under an optional parent folder and reused when they already exist.
A local directory can stand in for Drive with --backend local.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()

			level := slog.LevelInfo
			if opts.verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}

	cmd.PersistentFlags().StringVar(&opts.backend, "backend", "drive", "Remote storage backend (drive or local)")
	cmd.PersistentFlags().StringVar(&opts.localRoot, "local-root", "scanfolders-remote", "Root directory for the local backend")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")

	// Add subcommands
	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newUploadCmd(opts))
	cmd.AddCommand(newAuthCmd(opts))
	cmd.AddCommand(newSettingsCmd())
	cmd.AddCommand(newScanCmd())
	cmd.AddCommand(newSearchCmd(opts))

	return cmd
}
