package cmd

import (
	"fmt"
	"os"

	"github.com/gabriel-vasile/mimetype"
	"github.com/lehigh-university-libraries/scanfolders/internal/barcode"
	"github.com/spf13/cobra"
)

func newScanCmd() *cobra.Command {
	var provider string

	cmd := &cobra.Command{
		Use:   "scan <image>",
		Short: "Decode the barcode in an image",
		Long: `Reads the barcode or QR code in an image with a vision model and prints its value,
which is the folder name the image's shelf belongs to.

The provider defaults to BARCODE_PROVIDER (ollama when unset).`,
		Example: `  scanfolders scan label.jpg
  scanfolders scan label.jpg --provider openai`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read image: %w", err)
			}

			service := barcode.NewService()
			if provider != "" {
				service = barcode.NewServiceFor(provider)
			}

			value, err := service.DecodeBarcode(cmd.Context(), data, mimetype.Detect(data).String())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), value)
			return nil
		},
	}

	cmd.Flags().StringVar(&provider, "provider", "", "Vision model provider (gemini, ollama or openai)")

	return cmd
}
