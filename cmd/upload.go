package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/lehigh-university-libraries/scanfolders/internal/images"
	"github.com/lehigh-university-libraries/scanfolders/internal/providers"
	"github.com/lehigh-university-libraries/scanfolders/internal/report"
	"github.com/lehigh-university-libraries/scanfolders/internal/settings"
	"github.com/lehigh-university-libraries/scanfolders/internal/storage"
	"github.com/lehigh-university-libraries/scanfolders/internal/upload"
	"github.com/spf13/cobra"
)

func newUploadCmd(opts *globalOptions) *cobra.Command {
	var (
		folder      string
		reportPath  string
		concurrency int
		parent      string
	)

	cmd := &cobra.Command{
		Use:   "upload [dirs or files...]",
		Short: "Upload folders of images",
		Long: `Uploads images into remote folders, creating each folder under the parent folder
if it does not exist yet.

Each directory argument becomes one folder named after the directory, holding every
image inside it. With --folder, the arguments are image files for that one folder.`,
		Example: `  # Upload two barcode folders
  scanfolders upload ./39151000123456 ./39151000123457

  # Upload loose files into one folder and keep a report
  scanfolders upload --folder 12345 a.jpg b.jpg --report upload.yaml

  # Try it against a local directory
  scanfolders upload --backend local --local-root ./remote ./12345 --report upload.parquet`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			authProvider, remote, err := opts.backendServices()
			if err != nil {
				return err
			}
			prefs := settings.New(settings.DefaultPath())
			var parentSource upload.ParentSource = prefs
			if cmd.Flags().Changed("parent") {
				parentSource = fixedParent(parent)
			}

			repo := storage.New()
			if folder != "" {
				err = addFiles(repo, folder, args)
			} else {
				err = addDirs(repo, args)
			}
			if err != nil {
				return err
			}

			orchestrator := upload.New(repo, authProvider, remote, images.NewOpener(), parentSource, upload.Options{Concurrency: concurrency})
			start := time.Now()
			result, err := orchestrator.UploadAll(ctx)
			if err != nil {
				if errors.Is(err, providers.ErrAuthenticationRequired) {
					return fmt.Errorf("%w\n\nSign in first:\n  scanfolders auth login", err)
				}
				return err
			}

			printResult(cmd.OutOrStdout(), result, time.Since(start))

			if reportPath != "" {
				id, _ := authProvider.CurrentIdentity(ctx)
				parentName, _ := parentSource.ParentFolder()
				meta := report.Meta{Account: id.Email, Backend: opts.backend, ParentFolder: parentName}
				if err := report.Write(reportPath, meta, result); err != nil {
					return err
				}
				slog.Info("Report written", "path", reportPath)
			}

			if failed := result.Failed() + len(result.FolderErrors); failed > 0 {
				return fmt.Errorf("%d upload(s) failed; run the same command again to retry", failed)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&folder, "folder", "", "Folder name for the given image files")
	cmd.Flags().StringVar(&reportPath, "report", "", "Write per-image results to a .yaml or .parquet file")
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "Maximum simultaneous uploads per folder (0 for no limit)")
	cmd.Flags().StringVar(&parent, "parent", "", "Parent folder for this run, overriding the saved setting")

	return cmd
}

type fixedParent string

func (p fixedParent) ParentFolder() (string, error) { return string(p), nil }

func addFiles(repo *storage.Repository, folder string, files []string) error {
	if err := repo.AddFolder(folder); err != nil {
		return err
	}
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", f, err)
		}
		repo.AddImage(folder, abs, "")
	}
	return nil
}

// addDirs adds one folder per directory with the images found directly inside it
func addDirs(repo *storage.Repository, dirs []string) error {
	for _, dir := range dirs {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", dir, err)
		}
		entries, err := os.ReadDir(abs)
		if err != nil {
			return fmt.Errorf("failed to read directory %s: %w", dir, err)
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

		name := filepath.Base(abs)
		if err := repo.AddFolder(name); err != nil {
			return fmt.Errorf("folder %s: %w", name, err)
		}
		count := 0
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			path := filepath.Join(abs, e.Name())
			mt, err := mimetype.DetectFile(path)
			if err != nil || !strings.HasPrefix(mt.String(), "image/") {
				slog.Debug("Skipping non-image file", "path", path)
				continue
			}
			repo.AddImage(name, path, mt.String())
			count++
		}
		if count == 0 {
			slog.Warn("No images found", "dir", dir)
		}
	}
	return nil
}

func printResult(out io.Writer, result upload.Result, elapsed time.Duration) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FOLDER\tFILE\tSTATUS\tSIZE\tTIME")

	var total uint64
	for _, row := range report.Rows(result) {
		status := "uploaded"
		if !row.Uploaded {
			status = fmt.Sprintf("failed at %.0f%%: %s", row.Progress*100, row.Error)
		}
		total += uint64(row.Bytes)
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", row.Folder, row.Key, status, humanize.Bytes(uint64(row.Bytes)), time.Duration(row.DurationMS)*time.Millisecond)
	}
	w.Flush()

	for name, err := range result.FolderErrors {
		fmt.Fprintf(out, "folder %s skipped: %v\n", name, err)
	}
	fmt.Fprintf(out, "\n%s of %s images uploaded, %s sent in %s\n",
		humanize.Comma(int64(result.Uploaded())),
		humanize.Comma(int64(len(result.Outcomes))),
		humanize.Bytes(total),
		elapsed.Round(time.Millisecond))
}
