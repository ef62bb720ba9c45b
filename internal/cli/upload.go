package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sakif/sharebin/internal/api"
)

// maxConcurrentReads bounds how many files upload reads at once.
const maxConcurrentReads = 8

// NewUploadCommand creates the upload command
func NewUploadCommand(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file>...",
		Short: "Upload files and print their links",
		Long: `Upload one or more files in a single request. Each file's shareable
link is printed as "name<TAB>link".`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := readFiles(args)
			if err != nil {
				return err
			}
			return r.with(cmd, func(app *App) error {
				uploaded, err := app.Client.Upload(cmd.Context(), files)
				if err != nil {
					return err
				}
				for _, f := range uploaded {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", f.FileName, f.ShareableLink)
				}
				return nil
			})
		},
	}
}

// readFiles reads paths concurrently and keeps their order.
func readFiles(paths []string) ([]api.UploadFile, error) {
	files := make([]api.UploadFile, len(paths))

	var g errgroup.Group
	g.SetLimit(maxConcurrentReads)
	for i, p := range paths {
		g.Go(func() error {
			data, err := os.ReadFile(p)
			if err != nil {
				return fmt.Errorf("reading %s: %w", p, err)
			}
			files[i] = api.UploadFile{Name: filepath.Base(p), Data: bytes.NewReader(data)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return files, nil
}
