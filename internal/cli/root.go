package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

// Version is set during build with -ldflags.
var Version = "dev"

// runner opens the App lazily so commands that never touch the network,
// such as route and version, work without configuration.
type runner struct {
	factory Factory
}

// with opens an App for cmd, runs fn and closes the App again.
func (r *runner) with(cmd *cobra.Command, fn func(app *App) error) error {
	app, err := r.factory(cmd.Context(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() {
		if cerr := app.Close(); cerr != nil {
			app.Logger.Warn("closing local store", slog.String("error", cerr.Error()))
		}
	}()
	return fn(app)
}

// NewRootCommand builds the sharebin command tree.
func NewRootCommand(factory Factory) *cobra.Command {
	r := &runner{factory: factory}

	root := &cobra.Command{
		Use:   "sharebin",
		Short: "Share code snippets and files from the terminal",
		Long: `sharebin talks to a sharebin server: it opens shared snippets, saves new
ones, keeps editable snippets in sync while you type and uploads files.

Links can be given in any form the web app produces:
  https://share.example/#/s/abc123
  https://share.example/abc123
  abc123

The server is set with SHAREBIN_SERVER (default http://localhost:8080).`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		NewRouteCommand(),
		NewOpenCommand(r),
		NewSaveCommand(r),
		NewUpdateCommand(r),
		NewEditCommand(r),
		NewToggleEditingCommand(r),
		NewUploadCommand(r),
		NewLoginCommand(r),
		NewRegisterCommand(r),
		NewGoogleLoginCommand(r),
		NewLogoutCommand(r),
		NewWhoamiCommand(r),
		NewMineCommand(r),
		NewVersionCommand(),
	)
	return root
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the sharebin version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "sharebin version %s\n", Version)
		},
	}
}

// readInput returns the content of path, or of stdin when path is "" or "-".
func readInput(cmd *cobra.Command, path string) (string, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(data), nil
}

// readLine reads one line from stdin, for prompts such as a password.
func readLine(cmd *cobra.Command, prompt string) (string, error) {
	fmt.Fprint(cmd.ErrOrStderr(), prompt)
	var sb strings.Builder
	buf := make([]byte, 1)
	in := cmd.InOrStdin()
	for {
		n, err := in.Read(buf)
		if n > 0 {
			if buf[0] == '\n' {
				break
			}
			sb.WriteByte(buf[0])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
	}
	return strings.TrimRight(sb.String(), "\r"), nil
}

// ensureDataDir creates the directory holding the local store.
func ensureDataDir(path string) error {
	if path == ":memory:" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating data directory %s: %w", dir, err)
	}
	return nil
}

// status prints the controller's message, if any, to stderr.
func status(cmd *cobra.Command, app *App) {
	if msg := app.Controller.Status(); msg != "" {
		fmt.Fprintln(cmd.ErrOrStderr(), msg)
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
