package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sakif/sharebin/internal/buffer"
	"github.com/sakif/sharebin/internal/snippet"
)

// readChunk is the most edit reads from stdin at once.
const readChunk = 32 << 10

// NewEditCommand creates the edit command
func NewEditCommand(r *runner) *cobra.Command {
	var resume bool

	cmd := &cobra.Command{
		Use:   "edit [url|id]",
		Short: "Stream stdin into a snippet as you type",
		Long: `Read stdin into the editor buffer as it arrives. When the snippet has
editing enabled, changes are pushed to the server after a short pause
(SHAREBIN_DEBOUNCE), and whatever is still pending is sent at end of input.

The buffers are also snapshotted to the local store every
SHAREBIN_AUTOSAVE. --resume starts from the last snapshot instead of an
empty buffer; it cannot be combined with a snippet.

Status changes (Saved, or why an update was refused) are printed as they
happen.

Examples:
  tail -f build.log | sharebin edit my-build-log
  sharebin edit --resume`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// A snapshot is whatever was last typed locally; pushing it into
			// some other snippet would overwrite that snippet.
			if resume && len(args) == 1 {
				return errors.New("--resume only works without a snippet; open the snippet and pipe the content instead")
			}

			return r.with(cmd, func(app *App) error {
				ctx := cmd.Context()
				if len(args) == 1 {
					if _, err := app.Open(args[0]); err != nil {
						return err
					}
				}

				var sb strings.Builder
				if resume {
					ok, err := buffer.Restore(ctx, app.Buffers, app.Store)
					if err != nil {
						return err
					}
					if ok {
						sb.WriteString(app.Buffers.Active().Content)
					} else {
						fmt.Fprintln(cmd.ErrOrStderr(), "Nothing to resume")
					}
				}

				saver := buffer.NewAutoSaver(app.Buffers, app.Store, app.Config.AutoSaveInterval, app.Logger)
				saver.Start(ctx)
				defer saver.Stop()

				watch := &statusWatcher{w: cmd.ErrOrStderr(), ctl: app.Controller}

				// Each read is applied as one edit.
				in := cmd.InOrStdin()
				chunk := make([]byte, readChunk)
				for {
					n, err := in.Read(chunk)
					if n > 0 {
						sb.Write(chunk[:n])
						app.Controller.Edit(sb.String())
						watch.check()
					}
					if errors.Is(err, io.EOF) {
						break
					}
					if err != nil {
						return fmt.Errorf("reading stdin: %w", err)
					}
				}

				flushErr := app.Controller.Flush(ctx)
				if err := saver.SaveNow(ctx); err != nil {
					app.Logger.Debug("final snapshot failed", slog.String("error", err.Error()))
				}
				watch.check()
				if flushErr != nil {
					return flushErr
				}

				st := app.Controller.State()
				if st.Loaded && !st.Editing {
					fmt.Fprintln(cmd.ErrOrStderr(), "Editing is disabled for this snippet; changes were kept locally")
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&resume, "resume", false, "Start from the last local snapshot")

	return cmd
}

// statusWatcher prints the controller's status whenever it changes.
type statusWatcher struct {
	w    io.Writer
	ctl  *snippet.Controller
	last string
}

func (s *statusWatcher) check() {
	msg := s.ctl.Status()
	if msg == "" || msg == s.last {
		return
	}
	s.last = msg
	fmt.Fprintln(s.w, msg)
}
