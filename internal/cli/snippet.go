package cli

import (
	"fmt"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sakif/sharebin/internal/route"
	"github.com/sakif/sharebin/internal/snippet"
)

// NewRouteCommand creates the route command
func NewRouteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "route <url>",
		Short: "Show how a link is routed",
		Long: `Parse a sharebin link the way the web app does and print the page it
leads to, the snippet or session id it carries and its canonical fragment.

Examples:
  sharebin route https://share.example/#/s/abc123
  sharebin route /login
  sharebin route '#/room/9m4e2mr0ui3e8a215n4g'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r := route.Parse(args[0])
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "page:     %s\n", r.Page)
			if r.SnippetID != "" {
				fmt.Fprintf(out, "snippet:  %s\n", r.SnippetID)
			}
			if r.SessionID != "" {
				fmt.Fprintf(out, "session:  %s\n", r.SessionID)
			}
			fmt.Fprintf(out, "fragment: %s\n", r.Fragment())
			return nil
		},
	}
}

// NewOpenCommand creates the open command
func NewOpenCommand(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "open <url|id>",
		Short: "Print a shared snippet",
		Long: `Open a snippet by link or id and print its content to stdout. The name,
language and editing flag go to stderr so the content can be piped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.with(cmd, func(app *App) error {
				rt, err := app.Open(args[0])
				if err != nil {
					return err
				}
				if !rt.IsSnippet() {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s is not a snippet link (page %s)\n", args[0], rt.Page)
					return nil
				}
				st := app.Controller.State()
				fmt.Fprintf(cmd.ErrOrStderr(), "# %s (%s) editing=%s\n", st.Name, st.Language, onOff(st.Editing))
				fmt.Fprint(cmd.OutOrStdout(), app.Buffers.Active().Content)
				return nil
			})
		},
	}
}

// NewSaveCommand creates the save command
func NewSaveCommand(r *runner) *cobra.Command {
	var (
		name     string
		language string
		customID string
		editing  bool
	)

	cmd := &cobra.Command{
		Use:   "save [file|-]",
		Short: "Save a new snippet and copy its link",
		Long: `Save the content of a file (or stdin) as a new snippet. The shareable link
is printed and copied to the clipboard. Saving requires signing in first.

Examples:
  sharebin save main.go --language go
  cat notes.txt | sharebin save - --name notes --id my-notes --editing`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if len(args) == 1 {
				path = args[0]
			}
			content, err := readInput(cmd, path)
			if err != nil {
				return err
			}
			if name == "" && path != "" && path != "-" {
				name = filepath.Base(path)
			}

			return r.with(cmd, func(app *App) error {
				res, err := app.Controller.Save(cmd.Context(), snippet.SaveInput{
					Content:  content,
					Name:     name,
					Language: language,
					CustomID: customID,
					Editing:  editing,
				})
				status(cmd, app)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), res.URL)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "Display name (defaults to the file name)")
	cmd.Flags().StringVarP(&language, "language", "l", "", "Language tag (defaults to SHAREBIN_LANGUAGE)")
	cmd.Flags().StringVar(&customID, "id", "", "Custom snippet id")
	cmd.Flags().BoolVar(&editing, "editing", false, "Let anyone with the link edit the snippet")

	return cmd
}

// NewUpdateCommand creates the update command
func NewUpdateCommand(r *runner) *cobra.Command {
	var (
		name     string
		language string
	)

	cmd := &cobra.Command{
		Use:   "update <url|id> [file|-]",
		Short: "Replace the content of an editable snippet",
		Long: `Replace a snippet's content with a file (or stdin). The snippet must have
editing enabled. Name and language are kept unless given.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if len(args) == 2 {
				path = args[1]
			}
			content, err := readInput(cmd, path)
			if err != nil {
				return err
			}

			return r.with(cmd, func(app *App) error {
				if _, err := app.Open(args[0]); err != nil {
					return err
				}
				st := app.Controller.State()
				if name == "" {
					name = st.Name
				}
				if language == "" {
					language = st.Language
				}
				err := app.Controller.Update(cmd.Context(), content, name, language)
				status(cmd, app)
				return err
			})
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "New display name")
	cmd.Flags().StringVarP(&language, "language", "l", "", "New language tag")

	return cmd
}

// NewToggleEditingCommand creates the toggle-editing command
func NewToggleEditingCommand(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle-editing <url|id>",
		Short: "Turn editing on or off for a snippet",
		Long: `Flip the editing flag of a snippet. Requires signing in; a snippet with
an owner can only be changed by that owner.`,
		Args:    cobra.ExactArgs(1),
		Aliases: []string{"toggle"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.with(cmd, func(app *App) error {
				if _, err := app.Open(args[0]); err != nil {
					return err
				}
				editing, err := app.Controller.ToggleEditing(cmd.Context())
				status(cmd, app)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "editing: %s\n", onOff(editing))
				return nil
			})
		},
	}
}

// NewMineCommand creates the mine command
func NewMineCommand(r *runner) *cobra.Command {
	var (
		limit  int
		offset int
	)

	cmd := &cobra.Command{
		Use:   "mine",
		Short: "List your snippets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.with(cmd, func(app *App) error {
				token, err := app.Session.Token(cmd.Context())
				if err != nil {
					return fmt.Errorf("please log in to list your snippets")
				}
				list, err := app.Client.MySnippets(cmd.Context(), token, limit, offset)
				if err != nil {
					return err
				}
				if len(list) == 0 {
					fmt.Fprintln(cmd.ErrOrStderr(), "No snippets yet")
					return nil
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tNAME\tLANGUAGE\tEDITING")
				for _, s := range list {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.ID, s.Name, s.Language, onOff(s.Editing))
				}
				return w.Flush()
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of snippets")
	cmd.Flags().IntVar(&offset, "offset", 0, "Number of snippets to skip")

	return cmd
}
